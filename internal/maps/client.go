// README: Google Maps client: driving distance and reverse geocoding.
package maps

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	"dot/internal/types"
)

// Client wraps the Google Maps API for the two lookups the platform needs.
type Client struct {
	api *maps.Client
}

func NewClient(apiKey string) (*Client, error) {
	api, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create maps client: %w", err)
	}
	return &Client{api: api}, nil
}

// DistanceKm returns the driving distance between two points in kilometres.
func (c *Client) DistanceKm(ctx context.Context, from, to types.Point) (float64, error) {
	resp, err := c.api.DistanceMatrix(ctx, &maps.DistanceMatrixRequest{
		Origins:      []string{latLng(from)},
		Destinations: []string{latLng(to)},
		Mode:         maps.TravelModeDriving,
	})
	if err != nil {
		return 0, fmt.Errorf("distance matrix: %w", err)
	}
	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return 0, fmt.Errorf("distance matrix: empty response")
	}
	el := resp.Rows[0].Elements[0]
	if el.Status != "OK" {
		return 0, fmt.Errorf("distance matrix: element status %s", el.Status)
	}
	return float64(el.Distance.Meters) / 1000, nil
}

// ReverseGeocode returns the formatted address for a point, or an error when
// nothing resolves. Callers treat the address as a nicety, not a requirement.
func (c *Client) ReverseGeocode(ctx context.Context, p types.Point) (string, error) {
	results, err := c.api.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: p.Lat, Lng: p.Lng},
	})
	if err != nil {
		return "", fmt.Errorf("reverse geocode: %w", err)
	}
	if len(results) == 0 {
		return "", fmt.Errorf("reverse geocode: no results")
	}
	return results[0].FormattedAddress, nil
}

func latLng(p types.Point) string {
	return fmt.Sprintf("%f,%f", p.Lat, p.Lng)
}
