// README: Driver location store backed by Redis GEO; positions are ephemeral.
package location

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"dot/internal/types"
)

const (
	geoKey  = "location:drivers"
	seenKey = "location:drivers:seen"
)

type Store struct {
	redis *redis.Client
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{redis: rdb}
}

// Set records a driver position and its wall-clock freshness.
func (s *Store) Set(ctx context.Context, driverID types.ID, p types.Point, at time.Time) error {
	pipe := s.redis.Pipeline()
	pipe.GeoAdd(ctx, geoKey, &redis.GeoLocation{
		Name:      string(driverID),
		Latitude:  p.Lat,
		Longitude: p.Lng,
	})
	pipe.HSet(ctx, seenKey, string(driverID), at.UnixMilli())
	_, err := pipe.Exec(ctx)
	return err
}

// Remove drops a driver from the live map, typically on disconnect.
func (s *Store) Remove(ctx context.Context, driverID types.ID) error {
	pipe := s.redis.Pipeline()
	pipe.ZRem(ctx, geoKey, string(driverID))
	pipe.HDel(ctx, seenKey, string(driverID))
	_, err := pipe.Exec(ctx)
	return err
}

// Get returns a single driver's position, or nil when the driver has not
// reported one.
func (s *Store) Get(ctx context.Context, driverID types.ID) (*DriverLocation, error) {
	pos, err := s.redis.GeoPos(ctx, geoKey, string(driverID)).Result()
	if err != nil {
		return nil, err
	}
	if len(pos) == 0 || pos[0] == nil {
		return nil, nil
	}
	loc := &DriverLocation{
		DriverID: driverID,
		Position: types.Point{Lat: pos[0].Latitude, Lng: pos[0].Longitude},
	}
	if seen, err := s.redis.HGet(ctx, seenKey, string(driverID)).Result(); err == nil {
		if ms, perr := strconv.ParseInt(seen, 10, 64); perr == nil {
			loc.SeenAt = time.UnixMilli(ms).UTC()
		}
	}
	return loc, nil
}

// All returns every driver on the live map.
func (s *Store) All(ctx context.Context) ([]DriverLocation, error) {
	ids, err := s.redis.ZRange(ctx, geoKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]DriverLocation, 0, len(ids))
	for _, id := range ids {
		loc, err := s.Get(ctx, types.ID(id))
		if err != nil {
			return nil, err
		}
		if loc != nil {
			out = append(out, *loc)
		}
	}
	return out, nil
}

// Nearby returns drivers within radiusKm of a point, nearest first.
func (s *Store) Nearby(ctx context.Context, p types.Point, radiusKm float64, limit int) ([]DriverLocation, error) {
	res, err := s.redis.GeoSearchLocation(ctx, geoKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Latitude:   p.Lat,
			Longitude:  p.Lng,
			Radius:     radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
			Count:      limit,
		},
		WithCoord: true,
		WithDist:  true,
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]DriverLocation, 0, len(res))
	for _, r := range res {
		out = append(out, DriverLocation{
			DriverID:   types.ID(r.Name),
			Position:   types.Point{Lat: r.Latitude, Lng: r.Longitude},
			DistanceKm: r.Dist,
		})
	}
	return out, nil
}
