// README: Fare estimation: route distance times the per-kilometre rate plus the base fare.
package pricing

import (
	"context"
	"math"
	"time"

	"dot/internal/modules/settings"
	"dot/internal/types"
)

// DistanceSource resolves the driving distance between two points.
type DistanceSource interface {
	DistanceKm(ctx context.Context, from, to types.Point) (float64, error)
}

// RateSource resolves the live base and per-km rates, falling back to the
// given defaults. Satisfied by settings.Service.
type RateSource interface {
	Rate(ctx context.Context, baseKey, perKmKey string, baseDefault, perKmDefault int64) (int64, int64)
}

// Defaults hold the fallback rates in minor units, used when the settings
// table has no override.
type Defaults struct {
	TaxiBase      int64
	TaxiPerKm     int64
	DeliveryBase  int64
	DeliveryPerKm int64
	LookupTimeout time.Duration
}

type Service struct {
	distance DistanceSource
	rates    RateSource
	defaults Defaults
}

func NewService(distance DistanceSource, rates RateSource, defaults Defaults) *Service {
	if defaults.LookupTimeout <= 0 {
		defaults.LookupTimeout = 5 * time.Second
	}
	return &Service{distance: distance, rates: rates, defaults: defaults}
}

// Estimate prices a route for the given order type. The distance lookup runs
// under its own timeout; a lookup failure fails the estimate, there is no
// guessed fallback fare.
func (s *Service) Estimate(ctx context.Context, pickup, dropoff types.Point, orderType string) (types.Money, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, s.defaults.LookupTimeout)
	defer cancel()

	km, err := s.distance.DistanceKm(lookupCtx, pickup, dropoff)
	if err != nil {
		return types.Money{}, err
	}

	base, perKm := s.rateFor(ctx, orderType)
	return types.Money{
		Amount:   base + int64(math.Round(km*float64(perKm))),
		Currency: types.DefaultCurrency,
	}, nil
}

func (s *Service) rateFor(ctx context.Context, orderType string) (base, perKm int64) {
	if orderType == "delivery" {
		return s.rates.Rate(ctx,
			settings.KeyDeliveryBasePrice, settings.KeyDeliveryPerKm,
			s.defaults.DeliveryBase, s.defaults.DeliveryPerKm)
	}
	return s.rates.Rate(ctx,
		settings.KeyTaxiBasePrice, settings.KeyTaxiPricePerKm,
		s.defaults.TaxiBase, s.defaults.TaxiPerKm)
}
