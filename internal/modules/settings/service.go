// README: Settings service; resolves platform values with config fallbacks.
package settings

import (
	"context"
	"strconv"

	"dot/internal/types"
)

// Defaults are the config-supplied fallbacks used when a key has no row.
type Defaults struct {
	Commission    int64
	TaxiBase      int64
	TaxiPerKm     int64
	DeliveryBase  int64
	DeliveryPerKm int64
}

type Service struct {
	store    *Store
	defaults Defaults
}

func NewService(store *Store, defaults Defaults) *Service {
	return &Service{store: store, defaults: defaults}
}

func (s *Service) List(ctx context.Context) ([]Setting, error) {
	return s.store.List(ctx)
}

func (s *Service) Set(ctx context.Context, key, value, description string) (Setting, error) {
	return s.store.Upsert(ctx, key, value, description)
}

// DefaultCommission is the platform fee frozen onto an order at creation.
func (s *Service) DefaultCommission(ctx context.Context) types.Money {
	return types.Money{
		Amount:   s.intValue(ctx, KeyDefaultCommission, s.defaults.Commission),
		Currency: types.DefaultCurrency,
	}
}

// Rate returns (base, perKm) in minor units for the given order type key pair.
func (s *Service) Rate(ctx context.Context, baseKey, perKmKey string, baseDef, perKmDef int64) (int64, int64) {
	return s.intValue(ctx, baseKey, baseDef), s.intValue(ctx, perKmKey, perKmDef)
}

func (s *Service) intValue(ctx context.Context, key string, def int64) int64 {
	st, err := s.store.Get(ctx, key)
	if err != nil {
		return def
	}
	n, err := strconv.ParseInt(st.Value, 10, 64)
	if err != nil {
		return def
	}
	return n
}
