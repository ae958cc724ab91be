// README: Driver location service: ingest updates, serve live-map queries, age out stale entries.
package location

import (
	"context"
	"errors"
	"time"

	"dot/internal/types"
)

var ErrInvalidPosition = errors.New("position out of range")

// staleAfter bounds how old a reported position may be before the live map
// stops showing it.
const staleAfter = 2 * time.Minute

type Service struct {
	store *Store
	now   func() time.Time
}

func NewService(store *Store) *Service {
	return &Service{store: store, now: time.Now}
}

func (s *Service) Update(ctx context.Context, driverID types.ID, p types.Point) error {
	if p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
		return ErrInvalidPosition
	}
	return s.store.Set(ctx, driverID, p, s.now().UTC())
}

func (s *Service) Remove(ctx context.Context, driverID types.ID) error {
	return s.store.Remove(ctx, driverID)
}

func (s *Service) Get(ctx context.Context, driverID types.ID) (*DriverLocation, error) {
	loc, err := s.store.Get(ctx, driverID)
	if err != nil || loc == nil {
		return nil, err
	}
	if s.stale(loc.SeenAt) {
		return nil, nil
	}
	return loc, nil
}

// Active returns every driver with a fresh position.
func (s *Service) Active(ctx context.Context) ([]DriverLocation, error) {
	all, err := s.store.All(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, loc := range all {
		if !s.stale(loc.SeenAt) {
			out = append(out, loc)
		}
	}
	return out, nil
}

func (s *Service) Nearby(ctx context.Context, p types.Point, radiusKm float64, limit int) ([]DriverLocation, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.Nearby(ctx, p, radiusKm, limit)
}

func (s *Service) stale(seenAt time.Time) bool {
	return !seenAt.IsZero() && s.now().Sub(seenAt) > staleAfter
}
