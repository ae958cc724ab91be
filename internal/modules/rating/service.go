// README: Rating service: customers rate the driver once per completed order.
package rating

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"dot/internal/modules/order"
	"dot/internal/types"
)

var (
	ErrNotFound      = errors.New("rating not found")
	ErrAlreadyRated  = errors.New("order already rated")
	ErrNotAuthorized = errors.New("not authorized")
	ErrNotCompleted  = errors.New("order is not completed")
	ErrInvalidStars  = errors.New("stars must be between 1 and 5")
)

// Orders is the slice of the order module the rating rules need.
type Orders interface {
	Get(ctx context.Context, id types.ID) (*order.Order, error)
}

type Service struct {
	store  *Store
	orders Orders
}

func NewService(store *Store, orders Orders) *Service {
	return &Service{store: store, orders: orders}
}

type RateCommand struct {
	OrderID    types.ID
	CustomerID types.ID
	Stars      int
	Comment    string
}

// Rate records a driver rating. Only the order's customer may rate, only
// after completion, and only once.
func (s *Service) Rate(ctx context.Context, cmd RateCommand) (*Rating, error) {
	if cmd.Stars < 1 || cmd.Stars > 5 {
		return nil, ErrInvalidStars
	}

	o, err := s.orders.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != cmd.CustomerID {
		return nil, ErrNotAuthorized
	}
	if o.Status != order.StatusCompleted || o.DriverID == nil {
		return nil, ErrNotCompleted
	}

	r := &Rating{
		ID:         newID(),
		OrderID:    o.ID,
		DriverID:   *o.DriverID,
		CustomerID: cmd.CustomerID,
		Stars:      cmd.Stars,
		Comment:    cmd.Comment,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) GetByOrder(ctx context.Context, orderID types.ID) (*Rating, error) {
	return s.store.GetByOrder(ctx, orderID)
}

func (s *Service) ListByDriver(ctx context.Context, driverID types.ID, limit int) ([]Rating, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListByDriver(ctx, driverID, limit)
}

// Summary is the aggregate shown on a driver's profile.
type Summary struct {
	DriverID types.ID `json:"driver_id"`
	Average  float64  `json:"average"`
	Count    int      `json:"count"`
}

func (s *Service) SummaryForDriver(ctx context.Context, driverID types.ID) (Summary, error) {
	avg, count, err := s.store.AverageForDriver(ctx, driverID)
	if err != nil {
		return Summary{}, err
	}
	return Summary{DriverID: driverID, Average: avg, Count: count}, nil
}

func newID() types.ID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return types.ID(hex.EncodeToString(b[:]))
}
