// README: Read-only aggregates for the admin dashboard.
package stats

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"dot/internal/types"
)

type Dashboard struct {
	Date            string      `json:"date"`
	OrdersCreated   int         `json:"orders_created"`
	OrdersCompleted int         `json:"orders_completed"`
	OrdersCancelled int         `json:"orders_cancelled"`
	ActiveOrders    int         `json:"active_orders"`
	CommissionTaken types.Money `json:"commission_taken"`
}

type DriverStats struct {
	DriverID        types.ID    `json:"driver_id"`
	TotalOrders     int         `json:"total_orders"`
	CompletedOrders int         `json:"completed_orders"`
	CancelledOrders int         `json:"cancelled_orders"`
	WalletBalance   types.Money `json:"wallet_balance"`
	AverageRating   float64     `json:"average_rating"`
	RatingCount     int         `json:"rating_count"`
}

type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

// DashboardFor aggregates one calendar day (UTC).
func (s *Service) DashboardFor(ctx context.Context, day time.Time) (*Dashboard, error) {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	d := &Dashboard{
		Date:            from.Format("2006-01-02"),
		CommissionTaken: types.Money{Currency: types.DefaultCurrency},
	}

	err := s.db.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE created_at >= $1 AND created_at < $2),
			COUNT(*) FILTER (WHERE completed_at >= $1 AND completed_at < $2),
			COUNT(*) FILTER (WHERE cancelled_at >= $1 AND cancelled_at < $2),
			COUNT(*) FILTER (WHERE status NOT IN ('completed', 'cancelled')),
			COALESCE(SUM(commission) FILTER (WHERE completed_at >= $1 AND completed_at < $2), 0)
		FROM orders`,
		from, to,
	).Scan(&d.OrdersCreated, &d.OrdersCompleted, &d.OrdersCancelled, &d.ActiveOrders, &d.CommissionTaken.Amount)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ForDriver aggregates one driver's order history, rating, and wallet.
func (s *Service) ForDriver(ctx context.Context, driverID types.ID) (*DriverStats, error) {
	ds := &DriverStats{
		DriverID:      driverID,
		WalletBalance: types.Money{Currency: types.DefaultCurrency},
	}

	err := s.db.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'cancelled')
		FROM orders
		WHERE driver_id = $1`, string(driverID),
	).Scan(&ds.TotalOrders, &ds.CompletedOrders, &ds.CancelledOrders)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRow(ctx, `
		SELECT COALESCE(AVG(stars), 0), COUNT(*)
		FROM ratings
		WHERE driver_id = $1`, string(driverID),
	).Scan(&ds.AverageRating, &ds.RatingCount)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRow(ctx, `
		SELECT COALESCE(MAX(balance), 0)
		FROM wallets
		WHERE user_id = $1`, string(driverID),
	).Scan(&ds.WalletBalance.Amount)
	if err != nil {
		return nil, err
	}
	return ds, nil
}
