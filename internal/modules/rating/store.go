// README: Rating store; the order_id unique constraint enforces one rating per order.
package rating

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"dot/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, r *Rating) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO ratings (id, order_id, driver_id, customer_id, stars, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)`,
		string(r.ID), string(r.OrderID), string(r.DriverID), string(r.CustomerID),
		r.Stars, r.Comment, r.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyRated
	}
	return err
}

func (s *Store) GetByOrder(ctx context.Context, orderID types.ID) (*Rating, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, order_id, driver_id, customer_id, stars, COALESCE(comment, ''), created_at
		FROM ratings
		WHERE order_id = $1`, string(orderID),
	)
	var r Rating
	err := row.Scan(&r.ID, &r.OrderID, &r.DriverID, &r.CustomerID, &r.Stars, &r.Comment, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) ListByDriver(ctx context.Context, driverID types.ID, limit int) ([]Rating, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, order_id, driver_id, customer_id, stars, COALESCE(comment, ''), created_at
		FROM ratings
		WHERE driver_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, string(driverID), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Rating
	for rows.Next() {
		var r Rating
		if err := rows.Scan(&r.ID, &r.OrderID, &r.DriverID, &r.CustomerID, &r.Stars, &r.Comment, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AverageForDriver returns the mean stars and rating count; a driver with no
// ratings averages zero.
func (s *Store) AverageForDriver(ctx context.Context, driverID types.ID) (float64, int, error) {
	row := s.db.QueryRow(ctx, `
		SELECT COALESCE(AVG(stars), 0), COUNT(*)
		FROM ratings
		WHERE driver_id = $1`, string(driverID),
	)
	var avg float64
	var count int
	if err := row.Scan(&avg, &count); err != nil {
		return 0, 0, err
	}
	return avg, count, nil
}
