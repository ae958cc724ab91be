// README: Order store backed by PostgreSQL; transitions are CAS updates committed with their audit entry.
package order

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dot/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const orderColumns = `
	id, type, status, status_version, customer_id, driver_id,
	pickup_lat, pickup_lng, pickup_address,
	dropoff_lat, dropoff_lng, dropoff_address,
	estimated_price, final_price, commission, currency,
	recipient_name, recipient_phone, item_description, item_price, recipient_location_token,
	created_at, accepted_at, picked_up_at, delivered_at, completed_at, cancelled_at,
	cancellation_reason, cancelled_by`

// Create persists a new order together with its creation audit entry
// (old=none, new=pending) in one transaction.
func (s *Store) Create(ctx context.Context, o *Order) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (
			id, type, status, status_version, customer_id,
			pickup_lat, pickup_lng, pickup_address,
			dropoff_lat, dropoff_lng, dropoff_address,
			estimated_price, commission, currency,
			recipient_name, recipient_phone, item_description, item_price, recipient_location_token,
			created_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10, $11,
			$12, $13, $14,
			NULLIF($15, ''), NULLIF($16, ''), NULLIF($17, ''), $18, NULLIF($19, ''),
			$20
		)`,
		string(o.ID), string(o.Type), string(o.Status), o.StatusVersion, string(o.CustomerID),
		o.Pickup.Lat, o.Pickup.Lng, o.PickupAddress,
		o.Dropoff.Lat, o.Dropoff.Lng, o.DropoffAddress,
		o.EstimatedPrice.Amount, o.Commission.Amount, o.EstimatedPrice.Currency,
		o.RecipientName, o.RecipientPhone, o.ItemDescription, moneyPtr(o.ItemPrice), o.RecipientLocationToken,
		o.CreatedAt,
	)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO order_status_logs (order_id, old_status, new_status, changed_by, created_at)
		VALUES ($1, NULL, $2, $3, $4)`,
		string(o.ID), string(StatusPending), string(o.CustomerID), o.CreatedAt,
	)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Order, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, string(id))
	return scanOrder(row)
}

// GetByLocationToken resolves a delivery order from its recipient token.
func (s *Store) GetByLocationToken(ctx context.Context, token string) (*Order, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE recipient_location_token = $1`, token)
	return scanOrder(row)
}

func (s *Store) ListPending(ctx context.Context) ([]*Order, error) {
	return s.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE status = 'pending' ORDER BY created_at DESC`)
}

func (s *Store) ListByCustomer(ctx context.Context, customerID types.ID) ([]*Order, error) {
	return s.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE customer_id = $1 ORDER BY created_at DESC`, string(customerID))
}

func (s *Store) ListByDriver(ctx context.Context, driverID types.ID) ([]*Order, error) {
	return s.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE driver_id = $1 ORDER BY created_at DESC`, string(driverID))
}

// ListSince returns orders created on or after the cutoff, optionally
// filtered by status. Admin dispute-resolution view.
func (s *Store) ListSince(ctx context.Context, since time.Time, status Status) ([]*Order, error) {
	if status == "" {
		return s.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE created_at >= $1 ORDER BY created_at DESC`, since)
	}
	return s.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE created_at >= $1 AND status = $2 ORDER BY created_at DESC`, since, string(status))
}

// SetDropoffByToken updates the dropoff of a delivery order identified by its
// recipient token. Refuses once the driver has picked the item up.
func (s *Store) SetDropoffByToken(ctx context.Context, token string, p types.Point, address string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET dropoff_lat = $1, dropoff_lng = $2, dropoff_address = COALESCE(NULLIF($3, ''), dropoff_address)
		WHERE recipient_location_token = $4 AND status IN ('pending', 'accepted')`,
		p.Lat, p.Lng, address, token,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Transition is the single mutation path for an order after creation.
type Transition struct {
	OrderID types.ID
	From    Status
	To      Status
	Version int

	// Actor is recorded in the audit entry.
	Actor types.ID
	Notes string

	// DriverID is set on accept; nil leaves the column untouched.
	DriverID *types.ID
	// FinalPrice is set on completion; nil leaves the column untouched.
	FinalPrice *types.Money
	// Cancellation detail, set only for transitions to cancelled.
	CancelledBy *types.ID
	Reason      string
}

// ApplyTransition performs the compare-and-transition guard: the UPDATE
// matches only if status and version still equal the observed values, so of
// any number of racing transitions exactly one wins. The audit entry commits
// in the same transaction; a lost race writes nothing.
func (s *Store) ApplyTransition(ctx context.Context, t Transition) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = $1,
		    status_version = status_version + 1,
		    driver_id = COALESCE($2, driver_id),
		    final_price = COALESCE($3, final_price),
		    accepted_at = CASE WHEN $1 = 'accepted' THEN $4 ELSE accepted_at END,
		    picked_up_at = CASE WHEN $1 = 'picked_up' THEN $4 ELSE picked_up_at END,
		    delivered_at = CASE WHEN $1 = 'delivered' THEN $4 ELSE delivered_at END,
		    completed_at = CASE WHEN $1 = 'completed' THEN $4 ELSE completed_at END,
		    cancelled_at = CASE WHEN $1 = 'cancelled' THEN $4 ELSE cancelled_at END,
		    cancellation_reason = CASE WHEN $1 = 'cancelled' THEN NULLIF($5, '') ELSE cancellation_reason END,
		    cancelled_by = CASE WHEN $1 = 'cancelled' THEN $6 ELSE cancelled_by END
		WHERE id = $7 AND status = $8 AND status_version = $9`,
		string(t.To),
		idPtr(t.DriverID),
		moneyPtr(t.FinalPrice),
		now,
		t.Reason,
		idPtr(t.CancelledBy),
		string(t.OrderID),
		string(t.From),
		t.Version,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO order_status_logs (order_id, old_status, new_status, changed_by, created_at, notes)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))`,
		string(t.OrderID), string(t.From), string(t.To), string(t.Actor), now, t.Notes,
	)
	if err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// ListLogs returns the full audit trail for an order, oldest first.
func (s *Store) ListLogs(ctx context.Context, orderID types.ID) ([]StatusLog, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, order_id, old_status, new_status, changed_by, created_at, COALESCE(notes, '')
		FROM order_status_logs
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC`,
		string(orderID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatusLog
	for rows.Next() {
		var l StatusLog
		var old sql.NullString
		if err := rows.Scan(&l.ID, &l.OrderID, &old, &l.NewStatus, &l.ChangedBy, &l.Timestamp, &l.Notes); err != nil {
			return nil, err
		}
		if old.Valid {
			l.OldStatus = Status(old.String)
		} else {
			l.OldStatus = StatusNone
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]*Order, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var driverID, pickupAddr, dropoffAddr sql.NullString
	var finalPrice, itemPrice sql.NullInt64
	var currency string
	var recipientName, recipientPhone, itemDesc, locToken sql.NullString
	var acceptedAt, pickedUpAt, deliveredAt, completedAt, cancelledAt sql.NullTime
	var cancelReason, cancelledBy sql.NullString

	err := row.Scan(
		&o.ID, &o.Type, &o.Status, &o.StatusVersion, &o.CustomerID, &driverID,
		&o.Pickup.Lat, &o.Pickup.Lng, &pickupAddr,
		&o.Dropoff.Lat, &o.Dropoff.Lng, &dropoffAddr,
		&o.EstimatedPrice.Amount, &finalPrice, &o.Commission.Amount, &currency,
		&recipientName, &recipientPhone, &itemDesc, &itemPrice, &locToken,
		&o.CreatedAt, &acceptedAt, &pickedUpAt, &deliveredAt, &completedAt, &cancelledAt,
		&cancelReason, &cancelledBy,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	o.EstimatedPrice.Currency = currency
	o.Commission.Currency = currency
	if driverID.Valid {
		d := types.ID(driverID.String)
		o.DriverID = &d
	}
	o.PickupAddress = pickupAddr.String
	o.DropoffAddress = dropoffAddr.String
	if finalPrice.Valid {
		m := types.Money{Amount: finalPrice.Int64, Currency: currency}
		o.FinalPrice = &m
	}
	o.RecipientName = recipientName.String
	o.RecipientPhone = recipientPhone.String
	o.ItemDescription = itemDesc.String
	if itemPrice.Valid {
		m := types.Money{Amount: itemPrice.Int64, Currency: currency}
		o.ItemPrice = &m
	}
	o.RecipientLocationToken = locToken.String
	o.AcceptedAt = timePtr(acceptedAt)
	o.PickedUpAt = timePtr(pickedUpAt)
	o.DeliveredAt = timePtr(deliveredAt)
	o.CompletedAt = timePtr(completedAt)
	o.CancelledAt = timePtr(cancelledAt)
	o.CancellationReason = cancelReason.String
	if cancelledBy.Valid {
		c := types.ID(cancelledBy.String)
		o.CancelledBy = &c
	}
	return &o, nil
}

func idPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func moneyPtr(v *types.Money) *int64 {
	if v == nil {
		return nil
	}
	n := v.Amount
	return &n
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
