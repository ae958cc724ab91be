// README: Rating rule tests (completed-only, customer-only, once per order).
package rating

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"dot/internal/modules/order"
	"dot/internal/types"
)

type fakeOrders map[types.ID]*order.Order

func (f fakeOrders) Get(_ context.Context, id types.ID) (*order.Order, error) {
	o, ok := f[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

func completedOrder(id, customer, driver types.ID) *order.Order {
	d := driver
	return &order.Order{ID: id, CustomerID: customer, DriverID: &d, Status: order.StatusCompleted}
}

func TestRateRules(t *testing.T) {
	ctx := context.Background()
	store, db := setupTest(t)

	orders := fakeOrders{
		"o_done":    completedOrder("o_done", "c1", "d1"),
		"o_pending": {ID: "o_pending", CustomerID: "c1", Status: order.StatusPending},
	}
	insertOrderRow(t, db, "o_done", "c1", "completed")
	insertOrderRow(t, db, "o_pending", "c1", "pending")

	svc := NewService(store, orders)

	if _, err := svc.Rate(ctx, RateCommand{OrderID: "o_done", CustomerID: "c1", Stars: 0}); err != ErrInvalidStars {
		t.Fatalf("stars 0: expected ErrInvalidStars, got %v", err)
	}
	if _, err := svc.Rate(ctx, RateCommand{OrderID: "o_done", CustomerID: "c1", Stars: 6}); err != ErrInvalidStars {
		t.Fatalf("stars 6: expected ErrInvalidStars, got %v", err)
	}
	if _, err := svc.Rate(ctx, RateCommand{OrderID: "o_done", CustomerID: "someone_else", Stars: 5}); err != ErrNotAuthorized {
		t.Fatalf("wrong customer: expected ErrNotAuthorized, got %v", err)
	}
	if _, err := svc.Rate(ctx, RateCommand{OrderID: "o_pending", CustomerID: "c1", Stars: 5}); err != ErrNotCompleted {
		t.Fatalf("pending order: expected ErrNotCompleted, got %v", err)
	}

	r, err := svc.Rate(ctx, RateCommand{OrderID: "o_done", CustomerID: "c1", Stars: 4, Comment: "smooth ride"})
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if r.DriverID != "d1" {
		t.Fatalf("driver = %s, want d1", r.DriverID)
	}

	if _, err := svc.Rate(ctx, RateCommand{OrderID: "o_done", CustomerID: "c1", Stars: 5}); err != ErrAlreadyRated {
		t.Fatalf("second rating: expected ErrAlreadyRated, got %v", err)
	}
}

func TestDriverSummary(t *testing.T) {
	ctx := context.Background()
	store, db := setupTest(t)

	orders := fakeOrders{}
	for i, stars := range []int{5, 4, 3} {
		id := types.ID("o_sum_" + string(rune('a'+i)))
		orders[id] = completedOrder(id, "c1", "d_sum")
		insertOrderRow(t, db, id, "c1", "completed")
		if _, err := NewService(store, orders).Rate(ctx, RateCommand{OrderID: id, CustomerID: "c1", Stars: stars}); err != nil {
			t.Fatalf("rate %s: %v", id, err)
		}
	}

	svc := NewService(store, orders)
	sum, err := svc.SummaryForDriver(ctx, "d_sum")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.Count != 3 || sum.Average != 4 {
		t.Fatalf("summary = %+v, want count 3 average 4", sum)
	}

	empty, err := svc.SummaryForDriver(ctx, "d_never_rated")
	if err != nil {
		t.Fatalf("empty summary: %v", err)
	}
	if empty.Count != 0 || empty.Average != 0 {
		t.Fatalf("empty summary = %+v", empty)
	}

	list, err := svc.ListByDriver(ctx, "d_sum", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("listed %d ratings, want 3", len(list))
	}
}

// --- fixtures ---

func insertOrderRow(t *testing.T, db *pgxpool.Pool, id types.ID, customer types.ID, status string) {
	t.Helper()
	_, err := db.Exec(context.Background(), `
		INSERT INTO orders (id, type, status, customer_id, pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
			estimated_price, commission, currency, created_at)
		VALUES ($1, 'taxi', $2, $3, 0, 0, 0, 0, 100, 10, $4, $5)`,
		string(id), status, string(customer), types.DefaultCurrency, time.Now().UTC(),
	)
	if err != nil {
		t.Fatalf("insert order row: %v", err)
	}
}

func setupTest(t *testing.T) (*Store, *pgxpool.Pool) {
	t.Helper()

	dsn := os.Getenv("DOT_TEST_DSN")
	if dsn == "" {
		t.Skip("DOT_TEST_DSN not set; skipping DB-backed tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := applyMigration(ctx, db); err != nil {
		t.Fatalf("apply migration: %v", err)
	}

	if _, err := db.Exec(ctx, "TRUNCATE TABLE ratings, order_status_logs, orders"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}

	return NewStore(db), db
}

func applyMigration(ctx context.Context, db *pgxpool.Pool) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	content, err := os.ReadFile(filepath.Join(root, "migrations", "0001_init.up.sql"))
	if err != nil {
		return err
	}
	for _, stmt := range splitSQL(stripSQLComments(string(content))) {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

func stripSQLComments(input string) string {
	var b strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	return b.String()
}

func splitSQL(input string) []string {
	parts := strings.Split(input, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		stmt := strings.TrimSpace(p)
		if stmt == "" {
			continue
		}
		out = append(out, stmt)
	}
	return out
}
