// README: Order service tests (state machine + DB-backed flows).
package order

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"dot/internal/types"
)

// TestCanTransition verifies the transition table without a database.
func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		// happy-path forward transitions
		{StatusPending, StatusAccepted, true},
		{StatusAccepted, StatusPickedUp, true},
		{StatusPickedUp, StatusInTransit, true},
		{StatusInTransit, StatusDelivered, true},
		{StatusDelivered, StatusCompleted, true},
		// short trips may skip the in-transit report
		{StatusPickedUp, StatusDelivered, true},
		// cancel from every non-terminal state
		{StatusPending, StatusCancelled, true},
		{StatusAccepted, StatusCancelled, true},
		{StatusPickedUp, StatusCancelled, true},
		{StatusInTransit, StatusCancelled, true},
		{StatusDelivered, StatusCancelled, true},
		// terminal states have no outgoing transitions
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusCompleted, StatusPending, false},
		// skipping states
		{StatusPending, StatusPickedUp, false},
		{StatusPending, StatusCompleted, false},
		{StatusAccepted, StatusDelivered, false},
		{StatusAccepted, StatusCompleted, false},
		{StatusInTransit, StatusCompleted, false},
		// no going backwards
		{StatusAccepted, StatusPending, false},
		{StatusDelivered, StatusInTransit, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestCreatePricingFailure(t *testing.T) {
	svc := NewService(nil, ServiceDeps{
		Pricer:      &fakePricer{fail: true},
		Ledger:      &fakeLedger{eligible: true},
		Commissions: fakeCommissions{},
	})

	_, err := svc.CreateTaxi(context.Background(), CreateTaxiCommand{
		CustomerID: "c1",
		Pickup:     types.Point{Lat: 33.5138, Lng: 36.2765},
		Dropoff:    types.Point{Lat: 33.5102, Lng: 36.2913},
	})
	if err != ErrPricingUnavailable {
		t.Fatalf("expected ErrPricingUnavailable, got %v", err)
	}
}

func TestCreateDeliveryRequiresPhone(t *testing.T) {
	svc := NewService(nil, ServiceDeps{
		Pricer:      &fakePricer{},
		Ledger:      &fakeLedger{eligible: true},
		Commissions: fakeCommissions{},
	})

	_, err := svc.CreateDelivery(context.Background(), CreateDeliveryCommand{
		CreateTaxiCommand: CreateTaxiCommand{
			CustomerID: "c1",
			Pickup:     types.Point{Lat: 33.5138, Lng: 36.2765},
			Dropoff:    types.Point{Lat: 33.5102, Lng: 36.2913},
		},
		RecipientName: "Sami",
	})
	if err != ErrBadRequest {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}
}

func TestOrderFlowHappyPath(t *testing.T) {
	ctx := context.Background()
	ledger := &fakeLedger{eligible: true}
	svc := newTestService(t, ledger)

	o := mustCreateTaxi(t, svc, "c_happy")
	assertStatus(t, svc, o.ID, StatusPending)
	if o.Commission.Amount != testCommission {
		t.Fatalf("commission = %d, want %d", o.Commission.Amount, testCommission)
	}

	if _, err := svc.Accept(ctx, AcceptCommand{OrderID: o.ID, DriverID: "d1"}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	assertStatus(t, svc, o.ID, StatusAccepted)

	for _, st := range []Status{StatusPickedUp, StatusInTransit, StatusDelivered, StatusCompleted} {
		if _, err := svc.AdvanceStatus(ctx, AdvanceCommand{OrderID: o.ID, DriverID: "d1", To: st}); err != nil {
			t.Fatalf("advance to %s: %v", st, err)
		}
		assertStatus(t, svc, o.ID, st)
	}

	if got := ledger.deductions(); got != 1 {
		t.Fatalf("deductions = %d, want 1", got)
	}
	if got := ledger.refunds(); got != 0 {
		t.Fatalf("refunds = %d, want 0", got)
	}

	final, err := svc.Get(ctx, o.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if final.FinalPrice == nil || final.FinalPrice.Amount != final.EstimatedPrice.Amount {
		t.Fatalf("final price not stamped from estimate: %+v", final.FinalPrice)
	}
	if final.CompletedAt == nil || final.AcceptedAt == nil || final.PickedUpAt == nil || final.DeliveredAt == nil {
		t.Fatal("transition timestamps missing")
	}

	logs, err := svc.GetHistory(ctx, o.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	// creation + accept + 4 advances
	if len(logs) != 6 {
		t.Fatalf("audit entries = %d, want 6", len(logs))
	}
	if logs[0].OldStatus != StatusNone || logs[0].NewStatus != StatusPending {
		t.Fatalf("creation entry = %s -> %s", logs[0].OldStatus, logs[0].NewStatus)
	}
	if logs[5].NewStatus != StatusCompleted {
		t.Fatalf("last entry = %s, want completed", logs[5].NewStatus)
	}
}

func TestSkipInTransit(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &fakeLedger{eligible: true})

	o := mustCreateTaxi(t, svc, "c_skip")
	if _, err := svc.Accept(ctx, AcceptCommand{OrderID: o.ID, DriverID: "d1"}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := svc.AdvanceStatus(ctx, AdvanceCommand{OrderID: o.ID, DriverID: "d1", To: StatusPickedUp}); err != nil {
		t.Fatalf("pick up: %v", err)
	}
	if _, err := svc.AdvanceStatus(ctx, AdvanceCommand{OrderID: o.ID, DriverID: "d1", To: StatusDelivered}); err != nil {
		t.Fatalf("deliver straight from picked_up: %v", err)
	}
	assertStatus(t, svc, o.ID, StatusDelivered)
}

func TestCompletionInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	ledger := &fakeLedger{eligible: true}
	svc := newTestService(t, ledger)

	o := mustCreateTaxi(t, svc, "c_broke")
	if _, err := svc.Accept(ctx, AcceptCommand{OrderID: o.ID, DriverID: "d1"}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	for _, st := range []Status{StatusPickedUp, StatusDelivered} {
		if _, err := svc.AdvanceStatus(ctx, AdvanceCommand{OrderID: o.ID, DriverID: "d1", To: st}); err != nil {
			t.Fatalf("advance to %s: %v", st, err)
		}
	}

	ledger.setDecline(true)
	_, err := svc.AdvanceStatus(ctx, AdvanceCommand{OrderID: o.ID, DriverID: "d1", To: StatusCompleted})
	if err != ErrInsufficientBalance {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	// status must not move and no completion may be recorded
	assertStatus(t, svc, o.ID, StatusDelivered)
	logs, err := svc.GetHistory(ctx, o.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	for _, l := range logs {
		if l.NewStatus == StatusCompleted {
			t.Fatal("completion recorded despite declined deduction")
		}
	}

	// a top-up later makes the same transition succeed
	ledger.setDecline(false)
	if _, err := svc.AdvanceStatus(ctx, AdvanceCommand{OrderID: o.ID, DriverID: "d1", To: StatusCompleted}); err != nil {
		t.Fatalf("retry completion: %v", err)
	}
	assertStatus(t, svc, o.ID, StatusCompleted)
}

func TestAdvanceByWrongDriver(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &fakeLedger{eligible: true})

	o := mustCreateTaxi(t, svc, "c_auth")
	if _, err := svc.Accept(ctx, AcceptCommand{OrderID: o.ID, DriverID: "d1"}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	_, err := svc.AdvanceStatus(ctx, AdvanceCommand{OrderID: o.ID, DriverID: "d2", To: StatusPickedUp})
	if err != ErrNotAuthorized {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
}

func TestCancelAuthorization(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &fakeLedger{eligible: true})

	o := mustCreateTaxi(t, svc, "c_cancel")
	if _, err := svc.Cancel(ctx, CancelCommand{OrderID: o.ID, ActorID: "stranger"}); err != ErrNotAuthorized {
		t.Fatalf("stranger cancel: expected ErrNotAuthorized, got %v", err)
	}

	if _, err := svc.Cancel(ctx, CancelCommand{OrderID: o.ID, ActorID: "c_cancel", Reason: "changed my mind"}); err != nil {
		t.Fatalf("customer cancel: %v", err)
	}
	got, err := svc.Get(ctx, o.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusCancelled || got.CancellationReason != "changed my mind" || got.CancelledAt == nil {
		t.Fatalf("cancellation not recorded: %+v", got)
	}

	// terminal: nothing further
	if _, err := svc.Cancel(ctx, CancelCommand{OrderID: o.ID, ActorID: "c_cancel"}); err != ErrNotAvailable {
		t.Fatalf("double cancel: expected ErrNotAvailable, got %v", err)
	}
}

func TestAcceptIneligibleDriver(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &fakeLedger{eligible: false})

	o := mustCreateTaxi(t, svc, "c_gate")
	if _, err := svc.ListPending(ctx, "d_broke"); err != ErrInsufficientBalance {
		t.Fatalf("list pending: expected ErrInsufficientBalance, got %v", err)
	}
	if _, err := svc.Accept(ctx, AcceptCommand{OrderID: o.ID, DriverID: "d_broke"}); err != ErrInsufficientBalance {
		t.Fatalf("accept: expected ErrInsufficientBalance, got %v", err)
	}
	assertStatus(t, svc, o.ID, StatusPending)
}

func TestDeliveryCreateMintsToken(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &fakeLedger{eligible: true})

	price := types.FromMajor(1500, types.DefaultCurrency)
	o, err := svc.CreateDelivery(ctx, CreateDeliveryCommand{
		CreateTaxiCommand: CreateTaxiCommand{
			CustomerID: "c_delivery",
			Pickup:     types.Point{Lat: 33.5138, Lng: 36.2765},
			Dropoff:    types.Point{Lat: 33.5102, Lng: 36.2913},
		},
		RecipientName:   "Sami",
		RecipientPhone:  "+963900000000",
		ItemDescription: "documents",
		ItemPrice:       &price,
	})
	if err != nil {
		t.Fatalf("create delivery: %v", err)
	}
	if o.RecipientLocationToken == "" {
		t.Fatal("recipient location token not minted")
	}

	byToken, err := svc.store.GetByLocationToken(ctx, o.RecipientLocationToken)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if byToken.ID != o.ID {
		t.Fatalf("token resolved to %s, want %s", byToken.ID, o.ID)
	}
	if byToken.ItemPrice == nil || byToken.ItemPrice.Amount != price.Amount {
		t.Fatalf("item price round-trip: %+v", byToken.ItemPrice)
	}

	pin := types.Point{Lat: 33.5201, Lng: 36.3100}
	updated, err := svc.SetRecipientLocation(ctx, o.RecipientLocationToken, pin, "Bab Touma square")
	if err != nil {
		t.Fatalf("set recipient location: %v", err)
	}
	if updated.Dropoff != pin || updated.DropoffAddress != "Bab Touma square" {
		t.Fatalf("dropoff not updated: %+v", updated.Dropoff)
	}

	// after pickup the pin is locked in
	if _, err := svc.Accept(ctx, AcceptCommand{OrderID: o.ID, DriverID: "d1"}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := svc.AdvanceStatus(ctx, AdvanceCommand{OrderID: o.ID, DriverID: "d1", To: StatusPickedUp}); err != nil {
		t.Fatalf("pick up: %v", err)
	}
	if _, err := svc.SetRecipientLocation(ctx, o.RecipientLocationToken, pin, ""); err != ErrNotAvailable {
		t.Fatalf("post-pickup update: expected ErrNotAvailable, got %v", err)
	}

	if _, err := svc.GetByLocationToken(ctx, "no-such-token"); err != ErrNotFound {
		t.Fatalf("bad token: expected ErrNotFound, got %v", err)
	}
}

// --- fixtures ---

const (
	testPrice      = int64(5_500_000) // 55000.00 in minor units
	testCommission = int64(500_000)   // 5000.00
)

type fakePricer struct {
	fail bool
}

func (p *fakePricer) Estimate(context.Context, types.Point, types.Point, string) (types.Money, error) {
	if p.fail {
		return types.Money{}, context.DeadlineExceeded
	}
	return types.Money{Amount: testPrice, Currency: types.DefaultCurrency}, nil
}

type fakeCommissions struct{}

func (fakeCommissions) DefaultCommission(context.Context) types.Money {
	return types.Money{Amount: testCommission, Currency: types.DefaultCurrency}
}

type fakeLedger struct {
	mu       sync.Mutex
	eligible bool
	decline  bool
	deducted []types.ID
	refunded []types.ID
}

func (l *fakeLedger) CanAcceptOrders(context.Context, types.ID) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.eligible, nil
}

func (l *fakeLedger) DeductCommission(_ context.Context, _ types.ID, _ types.Money, orderID types.ID) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.decline {
		return true, nil
	}
	l.deducted = append(l.deducted, orderID)
	return false, nil
}

func (l *fakeLedger) RefundCommission(_ context.Context, _ types.ID, _ types.Money, orderID types.ID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refunded = append(l.refunded, orderID)
	return nil
}

func (l *fakeLedger) setDecline(v bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.decline = v
}

func (l *fakeLedger) deductions() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.deducted)
}

func (l *fakeLedger) refunds() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.refunded)
}

func newTestService(t *testing.T, ledger Ledger) *Service {
	t.Helper()
	return NewService(setupTestStore(t), ServiceDeps{
		Pricer:      &fakePricer{},
		Ledger:      ledger,
		Commissions: fakeCommissions{},
	})
}

func mustCreateTaxi(t *testing.T, svc *Service, customer types.ID) *Order {
	t.Helper()
	o, err := svc.CreateTaxi(context.Background(), CreateTaxiCommand{
		CustomerID: customer,
		Pickup:     types.Point{Lat: 33.5138, Lng: 36.2765},
		Dropoff:    types.Point{Lat: 33.5102, Lng: 36.2913},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o
}

func assertStatus(t *testing.T, svc *Service, id types.ID, want Status) {
	t.Helper()
	o, err := svc.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if o.Status != want {
		t.Fatalf("status = %s, want %s", o.Status, want)
	}
}

func setupTestStore(t *testing.T) *Store {
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

	if _, err := db.Exec(ctx, "TRUNCATE TABLE order_status_logs, ratings, orders"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}

	return NewStore(db)
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
