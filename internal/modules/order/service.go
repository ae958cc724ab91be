// README: Order service implements the dispatch state machine and its collaborator seams.
package order

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"time"

	"dot/internal/logger"
	"dot/internal/types"
)

var (
	ErrNotFound            = errors.New("order not found")
	ErrNotAvailable        = errors.New("order is not available")
	ErrNotAuthorized       = errors.New("not authorized")
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	ErrPricingUnavailable  = errors.New("could not calculate distance")
	ErrBadRequest          = errors.New("bad request")
)

// Pricer estimates a fare for a route. An error aborts order creation.
type Pricer interface {
	Estimate(ctx context.Context, pickup, dropoff types.Point, orderType string) (types.Money, error)
}

// Geocoder fills missing address strings; failures leave the address empty.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, p types.Point) (string, error)
}

// Ledger is the wallet boundary: eligibility gating, the commission debit at
// completion, and the compensating refund if the completing transition loses
// its race after the debit committed.
type Ledger interface {
	CanAcceptOrders(ctx context.Context, driverID types.ID) (bool, error)
	// DeductCommission returns declined=true when the balance is short;
	// declined is a business outcome, not an error.
	DeductCommission(ctx context.Context, driverID types.ID, amount types.Money, orderID types.ID) (declined bool, err error)
	RefundCommission(ctx context.Context, driverID types.ID, amount types.Money, orderID types.ID) error
}

// Commissions resolves the platform default commission frozen onto new orders.
type Commissions interface {
	DefaultCommission(ctx context.Context) types.Money
}

// Notifier receives transition events for real-time fan-out. Best-effort:
// implementations must never block or fail the transactional path.
type Notifier interface {
	OrderCreated(o *Order)
	OrderUpdated(o *Order)
}

// SMSSender delivers the recipient-location link for delivery orders.
type SMSSender interface {
	SendLocationLink(ctx context.Context, phone, token string, orderID types.ID) error
}

type Service struct {
	store       *Store
	pricer      Pricer
	geocoder    Geocoder
	ledger      Ledger
	commissions Commissions
	notifier    Notifier
	sms         SMSSender
	log         logger.Logger
}

type ServiceDeps struct {
	Pricer      Pricer
	Geocoder    Geocoder
	Ledger      Ledger
	Commissions Commissions
	Notifier    Notifier
	SMS         SMSSender
	Log         logger.Logger
}

func NewService(store *Store, deps ServiceDeps) *Service {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		store:       store,
		pricer:      deps.Pricer,
		geocoder:    deps.Geocoder,
		ledger:      deps.Ledger,
		commissions: deps.Commissions,
		notifier:    deps.Notifier,
		sms:         deps.SMS,
		log:         log,
	}
}

type CreateTaxiCommand struct {
	CustomerID     types.ID
	Pickup         types.Point
	Dropoff        types.Point
	PickupAddress  string
	DropoffAddress string
}

type CreateDeliveryCommand struct {
	CreateTaxiCommand
	RecipientName   string
	RecipientPhone  string
	ItemDescription string
	ItemPrice       *types.Money
}

type AcceptCommand struct {
	OrderID  types.ID
	DriverID types.ID
}

type AdvanceCommand struct {
	OrderID  types.ID
	DriverID types.ID
	To       Status
	Notes    string
}

type CancelCommand struct {
	OrderID types.ID
	ActorID types.ID
	Reason  string
}

// CreateTaxi prices the route and persists a pending taxi order with its
// creation audit entry. Pricing failure aborts the whole operation; nothing
// is persisted.
func (s *Service) CreateTaxi(ctx context.Context, cmd CreateTaxiCommand) (*Order, error) {
	return s.create(ctx, TypeTaxi, cmd, nil)
}

// CreateDelivery additionally mints the recipient-location token and fires
// the SMS link. SMS delivery is best-effort and never rolls back creation.
func (s *Service) CreateDelivery(ctx context.Context, cmd CreateDeliveryCommand) (*Order, error) {
	if cmd.RecipientPhone == "" {
		return nil, ErrBadRequest
	}
	return s.create(ctx, TypeDelivery, cmd.CreateTaxiCommand, &cmd)
}

func (s *Service) create(ctx context.Context, typ Type, cmd CreateTaxiCommand, delivery *CreateDeliveryCommand) (*Order, error) {
	if cmd.CustomerID == "" {
		return nil, ErrBadRequest
	}

	price, err := s.pricer.Estimate(ctx, cmd.Pickup, cmd.Dropoff, string(typ))
	if err != nil {
		return nil, ErrPricingUnavailable
	}

	o := &Order{
		ID:             newID(),
		Type:           typ,
		Status:         StatusPending,
		CustomerID:     cmd.CustomerID,
		Pickup:         cmd.Pickup,
		PickupAddress:  s.resolveAddress(ctx, cmd.PickupAddress, cmd.Pickup),
		Dropoff:        cmd.Dropoff,
		DropoffAddress: s.resolveAddress(ctx, cmd.DropoffAddress, cmd.Dropoff),
		EstimatedPrice: price,
		Commission:     s.commissions.DefaultCommission(ctx),
		CreatedAt:      time.Now().UTC(),
	}

	if delivery != nil {
		o.RecipientName = delivery.RecipientName
		o.RecipientPhone = delivery.RecipientPhone
		o.ItemDescription = delivery.ItemDescription
		o.ItemPrice = delivery.ItemPrice
		o.RecipientLocationToken = newLocationToken()
	}

	if err := s.store.Create(ctx, o); err != nil {
		return nil, err
	}

	s.notifyCreated(o)

	if delivery != nil && s.sms != nil {
		if err := s.sms.SendLocationLink(ctx, o.RecipientPhone, o.RecipientLocationToken, o.ID); err != nil {
			s.log.Warn("location link SMS failed",
				logger.String("order_id", string(o.ID)),
				logger.Err(err))
		}
	}
	return o, nil
}

// ListPending returns open orders for a driver, newest first. Drivers whose
// balance cannot cover one commission are turned away before any order data
// is read.
func (s *Service) ListPending(ctx context.Context, driverID types.ID) ([]*Order, error) {
	ok, err := s.ledger.CanAcceptOrders(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInsufficientBalance
	}
	return s.store.ListPending(ctx)
}

// Accept assigns the order to the driver. First accept wins: the CAS guard in
// the store lets exactly one of any number of concurrent attempts through.
func (s *Service) Accept(ctx context.Context, cmd AcceptCommand) (*Order, error) {
	eligible, err := s.ledger.CanAcceptOrders(ctx, cmd.DriverID)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return nil, ErrInsufficientBalance
	}

	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusPending {
		return nil, ErrNotAvailable
	}

	ok, err := s.store.ApplyTransition(ctx, Transition{
		OrderID:  o.ID,
		From:     StatusPending,
		To:       StatusAccepted,
		Version:  o.StatusVersion,
		Actor:    cmd.DriverID,
		DriverID: &cmd.DriverID,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		// Another driver observed PENDING first.
		return nil, ErrNotAvailable
	}

	updated, err := s.store.Get(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	s.notifyUpdated(updated)
	return updated, nil
}

// AdvanceStatus moves an order forward through pickup, transit, delivery, and
// completion. Only the assigned driver may advance. Completion deducts the
// commission first; a declined deduction rejects the whole transition and the
// order keeps its prior status.
func (s *Service) AdvanceStatus(ctx context.Context, cmd AdvanceCommand) (*Order, error) {
	if !driverStatuses[cmd.To] {
		return nil, ErrBadRequest
	}

	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if o.DriverID == nil || *o.DriverID != cmd.DriverID {
		return nil, ErrNotAuthorized
	}
	if !CanTransition(o.Status, cmd.To) {
		return nil, ErrNotAvailable
	}

	t := Transition{
		OrderID: o.ID,
		From:    o.Status,
		To:      cmd.To,
		Version: o.StatusVersion,
		Actor:   cmd.DriverID,
		Notes:   cmd.Notes,
	}

	if cmd.To == StatusCompleted {
		return s.complete(ctx, o, t)
	}

	ok, err := s.store.ApplyTransition(ctx, t)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotAvailable
	}

	updated, err := s.store.Get(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	s.notifyUpdated(updated)
	return updated, nil
}

// complete runs the completion ceremony: commission debit, then the guarded
// status write. If the write loses its race after the debit committed, the
// debit is compensated with a refund so the ledger stays consistent.
func (s *Service) complete(ctx context.Context, o *Order, t Transition) (*Order, error) {
	declined, err := s.ledger.DeductCommission(ctx, *o.DriverID, o.Commission, o.ID)
	if err != nil {
		return nil, err
	}
	if declined {
		return nil, ErrInsufficientBalance
	}

	final := o.EstimatedPrice
	if o.FinalPrice != nil {
		final = *o.FinalPrice
	}
	t.FinalPrice = &final

	ok, err := s.store.ApplyTransition(ctx, t)
	if err == nil && !ok {
		err = ErrNotAvailable
	}
	if err != nil {
		if refundErr := s.ledger.RefundCommission(ctx, *o.DriverID, o.Commission, o.ID); refundErr != nil {
			s.log.Error("commission refund failed after lost completion race",
				logger.String("order_id", string(o.ID)),
				logger.Err(refundErr))
		}
		return nil, err
	}

	updated, err := s.store.Get(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	s.notifyUpdated(updated)
	return updated, nil
}

// Cancel is allowed for the order's customer or assigned driver, from any
// non-terminal status. No commission is charged for cancelled orders.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) (*Order, error) {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if cmd.ActorID != o.CustomerID && (o.DriverID == nil || *o.DriverID != cmd.ActorID) {
		return nil, ErrNotAuthorized
	}
	if IsTerminal(o.Status) || !CanTransition(o.Status, StatusCancelled) {
		return nil, ErrNotAvailable
	}

	ok, err := s.store.ApplyTransition(ctx, Transition{
		OrderID:     o.ID,
		From:        o.Status,
		To:          StatusCancelled,
		Version:     o.StatusVersion,
		Actor:       cmd.ActorID,
		Notes:       cmd.Reason,
		CancelledBy: &cmd.ActorID,
		Reason:      cmd.Reason,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotAvailable
	}

	updated, err := s.store.Get(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	s.notifyUpdated(updated)
	return updated, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Order, error) {
	return s.store.Get(ctx, id)
}

// GetByLocationToken resolves a delivery order for the recipient link. The
// token itself is the authorization.
func (s *Service) GetByLocationToken(ctx context.Context, token string) (*Order, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	return s.store.GetByLocationToken(ctx, token)
}

// SetRecipientLocation lets the delivery recipient drop a pin through the
// SMS link, replacing the customer's guess at the dropoff. Allowed only
// before pickup; after that the driver is already en route to the old pin.
func (s *Service) SetRecipientLocation(ctx context.Context, token string, p types.Point, address string) (*Order, error) {
	o, err := s.GetByLocationToken(ctx, token)
	if err != nil {
		return nil, err
	}
	ok, err := s.store.SetDropoffByToken(ctx, token, p, address)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotAvailable
	}
	updated, err := s.store.Get(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	s.notifyUpdated(updated)
	return updated, nil
}

// GetHistory returns the complete audit trail, timestamp ascending. Dispute
// resolution relies on this being append-only and gap-free.
func (s *Service) GetHistory(ctx context.Context, orderID types.ID) ([]StatusLog, error) {
	if _, err := s.store.Get(ctx, orderID); err != nil {
		return nil, err
	}
	return s.store.ListLogs(ctx, orderID)
}

func (s *Service) ListByUser(ctx context.Context, userID types.ID, role types.Role) ([]*Order, error) {
	if role == types.RoleDriver {
		return s.store.ListByDriver(ctx, userID)
	}
	return s.store.ListByCustomer(ctx, userID)
}

func (s *Service) ListSince(ctx context.Context, since time.Time, status Status) ([]*Order, error) {
	return s.store.ListSince(ctx, since, status)
}

func (s *Service) notifyCreated(o *Order) {
	if s.notifier != nil {
		s.notifier.OrderCreated(o)
	}
}

func (s *Service) notifyUpdated(o *Order) {
	if s.notifier != nil {
		s.notifier.OrderUpdated(o)
	}
}

func (s *Service) resolveAddress(ctx context.Context, given string, p types.Point) string {
	if given != "" || s.geocoder == nil {
		return given
	}
	addr, err := s.geocoder.ReverseGeocode(ctx, p)
	if err != nil {
		s.log.Debug("reverse geocode failed", logger.Err(err))
		return ""
	}
	return addr
}

func newID() types.ID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return types.ID(hex.EncodeToString(b[:]))
}

// newLocationToken mints the unguessable one-time token a delivery recipient
// uses to submit their location out-of-band.
func newLocationToken() string {
	var b [32]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}
