// README: Ledger service: top-ups, commission deductions, refunds, and the accept-eligibility gate.
package wallet

import (
	"context"
	"errors"
	"fmt"

	"dot/internal/logger"
	"dot/internal/types"
)

var (
	ErrNotFound            = errors.New("wallet not found")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
)

// Commissions resolves the current platform default commission.
type Commissions interface {
	DefaultCommission(ctx context.Context) types.Money
}

type Service struct {
	store       *Store
	commissions Commissions
	log         logger.Logger
}

func NewService(store *Store, commissions Commissions, log logger.Logger) *Service {
	return &Service{store: store, commissions: commissions, log: log}
}

func (s *Service) GetOrCreateWallet(ctx context.Context, userID types.ID) (*Wallet, error) {
	return s.store.GetOrCreate(ctx, userID)
}

// TopUp credits a driver's wallet. Admin-initiated: drivers pay cash at the
// office and an admin records it here. No upper bound is enforced.
func (s *Service) TopUp(ctx context.Context, driverID types.ID, amount types.Money, adminID types.ID) (*Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if _, err := s.store.GetOrCreate(ctx, driverID); err != nil {
		return nil, err
	}
	desc := fmt.Sprintf("Wallet top-up by admin %s", adminID)
	entry, err := s.store.Credit(ctx, driverID, amount, TxTopUp, desc, nil, &adminID)
	if err != nil {
		return nil, err
	}
	s.log.Info("wallet topped up",
		logger.String("driver_id", string(driverID)),
		logger.Int64("amount", amount.Amount))
	return entry, nil
}

// DeductCommission debits the commission for a completed order. A declined
// deduction is a normal business outcome reported as ErrInsufficientBalance;
// the caller must abort the transition that triggered it.
func (s *Service) DeductCommission(ctx context.Context, driverID types.ID, amount types.Money, orderID types.ID) (*Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if _, err := s.store.GetOrCreate(ctx, driverID); err != nil {
		return nil, err
	}
	desc := fmt.Sprintf("Commission for order %s", orderID)
	entry, ok, err := s.store.Debit(ctx, driverID, amount, desc, &orderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInsufficientBalance
	}
	return entry, nil
}

// Refund reverses a commission deduction. Compensation path for the rare case
// where the deduction committed but the completing transition lost its race.
func (s *Service) Refund(ctx context.Context, driverID types.ID, amount types.Money, orderID types.ID) (*Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	desc := fmt.Sprintf("Commission refund for order %s", orderID)
	entry, err := s.store.Credit(ctx, driverID, amount, TxRefund, desc, &orderID, nil)
	if err != nil {
		return nil, err
	}
	s.log.Warn("commission refunded",
		logger.String("driver_id", string(driverID)),
		logger.String("order_id", string(orderID)),
		logger.Int64("amount", amount.Amount))
	return entry, nil
}

// CanAcceptOrders is the admission-control gate: a driver may view and accept
// work only while the balance covers one default commission.
func (s *Service) CanAcceptOrders(ctx context.Context, driverID types.ID) (bool, error) {
	w, err := s.store.GetOrCreate(ctx, driverID)
	if err != nil {
		return false, err
	}
	return w.Balance.Amount >= s.commissions.DefaultCommission(ctx).Amount, nil
}

func (s *Service) GetBalance(ctx context.Context, userID types.ID) (types.Money, error) {
	w, err := s.store.GetOrCreate(ctx, userID)
	if err != nil {
		return types.Money{}, err
	}
	return w.Balance, nil
}

func (s *Service) GetTransactions(ctx context.Context, userID types.ID, limit int) ([]Transaction, error) {
	limit = clampTxLimit(limit)
	w, err := s.store.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.store.ListTransactions(ctx, w.ID, limit)
}

// clampTxLimit bounds a page size to [1, 200]; non-positive falls back to
// the default page of 50.
func clampTxLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 200 {
		return 200
	}
	return limit
}
