// Package service contains the synchronous half of the order pipeline:
// the place-order orchestration that turns an authenticated request into
// an admission verdict, plus the publisher that announces fulfilled
// orders to the message broker.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/voucher-flash-sale/internal/admission"
	"github.com/iliyamo/voucher-flash-sale/internal/model"
)

// Rejections returned by PlaceOrder.  These are expected, user-visible
// outcomes: the caller maps them to 4xx responses and must not retry.
var (
	ErrNotStarted     = errors.New("voucher sale has not started")
	ErrEnded          = errors.New("voucher sale has ended")
	ErrOutOfStock     = errors.New("voucher out of stock")
	ErrDuplicateOrder = errors.New("order already placed for this voucher")
)

// VoucherReader looks up voucher metadata for the window pre-check.
type VoucherReader interface {
	GetByID(ctx context.Context, id uint64) (model.Voucher, error)
}

// IDGenerator supplies the order id handed to the admission gate.
type IDGenerator interface {
	NextID(ctx context.Context, tag string) (int64, error)
}

// Admitter is the atomic admission gate.
type Admitter interface {
	Admit(ctx context.Context, voucherID, userID uint64, orderID int64) (admission.Verdict, error)
}

// OrderService orchestrates admission.  It owns no state of its own;
// correctness under contention lives entirely in the gate's script.
type OrderService struct {
	Vouchers VoucherReader
	IDs      IDGenerator
	Gate     Admitter

	now func() time.Time
}

// NewOrderService wires the orchestration over its collaborators.
func NewOrderService(vouchers VoucherReader, ids IDGenerator, gate Admitter) *OrderService {
	return &OrderService{Vouchers: vouchers, IDs: ids, Gate: gate, now: time.Now}
}

// PlaceOrder admits one order request and returns the order id the
// moment the request is accepted — before fulfillment completes, per
// the asynchronous confirmation model.  The sale-window comparison is a
// cheap pre-check for friendlier errors; stock outside the window is
// zero anyway, so correctness never depends on it.  Errors from the
// voucher lookup (including repository.ErrVoucherNotFound) pass through
// unwrapped so handlers can match on them.
func (s *OrderService) PlaceOrder(ctx context.Context, voucherID, userID uint64) (int64, error) {
	v, err := s.Vouchers.GetByID(ctx, voucherID)
	if err != nil {
		return 0, err
	}
	now := s.now().UTC()
	if now.Before(v.BeginTime) {
		return 0, ErrNotStarted
	}
	if now.After(v.EndTime) {
		return 0, ErrEnded
	}

	orderID, err := s.IDs.NextID(ctx, "order")
	if err != nil {
		return 0, err
	}

	verdict, err := s.Gate.Admit(ctx, voucherID, userID, orderID)
	if err != nil {
		return 0, err
	}
	switch verdict {
	case admission.Accepted:
		return orderID, nil
	case admission.OutOfStock:
		return 0, ErrOutOfStock
	case admission.DuplicateOrder:
		return 0, ErrDuplicateOrder
	}
	return 0, fmt.Errorf("unexpected admission verdict %v", verdict)
}
