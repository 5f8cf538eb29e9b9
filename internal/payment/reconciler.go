package payment

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/imrishuroy/go-foodorder/internal/apperr"
	"github.com/imrishuroy/go-foodorder/internal/orders"
)

// Orders is the part of the order lifecycle the reconciler drives. Payment never
// writes order status itself.
type Orders interface {
	GetOrder(ctx context.Context, orderID string, actor orders.Actor) (*orders.Order, error)
	ConfirmPayment(ctx context.Context, orderID string, amount int64) (*orders.Order, error)
	MarkRefunded(ctx context.Context, orderID string) (*orders.Order, error)
}

// Metrics counts reconciliation outcomes.
type Metrics interface {
	Count(ctx context.Context, name string, dims map[string]string)
}

// Metric names.
const (
	MetricSignatureInvalid = "PaymentSignatureInvalid"
	MetricConfirmed        = "PaymentConfirmed"
	MetricFailed           = "PaymentFailed"
	MetricAmountMismatch   = "PaymentAmountMismatch"
	MetricOrphaned         = "PaymentOrphaned"
	MetricRefunded         = "PaymentRefunded"
	MetricGatewayError     = "PaymentGatewayError"
)

var systemActor = orders.Actor{Admin: true}

type Reconciler struct {
	gateway *Gateway
	store   *Store
	orders  Orders
	metrics Metrics
	log     *slog.Logger
	newRef  func() string
}

func NewReconciler(gateway *Gateway, store *Store, orderSvc Orders, metrics Metrics, log *slog.Logger) *Reconciler {
	return &Reconciler{
		gateway: gateway,
		store:   store,
		orders:  orderSvc,
		metrics: metrics,
		log:     log.With(slog.String("component", "payment")),
		newRef:  func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
	}
}

type CreateInput struct {
	OrderID  string
	ClientIP string
	BankCode string
	Locale   string
}

// Redirect is where the client must send the customer to pay.
type Redirect struct {
	OrderID    string `json:"order_id"`
	TxnRef     string `json:"txn_ref"`
	Amount     int64  `json:"amount"`
	PaymentURL string `json:"payment_url"`
}

// CreatePayment opens a payment attempt for the caller's own pending order.
func (r *Reconciler) CreatePayment(ctx context.Context, actor orders.Actor, in CreateInput) (*Redirect, error) {
	o, err := r.orders.GetOrder(ctx, in.OrderID, actor)
	if err != nil {
		return nil, err
	}
	if o.UserID != actor.UserID {
		return nil, apperr.ErrForbidden.WithMessage("only the order owner can pay for it")
	}
	if o.Status != orders.StatusPending || o.PaymentStatus != orders.PaymentUnpaid {
		return nil, apperr.ErrInvalidTransition.WithMessage("order is %s/%s and cannot be paid", o.Status, o.PaymentStatus)
	}

	now := r.gateway.now()
	txn := &Transaction{
		TxnRef:     r.newRef(),
		OrderID:    o.ID,
		Amount:     o.Total,
		CreateDate: now.Format(dateLayout),
		Status:     TxnPending,
	}
	payURL, err := r.gateway.BuildPaymentURL(PaymentRequest{
		TxnRef:    txn.TxnRef,
		Amount:    txn.Amount,
		ClientIP:  in.ClientIP,
		BankCode:  in.BankCode,
		Locale:    in.Locale,
		CreatedAt: now,
	})
	if err != nil {
		return nil, err
	}
	if err := r.store.Create(ctx, txn); err != nil {
		return nil, apperr.Storage("create payment transaction", err)
	}
	r.log.Info("payment started", slog.String("order_id", o.ID), slog.String("txn_ref", txn.TxnRef), slog.Int64("amount", txn.Amount))
	return &Redirect{OrderID: o.ID, TxnRef: txn.TxnRef, Amount: txn.Amount, PaymentURL: payURL}, nil
}

// Attempts lists the payment attempts of an order visible to actor, oldest first.
func (r *Reconciler) Attempts(ctx context.Context, actor orders.Actor, orderID string) ([]Transaction, error) {
	if _, err := r.orders.GetOrder(ctx, orderID, actor); err != nil {
		return nil, err
	}
	out, err := r.store.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, apperr.Storage("list payment transactions", err)
	}
	return out, nil
}

// Outcome is what the customer sees after returning from the gateway.
type Outcome struct {
	OrderID       string               `json:"order_id"`
	TxnRef        string               `json:"txn_ref"`
	Paid          bool                 `json:"paid"`
	ResponseCode  string               `json:"response_code"`
	Message       string               `json:"message"`
	OrderStatus   orders.Status        `json:"order_status"`
	PaymentStatus orders.PaymentStatus `json:"payment_status"`
}

// HandleReturn processes the browser redirect. An unverified callback is
// rejected outright and never touches the order.
func (r *Reconciler) HandleReturn(ctx context.Context, q url.Values) (*Outcome, error) {
	res, err := r.verify(ctx, q, "return")
	if err != nil {
		return nil, err
	}
	if _, err := r.settle(ctx, res, "return"); err != nil && !errors.Is(err, ErrAlreadySettled) {
		return nil, err
	}

	txn, err := r.store.Get(ctx, res.TxnRef)
	if err != nil || txn == nil {
		return nil, apperr.Storage("reload payment transaction", err)
	}
	o, err := r.orders.GetOrder(ctx, txn.OrderID, systemActor)
	if err != nil {
		return nil, err
	}
	return &Outcome{
		OrderID:       o.ID,
		TxnRef:        txn.TxnRef,
		Paid:          txn.Status == TxnPaid,
		ResponseCode:  res.ResponseCode,
		Message:       DescribeResponse(res.ResponseCode),
		OrderStatus:   o.Status,
		PaymentStatus: o.PaymentStatus,
	}, nil
}

// HandleIPN processes the gateway's server-to-server notification and always
// returns an acknowledgement for it.
func (r *Reconciler) HandleIPN(ctx context.Context, q url.Values) IPNResponse {
	res, err := r.verify(ctx, q, "ipn")
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidSignature) {
			return IPNResponse{RspCode: IPNInvalidChecksum, Message: "Invalid Checksum"}
		}
		return IPNResponse{RspCode: IPNUnknownError, Message: "Invalid request"}
	}

	_, err = r.settle(ctx, res, "ipn")
	switch {
	case err == nil:
		return IPNResponse{RspCode: IPNConfirmed, Message: "Confirm Success"}
	case errors.Is(err, apperr.ErrOrderNotFound):
		return IPNResponse{RspCode: IPNOrderNotFound, Message: "Order not found"}
	case errors.Is(err, apperr.ErrInvalidAmount):
		return IPNResponse{RspCode: IPNInvalidAmount, Message: "Invalid amount"}
	case errors.Is(err, ErrAlreadySettled), errors.Is(err, apperr.ErrInvalidTransition):
		return IPNResponse{RspCode: IPNAlreadyConfirmed, Message: "Order already confirmed"}
	default:
		r.log.Error("ipn processing failed", slog.String("txn_ref", res.TxnRef), slog.Any("error", err))
		return IPNResponse{RspCode: IPNUnknownError, Message: "Unknown error"}
	}
}

func (r *Reconciler) verify(ctx context.Context, q url.Values, source string) (*ReturnResult, error) {
	res, err := r.gateway.VerifyReturn(q)
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidSignature) {
			r.log.Warn("payment callback signature rejected, possible tampering",
				slog.String("source", source), slog.String("txn_ref", q.Get("vnp_TxnRef")))
			r.count(ctx, MetricSignatureInvalid, source)
		}
		return nil, err
	}
	return res, nil
}

// settle applies a verified gateway verdict. The transaction row decides which
// callback wins; only the winner may confirm the order.
func (r *Reconciler) settle(ctx context.Context, res *ReturnResult, source string) (*orders.Order, error) {
	txn, err := r.store.Get(ctx, res.TxnRef)
	if err != nil {
		return nil, apperr.Storage("get payment transaction", err)
	}
	if txn == nil {
		return nil, apperr.ErrOrderNotFound.WithMessage("no payment for reference %s", res.TxnRef)
	}
	if res.Amount != txn.Amount {
		r.log.Warn("payment amount mismatch", slog.String("txn_ref", txn.TxnRef), slog.Int64("expected", txn.Amount), slog.Int64("got", res.Amount))
		r.count(ctx, MetricAmountMismatch, source)
		return nil, apperr.ErrInvalidAmount
	}

	to := TxnFailed
	if res.Success() {
		to = TxnPaid
	}
	if err := r.store.Settle(ctx, txn.TxnRef, to, res); err != nil {
		if !errors.Is(err, ErrAlreadySettled) {
			return nil, apperr.Storage("settle payment transaction", err)
		}
		if to != TxnPaid {
			return nil, err
		}
		return r.resume(ctx, txn.TxnRef, source)
	}

	if to == TxnFailed {
		r.log.Info("payment failed", slog.String("order_id", txn.OrderID), slog.String("txn_ref", txn.TxnRef), slog.String("response_code", res.ResponseCode))
		r.count(ctx, MetricFailed, source)
		return nil, nil
	}
	return r.confirm(ctx, txn, source)
}

// resume finishes an attempt that was settled as paid while its order
// confirmation did not commit. Anything else is ErrAlreadySettled.
func (r *Reconciler) resume(ctx context.Context, txnRef, source string) (*orders.Order, error) {
	txn, err := r.store.Get(ctx, txnRef)
	if err != nil || txn == nil {
		return nil, apperr.Storage("reload payment transaction", err)
	}
	if txn.Status != TxnPaid {
		return nil, ErrAlreadySettled
	}
	o, err := r.orders.GetOrder(ctx, txn.OrderID, systemActor)
	if err != nil {
		return nil, err
	}
	if o.Status != orders.StatusPending || o.PaymentStatus != orders.PaymentUnpaid {
		return nil, ErrAlreadySettled
	}
	r.log.Warn("resuming confirmation of a paid attempt", slog.String("order_id", txn.OrderID), slog.String("txn_ref", txn.TxnRef), slog.String("source", source))
	return r.confirm(ctx, txn, source)
}

func (r *Reconciler) confirm(ctx context.Context, txn *Transaction, source string) (*orders.Order, error) {
	o, err := r.orders.ConfirmPayment(ctx, txn.OrderID, txn.Amount)
	if err == nil {
		r.count(ctx, MetricConfirmed, source)
		return o, nil
	}
	attrs := []any{slog.String("order_id", txn.OrderID), slog.String("txn_ref", txn.TxnRef), slog.Any("error", err)}
	if apperr.KindOf(err) == apperr.KindStorage {
		// the gateway retries on 99 and the retry resumes here
		r.log.Error("payment captured but order confirmation failed", attrs...)
		return nil, err
	}
	r.log.Error("payment captured but order not confirmed, refund required", attrs...)
	r.count(ctx, MetricOrphaned, source)
	return nil, err
}

// RefundOutcome reports a completed refund.
type RefundOutcome struct {
	Order   *orders.Order `json:"order"`
	Gateway *APIResult    `json:"gateway"`
}

// Refund returns the money of a paid order. On ErrGatewayTimeout nothing is
// recorded locally; QueryTransaction tells whether the refund went through.
func (r *Reconciler) Refund(ctx context.Context, actor orders.Actor, createdBy, orderID, clientIP string) (*RefundOutcome, error) {
	if !actor.Admin {
		return nil, apperr.ErrForbidden
	}
	o, err := r.orders.GetOrder(ctx, orderID, actor)
	if err != nil {
		return nil, err
	}
	if o.PaymentStatus != orders.PaymentPaid {
		return nil, apperr.ErrInvalidTransition.WithMessage("order payment is %s, only paid orders can be refunded", o.PaymentStatus)
	}
	txn, err := r.store.Latest(ctx, orderID, TxnPaid)
	if err != nil {
		return nil, apperr.Storage("find paid transaction", err)
	}
	if txn == nil {
		return nil, apperr.ErrInvalidTransition.WithMessage("order has no settled payment")
	}

	txDate := txn.PayDate
	if txDate == "" {
		txDate = txn.CreateDate
	}
	res, err := r.gateway.Refund(ctx, RefundRequest{
		TxnRef:          txn.TxnRef,
		Amount:          txn.Amount,
		TransactionType: RefundFull,
		TransactionNo:   txn.TransactionNo,
		TransactionDate: txDate,
		CreateBy:        createdBy,
		ClientIP:        clientIP,
	})
	if err != nil {
		r.gatewayFailure(ctx, "refund", orderID, err)
		return nil, err
	}

	if err := r.store.MarkRefunded(ctx, txn.TxnRef); err != nil && !errors.Is(err, ErrAlreadySettled) {
		return nil, apperr.Storage("mark transaction refunded", err)
	}
	updated, err := r.orders.MarkRefunded(ctx, orderID)
	if err != nil {
		return nil, err
	}
	r.log.Info("payment refunded", slog.String("order_id", orderID), slog.String("txn_ref", txn.TxnRef), slog.String("by", createdBy))
	r.count(ctx, MetricRefunded, "refund")
	return &RefundOutcome{Order: updated, Gateway: res}, nil
}

// QueryOutcome is the gateway's view of the latest attempt for an order.
type QueryOutcome struct {
	Transaction *Transaction `json:"transaction"`
	Gateway     *APIResult   `json:"gateway"`
	Reconciled  bool         `json:"reconciled"`
}

// QueryTransaction asks the gateway about the order's latest attempt. A pending
// attempt the gateway reports as paid is settled on the spot, and a paid attempt
// whose order is still unpaid gets its confirmation finished.
func (r *Reconciler) QueryTransaction(ctx context.Context, actor orders.Actor, orderID, clientIP string) (*QueryOutcome, error) {
	if !actor.Admin {
		return nil, apperr.ErrForbidden
	}
	if _, err := r.orders.GetOrder(ctx, orderID, actor); err != nil {
		return nil, err
	}
	txn, err := r.store.Latest(ctx, orderID, "")
	if err != nil {
		return nil, apperr.Storage("find payment transaction", err)
	}
	if txn == nil {
		return nil, apperr.New(apperr.KindNotFound, "payment_not_found", "order has no payment attempts")
	}

	res, err := r.gateway.QueryTransaction(ctx, QueryRequest{
		TxnRef:          txn.TxnRef,
		TransactionDate: txn.CreateDate,
		ClientIP:        clientIP,
	})
	if err != nil {
		r.gatewayFailure(ctx, "querydr", orderID, err)
		return nil, err
	}

	out := &QueryOutcome{Transaction: txn, Gateway: res}
	if (txn.Status == TxnPending || txn.Status == TxnPaid) && res.Paid() {
		amount, err := fromGatewayAmount(res.Amount)
		if err != nil {
			return nil, err
		}
		_, err = r.settle(ctx, &ReturnResult{
			TxnRef:            txn.TxnRef,
			Amount:            amount,
			ResponseCode:      res.ResponseCode,
			TransactionStatus: res.TransactionStatus,
			TransactionNo:     res.TransactionNo,
			BankCode:          res.BankCode,
			PayDate:           res.PayDate,
		}, "querydr")
		if err != nil && !errors.Is(err, ErrAlreadySettled) {
			return nil, err
		}
		out.Reconciled = err == nil
		if fresh, getErr := r.store.Get(ctx, txn.TxnRef); getErr == nil && fresh != nil {
			out.Transaction = fresh
		}
	}
	return out, nil
}

func (r *Reconciler) gatewayFailure(ctx context.Context, command, orderID string, err error) {
	attrs := []any{slog.String("command", command), slog.String("order_id", orderID), slog.Any("error", err)}
	if errors.Is(err, apperr.ErrGatewayTimeout) {
		r.log.Warn("gateway call timed out, outcome unknown", attrs...)
	} else {
		r.log.Error("gateway call failed", attrs...)
	}
	r.count(ctx, MetricGatewayError, command)
}

func (r *Reconciler) count(ctx context.Context, name, source string) {
	if r.metrics == nil {
		return
	}
	// metrics must not hold up the callback acknowledgement
	mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	r.metrics.Count(mctx, name, map[string]string{"Source": source})
}
