package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-foodorder/internal/apperr"
)

const (
	apiVersion    = "2.1.0"
	dateLayout    = "20060102150405"
	currencyVND   = "VND"
	defaultLocale = "vn"

	fieldSecureHash     = "vnp_SecureHash"
	fieldSecureHashType = "vnp_SecureHashType"

	codeSuccess = "00"
)

// gatewayZone is the timezone of every timestamp exchanged with the gateway.
var gatewayZone = time.FixedZone("GMT+7", 7*60*60)

// Refund transaction types.
const (
	RefundFull    = "02"
	RefundPartial = "03"
)

type Config struct {
	TmnCode    string
	HashSecret string
	PayURL     string
	APIURL     string
	ReturnURL  string
	Timeout    time.Duration
}

// Gateway speaks the VNPay redirect and merchant API protocols.
type Gateway struct {
	cfg          Config
	signer       *Signer
	client       *http.Client
	nowFunc      func() time.Time
	newRequestID func() string
}

// NewGateway returns a Gateway. A nil client gets one bounded by cfg.Timeout.
func NewGateway(cfg Config, client *http.Client) *Gateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Gateway{
		cfg:          cfg,
		signer:       NewSigner(cfg.HashSecret),
		client:       client,
		nowFunc:      time.Now,
		newRequestID: func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
	}
}

func (g *Gateway) now() time.Time { return g.nowFunc().In(gatewayZone) }

// PaymentRequest describes one redirect to the gateway's payment page.
type PaymentRequest struct {
	TxnRef    string
	Amount    int64
	ClientIP  string
	BankCode  string
	Locale    string
	OrderInfo string
	CreatedAt time.Time
}

// BuildPaymentURL returns the signed redirect URL for req.
func (g *Gateway) BuildPaymentURL(req PaymentRequest) (string, error) {
	if req.TxnRef == "" || req.ClientIP == "" {
		return "", apperr.ErrValidation.WithMessage("transaction reference and client ip are required")
	}
	amount, err := toGatewayAmount(req.Amount)
	if err != nil {
		return "", err
	}
	locale := req.Locale
	if locale == "" {
		locale = defaultLocale
	}
	created := req.CreatedAt
	if created.IsZero() {
		created = g.now()
	}
	orderInfo := req.OrderInfo
	if orderInfo == "" {
		orderInfo = "Thanh toan don hang " + req.TxnRef
	}

	fields := map[string]string{
		"vnp_Version":    apiVersion,
		"vnp_Command":    "pay",
		"vnp_TmnCode":    g.cfg.TmnCode,
		"vnp_Locale":     locale,
		"vnp_CurrCode":   currencyVND,
		"vnp_TxnRef":     req.TxnRef,
		"vnp_OrderInfo":  orderInfo,
		"vnp_OrderType":  "other",
		"vnp_Amount":     amount,
		"vnp_ReturnUrl":  g.cfg.ReturnURL,
		"vnp_IpAddr":     req.ClientIP,
		"vnp_CreateDate": created.In(gatewayZone).Format(dateLayout),
	}
	if req.BankCode != "" {
		fields["vnp_BankCode"] = req.BankCode
	}

	query := SortedQuery(fields)
	return g.cfg.PayURL + "?" + query + "&" + fieldSecureHash + "=" + g.signer.Sign(query), nil
}

// ReturnResult is a verified callback from the gateway.
type ReturnResult struct {
	TxnRef            string
	Amount            int64
	ResponseCode      string
	TransactionStatus string
	TransactionNo     string
	BankCode          string
	PayDate           string
}

// Success reports whether the gateway says the money was taken.
func (r *ReturnResult) Success() bool {
	return r.ResponseCode == codeSuccess && r.TransactionStatus == codeSuccess
}

// VerifyReturn checks the signature of a browser return or IPN query. Every
// parameter except the signature fields is covered by the signature, so an
// added parameter fails verification like a changed one.
func (g *Gateway) VerifyReturn(q url.Values) (*ReturnResult, error) {
	sig := q.Get(fieldSecureHash)
	if sig == "" {
		return nil, apperr.ErrInvalidSignature.WithMessage("missing %s", fieldSecureHash)
	}
	fields := make(map[string]string, len(q))
	for k := range q {
		if k == fieldSecureHash || k == fieldSecureHashType {
			continue
		}
		if len(q[k]) != 1 {
			return nil, apperr.ErrInvalidSignature.WithMessage("parameter %s repeated", k)
		}
		fields[k] = q.Get(k)
	}
	if !g.signer.Verify(SortedQuery(fields), sig) {
		return nil, apperr.ErrInvalidSignature
	}

	amount, err := fromGatewayAmount(q.Get("vnp_Amount"))
	if err != nil {
		return nil, err
	}
	res := &ReturnResult{
		TxnRef:            q.Get("vnp_TxnRef"),
		Amount:            amount,
		ResponseCode:      q.Get("vnp_ResponseCode"),
		TransactionStatus: q.Get("vnp_TransactionStatus"),
		TransactionNo:     q.Get("vnp_TransactionNo"),
		BankCode:          q.Get("vnp_BankCode"),
		PayDate:           q.Get("vnp_PayDate"),
	}
	if res.TxnRef == "" {
		return nil, apperr.ErrValidation.WithMessage("missing vnp_TxnRef")
	}
	return res, nil
}

// toGatewayAmount renders whole VND in the gateway's x100 form.
func toGatewayAmount(vnd int64) (string, error) {
	if vnd <= 0 || vnd > math.MaxInt64/100 {
		return "", apperr.ErrInvalidAmount.WithMessage("amount %d is out of range", vnd)
	}
	return strconv.FormatInt(vnd*100, 10), nil
}

// fromGatewayAmount converts the gateway's x100 amount back to whole VND.
func fromGatewayAmount(raw string) (int64, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, apperr.ErrValidation.WithMessage("malformed vnp_Amount %q", raw)
	}
	vnd := d.Div(decimal.NewFromInt(100))
	if !vnd.IsInteger() || vnd.IsNegative() {
		return 0, apperr.ErrValidation.WithMessage("vnp_Amount %q is not a whole VND amount", raw)
	}
	return vnd.IntPart(), nil
}

// RefundRequest asks the gateway to return money for a settled payment.
type RefundRequest struct {
	TxnRef          string
	Amount          int64
	TransactionType string
	TransactionNo   string
	TransactionDate string
	CreateBy        string
	ClientIP        string
	OrderInfo       string
}

// APIResult is a verified merchant API response.
type APIResult struct {
	ResponseID        string `json:"vnp_ResponseId"`
	Command           string `json:"vnp_Command"`
	ResponseCode      string `json:"vnp_ResponseCode"`
	Message           string `json:"vnp_Message"`
	TmnCode           string `json:"vnp_TmnCode"`
	TxnRef            string `json:"vnp_TxnRef"`
	Amount            string `json:"vnp_Amount"`
	BankCode          string `json:"vnp_BankCode"`
	PayDate           string `json:"vnp_PayDate"`
	TransactionNo     string `json:"vnp_TransactionNo"`
	TransactionType   string `json:"vnp_TransactionType"`
	TransactionStatus string `json:"vnp_TransactionStatus"`
	OrderInfo         string `json:"vnp_OrderInfo"`
	PromotionCode     string `json:"vnp_PromotionCode"`
	PromotionAmount   string `json:"vnp_PromotionAmount"`
	SecureHash        string `json:"vnp_SecureHash"`
}

// Paid reports whether a query result shows a settled payment.
func (r *APIResult) Paid() bool {
	return r.ResponseCode == codeSuccess && r.TransactionStatus == codeSuccess
}

// Refund calls the refund command and waits for the verified answer. A timeout
// returns ErrGatewayTimeout: the refund may or may not have happened.
func (g *Gateway) Refund(ctx context.Context, req RefundRequest) (*APIResult, error) {
	amount, err := toGatewayAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	txType := req.TransactionType
	if txType == "" {
		txType = RefundFull
	}
	orderInfo := req.OrderInfo
	if orderInfo == "" {
		orderInfo = "Hoan tien don hang " + req.TxnRef
	}
	body := map[string]string{
		"vnp_RequestId":       g.newRequestID(),
		"vnp_Version":         apiVersion,
		"vnp_Command":         "refund",
		"vnp_TmnCode":         g.cfg.TmnCode,
		"vnp_TransactionType": txType,
		"vnp_TxnRef":          req.TxnRef,
		"vnp_Amount":          amount,
		"vnp_TransactionNo":   req.TransactionNo,
		"vnp_TransactionDate": req.TransactionDate,
		"vnp_CreateBy":        req.CreateBy,
		"vnp_CreateDate":      g.now().Format(dateLayout),
		"vnp_IpAddr":          req.ClientIP,
		"vnp_OrderInfo":       orderInfo,
	}
	body[fieldSecureHash] = g.signer.Sign(pipeJoin(
		body["vnp_RequestId"], body["vnp_Version"], body["vnp_Command"], body["vnp_TmnCode"],
		body["vnp_TransactionType"], body["vnp_TxnRef"], body["vnp_Amount"], body["vnp_TransactionNo"],
		body["vnp_TransactionDate"], body["vnp_CreateBy"], body["vnp_CreateDate"], body["vnp_IpAddr"],
		body["vnp_OrderInfo"],
	))

	res, err := g.call(ctx, body)
	if err != nil {
		return nil, err
	}
	data := pipeJoin(res.ResponseID, res.Command, res.ResponseCode, res.Message, res.TmnCode, res.TxnRef,
		res.Amount, res.BankCode, res.PayDate, res.TransactionNo, res.TransactionType, res.TransactionStatus,
		res.OrderInfo)
	return g.checkResult(res, data)
}

// QueryRequest looks up the gateway's view of a payment.
type QueryRequest struct {
	TxnRef          string
	TransactionDate string
	ClientIP        string
	OrderInfo       string
}

func (g *Gateway) QueryTransaction(ctx context.Context, req QueryRequest) (*APIResult, error) {
	orderInfo := req.OrderInfo
	if orderInfo == "" {
		orderInfo = "Truy van don hang " + req.TxnRef
	}
	body := map[string]string{
		"vnp_RequestId":       g.newRequestID(),
		"vnp_Version":         apiVersion,
		"vnp_Command":         "querydr",
		"vnp_TmnCode":         g.cfg.TmnCode,
		"vnp_TxnRef":          req.TxnRef,
		"vnp_TransactionDate": req.TransactionDate,
		"vnp_CreateDate":      g.now().Format(dateLayout),
		"vnp_IpAddr":          req.ClientIP,
		"vnp_OrderInfo":       orderInfo,
	}
	body[fieldSecureHash] = g.signer.Sign(pipeJoin(
		body["vnp_RequestId"], body["vnp_Version"], body["vnp_Command"], body["vnp_TmnCode"],
		body["vnp_TxnRef"], body["vnp_TransactionDate"], body["vnp_CreateDate"], body["vnp_IpAddr"],
		body["vnp_OrderInfo"],
	))

	res, err := g.call(ctx, body)
	if err != nil {
		return nil, err
	}
	data := pipeJoin(res.ResponseID, res.Command, res.ResponseCode, res.Message, res.TmnCode, res.TxnRef,
		res.Amount, res.BankCode, res.PayDate, res.TransactionNo, res.TransactionType, res.TransactionStatus,
		res.OrderInfo, res.PromotionCode, res.PromotionAmount)
	return g.checkResult(res, data)
}

func (g *Gateway) checkResult(res *APIResult, signed string) (*APIResult, error) {
	if !g.signer.Verify(signed, res.SecureHash) {
		return nil, apperr.ErrInvalidSignature.WithMessage("gateway response signature does not verify")
	}
	if res.ResponseCode != codeSuccess {
		return res, apperr.ErrGatewayRejected.WithMessage("gateway response %s: %s", res.ResponseCode, res.Message)
	}
	return res, nil
}

func (g *Gateway) call(ctx context.Context, body map[string]string) (*APIResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal gateway request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.APIURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, apperr.ErrGatewayTimeout.Wrap(err)
		}
		return nil, apperr.ErrGatewayUnreachable.Wrap(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		if isTimeout(err) {
			return nil, apperr.ErrGatewayTimeout.Wrap(err)
		}
		return nil, apperr.ErrGatewayUnreachable.Wrap(err)
	}
	if resp.StatusCode >= 500 {
		return nil, apperr.ErrGatewayUnreachable.WithMessage("gateway returned HTTP %d", resp.StatusCode)
	}
	if resp.StatusCode >= 300 {
		return nil, apperr.ErrGatewayRejected.WithMessage("gateway returned HTTP %d", resp.StatusCode)
	}

	var out APIResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, apperr.ErrGatewayRejected.WithMessage("malformed gateway response").Wrap(err)
	}
	return &out, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
