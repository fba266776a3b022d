package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Gateway response codes for the IPN contract. The gateway stops retrying
// once it receives a definitive code, so every failure path must answer with
// one of these instead of an HTTP error.
const (
	IPNCodeSuccess          = "00"
	IPNCodeOrderNotFound    = "01"
	IPNCodeAlreadyConfirmed = "02"
	IPNCodeInvalidChecksum  = "97"
	IPNCodeUnknownError     = "99"
)

// IPNResponse is the {RspCode, Message} pair the gateway expects back from
// the notification endpoint.
type IPNResponse struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

const (
	vnpVersion        = "2.1.0"
	vnpCommandPay     = "pay"
	vnpDefaultLocale  = "vn"
	vnpDefaultCurr    = "VND"
	vnpOrderTypeOther = "other"
	vnpTimeLayout     = "20060102150405"

	paramSecureHash     = "vnp_SecureHash"
	paramSecureHashType = "vnp_SecureHashType"
	paramResponseCode   = "vnp_ResponseCode"
	paramTxnStatus      = "vnp_TransactionStatus"
	paramTxnRef         = "vnp_TxnRef"
	paramTransactionNo  = "vnp_TransactionNo"
	paramAmount         = "vnp_Amount"
	paramPayDate        = "vnp_PayDate"
)

// Gateway clock offset: VNPay timestamps are expressed in Vietnam local time.
var vnpZone = time.FixedZone("GMT+7", 7*60*60)

// VNPayConfig carries the merchant credentials and endpoints for the gateway.
type VNPayConfig struct {
	TmnCode    string
	HashSecret string
	PayURL     string
	ReturnURL  string
	Locale     string
	Currency   string
}

// VNPayGateway builds signed payment-redirect URLs and verifies signed
// callbacks using the gateway's HMAC-SHA512 query protocol.
type VNPayGateway struct {
	cfg VNPayConfig
	now func() time.Time
}

// VNPayOption customises optional gateway behaviour.
type VNPayOption func(*VNPayGateway)

// WithVNPayClock injects a custom clock, primarily for tests.
func WithVNPayClock(clock func() time.Time) VNPayOption {
	return func(g *VNPayGateway) {
		if clock != nil {
			g.now = clock
		}
	}
}

// NewVNPayGateway validates the merchant configuration and returns a gateway.
func NewVNPayGateway(cfg VNPayConfig, opts ...VNPayOption) (*VNPayGateway, error) {
	cfg.TmnCode = strings.TrimSpace(cfg.TmnCode)
	cfg.HashSecret = strings.TrimSpace(cfg.HashSecret)
	cfg.PayURL = strings.TrimSpace(cfg.PayURL)
	cfg.ReturnURL = strings.TrimSpace(cfg.ReturnURL)
	if cfg.TmnCode == "" {
		return nil, errors.New("vnpay: merchant code is required")
	}
	if cfg.HashSecret == "" {
		return nil, errors.New("vnpay: hash secret is required")
	}
	if cfg.PayURL == "" {
		return nil, errors.New("vnpay: pay url is required")
	}
	if cfg.ReturnURL == "" {
		return nil, errors.New("vnpay: return url is required")
	}
	if cfg.Locale == "" {
		cfg.Locale = vnpDefaultLocale
	}
	if cfg.Currency == "" {
		cfg.Currency = vnpDefaultCurr
	}

	g := &VNPayGateway{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g, nil
}

// PaymentURLRequest describes one outbound redirect to the gateway. TxnRef is
// the order id itself so callbacks survive restarts without any correlation
// table.
type PaymentURLRequest struct {
	TxnRef    string
	Amount    float64
	OrderInfo string
	ClientIP  string
	CreatedAt time.Time
}

// BuildPaymentURL assembles the signed redirect URL for the gateway.
func (g *VNPayGateway) BuildPaymentURL(req PaymentURLRequest) (string, error) {
	if g == nil {
		return "", errors.New("vnpay: gateway is nil")
	}
	txnRef := strings.TrimSpace(req.TxnRef)
	if txnRef == "" {
		return "", errors.New("vnpay: transaction reference is required")
	}
	if req.Amount <= 0 {
		return "", fmt.Errorf("vnpay: amount must be positive, got %v", req.Amount)
	}

	createdAt := req.CreatedAt
	if createdAt.IsZero() {
		createdAt = g.now()
	}

	orderInfo := strings.TrimSpace(req.OrderInfo)
	if orderInfo == "" {
		orderInfo = "Thanh toan don hang " + txnRef
	}

	params := map[string]string{
		"vnp_Version":   vnpVersion,
		"vnp_Command":   vnpCommandPay,
		"vnp_TmnCode":   g.cfg.TmnCode,
		"vnp_Locale":    g.cfg.Locale,
		"vnp_CurrCode":  g.cfg.Currency,
		paramTxnRef:     txnRef,
		"vnp_OrderInfo": orderInfo,
		"vnp_OrderType": vnpOrderTypeOther,
		// Gateway wire format carries the amount scaled by 100.
		paramAmount:     strconv.FormatInt(int64(math.Round(req.Amount*100)), 10),
		"vnp_ReturnUrl":  g.cfg.ReturnURL,
		"vnp_IpAddr":     normalizeClientIP(req.ClientIP),
		"vnp_CreateDate": createdAt.In(vnpZone).Format(vnpTimeLayout),
	}
	params[paramSecureHash] = g.sign(params)

	return g.cfg.PayURL + "?" + encodeSortedQuery(params), nil
}

// VerifyCallback checks the HMAC signature over an inbound callback
// parameter set. Both the return redirect and the IPN use this check.
func (g *VNPayGateway) VerifyCallback(query url.Values) bool {
	if g == nil {
		return false
	}
	received := strings.TrimSpace(query.Get(paramSecureHash))
	if received == "" {
		return false
	}

	params := make(map[string]string, len(query))
	for key := range query {
		if key == paramSecureHash || key == paramSecureHashType {
			continue
		}
		params[key] = query.Get(key)
	}

	expected := g.sign(params)
	return hmac.Equal([]byte(strings.ToLower(received)), []byte(expected))
}

// sign computes the lowercase hex HMAC-SHA512 over the sorted key=value
// concatenation. The secure-hash fields must already be absent.
func (g *VNPayGateway) sign(params map[string]string) string {
	mac := hmac.New(sha512.New, []byte(g.cfg.HashSecret))
	mac.Write([]byte(encodeSortedQuery(params)))
	return hex.EncodeToString(mac.Sum(nil))
}

// encodeSortedQuery renders the parameter set as key=value&... with keys in
// lexical order and values query-escaped (space as '+'), matching the string
// the gateway signs on its side.
func encodeSortedQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[key]))
	}
	return b.String()
}

// CallbackSuccessful reports whether both the response code and the
// transaction status signal a completed payment.
func CallbackSuccessful(query url.Values) bool {
	return query.Get(paramResponseCode) == "00" && query.Get(paramTxnStatus) == "00"
}

// CallbackTxnRef extracts the order reference from a callback.
func CallbackTxnRef(query url.Values) string {
	return strings.TrimSpace(query.Get(paramTxnRef))
}

// CallbackTransactionNo extracts the gateway's own transaction number.
func CallbackTransactionNo(query url.Values) string {
	return strings.TrimSpace(query.Get(paramTransactionNo))
}

// CallbackAmount extracts the amount from a callback, undoing the 100x wire
// scaling. Returns false when the parameter is absent or malformed.
func CallbackAmount(query url.Values) (float64, bool) {
	raw := strings.TrimSpace(query.Get(paramAmount))
	if raw == "" {
		return 0, false
	}
	scaled, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return float64(scaled) / 100, true
}

// CallbackResponseCode extracts the gateway response code.
func CallbackResponseCode(query url.Values) string {
	return strings.TrimSpace(query.Get(paramResponseCode))
}

// CallbackPayDate parses the gateway's yyyyMMddHHmmss timestamp, falling
// back to the provided instant when the field is missing or malformed.
func CallbackPayDate(query url.Values, fallback time.Time) time.Time {
	return ParseGatewayTime(query.Get(paramPayDate), fallback)
}

// ParseGatewayTime parses a yyyyMMddHHmmss gateway timestamp in GMT+7.
func ParseGatewayTime(value string, fallback time.Time) time.Time {
	value = strings.TrimSpace(value)
	if len(value) != len(vnpTimeLayout) {
		return fallback
	}
	parsed, err := time.ParseInLocation(vnpTimeLayout, value, vnpZone)
	if err != nil {
		return fallback
	}
	return parsed.UTC()
}

// normalizeClientIP maps the IPv6 loopback onto its IPv4 form; the gateway
// rejects "::1".
func normalizeClientIP(ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" || ip == "::1" {
		return "127.0.0.1"
	}
	return ip
}

// CreateCheckoutSession implements Provider by building a redirect URL for
// the gateway. Amounts arrive in minor units from the manager contract.
func (g *VNPayGateway) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error) {
	if g == nil {
		return CheckoutSession{}, errors.New("vnpay: gateway is nil")
	}
	ref := strings.TrimSpace(req.Metadata["orderId"])
	if ref == "" {
		ref = strings.TrimSpace(req.IdempotencyKey)
	}
	redirect, err := g.BuildPaymentURL(PaymentURLRequest{
		TxnRef:    ref,
		Amount:    float64(req.Amount) / 100,
		OrderInfo: strings.TrimSpace(req.Metadata["orderInfo"]),
		ClientIP:  strings.TrimSpace(req.Metadata["clientIp"]),
	})
	if err != nil {
		return CheckoutSession{}, err
	}
	return CheckoutSession{
		ID:          ref,
		Provider:    "vnpay",
		RedirectURL: redirect,
		ExpiresAt:   g.now().Add(15 * time.Minute),
	}, nil
}

// Refund is not supported by the redirect gateway; refunds are settled
// through the merchant portal.
func (g *VNPayGateway) Refund(ctx context.Context, req RefundRequest) (PaymentDetails, error) {
	return PaymentDetails{}, fmt.Errorf("%w: vnpay refunds are manual", ErrUnsupportedProvider)
}

// LookupPayment is not supported; reconciliation is driven by the IPN.
func (g *VNPayGateway) LookupPayment(ctx context.Context, req LookupRequest) (PaymentDetails, error) {
	return PaymentDetails{}, fmt.Errorf("%w: vnpay lookup is IPN driven", ErrUnsupportedProvider)
}

var _ Provider = (*VNPayGateway)(nil)
