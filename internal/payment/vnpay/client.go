// Package vnpay builds signed VNPay payment URLs and verifies gateway callbacks.
package vnpay

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	Version      = "2.1.0"
	CommandPay   = "pay"
	CurrencyVND  = "VND"
	LocaleVN     = "vn"
	OrderTypeAny = "other"

	ParamSecureHash     = "vnp_SecureHash"
	ParamSecureHashType = "vnp_SecureHashType"

	// ResponseSuccess is the gateway code for an approved transaction.
	ResponseSuccess = "00"

	dateLayout    = "20060102150405"
	defaultExpiry = 15 * time.Minute
)

var (
	ErrNotConfigured = errors.New("vnpay_not_configured")
	ErrInvalidTxnRef = errors.New("invalid_txn_ref")
	ErrInvalidAmount = errors.New("invalid_amount")
)

type Config struct {
	TmnCode    string
	HashSecret string
	PayURL     string
	ReturnURL  string
	Expiry     time.Duration
}

type Client struct {
	cfg Config
	loc *time.Location
}

func New(cfg Config) *Client {
	if cfg.Expiry <= 0 {
		cfg.Expiry = defaultExpiry
	}
	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	if err != nil {
		loc = time.FixedZone("ICT", 7*60*60)
	}
	return &Client{cfg: cfg, loc: loc}
}

// Configured reports whether the merchant credentials are present.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.TmnCode != "" && c.cfg.HashSecret != "" && c.cfg.PayURL != ""
}

type PaymentRequest struct {
	TxnRef    string
	OrderInfo string
	Amount    int64
	IPAddr    string
	BankCode  string
	CreatedAt time.Time
}

// BuildPaymentURL returns the redirect URL with vnp_SecureHash appended.
func (c *Client) BuildPaymentURL(req PaymentRequest) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	if strings.TrimSpace(req.TxnRef) == "" {
		return "", ErrInvalidTxnRef
	}
	if req.Amount < 0 {
		return "", ErrInvalidAmount
	}

	created := req.CreatedAt.In(c.loc)
	params := url.Values{}
	params.Set("vnp_Version", Version)
	params.Set("vnp_Command", CommandPay)
	params.Set("vnp_TmnCode", c.cfg.TmnCode)
	params.Set("vnp_Locale", LocaleVN)
	params.Set("vnp_CurrCode", CurrencyVND)
	params.Set("vnp_TxnRef", req.TxnRef)
	params.Set("vnp_OrderInfo", req.OrderInfo)
	params.Set("vnp_OrderType", OrderTypeAny)
	params.Set("vnp_Amount", strconv.FormatInt(req.Amount*100, 10))
	params.Set("vnp_ReturnUrl", c.cfg.ReturnURL)
	params.Set("vnp_IpAddr", req.IPAddr)
	params.Set("vnp_CreateDate", created.Format(dateLayout))
	params.Set("vnp_ExpireDate", created.Add(c.cfg.Expiry).Format(dateLayout))
	if code := strings.TrimSpace(req.BankCode); code != "" {
		params.Set("vnp_BankCode", code)
	}

	canonical := Canonical(params)
	return c.cfg.PayURL + "?" + canonical + "&" + ParamSecureHash + "=" + Sign(c.cfg.HashSecret, canonical), nil
}

// Verify recomputes the signature over every vnp_* parameter except the hash fields.
func (c *Client) Verify(params url.Values) bool {
	if c == nil || c.cfg.HashSecret == "" {
		return false
	}
	given := strings.ToLower(strings.TrimSpace(params.Get(ParamSecureHash)))
	if given == "" {
		return false
	}
	expected := Sign(c.cfg.HashSecret, Canonical(params))
	return hmac.Equal([]byte(given), []byte(expected))
}

var formEscaper = strings.NewReplacer("%2A", "*", "~", "%7E")

// Canonical sorts keys and form-encodes key=value pairs joined by '&'.
// The secure hash fields and repeated values are ignored. Escaping follows
// the WHATWG form encoder the gateway uses: '*' stays literal, '~' is escaped.
func Canonical(params url.Values) string {
	signed := url.Values{}
	for key := range params {
		if key == ParamSecureHash || key == ParamSecureHashType {
			continue
		}
		signed.Set(key, params.Get(key))
	}
	return formEscaper.Replace(signed.Encode())
}

// Sign returns the lowercase hex HMAC-SHA512 of data.
func Sign(secret, data string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// Callback is the parsed form of an IPN or return query.
type Callback struct {
	TxnRef            string
	OrderID           snowflake.ID
	Amount            int64
	HasAmount         bool
	ResponseCode      string
	TransactionStatus string
	TransactionNo     string
	BankCode          string
	PayDate           string
}

// Succeeded requires response code 00 and, when present, transaction status 00.
func (cb Callback) Succeeded() bool {
	if cb.ResponseCode != ResponseSuccess {
		return false
	}
	return cb.TransactionStatus == "" || cb.TransactionStatus == ResponseSuccess
}

// ParseCallback extracts the order id prefix of vnp_TxnRef and the amount in VND.
func ParseCallback(params url.Values) (Callback, error) {
	cb := Callback{
		TxnRef:            strings.TrimSpace(params.Get("vnp_TxnRef")),
		ResponseCode:      strings.TrimSpace(params.Get("vnp_ResponseCode")),
		TransactionStatus: strings.TrimSpace(params.Get("vnp_TransactionStatus")),
		TransactionNo:     strings.TrimSpace(params.Get("vnp_TransactionNo")),
		BankCode:          strings.TrimSpace(params.Get("vnp_BankCode")),
		PayDate:           strings.TrimSpace(params.Get("vnp_PayDate")),
	}

	orderID, err := OrderIDFromTxnRef(cb.TxnRef)
	if err != nil {
		return cb, err
	}
	cb.OrderID = orderID

	if raw := strings.TrimSpace(params.Get("vnp_Amount")); raw != "" {
		amount, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || amount < 0 || amount%100 != 0 {
			return cb, ErrInvalidAmount
		}
		cb.Amount = amount / 100
		cb.HasAmount = true
	}
	return cb, nil
}

// TxnRef formats <orderId>_<unixMillis>.
func TxnRef(orderID snowflake.ID, at time.Time) string {
	return orderID.String() + "_" + strconv.FormatInt(at.UnixMilli(), 10)
}

func OrderIDFromTxnRef(ref string) (snowflake.ID, error) {
	prefix, _, _ := strings.Cut(strings.TrimSpace(ref), "_")
	if prefix == "" {
		return 0, ErrInvalidTxnRef
	}
	id, err := snowflake.ParseString(prefix)
	if err != nil || id <= 0 {
		return 0, ErrInvalidTxnRef
	}
	return id, nil
}
