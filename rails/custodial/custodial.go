package custodial

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/RogueTeam/remit/rails"
	"github.com/gabstv/httpdigest"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const IdempotencyHeader = "Idempotency-Key"

// Paths of the custodian's REST API
const (
	PaymentsPath  = "/v1/payments"
	TransfersPath = "/v1/transfers"
	PayoutsPath   = "/v1/payouts"
	RatesPath     = "/v1/rates"
)

const DefaultRequestsPerSecond = 10

type (
	Credentials struct {
		Username string
		Password string
	}
	Config struct {
		// Base URL of the custodian API
		Url string
		// Optional. A client with digest authentication is built from Credentials when nil
		Client      *http.Client
		Credentials *Credentials
		// Outbound request budget. The custodian rejects bursts with 429
		RequestsPerSecond float64
		Burst             int
		Timeout           time.Duration
	}
)

// Client talks to the custodial rail over HTTP
type Client struct {
	base    *url.URL
	client  *http.Client
	limiter *rate.Limiter
}

var _ rails.Custodial = (*Client)(nil)

func New(config Config) (c *Client, err error) {
	base, err := url.Parse(config.Url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse custodial url: %w", err)
	}

	client := config.Client
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
		if config.Credentials != nil {
			client.Transport = httpdigest.New(config.Credentials.Username, config.Credentials.Password)
		}
	}

	rps := config.RequestsPerSecond
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}
	burst := config.Burst
	if burst <= 0 {
		burst = 10
	}

	c = &Client{
		base:    base,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
	return c, nil
}

type (
	Money struct {
		Amount   decimal.Decimal `json:"amount"`
		Currency string          `json:"currency"`
	}
	Destination struct {
		Name          string `json:"name,omitempty"`
		Email         string `json:"email,omitempty"`
		Phone         string `json:"phone,omitempty"`
		Country       string `json:"country,omitempty"`
		BankAccount   string `json:"bankAccount,omitempty"`
		WalletAddress string `json:"walletAddress,omitempty"`
	}
	PaymentBody struct {
		ChargeId string `json:"chargeId"`
		Amount   Money  `json:"amount"`
	}
	TransferBody struct {
		PaymentId   string      `json:"paymentId"`
		Amount      Money       `json:"amount"`
		Destination Destination `json:"destination"`
	}
	PayoutBody struct {
		TransferId  string      `json:"transferId"`
		Amount      Money       `json:"amount"`
		Destination Destination `json:"destination"`
	}
	Object struct {
		Id     string                `json:"id"`
		Status rails.OperationStatus `json:"status"`
	}
	Rate struct {
		Rate decimal.Decimal `json:"rate"`
	}
	Envelope[T any] struct {
		Data T `json:"data"`
	}
	ErrorBody struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
)

func DestinationFrom(b rails.Beneficiary) (d Destination) {
	return Destination{
		Name:          b.Name,
		Email:         b.Email,
		Phone:         b.Phone,
		Country:       b.Country,
		BankAccount:   b.BankAccount,
		WalletAddress: b.WalletAddress,
	}
}

// ClassifyResponse maps a non 2xx answer into the provider error taxonomy
func ClassifyResponse(status int, body []byte, retryAfter string) (e *rails.Error) {
	var errBody ErrorBody
	_ = json.Unmarshal(body, &errBody)

	detail := errBody.Message
	if detail == "" {
		detail = http.StatusText(status)
	}

	kind := rails.Kind(errBody.Code)
	if !kind.Valid() || kind == rails.KindUnknown {
		switch {
		case status == http.StatusTooManyRequests:
			kind = rails.KindRateLimited
		case status == http.StatusPaymentRequired:
			kind = rails.KindInsufficientFunds
		case status == http.StatusBadGateway, status == http.StatusServiceUnavailable, status == http.StatusGatewayTimeout:
			kind = rails.KindBridgeUnavailable
		case status >= 400 && status < 500:
			kind = rails.KindValidation
		default:
			kind = rails.KindUnknown
		}
	}

	e = rails.NewError(kind, fmt.Sprintf("custodian answered %d: %s", status, detail))
	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
		e.SuggestedDelay = time.Duration(seconds) * time.Second
	}
	return e
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, idempotencyKey string, in, out any) (err error) {
	err = c.limiter.Wait(ctx)
	if err != nil {
		return rails.Classify(fmt.Errorf("failed to wait for rate limiter: %w", err))
	}

	target := c.base.JoinPath(path)
	target.RawQuery = query.Encode()

	var body io.Reader
	if in != nil {
		contents, err := json.Marshal(in)
		if err != nil {
			return rails.Wrap(rails.KindValidation, fmt.Errorf("failed to marshal request: %w", err))
		}
		body = bytes.NewReader(contents)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return rails.Wrap(rails.KindValidation, fmt.Errorf("failed to prepare request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set(IdempotencyHeader, idempotencyKey)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return rails.Classify(fmt.Errorf("failed to reach custodian: %w", err))
	}
	defer res.Body.Close()

	contents, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return rails.Classify(fmt.Errorf("failed to read response: %w", err))
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return ClassifyResponse(res.StatusCode, contents, res.Header.Get("Retry-After"))
	}

	err = json.Unmarshal(contents, out)
	if err != nil {
		return rails.Wrap(rails.KindUnknown, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

func (c *Client) create(ctx context.Context, path, key string, in any) (op rails.Operation, err error) {
	var out Envelope[Object]
	err = c.do(ctx, http.MethodPost, path, nil, key, in, &out)
	if err != nil {
		return op, err
	}
	if out.Data.Id == "" {
		return op, rails.NewError(rails.KindUnknown, "custodian returned an empty id")
	}
	return rails.Operation{Id: out.Data.Id, Status: out.Data.Status}, nil
}

func (c *Client) CreatePayment(ctx context.Context, req rails.PaymentRequest) (op rails.Operation, err error) {
	return c.create(ctx, PaymentsPath, req.IdempotencyKey, PaymentBody{
		ChargeId: req.ChargeId,
		Amount:   Money{Amount: req.Amount, Currency: req.Currency},
	})
}

func (c *Client) CreateWalletTransfer(ctx context.Context, req rails.WalletTransferRequest) (op rails.Operation, err error) {
	return c.create(ctx, TransfersPath, req.IdempotencyKey, TransferBody{
		PaymentId:   req.PaymentId,
		Amount:      Money{Amount: req.Amount, Currency: req.Currency},
		Destination: DestinationFrom(req.Beneficiary),
	})
}

func (c *Client) CreatePayout(ctx context.Context, req rails.PayoutRequest) (op rails.Operation, err error) {
	return c.create(ctx, PayoutsPath, req.IdempotencyKey, PayoutBody{
		TransferId:  req.TransferId,
		Amount:      Money{Amount: req.Amount, Currency: req.Currency},
		Destination: DestinationFrom(req.Beneficiary),
	})
}

var ErrUnknownStep = errors.New("no endpoint for step")

func pathFor(step rails.Step) (path string, err error) {
	switch step {
	case rails.StepPayment:
		return PaymentsPath, nil
	case rails.StepTransfer:
		return TransfersPath, nil
	case rails.StepPayout:
		return PayoutsPath, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownStep, step)
	}
}

func (c *Client) Operation(ctx context.Context, req rails.OperationRequest) (op rails.Operation, err error) {
	path, err := pathFor(req.Step)
	if err != nil {
		return op, rails.Wrap(rails.KindValidation, err)
	}

	var out Envelope[Object]
	err = c.do(ctx, http.MethodGet, path+"/"+url.PathEscape(req.Id), nil, "", nil, &out)
	if err != nil {
		return op, err
	}
	return rails.Operation{Id: out.Data.Id, Status: out.Data.Status}, nil
}

func (c *Client) Rate(ctx context.Context, from, to string) (r decimal.Decimal, err error) {
	var out Envelope[Rate]
	err = c.do(ctx, http.MethodGet, RatesPath, url.Values{"from": {from}, "to": {to}}, "", nil, &out)
	if err != nil {
		return r, err
	}
	if !out.Data.Rate.IsPositive() {
		return r, rails.NewError(rails.KindUnknown, "custodian returned a non positive rate")
	}
	return out.Data.Rate, nil
}
