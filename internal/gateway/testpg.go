package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"payment-gateway/internal/observability/metrics"
	payment "payment-gateway/internal/payment/domain"
)

const (
	testPGName    = "testpg"
	testPGPayPath = "/api/v1/pay/credit-card"
	apiKeyHeader  = "API-KEY"
	maxErrorBody  = 64 << 10

	defaultBirthDate = "19900101"
	defaultExpiry    = "1227"
	defaultPassword  = "12"
)

// approvedAtLayouts are tried in order; TestPG sends ISO local date-time in UTC.
var approvedAtLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
}

// TestPGGateway calls the TestPG credit card approval API.
type TestPGGateway struct {
	apiURL       string
	apiKey       string
	apiIV        string
	mockFallback bool
	cipher       *PayloadCipher
	client       *http.Client
	logger       *zap.Logger
	now          func() time.Time
}

// TestPGOption configures the gateway.
type TestPGOption func(*TestPGGateway)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) TestPGOption {
	return func(g *TestPGGateway) {
		if client != nil {
			g.client = client
		}
	}
}

// WithTestPGLogger sets the logger.
func WithTestPGLogger(logger *zap.Logger) TestPGOption {
	return func(g *TestPGGateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithTestPGClock overrides the time source.
func WithTestPGClock(now func() time.Time) TestPGOption {
	return func(g *TestPGGateway) {
		if now != nil {
			g.now = now
		}
	}
}

// NewTestPGGateway constructs the primary gateway.
func NewTestPGGateway(cfg TestPGConfig, cipher *PayloadCipher, opts ...TestPGOption) (*TestPGGateway, error) {
	if cfg.APIURL == "" {
		return nil, errors.New("testpg gateway: empty api url")
	}
	if cipher == nil {
		cipher = NewPayloadCipher()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	g := &TestPGGateway{
		apiURL:       cfg.APIURL,
		apiKey:       cfg.APIKey,
		apiIV:        cfg.APIIV,
		mockFallback: cfg.FallbackEnabled,
		cipher:       cipher,
		client:       &http.Client{Timeout: timeout},
		logger:       zap.NewNop(),
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Name identifies the gateway in logs and metrics.
func (g *TestPGGateway) Name() string { return testPGName }

// Supports reports whether TestPG serves the partner (even ids only).
func (g *TestPGGateway) Supports(partnerID int64) bool {
	return partnerID%2 == 0
}

type testPGPlainRequest struct {
	CardNumber string `json:"cardNumber"`
	BirthDate  string `json:"birthDate"`
	Expiry     string `json:"expiry"`
	Password   string `json:"password"`
	Amount     int64  `json:"amount"`
}

type testPGEncryptedRequest struct {
	Enc string `json:"enc"`
}

type testPGSuccessResponse struct {
	ApprovalCode    string `json:"approvalCode"`
	ApprovedAt      string `json:"approvedAt"`
	MaskedCardLast4 string `json:"maskedCardLast4"`
	Amount          int64  `json:"amount"`
	Status          string `json:"status"`
}

// Approve encrypts the card payload and requests approval from TestPG.
func (g *TestPGGateway) Approve(ctx context.Context, req payment.ApprovalRequest) (payment.ApprovalResult, error) {
	if g == nil || g.client == nil {
		return payment.ApprovalResult{}, &payment.ProviderError{Message: "testpg gateway: not configured"}
	}
	g.logger.Info("testpg approval requested",
		zap.Int64("partner_id", req.PartnerID),
		zap.String("amount", req.Amount.String()))

	body, err := g.buildBody(req)
	if err != nil {
		metrics.IncGatewayCall(testPGName, metrics.ResultError)
		return payment.ApprovalResult{}, &payment.ProviderError{Message: "testpg gateway: build request: " + err.Error(), Errs: []error{err}}
	}

	resp, err := g.post(ctx, body)
	if err != nil {
		return g.handleTransportError(req, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		metrics.IncGatewayCall(testPGName, metrics.ResultRejected)
		g.logger.Error("testpg authentication failed", zap.Int("status", resp.StatusCode))
		return payment.ApprovalResult{}, &payment.AuthError{Reason: "testpg returned 401"}
	case resp.StatusCode == http.StatusUnprocessableEntity:
		metrics.IncGatewayCall(testPGName, metrics.ResultRejected)
		verr := decodeValidationError(resp.Body)
		g.logger.Error("testpg approval rejected",
			zap.Int("code", verr.Code),
			zap.String("error_code", verr.ErrorCode),
			zap.String("reference_id", verr.ReferenceID))
		return payment.ApprovalResult{}, verr
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		metrics.IncGatewayCall(testPGName, metrics.ResultError)
		g.logger.Error("testpg call failed", zap.Int("status", resp.StatusCode))
		return payment.ApprovalResult{}, &payment.ProviderError{Message: fmt.Sprintf("testpg gateway: unexpected status %d", resp.StatusCode)}
	}

	var success testPGSuccessResponse
	if err := json.NewDecoder(resp.Body).Decode(&success); err != nil {
		metrics.IncGatewayCall(testPGName, metrics.ResultError)
		return payment.ApprovalResult{}, &payment.ProviderError{Message: "testpg gateway: decode response: " + err.Error(), Errs: []error{err}}
	}
	if success.ApprovalCode == "" {
		metrics.IncGatewayCall(testPGName, metrics.ResultError)
		return payment.ApprovalResult{}, &payment.ProviderError{Message: "testpg gateway: empty approval code"}
	}

	metrics.IncGatewayCall(testPGName, metrics.ResultSuccess)
	g.logger.Info("testpg approval succeeded", zap.String("approval_code", success.ApprovalCode))
	return payment.ApprovalResult{
		ApprovalCode: success.ApprovalCode,
		ApprovedAt:   g.parseApprovedAt(success.ApprovedAt),
		Status:       payment.StatusApproved,
	}, nil
}

func (g *TestPGGateway) buildBody(req payment.ApprovalRequest) ([]byte, error) {
	if !req.Amount.IsInteger() {
		return nil, errors.New("amount must be an integer")
	}
	plain, err := json.Marshal(testPGPlainRequest{
		CardNumber: cardNumber(req.CardBIN, req.CardLast4),
		BirthDate:  defaultBirthDate,
		Expiry:     defaultExpiry,
		Password:   defaultPassword,
		Amount:     req.Amount.IntPart(),
	})
	if err != nil {
		return nil, err
	}
	enc, err := g.cipher.Encrypt(string(plain), g.apiKey, g.apiIV)
	if err != nil {
		return nil, err
	}
	return json.Marshal(testPGEncryptedRequest{Enc: enc})
}

func (g *TestPGGateway) post(ctx context.Context, body []byte) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL+testPGPayPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(apiKeyHeader, g.apiKey)
	return g.client.Do(httpReq)
}

// handleTransportError substitutes a mock approval for an unreachable endpoint
// when fallback is enabled. The substitution is flagged on the result.
func (g *TestPGGateway) handleTransportError(req payment.ApprovalRequest, err error) (payment.ApprovalResult, error) {
	if !g.mockFallback {
		metrics.IncGatewayCall(testPGName, metrics.ResultError)
		g.logger.Error("testpg transport failed", zap.Error(err))
		return payment.ApprovalResult{}, &payment.ProviderError{Message: "testpg gateway: transport: " + err.Error(), Errs: []error{err}}
	}
	metrics.IncGatewayCall(testPGName, "mocked")
	metrics.IncMockSubstitution()
	now := g.now()
	code := approvalCodeFrom(now)
	g.logger.Warn("testpg unreachable, substituting mock approval",
		zap.Int64("partner_id", req.PartnerID),
		zap.String("approval_code", code),
		zap.Error(err))
	return payment.ApprovalResult{
		ApprovalCode: code,
		ApprovedAt:   now,
		Status:       payment.StatusApproved,
		Mocked:       true,
	}, nil
}

func (g *TestPGGateway) parseApprovedAt(value string) time.Time {
	for _, layout := range approvedAtLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC()
		}
	}
	g.logger.Warn("testpg approvedAt unparseable, using now", zap.String("approved_at", value))
	return g.now()
}

func decodeValidationError(body io.Reader) *payment.ValidationError {
	raw, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil {
		return &payment.ValidationError{Message: "unreadable rejection body"}
	}
	var verr payment.ValidationError
	if err := json.Unmarshal(raw, &verr); err != nil || verr.Message == "" {
		return &payment.ValidationError{Message: string(raw)}
	}
	return &verr
}

func cardNumber(bin, last4 string) string {
	return bin + "-" + last4 + "-" + bin + "-" + last4
}

// approvalCodeFrom returns the last 8 digits of the epoch millis, zero padded.
func approvalCodeFrom(at time.Time) string {
	millis := strconv.FormatInt(at.UnixMilli(), 10)
	if len(millis) > 8 {
		millis = millis[len(millis)-8:]
	}
	return strings.Repeat("0", 8-len(millis)) + millis
}
