// Command fake_testpg serves the TestPG credit card API locally so the
// gateway can be exercised end to end without the real provider.
package main

import (
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"payment-gateway/internal/gateway"
	payment "payment-gateway/internal/payment/domain"
)

const (
	payPath         = "/api/v1/pay/credit-card"
	approvedAtStamp = "2006-01-02T15:04:05.000"
	// simulatorPartner selects the simulator's default credentials.
	simulatorPartner int64 = 2
)

type fakeTestPG struct {
	start    time.Time
	apiKeys  map[string]struct{}
	apiIV    string
	latency  time.Duration
	failRate float64
	cipher   *gateway.PayloadCipher
	approver *gateway.SimulatorGateway
	logger   *zap.Logger

	mu         sync.Mutex
	rnd        *rand.Rand
	byStatus   map[int]int64
	totalCalls int64
}

type payRequest struct {
	Enc string `json:"enc"`
}

type plainPayload struct {
	CardNumber string `json:"cardNumber"`
	Amount     int64  `json:"amount"`
}

type payResponse struct {
	ApprovalCode    string `json:"approvalCode"`
	ApprovedAt      string `json:"approvedAt"`
	MaskedCardLast4 string `json:"maskedCardLast4"`
	Amount          int64  `json:"amount"`
	Status          string `json:"status"`
}

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		logger = zap.NewNop()
	}
	defer func() { _ = logger.Sync() }()

	addr := getenvDefault("FAKE_TESTPG_ADDR", ":18081")
	srv := newFakeTestPG(
		strings.Split(getenvDefault("FAKE_TESTPG_API_KEYS", "11111111-1111-4111-8111-111111111111"), ","),
		getenvDefault("FAKE_TESTPG_API_IV", ""),
		time.Duration(getenvIntDefault("FAKE_TESTPG_LATENCY_MS", 0))*time.Millisecond,
		getenvFloatDefault("FAKE_TESTPG_FAIL_RATE", 0),
		logger,
	)

	logger.Info("fake TestPG listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, srv.routes()); err != nil {
		logger.Fatal("fake TestPG stopped", zap.Error(err))
	}
}

func newFakeTestPG(apiKeys []string, apiIV string, latency time.Duration, failRate float64, logger *zap.Logger) *fakeTestPG {
	if logger == nil {
		logger = zap.NewNop()
	}
	keys := make(map[string]struct{}, len(apiKeys))
	for _, key := range apiKeys {
		if key = strings.TrimSpace(key); key != "" {
			keys[key] = struct{}{}
		}
	}
	cipher := gateway.NewPayloadCipher()
	return &fakeTestPG{
		start:    time.Now().UTC(),
		apiKeys:  keys,
		apiIV:    apiIV,
		latency:  latency,
		failRate: failRate,
		cipher:   cipher,
		approver: gateway.NewSimulatorGateway(cipher),
		logger:   logger,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
		byStatus: make(map[int]int64),
	}
}

func (s *fakeTestPG) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc(payPath, s.handlePay)
	return mux
}

func (s *fakeTestPG) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *fakeTestPG) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byStatus := make(map[string]int64, len(s.byStatus))
	for status, count := range s.byStatus {
		byStatus[strconv.Itoa(status)] = count
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"started_at": s.start.Format(time.RFC3339),
		"total":      atomic.LoadInt64(&s.totalCalls),
		"by_status":  byStatus,
	})
}

func (s *fakeTestPG) handlePay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	status, body := s.pay(r)
	s.recordCall(status)
	writeJSON(w, status, body)
}

func (s *fakeTestPG) pay(r *http.Request) (int, any) {
	apiKey := r.Header.Get("API-KEY")
	if _, ok := s.apiKeys[apiKey]; !ok {
		return http.StatusUnauthorized, map[string]string{"message": "unauthorized"}
	}
	if s.latency > 0 {
		time.Sleep(s.latency)
	}
	if s.shouldFail() {
		return http.StatusServiceUnavailable, map[string]string{"message": "fake outage"}
	}

	var req payRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enc == "" {
		return http.StatusBadRequest, map[string]string{"message": "invalid json"}
	}
	plain, err := s.cipher.Decrypt(req.Enc, apiKey, s.apiIV)
	if err != nil {
		return http.StatusBadRequest, map[string]string{"message": err.Error()}
	}
	var payload plainPayload
	if err := json.Unmarshal([]byte(plain), &payload); err != nil {
		return http.StatusBadRequest, map[string]string{"message": "invalid payload"}
	}

	bin, last4 := splitCardNumber(payload.CardNumber)
	result, err := s.approver.Approve(r.Context(), payment.ApprovalRequest{
		PartnerID: simulatorPartner,
		Amount:    decimal.NewFromInt(payload.Amount),
		CardBIN:   bin,
		CardLast4: last4,
	})
	var verr *payment.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, verr
	case err != nil:
		s.logger.Error("fake approval failed", zap.Error(err))
		return http.StatusInternalServerError, map[string]string{"message": err.Error()}
	}
	return http.StatusOK, payResponse{
		ApprovalCode:    result.ApprovalCode,
		ApprovedAt:      result.ApprovedAt.UTC().Format(approvedAtStamp),
		MaskedCardLast4: last4,
		Amount:          payload.Amount,
		Status:          string(result.Status),
	}
}

func (s *fakeTestPG) shouldFail() bool {
	if s.failRate <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Float64() < s.failRate
}

func (s *fakeTestPG) recordCall(status int) {
	atomic.AddInt64(&s.totalCalls, 1)
	s.mu.Lock()
	s.byStatus[status]++
	s.mu.Unlock()
}

// splitCardNumber reads "bin-last4-bin-last4".
func splitCardNumber(number string) (bin, last4 string) {
	parts := strings.Split(number, "-")
	if len(parts) < 2 {
		return "", ""
	}
	return parts[0], parts[len(parts)-1]
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
