package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"payment-gateway/internal/audit"
	"payment-gateway/internal/auth"
	paymentapp "payment-gateway/internal/payment/application"
	payment "payment-gateway/internal/payment/domain"
)

const timeLayout = time.RFC3339

// Handler serves the payment endpoints.
type Handler struct {
	payments    *paymentapp.PaymentService
	queries     *paymentapp.QueryService
	auditLogger audit.Logger
	logger      *zap.Logger
	now         func() time.Time
}

// NewHandler constructs a Handler. auditLogger may be nil.
func NewHandler(payments *paymentapp.PaymentService, queries *paymentapp.QueryService, auditLogger audit.Logger, logger *zap.Logger) (*Handler, error) {
	if payments == nil {
		return nil, errors.New("payment handler: nil payment service")
	}
	if queries == nil {
		return nil, errors.New("payment handler: nil query service")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		payments:    payments,
		queries:     queries,
		auditLogger: auditLogger,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// Register mounts the payment routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/v1/payments", h.handleCreate)
	r.Get("/api/v1/payments", h.handleList)
	r.Get("/api/v1/payments/export.pdf", h.handleExport(formatPDF))
	r.Get("/api/v1/payments/export.xlsx", h.handleExport(formatXLSX))
}

type createPaymentRequest struct {
	PartnerID   int64           `json:"partnerId"`
	Amount      decimal.Decimal `json:"amount"`
	CardBIN     string          `json:"cardBin"`
	CardLast4   string          `json:"cardLast4"`
	ProductName string          `json:"productName"`
}

func (req createPaymentRequest) validate() error {
	if req.PartnerID == 0 {
		return errors.New("partnerId is required")
	}
	if !req.Amount.IsPositive() {
		return errors.New("amount must be positive")
	}
	if len(req.CardBIN) < 4 || len(req.CardBIN) > 8 || !isDigits(req.CardBIN) {
		return errors.New("cardBin must be 4 to 8 digits")
	}
	if len(req.CardLast4) != 4 || !isDigits(req.CardLast4) {
		return errors.New("cardLast4 must be 4 digits")
	}
	return nil
}

type paymentResponse struct {
	ID             int64           `json:"id"`
	PartnerID      int64           `json:"partnerId"`
	Amount         decimal.Decimal `json:"amount"`
	AppliedFeeRate decimal.Decimal `json:"appliedFeeRate"`
	FeeAmount      decimal.Decimal `json:"feeAmount"`
	NetAmount      decimal.Decimal `json:"netAmount"`
	CardLast4      string          `json:"cardLast4"`
	ApprovalCode   string          `json:"approvalCode"`
	ApprovedAt     time.Time       `json:"approvedAt"`
	Status         payment.Status  `json:"status"`
	CreatedAt      time.Time       `json:"createdAt"`
}

type listResponse struct {
	Items      []paymentResponse `json:"items"`
	Summary    payment.Summary   `json:"summary"`
	NextCursor *string           `json:"nextCursor"`
	HasNext    bool              `json:"hasNext"`
}

type errorResponse struct {
	Error       string `json:"error"`
	Code        int    `json:"code,omitempty"`
	ErrorCode   string `json:"errorCode,omitempty"`
	ReferenceID string `json:"referenceId,omitempty"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
		return
	}
	if err := req.validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := auth.AuthorizePartner(r.Context(), req.PartnerID); err != nil {
		h.writeError(w, err)
		return
	}

	saved, err := h.payments.Pay(r.Context(), paymentapp.PayCommand{
		PartnerID:   req.PartnerID,
		Amount:      req.Amount,
		CardBIN:     req.CardBIN,
		CardLast4:   req.CardLast4,
		ProductName: req.ProductName,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPaymentResponse(*saved))
	h.logAudit(r, saved.PartnerID, audit.ActionPaymentCreate, strconv.FormatInt(saved.ID, 10), map[string]any{
		"amount":        saved.Amount.String(),
		"approval_code": saved.ApprovalCode,
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	result, err := h.queries.Query(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	items := make([]paymentResponse, 0, len(result.Items))
	for _, item := range result.Items {
		items = append(items, toPaymentResponse(item))
	}
	writeJSON(w, http.StatusOK, listResponse{
		Items:      items,
		Summary:    result.Summary,
		NextCursor: result.NextCursor,
		HasNext:    result.HasNext,
	})
}

// errBadRequest marks query parsing failures.
var errBadRequest = errors.New("bad request")

func badRequest(msg string) error {
	return &requestError{msg: msg}
}

type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }
func (e *requestError) Unwrap() error { return errBadRequest }

// parseFilter reads the list and export query parameters. A partner-scoped
// caller is forced to its own partner.
func parseFilter(r *http.Request) (paymentapp.Filter, error) {
	q := r.URL.Query()
	var filter paymentapp.Filter

	if raw := strings.TrimSpace(q.Get("partnerId")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, badRequest("invalid partnerId")
		}
		filter.PartnerID = &id
	}
	if scoped, ok := auth.PartnerScope(r.Context()); ok {
		if filter.PartnerID != nil && *filter.PartnerID != scoped {
			return filter, auth.ErrPartnerMismatch
		}
		filter.PartnerID = &scoped
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, ok := payment.ParseStatus(strings.ToUpper(raw))
		if !ok {
			return filter, badRequest("invalid status")
		}
		filter.Status = &status
	}
	from, err := parseTimeQuery(q.Get("from"), "from")
	if err != nil {
		return filter, err
	}
	to, err := parseTimeQuery(q.Get("to"), "to")
	if err != nil {
		return filter, err
	}
	if from != nil && to != nil && !to.After(*from) {
		return filter, badRequest("to must be after from")
	}
	filter.From, filter.To = from, to
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return filter, badRequest("invalid limit")
		}
		filter.Limit = limit
	}
	filter.Cursor = q.Get("cursor")
	return filter, nil
}

func parseTimeQuery(raw, name string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(timeLayout, raw)
	if err != nil {
		return nil, badRequest("invalid " + name)
	}
	parsed = parsed.UTC()
	return &parsed, nil
}

// writeError maps service errors to HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var rejected *payment.ApprovalRejectedError
	switch {
	case errors.As(err, &rejected):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:       rejected.Error(),
			Code:        rejected.Code,
			ErrorCode:   rejected.ErrorCode,
			ReferenceID: rejected.ReferenceID,
		})
	case errors.Is(err, errBadRequest), errors.Is(err, payment.ErrInvalidAmount):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, auth.ErrPartnerMismatch):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
	case errors.Is(err, payment.ErrPartnerNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, payment.ErrInactivePartner):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	case errors.Is(err, payment.ErrAuthenticationFailed):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
	case errors.Is(err, payment.ErrProviderUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	case errors.Is(err, payment.ErrConfiguration), errors.Is(err, payment.ErrPolicyNotFound):
		h.logger.Error("payment misconfigured", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	default:
		h.logger.Error("payment request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (h *Handler) logAudit(r *http.Request, partnerID int64, action, resourceID string, metadata map[string]any) {
	if h.auditLogger == nil {
		return
	}
	meta, _ := json.Marshal(metadata)
	entry := audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "payment",
		ResourceID:   resourceID,
		Metadata:     meta,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	}
	if partnerID != 0 {
		entry.PartnerID = &partnerID
	}
	if err := h.auditLogger.Log(r.Context(), entry); err != nil {
		h.logger.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func toPaymentResponse(p payment.Payment) paymentResponse {
	return paymentResponse{
		ID:             p.ID,
		PartnerID:      p.PartnerID,
		Amount:         p.Amount,
		AppliedFeeRate: p.AppliedFeeRate,
		FeeAmount:      p.FeeAmount,
		NetAmount:      p.NetAmount,
		CardLast4:      p.CardLast4,
		ApprovalCode:   p.ApprovalCode,
		ApprovedAt:     p.ApprovedAt.UTC(),
		Status:         p.Status,
		CreatedAt:      p.CreatedAt.UTC(),
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func isDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return value != ""
}
