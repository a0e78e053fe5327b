package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"payment-gateway/internal/audit"
	"payment-gateway/internal/auth"
	"payment-gateway/internal/gateway"
	paymentapp "payment-gateway/internal/payment/application"
	payment "payment-gateway/internal/payment/domain"
	"payment-gateway/internal/payment/infrastructure/memory"
)

type tickClock struct {
	mu   sync.Mutex
	next time.Time
}

func (c *tickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.next
	c.next = c.next.Add(time.Second)
	return now
}

type recordingAudit struct {
	entries []audit.Entry
}

func (a *recordingAudit) Log(_ context.Context, entry audit.Entry) error {
	a.entries = append(a.entries, entry)
	return nil
}

type testServer struct {
	router http.Handler
	audit  *recordingAudit
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	start := time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC)
	simulator := gateway.NewSimulatorGateway(nil, gateway.WithSimulatorClock(func() time.Time { return start }))

	payments := memory.NewPaymentRepository()
	service, err := paymentapp.NewPaymentService(
		memory.NewPartnerRepository(memory.DemoPartners()...),
		memory.NewFeePolicyRepository(memory.DemoFeePolicies()...),
		payments,
		[]paymentapp.ApprovalGateway{simulator},
		nil,
		&tickClock{next: start},
		nil,
	)
	if err != nil {
		t.Fatalf("payment service: %v", err)
	}
	queries, err := paymentapp.NewQueryService(payments, nil)
	if err != nil {
		t.Fatalf("query service: %v", err)
	}
	recorder := &recordingAudit{}
	handler, err := NewHandler(service, queries, recorder, nil)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	handler.now = func() time.Time { return start }

	r := chi.NewRouter()
	handler.Register(r)
	return &testServer{router: r, audit: recorder}
}

func (s *testServer) do(t *testing.T, method, target string, body any, identity *auth.Identity) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	if identity != nil {
		req = req.WithContext(auth.WithIdentity(req.Context(), *identity))
	}
	resp := httptest.NewRecorder()
	s.router.ServeHTTP(resp, req)
	return resp
}

func payBody(partnerID int64, amount, card string) map[string]any {
	return map[string]any{
		"partnerId":   partnerID,
		"amount":      amount,
		"cardBin":     card,
		"cardLast4":   card,
		"productName": "coffee",
	}
}

func decodeJSON[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", resp.Body.String(), err)
	}
	return out
}

func TestCreatePayment(t *testing.T) {
	srv := newTestServer(t)
	operator := &auth.Identity{Subject: "ops-1", Role: auth.RoleOperator}

	resp := srv.do(t, http.MethodPost, "/api/v1/payments", payBody(2, "10000", "1111"), operator)
	if resp.Code != http.StatusOK {
		t.Fatalf("status got=%d want=200 body=%s", resp.Code, resp.Body.String())
	}
	raw := decodeJSON[map[string]any](t, resp)
	if _, isString := raw["feeAmount"].(string); !isString {
		t.Fatalf("amounts should be JSON strings: %v", raw["feeAmount"])
	}
	got := decodeJSON[paymentResponse](t, resp)
	if !got.FeeAmount.Equal(decimal.NewFromInt(335)) || !got.NetAmount.Equal(decimal.NewFromInt(9665)) {
		t.Fatalf("fee got=%s net=%s want=335/9665", got.FeeAmount, got.NetAmount)
	}
	if got.ID == 0 || got.Status != payment.StatusApproved || got.CardLast4 != "1111" || len(got.ApprovalCode) != 8 {
		t.Fatalf("payment got=%+v", got)
	}

	if len(srv.audit.entries) != 1 {
		t.Fatalf("audit entries got=%d want=1", len(srv.audit.entries))
	}
	entry := srv.audit.entries[0]
	if entry.Action != audit.ActionPaymentCreate || entry.Actor != "ops-1" || entry.PartnerID == nil || *entry.PartnerID != 2 {
		t.Fatalf("audit entry got=%+v", entry)
	}
}

func TestCreatePaymentErrors(t *testing.T) {
	srv := newTestServer(t)
	cases := []struct {
		name string
		body any
		want int
	}{
		{"invalid json", "{", http.StatusBadRequest},
		{"zero amount", payBody(2, "0", "1111"), http.StatusBadRequest},
		{"short last4", map[string]any{"partnerId": 2, "amount": "100", "cardBin": "1111", "cardLast4": "11"}, http.StatusBadRequest},
		{"unknown partner", payBody(999, "10000", "1111"), http.StatusNotFound},
		{"inactive partner", payBody(3, "10000", "1111"), http.StatusUnprocessableEntity},
		{"no gateway for odd partner", payBody(1, "10000", "1111"), http.StatusInternalServerError},
		{"card rejected", payBody(2, "51000", "2222"), http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		resp := srv.do(t, http.MethodPost, "/api/v1/payments", tc.body, nil)
		if resp.Code != tc.want {
			t.Fatalf("%s: status got=%d want=%d body=%s", tc.name, resp.Code, tc.want, resp.Body.String())
		}
	}
	if len(srv.audit.entries) != 0 {
		t.Fatalf("failed requests should not be audited: %d", len(srv.audit.entries))
	}
}

func TestCreatePaymentRejectionBody(t *testing.T) {
	srv := newTestServer(t)
	resp := srv.do(t, http.MethodPost, "/api/v1/payments", payBody(2, "51000", "2222"), nil)
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status got=%d want=422", resp.Code)
	}
	body := decodeJSON[errorResponse](t, resp)
	if body.ErrorCode != "STOLEN_OR_LOST" || body.Code != 1001 || body.ReferenceID == "" {
		t.Fatalf("rejection body got=%+v", body)
	}
}

func TestCreatePaymentPartnerScope(t *testing.T) {
	srv := newTestServer(t)
	scoped := int64(2)
	identity := &auth.Identity{Subject: "partner-2", Role: auth.RoleOperator, PartnerID: &scoped}

	resp := srv.do(t, http.MethodPost, "/api/v1/payments", payBody(4, "10000", "1111"), identity)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("other partner got=%d want=403", resp.Code)
	}
	resp = srv.do(t, http.MethodPost, "/api/v1/payments", payBody(2, "10000", "1111"), identity)
	if resp.Code != http.StatusOK {
		t.Fatalf("own partner got=%d want=200", resp.Code)
	}
}

func TestListPaymentsPagination(t *testing.T) {
	srv := newTestServer(t)
	for _, amount := range []string{"1000", "2000", "3000"} {
		if resp := srv.do(t, http.MethodPost, "/api/v1/payments", payBody(2, amount, "1111"), nil); resp.Code != http.StatusOK {
			t.Fatalf("seed payment: %d %s", resp.Code, resp.Body.String())
		}
	}

	first := decodeJSON[listResponse](t, srv.do(t, http.MethodGet, "/api/v1/payments?partnerId=2&limit=2", nil, nil))
	if len(first.Items) != 2 || !first.HasNext || first.NextCursor == nil {
		t.Fatalf("first page got=%d hasNext=%v", len(first.Items), first.HasNext)
	}
	if first.Items[0].Amount.String() != "3000" {
		t.Fatalf("newest first got=%s", first.Items[0].Amount)
	}
	second := decodeJSON[listResponse](t, srv.do(t, http.MethodGet, "/api/v1/payments?partnerId=2&limit=2&cursor="+*first.NextCursor, nil, nil))
	if len(second.Items) != 1 || second.HasNext || second.NextCursor != nil {
		t.Fatalf("second page got=%d hasNext=%v", len(second.Items), second.HasNext)
	}
	if second.Items[0].Amount.String() != "1000" {
		t.Fatalf("last item got=%s", second.Items[0].Amount)
	}
	for _, page := range []listResponse{first, second} {
		if page.Summary.Count != 3 || !page.Summary.TotalAmount.Equal(decimal.NewFromInt(6000)) {
			t.Fatalf("summary got=%+v", page.Summary)
		}
	}
}

func TestListPaymentsQueryValidation(t *testing.T) {
	srv := newTestServer(t)
	cases := []struct {
		query string
		want  int
	}{
		{"?status=bogus", http.StatusBadRequest},
		{"?from=yesterday", http.StatusBadRequest},
		{"?partnerId=abc", http.StatusBadRequest},
		{"?limit=ten", http.StatusBadRequest},
		{"?from=2025-10-02T00:00:00Z&to=2025-10-01T00:00:00Z", http.StatusBadRequest},
		{"?cursor=not-a-cursor", http.StatusOK},
		{"?status=approved&from=2025-10-01T00:00:00Z&to=2025-10-02T00:00:00Z", http.StatusOK},
	}
	for _, tc := range cases {
		resp := srv.do(t, http.MethodGet, "/api/v1/payments"+tc.query, nil, nil)
		if resp.Code != tc.want {
			t.Fatalf("%s: status got=%d want=%d", tc.query, resp.Code, tc.want)
		}
	}
	empty := decodeJSON[listResponse](t, srv.do(t, http.MethodGet, "/api/v1/payments", nil, nil))
	if empty.Items == nil || len(empty.Items) != 0 || empty.HasNext {
		t.Fatalf("empty list got=%+v", empty)
	}
}

func TestListPaymentsScopedToPartner(t *testing.T) {
	srv := newTestServer(t)
	srv.do(t, http.MethodPost, "/api/v1/payments", payBody(2, "1000", "1111"), nil)
	srv.do(t, http.MethodPost, "/api/v1/payments", payBody(4, "2000", "1111"), nil)

	scoped := int64(4)
	identity := &auth.Identity{Subject: "partner-4", Role: auth.RoleViewer, PartnerID: &scoped}
	page := decodeJSON[listResponse](t, srv.do(t, http.MethodGet, "/api/v1/payments", nil, identity))
	if len(page.Items) != 1 || page.Items[0].PartnerID != 4 || page.Summary.Count != 1 {
		t.Fatalf("scoped list got=%+v", page)
	}
	if resp := srv.do(t, http.MethodGet, "/api/v1/payments?partnerId=2", nil, identity); resp.Code != http.StatusForbidden {
		t.Fatalf("explicit other partner got=%d want=403", resp.Code)
	}
}

func TestExportXLSX(t *testing.T) {
	srv := newTestServer(t)
	for _, amount := range []string{"1000", "2000"} {
		srv.do(t, http.MethodPost, "/api/v1/payments", payBody(2, amount, "1111"), nil)
	}
	admin := &auth.Identity{Subject: "admin-1", Role: auth.RoleAdmin}
	resp := srv.do(t, http.MethodGet, "/api/v1/payments/export.xlsx?partnerId=2", nil, admin)
	if resp.Code != http.StatusOK {
		t.Fatalf("status got=%d body=%s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Header().Get("Content-Disposition"), ".xlsx") {
		t.Fatalf("disposition got=%s", resp.Header().Get("Content-Disposition"))
	}
	f, err := excelize.OpenReader(bytes.NewReader(resp.Body.Bytes()))
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("payments")
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows got=%d want=3 (header + 2)", len(rows))
	}
	count, _ := f.GetCellValue("summary", "B4")
	if count != "2" {
		t.Fatalf("summary count got=%s want=2", count)
	}

	last := srv.audit.entries[len(srv.audit.entries)-1]
	if last.Action != audit.ActionPaymentExport || last.Actor != "admin-1" {
		t.Fatalf("export audit got=%+v", last)
	}
}

func TestExportPDF(t *testing.T) {
	srv := newTestServer(t)
	srv.do(t, http.MethodPost, "/api/v1/payments", payBody(2, "1000", "1111"), nil)
	resp := srv.do(t, http.MethodGet, "/api/v1/payments/export.pdf", nil, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("status got=%d", resp.Code)
	}
	if resp.Header().Get("Content-Type") != "application/pdf" || !bytes.HasPrefix(resp.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("not a pdf: %s", resp.Header().Get("Content-Type"))
	}
	if resp := srv.do(t, http.MethodGet, "/api/v1/payments/export.pdf?status=nope", nil, nil); resp.Code != http.StatusBadRequest {
		t.Fatalf("bad filter got=%d want=400", resp.Code)
	}
}

func TestCollectFollowsCursorPages(t *testing.T) {
	srv := newTestServer(t)
	total := paymentapp.MaxPageLimit + 5
	for i := 0; i < total; i++ {
		if resp := srv.do(t, http.MethodPost, "/api/v1/payments", payBody(4, "100", "1111"), nil); resp.Code != http.StatusOK {
			t.Fatalf("seed %d: %d", i, resp.Code)
		}
	}
	resp := srv.do(t, http.MethodGet, "/api/v1/payments/export.xlsx", nil, nil)
	f, err := excelize.OpenReader(bytes.NewReader(resp.Body.Bytes()))
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()
	rows, _ := f.GetRows("payments")
	if len(rows) != total+1 {
		t.Fatalf("rows got=%d want=%d", len(rows), total+1)
	}
}

func TestBuildPaymentsPDFEmpty(t *testing.T) {
	data, err := BuildPaymentsPDF(nil, payment.Summary{}, time.Now())
	if err != nil || !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("empty pdf err=%v", err)
	}
}
