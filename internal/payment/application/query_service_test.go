package application_test

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"payment-gateway/internal/payment/application"
	payment "payment-gateway/internal/payment/domain"
	"payment-gateway/internal/payment/infrastructure/memory"
)

func seedPayments(t *testing.T, repo *memory.PaymentRepository, n int) {
	t.Helper()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		partnerID := int64(1 + i%2)
		// Rows are grouped in threes sharing a timestamp to exercise the id tiebreak.
		at := base.Add(time.Duration(i-i%3) * time.Minute)
		_, err := repo.Save(context.Background(), &payment.Payment{
			PartnerID: partnerID,
			Amount:    decimal.NewFromInt(int64(1000 * (i + 1))),
			NetAmount: decimal.NewFromInt(int64(900 * (i + 1))),
			Status:    payment.StatusApproved,
			CreatedAt: at,
			UpdatedAt: at,
		})
		if err != nil {
			t.Fatalf("save: %v", err)
		}
	}
}

func newQueryService(t *testing.T, repo payment.PaymentRepository) *application.QueryService {
	t.Helper()
	svc, err := application.NewQueryService(repo, nil)
	if err != nil {
		t.Fatalf("new query service: %v", err)
	}
	return svc
}

func TestQueryPaginationHasNoGapsOrDuplicates(t *testing.T) {
	repo := memory.NewPaymentRepository()
	const total = 23
	seedPayments(t, repo, total)
	svc := newQueryService(t, repo)

	for _, limit := range []int{1, 4, 7, 22, 23} {
		seen := make(map[int64]bool)
		var order []payment.Payment
		cursor := ""
		for pages := 0; ; pages++ {
			if pages > total+1 {
				t.Fatalf("limit=%d: pagination did not terminate", limit)
			}
			result, err := svc.Query(context.Background(), application.Filter{Cursor: cursor, Limit: limit})
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			if len(result.Items) > limit {
				t.Fatalf("limit=%d: page size got=%d", limit, len(result.Items))
			}
			for _, item := range result.Items {
				if seen[item.ID] {
					t.Fatalf("limit=%d: duplicate id %d", limit, item.ID)
				}
				seen[item.ID] = true
				order = append(order, item)
			}
			if !result.HasNext {
				if result.NextCursor != nil {
					t.Fatalf("limit=%d: last page should have no cursor", limit)
				}
				break
			}
			if result.NextCursor == nil {
				t.Fatalf("limit=%d: hasNext without cursor", limit)
			}
			cursor = *result.NextCursor
		}
		if len(seen) != total {
			t.Fatalf("limit=%d: rows seen got=%d want=%d", limit, len(seen), total)
		}
		for i := 1; i < len(order); i++ {
			prev, cur := order[i-1], order[i]
			if cur.CreatedAt.After(prev.CreatedAt) || (cur.CreatedAt.Equal(prev.CreatedAt) && cur.ID > prev.ID) {
				t.Fatalf("limit=%d: order violated at %d", limit, i)
			}
		}
	}
}

func TestQueryExactPageHasNoNext(t *testing.T) {
	repo := memory.NewPaymentRepository()
	seedPayments(t, repo, 5)
	svc := newQueryService(t, repo)

	result, err := svc.Query(context.Background(), application.Filter{Limit: 5})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if result.HasNext || result.NextCursor != nil || len(result.Items) != 5 {
		t.Fatalf("got items=%d hasNext=%v", len(result.Items), result.HasNext)
	}
}

func TestQuerySummaryIgnoresPagination(t *testing.T) {
	repo := memory.NewPaymentRepository()
	seedPayments(t, repo, 10)
	svc := newQueryService(t, repo)
	partner := int64(2)

	small, err := svc.Query(context.Background(), application.Filter{PartnerID: &partner, Limit: 1})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	large, err := svc.Query(context.Background(), application.Filter{PartnerID: &partner, Limit: 100})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if small.Summary.Count != large.Summary.Count ||
		!small.Summary.TotalAmount.Equal(large.Summary.TotalAmount) ||
		!small.Summary.TotalNetAmount.Equal(large.Summary.TotalNetAmount) {
		t.Fatalf("summary differs: %+v vs %+v", small.Summary, large.Summary)
	}
	if small.Summary.Count != 5 {
		t.Fatalf("count got=%d want=5", small.Summary.Count)
	}
	// Partner 2 holds ids 2,4,6,8,10, totalling 30000.
	if !small.Summary.TotalAmount.Equal(decimal.NewFromInt(30000)) {
		t.Fatalf("total got=%s want=30000", small.Summary.TotalAmount)
	}
	for _, item := range large.Items {
		if item.PartnerID != partner {
			t.Fatalf("filter leaked partner %d", item.PartnerID)
		}
	}
}

func TestQueryTimeWindowIsHalfOpen(t *testing.T) {
	repo := memory.NewPaymentRepository()
	seedPayments(t, repo, 9)
	svc := newQueryService(t, repo)
	from := time.Date(2025, 1, 1, 0, 3, 0, 0, time.UTC)
	to := time.Date(2025, 1, 1, 0, 6, 0, 0, time.UTC)

	result, err := svc.Query(context.Background(), application.Filter{From: &from, To: &to, Limit: 100})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	// Ids 4,5,6 are at minute 3; ids 7,8,9 at minute 6 are excluded.
	if result.Summary.Count != 3 || len(result.Items) != 3 {
		t.Fatalf("count got=%d items=%d want=3", result.Summary.Count, len(result.Items))
	}
}

func TestQueryMalformedCursorStartsFromFirstPage(t *testing.T) {
	repo := memory.NewPaymentRepository()
	seedPayments(t, repo, 3)
	svc := newQueryService(t, repo)

	result, err := svc.Query(context.Background(), application.Filter{Cursor: "%%%not-a-cursor", Limit: 10})
	if err != nil {
		t.Fatalf("query should tolerate a bad cursor: %v", err)
	}
	if len(result.Items) != 3 {
		t.Fatalf("items got=%d want=3", len(result.Items))
	}
}

func TestQueryEmptyResult(t *testing.T) {
	svc := newQueryService(t, memory.NewPaymentRepository())
	result, err := svc.Query(context.Background(), application.Filter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if result.Items == nil || len(result.Items) != 0 || result.HasNext || result.Summary.Count != 0 {
		t.Fatalf("unexpected empty result: %+v", result)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	pos := payment.CursorPosition{CreatedAt: time.UnixMilli(1759217966123).UTC(), ID: 42}
	token := application.EncodeCursor(pos)
	decoded, ok := application.DecodeCursor(token)
	if !ok {
		t.Fatalf("decode failed for %s", token)
	}
	if !decoded.CreatedAt.Equal(pos.CreatedAt) || decoded.ID != pos.ID {
		t.Fatalf("round trip got=%+v want=%+v", decoded, pos)
	}

	padded := base64.URLEncoding.EncodeToString([]byte("1759217966123:42"))
	if decoded, ok := application.DecodeCursor(padded); !ok || decoded.ID != 42 {
		t.Fatalf("padded token should decode, got=%+v ok=%v", decoded, ok)
	}
}

func TestDecodeCursorIsLenient(t *testing.T) {
	cases := []string{
		"",
		"!!!",
		base64.RawURLEncoding.EncodeToString([]byte("no-separator")),
		base64.RawURLEncoding.EncodeToString([]byte("abc:1")),
		base64.RawURLEncoding.EncodeToString([]byte("1:abc")),
	}
	for _, token := range cases {
		if _, ok := application.DecodeCursor(token); ok {
			t.Fatalf("token %q should be rejected", token)
		}
	}
}

func TestNormalizeLimit(t *testing.T) {
	cases := map[int]int{-5: 20, 0: 20, 1: 1, 100: 100, 101: 100, 1000: 100}
	for in, want := range cases {
		if got := application.NormalizeLimit(in); got != want {
			t.Fatalf("limit %d got=%d want=%d", in, got, want)
		}
	}
}
