package main

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	paymentapp "payment-gateway/internal/payment/application"
	payment "payment-gateway/internal/payment/domain"
	"payment-gateway/internal/payment/infrastructure/memory"
)

func TestWalkMatchesSummary(t *testing.T) {
	repo := memory.NewPaymentRepository()
	base := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		amount := decimal.NewFromInt(int64(1000 * (i + 1)))
		_, err := repo.Save(context.Background(), &payment.Payment{
			PartnerID: 2,
			Amount:    amount,
			NetAmount: amount.Sub(decimal.NewFromInt(100)),
			Status:    payment.StatusApproved,
			// pairs share a timestamp so the id tiebreak is exercised
			CreatedAt: base.Add(time.Duration(i/2) * time.Minute),
		})
		if err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	queries, err := paymentapp.NewQueryService(repo, nil)
	if err != nil {
		t.Fatalf("query service: %v", err)
	}

	rows, rep, err := walk(context.Background(), queries, paymentapp.Filter{Limit: 3})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	if len(rows) != 7 || rep.Pages != 3 || !rep.ok() {
		t.Fatalf("report got=%+v rows=%d", rep, len(rows))
	}
}

func TestBuildFilter(t *testing.T) {
	filter, err := buildFilter(config{partnerID: 4, from: "2025-10-01T00:00:00+09:00", pageSize: 50})
	if err != nil {
		t.Fatalf("build filter: %v", err)
	}
	if filter.PartnerID == nil || *filter.PartnerID != 4 || filter.Limit != 50 || filter.To != nil {
		t.Fatalf("filter got=%+v", filter)
	}
	if filter.From == nil || filter.From.Location() != time.UTC || filter.From.Hour() != 15 {
		t.Fatalf("from got=%v", filter.From)
	}
	if _, err := buildFilter(config{to: "tomorrow"}); err == nil {
		t.Fatalf("expected parse error")
	}
}
