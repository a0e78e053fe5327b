package postgres_test

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	payment "payment-gateway/internal/payment/domain"
	"payment-gateway/internal/payment/infrastructure/postgres"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	for _, table := range []string{"partners", "fee_policies", "payments"} {
		if !tableExists(db, table) {
			t.Skip("missing tables; run migrations")
		}
	}
	return db
}

func tableExists(db *sql.DB, table string) bool {
	var exists bool
	err := db.QueryRow(`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`, table).Scan(&exists)
	return err == nil && exists
}

func TestPaymentRepository_SavePageSummary(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	partnerID := int64(4)
	_, _ = db.ExecContext(ctx, "DELETE FROM payments WHERE partner_id = $1", partnerID)

	repo := postgres.NewPaymentRepository(db)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var ids []int64
	for i := 0; i < 5; i++ {
		at := base.Add(time.Duration(i/2) * time.Minute)
		saved, err := repo.Save(ctx, &payment.Payment{
			PartnerID:      partnerID,
			Amount:         decimal.NewFromInt(10000),
			AppliedFeeRate: decimal.RequireFromString("0.0235"),
			FeeAmount:      decimal.NewFromInt(335),
			NetAmount:      decimal.NewFromInt(9665),
			CardBIN:        "1111",
			CardLast4:      "1111",
			ApprovalCode:   "00000001",
			ApprovedAt:     at,
			Status:         payment.StatusApproved,
			CreatedAt:      at,
			UpdatedAt:      at,
		})
		if err != nil {
			t.Fatalf("save: %v", err)
		}
		if saved.ID == 0 {
			t.Fatalf("expected generated id")
		}
		if !saved.FeeAmount.Equal(decimal.NewFromInt(335)) {
			t.Fatalf("fee got=%s want=335", saved.FeeAmount)
		}
		ids = append(ids, saved.ID)
	}

	filter := payment.SummaryFilter{PartnerID: &partnerID}
	first, err := repo.PageBy(ctx, payment.PageQuery{SummaryFilter: filter, Limit: 3})
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if len(first) != 3 || first[0].ID != ids[4] {
		t.Fatalf("first page got=%d rows, head=%d want head=%d", len(first), first[0].ID, ids[4])
	}
	last := first[len(first)-1]
	second, err := repo.PageBy(ctx, payment.PageQuery{
		SummaryFilter: filter,
		Cursor:        &payment.CursorPosition{CreatedAt: last.CreatedAt, ID: last.ID},
		Limit:         3,
	})
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if len(second) != 2 {
		t.Fatalf("second page got=%d want=2", len(second))
	}
	for _, p := range second {
		for _, q := range first {
			if p.ID == q.ID {
				t.Fatalf("duplicate id %d across pages", p.ID)
			}
		}
	}

	summary, err := repo.Summary(ctx, filter)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Count != 5 || !summary.TotalAmount.Equal(decimal.NewFromInt(50000)) || !summary.TotalNetAmount.Equal(decimal.NewFromInt(48325)) {
		t.Fatalf("summary got=%+v", summary)
	}
}

func TestFeePolicyRepository_FindEffective(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := postgres.NewFeePolicyRepository(db)

	policy, err := repo.FindEffective(ctx, 2, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if policy == nil || !policy.Percentage.Equal(decimal.RequireFromString("0.0235")) {
		t.Fatalf("policy got=%+v", policy)
	}

	policy, err = repo.FindEffective(ctx, 2, time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if policy != nil {
		t.Fatalf("expected no policy before 2020")
	}
}

func TestPartnerRepository_FindByID(t *testing.T) {
	db := openTestDB(t)
	repo := postgres.NewPartnerRepository(db)

	partner, err := repo.FindByID(context.Background(), 3)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if partner == nil || partner.Active {
		t.Fatalf("partner 3 should be seeded inactive: %+v", partner)
	}
	missing, err := repo.FindByID(context.Background(), -999)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if missing != nil {
		t.Fatalf("missing partner should be nil")
	}
}

func TestRepositoriesRequireDB(t *testing.T) {
	var payments *postgres.PaymentRepository
	if _, err := payments.Save(context.Background(), &payment.Payment{}); err == nil {
		t.Fatalf("expected nil db error")
	}
	if _, err := postgres.NewPartnerRepository(nil).FindByID(context.Background(), 1); err == nil {
		t.Fatalf("expected nil db error")
	}
}
