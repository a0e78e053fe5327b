// Command reconcile walks the payment history page by page and checks it
// against the summary: every row seen once, in order, with matching totals.
package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	paymentapp "payment-gateway/internal/payment/application"
	payment "payment-gateway/internal/payment/domain"
	paymentrepo "payment-gateway/internal/payment/infrastructure/postgres"
)

const timeLayout = time.RFC3339

type config struct {
	dbURL     string
	partnerID int64
	from      string
	to        string
	pageSize  int
	outDir    string
}

type report struct {
	Pages          int
	Rows           int
	Duplicates     []int64
	OutOfOrder     []int64
	Summary        payment.Summary
	TotalAmount    decimal.Decimal
	TotalNetAmount decimal.Decimal
}

func (r report) ok() bool {
	return len(r.Duplicates) == 0 && len(r.OutOfOrder) == 0 &&
		int64(r.Rows) == r.Summary.Count &&
		r.TotalAmount.Equal(r.Summary.TotalAmount) &&
		r.TotalNetAmount.Equal(r.Summary.TotalNetAmount)
}

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		logger = zap.NewNop()
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := parseFlags()
	if err != nil {
		logger.Fatal("invalid flags", zap.Error(err))
	}
	filter, err := buildFilter(cfg)
	if err != nil {
		logger.Fatal("invalid filter", zap.Error(err))
	}

	db, err := sql.Open("pgx", cfg.dbURL)
	if err != nil {
		logger.Fatal("open db", zap.Error(err))
	}
	defer db.Close()

	queries, err := paymentapp.NewQueryService(paymentrepo.NewPaymentRepository(db), logger)
	if err != nil {
		logger.Fatal("query service", zap.Error(err))
	}

	rows, rep, err := walk(context.Background(), queries, filter)
	if err != nil {
		logger.Fatal("walk payments", zap.Error(err))
	}
	if err := os.MkdirAll(cfg.outDir, 0o755); err != nil {
		logger.Fatal("create out dir", zap.Error(err))
	}
	if err := writePayments(filepath.Join(cfg.outDir, "payments.csv"), rows); err != nil {
		logger.Fatal("write payments", zap.Error(err))
	}

	fields := []zap.Field{
		zap.Int("pages", rep.Pages),
		zap.Int("rows", rep.Rows),
		zap.Int64("summary_count", rep.Summary.Count),
		zap.String("total_amount", rep.TotalAmount.String()),
		zap.String("summary_total_amount", rep.Summary.TotalAmount.String()),
		zap.Int("duplicates", len(rep.Duplicates)),
		zap.Int("out_of_order", len(rep.OutOfOrder)),
	}
	if !rep.ok() {
		logger.Error("reconcile mismatch", fields...)
		os.Exit(1)
	}
	logger.Info("reconcile ok", fields...)
}

// walk follows cursor pages until the history is exhausted.
func walk(ctx context.Context, queries *paymentapp.QueryService, filter paymentapp.Filter) ([]payment.Payment, report, error) {
	var (
		rows []payment.Payment
		rep  report
		seen = make(map[int64]struct{})
		prev *payment.Payment
	)
	for {
		result, err := queries.Query(ctx, filter)
		if err != nil {
			return nil, rep, err
		}
		if rep.Pages == 0 {
			rep.Summary = result.Summary
		}
		rep.Pages++
		for i := range result.Items {
			item := result.Items[i]
			if _, dup := seen[item.ID]; dup {
				rep.Duplicates = append(rep.Duplicates, item.ID)
			}
			seen[item.ID] = struct{}{}
			if prev != nil && !(payment.CursorPosition{CreatedAt: prev.CreatedAt, ID: prev.ID}).After(&item) {
				rep.OutOfOrder = append(rep.OutOfOrder, item.ID)
			}
			rep.TotalAmount = rep.TotalAmount.Add(item.Amount)
			rep.TotalNetAmount = rep.TotalNetAmount.Add(item.NetAmount)
			rows = append(rows, item)
			prev = &rows[len(rows)-1]
		}
		if !result.HasNext || result.NextCursor == nil {
			break
		}
		filter.Cursor = *result.NextCursor
	}
	rep.Rows = len(rows)
	return rows, rep, nil
}

func parseFlags() (config, error) {
	cfg := config{}
	flag.StringVar(&cfg.dbURL, "db", getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")), "Postgres DSN")
	flag.Int64Var(&cfg.partnerID, "partner", 0, "partner id (0 = all)")
	flag.StringVar(&cfg.from, "from", "", "created_at lower bound, RFC3339, inclusive")
	flag.StringVar(&cfg.to, "to", "", "created_at upper bound, RFC3339, exclusive")
	flag.IntVar(&cfg.pageSize, "page-size", paymentapp.DefaultPageLimit, "rows per page")
	flag.StringVar(&cfg.outDir, "out", "reconcile-out", "output directory")
	flag.Parse()
	if cfg.dbURL == "" {
		return cfg, errors.New("DATABASE_URL or PG_DSN is required")
	}
	return cfg, nil
}

func buildFilter(cfg config) (paymentapp.Filter, error) {
	filter := paymentapp.Filter{Limit: cfg.pageSize}
	if cfg.partnerID != 0 {
		id := cfg.partnerID
		filter.PartnerID = &id
	}
	for _, bound := range []struct {
		raw    string
		target **time.Time
	}{{cfg.from, &filter.From}, {cfg.to, &filter.To}} {
		if bound.raw == "" {
			continue
		}
		parsed, err := time.Parse(timeLayout, bound.raw)
		if err != nil {
			return filter, fmt.Errorf("parse %q: %w", bound.raw, err)
		}
		parsed = parsed.UTC()
		*bound.target = &parsed
	}
	return filter, nil
}

func writePayments(path string, rows []payment.Payment) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	w := csv.NewWriter(file)
	if err := w.Write([]string{"id", "partner_id", "amount", "fee_amount", "net_amount", "approval_code", "status", "created_at"}); err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.Write([]string{
			strconv.FormatInt(row.ID, 10),
			strconv.FormatInt(row.PartnerID, 10),
			row.Amount.StringFixed(2),
			row.FeeAmount.StringFixed(2),
			row.NetAmount.StringFixed(2),
			row.ApprovalCode,
			string(row.Status),
			row.CreatedAt.UTC().Format(time.RFC3339Nano),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
