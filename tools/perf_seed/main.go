// Command perf_seed fills the payments table with synthetic approved payments
// for pagination and export load testing.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	payment "payment-gateway/internal/payment/domain"
	paymentrepo "payment-gateway/internal/payment/infrastructure/postgres"
)

type config struct {
	dsn        string
	partners   []int64
	count      int
	startDate  string
	spread     time.Duration
	minAmount  int64
	maxAmount  int64
	feeRate    decimal.Decimal
	fixedFee   decimal.Decimal
	randomSeed int64
}

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		logger = zap.NewNop()
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := parseConfig()
	if err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}
	start, err := time.Parse("2006-01-02", cfg.startDate)
	if err != nil {
		logger.Fatal("invalid start-date", zap.Error(err))
	}

	db, err := sql.Open("pgx", cfg.dsn)
	if err != nil {
		logger.Fatal("open db", zap.Error(err))
	}
	defer db.Close()

	repo := paymentrepo.NewPaymentRepository(db)
	logger.Info("seeding payments",
		zap.Int("count", cfg.count),
		zap.Int64s("partners", cfg.partners),
		zap.Time("start", start))
	rnd := rand.New(rand.NewSource(cfg.randomSeed))
	if err := seed(context.Background(), repo, cfg, start.UTC(), rnd, logger); err != nil {
		logger.Fatal("seed payments", zap.Error(err))
	}
	logger.Info("perf seed completed")
}

func seed(ctx context.Context, repo payment.PaymentRepository, cfg config, start time.Time, rnd *rand.Rand, logger *zap.Logger) error {
	step := cfg.spread / time.Duration(cfg.count)
	if step <= 0 {
		step = time.Millisecond
	}
	for i := 0; i < cfg.count; i++ {
		p := buildPayment(cfg, i, start.Add(time.Duration(i)*step), rnd)
		if _, err := repo.Save(ctx, p); err != nil {
			return err
		}
		if (i+1)%1000 == 0 {
			logger.Info("seed progress", zap.Int("rows", i+1))
		}
	}
	return nil
}

func buildPayment(cfg config, i int, createdAt time.Time, rnd *rand.Rand) *payment.Payment {
	span := cfg.maxAmount - cfg.minAmount
	amount := cfg.minAmount
	if span > 0 {
		amount += rnd.Int63n(span + 1)
	}
	value := decimal.NewFromInt(amount)
	fee, net := payment.CalculateFee(value, cfg.feeRate, cfg.fixedFee)
	createdAt = createdAt.Truncate(time.Millisecond)
	return &payment.Payment{
		PartnerID:      cfg.partners[i%len(cfg.partners)],
		Amount:         value,
		AppliedFeeRate: cfg.feeRate,
		FeeAmount:      fee,
		NetAmount:      net,
		CardBIN:        "1111",
		CardLast4:      "1111",
		ApprovalCode:   strconv.FormatInt(10000000+int64(i)%90000000, 10),
		ApprovedAt:     createdAt,
		Status:         payment.StatusApproved,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
}

func parseConfig() (config, error) {
	cfg := config{}
	var partners, feeRate, fixedFee string
	flag.StringVar(&cfg.dsn, "pg-dsn", envOrDefault("PG_DSN", envOrDefault("DATABASE_URL", "")), "Postgres DSN")
	flag.StringVar(&partners, "partners", "1,2,4", "comma separated partner ids")
	flag.IntVar(&cfg.count, "count", envOrInt("SEED_COUNT", 10000), "payments to insert")
	flag.StringVar(&cfg.startDate, "start-date", time.Now().UTC().AddDate(0, 0, -30).Format("2006-01-02"), "first created_at day (YYYY-MM-DD)")
	flag.DurationVar(&cfg.spread, "spread", 30*24*time.Hour, "time range the rows are spread over")
	flag.Int64Var(&cfg.minAmount, "min-amount", 1000, "minimum amount")
	flag.Int64Var(&cfg.maxAmount, "max-amount", 50000, "maximum amount")
	flag.StringVar(&feeRate, "fee-rate", "0.0235", "fee rate")
	flag.StringVar(&fixedFee, "fixed-fee", "100", "fixed fee")
	flag.Int64Var(&cfg.randomSeed, "seed", 1, "random seed")
	flag.Parse()

	if cfg.dsn == "" {
		return cfg, errors.New("PG_DSN or DATABASE_URL is required")
	}
	if cfg.count <= 0 {
		return cfg, errors.New("count must be > 0")
	}
	if cfg.minAmount <= 0 || cfg.maxAmount < cfg.minAmount {
		return cfg, errors.New("amount range is invalid")
	}
	ids, err := parsePartners(partners)
	if err != nil {
		return cfg, err
	}
	cfg.partners = ids
	if cfg.feeRate, err = decimal.NewFromString(feeRate); err != nil {
		return cfg, err
	}
	if cfg.fixedFee, err = decimal.NewFromString(fixedFee); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func parsePartners(value string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, errors.New("at least one partner is required")
	}
	return ids, nil
}

func envOrDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func envOrInt(key string, fallback int) int {
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
