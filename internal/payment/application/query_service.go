package application

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"payment-gateway/internal/observability/metrics"
	payment "payment-gateway/internal/payment/domain"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Filter selects a page of payment history.
type Filter struct {
	PartnerID *int64
	Status    *payment.Status
	From      *time.Time
	To        *time.Time
	Cursor    string
	Limit     int
}

// QueryResult is one page plus the summary of the whole filtered set.
type QueryResult struct {
	Items      []payment.Payment
	Summary    payment.Summary
	NextCursor *string
	HasNext    bool
}

// QueryService pages through payment history.
type QueryService struct {
	payments payment.PaymentRepository
	logger   *zap.Logger
}

// NewQueryService constructs the service.
func NewQueryService(payments payment.PaymentRepository, logger *zap.Logger) (*QueryService, error) {
	if payments == nil {
		return nil, errors.New("query service: nil payment repository")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryService{payments: payments, logger: logger}, nil
}

// Query returns the page after filter.Cursor and the filtered summary.
func (s *QueryService) Query(ctx context.Context, filter Filter) (QueryResult, error) {
	start := time.Now()
	result, err := s.query(ctx, filter)
	status := metrics.ResultSuccess
	if err != nil {
		status = metrics.ResultError
		s.logger.Error("payment query failed", zap.Error(err))
	}
	metrics.ObserveQuery(status, time.Since(start))
	return result, err
}

func (s *QueryService) query(ctx context.Context, filter Filter) (QueryResult, error) {
	limit := NormalizeLimit(filter.Limit)
	summaryFilter := payment.SummaryFilter{
		PartnerID: filter.PartnerID,
		Status:    filter.Status,
		From:      filter.From,
		To:        filter.To,
	}

	query := payment.PageQuery{SummaryFilter: summaryFilter, Limit: limit + 1}
	if pos, ok := DecodeCursor(filter.Cursor); ok {
		query.Cursor = &pos
	} else if filter.Cursor != "" {
		s.logger.Debug("ignoring malformed cursor", zap.String("cursor", filter.Cursor))
	}

	rows, err := s.payments.PageBy(ctx, query)
	if err != nil {
		return QueryResult{}, err
	}
	summary, err := s.payments.Summary(ctx, summaryFilter)
	if err != nil {
		return QueryResult{}, err
	}

	hasNext := len(rows) > limit
	items := rows
	if hasNext {
		items = rows[:limit]
	}
	var next *string
	if hasNext && len(items) > 0 {
		last := items[len(items)-1]
		token := EncodeCursor(payment.CursorPosition{CreatedAt: last.CreatedAt, ID: last.ID})
		next = &token
	}
	if items == nil {
		items = []payment.Payment{}
	}
	return QueryResult{Items: items, Summary: summary, NextCursor: next, HasNext: hasNext}, nil
}

// NormalizeLimit applies the default and the cap.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageLimit
	}
	if limit > MaxPageLimit {
		return MaxPageLimit
	}
	return limit
}
