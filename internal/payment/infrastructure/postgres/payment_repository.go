package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	payment "payment-gateway/internal/payment/domain"
)

const paymentColumns = `id, partner_id, amount, applied_fee_rate, fee_amount, net_amount,
	card_bin, card_last4, approval_code, approved_at, status, created_at, updated_at`

// PaymentRepository persists the payment ledger.
type PaymentRepository struct {
	db *sql.DB
}

// NewPaymentRepository constructs a repository.
func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Save inserts a payment and returns it with the generated id.
func (r *PaymentRepository) Save(ctx context.Context, p *payment.Payment) (*payment.Payment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("payment repo: nil db")
	}
	if p == nil {
		return nil, payment.ErrNilPayment
	}
	row := r.db.QueryRowContext(ctx, `
INSERT INTO payments (
	partner_id, amount, applied_fee_rate, fee_amount, net_amount,
	card_bin, card_last4, approval_code, approved_at, status, created_at, updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
)
RETURNING `+paymentColumns,
		p.PartnerID, p.Amount, p.AppliedFeeRate, p.FeeAmount, p.NetAmount,
		nullString(p.CardBIN), nullString(p.CardLast4), p.ApprovalCode, p.ApprovedAt.UTC(), string(p.Status),
		p.CreatedAt.UTC(), p.UpdatedAt.UTC(),
	)
	saved, err := scanPayment(row)
	if err != nil {
		return nil, err
	}
	if saved == nil {
		return nil, errors.New("payment repo: insert returned no row")
	}
	return saved, nil
}

// PageBy returns up to query.Limit rows in (created_at DESC, id DESC) order.
func (r *PaymentRepository) PageBy(ctx context.Context, query payment.PageQuery) ([]payment.Payment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("payment repo: nil db")
	}
	where := newWhereBuilder()
	where.applyFilter(query.SummaryFilter)
	if query.Cursor != nil {
		c := where.arg(query.Cursor.CreatedAt.UTC())
		id := where.arg(query.Cursor.ID)
		where.add("(created_at < " + c + " OR (created_at = " + c + " AND id < " + id + "))")
	}
	sqlText := "SELECT " + paymentColumns + " FROM payments" + where.clause() + " ORDER BY created_at DESC, id DESC"
	if query.Limit > 0 {
		sqlText += " LIMIT " + where.arg(query.Limit)
	}

	rows, err := r.db.QueryContext(ctx, sqlText, where.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]payment.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		if p != nil {
			result = append(result, *p)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Summary aggregates every row matching the filter.
func (r *PaymentRepository) Summary(ctx context.Context, filter payment.SummaryFilter) (payment.Summary, error) {
	if r == nil || r.db == nil {
		return payment.Summary{}, errors.New("payment repo: nil db")
	}
	where := newWhereBuilder()
	where.applyFilter(filter)

	var summary payment.Summary
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*), COALESCE(SUM(amount), 0), COALESCE(SUM(net_amount), 0)
FROM payments`+where.clause(), where.args...).Scan(&summary.Count, &summary.TotalAmount, &summary.TotalNetAmount)
	if err != nil {
		return payment.Summary{}, err
	}
	return summary, nil
}

type whereBuilder struct {
	conds []string
	args  []any
}

func newWhereBuilder() *whereBuilder {
	return &whereBuilder{}
}

func (b *whereBuilder) arg(value any) string {
	b.args = append(b.args, value)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *whereBuilder) add(cond string) {
	b.conds = append(b.conds, cond)
}

func (b *whereBuilder) applyFilter(filter payment.SummaryFilter) {
	if filter.PartnerID != nil {
		b.add("partner_id = " + b.arg(*filter.PartnerID))
	}
	if filter.Status != nil {
		b.add("status = " + b.arg(string(*filter.Status)))
	}
	if filter.From != nil {
		b.add("created_at >= " + b.arg(filter.From.UTC()))
	}
	if filter.To != nil {
		b.add("created_at < " + b.arg(filter.To.UTC()))
	}
}

func (b *whereBuilder) clause() string {
	if len(b.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conds, " AND ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (*payment.Payment, error) {
	var p payment.Payment
	var cardBIN, cardLast4 sql.NullString
	var status string
	err := row.Scan(
		&p.ID,
		&p.PartnerID,
		&p.Amount,
		&p.AppliedFeeRate,
		&p.FeeAmount,
		&p.NetAmount,
		&cardBIN,
		&cardLast4,
		&p.ApprovalCode,
		&p.ApprovedAt,
		&status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	p.CardBIN = cardBIN.String
	p.CardLast4 = cardLast4.String
	p.Status = payment.Status(status)
	p.ApprovedAt = p.ApprovedAt.UTC()
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
