package memory

import (
	"time"

	"github.com/shopspring/decimal"

	payment "payment-gateway/internal/payment/domain"
)

// DemoPartners are the partners available without a database.
func DemoPartners() []payment.Partner {
	return []payment.Partner{
		{ID: 1, Code: "TESTPAY1", Name: "Test Pay 1", Active: true},
		{ID: 2, Code: "TESTPAY2", Name: "Test Pay 2", Active: true},
		{ID: 3, Code: "TESTPAY3", Name: "Test Pay 3", Active: false},
		{ID: 4, Code: "TESTPAY4", Name: "Test Pay 4", Active: true},
	}
}

// DemoFeePolicies gives each demo partner 2.35% + 100. Partner 2 also has a
// 3.00% + 100 schedule that only takes effect in 2030.
func DemoFeePolicies() []payment.FeePolicy {
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	rate := decimal.RequireFromString("0.0235")
	fixed := decimal.NewFromInt(100)

	policies := make([]payment.FeePolicy, 0, 5)
	for _, p := range DemoPartners() {
		policies = append(policies, payment.FeePolicy{PartnerID: p.ID, EffectiveFrom: base, Percentage: rate, FixedFee: fixed})
	}
	policies = append(policies, payment.FeePolicy{
		PartnerID:     2,
		EffectiveFrom: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		Percentage:    decimal.RequireFromString("0.0300"),
		FixedFee:      fixed,
	})
	return policies
}
