package models

import "time"

type AllocationLog struct {
	AllocationID string    `json:"allocationId"`
	ProblemID    string    `json:"problemId"`
	AmountSpent  float64   `json:"amountSpent"`
	AllocatedAt  time.Time `json:"allocatedAt"`
}

// GreenCreditPurchase is one block of green credits bought by a company.
// CurrentBalance stays within [0, AmountPurchased].
type GreenCreditPurchase struct {
	ID              string          `json:"id"`
	CompanyID       string          `json:"companyId"`
	AmountPurchased float64         `json:"amountPurchased"`
	UnitPrice       float64         `json:"unitPrice"`
	TotalCost       float64         `json:"totalCost"`
	CurrentBalance  float64         `json:"currentBalance"`
	AllocationLogs  []AllocationLog `json:"allocationLogs"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

func (p *GreenCreditPurchase) Validate() error {
	if p.AmountPurchased <= 0 {
		return invalid("green credit purchase", "amount purchased must be positive")
	}
	if p.CurrentBalance < 0 {
		return invalid("green credit purchase", "balance %v is negative", p.CurrentBalance)
	}
	if p.CurrentBalance > p.AmountPurchased {
		return invalid("green credit purchase", "balance %v exceeds amount purchased %v", p.CurrentBalance, p.AmountPurchased)
	}
	return nil
}

type GreenCreditBalance struct {
	CompanyID string  `json:"companyId"`
	Balance   float64 `json:"balance"`
}

// OneCreditLedger mirrors a user's reward-credit balance with running totals.
type OneCreditLedger struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	Balance       float64   `json:"balance"`
	TotalEarned   float64   `json:"totalEarned"`
	TotalRedeemed float64   `json:"totalRedeemed"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
