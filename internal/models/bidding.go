package models

import "time"

type BiddingStatus string

const (
	BiddingOpen    BiddingStatus = "open"
	BiddingClosed  BiddingStatus = "closed"
	BiddingAwarded BiddingStatus = "awarded"
)

type Bid struct {
	ID               string    `json:"id"`
	BiddingSessionID string    `json:"biddingSessionId"`
	ProblemID        string    `json:"problemId"`
	ContractorID     string    `json:"contractorId"`
	QuoteAmount      float64   `json:"quoteAmount"`
	Notes            string    `json:"notes,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

func (b *Bid) Validate() error {
	if b.ProblemID == "" || b.ContractorID == "" {
		return invalid("bid", "problem and contractor are required")
	}
	if b.QuoteAmount <= 0 {
		return invalid("bid", "quote amount must be positive")
	}
	return nil
}

// BiddingSession aggregates every bid submitted against one problem.
type BiddingSession struct {
	ID                   string        `json:"id"`
	ProblemID            string        `json:"problemId"`
	Bids                 []Bid         `json:"bids"`
	Status               BiddingStatus `json:"status"`
	SelectedBidID        string        `json:"selectedBidId,omitempty"`
	SelectedContractorID string        `json:"selectedContractorId,omitempty"`
	Rationale            string        `json:"n8nRationale,omitempty"`
	Score                float64       `json:"score,omitempty"`
	CreatedAt            time.Time     `json:"createdAt"`
	UpdatedAt            time.Time     `json:"updatedAt"`
	ClosedAt             *time.Time    `json:"closedAt,omitempty"`
	AwardedAt            *time.Time    `json:"awardedAt,omitempty"`
}

func (s *BiddingSession) Validate() error {
	switch s.Status {
	case BiddingOpen, BiddingClosed:
	case BiddingAwarded:
		if s.SelectedBidID == "" {
			return invalid("bidding session", "awarded session needs a selected bid")
		}
	default:
		return invalid("bidding session", "unknown status %q", s.Status)
	}
	if s.ProblemID == "" {
		return invalid("bidding session", "problem is required")
	}
	return nil
}

// HasBid reports whether bidID belongs to this session.
func (s *BiddingSession) HasBid(bidID string) bool {
	for _, b := range s.Bids {
		if b.ID == bidID {
			return true
		}
	}
	return false
}
