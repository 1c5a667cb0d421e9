// Package classifier talks to the external workflow-automation service that
// classifies problem reports, proposes credit allocations, picks winning
// bids and aggregates heatmap data.
package classifier

//go:generate mockgen -destination=classifiermock/classifier_mock.go -package=classifiermock civic-reporting-api/internal/classifier Classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"civic-reporting-api/internal/models"
)

type Classifier interface {
	ClassifyProblem(ctx context.Context, description string, loc models.Location) (*Classification, error)
	AllocateTokens(ctx context.Context, c Classification) (*Allocation, error)
	SelectBid(ctx context.Context, req BidSelectionRequest) (*BidSelection, error)
	ComputeHeatmap(ctx context.Context, bounds *models.Bounds) (json.RawMessage, error)
}

type Classification struct {
	Category              models.Category `json:"category"`
	SeverityScore         float64         `json:"severityScore"`
	EnvironmentalPriority float64         `json:"environmentalPriority"`
	Confidence            float64         `json:"confidence"`
	Rationale             string          `json:"rationale"`
}

type Allocation struct {
	OneCreditsToAllocate float64 `json:"oneCreditsToAllocate"`
	Rationale            string  `json:"rationale"`
}

// BidCandidate is one bid joined with its contractor's track record.
type BidCandidate struct {
	BidID                   string  `json:"bidId"`
	ContractorID            string  `json:"contractorId"`
	QuoteAmount             float64 `json:"quoteAmount"`
	ContractorTrustScore    float64 `json:"contractorTrustScore"`
	ContractorCompletedJobs int     `json:"contractorCompletedJobs"`
}

type BidSelectionRequest struct {
	ProblemID string         `json:"problemId"`
	Bids      []BidCandidate `json:"bids"`
}

type BidSelection struct {
	SelectedBidID        string  `json:"selectedBidId"`
	SelectedContractorID string  `json:"selectedContractorId"`
	Rationale            string  `json:"rationale"`
	Score                float64 `json:"score"`
}

type Op string

const (
	OpClassify  Op = "classify"
	OpAllocate  Op = "allocate"
	OpSelectBid Op = "select_bid"
	OpHeatmap   Op = "heatmap"
)

// Outcome classifies how a remote call ended.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeTimeout   Outcome = "timeout"
	OutcomeTransport Outcome = "transport"
	OutcomeStatus    Outcome = "status"
	OutcomeDecode    Outcome = "decode"
)

// ErrNotConfigured is the cause of every call made without a base URL.
var ErrNotConfigured = errors.New("classifier base URL not configured")

// CallError is returned for every failed remote call.
type CallError struct {
	Op         Op
	Outcome    Outcome
	StatusCode int
	Err        error
}

func (e *CallError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("classifier %s failed (%s, status %d): %v", e.Op, e.Outcome, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("classifier %s failed (%s): %v", e.Op, e.Outcome, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// OutcomeOf returns the outcome carried by err, or success for nil.
func OutcomeOf(err error) Outcome {
	if err == nil {
		return OutcomeSuccess
	}
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Outcome
	}
	return OutcomeTransport
}

type Config struct {
	BaseURL       string
	APIKey        string
	APIKeyHeader  string
	Timeout       time.Duration
	ClassifyPath  string
	AllocatePath  string
	SelectBidPath string
	HeatmapPath   string
}

func (c Config) withDefaults() Config {
	if c.APIKeyHeader == "" {
		c.APIKeyHeader = "X-N8N-API-KEY"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.ClassifyPath == "" {
		c.ClassifyPath = "/webhook/classify-problem"
	}
	if c.AllocatePath == "" {
		c.AllocatePath = "/webhook/allocate-tokens"
	}
	if c.SelectBidPath == "" {
		c.SelectBidPath = "/webhook/select-bid"
	}
	if c.HeatmapPath == "" {
		c.HeatmapPath = "/webhook/compute-heatmap"
	}
	return c
}

// FormatLocation renders coordinates the way the classify webhook expects.
func FormatLocation(loc models.Location) string {
	return fmt.Sprintf("lat: %v, lng: %v", loc.Lat, loc.Lng)
}
