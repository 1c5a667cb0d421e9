package models

import (
	"strings"
	"time"
)

type ProblemStatus string

const (
	StatusPending     ProblemStatus = "pending"
	StatusClassifying ProblemStatus = "classifying"
	StatusBidding     ProblemStatus = "bidding"
	StatusAssigned    ProblemStatus = "assigned"
	StatusInProgress  ProblemStatus = "in-progress"
	StatusCompleted   ProblemStatus = "completed"
	StatusRejected    ProblemStatus = "rejected"
)

// Valid reports whether s is a known lifecycle status.
func (s ProblemStatus) Valid() bool {
	switch s {
	case StatusPending, StatusClassifying, StatusBidding, StatusAssigned,
		StatusInProgress, StatusCompleted, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
func (s ProblemStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

type Category string

const (
	CategoryGreen Category = "green"
	CategoryInfra Category = "infra"
	CategoryOther Category = "other"
)

func (c Category) Valid() bool {
	return c == CategoryGreen || c == CategoryInfra || c == CategoryOther
}

// NormalizeCategory maps a classifier label onto a known category.
// "infrastructure" is accepted for infra; anything unrecognised is other.
func NormalizeCategory(label string) Category {
	switch c := Category(strings.ToLower(strings.TrimSpace(label))); c {
	case CategoryGreen, CategoryInfra:
		return c
	case "infrastructure":
		return CategoryInfra
	default:
		return CategoryOther
	}
}

type Location struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

// AnalysisMetadata records why the classifier and allocator decided what they did.
type AnalysisMetadata struct {
	ClassificationRationale string  `json:"classificationRationale,omitempty"`
	AllocationRationale     string  `json:"allocationRationale,omitempty"`
	Confidence              float64 `json:"confidence"`
}

type Problem struct {
	ID                    string            `json:"id"`
	ReportedByUserID      string            `json:"reportedByUserId"`
	Description           string            `json:"description"`
	PhotoURL              string            `json:"photoUrl,omitempty"`
	Location              Location          `json:"location"`
	Category              Category          `json:"category,omitempty"`
	SeverityScore         float64           `json:"severityScore"`
	EnvironmentalPriority float64           `json:"environmentalPriority"`
	Status                ProblemStatus     `json:"status"`
	OneCreditsAllocated   float64           `json:"oneCreditsAllocated"`
	AnalysisMetadata      *AnalysisMetadata `json:"n8nAnalysisMetadata,omitempty"`
	EstimatedBudget       float64           `json:"estimatedBudget"`
	AssignedContractorID  string            `json:"assignedContractorId,omitempty"`
	BiddingSessionID      string            `json:"biddingSessionId,omitempty"`
	CreatedAt             time.Time         `json:"createdAt"`
	UpdatedAt             time.Time         `json:"updatedAt"`
	CompletedAt           *time.Time        `json:"completedAt,omitempty"`
}

func (p *Problem) Validate() error {
	if p.Description == "" {
		return invalid("problem", "description is required")
	}
	if p.Location.Lat < -90 || p.Location.Lat > 90 {
		return invalid("problem", "latitude %v out of range", p.Location.Lat)
	}
	if p.Location.Lng < -180 || p.Location.Lng > 180 {
		return invalid("problem", "longitude %v out of range", p.Location.Lng)
	}
	if !p.Status.Valid() {
		return invalid("problem", "unknown status %q", p.Status)
	}
	if p.Category != "" && !p.Category.Valid() {
		return invalid("problem", "unknown category %q", p.Category)
	}
	return nil
}

// Bounds is a lat/lng rectangle given by its north-east and south-west corners.
type Bounds struct {
	NeLat float64 `json:"neLat"`
	NeLng float64 `json:"neLng"`
	SwLat float64 `json:"swLat"`
	SwLng float64 `json:"swLng"`
}

func (b Bounds) Contains(l Location) bool {
	return l.Lat <= b.NeLat && l.Lat >= b.SwLat && l.Lng <= b.NeLng && l.Lng >= b.SwLng
}

type HeatmapPoint struct {
	ProblemID string        `json:"problemId"`
	Lat       float64       `json:"lat"`
	Lng       float64       `json:"lng"`
	Severity  float64       `json:"severity"`
	Category  Category      `json:"category,omitempty"`
	Status    ProblemStatus `json:"status"`
}
