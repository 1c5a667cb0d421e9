package models

import "time"

type JobType string

const JobClassify JobType = "classify"

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

func (s JobStatus) Valid() bool {
	return s == JobPending || s == JobCompleted || s == JobFailed
}

// JobPayload is the original input needed to retry classification.
type JobPayload struct {
	Description string   `json:"description"`
	Location    Location `json:"location"`
}

type JobResult struct {
	Category              Category `json:"category"`
	SeverityScore         float64  `json:"severityScore"`
	EnvironmentalPriority float64  `json:"environmentalPriority"`
	OneCreditsAllocated   float64  `json:"oneCreditsAllocated"`
}

// Job is a deferred unit of work queued when the classifier is unavailable.
type Job struct {
	ID          string     `json:"id"`
	Type        JobType    `json:"type"`
	ProblemID   string     `json:"problemId"`
	Payload     JobPayload `json:"payload"`
	Status      JobStatus  `json:"status"`
	Result      *JobResult `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	Attempts    int        `json:"attempts"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	ProcessedAt *time.Time `json:"processedAt,omitempty"`
}

type JobFilter struct {
	Status JobStatus
	Limit  int
}
