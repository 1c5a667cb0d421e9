package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"civic-reporting-api/internal/apperr"
	"civic-reporting-api/internal/cache"
	"civic-reporting-api/internal/classifier"
	"civic-reporting-api/internal/database"
	"civic-reporting-api/internal/events"
	"civic-reporting-api/internal/models"
	"civic-reporting-api/internal/validation"
)

const (
	heatmapCachePrefix = "heatmap:"
	heatmapCacheTTL    = time.Minute
)

// heatmapStatuses are the statuses of problems still visible on the map.
var heatmapStatuses = []any{
	string(models.StatusBidding),
	string(models.StatusAssigned),
	string(models.StatusInProgress),
}

// ProblemService owns citizen reports and their lifecycle.
type ProblemService struct {
	*env
	accounts *UserService
	bidding  *BiddingService
}

// CreateProblem stores a report, classifies it and credits the reporter.
// When the classifier or allocator is unavailable the report is left
// pending and a classification job is queued instead; the report itself
// is never rejected for that reason.
func (s *ProblemService) CreateProblem(ctx context.Context, reporterID string, req models.CreateProblemRequest) (*models.Problem, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	now := s.now()
	problem := &models.Problem{
		ID:               s.newID("prob"),
		ReportedByUserID: reporterID,
		Description:      validation.SanitizeString(req.Description),
		PhotoURL:         req.PhotoURL,
		Location: models.Location{
			Lat:     *req.Location.Lat,
			Lng:     *req.Location.Lng,
			Address: validation.SanitizeString(req.Location.Address),
		},
		Category:  models.CategoryOther,
		Status:    models.StatusClassifying,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.problems.Set(ctx, problem.ID, problem); err != nil {
		return nil, err
	}
	s.publish(ctx, events.EventProblemCreated, events.ProblemData{Problem: *problem})

	log := s.logFor(ctx).WithField("problem_id", problem.ID)

	cls, alloc, err := s.classify(ctx, problem.Description, problem.Location)
	if err != nil {
		log.WithError(err).WithField("outcome", classifier.OutcomeOf(err)).Warn("classification unavailable, queueing job")
		if err := s.queueClassification(ctx, problem); err != nil {
			return nil, err
		}
		return problem, nil
	}

	applyClassification(problem, cls, alloc, s.now())
	if err := s.problems.Set(ctx, problem.ID, problem); err != nil {
		return nil, err
	}

	if alloc.OneCreditsToAllocate > 0 {
		if _, err := s.accounts.AdjustCredits(ctx, reporterID, alloc.OneCreditsToAllocate); err != nil {
			if !apperr.Is(err, apperr.KindNotFound) {
				return nil, err
			}
			log.Warn("reporter missing, credits not awarded")
		}
	}

	if err := s.openBidding(ctx, problem); err != nil {
		return nil, err
	}

	log.WithField("category", problem.Category).
		WithField("severity", problem.SeverityScore).
		WithField("credits", problem.OneCreditsAllocated).
		Info("problem classified")
	s.publish(ctx, events.EventProblemClassified, events.ProblemData{Problem: *problem})
	s.invalidate(ctx, heatmapCachePrefix)
	return problem, nil
}

func (s *ProblemService) classify(ctx context.Context, description string, loc models.Location) (*classifier.Classification, *classifier.Allocation, error) {
	cls, err := s.classifier.ClassifyProblem(ctx, description, loc)
	if err != nil {
		return nil, nil, err
	}
	alloc, err := s.classifier.AllocateTokens(ctx, *cls)
	if err != nil {
		return nil, nil, err
	}
	return cls, alloc, nil
}

func applyClassification(p *models.Problem, cls *classifier.Classification, alloc *classifier.Allocation, now time.Time) {
	p.Category = cls.Category
	p.SeverityScore = cls.SeverityScore
	p.EnvironmentalPriority = cls.EnvironmentalPriority
	p.AnalysisMetadata = &models.AnalysisMetadata{
		ClassificationRationale: cls.Rationale,
		Confidence:              cls.Confidence,
	}
	if alloc != nil {
		p.OneCreditsAllocated = alloc.OneCreditsToAllocate
		p.AnalysisMetadata.AllocationRationale = alloc.Rationale
	}
	p.Status = models.StatusBidding
	p.UpdatedAt = now
}

// queueClassification records a pending job for p and parks p as pending.
func (s *ProblemService) queueClassification(ctx context.Context, p *models.Problem) error {
	now := s.now()
	job := &models.Job{
		ID:        s.newID("job"),
		Type:      models.JobClassify,
		ProblemID: p.ID,
		Payload:   models.JobPayload{Description: p.Description, Location: p.Location},
		Status:    models.JobPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.jobs.Set(ctx, job.ID, job); err != nil {
		return err
	}

	p.Status = models.StatusPending
	p.UpdatedAt = now
	if err := s.problems.Set(ctx, p.ID, p); err != nil {
		return err
	}
	s.publish(ctx, events.EventProblemQueued, events.JobData{Job: *job})
	return nil
}

// openBidding starts the bidding session for a problem that just reached
// the bidding status. An already open session is kept.
func (s *ProblemService) openBidding(ctx context.Context, p *models.Problem) error {
	session, err := s.bidding.CreateBiddingSession(ctx, p.ID)
	if err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			return nil
		}
		return err
	}
	p.BiddingSessionID = session.ID
	return nil
}

func (s *ProblemService) GetProblemByID(ctx context.Context, id string) (*models.Problem, error) {
	p, err := s.problems.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "problem")
	}
	return p, nil
}

// GetUserProblems lists a user's reports, newest first.
func (s *ProblemService) GetUserProblems(ctx context.Context, userID string) ([]models.Problem, error) {
	return s.problems.FindAllSorted(ctx, eq("reportedByUserId", userID), byCreatedDesc)
}

// GetOpenProblems lists problems contractors can still act on, newest first.
// The domain argument is accepted for API compatibility and does not filter.
func (s *ProblemService) GetOpenProblems(ctx context.Context, domain string) ([]models.Problem, error) {
	if domain != "" {
		s.logFor(ctx).WithField("domain", domain).Debug("open problems requested for domain")
	}
	return s.problems.FindAllSorted(ctx, &database.Filter{
		Field: "status",
		Op:    database.OpIn,
		Value: []any{string(models.StatusBidding), string(models.StatusAssigned)},
	}, byCreatedDesc)
}

// UpdateProblemStatus moves a problem to status. Completed and rejected
// problems cannot move again.
func (s *ProblemService) UpdateProblemStatus(ctx context.Context, id string, status models.ProblemStatus) (*models.Problem, error) {
	if err := validation.ValidateProblemStatus(status); err != nil {
		return nil, err
	}
	p, err := s.GetProblemByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status == status {
		return p, nil
	}
	if p.Status.Terminal() {
		return nil, apperr.Conflict(fmt.Sprintf("problem is already %s", p.Status))
	}

	now := s.now()
	p.Status = status
	p.UpdatedAt = now
	if status == models.StatusCompleted {
		p.CompletedAt = timePtr(now)
	}
	if err := s.problems.Set(ctx, p.ID, p); err != nil {
		return nil, err
	}

	if status == models.StatusCompleted && p.AssignedContractorID != "" {
		if err := s.accounts.incrementCompletedJobs(ctx, p.AssignedContractorID); err != nil && !apperr.Is(err, apperr.KindNotFound) {
			return nil, err
		}
	}

	s.publish(ctx, events.EventProblemStatus, events.ProblemData{Problem: *p})
	s.invalidate(ctx, heatmapCachePrefix)
	return p, nil
}

// AssignContractor records the awarded contractor and session on a problem.
func (s *ProblemService) AssignContractor(ctx context.Context, problemID, contractorID, sessionID string) error {
	if _, err := s.GetProblemByID(ctx, problemID); err != nil {
		return err
	}
	err := s.problems.Update(ctx, problemID, database.Document{
		"assignedContractorId": contractorID,
		"biddingSessionId":     sessionID,
		"status":               models.StatusAssigned,
		"updatedAt":            s.now(),
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, heatmapCachePrefix)
	return nil
}

// GetHeatmapData returns map points for every active problem, optionally
// restricted to bounds.
func (s *ProblemService) GetHeatmapData(ctx context.Context, bounds *models.Bounds) ([]models.HeatmapPoint, error) {
	key := heatmapCachePrefix + "all"
	if bounds != nil {
		key = fmt.Sprintf("%s%g,%g,%g,%g", heatmapCachePrefix, bounds.NeLat, bounds.NeLng, bounds.SwLat, bounds.SwLng)
	}
	return cache.GetOrLoad(ctx, s.cache, key, heatmapCacheTTL, func() ([]models.HeatmapPoint, error) {
		problems, err := s.problems.FindBy(ctx, "status", database.OpIn, heatmapStatuses)
		if err != nil {
			return nil, err
		}
		points := make([]models.HeatmapPoint, 0, len(problems))
		for _, p := range problems {
			if bounds != nil && !bounds.Contains(p.Location) {
				continue
			}
			points = append(points, models.HeatmapPoint{
				ProblemID: p.ID,
				Lat:       p.Location.Lat,
				Lng:       p.Location.Lng,
				Severity:  p.SeverityScore,
				Category:  p.Category,
				Status:    p.Status,
			})
		}
		return points, nil
	})
}

// GetHeatmapAggregate asks the classifier for a clustered view of bounds.
func (s *ProblemService) GetHeatmapAggregate(ctx context.Context, bounds *models.Bounds) (json.RawMessage, error) {
	out, err := s.classifier.ComputeHeatmap(ctx, bounds)
	if err != nil {
		return nil, apperr.Internal("heatmap aggregation unavailable", err)
	}
	return out, nil
}
