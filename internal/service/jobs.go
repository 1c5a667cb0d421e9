package service

import (
	"context"
	"fmt"

	"civic-reporting-api/internal/apperr"
	"civic-reporting-api/internal/classifier"
	"civic-reporting-api/internal/database"
	"civic-reporting-api/internal/events"
	"civic-reporting-api/internal/models"
	"civic-reporting-api/internal/validation"
)

const (
	defaultJobLimit = 50
	maxJobLimit     = 100
)

// JobService retries classification work deferred while the classifier
// was unavailable.
type JobService struct {
	*env
	reports *ProblemService
}

// ListJobs returns jobs newest first, optionally filtered by status. The
// limit defaults to 50 and is clamped to [1, 100].
func (s *JobService) ListJobs(ctx context.Context, f models.JobFilter) ([]models.Job, error) {
	if f.Status != "" {
		if err := validation.ValidateJobStatus(string(f.Status)); err != nil {
			return nil, err
		}
	}
	limit := f.Limit
	if limit == 0 {
		limit = defaultJobLimit
	}
	limit = min(max(limit, 1), maxJobLimit)

	var filter *database.Filter
	if f.Status != "" {
		filter = eq("status", string(f.Status))
	}
	jobs, err := s.jobs.FindAllSorted(ctx, filter, byCreatedDesc)
	if err != nil {
		return nil, err
	}
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (s *JobService) GetJob(ctx context.Context, id string) (*models.Job, error) {
	job, err := s.jobs.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "job")
	}
	return job, nil
}

// ProcessJob runs a queued job. Completed jobs are returned unchanged. A
// failed attempt marks the job failed with the error and returns it.
func (s *JobService) ProcessJob(ctx context.Context, id string) (*models.Job, error) {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status == models.JobCompleted {
		return job, nil
	}
	if job.Type != models.JobClassify {
		return nil, apperr.Validation(fmt.Sprintf("unsupported job type %q", job.Type))
	}

	log := s.logFor(ctx).WithField("job_id", job.ID).WithField("problem_id", job.ProblemID)
	job.Attempts++

	result, err := s.runClassify(ctx, job)
	if err != nil {
		log.WithError(err).Warn("job failed")
		job.Status = models.JobFailed
		job.Error = err.Error()
		job.UpdatedAt = s.now()
		if setErr := s.jobs.Set(ctx, job.ID, job); setErr != nil {
			log.WithError(setErr).Error("failed to record job failure")
		}
		return job, err
	}

	now := s.now()
	job.Status = models.JobCompleted
	job.Result = result
	job.Error = ""
	job.ProcessedAt = timePtr(now)
	job.UpdatedAt = now
	if err := s.jobs.Set(ctx, job.ID, job); err != nil {
		return nil, err
	}

	log.WithField("category", result.Category).Info("job processed")
	s.publish(ctx, events.EventJobProcessed, events.JobData{Job: *job})
	return job, nil
}

// runClassify classifies the job's payload and moves its problem to
// bidding. Allocation is best effort; a failure allocates nothing.
func (s *JobService) runClassify(ctx context.Context, job *models.Job) (*models.JobResult, error) {
	problem, err := s.reports.GetProblemByID(ctx, job.ProblemID)
	if err != nil {
		return nil, err
	}

	cls, err := s.classifier.ClassifyProblem(ctx, job.Payload.Description, job.Payload.Location)
	if err != nil {
		return nil, apperr.Internal("classification failed", err)
	}
	alloc, err := s.classifier.AllocateTokens(ctx, *cls)
	if err != nil {
		s.logFor(ctx).WithError(err).WithField("outcome", classifier.OutcomeOf(err)).Warn("allocation failed, allocating no credits")
		alloc = &classifier.Allocation{}
	}

	// A problem that already moved on keeps its status and its credits;
	// only the classification fields are refreshed.
	reopen := problem.Status == models.StatusPending || problem.Status == models.StatusClassifying
	status, credited := problem.Status, problem.OneCreditsAllocated
	applyClassification(problem, cls, alloc, s.now())
	if !reopen {
		problem.Status = status
		problem.OneCreditsAllocated = credited
	}
	if err := s.problems.Set(ctx, problem.ID, problem); err != nil {
		return nil, err
	}

	var allocated float64
	if reopen {
		allocated = alloc.OneCreditsToAllocate
		if alloc.OneCreditsToAllocate > 0 {
			if _, err := s.reports.accounts.AdjustCredits(ctx, problem.ReportedByUserID, alloc.OneCreditsToAllocate); err != nil && !apperr.Is(err, apperr.KindNotFound) {
				return nil, err
			}
		}
		if err := s.reports.openBidding(ctx, problem); err != nil {
			return nil, err
		}
		s.publish(ctx, events.EventProblemClassified, events.ProblemData{Problem: *problem})
	}
	s.invalidate(ctx, heatmapCachePrefix)

	return &models.JobResult{
		Category:              cls.Category,
		SeverityScore:         cls.SeverityScore,
		EnvironmentalPriority: cls.EnvironmentalPriority,
		OneCreditsAllocated:   allocated,
	}, nil
}

// ProcessPending runs up to limit pending jobs, oldest first, and reports
// how many completed and how many failed.
func (s *JobService) ProcessPending(ctx context.Context, limit int) (processed, failed int, err error) {
	jobs, err := s.jobs.FindAllSorted(ctx, eq("status", string(models.JobPending)), byCreatedAsc)
	if err != nil {
		return 0, 0, err
	}
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	for _, job := range jobs {
		if ctx.Err() != nil {
			return processed, failed, ctx.Err()
		}
		if _, err := s.ProcessJob(ctx, job.ID); err != nil {
			failed++
			continue
		}
		processed++
	}
	return processed, failed, nil
}
