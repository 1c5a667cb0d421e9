package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"civic-reporting-api/internal/apperr"
	"civic-reporting-api/internal/classifier"
	"civic-reporting-api/internal/models"
	"civic-reporting-api/internal/validation"
)

func TestCreateProblem_Classified(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	citizen := f.createUser(t, "citizen@example.com", models.RoleCitizen)

	f.expectClassification(classifier.Classification{
		Category:              models.CategoryInfra,
		SeverityScore:         6.8,
		EnvironmentalPriority: 3,
		Confidence:            0.9,
		Rationale:             "road damage",
	}, 15)

	p, err := f.svc.Problems.CreateProblem(ctx, citizen.ID, potholeRequest())
	require.NoError(t, err)

	assert.Equal(t, models.CategoryInfra, p.Category)
	assert.Equal(t, 6.8, p.SeverityScore)
	assert.Equal(t, models.StatusBidding, p.Status)
	assert.Equal(t, float64(15), p.OneCreditsAllocated)
	require.NotNil(t, p.AnalysisMetadata)
	assert.Equal(t, "road damage", p.AnalysisMetadata.ClassificationRationale)
	assert.NotEmpty(t, p.BiddingSessionID)

	user, err := f.svc.Users.GetUserByID(ctx, citizen.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(15), user.OneCreditsBalance)

	ledger, err := f.svc.Users.GetLedger(ctx, citizen.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(15), ledger.Balance)
	assert.Equal(t, float64(15), ledger.TotalEarned)

	stored, err := f.svc.Problems.GetProblemByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusBidding, stored.Status)
	assert.Equal(t, p.BiddingSessionID, stored.BiddingSessionID)

	session, err := f.svc.Bidding.GetSession(ctx, p.BiddingSessionID)
	require.NoError(t, err)
	assert.Equal(t, models.BiddingOpen, session.Status)
	assert.Empty(t, session.Bids)
}

func TestCreateProblem_ClassifierDownQueuesJob(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	citizen := f.createUser(t, "citizen@example.com", models.RoleCitizen)
	f.expectClassifierDown()

	p, err := f.svc.Problems.CreateProblem(ctx, citizen.ID, potholeRequest())
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, p.Status)
	assert.Equal(t, models.CategoryOther, p.Category)

	jobs, err := f.svc.Jobs.ListJobs(ctx, models.JobFilter{})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, p.ID, jobs[0].ProblemID)
	assert.Equal(t, models.JobPending, jobs[0].Status)
	assert.Equal(t, models.JobClassify, jobs[0].Type)
	assert.Equal(t, "Large pothole on main road", jobs[0].Payload.Description)

	user, err := f.svc.Users.GetUserByID(ctx, citizen.ID)
	require.NoError(t, err)
	assert.Zero(t, user.OneCreditsBalance)
}

func TestCreateProblem_AllocatorDownQueuesJob(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	citizen := f.createUser(t, "citizen@example.com", models.RoleCitizen)

	f.classifier.EXPECT().ClassifyProblem(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&classifier.Classification{Category: models.CategoryGreen, SeverityScore: 4}, nil)
	f.classifier.EXPECT().AllocateTokens(gomock.Any(), gomock.Any()).
		Return(nil, &classifier.CallError{Op: classifier.OpAllocate, Outcome: classifier.OutcomeStatus, StatusCode: 502})

	p, err := f.svc.Problems.CreateProblem(ctx, citizen.ID, potholeRequest())
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, p.Status)

	jobs, err := f.svc.Jobs.ListJobs(ctx, models.JobFilter{Status: models.JobPending})
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestCreateProblem_InvalidInput(t *testing.T) {
	f := setupService(t)
	lat := 95.0
	lng := 10.0
	_, err := f.svc.Problems.CreateProblem(context.Background(), "user_1", models.CreateProblemRequest{
		Description: "bad",
		Location:    models.LocationInput{Lat: &lat, Lng: &lng},
	})

	var verr *validation.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "location.lat", verr.Field)
}

func TestGetUserProblems_NewestFirst(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	citizen := f.createUser(t, "citizen@example.com", models.RoleCitizen)

	first := f.reportBiddingProblem(t, citizen.ID)
	second := f.reportBiddingProblem(t, citizen.ID)

	problems, err := f.svc.Problems.GetUserProblems(ctx, citizen.ID)
	require.NoError(t, err)
	require.Len(t, problems, 2)
	assert.Equal(t, second.ID, problems[0].ID)
	assert.Equal(t, first.ID, problems[1].ID)

	other, err := f.svc.Problems.GetUserProblems(ctx, "someone-else")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestGetOpenProblems(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	citizen := f.createUser(t, "citizen@example.com", models.RoleCitizen)

	open := f.reportBiddingProblem(t, citizen.ID)
	f.expectClassifierDown()
	_, err := f.svc.Problems.CreateProblem(ctx, citizen.ID, potholeRequest())
	require.NoError(t, err)

	problems, err := f.svc.Problems.GetOpenProblems(ctx, "roads")
	require.NoError(t, err)
	require.Len(t, problems, 1)
	assert.Equal(t, open.ID, problems[0].ID)
}

func TestUpdateProblemStatus(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	citizen := f.createUser(t, "citizen@example.com", models.RoleCitizen)
	contractor := f.createContractor(t, "builder@example.com", 70, 2)
	p := f.reportBiddingProblem(t, citizen.ID)

	require.NoError(t, f.svc.Problems.AssignContractor(ctx, p.ID, contractor.ID, p.BiddingSessionID))

	_, err := f.svc.Problems.UpdateProblemStatus(ctx, p.ID, "fixed")
	assert.Error(t, err)

	updated, err := f.svc.Problems.UpdateProblemStatus(ctx, p.ID, models.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, updated.Status)
	assert.NotNil(t, updated.CompletedAt)

	c, err := f.svc.Users.GetContractorProfile(ctx, contractor.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Contractor.CompletedJobs)

	_, err = f.svc.Problems.UpdateProblemStatus(ctx, p.ID, models.StatusInProgress)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = f.svc.Problems.UpdateProblemStatus(ctx, "missing", models.StatusCompleted)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestGetHeatmapData(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	citizen := f.createUser(t, "citizen@example.com", models.RoleCitizen)
	p := f.reportBiddingProblem(t, citizen.ID)

	f.expectClassifierDown()
	_, err := f.svc.Problems.CreateProblem(ctx, citizen.ID, potholeRequest())
	require.NoError(t, err)

	points, err := f.svc.Problems.GetHeatmapData(ctx, nil)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, p.ID, points[0].ProblemID)
	assert.Equal(t, 6.8, points[0].Severity)

	far := &models.Bounds{NeLat: 10, NeLng: 10, SwLat: 0, SwLng: 0}
	points, err = f.svc.Problems.GetHeatmapData(ctx, far)
	require.NoError(t, err)
	assert.Empty(t, points)

	_, err = f.svc.Problems.UpdateProblemStatus(ctx, p.ID, models.StatusRejected)
	require.NoError(t, err)
	points, err = f.svc.Problems.GetHeatmapData(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestGetHeatmapAggregate(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	f.classifier.EXPECT().ComputeHeatmap(gomock.Any(), gomock.Nil()).Return(json.RawMessage(`{"clusters":[]}`), nil)
	out, err := f.svc.Problems.GetHeatmapAggregate(ctx, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"clusters":[]}`, string(out))

	f.classifier.EXPECT().ComputeHeatmap(gomock.Any(), gomock.Any()).Return(nil, classifier.ErrNotConfigured)
	_, err = f.svc.Problems.GetHeatmapAggregate(ctx, nil)
	assert.True(t, apperr.Is(err, apperr.KindInternal))
	assert.ErrorIs(t, err, classifier.ErrNotConfigured)
}
