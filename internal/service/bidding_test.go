package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"civic-reporting-api/internal/apperr"
	"civic-reporting-api/internal/classifier"
	"civic-reporting-api/internal/models"
)

func TestSubmitBid(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	citizen := f.createUser(t, "citizen@example.com", models.RoleCitizen)
	contractor := f.createContractor(t, "builder@example.com", 80, 4)
	p := f.reportBiddingProblem(t, citizen.ID)

	bid, err := f.svc.Bidding.SubmitBid(ctx, contractor.ID, models.SubmitBidRequest{
		ProblemID:   p.ID,
		QuoteAmount: 850,
		Notes:       "two days",
	})
	require.NoError(t, err)
	assert.Equal(t, p.BiddingSessionID, bid.BiddingSessionID)

	session, err := f.svc.Bidding.GetSession(ctx, p.BiddingSessionID)
	require.NoError(t, err)
	require.Len(t, session.Bids, 1)
	assert.Equal(t, bid.ID, session.Bids[0].ID)

	bids, err := f.svc.Bidding.GetBidsForProblem(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, bids, 1)
	assert.Equal(t, 850.0, bids[0].QuoteAmount)
}

func TestSubmitBid_Rejections(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	citizen := f.createUser(t, "citizen@example.com", models.RoleCitizen)
	contractor := f.createContractor(t, "builder@example.com", 80, 4)

	_, err := f.svc.Bidding.SubmitBid(ctx, contractor.ID, models.SubmitBidRequest{ProblemID: "prob_missing", QuoteAmount: 100})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	p := f.reportBiddingProblem(t, citizen.ID)
	_, err = f.svc.Bidding.SubmitBid(ctx, contractor.ID, models.SubmitBidRequest{ProblemID: p.ID, QuoteAmount: 0})
	assert.Error(t, err)

	_, err = f.svc.Bidding.CloseBiddingSession(ctx, p.BiddingSessionID)
	require.NoError(t, err)
	_, err = f.svc.Bidding.SubmitBid(ctx, contractor.ID, models.SubmitBidRequest{ProblemID: p.ID, QuoteAmount: 100})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestCreateBiddingSession_OnePerProblem(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	citizen := f.createUser(t, "citizen@example.com", models.RoleCitizen)
	p := f.reportBiddingProblem(t, citizen.ID)

	_, err := f.svc.Bidding.CreateBiddingSession(ctx, p.ID)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = f.svc.Bidding.CloseBiddingSession(ctx, p.BiddingSessionID)
	require.NoError(t, err)
	next, err := f.svc.Bidding.CreateBiddingSession(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BiddingOpen, next.Status)

	sessions, err := f.svc.Bidding.GetSessionsForProblem(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}

func TestSelectWinningBid(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	citizen := f.createUser(t, "citizen@example.com", models.RoleCitizen)
	alpha := f.createContractor(t, "alpha@example.com", 90, 12)
	beta := f.createContractor(t, "beta@example.com", 60, 1)
	p := f.reportBiddingProblem(t, citizen.ID)

	first, err := f.svc.Bidding.SubmitBid(ctx, alpha.ID, models.SubmitBidRequest{ProblemID: p.ID, QuoteAmount: 850})
	require.NoError(t, err)
	second, err := f.svc.Bidding.SubmitBid(ctx, beta.ID, models.SubmitBidRequest{ProblemID: p.ID, QuoteAmount: 920})
	require.NoError(t, err)

	f.classifier.EXPECT().SelectBid(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req classifier.BidSelectionRequest) (*classifier.BidSelection, error) {
			assert.Equal(t, p.ID, req.ProblemID)
			require.Len(t, req.Bids, 2)
			assert.Equal(t, float64(90), req.Bids[0].ContractorTrustScore)
			assert.Equal(t, 12, req.Bids[0].ContractorCompletedJobs)
			assert.Equal(t, 920.0, req.Bids[1].QuoteAmount)
			return &classifier.BidSelection{
				SelectedBidID:        first.ID,
				SelectedContractorID: alpha.ID,
				Rationale:            "best trust to price ratio",
				Score:                0.87,
			}, nil
		})

	session, err := f.svc.Bidding.SelectWinningBid(ctx, p.BiddingSessionID)
	require.NoError(t, err)
	assert.Contains(t, []string{first.ID, second.ID}, session.SelectedBidID)
	assert.Equal(t, models.BiddingAwarded, session.Status)
	assert.Equal(t, alpha.ID, session.SelectedContractorID)
	assert.NotNil(t, session.AwardedAt)

	problem, err := f.svc.Problems.GetProblemByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAssigned, problem.Status)
	assert.Equal(t, alpha.ID, problem.AssignedContractorID)

	_, err = f.svc.Bidding.SelectWinningBid(ctx, p.BiddingSessionID)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestSelectWinningBid_NoBids(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	citizen := f.createUser(t, "citizen@example.com", models.RoleCitizen)
	p := f.reportBiddingProblem(t, citizen.ID)

	before, err := f.svc.Bidding.GetSession(ctx, p.BiddingSessionID)
	require.NoError(t, err)

	_, err = f.svc.Bidding.SelectWinningBid(ctx, p.BiddingSessionID)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	after, err := f.svc.Bidding.GetSession(ctx, p.BiddingSessionID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSelectWinningBid_ClassifierFailureLeavesSessionOpen(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	citizen := f.createUser(t, "citizen@example.com", models.RoleCitizen)
	contractor := f.createContractor(t, "builder@example.com", 80, 4)
	p := f.reportBiddingProblem(t, citizen.ID)
	_, err := f.svc.Bidding.SubmitBid(ctx, contractor.ID, models.SubmitBidRequest{ProblemID: p.ID, QuoteAmount: 500})
	require.NoError(t, err)

	f.classifier.EXPECT().SelectBid(gomock.Any(), gomock.Any()).
		Return(nil, &classifier.CallError{Op: classifier.OpSelectBid, Outcome: classifier.OutcomeTimeout})
	_, err = f.svc.Bidding.SelectWinningBid(ctx, p.BiddingSessionID)
	assert.Error(t, err)

	f.classifier.EXPECT().SelectBid(gomock.Any(), gomock.Any()).
		Return(&classifier.BidSelection{SelectedBidID: "bid_unknown"}, nil)
	_, err = f.svc.Bidding.SelectWinningBid(ctx, p.BiddingSessionID)
	assert.Error(t, err)

	session, err := f.svc.Bidding.GetSession(ctx, p.BiddingSessionID)
	require.NoError(t, err)
	assert.Equal(t, models.BiddingOpen, session.Status)
	assert.Empty(t, session.SelectedBidID)

	problem, err := f.svc.Problems.GetProblemByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusBidding, problem.Status)
}

func TestCloseBiddingSession(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	citizen := f.createUser(t, "citizen@example.com", models.RoleCitizen)
	p := f.reportBiddingProblem(t, citizen.ID)

	closed, err := f.svc.Bidding.CloseBiddingSession(ctx, p.BiddingSessionID)
	require.NoError(t, err)
	assert.Equal(t, models.BiddingClosed, closed.Status)
	assert.NotNil(t, closed.ClosedAt)

	_, err = f.svc.Bidding.CloseBiddingSession(ctx, p.BiddingSessionID)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = f.svc.Bidding.CloseBiddingSession(ctx, "bid_sess_missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
