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

// BiddingService runs contractor bidding sessions. A session moves from
// open to either closed or awarded, and never leaves those states.
type BiddingService struct {
	*env
	accounts *UserService
	reports  *ProblemService
}

// CreateBiddingSession opens a session for a problem that is in bidding.
// Only one open session may exist per problem.
func (s *BiddingService) CreateBiddingSession(ctx context.Context, problemID string) (*models.BiddingSession, error) {
	problem, err := s.reports.GetProblemByID(ctx, problemID)
	if err != nil {
		return nil, err
	}
	if problem.Status != models.StatusBidding {
		return nil, apperr.Validation(fmt.Sprintf("problem is %s, not open for bidding", problem.Status))
	}
	if open, err := s.openSession(ctx, problemID); err != nil {
		return nil, err
	} else if open != nil {
		return nil, apperr.Conflict("problem already has an open bidding session")
	}

	now := s.now()
	session := &models.BiddingSession{
		ID:        s.newID("bid_sess"),
		ProblemID: problemID,
		Bids:      []models.Bid{},
		Status:    models.BiddingOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sessions.Set(ctx, session.ID, session); err != nil {
		return nil, err
	}
	if err := s.problems.Update(ctx, problemID, database.Document{"biddingSessionId": session.ID}); err != nil {
		return nil, err
	}

	s.logFor(ctx).WithField("session_id", session.ID).WithField("problem_id", problemID).Info("bidding session opened")
	return session, nil
}

func (s *BiddingService) GetSession(ctx context.Context, id string) (*models.BiddingSession, error) {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "bidding session")
	}
	return session, nil
}

// GetSessionsForProblem lists every session run for a problem, oldest first.
func (s *BiddingService) GetSessionsForProblem(ctx context.Context, problemID string) ([]models.BiddingSession, error) {
	return s.sessions.FindAllSorted(ctx, eq("problemId", problemID), byCreatedAsc)
}

func (s *BiddingService) openSession(ctx context.Context, problemID string) (*models.BiddingSession, error) {
	sessions, err := s.GetSessionsForProblem(ctx, problemID)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		if sessions[i].Status == models.BiddingOpen {
			return &sessions[i], nil
		}
	}
	return nil, nil
}

// SubmitBid adds a contractor's quote to the problem's open session. The
// bid is stored both inside the session and on its own.
func (s *BiddingService) SubmitBid(ctx context.Context, contractorID string, req models.SubmitBidRequest) (*models.Bid, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	sessions, err := s.GetSessionsForProblem(ctx, req.ProblemID)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, apperr.NotFound("bidding session not found for this problem")
	}
	session, err := s.openSession(ctx, req.ProblemID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperr.Conflict("bidding session is no longer open")
	}

	now := s.now()
	bid := models.Bid{
		ID:               s.newID("bid"),
		BiddingSessionID: session.ID,
		ProblemID:        req.ProblemID,
		ContractorID:     contractorID,
		QuoteAmount:      req.QuoteAmount,
		Notes:            validation.SanitizeString(req.Notes),
		CreatedAt:        now,
	}

	session.Bids = append(session.Bids, bid)
	session.UpdatedAt = now
	if err := s.sessions.Set(ctx, session.ID, session); err != nil {
		return nil, err
	}
	if err := s.bids.Set(ctx, bid.ID, &bid); err != nil {
		return nil, err
	}

	s.logFor(ctx).WithField("bid_id", bid.ID).WithField("contractor_id", contractorID).Info("bid submitted")
	s.publish(ctx, events.EventBidSubmitted, events.BidData{SessionID: session.ID, Bid: bid})
	return &bid, nil
}

// GetBidsForProblem reads the standalone bid records of a problem.
func (s *BiddingService) GetBidsForProblem(ctx context.Context, problemID string) ([]models.Bid, error) {
	return s.bids.FindAllSorted(ctx, eq("problemId", problemID), byCreatedAsc)
}

// SelectWinningBid asks the classifier to pick among the session's bids,
// awards the session and assigns the winner to the problem. Nothing is
// written unless the classifier returns a bid from this session.
func (s *BiddingService) SelectWinningBid(ctx context.Context, sessionID string) (*models.BiddingSession, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.BiddingOpen {
		return nil, apperr.Conflict(fmt.Sprintf("bidding session is %s", session.Status))
	}
	if len(session.Bids) == 0 {
		return nil, apperr.Validation("no bids available for selection")
	}

	candidates := make([]classifier.BidCandidate, 0, len(session.Bids))
	for _, bid := range session.Bids {
		c := classifier.BidCandidate{
			BidID:        bid.ID,
			ContractorID: bid.ContractorID,
			QuoteAmount:  bid.QuoteAmount,
		}
		if user, err := s.accounts.GetUserByID(ctx, bid.ContractorID); err == nil && user.Contractor != nil {
			c.ContractorTrustScore = user.Contractor.TrustScore
			c.ContractorCompletedJobs = user.Contractor.CompletedJobs
		} else if err != nil && !apperr.Is(err, apperr.KindNotFound) {
			return nil, err
		}
		candidates = append(candidates, c)
	}

	selection, err := s.classifier.SelectBid(ctx, classifier.BidSelectionRequest{
		ProblemID: session.ProblemID,
		Bids:      candidates,
	})
	if err != nil {
		return nil, apperr.Internal("bid selection failed", err)
	}

	var winner *models.Bid
	for i := range session.Bids {
		if session.Bids[i].ID == selection.SelectedBidID {
			winner = &session.Bids[i]
			break
		}
	}
	if winner == nil {
		return nil, apperr.Internal("bid selection failed",
			fmt.Errorf("selected bid %q is not part of session %s", selection.SelectedBidID, session.ID))
	}

	now := s.now()
	session.SelectedBidID = winner.ID
	session.SelectedContractorID = winner.ContractorID
	session.Rationale = selection.Rationale
	session.Score = selection.Score
	session.Status = models.BiddingAwarded
	session.AwardedAt = timePtr(now)
	session.UpdatedAt = now
	if err := s.sessions.Set(ctx, session.ID, session); err != nil {
		return nil, err
	}

	if err := s.reports.AssignContractor(ctx, session.ProblemID, winner.ContractorID, session.ID); err != nil {
		return nil, err
	}

	s.logFor(ctx).WithField("session_id", session.ID).WithField("bid_id", winner.ID).Info("bid selected")
	s.publish(ctx, events.EventBidAwarded, events.AwardData{Session: *session})
	return session, nil
}

// CloseBiddingSession ends an open session without a winner.
func (s *BiddingService) CloseBiddingSession(ctx context.Context, sessionID string) (*models.BiddingSession, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.BiddingOpen {
		return nil, apperr.Conflict(fmt.Sprintf("bidding session is %s", session.Status))
	}
	now := s.now()
	session.Status = models.BiddingClosed
	session.ClosedAt = timePtr(now)
	session.UpdatedAt = now
	if err := s.sessions.Set(ctx, session.ID, session); err != nil {
		return nil, err
	}
	s.logFor(ctx).WithField("session_id", session.ID).Info("bidding session closed")
	return session, nil
}
