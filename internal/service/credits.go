package service

import (
	"context"

	"civic-reporting-api/internal/apperr"
	"civic-reporting-api/internal/database"
	"civic-reporting-api/internal/events"
	"civic-reporting-api/internal/models"
	"civic-reporting-api/internal/validation"
)

// CreditService keeps the books for green credits bought by companies and
// spent on problems.
type CreditService struct {
	*env
	accounts *UserService
}

// PurchaseGreenCredits records a new block of credits for companyID.
func (s *CreditService) PurchaseGreenCredits(ctx context.Context, companyID string, req models.PurchaseRequest) (*models.GreenCreditPurchase, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	now := s.now()
	purchase := &models.GreenCreditPurchase{
		ID:              s.newID("gc_purch"),
		CompanyID:       companyID,
		AmountPurchased: req.AmountPurchased,
		UnitPrice:       req.UnitPrice,
		TotalCost:       req.AmountPurchased * req.UnitPrice,
		CurrentBalance:  req.AmountPurchased,
		AllocationLogs:  []models.AllocationLog{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.purchases.Set(ctx, purchase.ID, purchase); err != nil {
		return nil, err
	}
	if err := s.accounts.adjustCompanyCredits(ctx, companyID, req.AmountPurchased, 0); err != nil {
		return nil, err
	}

	s.logFor(ctx).WithField("purchase_id", purchase.ID).WithField("amount", purchase.AmountPurchased).Info("green credits purchased")
	return purchase, nil
}

// GetGreenCreditBalance sums the remaining balance of every purchase made
// by companyID.
func (s *CreditService) GetGreenCreditBalance(ctx context.Context, companyID string) (*models.GreenCreditBalance, error) {
	purchases, err := s.purchases.FindBy(ctx, "companyId", database.OpEqual, companyID)
	if err != nil {
		return nil, err
	}
	balance := &models.GreenCreditBalance{CompanyID: companyID}
	for _, p := range purchases {
		balance.Balance += p.CurrentBalance
	}
	return balance, nil
}

// GetGreenCreditHistory lists a company's purchases, newest first.
func (s *CreditService) GetGreenCreditHistory(ctx context.Context, companyID string) ([]models.GreenCreditPurchase, error) {
	return s.purchases.FindAllSorted(ctx, eq("companyId", companyID), byCreatedDesc)
}

// AllocateGreenCredits draws amount from the oldest purchase that can cover
// it in full and adds it to the problem's budget. Purchases are never split
// and never go negative.
func (s *CreditService) AllocateGreenCredits(ctx context.Context, req models.AllocationRequest) (*models.GreenCreditPurchase, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	problem, err := s.problems.Get(ctx, req.ProblemID)
	if err != nil {
		return nil, notFound(err, "problem")
	}

	purchases, err := s.purchases.FindAllSorted(ctx, nil, byCreatedAsc)
	if err != nil {
		return nil, err
	}
	var source *models.GreenCreditPurchase
	for i := range purchases {
		if purchases[i].CurrentBalance >= req.AmountToAllocate {
			source = &purchases[i]
			break
		}
	}
	if source == nil {
		return nil, apperr.NotFound("no green credit purchase with sufficient balance")
	}

	now := s.now()
	source.CurrentBalance -= req.AmountToAllocate
	source.AllocationLogs = append(source.AllocationLogs, models.AllocationLog{
		AllocationID: s.newID("alloc"),
		ProblemID:    req.ProblemID,
		AmountSpent:  req.AmountToAllocate,
		AllocatedAt:  now,
	})
	source.UpdatedAt = now
	if err := s.purchases.Set(ctx, source.ID, source); err != nil {
		return nil, err
	}

	if err := s.problems.Update(ctx, problem.ID, database.Document{
		"estimatedBudget": problem.EstimatedBudget + req.AmountToAllocate,
		"updatedAt":       now,
	}); err != nil {
		return nil, err
	}
	if err := s.accounts.adjustCompanyCredits(ctx, source.CompanyID, -req.AmountToAllocate, req.AmountToAllocate); err != nil {
		return nil, err
	}

	s.logFor(ctx).WithField("purchase_id", source.ID).
		WithField("problem_id", req.ProblemID).
		WithField("amount", req.AmountToAllocate).
		Info("green credits allocated")
	s.publish(ctx, events.EventCreditsAllocated, events.AllocationData{
		PurchaseID: source.ID,
		ProblemID:  req.ProblemID,
		Amount:     req.AmountToAllocate,
	})
	return source, nil
}
