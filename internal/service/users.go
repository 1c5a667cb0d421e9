package service

import (
	"context"
	"errors"
	"strings"

	"civic-reporting-api/internal/apperr"
	"civic-reporting-api/internal/database"
	"civic-reporting-api/internal/models"
	"civic-reporting-api/internal/validation"
)

// NewUser carries the fields needed to create an account.
type NewUser struct {
	Email        string
	PasswordHash string
	Name         string
	Role         models.Role
}

// UserService owns user accounts, contractor and company profiles and the
// reward-credit ledger.
type UserService struct {
	*env
}

// CreateUser stores a new account and its empty credit ledger. Emails are
// unique, case-insensitively.
func (s *UserService) CreateUser(ctx context.Context, in NewUser) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return nil, apperr.Validation("email is required")
	}
	if in.Role == "" {
		in.Role = models.RoleCitizen
	}
	if !in.Role.Valid() {
		return nil, apperr.Validation("unknown role " + string(in.Role))
	}

	existing, err := s.users.FindBy(ctx, "email", database.OpEqual, email)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, apperr.Conflict("email already registered")
	}

	now := s.now()
	user := &models.User{
		ID:           s.newID("user"),
		Email:        email,
		PasswordHash: in.PasswordHash,
		Name:         validation.SanitizeString(in.Name),
		Role:         in.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Set(ctx, user.ID, user); err != nil {
		return nil, err
	}

	ledger := &models.OneCreditLedger{ID: user.ID, UserID: user.ID, UpdatedAt: now}
	if err := s.ledgers.Set(ctx, ledger.ID, ledger); err != nil {
		return nil, err
	}

	s.logFor(ctx).WithField("user_id", user.ID).WithField("role", user.Role).Info("user created")
	return user, nil
}

func (s *UserService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "user")
	}
	return user, nil
}

// GetUserByEmail returns the account registered under email, if any.
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	users, err := s.users.FindBy(ctx, "email", database.OpEqual, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, apperr.NotFound("user not found")
	}
	return &users[0], nil
}

// UpdateUserCredits overwrites the user's reward-credit balance. The ledger
// mirrors the new balance when one exists.
func (s *UserService) UpdateUserCredits(ctx context.Context, userID string, balance float64) error {
	if balance < 0 {
		return apperr.Validation("credit balance cannot be negative")
	}
	if _, err := s.GetUserByID(ctx, userID); err != nil {
		return err
	}
	now := s.now()
	if err := s.users.Update(ctx, userID, database.Document{
		"oneCreditsBalance": balance,
		"updatedAt":         now,
	}); err != nil {
		return err
	}
	return s.ledgers.Update(ctx, userID, database.Document{
		"balance":   balance,
		"updatedAt": now,
	})
}

// AdjustCredits adds delta to the user's balance and records it in the
// ledger totals. A debit that would overdraw the balance is rejected.
func (s *UserService) AdjustCredits(ctx context.Context, userID string, delta float64) (*models.User, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	next := user.OneCreditsBalance + delta
	if next < 0 {
		return nil, apperr.Validation("insufficient credits")
	}
	if err := s.UpdateUserCredits(ctx, userID, next); err != nil {
		return nil, err
	}

	ledger, err := s.ledgers.Get(ctx, userID)
	if err == nil {
		if delta > 0 {
			ledger.TotalEarned += delta
		} else {
			ledger.TotalRedeemed -= delta
		}
		ledger.Balance = next
		ledger.UpdatedAt = s.now()
		if err := s.ledgers.Set(ctx, userID, ledger); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	user.OneCreditsBalance = next
	return user, nil
}

// GetLedger returns the user's credit ledger.
func (s *UserService) GetLedger(ctx context.Context, userID string) (*models.OneCreditLedger, error) {
	ledger, err := s.ledgers.Get(ctx, userID)
	if err != nil {
		return nil, notFound(err, "credit ledger")
	}
	return ledger, nil
}

// RegisterContractor attaches a contractor profile with a neutral trust score.
func (s *UserService) RegisterContractor(ctx context.Context, userID string, req models.RegisterContractorRequest) (*models.User, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role != models.RoleCitizen && user.Role != models.RoleContractor {
		return nil, apperr.Conflict("only citizen or contractor accounts can register as contractors")
	}

	profile := &models.ContractorProfile{
		Domain:       validation.SanitizeString(req.Domain),
		TrustScore:   50,
		ServiceAreas: req.ServiceAreas,
	}
	if user.Contractor != nil {
		profile.TrustScore = user.Contractor.TrustScore
		profile.CompletedJobs = user.Contractor.CompletedJobs
		profile.AverageRating = user.Contractor.AverageRating
	}
	user.Role = models.RoleContractor
	user.Contractor = profile
	user.UpdatedAt = s.now()
	if err := s.users.Set(ctx, user.ID, user); err != nil {
		return nil, err
	}
	return user, nil
}

// RegisterCompany attaches a company profile to the user.
func (s *UserService) RegisterCompany(ctx context.Context, userID string, req models.RegisterCompanyRequest) (*models.User, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role != models.RoleCitizen && user.Role != models.RoleCompany {
		return nil, apperr.Conflict("only citizen or company accounts can register as companies")
	}

	profile := &models.CompanyProfile{
		CompanyName:        validation.SanitizeString(req.CompanyName),
		RegistrationNumber: req.RegistrationNumber,
	}
	if user.Company != nil {
		profile.GreenCreditsBalance = user.Company.GreenCreditsBalance
		profile.GreenCreditSpent = user.Company.GreenCreditSpent
		profile.ImpactScore = user.Company.ImpactScore
	}
	user.Role = models.RoleCompany
	user.Company = profile
	user.UpdatedAt = s.now()
	if err := s.users.Set(ctx, user.ID, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetContractorProfile returns a contractor account.
func (s *UserService) GetContractorProfile(ctx context.Context, id string) (*models.User, error) {
	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role != models.RoleContractor || user.Contractor == nil {
		return nil, apperr.NotFound("contractor not found")
	}
	return user, nil
}

// GetContractorsByDomain lists contractors working in domain.
func (s *UserService) GetContractorsByDomain(ctx context.Context, domain string) ([]models.User, error) {
	users, err := s.users.FindBy(ctx, "role", database.OpEqual, string(models.RoleContractor))
	if err != nil {
		return nil, err
	}
	out := make([]models.User, 0, len(users))
	for _, u := range users {
		if u.Contractor != nil && strings.EqualFold(u.Contractor.Domain, domain) {
			out = append(out, u)
		}
	}
	return out, nil
}

// UpdateContractorTrustScore sets the trust score, clamped to [0, 100].
func (s *UserService) UpdateContractorTrustScore(ctx context.Context, id string, score float64) (*models.User, error) {
	user, err := s.GetContractorProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Contractor.TrustScore = min(max(score, 0), 100)
	user.UpdatedAt = s.now()
	if err := s.users.Set(ctx, user.ID, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) incrementCompletedJobs(ctx context.Context, contractorID string) error {
	user, err := s.GetContractorProfile(ctx, contractorID)
	if err != nil {
		return err
	}
	user.Contractor.CompletedJobs++
	user.UpdatedAt = s.now()
	return s.users.Set(ctx, user.ID, user)
}

// adjustCompanyCredits moves green credits on the company profile, if any.
func (s *UserService) adjustCompanyCredits(ctx context.Context, companyID string, balanceDelta, spentDelta float64) error {
	user, err := s.users.Get(ctx, companyID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil
		}
		return err
	}
	if user.Company == nil {
		return nil
	}
	user.Company.GreenCreditsBalance = max(user.Company.GreenCreditsBalance+balanceDelta, 0)
	user.Company.GreenCreditSpent += spentDelta
	user.UpdatedAt = s.now()
	return s.users.Set(ctx, user.ID, user)
}
