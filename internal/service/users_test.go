package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civic-reporting-api/internal/apperr"
	"civic-reporting-api/internal/auth"
	"civic-reporting-api/internal/models"
)

func TestRegisterAndLogin(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	res, err := f.svc.Auth.Register(ctx, models.RegisterRequest{
		Email:    "Asha@Example.com",
		Password: "secret1",
		Name:     "Asha",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "asha@example.com", res.User.Email)
	assert.Equal(t, models.RoleCitizen, res.User.Role)
	assert.Empty(t, res.User.PasswordHash)

	_, err = f.svc.Auth.Register(ctx, models.RegisterRequest{Email: "asha@example.com", Password: "secret1", Name: "Dup"})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	login, err := f.svc.Auth.Login(ctx, models.LoginRequest{Email: "asha@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, login.User.ID)

	_, err = f.svc.Auth.Login(ctx, models.LoginRequest{Email: "asha@example.com", Password: "wrong-pass"})
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
	_, err = f.svc.Auth.Login(ctx, models.LoginRequest{Email: "nobody@example.com", Password: "secret1"})
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	refreshed, err := f.svc.Auth.Refresh(ctx, auth.Principal{UserID: res.User.ID})
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.Token)

	_, err = f.svc.Auth.Refresh(ctx, auth.Principal{UserID: "user_gone"})
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestCreateAdmin(t *testing.T) {
	f := setupService(t)
	res, err := f.svc.Auth.CreateAdmin(context.Background(), "root@example.com", "hunter22", "Root")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, res.User.Role)

	_, err = f.svc.Auth.CreateAdmin(context.Background(), "root2@example.com", "123", "Root")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestUpdateUserCredits_Overwrites(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	u := f.createUser(t, "citizen@example.com", models.RoleCitizen)

	require.NoError(t, f.svc.Users.UpdateUserCredits(ctx, u.ID, 40))
	require.NoError(t, f.svc.Users.UpdateUserCredits(ctx, u.ID, 15))

	got, err := f.svc.Users.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 15.0, got.OneCreditsBalance)

	ledger, err := f.svc.Users.GetLedger(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 15.0, ledger.Balance)

	assert.Error(t, f.svc.Users.UpdateUserCredits(ctx, u.ID, -1))
	assert.True(t, apperr.Is(f.svc.Users.UpdateUserCredits(ctx, "user_missing", 5), apperr.KindNotFound))

	_, err = f.svc.Users.AdjustCredits(ctx, u.ID, -16)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestContractorProfiles(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	u := f.createUser(t, "builder@example.com", models.RoleCitizen)

	c, err := f.svc.Users.RegisterContractor(ctx, u.ID, models.RegisterContractorRequest{
		Domain:       "Roads",
		ServiceAreas: []string{"North", "East"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleContractor, c.Role)
	assert.Equal(t, 50.0, c.Contractor.TrustScore)

	_, err = f.svc.Users.RegisterContractor(ctx, u.ID, models.RegisterContractorRequest{Domain: "roads"})
	assert.Error(t, err)

	found, err := f.svc.Users.GetContractorsByDomain(ctx, "roads")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, u.ID, found[0].ID)

	updated, err := f.svc.Users.UpdateContractorTrustScore(ctx, u.ID, 140)
	require.NoError(t, err)
	assert.Equal(t, 100.0, updated.Contractor.TrustScore)
	updated, err = f.svc.Users.UpdateContractorTrustScore(ctx, u.ID, -3)
	require.NoError(t, err)
	assert.Zero(t, updated.Contractor.TrustScore)

	citizen := f.createUser(t, "citizen@example.com", models.RoleCitizen)
	_, err = f.svc.Users.GetContractorProfile(ctx, citizen.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	company := setupCompany(t, f, "acme@example.com")
	_, err = f.svc.Users.RegisterContractor(ctx, company.ID, models.RegisterContractorRequest{Domain: "roads", ServiceAreas: []string{"x"}})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}
