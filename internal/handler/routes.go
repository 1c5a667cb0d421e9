package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"civic-reporting-api/internal/apperr"
	"civic-reporting-api/internal/middleware"
	"civic-reporting-api/internal/models"
)

// Routes returns the API router with per-route authentication applied.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	authn := middleware.Authenticate(h.tokens)
	admin := middleware.RequireRole(models.RoleAdmin)

	r.Get("/health", h.Health)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(authn).Post("/refresh", h.Refresh)
		r.With(authn).Post("/logout", h.Logout)
	})

	r.Route("/problems", func(r chi.Router) {
		r.Use(authn)
		r.With(middleware.RequireRole(models.RoleCitizen), h.reportLimit).Post("/", h.CreateProblem)
		r.Get("/mine", h.GetMyProblems)
		r.Get("/open", h.GetOpenProblems)
		r.Get("/{id}", h.GetProblem)
		r.With(admin).Patch("/{id}/status", h.UpdateProblemStatus)
	})

	r.Route("/bids", func(r chi.Router) {
		r.Use(authn)
		r.With(middleware.RequireRole(models.RoleContractor)).Post("/", h.SubmitBid)
		r.Get("/problem/{problemId}", h.GetBidsForProblem)
		r.With(admin).Post("/sessions", h.CreateBiddingSession)
		r.Get("/sessions/{sessionId}", h.GetBiddingSession)
		r.With(admin).Post("/{sessionId}/select", h.SelectWinningBid)
		r.With(admin).Post("/{sessionId}/close", h.CloseBiddingSession)
	})

	r.Route("/contractors", func(r chi.Router) {
		r.Use(authn)
		r.Post("/register", h.RegisterContractor)
		r.Get("/domain/{domain}", h.GetContractorsByDomain)
		r.Get("/{id}", h.GetContractor)
	})

	r.With(authn).Post("/companies/register", h.RegisterCompany)

	r.Route("/green-credits", func(r chi.Router) {
		r.Use(authn)
		company := middleware.RequireRole(models.RoleCompany)
		r.With(company).Post("/purchase", h.PurchaseGreenCredits)
		r.With(company).Get("/balance", h.GetGreenCreditBalance)
		r.With(company).Get("/history", h.GetGreenCreditHistory)
		r.With(admin).Post("/allocation", h.AllocateGreenCredits)
	})

	r.Route("/rewards", func(r chi.Router) {
		r.With(middleware.OptionalAuth(h.tokens)).Get("/list", h.ListRewards)
		r.With(authn, admin).Post("/", h.CreateReward)
		r.With(authn).Post("/redeem", h.RedeemReward)
		r.With(authn).Get("/history", h.GetRedemptionHistory)
	})

	r.Get("/heatmap", h.GetHeatmap)
	r.Get("/heatmap/aggregate", h.GetHeatmapAggregate)

	r.Route("/admin/n8n/jobs", func(r chi.Router) {
		r.Use(authn, admin)
		r.Get("/", h.ListJobs)
		r.Post("/{jobId}/process", h.ProcessJob)
	})
	r.With(authn, admin).Get("/admin/metrics", h.GetMetrics)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.respondStatus(w, http.StatusNotFound, apperr.KindNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.respondStatus(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})

	return r
}
