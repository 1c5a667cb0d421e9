package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"civic-reporting-api/internal/apperr"
	"civic-reporting-api/internal/auth"
	"civic-reporting-api/internal/logger"
	"civic-reporting-api/internal/models"
	"civic-reporting-api/internal/service"
	"civic-reporting-api/internal/validation"
)

// Handler provides HTTP handlers for the API.
type Handler struct {
	service     *service.Service
	tokens      *auth.TokenManager
	maxBodySize int64
	reportLimit func(http.Handler) http.Handler
	log         *logrus.Logger
	now         func() time.Time
}

// NewHandlerOptions holds options for creating a handler.
type NewHandlerOptions struct {
	MaxBodySize int64
	// ReportLimit wraps POST /problems. Nil applies no per-user limit.
	ReportLimit func(http.Handler) http.Handler
	Logger      *logrus.Logger
}

// DefaultHandlerOptions returns default handler options.
func DefaultHandlerOptions() NewHandlerOptions {
	return NewHandlerOptions{
		MaxBodySize: 10 << 20, // 10MB default
	}
}

// NewHandler creates a new handler instance.
func NewHandler(svc *service.Service, tokens *auth.TokenManager) *Handler {
	return NewHandlerWithOptions(svc, tokens, DefaultHandlerOptions())
}

// NewHandlerWithOptions creates a new handler instance with custom options.
func NewHandlerWithOptions(svc *service.Service, tokens *auth.TokenManager, opts NewHandlerOptions) *Handler {
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = DefaultHandlerOptions().MaxBodySize
	}
	if opts.Logger == nil {
		opts.Logger = logger.Get("http")
	}
	if opts.ReportLimit == nil {
		opts.ReportLimit = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{
		service:     svc,
		tokens:      tokens,
		maxBodySize: opts.MaxBodySize,
		reportLimit: opts.ReportLimit,
		log:         opts.Logger,
		now:         time.Now,
	}
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

// decode reads a JSON body into dst, bounded by the configured size.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			h.respondError(w, r, apperr.Validation("request body is required"))
		case errors.As(err, &tooLarge):
			h.respondStatus(w, http.StatusRequestEntityTooLarge, apperr.KindValidation, "request body too large")
		default:
			h.respondError(w, r, apperr.Validation("invalid JSON in request body"))
		}
		return false
	}
	return true
}

// principal returns the authenticated caller. Routes using it sit behind
// the Authenticate middleware.
func principal(r *http.Request) auth.Principal {
	p, _ := auth.PrincipalFromContext(r.Context())
	return p
}

// respondJSON sends data in a success envelope.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data any) {
	h.write(w, status, models.Response{Success: true, Data: data})
}

func (h *Handler) respondMessage(w http.ResponseWriter, status int, message string, data any) {
	h.write(w, status, models.Response{Success: true, Message: message, Data: data})
}

// respondError maps err onto a status code and error envelope. Unclassified
// errors are logged and reported as a generic internal error.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		appErr  *apperr.Error
		valErr  *validation.ValidationError
		invErr  *models.InvariantError
		tooLong *http.MaxBytesError
	)
	switch {
	case errors.As(err, &valErr):
		h.respondStatus(w, http.StatusBadRequest, apperr.KindValidation, valErr.Error())
	case errors.As(err, &invErr):
		h.respondStatus(w, http.StatusBadRequest, apperr.KindValidation, invErr.Error())
	case errors.As(err, &appErr):
		if appErr.Kind == apperr.KindInternal {
			logger.FromContext(r.Context(), h.log).WithError(err).Error("request failed")
		}
		msg := appErr.Message
		if msg == "" {
			msg = http.StatusText(apperr.Status(appErr.Kind))
		}
		h.respondStatus(w, apperr.Status(appErr.Kind), appErr.Kind, msg)
	case errors.As(err, &tooLong):
		h.respondStatus(w, http.StatusRequestEntityTooLarge, apperr.KindValidation, "request body too large")
	default:
		logger.FromContext(r.Context(), h.log).WithError(err).Error("unhandled error")
		h.respondStatus(w, http.StatusInternalServerError, apperr.KindInternal, "internal server error")
	}
}

func (h *Handler) respondStatus(w http.ResponseWriter, status int, kind apperr.Kind, message string) {
	h.write(w, status, models.Response{Success: false, Error: message, Code: string(kind)})
}

func (h *Handler) write(w http.ResponseWriter, status int, body models.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.WithError(err).Warn("failed to write response")
	}
}
