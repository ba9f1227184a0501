package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"onboarding/internal/customer/models"
	"onboarding/internal/platform/metrics"
	"onboarding/internal/platform/middleware"
	id "onboarding/pkg/domain"
	dErrors "onboarding/pkg/domain-errors"
	"onboarding/pkg/platform/httputil"
	authmw "onboarding/pkg/platform/middleware/auth"
	"onboarding/pkg/platform/middleware/metadata"
	"onboarding/pkg/platform/middleware/requesttime"
	"onboarding/pkg/requestcontext"
)

const customerIDParam = "customerID"

// Service defines the customer onboarding operations exposed over HTTP.
type Service interface {
	Register(ctx context.Context, req *models.RegistrationRequest) (*models.RegistrationResult, error)
	VerifyEmail(ctx context.Context, rawToken string) (*models.VerifyEmailResult, error)
	ResendVerification(ctx context.Context, email string) (*models.ResendResult, error)
	CompleteProfile(ctx context.Context, customerID id.CustomerID, req *models.ProfileRequest) (*models.ProfileResult, error)
	GetProfile(ctx context.Context, customerID id.CustomerID) (*models.ProfileResult, error)
	UpdateContact(ctx context.Context, customerID id.CustomerID, req *models.ProfileUpdateRequest) (*models.ProfileResult, error)
}

// Handler serves the customer onboarding endpoints.
type Handler struct {
	logger       *slog.Logger
	service      Service
	metrics      *metrics.Metrics
	jwtValidator authmw.JWTValidator
}

// New creates a new customer Handler.
func New(
	service Service,
	logger *slog.Logger,
	metrics *metrics.Metrics,
	jwtValidator authmw.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		service:      service,
		metrics:      metrics,
		jwtValidator: jwtValidator,
	}
}

// Register registers the customer routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	customerRouter := chi.NewRouter()
	customerRouter.Use(middleware.Recovery(h.logger))
	customerRouter.Use(metadata.RequestID)
	customerRouter.Use(metadata.ClientMetadata)
	customerRouter.Use(requesttime.Middleware)
	customerRouter.Use(middleware.Logger(h.logger))
	customerRouter.Use(chimw.Timeout(30 * time.Second))
	customerRouter.Use(middleware.ContentTypeJSON)
	if h.metrics != nil {
		customerRouter.Use(middleware.Latency(h.metrics))
	}

	customerRouter.Post("/api/v1/customers", h.handleRegister)
	customerRouter.Post("/api/v1/customers/verify-email", h.handleVerifyEmail)
	customerRouter.Post("/api/v1/customers/resend-verification", h.handleResendVerification)

	customerRouter.Group(func(pr chi.Router) {
		pr.Use(authmw.RequireAuth(h.jwtValidator, h.logger))
		pr.Use(authmw.RequireSubjectMatch(customerIDParam, h.logger))
		pr.Put("/api/v1/customers/{customerID}/profile", h.handleCompleteProfile)
		pr.Get("/api/v1/customers/{customerID}/profile", h.handleGetProfile)
		pr.Patch("/api/v1/customers/{customerID}/profile", h.handleUpdateContact)
	})

	r.Mount("/", customerRouter)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := httputil.DecodeJSON[models.RegistrationRequest](r)
	if err != nil {
		h.logRequestFailure(ctx, "invalid registration request", err)
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Register(ctx, req)
	if err != nil {
		h.logRequestFailure(ctx, "registration failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := httputil.DecodeJSON[models.VerifyEmailRequest](r)
	if err != nil {
		h.logRequestFailure(ctx, "invalid verify email request", err)
		httputil.WriteError(w, err)
		return
	}

	req.Normalize()

	result, err := h.service.VerifyEmail(ctx, req.Token)
	if err != nil {
		h.logRequestFailure(ctx, "email verification failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := httputil.DecodeJSON[models.ResendVerificationRequest](r)
	if err != nil {
		h.logRequestFailure(ctx, "invalid resend request", err)
		httputil.WriteError(w, err)
		return
	}

	req.Normalize()

	result, err := h.service.ResendVerification(ctx, req.Email)
	if err != nil {
		h.logRequestFailure(ctx, "resend verification failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, result)
}

func (h *Handler) handleCompleteProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID, ok := h.pathCustomerID(w, r)
	if !ok {
		return
	}
	req, err := httputil.DecodeJSON[models.ProfileRequest](r)
	if err != nil {
		h.logRequestFailure(ctx, "invalid profile request", err)
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.CompleteProfile(ctx, customerID, req)
	if err != nil {
		h.logRequestFailure(ctx, "profile completion failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID, ok := h.pathCustomerID(w, r)
	if !ok {
		return
	}

	result, err := h.service.GetProfile(ctx, customerID)
	if err != nil {
		h.logRequestFailure(ctx, "get profile failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleUpdateContact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID, ok := h.pathCustomerID(w, r)
	if !ok {
		return
	}
	req, err := httputil.DecodeJSON[models.ProfileUpdateRequest](r)
	if err != nil {
		h.logRequestFailure(ctx, "invalid contact update request", err)
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.UpdateContact(ctx, customerID, req)
	if err != nil {
		h.logRequestFailure(ctx, "contact update failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) pathCustomerID(w http.ResponseWriter, r *http.Request) (id.CustomerID, bool) {
	customerID, err := id.ParseCustomerID(chi.URLParam(r, customerIDParam))
	if err != nil {
		httputil.WriteError(w, err)
		return id.CustomerID{}, false
	}
	return customerID, true
}

// logRequestFailure logs client errors at warn and everything else at error.
func (h *Handler) logRequestFailure(ctx context.Context, msg string, err error) {
	attrs := []any{
		"error", err.Error(),
		"request_id", requestcontext.RequestID(ctx),
	}
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, attrs...)
		return
	}
	h.logger.WarnContext(ctx, msg, attrs...)
}
