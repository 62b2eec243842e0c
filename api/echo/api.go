package echo

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	apierrors "github.com/helioslabs/userhub/errors"

	"github.com/helioslabs/userhub/domain"
	"github.com/helioslabs/userhub/internal/billing"
	"github.com/helioslabs/userhub/internal/webhook"
	"github.com/helioslabs/userhub/services"
)

// HeaderClerkUserID carries the caller's identity id, set by the dashboard's
// session middleware in front of this service.
const HeaderClerkUserID = "x-clerk-user-id"

// API struct to hold dependencies.
type API struct {
	verifier *webhook.Verifier
	router   *webhook.Router
	billing  *billing.Processor
	users    *services.UserService
	ping     func(ctx context.Context) error
}

// NewAPI initializes the HTTP API. billingProc may be nil when no Stripe
// secret is configured.
func NewAPI(
	verifier *webhook.Verifier,
	router *webhook.Router,
	billingProc *billing.Processor,
	users *services.UserService,
	ping func(ctx context.Context) error,
) *API {
	return &API{
		verifier: verifier,
		router:   router,
		billing:  billingProc,
		users:    users,
		ping:     ping,
	}
}

// RegisterRoutes registers the API routes. Echo answers 405 for any other
// method on these paths.
func (a *API) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/webhooks/clerk", a.ClerkWebhookHandler)
	e.POST("/api/webhooks/stripe", a.StripeWebhookHandler)
	e.PUT("/api/users/me", a.UpdateMeHandler)
	e.DELETE("/api/users/me", a.DeleteMeHandler)
	e.GET("/api/admin/users", a.ListUsersHandler)
	e.GET("/healthz", a.HealthHandler)
}

// ClerkWebhookHandler is the signed event ingress: verify, decode, dispatch.
func (a *API) ClerkWebhookHandler(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil || len(body) == 0 {
		return c.JSON(http.StatusBadRequest, apierrors.NewInvalidPayload("missing request body"))
	}

	event, err := a.verifier.VerifyAndParse(c.Request().Header, body)
	if err != nil {
		switch {
		case errors.Is(err, webhook.ErrMissingHeaders),
			errors.Is(err, webhook.ErrInvalidTimestamp),
			errors.Is(err, webhook.ErrSignatureMismatch):
			return c.JSON(http.StatusBadRequest, apierrors.NewVerificationFailed(err.Error()))
		default:
			return c.JSON(http.StatusBadRequest, apierrors.NewInvalidPayload(err.Error()))
		}
	}

	if err := a.router.Dispatch(c.Request().Context(), event); err != nil {
		if domain.IsValidation(err) {
			return c.JSON(http.StatusBadRequest, apierrors.NewInvalidPayload(err.Error()))
		}
		log.Error().Err(err).Str("event_type", event.EventType()).Msg("Webhook handler failed")
		return c.JSON(http.StatusInternalServerError, apierrors.NewServerError(err.Error()))
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "webhook processed"})
}

// StripeWebhookHandler ingests payment-provider subscription events.
func (a *API) StripeWebhookHandler(c echo.Context) error {
	if a.billing == nil {
		return c.JSON(http.StatusNotFound, apierrors.NewNotFound("billing webhooks not configured"))
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil || len(body) == 0 {
		return c.JSON(http.StatusBadRequest, apierrors.NewInvalidPayload("missing request body"))
	}

	sig := c.Request().Header.Get("Stripe-Signature")
	if err := a.billing.HandleWebhook(c.Request().Context(), body, sig); err != nil {
		if errors.Is(err, billing.ErrInvalidSignature) {
			return c.JSON(http.StatusBadRequest, apierrors.NewVerificationFailed(err.Error()))
		}
		log.Error().Err(err).Msg("Billing webhook handler failed")
		return c.JSON(http.StatusInternalServerError, apierrors.NewServerError(err.Error()))
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "webhook processed"})
}

// UpdateMeHandler applies a partial update to the caller's own record.
// Unknown fields are rejected.
func (a *API) UpdateMeHandler(c echo.Context) error {
	clerkID := c.Request().Header.Get(HeaderClerkUserID)
	if clerkID == "" {
		return c.JSON(http.StatusUnauthorized, apierrors.NewUnauthorized("missing identity"))
	}

	decoder := json.NewDecoder(c.Request().Body)
	decoder.DisallowUnknownFields()
	var patch services.UserPatch
	if err := decoder.Decode(&patch); err != nil {
		return c.JSON(http.StatusBadRequest, apierrors.NewInvalidPayload(err.Error()))
	}

	user, err := a.users.UpdateSelf(c.Request().Context(), clerkID, patch)
	if err != nil {
		switch {
		case domain.IsValidation(err):
			return c.JSON(http.StatusBadRequest, apierrors.NewInvalidPayload(err.Error()))
		case errors.Is(err, domain.ErrUserNotFound):
			return c.JSON(http.StatusNotFound, apierrors.NewNotFound("user not found"))
		default:
			log.Error().Err(err).Str("clerk_id", clerkID).Msg("Self-service update failed")
			return c.JSON(http.StatusInternalServerError, apierrors.NewServerError(err.Error()))
		}
	}

	return c.JSON(http.StatusOK, user)
}

// DeleteMeHandler removes the caller's own record by identity id.
func (a *API) DeleteMeHandler(c echo.Context) error {
	clerkID := c.Request().Header.Get(HeaderClerkUserID)
	if clerkID == "" {
		return c.JSON(http.StatusUnauthorized, apierrors.NewUnauthorized("missing identity"))
	}

	if err := a.users.DeleteSelf(c.Request().Context(), clerkID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, apierrors.NewNotFound("user not found"))
		}
		log.Error().Err(err).Str("clerk_id", clerkID).Msg("Self-service delete failed")
		return c.JSON(http.StatusInternalServerError, apierrors.NewServerError(err.Error()))
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "account deleted"})
}

// ListUsersHandler serves the paginated, filterable admin listing.
func (a *API) ListUsersHandler(c echo.Context) error {
	q := domain.UserListQuery{
		Search:  c.QueryParam("search"),
		Role:    domain.UserRole(c.QueryParam("role")),
		Plan:    domain.UserPlan(c.QueryParam("plan")),
		Status:  domain.UserStatus(c.QueryParam("status")),
		SortBy:  c.QueryParam("sortBy"),
		SortAsc: c.QueryParam("sortDir") == "asc",
	}
	if q.Plan == "" {
		q.Plan = domain.UserPlan(c.QueryParam("subscription"))
	}
	if v, err := strconv.ParseInt(c.QueryParam("page"), 10, 64); err == nil {
		q.Page = v
	}
	if v, err := strconv.ParseInt(c.QueryParam("pageSize"), 10, 64); err == nil {
		q.PageSize = v
	}

	page, err := a.users.ListAdmin(c.Request().Context(), q)
	if err != nil {
		log.Error().Err(err).Msg("Admin listing failed")
		return c.JSON(http.StatusInternalServerError, apierrors.NewServerError(err.Error()))
	}
	return c.JSON(http.StatusOK, page)
}

// HealthHandler reports document-store reachability.
func (a *API) HealthHandler(c echo.Context) error {
	if a.ping != nil {
		if err := a.ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
