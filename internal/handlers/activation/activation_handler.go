// internal/handlers/activation/activation_handler.go
package activation

import (
	"fmt"
	"net/http"
	"net/url"

	"settlement-service/internal/domain/activation"
	"settlement-service/internal/middleware"
	xerrors "settlement-service/internal/pkg/errors"
	"settlement-service/internal/pkg/response"
	"settlement-service/internal/pkg/tokencache"
	service "settlement-service/internal/service/activation"

	"github.com/gin-gonic/gin"
)

type ActivationHandler struct {
	activationService *service.Service
	tokens            *tokencache.Cache
	loginURL          string
}

func NewActivationHandler(activationService *service.Service, tokens *tokencache.Cache, loginURL string) *ActivationHandler {
	return &ActivationHandler{
		activationService: activationService,
		tokens:            tokens,
		loginURL:          loginURL,
	}
}

// ========== Partner Channel Endpoints ==========

// Issue records a channel purchase and mails its one-time activation link
func (h *ActivationHandler) Issue(c *gin.Context) {
	var req activation.IssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	a, activationURL, err := h.activationService.Issue(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, statusFor(err), "failed to issue activation", err)
		return
	}

	response.Success(c, http.StatusCreated, "activation issued", activation.IssueResponse{
		Channel:       a.Channel,
		OrderID:       a.OrderID,
		ActivationURL: activationURL,
		LinkExpiresAt: a.LinkExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

// ========== User Endpoints ==========

// Redeem consumes an activation link for the signed-in user. Anonymous
// visitors get their token parked and are bounced to login; the link in the
// login redirect brings them back here with a state id instead of the token.
func (h *ActivationHandler) Redeem(c *gin.Context) {
	ctx := c.Request.Context()

	token := c.Query("token")
	if state := c.Query("state"); token == "" && state != "" {
		parked, err := h.tokens.TakeToken(ctx, state)
		if err != nil {
			response.Error(c, http.StatusGone, "login session expired, open the activation link again", err)
			return
		}
		token = parked
	}

	if token == "" {
		response.Error(c, http.StatusBadRequest, "missing activation token", nil)
		return
	}

	if !middleware.IsAuthenticated(c) {
		state, err := h.tokens.ParkToken(ctx, token)
		if err != nil {
			response.Error(c, http.StatusInternalServerError, "failed to start activation", err)
			return
		}
		c.Redirect(http.StatusFound, fmt.Sprintf("%s?state=%s", h.loginURL, url.QueryEscape(state)))
		return
	}

	userID := middleware.MustGetIdentityID(c)
	result, err := h.activationService.Redeem(ctx, token, userID, middleware.GetEmail(c))
	if err != nil {
		response.Error(c, statusFor(err), "failed to redeem activation", err)
		return
	}

	response.Success(c, http.StatusOK, "license activated", result)
}

func statusFor(err error) int {
	switch {
	case xerrors.Is(err, xerrors.ErrInvalidInput):
		return http.StatusBadRequest
	case xerrors.Is(err, xerrors.ErrSignature):
		return http.StatusUnauthorized
	case xerrors.Is(err, xerrors.ErrForbidden):
		return http.StatusForbidden
	case xerrors.Is(err, xerrors.ErrNotFound):
		return http.StatusNotFound
	case xerrors.Is(err, xerrors.ErrExpired):
		return http.StatusGone
	case xerrors.Is(err, xerrors.ErrConflict), xerrors.Is(err, xerrors.ErrConcurrencyConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
