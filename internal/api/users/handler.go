package users

import (
	"context"
	"errors"
	"net/http"

	"imagecraft-app/internal/api/respond"
	"imagecraft-app/internal/app/http/middleware"
	"imagecraft-app/internal/billing"
	"imagecraft-app/internal/domain/subscriptions"
	"imagecraft-app/internal/domain/users"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type Store interface {
	GetUser(ctx context.Context, userID string) (*users.User, error)
	ListActiveSubscriptions(ctx context.Context, userID string) ([]subscriptions.Subscription, error)
}

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// GET /api/me
func (h *Handler) GetCurrentUser(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserID)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	user, err := h.store.GetUser(c.Request.Context(), userID)
	if errors.Is(err, billing.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("load user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
		return
	}

	active, err := h.store.ListActiveSubscriptions(c.Request.Context(), userID)
	if err != nil {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("load subscriptions")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscriptions"})
		return
	}

	c.JSON(http.StatusOK, MeResponse{
		User: UserDTO{
			ID:      user.ID,
			Email:   user.Email,
			Credits: user.Credits,
		},
		Billing: BillingDTO{
			HasCustomer:         user.HasStripeCustomer(),
			ActiveSubscriptions: respond.Subscriptions(active),
		},
	})
}
