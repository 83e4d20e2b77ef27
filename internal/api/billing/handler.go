package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"imagecraft-app/internal/api/respond"
	"imagecraft-app/internal/app/http/middleware"
	"imagecraft-app/internal/billing"
	"imagecraft-app/internal/domain/subscriptions"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type SubscriptionLister interface {
	ListSubscriptions(ctx context.Context, userID string) ([]subscriptions.Subscription, error)
}

type Handler struct {
	checkout *billing.Checkout
	verifier *billing.Verifier
	history  SubscriptionLister
	errs     respond.Errors
}

func NewHandler(checkout *billing.Checkout, verifier *billing.Verifier, history SubscriptionLister, errs respond.Errors) *Handler {
	return &Handler{checkout: checkout, verifier: verifier, history: history, errs: errs}
}

type createSubscriptionRequest struct {
	PlanType string `json:"planType"`
	IsAnnual bool   `json:"isAnnual"`
}

// POST /api/create-subscription
func (h *Handler) CreateSubscription(c *gin.Context) {
	var body createSubscriptionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.errs.Write(c, bindError(err))
		return
	}

	res, err := h.checkout.Start(c.Request.Context(), billing.CheckoutRequest{
		UserID:   c.GetString(middleware.CtxUserID),
		PlanType: body.PlanType,
		IsAnnual: body.IsAnnual,
	})
	if err != nil {
		h.errs.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessionId": res.SessionID, "url": res.URL})
}

type verifyPaymentRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
}

// POST /api/verify-payment
func (h *Handler) VerifyPayment(c *gin.Context) {
	var body verifyPaymentRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.errs.Write(c, bindError(err))
		return
	}

	res, err := h.verifier.Verify(c.Request.Context(), body.SessionID)
	if err != nil {
		h.errs.Write(c, err)
		return
	}

	msg := "Payment verified and credits added"
	if res.AlreadyProcessed {
		msg = "Payment already processed"
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"creditsAdded": res.CreditsAdded,
		"planType":     res.PlanType,
		"subscription": respond.Subscription(res.Subscription),
		"message":      msg,
	})
}

// POST /api/billing-portal
func (h *Handler) BillingPortal(c *gin.Context) {
	url, err := h.checkout.PortalURL(c.Request.Context(), c.GetString(middleware.CtxUserID))
	if err != nil {
		h.errs.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// GET /api/subscriptions
func (h *Handler) ListSubscriptions(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserID)
	if userID == "" {
		h.errs.Write(c, billing.ErrUserNotAuthenticated)
		return
	}
	list, err := h.history.ListSubscriptions(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscriptions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscriptions": respond.Subscriptions(list)})
}

// bindError keeps validation failures intact for field reporting and
// classifies anything else as a malformed body.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return verrs
	}
	return fmt.Errorf("%w: malformed request body", billing.ErrInvalidInput)
}
