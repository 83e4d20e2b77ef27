package routes

import (
	"context"
	"net/http"

	billingapi "imagecraft-app/internal/api/billing"
	plansapi "imagecraft-app/internal/api/plans"
	stripewebhooks "imagecraft-app/internal/api/stripewebhook"
	usersapi "imagecraft-app/internal/api/users"
	"imagecraft-app/internal/app/http/middleware"
	"imagecraft-app/internal/domain/plans"

	"github.com/gin-gonic/gin"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Catalog *plans.Catalog
	Billing *billingapi.Handler
	Webhook *stripewebhooks.Handler
	Users   *usersapi.Handler
	Auth    gin.HandlerFunc
	DB      Pinger
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/health", func(c *gin.Context) {
		if d.DB != nil {
			if err := d.DB.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "unreachable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	// Raw body: the signature covers the exact bytes.
	api.POST("/webhook", d.Webhook.StripeWebhook)
	api.GET("/plans", plansapi.ListPlans(d.Catalog))

	// The checkout session identifies the buyer; no caller identity needed.
	public := api.Group("/")
	public.Use(middleware.SanitizeAndCleanInputMiddleware())
	public.POST("/verify-payment", d.Billing.VerifyPayment)

	auth := api.Group("/")
	auth.Use(d.Auth)
	auth.GET("/me", d.Users.GetCurrentUser)
	auth.GET("/subscriptions", d.Billing.ListSubscriptions)
	auth.POST("/billing-portal", d.Billing.BillingPortal)

	sanitized := auth.Group("/")
	sanitized.Use(middleware.SanitizeAndCleanInputMiddleware())
	sanitized.POST("/create-subscription", d.Billing.CreateSubscription)
}
