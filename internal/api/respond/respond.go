package respond

import (
	"errors"
	"net/http"
	"time"

	"imagecraft-app/internal/billing"
	"imagecraft-app/internal/domain/subscriptions"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type SubscriptionDTO struct {
	ID                   string    `json:"id"`
	StripeSubscriptionID string    `json:"stripeSubscriptionId"`
	PlanType             string    `json:"planType"`
	BillingPeriod        string    `json:"billingPeriod"`
	Status               string    `json:"status"`
	CurrentPeriodStart   time.Time `json:"currentPeriodStart"`
	CurrentPeriodEnd     time.Time `json:"currentPeriodEnd"`
	CreatedAt            time.Time `json:"createdAt"`
}

func Subscription(s *subscriptions.Subscription) *SubscriptionDTO {
	if s == nil {
		return nil
	}
	return &SubscriptionDTO{
		ID:                   s.ID,
		StripeSubscriptionID: s.StripeSubscriptionID,
		PlanType:             string(s.PlanType),
		BillingPeriod:        string(s.BillingPeriod),
		Status:               string(s.Status),
		CurrentPeriodStart:   s.CurrentPeriodStart,
		CurrentPeriodEnd:     s.CurrentPeriodEnd,
		CreatedAt:            s.CreatedAt,
	}
}

func Subscriptions(list []subscriptions.Subscription) []SubscriptionDTO {
	out := make([]SubscriptionDTO, 0, len(list))
	for i := range list {
		out = append(out, *Subscription(&list[i]))
	}
	return out
}

// Errors maps billing errors onto HTTP responses. Gateway and datastore
// details are only exposed outside production.
type Errors struct {
	Production bool
}

func (e Errors) Write(c *gin.Context, err error) {
	log := zerolog.Ctx(c.Request.Context())

	var conflict *billing.AlreadySubscribedError
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &conflict):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":                conflict.Error(),
			"existingSubscription": Subscription(&conflict.Subscription),
		})
	case errors.As(err, &verrs):
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "fields": fields})
	case errors.Is(err, billing.ErrSignatureInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Signature verification failed"})
	case errors.Is(err, billing.ErrInvalidInput), errors.Is(err, billing.ErrConflict):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, billing.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		msg := "Internal server error"
		switch {
		case errors.Is(err, billing.ErrUpstreamGateway):
			msg = "Payment provider error"
		case errors.Is(err, billing.ErrPersistence):
			msg = "Failed to save changes"
		}
		body := gin.H{"error": msg}
		if !e.Production {
			body["details"] = err.Error()
		}
		c.JSON(http.StatusInternalServerError, body)
	}
}
