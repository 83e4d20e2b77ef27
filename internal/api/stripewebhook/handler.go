package stripewebhooks

import (
	"errors"
	"io"
	"net/http"

	"imagecraft-app/internal/api/respond"
	"imagecraft-app/internal/billing"

	"github.com/gin-gonic/gin"
)

const maxBodyBytes = 65536

type Handler struct {
	processor *billing.WebhookProcessor
	errs      respond.Errors
}

func NewHandler(processor *billing.WebhookProcessor, errs respond.Errors) *Handler {
	return &Handler{processor: processor, errs: errs}
}

// POST /api/webhook
//
// Retryable failures answer 500 so Stripe redelivers; everything else is
// acknowledged.
func (h *Handler) StripeWebhook(c *gin.Context) {
	payload, err := readStripeBody(c, maxBodyBytes)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Error reading request body"})
		return
	}

	_, err = h.processor.Process(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, billing.ErrSignatureInvalid) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Signature verification failed"})
			return
		}
		h.errs.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func readStripeBody(c *gin.Context, maxBytes int64) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	return io.ReadAll(c.Request.Body)
}
