package plans

import (
	"net/http"

	"imagecraft-app/internal/domain/plans"

	"github.com/gin-gonic/gin"
)

type planDTO struct {
	PlanType      string `json:"planType"`
	BillingPeriod string `json:"billingPeriod"`
	Name          string `json:"name"`
	Credits       int    `json:"credits"`
	PriceID       string `json:"priceId"`
}

// ListPlans serves the catalog. It is built once, so the response is too.
func ListPlans(catalog *plans.Catalog) gin.HandlerFunc {
	entries := catalog.Entries()
	out := make([]planDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, planDTO{
			PlanType:      string(e.PlanType),
			BillingPeriod: string(e.Period),
			Name:          e.Name,
			Credits:       e.Credits,
			PriceID:       e.PriceID,
		})
	}
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"plans": out})
	}
}
