package users

import "imagecraft-app/internal/api/respond"

type MeResponse struct {
	User    UserDTO    `json:"user"`
	Billing BillingDTO `json:"billing"`
}

/* ---------- USER ---------- */

type UserDTO struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Credits int    `json:"credits"`
}

/* ---------- BILLING ---------- */

type BillingDTO struct {
	HasCustomer         bool                      `json:"hasCustomer"`
	ActiveSubscriptions []respond.SubscriptionDTO `json:"activeSubscriptions"`
}
