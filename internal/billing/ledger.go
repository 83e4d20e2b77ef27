package billing

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Ledger adjusts credit balances. Callers pass the store (or transaction)
// the adjustment should run against.
type Ledger struct {
	log zerolog.Logger
}

func NewLedger(log zerolog.Logger) *Ledger {
	return &Ledger{log: log.With().Str("component", "ledger").Logger()}
}

// Grant adds n credits and returns the new balance.
func (l *Ledger) Grant(ctx context.Context, st CreditStore, userID string, n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("%w: grant of %d credits", ErrInvalidInput, n)
	}
	balance, err := st.AddCredits(ctx, userID, n)
	if err != nil {
		return 0, err
	}
	l.log.Debug().Str("user_id", userID).Int("credits", n).Int("balance", balance).Msg("credits granted")
	return balance, nil
}

// Revoke takes back up to n credits. The balance never drops below zero.
func (l *Ledger) Revoke(ctx context.Context, st CreditStore, userID string, n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("%w: revoke of %d credits", ErrInvalidInput, n)
	}
	balance, err := st.DeductCredits(ctx, userID, n)
	if err != nil {
		return 0, err
	}
	l.log.Debug().Str("user_id", userID).Int("credits", n).Int("balance", balance).Msg("credits revoked")
	return balance, nil
}
