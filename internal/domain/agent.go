package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Agent is a registered trading participant. APIKey is the sole
// authentication factor and never appears in read-only views. Cash and
// every portfolio quantity must remain >= 0 after any trade.
type Agent struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	APIKey    string          `json:"api_key"`
	Cash      decimal.Decimal `json:"cash"`
	Portfolio Portfolio       `json:"portfolio"`
	JoinedAt  time.Time       `json:"joined_at"`
}
