package domain

import "time"

// MarketState is the shared, singleton market record. Tick only
// increases and LastUpdated only advances; every price stays at or
// above the simulator's floor.
type MarketState struct {
	Tick        int64     `json:"tick"`
	News        string    `json:"news"`
	Prices      Prices    `json:"prices"`
	LastUpdated time.Time `json:"last_updated"`
}
