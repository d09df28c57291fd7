package domain

import "github.com/shopspring/decimal"

// Asset is one of the three tradeable commodity symbols. The set is
// closed: anything else is rejected at the boundary.
type Asset string

const (
	AssetCompute Asset = "COMPUTE"
	AssetEnergy  Asset = "ENERGY"
	AssetData    Asset = "DATA"
)

// AllAssets returns the closed asset set in canonical order.
func AllAssets() []Asset {
	return []Asset{AssetCompute, AssetEnergy, AssetData}
}

// ParseAsset validates a raw symbol against the closed asset set.
// Matching is exact; lowercase or padded input is not coerced.
func ParseAsset(s string) (Asset, error) {
	switch Asset(s) {
	case AssetCompute, AssetEnergy, AssetData:
		return Asset(s), nil
	}
	return "", ErrInvalidAsset
}

// Prices holds the current unit price per asset. It is an explicit
// tagged record rather than an open map so the key set cannot drift.
type Prices struct {
	Compute decimal.Decimal `json:"COMPUTE"`
	Energy  decimal.Decimal `json:"ENERGY"`
	Data    decimal.Decimal `json:"DATA"`
}

// Price returns the unit price for the given asset.
func (p Prices) Price(a Asset) decimal.Decimal {
	switch a {
	case AssetCompute:
		return p.Compute
	case AssetEnergy:
		return p.Energy
	default:
		return p.Data
	}
}

// SetPrice sets the unit price for the given asset.
func (p *Prices) SetPrice(a Asset, v decimal.Decimal) {
	switch a {
	case AssetCompute:
		p.Compute = v
	case AssetEnergy:
		p.Energy = v
	case AssetData:
		p.Data = v
	}
}

// Portfolio holds the quantity of each asset owned by an agent.
type Portfolio struct {
	Compute int64 `json:"COMPUTE"`
	Energy  int64 `json:"ENERGY"`
	Data    int64 `json:"DATA"`
}

// Quantity returns the held quantity for the given asset.
func (p Portfolio) Quantity(a Asset) int64 {
	switch a {
	case AssetCompute:
		return p.Compute
	case AssetEnergy:
		return p.Energy
	default:
		return p.Data
	}
}

// Add adjusts the held quantity for the given asset by delta, which
// may be negative.
func (p *Portfolio) Add(a Asset, delta int64) {
	switch a {
	case AssetCompute:
		p.Compute += delta
	case AssetEnergy:
		p.Energy += delta
	case AssetData:
		p.Data += delta
	}
}
