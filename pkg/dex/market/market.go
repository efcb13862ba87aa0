// Package market defines tradable pairs and their validation parameters.
package market

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("market not found")
	ErrExists   = errors.New("market already exists")
	ErrClosed   = errors.New("market is closed")
)

// Status of a market. A market is created Active and becomes Closed only via
// an explicit close, which requires an empty book.
type Status int8

const (
	Active Status = iota
	Closed
)

func (s Status) String() string {
	switch s {
	case Active:
		return "active"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Params holds the precision and dust limits of a market.
type Params struct {
	// TickSize: minimum price increment. All prices stored as integer ticks.
	TickSize int64
	// LotSize: minimum size increment. All quantities stored as integer lots.
	LotSize int64
	// MinNotional: minimum order value in quote units; rejects dust orders.
	MinNotional int64
}

// DefaultParams returns the development defaults.
func DefaultParams() Params {
	return Params{TickSize: 1, LotSize: 1, MinNotional: 0}
}

// Market identifies one tradable pair. Identity (symbol, base, quote) is
// immutable after initialization; exactly one order book exists per market.
type Market struct {
	Symbol     string // "SOL-USDC"
	BaseAsset  string // "SOL"
	QuoteAsset string // "USDC"
	Status     Status

	Params Params
}

// New creates a market with validation. The symbol is derived from the pair.
func New(baseAsset, quoteAsset string, params Params) (*Market, error) {
	m := &Market{
		Symbol:     baseAsset + "-" + quoteAsset,
		BaseAsset:  baseAsset,
		QuoteAsset: quoteAsset,
		Status:     Active,
		Params:     params,
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid market params: %w", err)
	}
	return m, nil
}

// Validate checks market parameter sanity.
func (m *Market) Validate() error {
	if m.BaseAsset == "" || m.QuoteAsset == "" {
		return fmt.Errorf("base and quote assets must be specified")
	}
	if m.BaseAsset == m.QuoteAsset {
		return fmt.Errorf("base and quote assets must differ")
	}
	if m.Params.TickSize <= 0 {
		return fmt.Errorf("tick size must be positive")
	}
	if m.Params.LotSize <= 0 {
		return fmt.Errorf("lot size must be positive")
	}
	if m.Params.MinNotional < 0 {
		return fmt.Errorf("min notional cannot be negative")
	}
	return nil
}

// ValidateNotional checks an order's value against the dust limit.
func (m *Market) ValidateNotional(price, qty int64) error {
	if m.Params.MinNotional == 0 {
		return nil
	}
	notional := price * qty
	if notional < m.Params.MinNotional {
		return fmt.Errorf("order notional %d below minimum %d", notional, m.Params.MinNotional)
	}
	return nil
}
