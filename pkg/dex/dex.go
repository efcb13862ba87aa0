// Package dex re-exports the core types from its subpackages so callers
// outside the core (API server, tests) can import one package.
package dex

import (
	"github.com/solumdex/solum/pkg/dex/book"
	"github.com/solumdex/solum/pkg/dex/ledger"
	"github.com/solumdex/solum/pkg/dex/market"
	"github.com/solumdex/solum/pkg/dex/state"
)

// From book package
type (
	Side        = book.Side
	OrderType   = book.OrderType
	OrderStatus = book.OrderStatus
	Order       = book.Order
	Fill        = book.Fill
	Level       = book.Level
	Book        = book.Book
)

const (
	Bid = book.Bid
	Ask = book.Ask

	Limit       = book.Limit
	MarketOrder = book.Market
	IOC         = book.IOC
)

func NewBook(symbol string) *Book { return book.New(symbol) }

// From ledger package
type (
	Ledger  = ledger.Ledger
	Balance = ledger.Balance
)

func NewLedger() *Ledger { return ledger.New() }

// From market package
type (
	Market       = market.Market
	MarketParams = market.Params
)

func DefaultMarketParams() MarketParams { return market.DefaultParams() }

// From state package
type (
	Machine      = state.Machine
	PlaceResult  = state.PlaceResult
	CancelResult = state.CancelResult
)

func NewMachine(cfg state.Config) *Machine { return state.NewMachine(cfg) }
