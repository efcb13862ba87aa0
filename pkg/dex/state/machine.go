// Package state implements the instruction processor: the state machine
// that validates an instruction, drives matching and settlement, and commits
// the result atomically.
//
// Each instruction moves through
//
//	Received -> Validated -> Matched -> Settled -> Finalized
//
// or Received -> Rejected on a validation failure. Finalized is the only
// externally visible commit point: the order book mutation, the ledger
// mutation, and the persisted record land together or not at all. The host
// runtime serializes instructions that touch the same market, so the
// machine holds no locks.
package state

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/solumdex/solum/pkg/dex/book"
	"github.com/solumdex/solum/pkg/dex/engine"
	"github.com/solumdex/solum/pkg/dex/ledger"
	"github.com/solumdex/solum/pkg/dex/market"
	"github.com/solumdex/solum/pkg/dex/settle"
)

var (
	ErrUnauthorized   = errors.New("caller not authorized for account")
	ErrMarketNotEmpty = errors.New("market order book is not empty")
)

// Stage is the lifecycle position of one instruction.
type Stage int8

const (
	StageReceived Stage = iota
	StageValidated
	StageMatched
	StageSettled
	StageFinalized
	StageRejected
)

func (s Stage) String() string {
	switch s {
	case StageReceived:
		return "received"
	case StageValidated:
		return "validated"
	case StageMatched:
		return "matched"
	case StageSettled:
		return "settled"
	case StageFinalized:
		return "finalized"
	case StageRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Authorizer is the host-provided account authorization check, consulted
// before any mutation. Signature verification itself happens in the host
// before instructions reach the core.
type Authorizer interface {
	Authorized(caller, account common.Address) bool
}

// SelfAuthorizer permits a caller to act only on its own account.
type SelfAuthorizer struct{}

func (SelfAuthorizer) Authorized(caller, account common.Address) bool { return caller == account }

// Committer persists the state produced by one Finalized instruction as a
// single atomic unit. A failed commit aborts the instruction.
type Committer interface {
	Commit(cs *CommitSet) error
}

// CommitSet is everything one instruction changed.
type CommitSet struct {
	Markets        []*market.Market
	DeletedMarkets []string
	Books          []*book.Book
	DeletedBooks   []string
	Vaults         map[ledger.Key]ledger.Balance
	NextOrderID    uint64
	NextSeq        uint64
}

// NopCommitter discards commits. Used by tests and ephemeral nodes.
type NopCommitter struct{}

func (NopCommitter) Commit(*CommitSet) error { return nil }

// Machine is the instruction processor for one execution domain: a market
// registry, the per-market books, and the vault ledger.
type Machine struct {
	markets *market.Registry
	books   map[string]*book.Book
	ledger  *ledger.Ledger

	auth  Authorizer
	store Committer
	log   *zap.SugaredLogger

	nextOrderID uint64
	nextSeq     uint64

	// OnFill, if set, is invoked for every settled fill after Finalized.
	OnFill func(symbol string, f book.Fill)
}

// Config wires the machine's collaborators. Nil fields fall back to the
// self-authorizer, a no-op committer, and a no-op logger.
type Config struct {
	Authorizer Authorizer
	Committer  Committer
	Logger     *zap.SugaredLogger
}

// NewMachine creates an empty machine.
func NewMachine(cfg Config) *Machine {
	if cfg.Authorizer == nil {
		cfg.Authorizer = SelfAuthorizer{}
	}
	if cfg.Committer == nil {
		cfg.Committer = NopCommitter{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	return &Machine{
		markets: market.NewRegistry(),
		books:   make(map[string]*book.Book),
		ledger:  ledger.New(),
		auth:    cfg.Authorizer,
		store:   cfg.Committer,
		log:     cfg.Logger,
	}
}

// Ledger exposes read access to vault balances.
func (m *Machine) Ledger() *ledger.Ledger { return m.ledger }

// Markets exposes read access to the market registry.
func (m *Machine) Markets() *market.Registry { return m.markets }

// Book returns the order book for a market, nil if unknown.
func (m *Machine) Book(symbol string) *book.Book { return m.books[symbol] }

// Restore installs persisted state at startup. Counters must be at least as
// large as any order id in the books.
func (m *Machine) Restore(markets []*market.Market, books []*book.Book, nextOrderID, nextSeq uint64) error {
	for _, mkt := range markets {
		if err := m.markets.Register(mkt); err != nil {
			return err
		}
	}
	for _, b := range books {
		m.books[b.Symbol()] = b
	}
	m.nextOrderID = nextOrderID
	m.nextSeq = nextSeq
	return nil
}

// InitializeMarket creates a market and its empty order book.
// Returns the market id (symbol).
func (m *Machine) InitializeMarket(caller common.Address, baseAsset, quoteAsset string, params market.Params) (string, error) {
	mkt, err := market.New(baseAsset, quoteAsset, params)
	if err != nil {
		return "", err
	}
	if err := m.markets.Register(mkt); err != nil {
		return "", err
	}

	b := book.New(mkt.Symbol)
	m.books[mkt.Symbol] = b

	cs := m.newCommitSet()
	cs.Markets = append(cs.Markets, mkt)
	cs.Books = append(cs.Books, b)
	if err := m.store.Commit(cs); err != nil {
		m.markets.Remove(mkt.Symbol)
		delete(m.books, mkt.Symbol)
		return "", fmt.Errorf("commit market: %w", err)
	}

	m.log.Infow("market_initialized", "symbol", mkt.Symbol, "base", baseAsset, "quote", quoteAsset)
	return mkt.Symbol, nil
}

// PlaceResult is the outcome of a Finalized PlaceOrder instruction.
type PlaceResult struct {
	OrderID   uint64
	Fills     []book.Fill
	Remaining int64
	Status    book.OrderStatus
	Stage     Stage
}

// PlaceOrder runs the full instruction pipeline for one incoming order.
// Any error leaves the book, the ledger, and the store untouched.
func (m *Machine) PlaceOrder(caller, owner common.Address, symbol string, side book.Side, typ book.OrderType, price, qty int64) (PlaceResult, error) {
	// Received -> Validated
	if !m.auth.Authorized(caller, owner) {
		return PlaceResult{Stage: StageRejected}, ErrUnauthorized
	}
	mkt, err := m.markets.Get(symbol)
	if err != nil {
		return PlaceResult{Stage: StageRejected}, err
	}
	if mkt.Status != market.Active {
		return PlaceResult{Stage: StageRejected}, market.ErrClosed
	}
	if qty <= 0 {
		return PlaceResult{Stage: StageRejected}, engine.ErrInvalidQuantity
	}
	if typ == book.Market {
		if price != 0 {
			return PlaceResult{Stage: StageRejected}, engine.ErrInvalidPrice
		}
	} else {
		if price <= 0 {
			return PlaceResult{Stage: StageRejected}, engine.ErrInvalidPrice
		}
		if err := mkt.ValidateNotional(price, qty); err != nil {
			return PlaceResult{Stage: StageRejected}, err
		}
	}

	b := m.books[symbol]
	snapshot := b.Clone()
	tx := m.ledger.Begin()

	abort := func(err error, stage Stage) (PlaceResult, error) {
		tx.Rollback()
		m.books[symbol] = snapshot
		return PlaceResult{Stage: stage}, err
	}

	order := &book.Order{
		ID:        m.nextOrderID + 1,
		Owner:     owner,
		Market:    symbol,
		Side:      side,
		Type:      typ,
		Price:     price,
		Original:  qty,
		Remaining: qty,
		Seq:       m.nextSeq + 1,
		Status:    book.StatusOpen,
	}

	// Escrow at admission: asks reserve the base quantity; limit bids reserve
	// quote at the limit price. Market/IOC bids have no limit to reserve
	// against, so their quote cost is reserved fill-by-fill below.
	switch {
	case side == book.Ask:
		if err := m.ledger.Reserve(owner, mkt.BaseAsset, qty); err != nil {
			return abort(err, StageRejected)
		}
	case typ == book.Limit:
		quote, err := ledger.QuoteAmount(price, qty)
		if err != nil {
			return abort(err, StageRejected)
		}
		if err := m.ledger.Reserve(owner, mkt.QuoteAsset, quote); err != nil {
			return abort(err, StageRejected)
		}
	}

	// Validated -> Matched
	fills, remainder, err := engine.MatchOrder(order, b)
	if err != nil {
		return abort(err, StageRejected)
	}

	// Market/IOC bid: reserve the exact quote cost of each fill so that
	// settlement only ever moves reserved funds.
	if side == book.Bid && typ != book.Limit {
		for _, f := range fills {
			quote, qErr := ledger.QuoteAmount(f.Price, f.Qty)
			if qErr != nil {
				return abort(qErr, StageMatched)
			}
			if rErr := m.ledger.Reserve(owner, mkt.QuoteAsset, quote); rErr != nil {
				return abort(rErr, StageMatched)
			}
		}
	}

	// Matched -> Settled
	if _, err := settle.Settle(m.ledger, mkt, side, fills); err != nil {
		return abort(err, StageMatched)
	}

	if err := m.reconcileTakerEscrow(mkt, order, remainder, fills); err != nil {
		return abort(err, StageSettled)
	}

	// Settled -> Finalized
	cs := m.newCommitSet()
	cs.NextOrderID = order.ID
	cs.NextSeq = order.Seq
	cs.Books = append(cs.Books, b)
	m.collectVaults(cs, mkt, order, fills)
	if err := m.store.Commit(cs); err != nil {
		return abort(fmt.Errorf("commit instruction: %w", err), StageSettled)
	}

	tx.Commit()
	m.nextOrderID = order.ID
	m.nextSeq = order.Seq

	for _, f := range fills {
		m.log.Infow("fill", "market", symbol, "maker", f.MakerID, "taker", f.TakerID, "price", f.Price, "qty", f.Qty)
		if m.OnFill != nil {
			m.OnFill(symbol, f)
		}
	}

	return PlaceResult{
		OrderID:   order.ID,
		Fills:     fills,
		Remaining: order.Remaining,
		Status:    order.Status,
		Stage:     StageFinalized,
	}, nil
}

// reconcileTakerEscrow releases escrow the taker no longer needs:
// price improvement on limit bids (reserved at the limit, settled at the
// maker price) and the reservation backing a discarded or unfilled portion
// of a non-resting order.
func (m *Machine) reconcileTakerEscrow(mkt *market.Market, order, remainder *book.Order, fills []book.Fill) error {
	owner := order.Owner

	if order.Side == book.Bid && order.Type == book.Limit {
		for _, f := range fills {
			if f.Price >= order.Price {
				continue
			}
			refund, err := ledger.QuoteAmount(order.Price-f.Price, f.Qty)
			if err != nil {
				return err
			}
			if refund > 0 {
				if err := m.ledger.Release(owner, mkt.QuoteAsset, refund); err != nil {
					return err
				}
			}
		}
	}

	// Resting remainder keeps its escrow.
	if remainder != nil || order.Remaining == 0 {
		return nil
	}

	// Discarded market/IOC remainder, or a limit order that could not rest.
	if order.Side == book.Ask {
		return m.ledger.Release(owner, mkt.BaseAsset, order.Remaining)
	}
	if order.Type == book.Limit {
		leftover, err := ledger.QuoteAmount(order.Price, order.Remaining)
		if err != nil {
			return err
		}
		return m.ledger.Release(owner, mkt.QuoteAsset, leftover)
	}
	// Market/IOC bids reserved per fill; nothing left to release.
	return nil
}

// CancelResult is the outcome of a Finalized CancelOrder instruction.
type CancelResult struct {
	OrderID  uint64
	Released int64  // escrow returned to available
	Asset    string // asset the escrow was held in
	Stage    Stage
}

// CancelOrder removes a resting order and releases its escrow. Cancelling an
// id that is not resting (filled, cancelled, or never placed) fails with
// book.ErrOrderNotFound and releases nothing.
func (m *Machine) CancelOrder(caller common.Address, symbol string, orderID uint64) (CancelResult, error) {
	mkt, err := m.markets.Get(symbol)
	if err != nil {
		return CancelResult{Stage: StageRejected}, err
	}
	b := m.books[symbol]

	o, ok := b.Get(orderID)
	if !ok {
		return CancelResult{Stage: StageRejected}, book.ErrOrderNotFound
	}
	if !m.auth.Authorized(caller, o.Owner) {
		return CancelResult{Stage: StageRejected}, ErrUnauthorized
	}

	tx := m.ledger.Begin()

	var released int64
	var asset string
	if o.Side == book.Ask {
		released = o.Remaining
		asset = mkt.BaseAsset
	} else {
		released, err = ledger.QuoteAmount(o.Price, o.Remaining)
		if err != nil {
			tx.Rollback()
			return CancelResult{Stage: StageRejected}, err
		}
		asset = mkt.QuoteAsset
	}
	if err := m.ledger.Release(o.Owner, asset, released); err != nil {
		tx.Rollback()
		return CancelResult{Stage: StageRejected}, err
	}

	if _, err := b.Cancel(orderID); err != nil {
		tx.Rollback()
		return CancelResult{Stage: StageRejected}, err
	}

	cs := m.newCommitSet()
	cs.Books = append(cs.Books, b)
	cs.Vaults[ledger.Key{Account: o.Owner, Asset: asset}] = m.ledger.Get(o.Owner, asset)
	if err := m.store.Commit(cs); err != nil {
		tx.Rollback()
		// Cancel already detached the order; reattach it.
		o.Status = book.StatusOpen
		if o.Filled() > 0 {
			o.Status = book.StatusPartiallyFilled
		}
		_ = b.Insert(o)
		return CancelResult{Stage: StageRejected}, fmt.Errorf("commit cancel: %w", err)
	}

	tx.Commit()
	m.log.Infow("order_cancelled", "market", symbol, "order", orderID, "released", released, "asset", asset)
	return CancelResult{OrderID: orderID, Released: released, Asset: asset, Stage: StageFinalized}, nil
}

// CloseMarket destroys a market. Fails with ErrMarketNotEmpty unless its
// order book has no resting orders.
func (m *Machine) CloseMarket(caller common.Address, symbol string) error {
	mkt, err := m.markets.Get(symbol)
	if err != nil {
		return err
	}
	b := m.books[symbol]
	if b.Len() > 0 {
		return ErrMarketNotEmpty
	}

	cs := m.newCommitSet()
	cs.DeletedMarkets = append(cs.DeletedMarkets, symbol)
	cs.DeletedBooks = append(cs.DeletedBooks, symbol)
	if err := m.store.Commit(cs); err != nil {
		return fmt.Errorf("commit close: %w", err)
	}

	mkt.Status = market.Closed
	m.markets.Remove(symbol)
	delete(m.books, symbol)
	m.log.Infow("market_closed", "symbol", symbol)
	return nil
}

// Deposit credits external funds to an account vault.
func (m *Machine) Deposit(caller, account common.Address, asset string, amount int64) error {
	if !m.auth.Authorized(caller, account) {
		return ErrUnauthorized
	}
	tx := m.ledger.Begin()
	if err := m.ledger.Deposit(account, asset, amount); err != nil {
		tx.Rollback()
		return err
	}
	cs := m.newCommitSet()
	cs.Vaults[ledger.Key{Account: account, Asset: asset}] = m.ledger.Get(account, asset)
	if err := m.store.Commit(cs); err != nil {
		tx.Rollback()
		return fmt.Errorf("commit deposit: %w", err)
	}
	tx.Commit()
	return nil
}

// Withdraw debits available funds from an account vault.
func (m *Machine) Withdraw(caller, account common.Address, asset string, amount int64) error {
	if !m.auth.Authorized(caller, account) {
		return ErrUnauthorized
	}
	tx := m.ledger.Begin()
	if err := m.ledger.Withdraw(account, asset, amount); err != nil {
		tx.Rollback()
		return err
	}
	cs := m.newCommitSet()
	cs.Vaults[ledger.Key{Account: account, Asset: asset}] = m.ledger.Get(account, asset)
	if err := m.store.Commit(cs); err != nil {
		tx.Rollback()
		return fmt.Errorf("commit withdraw: %w", err)
	}
	tx.Commit()
	return nil
}

func (m *Machine) newCommitSet() *CommitSet {
	return &CommitSet{
		Vaults:      make(map[ledger.Key]ledger.Balance),
		NextOrderID: m.nextOrderID,
		NextSeq:     m.nextSeq,
	}
}

// collectVaults records the post-instruction balances of every participant
// so the committer can persist them.
func (m *Machine) collectVaults(cs *CommitSet, mkt *market.Market, order *book.Order, fills []book.Fill) {
	add := func(acct common.Address) {
		for _, asset := range []string{mkt.BaseAsset, mkt.QuoteAsset} {
			k := ledger.Key{Account: acct, Asset: asset}
			cs.Vaults[k] = m.ledger.Get(acct, asset)
		}
	}
	add(order.Owner)
	for _, f := range fills {
		add(f.Maker)
		add(f.Taker)
	}
}
