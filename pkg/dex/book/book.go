// Package book implements the price-level indexed order book for one market.
//
// Bids are ordered by (price descending, seq ascending) and asks by
// (price ascending, seq ascending). Best-price lookup is O(1) via price
// heaps; each price level keeps a FIFO queue so equal prices match in
// admission order. The book performs no internal locking: the host runtime
// serializes all instructions that touch the same market.
package book

import (
	"container/heap"
	"errors"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrDuplicateOrder = errors.New("duplicate order id")
	ErrOrderNotFound  = errors.New("order not found")
)

// Book holds the resting orders of one market.
type Book struct {
	symbol string

	bidHeap *maxPriceHeap
	askHeap *minPriceHeap

	// price -> FIFO queue of resting orders
	bids map[int64][]*Order
	asks map[int64][]*Order

	// order id -> resting order, for O(1) cancel lookup
	index map[uint64]*Order
}

// New creates an empty book for the given market symbol.
func New(symbol string) *Book {
	bidHeap := &maxPriceHeap{}
	askHeap := &minPriceHeap{}
	heap.Init(bidHeap)
	heap.Init(askHeap)

	return &Book{
		symbol:  symbol,
		bidHeap: bidHeap,
		askHeap: askHeap,
		bids:    make(map[int64][]*Order),
		asks:    make(map[int64][]*Order),
		index:   make(map[uint64]*Order),
	}
}

// Symbol returns the market this book belongs to.
func (b *Book) Symbol() string { return b.symbol }

// Len returns the number of resting orders across both sides.
func (b *Book) Len() int { return len(b.index) }

// Insert rests an order on its side of the book, preserving
// (price, seq) priority. Fails with ErrDuplicateOrder if the id is
// already resting.
func (b *Book) Insert(o *Order) error {
	if _, exists := b.index[o.ID]; exists {
		return ErrDuplicateOrder
	}

	if o.Side == Bid {
		if len(b.bids[o.Price]) == 0 {
			heap.Push(b.bidHeap, o.Price)
		}
		b.bids[o.Price] = append(b.bids[o.Price], o)
	} else {
		if len(b.asks[o.Price]) == 0 {
			heap.Push(b.askHeap, o.Price)
		}
		b.asks[o.Price] = append(b.asks[o.Price], o)
	}

	b.index[o.ID] = o
	return nil
}

// Cancel removes a resting order and marks it Cancelled. Fails with
// ErrOrderNotFound if the id is not resting (already filled, already
// cancelled, or never inserted). Returns the removed order so the caller
// can release its escrow.
func (b *Book) Cancel(id uint64) (*Order, error) {
	o, err := b.Remove(id)
	if err != nil {
		return nil, err
	}
	o.Status = StatusCancelled
	return o, nil
}

// Remove detaches a resting order from the book without changing its status.
func (b *Book) Remove(id uint64) (*Order, error) {
	o, ok := b.index[id]
	if !ok {
		return nil, ErrOrderNotFound
	}

	if o.Side == Bid {
		b.removeFromLevel(b.bids, o)
		if len(b.bids[o.Price]) == 0 {
			delete(b.bids, o.Price)
			removePrice(b.bidHeap, o.Price)
		}
	} else {
		b.removeFromLevel(b.asks, o)
		if len(b.asks[o.Price]) == 0 {
			delete(b.asks, o.Price)
			removePrice(b.askHeap, o.Price)
		}
	}

	delete(b.index, id)
	return o, nil
}

func (b *Book) removeFromLevel(side map[int64][]*Order, o *Order) {
	arr := side[o.Price]
	for i, cur := range arr {
		if cur.ID == o.ID {
			side[o.Price] = append(arr[:i], arr[i+1:]...)
			return
		}
	}
}

// removePrice removes a price level from a heap (O(N) worst case, but rare).
func removePrice(h heap.Interface, price int64) {
	switch ph := h.(type) {
	case *maxPriceHeap:
		for i := 0; i < ph.Len(); i++ {
			if (*ph)[i] == price {
				heap.Remove(ph, i)
				return
			}
		}
	case *minPriceHeap:
		for i := 0; i < ph.Len(); i++ {
			if (*ph)[i] == price {
				heap.Remove(ph, i)
				return
			}
		}
	}
}

// Get returns a resting order by id without removing it.
func (b *Book) Get(id uint64) (*Order, bool) {
	o, ok := b.index[id]
	return o, ok
}

// BestBid returns the highest-priority resting bid, if any.
func (b *Book) BestBid() (*Order, bool) {
	if b.bidHeap.Len() == 0 {
		return nil, false
	}
	level := b.bids[b.bidHeap.Peek()]
	return level[0], true
}

// BestAsk returns the highest-priority resting ask, if any.
func (b *Book) BestAsk() (*Order, bool) {
	if b.askHeap.Len() == 0 {
		return nil, false
	}
	level := b.asks[b.askHeap.Peek()]
	return level[0], true
}

// Iterator walks the matchable resting orders opposite an incoming order in
// strict price-time priority. It is lazy: each Next re-peeks the top of the
// opposite side, so callers may reduce or remove the returned order between
// calls. The sequence ends once the best opposite price no longer crosses
// the taker's limit. A fresh iterator restarts from the top of the book.
type Iterator struct {
	book   *Book
	side   Side  // side being consumed (opposite of the taker)
	limit  int64 // taker's limit price
	market bool  // market orders cross any price
}

// Matchable returns an iterator over resting orders that the given incoming
// order can trade against.
func (b *Book) Matchable(taker *Order) *Iterator {
	return &Iterator{
		book:   b,
		side:   taker.Side.Opposite(),
		limit:  taker.Price,
		market: taker.Type == Market,
	}
}

// Next returns the current best matchable order, or false when the opposite
// side is exhausted or no longer crosses.
func (it *Iterator) Next() (*Order, bool) {
	var best *Order
	var ok bool
	if it.side == Ask {
		best, ok = it.book.BestAsk()
		if !ok {
			return nil, false
		}
		if !it.market && best.Price > it.limit {
			return nil, false
		}
	} else {
		best, ok = it.book.BestBid()
		if !ok {
			return nil, false
		}
		if !it.market && best.Price < it.limit {
			return nil, false
		}
	}
	return best, true
}

// BidLevels returns aggregated bid levels sorted high to low (best first).
func (b *Book) BidLevels() []Level {
	return aggregate(b.bids, func(i, j Level) bool { return i.Price > j.Price })
}

// AskLevels returns aggregated ask levels sorted low to high (best first).
func (b *Book) AskLevels() []Level {
	return aggregate(b.asks, func(i, j Level) bool { return i.Price < j.Price })
}

func aggregate(side map[int64][]*Order, less func(i, j Level) bool) []Level {
	var levels []Level
	for price, orders := range side {
		if len(orders) == 0 {
			continue
		}
		var total int64
		for _, o := range orders {
			total += o.Remaining
		}
		levels = append(levels, Level{Price: price, Qty: total})
	}
	sort.Slice(levels, func(i, j int) bool { return less(levels[i], levels[j]) })
	return levels
}

// Orders returns every resting order in deterministic priority order:
// bids best-first then asks best-first, FIFO within each price level.
// Re-inserting the result into an empty book reproduces identical state.
func (b *Book) Orders() []*Order {
	out := make([]*Order, 0, len(b.index))

	bidPrices := make([]int64, 0, len(b.bids))
	for p := range b.bids {
		bidPrices = append(bidPrices, p)
	}
	sort.Slice(bidPrices, func(i, j int) bool { return bidPrices[i] > bidPrices[j] })
	for _, p := range bidPrices {
		out = append(out, b.bids[p]...)
	}

	askPrices := make([]int64, 0, len(b.asks))
	for p := range b.asks {
		askPrices = append(askPrices, p)
	}
	sort.Slice(askPrices, func(i, j int) bool { return askPrices[i] < askPrices[j] })
	for _, p := range askPrices {
		out = append(out, b.asks[p]...)
	}

	return out
}

// RestingQty sums the remaining quantity of one owner's resting orders on a
// side. Used to verify the escrow invariant.
func (b *Book) RestingQty(owner common.Address, side Side) int64 {
	var total int64
	for _, o := range b.index {
		if o.Owner == owner && o.Side == side {
			total += o.Remaining
		}
	}
	return total
}

// Clone deep-copies the book, including resting orders. Used by the state
// machine to snapshot the book before matching so a failed settlement can
// roll it back.
func (b *Book) Clone() *Book {
	cp := New(b.symbol)
	for _, o := range b.Orders() {
		oc := *o
		// Insert cannot fail here: ids were unique in the source book.
		_ = cp.Insert(&oc)
	}
	return cp
}
