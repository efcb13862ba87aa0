// Package engine implements price-time priority matching.
//
// An incoming order is matched against the opposite side of the book: best
// price first, earlier admission sequence breaking ties. Fills execute at
// the maker's resting price, so the resting side receives any price
// improvement. For a fixed book state and incoming order the fill sequence
// is uniquely determined.
package engine

import (
	"errors"

	"github.com/solumdex/solum/pkg/dex/book"
)

var (
	ErrInvalidPrice    = errors.New("invalid price")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrWrongMarket     = errors.New("order market does not match book")
)

// MatchOrder consumes the incoming order against the book and returns the
// resulting fill sequence plus the resting remainder, if any.
//
// Remainder policy by order type:
//   - Limit: unfilled quantity rests on the book (returned as remainder).
//   - Market, IOC: unfilled quantity is discarded (remainder is nil).
//
// MatchOrder mutates the book (reducing and removing makers, inserting a
// limit remainder); the caller is responsible for snapshotting the book if
// it may need to roll the instruction back.
func MatchOrder(incoming *book.Order, b *book.Book) ([]book.Fill, *book.Order, error) {
	if incoming.Market != b.Symbol() {
		return nil, nil, ErrWrongMarket
	}
	if incoming.Original <= 0 || incoming.Remaining <= 0 {
		return nil, nil, ErrInvalidQuantity
	}
	if incoming.Type != book.Market && incoming.Price <= 0 {
		return nil, nil, ErrInvalidPrice
	}

	var fills []book.Fill

	it := b.Matchable(incoming)
	for incoming.Remaining > 0 {
		maker, ok := it.Next()
		if !ok {
			break
		}

		qty := min64(incoming.Remaining, maker.Remaining)
		fills = append(fills, book.Fill{
			MakerID: maker.ID,
			TakerID: incoming.ID,
			Maker:   maker.Owner,
			Taker:   incoming.Owner,
			Price:   maker.Price,
			Qty:     qty,
		})

		incoming.Remaining -= qty
		maker.Remaining -= qty

		if maker.Remaining == 0 {
			maker.Status = book.StatusFilled
			// Remove cannot fail: the maker came off the top of the book.
			_, _ = b.Remove(maker.ID)
		} else {
			maker.Status = book.StatusPartiallyFilled
		}
	}

	if incoming.Remaining == 0 {
		incoming.Status = book.StatusFilled
		return fills, nil, nil
	}

	if len(fills) > 0 {
		incoming.Status = book.StatusPartiallyFilled
	}

	// No resting remainder for market/IOC orders.
	if incoming.Type != book.Limit {
		return fills, nil, nil
	}

	if err := b.Insert(incoming); err != nil {
		return nil, nil, err
	}
	return fills, incoming, nil
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
