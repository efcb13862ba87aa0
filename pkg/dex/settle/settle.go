// Package settle applies the balance transfers implied by a fill sequence.
//
// Per fill: the base quantity moves from the seller's reserved balance to
// the buyer's available balance, and price*qty quote moves from the buyer's
// reserved balance to the seller's available balance. The whole sequence is
// one atomic unit: a failure on any transfer rolls every prior transfer
// back and the caller must also discard its book mutation.
//
// Settlement only moves funds that were already reserved for the order; the
// quote amount truncates toward zero and residual dust stays with the payer.
package settle

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/solumdex/solum/pkg/dex/book"
	"github.com/solumdex/solum/pkg/dex/ledger"
	"github.com/solumdex/solum/pkg/dex/market"
)

// Summary reports the net effect of one settled fill sequence.
type Summary struct {
	Fills       int
	BaseVolume  int64 // total base transferred seller -> buyer
	QuoteVolume int64 // total quote transferred buyer -> seller
}

// Settle applies every fill of one instruction against the ledger.
// takerSide is the side of the incoming order that produced the fills.
// Returns either a complete summary or an error with no balances changed.
func Settle(l *ledger.Ledger, m *market.Market, takerSide book.Side, fills []book.Fill) (Summary, error) {
	var sum Summary
	if len(fills) == 0 {
		return sum, nil
	}

	tx := l.Begin()

	for _, f := range fills {
		var buyer, seller common.Address
		if takerSide == book.Bid {
			buyer, seller = f.Taker, f.Maker
		} else {
			buyer, seller = f.Maker, f.Taker
		}

		quote, err := ledger.QuoteAmount(f.Price, f.Qty)
		if err != nil {
			tx.Rollback()
			return Summary{}, fmt.Errorf("settle fill maker=%d taker=%d: %w", f.MakerID, f.TakerID, err)
		}

		if err := l.TransferReserved(seller, buyer, m.BaseAsset, f.Qty); err != nil {
			tx.Rollback()
			return Summary{}, fmt.Errorf("settle base transfer maker=%d taker=%d: %w", f.MakerID, f.TakerID, err)
		}
		if err := l.TransferReserved(buyer, seller, m.QuoteAsset, quote); err != nil {
			tx.Rollback()
			return Summary{}, fmt.Errorf("settle quote transfer maker=%d taker=%d: %w", f.MakerID, f.TakerID, err)
		}

		sum.Fills++
		sum.BaseVolume, err = ledger.CheckedAdd(sum.BaseVolume, f.Qty)
		if err != nil {
			tx.Rollback()
			return Summary{}, err
		}
		sum.QuoteVolume, err = ledger.CheckedAdd(sum.QuoteVolume, quote)
		if err != nil {
			tx.Rollback()
			return Summary{}, err
		}
	}

	tx.Commit()
	return sum, nil
}
