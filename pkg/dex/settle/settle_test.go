package settle

import (
	"errors"
	"math"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/solumdex/solum/pkg/dex/book"
	"github.com/solumdex/solum/pkg/dex/ledger"
	"github.com/solumdex/solum/pkg/dex/market"
)

var (
	buyer  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	seller = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func testMarket(t *testing.T) *market.Market {
	t.Helper()
	m, err := market.New("SOL", "USDC", market.DefaultParams())
	if err != nil {
		t.Fatalf("market: %v", err)
	}
	return m
}

// fund sets up a buyer with reserved quote and a seller with reserved base,
// as the admission escrow step would have left them.
func fund(l *ledger.Ledger, quote, base int64) {
	l.Deposit(buyer, "USDC", quote)
	l.Reserve(buyer, "USDC", quote)
	l.Deposit(seller, "SOL", base)
	l.Reserve(seller, "SOL", base)
}

func TestSettleSingleFill(t *testing.T) {
	m := testMarket(t)
	l := ledger.New()
	fund(l, 1000, 10)

	fills := []book.Fill{{MakerID: 1, TakerID: 2, Maker: seller, Taker: buyer, Price: 100, Qty: 10}}
	sum, err := Settle(l, m, book.Bid, fills)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}

	if sum.Fills != 1 || sum.BaseVolume != 10 || sum.QuoteVolume != 1000 {
		t.Fatalf("summary = %+v", sum)
	}

	if got := l.Get(buyer, "SOL"); got.Available != 10 {
		t.Fatalf("buyer base = %+v, want 10 available", got)
	}
	if got := l.Get(buyer, "USDC"); got.Available != 0 || got.Reserved != 0 {
		t.Fatalf("buyer quote = %+v, want empty", got)
	}
	if got := l.Get(seller, "USDC"); got.Available != 1000 {
		t.Fatalf("seller quote = %+v, want 1000 available", got)
	}
	if got := l.Get(seller, "SOL"); got.Available != 0 || got.Reserved != 0 {
		t.Fatalf("seller base = %+v, want empty", got)
	}
}

func TestSettleTakerIsSeller(t *testing.T) {
	m := testMarket(t)
	l := ledger.New()
	fund(l, 500, 5)

	// Maker was the resting bid (buyer), the taker sells into it.
	fills := []book.Fill{{MakerID: 1, TakerID: 2, Maker: buyer, Taker: seller, Price: 100, Qty: 5}}
	if _, err := Settle(l, m, book.Ask, fills); err != nil {
		t.Fatalf("settle: %v", err)
	}

	if got := l.Get(buyer, "SOL"); got.Available != 5 {
		t.Fatalf("buyer base = %+v, want 5 available", got)
	}
	if got := l.Get(seller, "USDC"); got.Available != 500 {
		t.Fatalf("seller quote = %+v, want 500 available", got)
	}
}

func TestSettleConservation(t *testing.T) {
	m := testMarket(t)
	l := ledger.New()
	fund(l, 10000, 100)

	fills := []book.Fill{
		{MakerID: 1, TakerID: 4, Maker: seller, Taker: buyer, Price: 100, Qty: 30},
		{MakerID: 2, TakerID: 4, Maker: seller, Taker: buyer, Price: 101, Qty: 20},
		{MakerID: 3, TakerID: 4, Maker: seller, Taker: buyer, Price: 102, Qty: 50},
	}
	sum, err := Settle(l, m, book.Bid, fills)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}

	wantQuote := int64(100*30 + 101*20 + 102*50)
	if sum.QuoteVolume != wantQuote || sum.BaseVolume != 100 {
		t.Fatalf("summary = %+v, want base 100 quote %d", sum, wantQuote)
	}

	// Total units per asset are unchanged, they only moved between vaults.
	var sol, usdc int64
	for _, k := range l.Keys() {
		b := l.Get(k.Account, k.Asset)
		switch k.Asset {
		case "SOL":
			sol += b.Available + b.Reserved
		case "USDC":
			usdc += b.Available + b.Reserved
		}
	}
	if sol != 100 || usdc != 10000 {
		t.Fatalf("conservation violated: sol=%d usdc=%d", sol, usdc)
	}
}

func TestSettleFailureRollsBackEverything(t *testing.T) {
	m := testMarket(t)
	l := ledger.New()
	// Enough escrow for the first fill only.
	fund(l, 3000, 30)

	fills := []book.Fill{
		{MakerID: 1, TakerID: 3, Maker: seller, Taker: buyer, Price: 100, Qty: 30},
		{MakerID: 2, TakerID: 3, Maker: seller, Taker: buyer, Price: 100, Qty: 30}, // no escrow left
	}
	_, err := Settle(l, m, book.Bid, fills)
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	// The first fill's transfers must have been undone too.
	if got := l.Get(buyer, "USDC"); got.Reserved != 3000 {
		t.Fatalf("buyer quote = %+v, want all 3000 still reserved", got)
	}
	if got := l.Get(seller, "SOL"); got.Reserved != 30 {
		t.Fatalf("seller base = %+v, want all 30 still reserved", got)
	}
	if got := l.Get(buyer, "SOL"); got.Available != 0 {
		t.Fatalf("buyer must not keep base from rolled-back fill: %+v", got)
	}
}

func TestSettleQuoteOverflow(t *testing.T) {
	m := testMarket(t)
	l := ledger.New()
	fund(l, 1000, 10)

	fills := []book.Fill{{MakerID: 1, TakerID: 2, Maker: seller, Taker: buyer, Price: math.MaxInt64, Qty: 2}}
	_, err := Settle(l, m, book.Bid, fills)
	if !errors.Is(err, ledger.ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
	if got := l.Get(buyer, "USDC"); got.Reserved != 1000 {
		t.Fatalf("balances must be untouched after overflow: %+v", got)
	}
}

func TestSettleEmptyFills(t *testing.T) {
	m := testMarket(t)
	l := ledger.New()

	sum, err := Settle(l, m, book.Bid, nil)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if sum.Fills != 0 || sum.BaseVolume != 0 || sum.QuoteVolume != 0 {
		t.Fatalf("summary = %+v, want zero", sum)
	}
}
