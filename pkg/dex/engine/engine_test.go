package engine

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/solumdex/solum/pkg/dex/book"
)

var (
	maker = common.HexToAddress("0x1111111111111111111111111111111111111111")
	taker = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func limit(id uint64, owner common.Address, side book.Side, price, qty int64) *book.Order {
	return &book.Order{
		ID:        id,
		Owner:     owner,
		Market:    "SOL-USDC",
		Side:      side,
		Type:      book.Limit,
		Price:     price,
		Original:  qty,
		Remaining: qty,
		Seq:       id,
	}
}

func TestMatchFullFillAtMakerPrice(t *testing.T) {
	b := book.New("SOL-USDC")
	b.Insert(limit(1, maker, book.Ask, 100, 10))

	incoming := limit(2, taker, book.Bid, 101, 10)
	fills, remainder, err := MatchOrder(incoming, b)
	if err != nil {
		t.Fatalf("match: %v", err)
	}

	if len(fills) != 1 {
		t.Fatalf("fills = %d, want 1", len(fills))
	}
	f := fills[0]
	if f.Price != 100 {
		t.Fatalf("fill price = %d, want maker price 100", f.Price)
	}
	if f.Qty != 10 || f.MakerID != 1 || f.TakerID != 2 {
		t.Fatalf("fill = %+v", f)
	}
	if remainder != nil {
		t.Fatalf("remainder = %v, want nil", remainder)
	}
	if incoming.Status != book.StatusFilled {
		t.Fatalf("taker status = %v, want filled", incoming.Status)
	}
	if b.Len() != 0 {
		t.Fatalf("book should be empty, Len() = %d", b.Len())
	}
}

func TestMatchRestsOnEmptyBook(t *testing.T) {
	b := book.New("SOL-USDC")

	incoming := limit(1, taker, book.Bid, 100, 10)
	fills, remainder, err := MatchOrder(incoming, b)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(fills) != 0 {
		t.Fatalf("fills = %d, want 0", len(fills))
	}
	if remainder == nil || remainder.ID != 1 {
		t.Fatalf("remainder = %v, want order 1 resting", remainder)
	}
	if got, ok := b.Get(1); !ok || got.Remaining != 10 {
		t.Fatalf("order 1 not resting with full qty: %v", got)
	}
	if incoming.Status != book.StatusOpen {
		t.Fatalf("status = %v, want open", incoming.Status)
	}
}

func TestMatchPartialFillRestsRemainder(t *testing.T) {
	b := book.New("SOL-USDC")
	b.Insert(limit(1, maker, book.Ask, 100, 4))

	incoming := limit(2, taker, book.Bid, 100, 10)
	fills, remainder, err := MatchOrder(incoming, b)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(fills) != 1 || fills[0].Qty != 4 {
		t.Fatalf("fills = %+v, want one fill of 4", fills)
	}
	if remainder == nil || remainder.Remaining != 6 {
		t.Fatalf("remainder = %v, want 6 resting", remainder)
	}
	if incoming.Status != book.StatusPartiallyFilled {
		t.Fatalf("status = %v, want partially_filled", incoming.Status)
	}
}

func TestMatchWalksPriceLevels(t *testing.T) {
	b := book.New("SOL-USDC")
	b.Insert(limit(1, maker, book.Ask, 102, 5))
	b.Insert(limit(2, maker, book.Ask, 100, 5))
	b.Insert(limit(3, maker, book.Ask, 101, 5))

	incoming := limit(4, taker, book.Bid, 101, 12)
	fills, remainder, err := MatchOrder(incoming, b)
	if err != nil {
		t.Fatalf("match: %v", err)
	}

	// Consumes 100 fully, 101 fully, stops at 102 and rests 2.
	if len(fills) != 2 {
		t.Fatalf("fills = %d, want 2", len(fills))
	}
	if fills[0].MakerID != 2 || fills[0].Price != 100 || fills[0].Qty != 5 {
		t.Fatalf("first fill = %+v", fills[0])
	}
	if fills[1].MakerID != 3 || fills[1].Price != 101 || fills[1].Qty != 5 {
		t.Fatalf("second fill = %+v", fills[1])
	}
	if remainder == nil || remainder.Remaining != 2 {
		t.Fatalf("remainder = %v, want 2", remainder)
	}
	if got, _ := b.Get(1); got.Remaining != 5 {
		t.Fatal("102 ask should be untouched")
	}
}

func TestMatchTimePriorityWithinLevel(t *testing.T) {
	b := book.New("SOL-USDC")
	b.Insert(limit(1, maker, book.Ask, 100, 5))
	b.Insert(limit(2, maker, book.Ask, 100, 5))

	incoming := limit(3, taker, book.Bid, 100, 7)
	fills, _, err := MatchOrder(incoming, b)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(fills) != 2 {
		t.Fatalf("fills = %d, want 2", len(fills))
	}
	if fills[0].MakerID != 1 || fills[0].Qty != 5 {
		t.Fatalf("earlier order must fill first: %+v", fills[0])
	}
	if fills[1].MakerID != 2 || fills[1].Qty != 2 {
		t.Fatalf("second fill = %+v", fills[1])
	}

	// Maker 2 is left partially filled and still resting.
	o, ok := b.Get(2)
	if !ok || o.Remaining != 3 || o.Status != book.StatusPartiallyFilled {
		t.Fatalf("maker 2 = %v, want 3 remaining partially_filled", o)
	}
}

func TestMatchIOCDiscardsRemainder(t *testing.T) {
	b := book.New("SOL-USDC")
	b.Insert(limit(1, maker, book.Ask, 100, 4))

	incoming := limit(2, taker, book.Bid, 100, 10)
	incoming.Type = book.IOC
	fills, remainder, err := MatchOrder(incoming, b)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(fills) != 1 || fills[0].Qty != 4 {
		t.Fatalf("fills = %+v", fills)
	}
	if remainder != nil {
		t.Fatal("IOC remainder must not rest")
	}
	if b.Len() != 0 {
		t.Fatalf("book should be empty, Len() = %d", b.Len())
	}
}

func TestMatchIOCNoCross(t *testing.T) {
	b := book.New("SOL-USDC")
	b.Insert(limit(1, maker, book.Ask, 105, 4))

	incoming := limit(2, taker, book.Bid, 100, 10)
	incoming.Type = book.IOC
	fills, remainder, err := MatchOrder(incoming, b)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(fills) != 0 || remainder != nil {
		t.Fatalf("no-cross IOC: fills=%v remainder=%v, want none", fills, remainder)
	}
	if got, _ := b.Get(1); got.Remaining != 4 {
		t.Fatal("resting ask must be untouched")
	}
}

func TestMatchMarketOrderCrossesAllPrices(t *testing.T) {
	b := book.New("SOL-USDC")
	b.Insert(limit(1, maker, book.Ask, 100, 3))
	b.Insert(limit(2, maker, book.Ask, 500, 3))

	incoming := &book.Order{
		ID: 3, Owner: taker, Market: "SOL-USDC",
		Side: book.Bid, Type: book.Market,
		Original: 10, Remaining: 10, Seq: 3,
	}
	fills, remainder, err := MatchOrder(incoming, b)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(fills) != 2 {
		t.Fatalf("fills = %d, want 2", len(fills))
	}
	if fills[1].Price != 500 {
		t.Fatalf("market order should cross 500 ask, got %+v", fills[1])
	}
	if remainder != nil {
		t.Fatal("market remainder must be discarded")
	}
	if incoming.Remaining != 4 {
		t.Fatalf("remaining = %d, want 4 unfilled", incoming.Remaining)
	}
}

func TestMatchAskAgainstBids(t *testing.T) {
	b := book.New("SOL-USDC")
	b.Insert(limit(1, maker, book.Bid, 101, 5))
	b.Insert(limit(2, maker, book.Bid, 99, 5))

	incoming := limit(3, taker, book.Ask, 100, 8)
	fills, remainder, err := MatchOrder(incoming, b)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	// Only the 101 bid crosses; the taker receives the maker's better price.
	if len(fills) != 1 || fills[0].Price != 101 || fills[0].Qty != 5 {
		t.Fatalf("fills = %+v", fills)
	}
	if remainder == nil || remainder.Remaining != 3 {
		t.Fatalf("remainder = %v, want 3 resting", remainder)
	}
}

func TestMatchValidation(t *testing.T) {
	b := book.New("SOL-USDC")

	tests := []struct {
		name    string
		order   *book.Order
		wantErr error
	}{
		{
			name:    "wrong market",
			order:   &book.Order{ID: 1, Market: "ETH-USDC", Side: book.Bid, Type: book.Limit, Price: 100, Original: 1, Remaining: 1},
			wantErr: ErrWrongMarket,
		},
		{
			name:    "zero quantity",
			order:   &book.Order{ID: 2, Market: "SOL-USDC", Side: book.Bid, Type: book.Limit, Price: 100},
			wantErr: ErrInvalidQuantity,
		},
		{
			name:    "negative quantity",
			order:   &book.Order{ID: 3, Market: "SOL-USDC", Side: book.Bid, Type: book.Limit, Price: 100, Original: -5, Remaining: -5},
			wantErr: ErrInvalidQuantity,
		},
		{
			name:    "zero price on limit",
			order:   &book.Order{ID: 4, Market: "SOL-USDC", Side: book.Bid, Type: book.Limit, Original: 1, Remaining: 1},
			wantErr: ErrInvalidPrice,
		},
		{
			name:    "zero price on ioc",
			order:   &book.Order{ID: 5, Market: "SOL-USDC", Side: book.Bid, Type: book.IOC, Original: 1, Remaining: 1},
			wantErr: ErrInvalidPrice,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := MatchOrder(tt.order, b)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if b.Len() != 0 {
				t.Fatal("rejected order must not touch the book")
			}
		})
	}
}
