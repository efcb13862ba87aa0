package tests

import (
	"math/rand"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/solumdex/solum/pkg/dex/book"
	"github.com/solumdex/solum/pkg/dex/engine"
)

// BenchmarkMatchOrder measures matching throughput against a book with
// realistic depth on both sides.
func BenchmarkMatchOrder(b *testing.B) {
	bk := book.New("SOL-USDC")
	maker := common.HexToAddress("0x1111111111111111111111111111111111111111")

	// Pre-fill 100 price levels per side.
	var id uint64
	for i := 0; i < 100; i++ {
		id++
		bk.Insert(&book.Order{
			ID: id, Owner: maker, Market: "SOL-USDC",
			Side: book.Bid, Type: book.Limit,
			Price: int64(1000 - i), Original: 100, Remaining: 100, Seq: id,
		})
		id++
		bk.Insert(&book.Order{
			ID: id, Owner: maker, Market: "SOL-USDC",
			Side: book.Ask, Type: book.Limit,
			Price: int64(1100 + i), Original: 100, Remaining: 100, Seq: id,
		})
	}

	taker := common.HexToAddress("0x2222222222222222222222222222222222222222")
	rng := rand.New(rand.NewSource(1))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		id++
		side := book.Bid
		price := int64(1100) // touches the best ask only
		if i%2 == 0 {
			side = book.Ask
			price = 1000
		}
		o := &book.Order{
			ID: id, Owner: taker, Market: "SOL-USDC",
			Side: side, Type: book.IOC,
			Price: price, Original: rng.Int63n(5) + 1, Seq: id,
		}
		o.Remaining = o.Original
		if _, _, err := engine.MatchOrder(o, bk); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkBookInsert measures raw insert cost at growing depth.
func BenchmarkBookInsert(b *testing.B) {
	bk := book.New("SOL-USDC")
	owner := common.HexToAddress("0x1111111111111111111111111111111111111111")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		id := uint64(i + 1)
		bk.Insert(&book.Order{
			ID: id, Owner: owner, Market: "SOL-USDC",
			Side: book.Bid, Type: book.Limit,
			Price: int64(900 + i%200), Original: 10, Remaining: 10, Seq: id,
		})
	}
}
