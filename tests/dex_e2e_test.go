package tests

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/solumdex/solum/pkg/dex"
	"github.com/solumdex/solum/pkg/dex/state"
	"github.com/solumdex/solum/pkg/storage"
)

var (
	alice = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob   = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

// TestExchangeLifecycle drives a full trading session through the public
// surface: market creation, deposits, resting and crossing orders, cancels,
// and market close.
func TestExchangeLifecycle(t *testing.T) {
	m := dex.NewMachine(state.Config{})

	symbol, err := m.InitializeMarket(alice, "SOL", "USDC", dex.DefaultMarketParams())
	if err != nil {
		t.Fatalf("init market: %v", err)
	}

	if err := m.Deposit(alice, alice, "USDC", 100_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := m.Deposit(bob, bob, "SOL", 1_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	// Bob builds a small ask ladder.
	for i, ask := range []struct{ price, qty int64 }{
		{100, 50}, {101, 50}, {102, 50},
	} {
		res, err := m.PlaceOrder(bob, bob, symbol, dex.Ask, dex.Limit, ask.price, ask.qty)
		if err != nil {
			t.Fatalf("ask %d: %v", i, err)
		}
		if res.Remaining != ask.qty {
			t.Fatalf("ask %d result = %+v, want full qty resting", i, res)
		}
	}

	// Alice sweeps through two levels.
	res, err := m.PlaceOrder(alice, alice, symbol, dex.Bid, dex.Limit, 101, 80)
	if err != nil {
		t.Fatalf("bid: %v", err)
	}
	if len(res.Fills) != 2 || res.Remaining != 0 {
		t.Fatalf("sweep result = %+v", res)
	}
	wantCost := int64(100*50 + 101*30)
	if got := m.Ledger().Get(alice, "USDC"); got.Available != 100_000-wantCost {
		t.Fatalf("alice quote = %+v, want %d spent", got, wantCost)
	}
	if got := m.Ledger().Get(alice, "SOL"); got.Available != 80 {
		t.Fatalf("alice base = %+v, want 80", got)
	}

	// Drain the book and close the market.
	for _, o := range m.Book(symbol).Orders() {
		if _, err := m.CancelOrder(o.Owner, symbol, o.ID); err != nil {
			t.Fatalf("cancel %d: %v", o.ID, err)
		}
	}
	if err := m.CloseMarket(alice, symbol); err != nil {
		t.Fatalf("close: %v", err)
	}

	// All funds are back in available balances.
	if got := m.Ledger().Get(bob, "SOL"); got.Available != 1_000-80 || got.Reserved != 0 {
		t.Fatalf("bob base = %+v", got)
	}
	if got := m.Ledger().Get(bob, "USDC"); got.Available != wantCost {
		t.Fatalf("bob quote = %+v", got)
	}
}

// TestPersistenceRoundTrip commits a session through the Pebble store,
// reopens it, and verifies the restored machine reaches the same state hash.
func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()

	store, err := storage.NewStore(dir)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	m := dex.NewMachine(state.Config{Committer: store})
	symbol, err := m.InitializeMarket(alice, "SOL", "USDC", dex.DefaultMarketParams())
	if err != nil {
		t.Fatalf("init market: %v", err)
	}
	m.Deposit(alice, alice, "USDC", 100_000)
	m.Deposit(bob, bob, "SOL", 1_000)
	m.PlaceOrder(bob, bob, symbol, dex.Ask, dex.Limit, 100, 50)
	m.PlaceOrder(alice, alice, symbol, dex.Bid, dex.Limit, 100, 20) // partial fill
	m.PlaceOrder(alice, alice, symbol, dex.Bid, dex.Limit, 95, 10)  // rests

	want := m.StateHash()
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	// Reopen and restore into a fresh machine.
	store2, err := storage.NewStore(dir)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer store2.Close()

	m2 := dex.NewMachine(state.Config{Committer: store2})
	markets, err := store2.LoadMarkets()
	if err != nil {
		t.Fatalf("load markets: %v", err)
	}
	books, err := store2.LoadBooks()
	if err != nil {
		t.Fatalf("load books: %v", err)
	}
	nextOrderID, nextSeq, err := store2.LoadCounters()
	if err != nil {
		t.Fatalf("load counters: %v", err)
	}
	if err := m2.Restore(markets, books, nextOrderID, nextSeq); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if err := store2.LoadVaults(m2.Ledger()); err != nil {
		t.Fatalf("load vaults: %v", err)
	}

	if got := m2.StateHash(); got != want {
		t.Fatal("restored state hash differs from the committed state")
	}

	// The restored machine keeps trading where the old one stopped.
	res, err := m2.PlaceOrder(bob, bob, symbol, dex.Ask, dex.Limit, 95, 10)
	if err != nil {
		t.Fatalf("place after restore: %v", err)
	}
	if len(res.Fills) != 1 || res.Fills[0].Qty != 10 {
		t.Fatalf("restored book should cross the 95 bid: %+v", res)
	}
}

// TestReplayAgainstPersistedHash replays the same instruction stream twice,
// once ephemeral and once persisted, and expects identical hashes.
func TestReplayAgainstPersistedHash(t *testing.T) {
	apply := func(m *dex.Machine) {
		symbol, _ := m.InitializeMarket(alice, "SOL", "USDC", dex.DefaultMarketParams())
		m.Deposit(alice, alice, "USDC", 50_000)
		m.Deposit(bob, bob, "SOL", 500)
		m.PlaceOrder(bob, bob, symbol, dex.Ask, dex.Limit, 100, 100)
		m.PlaceOrder(alice, alice, symbol, dex.Bid, dex.IOC, 100, 30)
		m.PlaceOrder(alice, alice, symbol, dex.Bid, dex.MarketOrder, 0, 20)
		m.CancelOrder(bob, symbol, 1)
	}

	ephemeral := dex.NewMachine(state.Config{})
	apply(ephemeral)

	store, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	persisted := dex.NewMachine(state.Config{Committer: store})
	apply(persisted)

	if ephemeral.StateHash() != persisted.StateHash() {
		t.Fatal("persistence must not change execution results")
	}
}
