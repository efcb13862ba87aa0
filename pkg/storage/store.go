// Package storage provides Pebble-backed persistence for the exchange core:
// one order book record per market, one vault record per (account, asset)
// pair, plus the market registry and id counters. Every instruction's
// changes land through a single atomic batch, which is what makes Finalized
// the commit point.
package storage

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/solumdex/solum/pkg/dex/book"
	"github.com/solumdex/solum/pkg/dex/ledger"
	"github.com/solumdex/solum/pkg/dex/market"
	"github.com/solumdex/solum/pkg/dex/state"
)

// Store wraps a Pebble database.
type Store struct {
	db *pebble.DB
}

// NewStore opens a Pebble database at the given path.
func NewStore(path string) (*Store, error) {
	opts := &pebble.Options{
		Cache:                 pebble.NewCache(128 << 20), // 128MB cache
		MemTableSize:          64 << 20,                   // 64MB memtable
		L0CompactionThreshold: 2,
		L0StopWritesThreshold: 12,
		LBaseMaxBytes:         64 << 20,
		MaxOpenFiles:          1000,
		BytesPerSync:          512 << 10,
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

type countersRecord struct {
	NextOrderID uint64 `json:"nextOrderId"`
	NextSeq     uint64 `json:"nextSeq"`
}

// Commit persists one instruction's changes atomically.
// Implements state.Committer.
func (s *Store) Commit(cs *state.CommitSet) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	for _, m := range cs.Markets {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshal market %s: %w", m.Symbol, err)
		}
		if err := batch.Set(marketKey(m.Symbol), data, nil); err != nil {
			return err
		}
	}
	for _, symbol := range cs.DeletedMarkets {
		if err := batch.Delete(marketKey(symbol), nil); err != nil {
			return err
		}
	}

	for _, b := range cs.Books {
		data, err := encodeBook(b)
		if err != nil {
			return fmt.Errorf("encode book %s: %w", b.Symbol(), err)
		}
		if err := batch.Set(bookKey(b.Symbol()), data, nil); err != nil {
			return err
		}
	}
	for _, symbol := range cs.DeletedBooks {
		if err := batch.Delete(bookKey(symbol), nil); err != nil {
			return err
		}
	}

	for k, bal := range cs.Vaults {
		data, err := json.Marshal(bal)
		if err != nil {
			return fmt.Errorf("marshal vault %s: %w", k, err)
		}
		if err := batch.Set(vaultKey(k.Account, k.Asset), data, nil); err != nil {
			return err
		}
	}

	counters, err := json.Marshal(countersRecord{NextOrderID: cs.NextOrderID, NextSeq: cs.NextSeq})
	if err != nil {
		return err
	}
	if err := batch.Set([]byte(keyCounters), counters, nil); err != nil {
		return err
	}

	return batch.Commit(pebble.Sync)
}

var _ state.Committer = (*Store)(nil)

// LoadMarkets scans all persisted markets.
func (s *Store) LoadMarkets() ([]*market.Market, error) {
	prefix := []byte(prefixMarket)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []*market.Market
	for iter.First(); iter.Valid(); iter.Next() {
		var m market.Market
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			return nil, fmt.Errorf("unmarshal market %q: %w", iter.Key(), err)
		}
		out = append(out, &m)
	}
	return out, nil
}

// LoadBooks scans all persisted order books.
func (s *Store) LoadBooks() ([]*book.Book, error) {
	prefix := []byte(prefixBook)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []*book.Book
	for iter.First(); iter.Valid(); iter.Next() {
		b, err := decodeBook(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("decode book %q: %w", iter.Key(), err)
		}
		out = append(out, b)
	}
	return out, nil
}

// LoadVaults populates a ledger with all persisted vault balances.
func (s *Store) LoadVaults(l *ledger.Ledger) error {
	prefix := []byte(prefixVault)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		addr, asset, err := vaultKeyParse(iter.Key())
		if err != nil {
			return err
		}
		var bal ledger.Balance
		if err := json.Unmarshal(iter.Value(), &bal); err != nil {
			return fmt.Errorf("unmarshal vault %q: %w", iter.Key(), err)
		}
		l.SetBalance(addr, asset, bal)
	}
	return nil
}

// LoadCounters returns the persisted id counters, zero if never written.
func (s *Store) LoadCounters() (nextOrderID, nextSeq uint64, err error) {
	data, closer, err := s.db.Get([]byte(keyCounters))
	if err == pebble.ErrNotFound {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, err
	}
	defer closer.Close()

	var rec countersRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return 0, 0, err
	}
	return rec.NextOrderID, rec.NextSeq, nil
}
