package state

import (
	"crypto/sha256"
	"encoding/binary"
)

// StateHash computes a deterministic digest of the whole execution domain:
// markets, resting orders, vault balances, and the id counters. Replaying
// the same instruction log against a fresh machine reproduces the same
// hash, which is how replay determinism is verified.
//
// Everything is written in sorted order; no map iteration reaches the hash.
func (m *Machine) StateHash() [32]byte {
	h := sha256.New()
	var buf [8]byte

	writeU64 := func(v uint64) {
		binary.BigEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}

	writeU64(m.nextOrderID)
	writeU64(m.nextSeq)

	for _, mkt := range m.markets.List() {
		h.Write([]byte(mkt.Symbol))
		h.Write([]byte(mkt.BaseAsset))
		h.Write([]byte(mkt.QuoteAsset))
		h.Write([]byte{byte(mkt.Status)})
		writeU64(uint64(mkt.Params.TickSize))
		writeU64(uint64(mkt.Params.LotSize))
		writeU64(uint64(mkt.Params.MinNotional))

		b := m.books[mkt.Symbol]
		if b == nil {
			continue
		}
		for _, o := range b.Orders() {
			writeU64(o.ID)
			h.Write(o.Owner.Bytes())
			h.Write([]byte{byte(o.Side), byte(o.Type), byte(o.Status)})
			writeU64(uint64(o.Price))
			writeU64(uint64(o.Original))
			writeU64(uint64(o.Remaining))
			writeU64(o.Seq)
		}
	}

	for _, k := range m.ledger.Keys() {
		bal := m.ledger.Get(k.Account, k.Asset)
		h.Write(k.Account.Bytes())
		h.Write([]byte(k.Asset))
		writeU64(uint64(bal.Available))
		writeU64(uint64(bal.Reserved))
	}

	return sha256.Sum256(h.Sum(nil))
}
