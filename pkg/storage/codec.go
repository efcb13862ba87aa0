package storage

import (
	"bytes"
	"encoding/gob"

	"github.com/solumdex/solum/pkg/dex/book"
)

// Book records are gob-encoded: a book serializes as its orders in priority
// order, and re-inserting them into an empty book reproduces identical
// state, including heaps and level queues.

type bookRecord struct {
	Symbol string
	Orders []book.Order
}

func encodeBook(b *book.Book) ([]byte, error) {
	rec := bookRecord{Symbol: b.Symbol()}
	for _, o := range b.Orders() {
		rec.Orders = append(rec.Orders, *o)
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeBook(data []byte) (*book.Book, error) {
	var rec bookRecord
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&rec); err != nil {
		return nil, err
	}
	b := book.New(rec.Symbol)
	for i := range rec.Orders {
		o := rec.Orders[i]
		if err := b.Insert(&o); err != nil {
			return nil, err
		}
	}
	return b, nil
}
