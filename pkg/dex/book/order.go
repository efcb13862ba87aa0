package book

import (
	"github.com/ethereum/go-ethereum/common"
)

// Side of an order: Bid buys base with quote, Ask sells base for quote.
type Side int8

const (
	Bid Side = 1
	Ask Side = -1
)

func (s Side) String() string {
	switch s {
	case Bid:
		return "bid"
	case Ask:
		return "ask"
	default:
		return "unknown"
	}
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side { return -s }

// OrderType controls the remainder policy after matching:
// Limit rests, Market and IOC discard.
type OrderType int8

const (
	Limit OrderType = iota
	Market
	IOC
)

func (t OrderType) String() string {
	switch t {
	case Limit:
		return "limit"
	case Market:
		return "market"
	case IOC:
		return "ioc"
	default:
		return "unknown"
	}
}

// OrderStatus represents the lifecycle state of an order.
type OrderStatus int8

const (
	StatusOpen OrderStatus = iota
	StatusPartiallyFilled
	StatusFilled
	StatusCancelled
)

func (s OrderStatus) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusPartiallyFilled:
		return "partially_filled"
	case StatusFilled:
		return "filled"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Order is a bid or ask against one market.
// IDs are assigned monotonically by the state machine; Seq is the admission
// sequence used for the time half of price-time priority.
type Order struct {
	ID     uint64
	Owner  common.Address
	Market string

	Side  Side
	Type  OrderType
	Price int64 // limit price in ticks; 0 for market orders

	Original  int64 // quantity at admission, in lots
	Remaining int64 // unfilled quantity, in lots
	Seq       uint64

	Status OrderStatus
}

// Filled returns the quantity matched so far.
func (o *Order) Filled() int64 { return o.Original - o.Remaining }

// IsClosed reports whether the order can no longer rest or match.
func (o *Order) IsClosed() bool {
	return o.Status == StatusFilled || o.Status == StatusCancelled
}

// Fill records one match between a resting maker order and an incoming taker.
// Price is always the maker's resting price. Fills are ephemeral: produced by
// the matching engine and consumed by settlement within the same instruction.
type Fill struct {
	MakerID uint64
	TakerID uint64
	Maker   common.Address
	Taker   common.Address
	Price   int64
	Qty     int64
}

// Level aggregates resting quantity at one price.
type Level struct {
	Price int64
	Qty   int64
}
