package domain

import "time"

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType distinguishes immediate execution from resting orders.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// OrderStatus is the lifecycle state of an order.
// FILLED and CANCELLED are terminal.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusOpen            OrderStatus = "OPEN"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
)

// Fill is one (possibly partial) execution of an order.
// Immutable once created.
type Fill struct {
	Price     float64
	Size      float64
	Fee       float64 // flat rate × notional
	Timestamp time.Time
}

// Notional returns the cash value of the fill.
func (f Fill) Notional() float64 {
	return f.Price * f.Size
}

// Order is a simulated order submitted by a strategy.
// It is mutated only by the order book simulator during matching.
type Order struct {
	ID           string
	Key          MarketKey
	Side         Side
	Type         OrderType
	Size         float64
	LimitPrice   float64 // 0 = no price set; valid prices live in (0, 1)
	Status       OrderStatus
	FilledSize   float64
	AvgFillPrice float64 // size-weighted mean of accepted fills
	Fills        []Fill
	CreatedAt    time.Time
}

// Remaining returns the unfilled portion of the order.
func (o Order) Remaining() float64 {
	r := o.Size - o.FilledSize
	if r < 0 {
		return 0
	}
	return r
}

// Terminal reports whether the order can no longer change.
func (o Order) Terminal() bool {
	return o.Status == OrderStatusFilled || o.Status == OrderStatusCancelled
}
