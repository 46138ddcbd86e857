package domain

import "fmt"

// MarketKey identifies one outcome token of a prediction market.
// It is a composite value type so it can be used directly as a map key.
type MarketKey struct {
	Market  string
	Outcome string
}

func (k MarketKey) String() string {
	return fmt.Sprintf("%s/%s", k.Market, k.Outcome)
}
