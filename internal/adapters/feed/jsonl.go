package feed

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmarzal/predictlab/internal/domain"
)

// eventLine is the on-disk shape of one recorded event. One JSON object
// per line; type discriminates which fields apply.
type eventLine struct {
	Type      string    `json:"type"` // price | trade | resolved
	Market    string    `json:"market"`
	Outcome   string    `json:"outcome"`
	Price     float64   `json:"price"`
	Bid       float64   `json:"bid,omitempty"`
	Ask       float64   `json:"ask,omitempty"`
	Volume    float64   `json:"volume,omitempty"`
	Side      string    `json:"side,omitempty"`
	Size      float64   `json:"size,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// LoadJSONL reads a recorded event file (one JSON event per line) and
// returns a feed over it, sorted by timestamp.
func LoadJSONL(path string) (*Slice, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("feed.LoadJSONL: open %q: %w", path, err)
	}
	defer f.Close()

	var events []domain.Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var line eventLine
		if err := json.Unmarshal(raw, &line); err != nil {
			return nil, fmt.Errorf("feed.LoadJSONL: %s:%d: %w", path, lineNo, err)
		}
		ev, err := line.toEvent()
		if err != nil {
			return nil, fmt.Errorf("feed.LoadJSONL: %s:%d: %w", path, lineNo, err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("feed.LoadJSONL: read %q: %w", path, err)
	}
	return FromSlice(events), nil
}

func (l eventLine) toEvent() (domain.Event, error) {
	key := domain.MarketKey{Market: l.Market, Outcome: l.Outcome}
	switch l.Type {
	case "price":
		return domain.PriceUpdate{
			Key: key, Price: l.Price, Bid: l.Bid, Ask: l.Ask,
			Volume24h: l.Volume, Timestamp: l.Timestamp,
		}, nil
	case "trade":
		return domain.MarketTrade{
			Key: key, Side: domain.Side(l.Side), Price: l.Price,
			Size: l.Size, Timestamp: l.Timestamp,
		}, nil
	case "resolved":
		return domain.MarketResolved{
			Key: key, ResolutionPrice: l.Price, Timestamp: l.Timestamp,
		}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", l.Type)
	}
}
