package orb

import (
	"sort"
	"sync"
	"time"
)

type PositionStatus string

const (
	PositionOpen    PositionStatus = "open"
	PositionPartial PositionStatus = "partial"
	PositionClosed  PositionStatus = "closed"
)

type TrailReference string

const (
	TrailOpeningRange TrailReference = "opening_range"
	TrailEMA          TrailReference = "ema"
)

// Position is a managed intraday position.
type Position struct {
	TradeID        uint           `json:"trade_id"`
	Symbol         string         `json:"symbol"`
	Side           Side           `json:"side"`
	Rank           int            `json:"rank"`
	Qty            int            `json:"qty"`
	RemainingQty   int            `json:"remaining_qty"`
	Entry          float64        `json:"entry"`
	Stop           float64        `json:"stop"`
	InitialStop    float64        `json:"initial_stop"`
	Target1        float64        `json:"target1"`
	Target2        float64        `json:"target2"`
	R              float64        `json:"r"`
	OrderID        string         `json:"order_id"`
	StopOrderID    string         `json:"stop_order_id,omitempty"`
	Status         PositionStatus `json:"status"`
	PartialFill    bool           `json:"partial_fill"`
	Extended       bool           `json:"extended"`
	CheckpointDone bool           `json:"checkpoint_done"`
	HardStopAt     time.Time      `json:"hard_stop_at"`
	Trail          TrailReference `json:"trail"`
	LastPrice      float64        `json:"last_price"`
	UnrealizedPnL  float64        `json:"unrealized_pnl"`
	RealizedPnL    float64        `json:"realized_pnl"`
	OpenedAt       time.Time      `json:"opened_at"`
	ClosedAt       *time.Time     `json:"closed_at,omitempty"`
	ExitReason     string         `json:"exit_reason,omitempty"`
}

// UnrealizedR returns the open profit in R measured from the initial stop.
func (p Position) UnrealizedR() float64 {
	return UnrealizedR(p.Side, p.Entry, p.InitialStop, p.LastPrice)
}

// Book tracks the managed positions of one account for one session.
type Book struct {
	mu      sync.RWMutex
	session string
	open    map[string]*Position
	closed  []Position
	entries map[string]int
}

func NewBook() *Book {
	return &Book{
		open:    make(map[string]*Position),
		entries: make(map[string]int),
	}
}

// Reset empties the book when the session changes.
func (b *Book) Reset(sessionKey string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == sessionKey {
		return false
	}
	b.session = sessionKey
	b.open = make(map[string]*Position)
	b.closed = nil
	b.entries = make(map[string]int)
	return true
}

// Add records a newly opened position.
func (b *Book) Add(p Position) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p.RemainingQty == 0 {
		p.RemainingQty = p.Qty
	}
	if p.InitialStop == 0 {
		p.InitialStop = p.Stop
	}
	if p.Status == "" {
		p.Status = PositionOpen
	}
	if p.Trail == "" {
		p.Trail = TrailOpeningRange
	}
	b.open[p.Symbol] = &p
	b.entries[p.Symbol]++
}

// RecordClosed registers a position that closed before this process saw it, e.g. on restart.
func (b *Book) RecordClosed(p Position) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p.Status = PositionClosed
	b.closed = append(b.closed, p)
	b.entries[p.Symbol]++
}

// Get returns the open position of symbol.
func (b *Book) Get(symbol string) (Position, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.open[symbol]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// Update applies fn to the open position of symbol.
func (b *Book) Update(symbol string, fn func(p *Position)) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.open[symbol]
	if !ok {
		return false
	}
	fn(p)
	return true
}

// Close moves the open position of symbol to the closed list.
func (b *Book) Close(symbol, reason string, at time.Time) (Position, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.open[symbol]
	if !ok {
		return Position{}, false
	}
	delete(b.open, symbol)
	p.Status = PositionClosed
	p.ExitReason = reason
	p.RemainingQty = 0
	closedAt := at
	p.ClosedAt = &closedAt
	b.closed = append(b.closed, *p)
	return *p, true
}

// Open returns the open positions sorted by rank.
func (b *Book) Open() []Position {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Position, 0, len(b.open))
	for _, p := range b.open {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rank == out[j].Rank {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Rank < out[j].Rank
	})
	return out
}

// All returns open and closed positions.
func (b *Book) All() []Position {
	open := b.Open()
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append(open, b.closed...)
}

// Entries returns how many times symbol has been entered this session.
func (b *Book) Entries(symbol string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.entries[symbol]
}
