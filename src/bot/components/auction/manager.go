package auction

import (
	"sync"
	"time"
)

// Manager is the registry of live auctions, at most one per channel. All
// reads and writes go through a single read/write lock; that is coarse but
// auctions are human-paced and the critical sections only touch one map
// entry. Construct one per process and inject it where needed.
type Manager struct {
	mu       sync.RWMutex
	auctions map[string]*Auction
	now      func() time.Time
}

func NewManager() *Manager {
	return &Manager{
		auctions: make(map[string]*Auction),
		now:      time.Now,
	}
}

// Start opens a new auction in channel. It fails with ErrAlreadyRunning while
// any entry exists for the channel, including one that has expired but not
// yet been swept.
func (m *Manager) Start(channel, creator string, mode Mode, cfg Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.auctions[channel]; ok {
		return ErrAlreadyRunning
	}

	m.auctions[channel] = newAuction(channel, creator, mode, cfg, m.now)
	return nil
}

// PlaceBid submits a bid to the channel's auction.
func (m *Manager) PlaceBid(channel, actor string, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.auctions[channel]
	if !ok {
		return ErrNoActiveAuction
	}
	return a.PlaceBid(actor, amount)
}

// CastVote submits a vote to the channel's auction.
func (m *Manager) CastVote(channel, actor, label string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.auctions[channel]
	if !ok {
		return ErrNoActiveAuction
	}
	return a.CastVote(actor, label)
}

// Get returns a deep copy of the channel's auction for status queries.
func (m *Manager) Get(channel string) (*Auction, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.auctions[channel]
	if !ok {
		return nil, false
	}
	return a.clone(), true
}

// End unconditionally removes and returns the channel's auction, expired or
// not. Creator-only authorization happens in the command layer before this
// is called. The returned snapshot is handed to exactly one caller, which
// owns settlement.
func (m *Manager) End(channel string) (*Auction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.auctions[channel]
	if !ok {
		return nil, false
	}
	delete(m.auctions, channel)
	return a, true
}

// Sweep atomically removes every expired auction and returns them for
// settlement and announcement. Open auctions are left untouched.
func (m *Manager) Sweep() []*Auction {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var expired []*Auction
	for channel, a := range m.auctions {
		if a.expiredAt(now) {
			expired = append(expired, a)
			delete(m.auctions, channel)
		}
	}
	return expired
}
