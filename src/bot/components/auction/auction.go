package auction

import "time"

// Mode selects how proposals are ordered and how a winner is resolved.
type Mode uint8

const (
	// ModeBid takes Slumcoin amounts; each bid must strictly exceed the
	// current highest.
	ModeBid Mode = iota
	// ModeVote takes game labels; the label with the most supporters wins.
	ModeVote
)

func (m Mode) String() string {
	if m == ModeVote {
		return "vote"
	}
	return "bid"
}

// Config is captured at start time and immutable afterwards.
type Config struct {
	BaseDuration    time.Duration
	ExtensionWindow time.Duration
	Extension       time.Duration
}

// DefaultConfig matches the reference deployment: 2 minute base, extensions
// of 15s when a qualifying submission lands within 30s of the deadline.
func DefaultConfig() Config {
	return Config{
		BaseDuration:    120 * time.Second,
		ExtensionWindow: 30 * time.Second,
		Extension:       15 * time.Second,
	}
}

// Proposal is one actor's current submission. A later submission from the
// same actor replaces it.
type Proposal struct {
	Actor       string
	Amount      int64  // ModeBid
	Label       string // ModeVote
	SubmittedAt time.Time
}

// Auction is one time-boxed competition scoped to a channel. It is not safe
// for concurrent use on its own; the Manager serializes all access.
type Auction struct {
	Channel   string
	Creator   string
	Mode      Mode
	StartTime time.Time
	EndTime   time.Time
	Proposals map[string]Proposal

	cfg Config
	now func() time.Time
}

func newAuction(channel, creator string, mode Mode, cfg Config, now func() time.Time) *Auction {
	start := now()
	return &Auction{
		Channel:   channel,
		Creator:   creator,
		Mode:      mode,
		StartTime: start,
		EndTime:   start.Add(cfg.BaseDuration),
		Proposals: make(map[string]Proposal),
		cfg:       cfg,
		now:       now,
	}
}

// PlaceBid records a bid for actor, replacing any earlier bid from the same
// actor. The bid must strictly exceed the current highest (minimum increment
// of 1). A qualifying bid near the deadline pushes it back.
func (a *Auction) PlaceBid(actor string, amount int64) error {
	if a.Mode != ModeBid {
		return ErrWrongMode
	}

	now := a.now()
	if a.expiredAt(now) {
		return ErrExpired
	}

	if highest := a.HighestBid(); amount <= highest {
		return &BidTooLowError{Highest: highest}
	}

	prev, ok := a.Proposals[actor]
	changed := !ok || prev.Amount != amount
	a.record(Proposal{Actor: actor, Amount: amount, SubmittedAt: now}, changed, now)
	return nil
}

// CastVote records actor's vote for label, replacing any earlier vote.
// Liveness is not checked here; the command layer verifies the auction is
// still open before accepting votes.
func (a *Auction) CastVote(actor, label string) error {
	if a.Mode != ModeVote {
		return ErrWrongMode
	}

	now := a.now()
	prev, ok := a.Proposals[actor]
	changed := !ok || prev.Label != label
	a.record(Proposal{Actor: actor, Label: label, SubmittedAt: now}, changed, now)
	return nil
}

// record upserts the proposal and applies the extension rule: a new or
// changed submission landing with less than ExtensionWindow remaining moves
// the deadline to now + Extension. Resubmitting an unchanged value never
// extends.
func (a *Auction) record(p Proposal, changed bool, now time.Time) {
	if changed && a.EndTime.Sub(now) < a.cfg.ExtensionWindow {
		a.EndTime = now.Add(a.cfg.Extension)
	}
	a.Proposals[p.Actor] = p
}

// Expired reports whether the deadline has passed. An expired auction stays
// in the registry until a sweep or end removes it.
func (a *Auction) Expired() bool {
	return a.expiredAt(a.now())
}

func (a *Auction) expiredAt(t time.Time) bool {
	return t.After(a.EndTime)
}

// TimeRemaining returns the duration until the deadline, floored at zero.
func (a *Auction) TimeRemaining() time.Duration {
	d := a.EndTime.Sub(a.now())
	if d < 0 {
		return 0
	}
	return d
}

// HighestBid returns the current highest bid amount, zero when there are no
// proposals.
func (a *Auction) HighestBid() int64 {
	var highest int64
	for _, p := range a.Proposals {
		if p.Amount > highest {
			highest = p.Amount
		}
	}
	return highest
}

// Bid returns actor's current bid amount.
func (a *Auction) Bid(actor string) (int64, bool) {
	p, ok := a.Proposals[actor]
	return p.Amount, ok
}

// Tallies groups voters by label for ModeVote status rendering.
func (a *Auction) Tallies() map[string][]string {
	tallies := make(map[string][]string)
	for _, p := range a.Proposals {
		tallies[p.Label] = append(tallies[p.Label], p.Actor)
	}
	return tallies
}

// Outcome is the resolved winner of a finished auction.
type Outcome struct {
	Mode   Mode
	Winner string // ModeBid: winning actor
	Amount int64  // ModeBid: winning amount
	Label  string // ModeVote: winning label
	Voters []string
}

// Winner resolves the outcome. ModeBid: the actor holding the highest bid;
// the strict-increase rule makes ties impossible. ModeVote: the label with
// the most supporters; ties break arbitrarily by map iteration order. The
// second return is false when no proposals exist.
func (a *Auction) Winner() (Outcome, bool) {
	if len(a.Proposals) == 0 {
		return Outcome{}, false
	}

	if a.Mode == ModeBid {
		var best Proposal
		for _, p := range a.Proposals {
			if p.Amount > best.Amount {
				best = p
			}
		}
		return Outcome{Mode: ModeBid, Winner: best.Actor, Amount: best.Amount}, true
	}

	var winner string
	var voters []string
	for label, supporters := range a.Tallies() {
		if len(supporters) > len(voters) {
			winner = label
			voters = supporters
		}
	}
	return Outcome{Mode: ModeVote, Label: winner, Voters: voters}, true
}

// clone deep-copies the auction so callers never observe or mutate registry
// state through a snapshot.
func (a *Auction) clone() *Auction {
	c := *a
	c.Proposals = make(map[string]Proposal, len(a.Proposals))
	for actor, p := range a.Proposals {
		c.Proposals[actor] = p
	}
	return &c
}
