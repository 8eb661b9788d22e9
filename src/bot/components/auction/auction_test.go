package auction

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	t time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestAuction(mode Mode, c *clock) *Auction {
	return newAuction("vc-1", "creator", mode, DefaultConfig(), c.Now)
}

func TestPlaceBidStrictIncrease(t *testing.T) {
	c := newClock()
	a := newTestAuction(ModeBid, c)

	require.NoError(t, a.PlaceBid("alice", 100))
	assert.Equal(t, int64(100), a.HighestBid())

	c.Advance(time.Second)
	endBefore := a.EndTime

	err := a.PlaceBid("bob", 100)
	var tooLow *BidTooLowError
	require.ErrorAs(t, err, &tooLow)
	assert.Equal(t, int64(100), tooLow.Highest)

	// A rejected bid changes nothing: no proposal, no extension.
	_, ok := a.Bid("bob")
	assert.False(t, ok)
	assert.Equal(t, endBefore, a.EndTime)

	require.NoError(t, a.PlaceBid("bob", 150))
	assert.Equal(t, int64(150), a.HighestBid())
}

func TestHighestBidNonDecreasing(t *testing.T) {
	c := newClock()
	a := newTestAuction(ModeBid, c)

	prev := int64(0)
	for _, amount := range []int64{10, 5, 25, 25, 24, 40} {
		_ = a.PlaceBid("actor", amount)
		assert.GreaterOrEqual(t, a.HighestBid(), prev)
		prev = a.HighestBid()
	}
	assert.Equal(t, int64(40), a.HighestBid())
}

func TestLateBidExtendsDeadline(t *testing.T) {
	c := newClock()
	a := newTestAuction(ModeBid, c)
	start := a.StartTime

	require.NoError(t, a.PlaceBid("alice", 100))
	c.Advance(time.Second)
	require.NoError(t, a.PlaceBid("bob", 150))

	// Original deadline stands while plenty of time remains.
	assert.Equal(t, start.Add(120*time.Second), a.EndTime)

	// 5s before the deadline: a new bid pushes it to now + 15s.
	c.Advance(114 * time.Second) // t = 115s
	require.NoError(t, a.PlaceBid("carol", 200))
	assert.Equal(t, start.Add(130*time.Second), a.EndTime)

	out, ok := a.Winner()
	require.True(t, ok)
	assert.Equal(t, "carol", out.Winner)
	assert.Equal(t, int64(200), out.Amount)
}

func TestNoExtensionOutsideWindow(t *testing.T) {
	c := newClock()
	a := newTestAuction(ModeBid, c)
	end := a.EndTime

	c.Advance(50 * time.Second) // 70s remaining, window is 30s
	require.NoError(t, a.PlaceBid("alice", 100))
	assert.Equal(t, end, a.EndTime)
}

func TestUnchangedVoteDoesNotExtend(t *testing.T) {
	c := newClock()
	a := newTestAuction(ModeVote, c)
	end := a.EndTime

	a.CastVote("alice", "chess")
	assert.Equal(t, end, a.EndTime)

	// 20s remaining: resubmitting the same label is a no-op update.
	c.Advance(100 * time.Second)
	a.CastVote("alice", "chess")
	assert.Equal(t, end, a.EndTime)

	// Changing the label inside the window extends.
	c.Advance(10 * time.Second) // t = 110s, 10s remaining
	a.CastVote("alice", "poker")
	assert.Equal(t, c.Now().Add(15*time.Second), a.EndTime)
}

func TestVoteReplacesEarlierVote(t *testing.T) {
	c := newClock()
	a := newTestAuction(ModeVote, c)

	a.CastVote("alice", "chess")
	a.CastVote("alice", "poker")

	assert.Len(t, a.Proposals, 1)
	assert.Equal(t, "poker", a.Proposals["alice"].Label)
}

func TestVoteWinnerByPlurality(t *testing.T) {
	c := newClock()
	a := newTestAuction(ModeVote, c)

	a.CastVote("alice", "chess")
	a.CastVote("bob", "chess")
	a.CastVote("carol", "poker")

	out, ok := a.Winner()
	require.True(t, ok)
	assert.Equal(t, "chess", out.Label)
	assert.ElementsMatch(t, []string{"alice", "bob"}, out.Voters)
}

func TestVoteTieReturnsOneOfTied(t *testing.T) {
	c := newClock()
	a := newTestAuction(ModeVote, c)

	a.CastVote("alice", "chess")
	a.CastVote("bob", "poker")

	out, ok := a.Winner()
	require.True(t, ok)
	assert.Contains(t, []string{"chess", "poker"}, out.Label)
	assert.Len(t, out.Voters, 1)
}

func TestPlaceBidRejectedInVoteAuction(t *testing.T) {
	c := newClock()
	a := newTestAuction(ModeVote, c)
	require.NoError(t, a.CastVote("alice", "chess"))

	assert.ErrorIs(t, a.PlaceBid("mallory", 5), ErrWrongMode)

	// The stray bid must not land as a vote for the empty label.
	assert.Len(t, a.Proposals, 1)
	_, ok := a.Bid("mallory")
	assert.False(t, ok)

	out, ok := a.Winner()
	require.True(t, ok)
	assert.Equal(t, "chess", out.Label)
}

func TestCastVoteRejectedInBidAuction(t *testing.T) {
	c := newClock()
	a := newTestAuction(ModeBid, c)
	require.NoError(t, a.PlaceBid("alice", 100))

	assert.ErrorIs(t, a.CastVote("bob", "chess"), ErrWrongMode)
	assert.Len(t, a.Proposals, 1)
	assert.Equal(t, int64(100), a.HighestBid())
}

func TestWinnerEmptyAuction(t *testing.T) {
	c := newClock()
	for _, mode := range []Mode{ModeBid, ModeVote} {
		a := newTestAuction(mode, c)
		_, ok := a.Winner()
		assert.False(t, ok)
	}
}

func TestExpiryBoundary(t *testing.T) {
	c := newClock()
	a := newTestAuction(ModeBid, c)

	c.Advance(120 * time.Second)
	assert.False(t, a.Expired(), "live through the exact deadline instant")
	assert.Equal(t, time.Duration(0), a.TimeRemaining())

	c.Advance(time.Nanosecond)
	assert.True(t, a.Expired())
	assert.Equal(t, time.Duration(0), a.TimeRemaining())
}

func TestPlaceBidAfterExpiry(t *testing.T) {
	c := newClock()
	a := newTestAuction(ModeBid, c)

	c.Advance(121 * time.Second)
	err := a.PlaceBid("alice", 100)
	assert.True(t, errors.Is(err, ErrExpired))
	assert.Empty(t, a.Proposals)
}

func TestTimeRemaining(t *testing.T) {
	c := newClock()
	a := newTestAuction(ModeBid, c)

	assert.Equal(t, 120*time.Second, a.TimeRemaining())
	c.Advance(45 * time.Second)
	assert.Equal(t, 75*time.Second, a.TimeRemaining())
}
