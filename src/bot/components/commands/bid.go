package commands

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/slumworks/slumbank/src/bot/components/auction"
	"github.com/slumworks/slumbank/src/shared/data"
	"github.com/slumworks/slumbank/src/shared/ledger"
	"github.com/slumworks/slumbank/src/shared/types"
)

// auctionLedger adapts the persistent store to the settlement interface.
type auctionLedger struct {
	store *ledger.Store
}

func (l auctionLedger) Balance(ctx context.Context, actor string) (int64, error) {
	return l.store.Balance(ctx, actor)
}

func (l auctionLedger) SetBalance(ctx context.Context, actor string, amount int64) error {
	return l.store.SetBalance(ctx, actor, amount)
}

func (l auctionLedger) RecordTransaction(ctx context.Context, rec auction.TransactionRecord) error {
	return l.store.RecordTransaction(ctx, &types.Transaction{
		ID:        rec.ID,
		FromUser:  rec.From,
		ToUser:    rec.To,
		Amount:    rec.Amount,
		Kind:      rec.Kind,
		Memo:      rec.Memo,
		Signature: "system",
		CreatedAt: rec.At,
	})
}

func (h *Handler) handleBid(s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if len(data.Options) == 0 {
		return
	}
	sub := data.Options[0]

	channel, ok := h.voiceChannelOf(s, i.Member.User.ID)
	if !ok {
		respond(s, i, "You must be in a voice channel to use auctions!")
		return
	}

	switch sub.Name {
	case "start":
		h.handleBidStart(s, i, channel, sub)
	case "place":
		h.handleBidPlace(s, i, channel, sub)
	case "vote":
		h.handleBidVote(s, i, channel, sub)
	case "status":
		h.handleBidStatus(s, i, channel)
	case "end":
		h.handleBidEnd(s, i, channel)
	}
}

func (h *Handler) handleBidStart(s *discordgo.Session, i *discordgo.InteractionCreate, channel string, sub *discordgo.ApplicationCommandInteractionDataOption) {
	if !h.rateLimiter.CanUse(i.Member.User.ID) {
		wait := h.rateLimiter.TimeUntilNext(i.Member.User.ID)
		respond(s, i, fmt.Sprintf("Please wait %s before starting another auction.", formatRemaining(wait)))
		return
	}

	mode := auction.ModeBid
	if opts := optionMap(sub.Options); opts["mode"] != nil && opts["mode"].StringValue() == "vote" {
		mode = auction.ModeVote
	}

	if err := h.auctions.Start(channel, i.Member.User.ID, mode, h.auctionCfg); err != nil {
		respond(s, i, err.Error())
		return
	}

	what := "Bid Slumcoins using `/bid place`"
	if mode == auction.ModeVote {
		what = "Vote for which game to play using `/bid vote`"
	}
	respond(s, i, fmt.Sprintf(
		"**Auction started!**\n%s\nEnds in **%s** (extends by %s on late submissions)\nUse `/bid status` to check standings",
		what,
		formatRemaining(h.auctionCfg.BaseDuration),
		formatRemaining(h.auctionCfg.Extension),
	))
}

func (h *Handler) handleBidPlace(s *discordgo.Session, i *discordgo.InteractionCreate, channel string, sub *discordgo.ApplicationCommandInteractionDataOption) {
	amount := optionMap(sub.Options)["amount"].IntValue()

	if snap, ok := h.auctions.Get(channel); ok && snap.Mode != auction.ModeBid {
		respond(s, i, "This auction is a game vote! Use `/bid vote` instead.")
		return
	}

	err := h.auctions.PlaceBid(channel, i.Member.User.ID, amount)
	var tooLow *auction.BidTooLowError
	switch {
	case err == nil:
	case errors.As(err, &tooLow):
		respond(s, i, tooLow.Error())
		return
	default:
		respond(s, i, err.Error())
		return
	}

	msg := fmt.Sprintf("Bid of **%d Slumcoins** recorded!", amount)
	if snap, ok := h.auctions.Get(channel); ok {
		msg += fmt.Sprintf("\nTime remaining: **%s**", formatRemaining(snap.TimeRemaining()))
	}
	respond(s, i, msg)
}

func (h *Handler) handleBidVote(s *discordgo.Session, i *discordgo.InteractionCreate, channel string, sub *discordgo.ApplicationCommandInteractionDataOption) {
	game := optionMap(sub.Options)["game"].StringValue()

	// Votes do not carry their own liveness check; verify before accepting.
	snap, ok := h.auctions.Get(channel)
	if !ok {
		respond(s, i, "No active auction in this voice channel! Use `/bid start` to begin one.")
		return
	}
	if snap.Expired() {
		respond(s, i, "The auction in this voice channel has ended!")
		return
	}
	if snap.Mode != auction.ModeVote {
		respond(s, i, "This auction takes Slumcoin bids! Use `/bid place` instead.")
		return
	}

	if err := h.auctions.CastVote(channel, i.Member.User.ID, game); err != nil {
		// Lost a race with end/sweep between the check and the vote.
		respond(s, i, err.Error())
		return
	}

	msg := fmt.Sprintf("Vote recorded for **%s**!", game)
	if snap, ok := h.auctions.Get(channel); ok {
		msg += fmt.Sprintf("\nTime remaining: **%s**", formatRemaining(snap.TimeRemaining()))
	}
	respond(s, i, msg)
}

func (h *Handler) handleBidStatus(s *discordgo.Session, i *discordgo.InteractionCreate, channel string) {
	snap, ok := h.auctions.Get(channel)
	if !ok {
		respond(s, i, "No active auction in this voice channel! Use `/bid start` to begin one.")
		return
	}
	if snap.Expired() {
		respond(s, i, "The auction in this voice channel has ended!")
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Current auction status**\nTime remaining: **%s**\nSubmissions: **%d**\n\n",
		formatRemaining(snap.TimeRemaining()), len(snap.Proposals))

	if snap.Mode == auction.ModeBid {
		if highest := snap.HighestBid(); highest > 0 {
			fmt.Fprintf(&b, "Highest bid: **%d Slumcoins**", highest)
		} else {
			b.WriteString("No bids yet! Use `/bid place` to bid.")
		}
		respond(s, i, b.String())
		return
	}

	tallies := snap.Tallies()
	if len(tallies) == 0 {
		b.WriteString("No votes yet! Use `/bid vote` to vote.")
		respond(s, i, b.String())
		return
	}

	type standing struct {
		label  string
		voters []string
	}
	standings := make([]standing, 0, len(tallies))
	for label, voters := range tallies {
		standings = append(standings, standing{label, voters})
	}
	sort.Slice(standings, func(a, b int) bool {
		return len(standings[a].voters) > len(standings[b].voters)
	})

	b.WriteString("**Current standings:**\n")
	for _, st := range standings {
		plural := "s"
		if len(st.voters) == 1 {
			plural = ""
		}
		fmt.Fprintf(&b, "• **%s**: %d vote%s\n", st.label, len(st.voters), plural)
	}
	respond(s, i, b.String())
}

func (h *Handler) handleBidEnd(s *discordgo.Session, i *discordgo.InteractionCreate, channel string) {
	snap, ok := h.auctions.Get(channel)
	if !ok {
		respond(s, i, "No active auction in this voice channel!")
		return
	}

	// Creator-only; enforced here, not in the registry.
	if snap.Creator != i.Member.User.ID {
		respond(s, i, "Only the auction creator can end it early!")
		return
	}

	ended, ok := h.auctions.End(channel)
	if !ok {
		// A sweep beat us to it; the sweeper owns the announcement.
		respond(s, i, "No active auction in this voice channel!")
		return
	}

	respond(s, i, h.finish(context.Background(), ended))
}

// RunSweeper periodically reaps expired auctions, settles them and announces
// the outcome in the auction's channel. One sweeper per bot process replaces
// per-auction one-shot timers.
func (h *Handler) RunSweeper(ctx context.Context, s *discordgo.Session, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, ended := range h.auctions.Sweep() {
				msg := h.finish(ctx, ended)
				if _, err := s.ChannelMessageSend(ended.Channel, msg); err != nil {
					log.Printf("commands: announce auction result in %s: %v", ended.Channel, err)
				}
			}
		}
	}
}

// finish settles a snapshot returned by End or Sweep and renders the
// announcement. The snapshot left the registry already, so settlement runs
// exactly once regardless of which path got here first.
func (h *Handler) finish(ctx context.Context, ended *auction.Auction) string {
	out, ok := ended.Winner()
	if !ok {
		h.publishResult(ctx, ended, "", 0)
		return "Auction ended with no submissions!"
	}

	if ended.Mode == auction.ModeVote {
		mentions := make([]string, 0, len(out.Voters))
		for _, id := range out.Voters {
			mentions = append(mentions, "<@"+id+">")
		}
		h.publishResult(ctx, ended, out.Label, int64(len(out.Voters)))
		return fmt.Sprintf("**Auction ended!**\nWinning game: **%s**\nVotes: %d (%s)",
			out.Label, len(out.Voters), strings.Join(mentions, ", "))
	}

	receipt, err := auction.Settle(ctx, ended, auctionLedger{store: h.store})
	switch {
	case errors.Is(err, auction.ErrInsufficientFunds):
		log.Printf("commands: auction winner %s cannot cover %d in %s", out.Winner, out.Amount, ended.Channel)
		return fmt.Sprintf("**Auction ended!**\n<@%s> won with **%d Slumcoins** but has insufficient funds to pay!",
			out.Winner, out.Amount)
	case err != nil:
		log.Printf("commands: settle auction in %s: %v", ended.Channel, err)
		return fmt.Sprintf("**Auction ended!**\n<@%s> won with **%d Slumcoins**, but payment processing failed.",
			out.Winner, out.Amount)
	}

	h.publishResult(ctx, ended, out.Winner, out.Amount)
	return fmt.Sprintf("**Auction ended!**\n<@%s> won with **%d Slumcoins** (tx %s)",
		receipt.Winner, receipt.Amount, receipt.TxID)
}

func (h *Handler) publishResult(ctx context.Context, ended *auction.Auction, winner string, amount int64) {
	if h.rdb == nil {
		return
	}
	err := data.PublishAuctionResult(ctx, h.rdb, map[string]interface{}{
		"channel":     ended.Channel,
		"mode":        ended.Mode.String(),
		"creator":     ended.Creator,
		"winner":      winner,
		"amount":      amount,
		"submissions": len(ended.Proposals),
		"ended_at":    time.Now().Unix(),
	})
	if err != nil {
		log.Printf("commands: publish auction result: %v", err)
	}
}
