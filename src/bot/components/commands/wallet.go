package commands

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/slumworks/slumbank/src/shared/types"
	"gorm.io/gorm"
)

func optionMap(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, opt := range opts {
		m[opt.Name] = opt
	}
	return m
}

func (h *Handler) handleRegister(s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	ctx := context.Background()
	opts := optionMap(data.Options)

	target := i.Member.User
	registeringOther := false
	if opt, ok := opts["user"]; ok {
		if !h.isAdmin(i.Member) {
			respond(s, i, "You don't have permission to register other users.")
			return
		}
		target = opt.UserValue(s)
		registeringOther = true
	}

	if _, err := h.store.GetUser(ctx, target.ID); err == nil {
		if registeringOther {
			respond(s, i, fmt.Sprintf("%s is already registered", target.Username))
		} else {
			respond(s, i, "You're already registered!")
		}
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("commands: register lookup for %s: %v", target.ID, err)
		respond(s, i, "Registration failed. Please try again.")
		return
	}

	kp, err := h.keys.Generate()
	if err != nil {
		log.Printf("commands: generate keypair: %v", err)
		respond(s, i, "Registration failed. Please try again.")
		return
	}

	sealed, err := h.keys.EncryptSeed(kp.Seed(), target.ID)
	if err != nil {
		log.Printf("commands: encrypt seed for %s: %v", target.ID, err)
		respond(s, i, "Registration failed. Please try again.")
		return
	}

	user := &types.User{
		DiscordID:           target.ID,
		Username:            target.Username,
		PublicKey:           kp.PublicKey,
		EncryptedPrivateKey: sealed,
	}
	if err := h.store.CreateUser(ctx, user); err != nil {
		log.Printf("commands: create user %s: %v", target.ID, err)
		respond(s, i, "Registration failed. Please try again.")
		return
	}

	if registeringOther {
		respond(s, i, fmt.Sprintf("Registered %s successfully. Starting balance: 0 coins.", target.Username))
	} else {
		respond(s, i, "Registration successful. bub boils the seed")
	}
}

func (h *Handler) handleBalance(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()
	userID := i.Member.User.ID

	if _, err := h.store.GetUser(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respond(s, i, "You're not registered! Use `/register` first.")
		} else {
			log.Printf("commands: balance lookup for %s: %v", userID, err)
			respond(s, i, "Database error occurred.")
		}
		return
	}

	balance, err := h.store.Balance(ctx, userID)
	if err != nil {
		log.Printf("commands: get balance for %s: %v", userID, err)
		respond(s, i, "Error retrieving balance.")
		return
	}

	respond(s, i, fmt.Sprintf("Your balance: %d coins", balance))
}

func (h *Handler) handleGive(s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	ctx := context.Background()

	if !h.isAdmin(i.Member) {
		respond(s, i, "You don't have permission to use this command.")
		return
	}

	opts := optionMap(data.Options)
	target := opts["user"].UserValue(s)
	amount := opts["amount"].IntValue()

	if _, err := h.store.GetUser(ctx, target.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respond(s, i, "Target user is not registered!")
		} else {
			log.Printf("commands: give lookup for %s: %v", target.ID, err)
			respond(s, i, "Database error occurred.")
		}
		return
	}

	tx := &types.Transaction{
		ID:        uuid.NewString(),
		FromUser:  "SYSTEM",
		ToUser:    target.ID,
		Amount:    amount,
		Kind:      "mint",
		Memo:      fmt.Sprintf("Admin grant by %s", i.Member.User.Username),
		Signature: "system",
		CreatedAt: time.Now(),
	}
	if err := h.store.RecordTransaction(ctx, tx); err != nil {
		log.Printf("commands: record mint transaction: %v", err)
		respond(s, i, "Error processing transaction.")
		return
	}

	balance, err := h.store.Balance(ctx, target.ID)
	if err != nil {
		log.Printf("commands: read balance for %s: %v", target.ID, err)
		respond(s, i, "Error updating balance.")
		return
	}
	newBalance := balance + amount
	if err := h.store.SetBalance(ctx, target.ID, newBalance); err != nil {
		log.Printf("commands: update balance for %s: %v", target.ID, err)
		respond(s, i, "Error updating balance.")
		return
	}

	respond(s, i, fmt.Sprintf("Gave %d Slumcoins to %s. New balance: %d", amount, target.Username, newBalance))
}

func (h *Handler) handleBaltop(s *discordgo.Session, i *discordgo.InteractionCreate) {
	entries, err := h.store.TopBalances(context.Background(), 0)
	if err != nil {
		log.Printf("commands: leaderboard: %v", err)
		respond(s, i, "Error retrieving leaderboard. Please try again.")
		return
	}

	if len(entries) == 0 {
		respond(s, i, "No registered users found!")
		return
	}

	var b strings.Builder
	b.WriteString("Slumbank Leaderboard\n")
	for rank, entry := range entries {
		fmt.Fprintf(&b, "**%d. %s : ``%d``**\n", rank+1, entry.Username, entry.Balance)
	}
	respond(s, i, b.String())
}
