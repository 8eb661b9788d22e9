package commands

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/redis/go-redis/v9"
	"github.com/slumworks/slumbank/src/bot/components/auction"
	"github.com/slumworks/slumbank/src/bot/components/keyring"
	"github.com/slumworks/slumbank/src/shared/ledger"
)

const (
	CommandRegister = "register"
	CommandBalance  = "balance"
	CommandGive     = "give"
	CommandBaltop   = "baltop"
	CommandBid      = "bid"
	CommandInfo     = "info"
)

var commandDefinitions = map[string]*discordgo.ApplicationCommand{
	CommandRegister: {
		Name:        CommandRegister,
		Description: "Register yourself for Slumcoins",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionUser,
				Name:        "user",
				Description: "User to register (admin only)",
			},
		},
	},
	CommandBalance: {
		Name:        CommandBalance,
		Description: "Check your Slumcoin balance",
	},
	CommandGive: {
		Name:        CommandGive,
		Description: "Give Slumcoins to a user (admin)",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionUser,
				Name:        "user",
				Description: "User to give coins to",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "amount",
				Description: "Amount of coins to give",
				Required:    true,
				MinValue:    &minAmount,
			},
		},
	},
	CommandBaltop: {
		Name:        CommandBaltop,
		Description: "Show the Slumcoin leaderboard",
	},
	CommandBid: {
		Name:        CommandBid,
		Description: "Channel auctions",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "start",
				Description: "Start an auction in your voice channel",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "mode",
						Description: "Coin auction or game vote",
						Required:    true,
						Choices: []*discordgo.ApplicationCommandOptionChoice{
							{Name: "coins", Value: "bid"},
							{Name: "game vote", Value: "vote"},
						},
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "place",
				Description: "Place a Slumcoin bid",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "amount",
						Description: "Your bid in Slumcoins",
						Required:    true,
						MinValue:    &minAmount,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "vote",
				Description: "Vote for a game",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "game",
						Description: "The game you want to vote for",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "status",
				Description: "Show the current auction standings",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "end",
				Description: "End the auction early (creator only)",
			},
		},
	},
	CommandInfo: {
		Name:        CommandInfo,
		Description: "Show available commands",
	},
}

var minAmount = float64(1)

var defaultCommandOrder = []string{
	CommandRegister,
	CommandBalance,
	CommandGive,
	CommandBaltop,
	CommandBid,
	CommandInfo,
}

// Register registers the requested slash commands for a guild. When no
// command names are provided, all known commands are registered.
func Register(s *discordgo.Session, guildID string, names ...string) error {
	if guildID == "" {
		return fmt.Errorf("commands: guildID is required to register slash commands")
	}

	if len(names) == 0 {
		names = defaultCommandOrder
	}

	var failures []string
	for _, name := range names {
		definition, ok := commandDefinitions[name]
		if !ok {
			log.Printf("commands: unknown slash command %q", name)
			continue
		}

		_, err := s.ApplicationCommandCreate(s.State.User.ID, guildID, definition)
		if err != nil {
			if isDuplicateCommandError(err) {
				log.Printf("commands: slash command %q already registered", name)
				continue
			}
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			log.Printf("commands: failed to register command %q: %v", name, err)
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("commands: slash command registration errors: %s", strings.Join(failures, "; "))
	}

	return nil
}

// Delete removes all registered slash commands for a guild.
func Delete(s *discordgo.Session, guildID string) error {
	if guildID == "" {
		return fmt.Errorf("commands: guildID is required to delete slash commands")
	}

	cmds, err := s.ApplicationCommands(s.State.User.ID, guildID)
	if err != nil {
		return err
	}

	for _, cmd := range cmds {
		if err := s.ApplicationCommandDelete(s.State.User.ID, guildID, cmd.ID); err != nil {
			return err
		}
	}

	return nil
}

func isDuplicateCommandError(err error) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) {
		if restErr.Message != nil {
			msg := strings.ToLower(restErr.Message.Message)
			if strings.Contains(msg, "already exists") {
				return true
			}
		}
	}
	return false
}

// Handler executes slash commands against the ledger, keyring and auction
// registry. All permission checks happen here; the auction core receives
// already-authorized inputs.
type Handler struct {
	store       *ledger.Store
	keys        *keyring.Keyring
	auctions    *auction.Manager
	rdb         *redis.Client
	guildID     string
	adminRoleID string
	auctionCfg  auction.Config
	rateLimiter *UserRateLimiter
}

func NewHandler(store *ledger.Store, keys *keyring.Keyring, auctions *auction.Manager, rdb *redis.Client, guildID, adminRoleID string, auctionCfg auction.Config) *Handler {
	return &Handler{
		store:       store,
		keys:        keys,
		auctions:    auctions,
		rdb:         rdb,
		guildID:     guildID,
		adminRoleID: adminRoleID,
		auctionCfg:  auctionCfg,
		rateLimiter: NewUserRateLimiter(30 * time.Second),
	}
}

// HandleInteraction dispatches an application command interaction.
func (h *Handler) HandleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	if i.Member == nil || i.Member.User == nil {
		respond(s, i, "This command can only be used in a server!")
		return
	}

	data := i.ApplicationCommandData()
	switch data.Name {
	case CommandRegister:
		h.handleRegister(s, i, data)
	case CommandBalance:
		h.handleBalance(s, i)
	case CommandGive:
		h.handleGive(s, i, data)
	case CommandBaltop:
		h.handleBaltop(s, i)
	case CommandBid:
		h.handleBid(s, i, data)
	case CommandInfo:
		h.handleInfo(s, i)
	default:
		log.Printf("commands: unhandled command %q", data.Name)
	}
}

func (h *Handler) handleInfo(s *discordgo.Session, i *discordgo.InteractionCreate) {
	respond(s, i,
		"• `/register` - Register yourself for Slumcoins\n"+
			"• `/register user` - Register another user (admin)\n"+
			"• `/balance` - Check your Slumcoin balance\n"+
			"• `/give user amount` - Give Slumcoins to a user (admin)\n"+
			"• `/baltop` - Show the Slumcoin leaderboard\n"+
			"• `/bid start` - Start an auction in your voice channel\n"+
			"• `/bid place` / `/bid vote` - Submit to the auction\n"+
			"• `/bid status` - Show auction standings\n"+
			"• `/bid end` - End your auction early\n"+
			"• `/info` - Show this message")
}

// isAdmin reports whether the invoking member may use admin commands: guild
// administrator permission or the configured admin role.
func (h *Handler) isAdmin(member *discordgo.Member) bool {
	if member.Permissions&discordgo.PermissionAdministrator != 0 {
		return true
	}
	for _, roleID := range member.Roles {
		if roleID == h.adminRoleID && h.adminRoleID != "" {
			return true
		}
	}
	return false
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content},
	})
	if err != nil {
		log.Printf("commands: failed to respond to interaction: %v", err)
	}
}

// voiceChannelOf returns the voice channel the member currently occupies.
func (h *Handler) voiceChannelOf(s *discordgo.Session, userID string) (string, bool) {
	vs, err := s.State.VoiceState(h.guildID, userID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		return "", false
	}
	return vs.ChannelID, true
}

func formatRemaining(d time.Duration) string {
	return fmt.Sprintf("%ds", int(d.Seconds()))
}
