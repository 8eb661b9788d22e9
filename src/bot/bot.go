package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/slumworks/slumbank/src/bot/components/auction"
	"github.com/slumworks/slumbank/src/bot/components/commands"
	"github.com/slumworks/slumbank/src/bot/components/keyring"
	"github.com/slumworks/slumbank/src/bot/config"
	"github.com/slumworks/slumbank/src/shared/data"
	"github.com/slumworks/slumbank/src/shared/ledger"
	"gorm.io/gorm"
)

type SlumBot struct {
	session     *discordgo.Session
	db          *gorm.DB
	rdb         *redis.Client
	handler     *commands.Handler
	cfg         config.Config
	sweepCancel context.CancelFunc
}

func NewSlumBot(cfg config.Config, db *gorm.DB, rdb *redis.Client) (*SlumBot, error) {
	dg, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, err
	}

	store := ledger.New(db, rdb)
	keys := keyring.New(cfg.MasterKey)
	auctions := auction.NewManager()

	bot := &SlumBot{
		session: dg,
		db:      db,
		rdb:     rdb,
		handler: commands.NewHandler(store, keys, auctions, rdb, cfg.GuildID, cfg.AdminRoleID, cfg.Auction),
		cfg:     cfg,
	}

	dg.AddHandler(bot.handleReady)
	dg.AddHandler(bot.handler.HandleInteraction)

	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

	return bot, nil
}

func (b *SlumBot) handleReady(s *discordgo.Session, event *discordgo.Ready) {
	log.Printf("Discord bot logged in as %s", event.User.Username)

	if err := commands.Register(s, b.cfg.GuildID); err != nil {
		log.Printf("Failed to register commands: %v", err)
	}

	b.startSweeper(s)
}

// startSweeper replaces any running sweeper with a fresh one. Ready fires
// again on every reconnect; without the cancel, each reconnect would leak a
// ticker goroutine.
func (b *SlumBot) startSweeper(s *discordgo.Session) {
	if b.sweepCancel != nil {
		b.sweepCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	b.sweepCancel = cancel
	go b.handler.RunSweeper(ctx, s, b.cfg.SweepInterval)
}

func (b *SlumBot) Start() error {
	return b.session.Open()
}

func (b *SlumBot) Stop() error {
	if b.sweepCancel != nil {
		b.sweepCancel()
	}
	return b.session.Close()
}

func main() {
	_ = godotenv.Load()

	// Connect to database first
	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "slumbank:slumbank@tcp(127.0.0.1:3306)/slumbank"
	}

	db := data.MustMySQL(mysqlDSN)

	store := ledger.New(db, nil)
	if err := store.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	cfg := config.Load(db)
	if cfg.Token == "" {
		log.Fatal("DISCORD_TOKEN not set in database or environment")
	}
	if cfg.GuildID == "" {
		log.Fatal("GUILD_ID not set in database or environment")
	}
	if cfg.MasterKey == "" {
		log.Fatal("MASTER_KEY not set in database or environment")
	}

	// Connect to Redis
	rdb := data.MustRedis(cfg.RedisURL)

	bot, err := NewSlumBot(cfg, db, rdb)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	if err := bot.Start(); err != nil {
		log.Fatalf("Failed to start bot: %v", err)
	}

	log.Println("Slumbank bot is running. Press CTRL-C to exit.")

	// Wait for interrupt
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	bot.Stop()
	log.Println("Slumbank bot stopped gracefully")
}
