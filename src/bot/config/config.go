package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/slumworks/slumbank/src/bot/components/auction"
	"github.com/slumworks/slumbank/src/shared/data"
	"gorm.io/gorm"
)

type Config struct {
	Token         string
	GuildID       string
	AdminRoleID   string
	MasterKey     string
	MySQLDSN      string
	RedisURL      string
	SweepInterval time.Duration
	Auction       auction.Config
}

func Load(db *gorm.DB) Config {
	// Load settings from database
	if err := data.LoadSettings(db); err != nil {
		log.Printf("Failed to load settings: %v", err)
	}

	// Get values from database with env fallbacks
	discordToken := data.GetSetting("discord_token")
	if discordToken == "" {
		discordToken = os.Getenv("DISCORD_TOKEN")
	}

	guildID := data.GetSetting("guild_id")
	if guildID == "" {
		guildID = os.Getenv("GUILD_ID")
	}

	adminRoleID := data.GetSetting("admin_role_id")
	if adminRoleID == "" {
		adminRoleID = os.Getenv("ADMIN_ROLE_ID")
	}

	masterKey := data.GetSetting("master_key")
	if masterKey == "" {
		masterKey = os.Getenv("MASTER_KEY")
	}

	auctionCfg := auction.DefaultConfig()
	if v := settingSeconds("auction_base_seconds"); v > 0 {
		auctionCfg.BaseDuration = v
	}
	if v := settingSeconds("auction_window_seconds"); v > 0 {
		auctionCfg.ExtensionWindow = v
	}
	if v := settingSeconds("auction_extension_seconds"); v > 0 {
		auctionCfg.Extension = v
	}

	sweepInterval := settingSeconds("auction_sweep_seconds")
	if sweepInterval <= 0 {
		sweepInterval = 5 * time.Second
	}

	return Config{
		Token:         discordToken,
		GuildID:       guildID,
		AdminRoleID:   adminRoleID,
		MasterKey:     masterKey,
		MySQLDSN:      getenv("MYSQL_DSN", "slumbank:slumbank@tcp(127.0.0.1:3306)/slumbank"),
		RedisURL:      getenv("REDIS_URL", "redis://127.0.0.1:6379/0"),
		SweepInterval: sweepInterval,
		Auction:       auctionCfg,
	}
}

func settingSeconds(name string) time.Duration {
	v := data.GetSetting(name)
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Invalid value for setting %s: %v", name, err)
		return 0
	}
	return time.Duration(secs) * time.Second
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
