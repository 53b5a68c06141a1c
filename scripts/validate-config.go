package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-telegram/bot"
	"github.com/joho/godotenv"

	"github.com/irfndi/cyclescope-go/internal/config"
	"github.com/irfndi/cyclescope-go/internal/database"
	"github.com/irfndi/cyclescope-go/internal/marketdata"
)

// Preflight checker for a cyclescope deployment: loads the configuration the
// way the server does, then probes every configured collaborator. Local
// checks always run; network probes only run for collaborators the
// configuration actually enables.
func main() {
	fmt.Println("🔧 Validating cyclescope configuration...")

	// Load .env file
	if err := godotenv.Load(); err != nil {
		fmt.Printf("⚠️  Warning: Could not load .env file: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("❌ Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Configuration loaded (environment: %s, port: %d)\n", cfg.Environment, cfg.Server.Port)
	fmt.Printf("   Engine: window=%d bars, wavelengths %d-%d, bandwidth %.0f%%\n",
		cfg.Engine.WindowSize, cfg.Engine.MinWavelength, cfg.Engine.MaxWavelength, cfg.Engine.BandwidthPct*100)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	failures := 0
	if cfg.Database.Enabled {
		failures += checkDatabase(ctx, cfg)
	} else {
		failures += checkMarketData(ctx, cfg)
	}
	failures += checkRedis(cfg)
	failures += checkTelegram(ctx, cfg)
	checkSecurity(cfg)

	if failures > 0 {
		fmt.Printf("\n❌ %d check(s) failed\n", failures)
		os.Exit(1)
	}
	fmt.Println("\n🎉 All configuration checks passed!")
}

func checkMarketData(ctx context.Context, cfg *config.Config) int {
	provider, err := marketdata.NewProvider(cfg.MarketData)
	if err != nil {
		fmt.Printf("❌ Market data dir %q unusable: %v\n", cfg.MarketData.DataDir, err)
		return 1
	}
	symbols, err := provider.ListSymbols(ctx)
	if err != nil {
		fmt.Printf("❌ Failed to scan market data catalog: %v\n", err)
		return 1
	}
	if len(symbols) == 0 {
		fmt.Printf("⚠️  Market data dir %q holds no price files\n", cfg.MarketData.DataDir)
		return 0
	}
	fmt.Printf("✅ Market data catalog: %d symbol(s) in %s\n", len(symbols), cfg.MarketData.DataDir)

	if cfg.MarketData.DefaultSymbol != "" {
		found := false
		for _, s := range symbols {
			if s.Symbol == cfg.MarketData.DefaultSymbol {
				found = true
				break
			}
		}
		if !found {
			fmt.Printf("⚠️  Default symbol %s has no price file\n", cfg.MarketData.DefaultSymbol)
		}
	}
	return 0
}

func checkDatabase(ctx context.Context, cfg *config.Config) int {
	fmt.Println("🔍 Testing database connection...")
	db, err := database.NewPostgresConnection(&cfg.Database)
	if err != nil {
		fmt.Printf("❌ Database connection failed: %v\n", err)
		return 1
	}
	defer db.Close()

	if err := db.HealthCheck(ctx); err != nil {
		fmt.Printf("❌ Database ping failed: %v\n", err)
		return 1
	}
	fmt.Printf("✅ Database reachable at %s:%d\n", cfg.Database.Host, cfg.Database.Port)
	return 0
}

func checkRedis(cfg *config.Config) int {
	fmt.Println("🔍 Testing Redis connection...")
	conn, err := database.NewRedisConnection(cfg.Redis)
	if err != nil {
		fmt.Printf("❌ Redis connection failed: %v\n", err)
		return 1
	}
	defer conn.Close()

	fmt.Printf("✅ Redis reachable at %s\n", cfg.Redis.Addr())
	return 0
}

func checkTelegram(ctx context.Context, cfg *config.Config) int {
	if cfg.Telegram.BotToken == "" {
		fmt.Println("⚠️  TELEGRAM_BOT_TOKEN not configured; cycle alerts stay disabled")
		return 0
	}

	b, err := bot.New(cfg.Telegram.BotToken)
	if err != nil {
		fmt.Printf("❌ Failed to create Telegram bot: %v\n", err)
		return 1
	}

	fmt.Println("🔍 Testing bot API connection...")
	botInfo, err := b.GetMe(ctx)
	if err != nil {
		fmt.Printf("❌ Failed to get bot info: %v\n", err)
		return 1
	}
	fmt.Printf("✅ Telegram bot connected: @%s (ID %d)\n", botInfo.Username, botInfo.ID)

	if len(cfg.Alerts.ChatIDs) == 0 {
		fmt.Println("⚠️  No alert chat IDs configured; alerts will be computed but not delivered")
	}
	return 0
}

func checkSecurity(cfg *config.Config) {
	if cfg.Security.AdminKeyHash == "" {
		fmt.Println("⚠️  ADMIN_KEY_HASH not set; admin endpoints will reject every key")
	} else {
		fmt.Println("✅ Admin key hash configured")
	}
	if cfg.Security.JWTSecret == "" {
		fmt.Println("⚠️  JWT_SECRET not set; fine for development, required elsewhere")
	} else {
		fmt.Println("✅ JWT secret configured")
	}
}
