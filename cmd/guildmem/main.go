package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/lowkeylabs/guildmem/pkg/bus"
	"github.com/lowkeylabs/guildmem/pkg/channels"
	"github.com/lowkeylabs/guildmem/pkg/config"
	"github.com/lowkeylabs/guildmem/pkg/logger"
	"github.com/lowkeylabs/guildmem/pkg/maintenance"
	"github.com/lowkeylabs/guildmem/pkg/memory"
	"github.com/lowkeylabs/guildmem/pkg/storage"
)

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string
)

const appName = "guildmem"

func formatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

func printVersion() {
	fmt.Printf("%s %s\n", appName, formatVersion())
	if buildTime != "" {
		fmt.Printf("  Build: %s\n", buildTime)
	}
	goVer := goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	fmt.Printf("  Go: %s\n", goVer)
}

func main() {
	if err := executeCLI(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func getConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".guildmem", "config.json")
}

func loadConfig() (*config.Config, error) {
	return config.LoadConfig(getConfigPath())
}

func onboard() error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config already exists at %s\n", configPath)
		fmt.Print("Overwrite? (y/n): ")
		reader := bufio.NewReader(os.Stdin)
		response, readErr := reader.ReadString('\n')
		if readErr != nil {
			return fmt.Errorf("read input: %w", readErr)
		}
		response = strings.ToLower(strings.TrimSpace(response))
		if response != "y" && response != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	cfg := config.DefaultConfig()
	if err := config.SaveConfig(configPath, cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	if err := os.MkdirAll(cfg.StoragePath(), 0755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}

	fmt.Printf("%s is ready!\n", appName)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Add your Discord bot token to", configPath)
	fmt.Println("     (channels.discord.token)")
	fmt.Println("  2. Run the listener: guildmem run")
	fmt.Println("  3. Check readiness: guildmem status")
	return nil
}

func memoryServiceConfig(mc config.MemoryConfig) memory.Config {
	return memory.Config{
		WorkingCapacity:     mc.WorkingCapacity,
		WorkingTTL:          time.Duration(mc.WorkingTTLSeconds) * time.Second,
		EpisodicCapacity:    mc.EpisodicCapacity,
		EpisodicBaseTTL:     time.Duration(mc.EpisodicBaseTTLHours) * time.Hour,
		EpisodicThreshold:   mc.EpisodicThreshold,
		SimilarityThreshold: mc.SimilarityThreshold,
		ReinforcementBoost:  mc.ReinforcementBoost,
		SummaryMaxChars:     mc.SummaryMaxChars,
		CleanupInterval:     time.Duration(mc.CleanupSeconds) * time.Second,
		RecallCacheTTL:      time.Duration(mc.RecallCacheTTLMS) * time.Millisecond,
		DisableRecallCache:  !mc.RecallCacheEnabled,
	}
}

func observationFrom(ev bus.Event) memory.Observation {
	obsType := "message"
	if ev.Kind == bus.KindAction {
		obsType = "action"
	}
	return memory.Observation{
		ConversationID: memory.ConversationID(ev.GuildID, ev.ChannelID),
		GuildID:        ev.GuildID,
		UserID:         ev.SenderID,
		UserName:       ev.SenderName,
		Content:        ev.Content,
		Importance:     ev.Importance,
		Type:           obsType,
		Sentiment:      memory.Sentiment(ev.Sentiment),
	}
}

func runGateway(debug bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	if debug {
		logger.SetLevel(logger.LevelDebug)
		fmt.Println("Debug mode enabled")
	}
	if strings.TrimSpace(cfg.Channels.Discord.Token) == "" {
		return fmt.Errorf("channels.discord.token is required in %s or GUILDMEM_CHANNELS_DISCORD_TOKEN", getConfigPath())
	}

	store, err := storage.Open(cfg.Storage.Backend, cfg.StoragePath())
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	svc, err := memory.NewService(memoryServiceConfig(cfg.Memory), store)
	if err != nil {
		return fmt.Errorf("initialize memory service: %w", err)
	}

	eventBus := bus.NewEventBus()
	manager, err := channels.NewManager(cfg, eventBus)
	if err != nil {
		svc.Stop()
		return fmt.Errorf("create channel manager: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := manager.StartAll(ctx); err != nil {
		svc.Stop()
		return fmt.Errorf("start channels: %w", err)
	}

	var sweeper *maintenance.Sweeper
	if cfg.Maintenance.Enabled {
		sweeper = maintenance.NewSweeper(cfg.Maintenance, store, svc)
		if err := sweeper.Start(); err != nil {
			manager.StopAll(ctx)
			svc.Stop()
			return fmt.Errorf("start maintenance sweeper: %w", err)
		}
	}

	ingestDone := make(chan struct{})
	go func() {
		defer close(ingestDone)
		for {
			ev, ok := eventBus.Next(ctx)
			if !ok {
				return
			}
			svc.Store(observationFrom(ev))
		}
	}()

	fmt.Printf("%s listening (Ctrl+C to stop)\n", appName)
	<-ctx.Done()

	fmt.Println("\nShutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	manager.StopAll(shutdownCtx)
	eventBus.Close()
	<-ingestDone
	if sweeper != nil {
		sweeper.Stop()
	}
	svc.Stop()

	if dropped := eventBus.Dropped(); dropped > 0 {
		logger.WarnCF("main", "Events dropped during run", map[string]any{
			"dropped": dropped,
		})
	}
	fmt.Printf("%s stopped\n", appName)
	return nil
}

func statusCmd() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	configPath := getConfigPath()

	fmt.Printf("%s Status\n", appName)
	fmt.Printf("Version: %s\n", formatVersion())
	fmt.Println()

	mark := func(ok bool) string {
		if ok {
			return "✓"
		}
		return "✗"
	}

	_, cfgErr := os.Stat(configPath)
	fmt.Println("Config:", configPath, mark(cfgErr == nil))

	storagePath := cfg.StoragePath()
	_, stErr := os.Stat(storagePath)
	fmt.Println("Storage:", storagePath, mark(stErr == nil))
	fmt.Println("Backend:", cfg.Storage.Backend)

	discordReady := strings.TrimSpace(cfg.Channels.Discord.Token) != ""
	fmt.Println("Discord token:", mark(discordReady))
	fmt.Println("Listener ready:", mark(discordReady))
	return nil
}

// statsCmd builds the memory service over the durable store so the
// semantic snapshot loads, then prints a per-tier census.
func statsCmd() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := storage.Open(cfg.Storage.Backend, cfg.StoragePath())
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	svc, err := memory.NewService(memoryServiceConfig(cfg.Memory), store)
	if err != nil {
		return fmt.Errorf("initialize memory service: %w", err)
	}
	defer svc.Stop()

	stats := svc.Stats()
	fmt.Printf("%s Memory Stats\n", appName)
	fmt.Println()
	fmt.Println("Working tier:")
	fmt.Printf("  Conversations: %d\n", stats.Working.Conversations)
	fmt.Printf("  Entries: %d\n", stats.Working.TotalEntries)
	fmt.Println("Episodic tier:")
	fmt.Printf("  Guilds: %d\n", stats.Episodic.Guilds)
	fmt.Printf("  Episodes: %d\n", stats.Episodic.TotalEpisodes)
	fmt.Println("Semantic tier:")
	fmt.Printf("  Guilds: %d\n", stats.Semantic.Guilds)
	fmt.Printf("  Concepts: %d\n", stats.Semantic.TotalConcepts)
	return nil
}
