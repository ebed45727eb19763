package channels

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/lowkeylabs/guildmem/pkg/bus"
	"github.com/lowkeylabs/guildmem/pkg/config"
	"github.com/lowkeylabs/guildmem/pkg/logger"
)

type Manager struct {
	channels map[string]Channel
	bus      *bus.EventBus
	config   *config.Config
	mu       sync.RWMutex
}

func NewManager(cfg *config.Config, eventBus *bus.EventBus) (*Manager, error) {
	m := &Manager{
		channels: make(map[string]Channel),
		bus:      eventBus,
		config:   cfg,
	}

	if err := m.initChannels(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) initChannels() error {
	logger.InfoC("channels", "Initializing channel manager")

	if strings.TrimSpace(m.config.Channels.Discord.Token) == "" {
		return fmt.Errorf("channels.discord.token is required")
	}

	discord, err := NewDiscordChannel(m.config.Channels.Discord, m.bus)
	if err != nil {
		return fmt.Errorf("initialize Discord channel: %w", err)
	}
	m.channels["discord"] = discord
	logger.InfoC("channels", "Discord channel initialized")
	return nil
}

func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, ch := range m.channels {
		if err := ch.Start(ctx); err != nil {
			return fmt.Errorf("start channel %s: %w", name, err)
		}
	}
	return nil
}

func (m *Manager) StopAll(ctx context.Context) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, ch := range m.channels {
		if err := ch.Stop(ctx); err != nil {
			logger.ErrorCF("channels", "Failed to stop channel", map[string]any{
				"channel": name,
				"error":   err.Error(),
			})
		}
	}
}
