package channels

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/lowkeylabs/guildmem/pkg/bus"
	"github.com/lowkeylabs/guildmem/pkg/config"
	"github.com/lowkeylabs/guildmem/pkg/logger"
)

// DiscordChannel is the boundary shim between the chat platform and the
// memory pipeline. It listens, tags events with a caller-side importance
// score, and publishes them; it never replies or moderates.
type DiscordChannel struct {
	*BaseChannel
	session *discordgo.Session
	config  config.DiscordConfig
}

func NewDiscordChannel(cfg config.DiscordConfig, eventBus *bus.EventBus) (*DiscordChannel, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildBans |
		discordgo.IntentsMessageContent

	return &DiscordChannel{
		BaseChannel: NewBaseChannel("discord", eventBus, cfg.AllowFrom),
		session:     session,
		config:      cfg,
	}, nil
}

func (c *DiscordChannel) Start(ctx context.Context) error {
	logger.InfoC("discord", "Starting Discord listener")

	c.session.AddHandler(c.handleMessage)
	c.session.AddHandler(c.handleBanAdd)

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	c.setRunning(true)

	botUser, err := c.session.User("@me")
	if err != nil {
		return fmt.Errorf("failed to get bot user: %w", err)
	}
	logger.InfoCF("discord", "Discord listener connected", map[string]any{
		"username": botUser.Username,
		"user_id":  botUser.ID,
	})
	return nil
}

func (c *DiscordChannel) Stop(ctx context.Context) error {
	logger.InfoC("discord", "Stopping Discord listener")
	c.setRunning(false)

	if err := c.session.Close(); err != nil {
		return fmt.Errorf("failed to close discord session: %w", err)
	}
	return nil
}

func (c *DiscordChannel) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Author == nil || m.Author.Bot {
		return
	}
	if m.Author.ID == s.State.User.ID {
		return
	}
	if c.config.GuildsOnly && m.GuildID == "" {
		return
	}
	if !c.IsAllowed(m.Author.ID) {
		logger.DebugCF("discord", "Message rejected by allowlist", map[string]any{
			"user_id": m.Author.ID,
		})
		return
	}
	if strings.TrimSpace(m.Content) == "" {
		return
	}

	c.publish(bus.Event{
		Kind:       bus.KindMessage,
		GuildID:    m.GuildID,
		ChannelID:  m.ChannelID,
		SenderID:   m.Author.ID,
		SenderName: m.Author.Username,
		Content:    m.Content,
		Importance: scoreMessageImportance(m),
		Timestamp:  time.Now(),
	})
}

func (c *DiscordChannel) handleBanAdd(s *discordgo.Session, e *discordgo.GuildBanAdd) {
	if e == nil || e.User == nil {
		return
	}

	c.publish(bus.Event{
		Kind:       bus.KindAction,
		GuildID:    e.GuildID,
		SenderID:   e.User.ID,
		SenderName: e.User.Username,
		Content:    fmt.Sprintf("banned %s from the guild", e.User.Username),
		Importance: 0.9,
		Sentiment:  "negative",
		Timestamp:  time.Now(),
	})
}

// scoreMessageImportance is a crude stand-in for the upstream classifier.
// Mentions and substantial messages rate higher than drive-by chatter.
func scoreMessageImportance(m *discordgo.MessageCreate) float64 {
	score := 0.3
	if len(m.Mentions) > 0 || m.MentionEveryone {
		score += 0.2
	}
	if len([]rune(m.Content)) > 120 {
		score += 0.1
	}
	if m.MessageReference != nil {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}
