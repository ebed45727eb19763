package channels

import (
	"context"
	"strings"
	"sync"

	"github.com/lowkeylabs/guildmem/pkg/bus"
)

type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IsRunning() bool
	IsAllowed(senderID string) bool
}

type BaseChannel struct {
	bus       *bus.EventBus
	name      string
	allowList []string
	running   bool
	mu        sync.RWMutex
}

func NewBaseChannel(name string, eventBus *bus.EventBus, allowList []string) *BaseChannel {
	return &BaseChannel{
		bus:       eventBus,
		name:      name,
		allowList: allowList,
	}
}

func (c *BaseChannel) Name() string {
	return c.name
}

func (c *BaseChannel) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

func (c *BaseChannel) setRunning(running bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = running
}

// IsAllowed matches senderID against the allowlist. An empty allowlist
// admits everyone. Compound ids like "123456|username" match on either
// part, so allow_from can hold ids or usernames.
func (c *BaseChannel) IsAllowed(senderID string) bool {
	if len(c.allowList) == 0 {
		return true
	}

	idPart := senderID
	userPart := ""
	if idx := strings.Index(senderID, "|"); idx > 0 {
		idPart = senderID[:idx]
		userPart = senderID[idx+1:]
	}

	for _, allowed := range c.allowList {
		candidate := strings.TrimSpace(strings.TrimPrefix(allowed, "@"))
		if candidate == "" {
			continue
		}
		if candidate == idPart || (userPart != "" && strings.EqualFold(candidate, userPart)) {
			return true
		}
	}
	return false
}

func (c *BaseChannel) publish(ev bus.Event) {
	c.bus.Publish(ev)
}
