// Package channels resolves the Slack channel alerts are posted to.
package channels

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/slack-go/slack"
)

// DefaultName is the channel alerts go to unless configured otherwise
const DefaultName = "alerts"

const pageSize = 200

// ErrChannelNotFound is returned when the team has no channel with the configured name
var ErrChannelNotFound = errors.New("alerts channel not found")

// Channel is a Slack channel reference
type Channel struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// Lister lists a team's conversations
type Lister interface {
	GetConversationsContext(ctx context.Context, params *slack.GetConversationsParameters) ([]slack.Channel, string, error)
}

// Cache stores a team's channel list
type Cache interface {
	Load(ctx context.Context, teamID string) ([]Channel, bool, error)
	Store(ctx context.Context, teamID string, channels []Channel) error
}

// Resolver finds the alerts channel for a team
type Resolver struct {
	name  string
	cache Cache
}

// NewResolver creates a resolver for the channel called name
func NewResolver(name string, cache Cache) *Resolver {
	if name == "" {
		name = DefaultName
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Resolver{name: name, cache: cache}
}

// Name returns the channel name being resolved
func (r *Resolver) Name() string {
	return r.name
}

// Refresh fetches the team's channel list from Slack and caches it
func (r *Resolver) Refresh(ctx context.Context, teamID string, lister Lister) ([]Channel, error) {
	var result []Channel
	params := &slack.GetConversationsParameters{
		ExcludeArchived: true,
		Limit:           pageSize,
		Types:           []string{"public_channel"},
	}

	for {
		page, cursor, err := lister.GetConversationsContext(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("failed to list channels: %w", err)
		}
		for _, ch := range page {
			result = append(result, Channel{Name: ch.Name, ID: ch.ID})
		}
		if cursor == "" {
			break
		}
		params.Cursor = cursor
	}

	if err := r.cache.Store(ctx, teamID, result); err != nil {
		log.WithError(err).WithField("team_id", teamID).Warn("Failed to cache channel list")
	}

	log.WithFields(log.Fields{"team_id": teamID, "channels": len(result)}).Debug("Got channel list")
	return result, nil
}

// Resolve returns the alerts channel, consulting Slack once when the cache misses
func (r *Resolver) Resolve(ctx context.Context, teamID string, lister Lister) (Channel, error) {
	cached, ok, err := r.cache.Load(ctx, teamID)
	if err != nil {
		log.WithError(err).WithField("team_id", teamID).Warn("Failed to read channel cache")
	}
	if ok {
		if ch, found := find(cached, r.name); found {
			return ch, nil
		}
	}

	fresh, err := r.Refresh(ctx, teamID, lister)
	if err != nil {
		return Channel{}, err
	}
	if ch, found := find(fresh, r.name); found {
		return ch, nil
	}

	return Channel{}, fmt.Errorf("%w: #%s", ErrChannelNotFound, r.name)
}

func find(channels []Channel, name string) (Channel, bool) {
	for _, ch := range channels {
		if ch.Name == name {
			return ch, true
		}
	}
	return Channel{}, false
}

// MemoryCache keeps channel lists in process memory
type MemoryCache struct {
	mu    sync.RWMutex
	teams map[string][]Channel
}

// NewMemoryCache creates an empty in-memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{teams: make(map[string][]Channel)}
}

// Load returns the cached list for a team
func (c *MemoryCache) Load(_ context.Context, teamID string) ([]Channel, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	channels, ok := c.teams[teamID]
	return channels, ok, nil
}

// Store replaces the cached list for a team
func (c *MemoryCache) Store(_ context.Context, teamID string, channels []Channel) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teams[teamID] = channels
	return nil
}
