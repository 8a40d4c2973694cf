// Package invalidation listens on a Redis pub/sub channel for notices from
// the market sync job and drops the affected indexes.
//
// Accepted payloads:
//
//	{"sport":"nfl"}    invalidate one sport
//	{"sport":"*"}      invalidate every sport
//	{"aliases":true}   reload the alias table (invalidates everything)
//	nfl                bare sport key, same as {"sport":"nfl"}
package invalidation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/charleschow/market-matcher/internal/core/teams"
	"github.com/charleschow/market-matcher/internal/events"
	"github.com/charleschow/market-matcher/internal/telemetry"
)

const source = "redis"

// Cache is satisfied by *indexcache.Manager.
type Cache interface {
	Invalidate(sport events.Sport, source string)
	InvalidateAll(source string)
}

// AliasReloader is satisfied by *teams.Reloader.
type AliasReloader interface {
	Reload() (*teams.Table, error)
}

// Message is one decoded notice. All is set for the "*" wildcard.
type Message struct {
	Sport   events.Sport
	All     bool
	Aliases bool
}

type wireMessage struct {
	Sport   string `json:"sport"`
	Aliases bool   `json:"aliases"`
}

func Parse(payload string) (Message, error) {
	payload = strings.TrimSpace(payload)
	var w wireMessage
	if strings.HasPrefix(payload, "{") {
		if err := json.Unmarshal([]byte(payload), &w); err != nil {
			return Message{}, fmt.Errorf("invalidation: %w", err)
		}
	} else {
		w.Sport = payload
	}

	msg := Message{Aliases: w.Aliases}
	switch strings.TrimSpace(w.Sport) {
	case "":
		if !msg.Aliases {
			return Message{}, errors.New("invalidation: message names no sport")
		}
	case "*":
		msg.All = true
	default:
		sp, err := events.ParseSport(w.Sport)
		if err != nil {
			return Message{}, fmt.Errorf("invalidation: %w", err)
		}
		msg.Sport = sp
	}
	return msg, nil
}

type Subscriber struct {
	client  *redis.Client
	channel string
	cache   Cache
	aliases AliasReloader
}

// New parses a redis:// URL. The connection is not opened until Run.
func New(url, channel string, cache Cache, aliases AliasReloader) (*Subscriber, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalidation: parse redis url: %w", err)
	}
	return &Subscriber{
		client:  redis.NewClient(opts),
		channel: channel,
		cache:   cache,
		aliases: aliases,
	}, nil
}

// Run subscribes and applies messages until ctx is cancelled. go-redis
// reconnects the subscription on its own after network errors.
func (s *Subscriber) Run(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("invalidation: redis ping: %w", err)
	}

	ps := s.client.Subscribe(ctx, s.channel)
	defer ps.Close()
	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("invalidation: subscribe %s: %w", s.channel, err)
	}
	telemetry.Infof("invalidation: subscribed to %s", s.channel)

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return errors.New("invalidation: subscription closed")
			}
			msg, err := Parse(m.Payload)
			if err != nil {
				telemetry.Warnf("%v (payload %q)", err, m.Payload)
				continue
			}
			if err := s.Apply(msg); err != nil {
				telemetry.Warnf("invalidation: %v", err)
			}
		}
	}
}

// Apply acts on one message.
func (s *Subscriber) Apply(msg Message) error {
	if msg.Aliases {
		if s.aliases == nil {
			return errors.New("alias reload requested but no reloader configured")
		}
		// Reload already invalidates every sport.
		_, err := s.aliases.Reload()
		return err
	}
	if msg.All {
		s.cache.InvalidateAll(source)
		return nil
	}
	s.cache.Invalidate(msg.Sport, source)
	return nil
}

func (s *Subscriber) Close() error {
	return s.client.Close()
}
