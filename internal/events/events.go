package events

//go:generate mockgen -source=events.go -destination=mock_events.go -package=events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultChannel is the Redis channel auction events are published on
const DefaultChannel = "auction_events"

const (
	TypeBidPlaced      = "bid_placed"
	TypeAuctionDeleted = "auction_deleted"
)

// Event is the JSON payload published for every auction state change
type Event struct {
	Type      string    `json:"type"`
	AuctionID string    `json:"auction_id"`
	UserID    string    `json:"user_id"`
	Amount    float64   `json:"amount,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher fans auction events out to interested consumers
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// RedisPublisher publishes events on a Redis pub/sub channel
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

// Publish encodes the event as JSON and sends it on the configured channel
func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := Encode(event)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("events: publishing %s for auction %s: %w", event.Type, event.AuctionID, err)
	}
	return nil
}

// Encode returns the wire form of an event
func Encode(event Event) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("events: encoding %s: %w", event.Type, err)
	}
	return payload, nil
}

// NopPublisher drops every event. Used when Redis is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
