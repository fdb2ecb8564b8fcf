package availability

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DatesCache caches ListAvailableDates responses in redis. The date-level
// computation walks the full horizon per request, so a short TTL saves the
// hottest lookups; bookings and cancellations invalidate the doctor's keys.
type DatesCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDatesCache creates a cache with the given TTL.
func NewDatesCache(client *redis.Client, ttl time.Duration) *DatesCache {
	return &DatesCache{client: client, ttl: ttl}
}

func datesKey(doctorID, location string) string {
	return fmt.Sprintf("availability:dates:%s:%s", doctorID, location)
}

// Get returns the cached dates and whether the key was present.
func (c *DatesCache) Get(ctx context.Context, doctorID, location string) ([]string, bool, error) {
	raw, err := c.client.Get(ctx, datesKey(doctorID, location)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var dates []string
	if err := json.Unmarshal([]byte(raw), &dates); err != nil {
		return nil, false, err
	}
	return dates, true, nil
}

// Set stores the dates under the doctor/location key.
func (c *DatesCache) Set(ctx context.Context, doctorID, location string, dates []string) error {
	raw, err := json.Marshal(dates)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, datesKey(doctorID, location), raw, c.ttl).Err()
}

// InvalidateDates drops every cached location for the doctor.
func (c *DatesCache) InvalidateDates(ctx context.Context, doctorID string) {
	pattern := fmt.Sprintf("availability:dates:%s:*", doctorID)
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		c.client.Del(ctx, iter.Val())
	}
}
