package redis

import (
	"context"
	"time"
)

// Lua bodies run atomically on the server.
const (
	scriptCompareAndDelete = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) end return 0`
	scriptWindowIncr       = `local n = redis.call("INCR", KEYS[1]) if n == 1 then redis.call("PEXPIRE", KEYS[1], ARGV[1]) end return n`
)

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	cmd, err := c.conn()
	if err != nil {
		return "", err
	}
	return cmd.Get(ctx, key).Result()
}

// Set overwrites key in one command. ttl 0 keeps the key forever.
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	cmd, err := c.conn()
	if err != nil {
		return err
	}
	return cmd.Set(ctx, key, value, ttl).Err()
}

// SetNX reports whether key was created. ttl 0 keeps the key forever.
func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	cmd, err := c.conn()
	if err != nil {
		return false, err
	}
	return cmd.SetNX(ctx, key, value, ttl).Result()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	cmd, err := c.conn()
	if err != nil {
		return err
	}
	return cmd.Del(ctx, keys...).Err()
}

// DelIfValue deletes key only while it still holds value. Lock owners use it
// so an expired holder cannot release a lock someone else has taken since.
func (c *Client) DelIfValue(ctx context.Context, key, value string) (bool, error) {
	cmd, err := c.conn()
	if err != nil {
		return false, err
	}
	n, err := cmd.Eval(ctx, scriptCompareAndDelete, []string{key}, value).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// FixedWindowAllow counts one hit against scope. The window starts with the
// first hit and the counter expires with it.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	cmd, err := c.conn()
	if err != nil {
		return false, 0, err
	}
	count, err := cmd.Eval(ctx, scriptWindowIncr, []string{c.RateLimitKey(scope)}, window.Milliseconds()).Int64()
	if err != nil {
		return false, 0, err
	}
	return count <= limit, count, nil
}

func (c *Client) HSet(ctx context.Context, key, field string, value any) error {
	cmd, err := c.conn()
	if err != nil {
		return err
	}
	return cmd.HSet(ctx, key, field, value).Err()
}

// HGetAll returns an empty map for a missing key.
func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	cmd, err := c.conn()
	if err != nil {
		return nil, err
	}
	return cmd.HGetAll(ctx, key).Result()
}

func (c *Client) HDel(ctx context.Context, key string, fields ...string) error {
	cmd, err := c.conn()
	if err != nil {
		return err
	}
	return cmd.HDel(ctx, key, fields...).Err()
}

func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) error {
	cmd, err := c.conn()
	if err != nil {
		return err
	}
	return cmd.Expire(ctx, key, ttl).Err()
}
