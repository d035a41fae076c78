package redis

import "strings"

const keyNamespace = "vt"

// Key families. Every key is "vt:<family>:<parts...>".
const (
	familyIdempotency = "idempotency"
	familyRateLimit   = "rate_limit"
	familyCart        = "cart"
	familyLock        = "lock"
)

func (c *Client) IdempotencyKey(scope, id string) string {
	return buildKey(familyIdempotency, scope, id)
}

func (c *Client) RateLimitKey(scope string) string {
	return buildKey(familyRateLimit, scope)
}

// CartKey names the hash holding a guest session's cart lines.
func (c *Client) CartKey(sessionID string) string {
	return buildKey(familyCart, sessionID)
}

func (c *Client) LockKey(name string) string {
	return buildKey(familyLock, name)
}

// buildKey drops blank parts so an empty scope never yields "a::b".
func buildKey(parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}
