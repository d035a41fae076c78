package checkout

import (
	"crypto/rand"
	"fmt"
	"io"
	"time"
)

// orderIDAlphabet drops 0/O and 1/I so ids survive being read over chat.
const orderIDAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

const orderIDSuffixLen = 6

// NewOrderID returns a human-readable id such as VT-260310-K7Q2MZ.
func NewOrderID(now time.Time, random io.Reader) (string, error) {
	if random == nil {
		random = rand.Reader
	}
	buf := make([]byte, orderIDSuffixLen)
	if _, err := io.ReadFull(random, buf); err != nil {
		return "", fmt.Errorf("read order id entropy: %w", err)
	}
	for i, b := range buf {
		buf[i] = orderIDAlphabet[int(b)%len(orderIDAlphabet)]
	}
	return fmt.Sprintf("VT-%s-%s", now.UTC().Format("060102"), buf), nil
}
