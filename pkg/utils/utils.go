package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// GenerateID returns a random 32-char hex identifier.
func GenerateID() string {
	bytes := make([]byte, 16)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// GenerateClientID returns an id for a websocket client connection.
func GenerateClientID() string {
	return fmt.Sprintf("live_%s_%d", GenerateID()[:8], time.Now().Unix())
}

// FormatTime renders a timestamp the way the dashboard displays it.
func FormatTime(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}
