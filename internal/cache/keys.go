package cache

import (
	"fmt"
	"strings"
)

const snapshotPrefix = "speedwatch:snapshot:"

func SnapshotKey(user string) string {
	return snapshotPrefix + user
}

// SnapshotKeyPattern matches every user's snapshot key.
func SnapshotKeyPattern() string {
	return snapshotPrefix + "*"
}

// UserFromSnapshotKey is the inverse of SnapshotKey.
func UserFromSnapshotKey(key string) (string, bool) {
	if !strings.HasPrefix(key, snapshotPrefix) {
		return "", false
	}
	return strings.TrimPrefix(key, snapshotPrefix), true
}

func RateLimitKey(caller string) string {
	return fmt.Sprintf("speedwatch:ratelimit:%s", caller)
}
