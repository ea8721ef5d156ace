// Package runaicmd builds the shell commands speedwatch runs on the cluster
// login node. All methods are pure functions; the zero value is ready to use.
package runaicmd

import (
	"strings"
)

// Builder constructs safely quoted runai command lines.
type Builder struct {
	// Binary overrides the runai executable name. Empty means "runai".
	Binary string
}

// List returns the command listing every job visible to the user.
func (b Builder) List() string {
	return b.bin() + " list"
}

// DescribeJob returns the command printing a job's description.
func (b Builder) DescribeJob(job string) string {
	return strings.Join([]string{b.bin(), "describe", "job", Quote(job)}, " ")
}

// Logs returns the command printing a job's full log.
func (b Builder) Logs(job string) string {
	return strings.Join([]string{b.bin(), "logs", Quote(job)}, " ")
}

func (b Builder) bin() string {
	if b.Binary == "" {
		return "runai"
	}
	return Quote(b.Binary)
}

// Quote returns s as a single POSIX shell word.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	if isSafe(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func isSafe(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune("-_./:=@%+,", r):
		default:
			return false
		}
	}
	return true
}
