// Package channel normalizes Telegram channel usernames so that every layer
// partitions data by the same key.
package channel

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidName is returned when a channel name is empty or contains
// characters Telegram does not allow in public usernames.
var ErrInvalidName = errors.New("invalid channel name")

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,64}$`)

// Normalizer turns user supplied channel names into storage keys.
type Normalizer struct {
	// KeepCase disables lower-casing for deployments whose stored rows
	// were written with the original capitalization.
	KeepCase bool
}

// Normalize trims the name and strips leading '@' and t.me prefixes.
// The result is lower-cased unless KeepCase is set. It does not validate.
func (n Normalizer) Normalize(name string) string {
	name = strings.TrimSpace(name)
	for _, prefix := range []string{"https://t.me/", "http://t.me/", "t.me/"} {
		if strings.HasPrefix(strings.ToLower(name), prefix) {
			name = name[len(prefix):]
			break
		}
	}
	name = strings.TrimLeft(name, "@")
	name = strings.TrimSpace(name)
	if !n.KeepCase {
		name = strings.ToLower(name)
	}
	return name
}

// Parse normalizes and validates name.
func (n Normalizer) Parse(name string) (string, error) {
	normalized := n.Normalize(name)
	if !Valid(normalized) {
		return "", ErrInvalidName
	}
	return normalized, nil
}

// Valid reports whether name is a well-formed normalized channel name.
func Valid(name string) bool {
	return namePattern.MatchString(name)
}

// Permalink builds the public link of a channel message.
func Permalink(channel string, messageID int64) string {
	return "https://t.me/" + channel + "/" + strconv.FormatInt(messageID, 10)
}
