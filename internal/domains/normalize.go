package domains

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrInvalidDomain is returned when a value cannot be normalized into a
	// registrable domain name.
	ErrInvalidDomain = errors.New("invalid domain value")

	domainRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?(\.[a-z0-9]([a-z0-9-]*[a-z0-9])?)+$`)
)

// Normalize canonicalizes a user-supplied domain value: lowercase, scheme and
// path stripped, leading "@" and "www." removed. Two registrations of the
// same site always collide on the stored value.
func Normalize(value string) (string, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "", ErrInvalidDomain
	}

	if idx := strings.Index(value, "://"); idx != -1 {
		value = value[idx+3:]
	}
	value = strings.TrimPrefix(value, "@")
	value = strings.TrimPrefix(value, "www.")

	if idx := strings.IndexAny(value, "/?#"); idx != -1 {
		value = value[:idx]
	}
	if idx := strings.Index(value, ":"); idx != -1 {
		value = value[:idx]
	}
	value = strings.TrimSuffix(value, ".")

	if len(value) > 253 || !domainRegex.MatchString(value) {
		return "", ErrInvalidDomain
	}

	return value, nil
}
