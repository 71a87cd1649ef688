package fulfillment

import (
	"fmt"
	"math/rand/v2"
	"regexp"
)

const (
	tokenMin = 1000
	tokenMax = 9999
)

// randomToken draws a 4-digit pickup token with a leading marker, e.g.
// "#4217". Collision handling against the active set lives in the queue
// index, which owns the set of claimed tokens.
func randomToken() string {
	return fmt.Sprintf("#%d", tokenMin+rand.IntN(tokenMax-tokenMin+1))
}

var tokenPattern = regexp.MustCompile(`(?i)(?:#|token\s?|order\s?)?(\d{4})`)

// NormalizeToken extracts a pickup token from free-form input. Support
// lookups accept "1234", "#1234", "Token 1234" and "order 1234" alike.
func NormalizeToken(s string) (string, bool) {
	m := tokenPattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return "#" + m[1], true
}
