package session

import (
	"fmt"
	"math/rand/v2"
	"net/url"
)

// randomPIN generates a candidate 4-digit PIN. Uniqueness is not the
// generator's job; Create settles collisions against the record store.
func randomPIN() string {
	return fmt.Sprintf("%0*d", pinLength, rand.IntN(10000))
}

// ValidPIN reports whether s is a well-formed PIN: exactly four digits.
func ValidPIN(s string) bool {
	if len(s) != pinLength {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// PINFromURL extracts the deep-link PIN from an entry URL's "pin" query
// parameter. A missing or malformed parameter yields the empty string.
func PINFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	pin := u.Query().Get("pin")
	if !ValidPIN(pin) {
		return ""
	}
	return pin
}
