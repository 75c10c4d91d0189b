package order

import (
	"math/rand/v2"
	"regexp"
)

var idPattern = regexp.MustCompile(`^[A-Z]{3}-[A-Z]{3}$`)

// ValidID reports whether id has the LLL-LLL form.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// IDGenerator returns a fresh candidate order id. Uniqueness is enforced by
// the repository, not the generator.
type IDGenerator func() string

const idLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// RandomID generates an id from two independent groups of three uppercase
// letters.
func RandomID() string {
	var b [7]byte
	for i := range b {
		if i == 3 {
			b[i] = '-'
			continue
		}
		b[i] = idLetters[rand.IntN(len(idLetters))]
	}
	return string(b[:])
}
