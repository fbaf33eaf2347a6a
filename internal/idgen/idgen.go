// Package idgen generates short event identifiers backed by nanoid.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// EventPrefix marks gesture event IDs.
const EventPrefix = "ev-"

// alphabet is lowercase alphanumerics only.
const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// size is the length of the random part.
const size = 10

// New returns prefix followed by a random suffix.
func New(prefix string) (string, error) {
	id, err := nanoid.Generate(alphabet, size)
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return prefix + id, nil
}

// Event returns a new gesture event ID.
func Event() (string, error) {
	return New(EventPrefix)
}
