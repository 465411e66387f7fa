// Package codes produces the human-readable identifiers carried by property
// (P-NNNNN) and lead (L-NNNNN) records. Codes are collision-checked against
// the target store before use; a unique index on the code column backs the
// check under concurrent creation.
package codes

import (
	"errors"
	"fmt"
	"math/rand"
)

const (
	PropertyPrefix = "P"
	LeadPrefix     = "L"

	maxAttempts = 5
)

// ErrExhausted is returned when five consecutive draws collide. The caller
// must not persist a record without a confirmed-unique code.
var ErrExhausted = errors.New("code generation exhausted after 5 attempts")

// Checker answers whether a code is already taken in the target store.
type Checker interface {
	CodeExists(code string) (bool, error)
}

type Generator struct {
	// draw returns a random 5-digit number; injectable for tests.
	draw func() int
}

func NewGenerator() *Generator {
	return &Generator{
		draw: func() int { return 10000 + rand.Intn(90000) },
	}
}

// NewGeneratorWithDraw builds a generator with a custom draw function.
func NewGeneratorWithDraw(draw func() int) *Generator {
	return &Generator{draw: draw}
}

// Generate returns a unique code of the form <prefix>-NNNNN.
func (g *Generator) Generate(prefix string, checker Checker) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		code := fmt.Sprintf("%s-%05d", prefix, g.draw())

		exists, err := checker.CodeExists(code)
		if err != nil {
			return "", fmt.Errorf("failed to check code %s: %w", code, err)
		}
		if !exists {
			return code, nil
		}
	}

	return "", ErrExhausted
}
