package crypto

import (
	"crypto/rand"
	"errors"
	"math"
)

const (
	DefaultAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"
	// 22 * 6 = 132 bits, more than a uuid
	DefaultIDSize = 22

	maxAlphabetSize = 255
	minAlphabetSize = 8
)

var (
	ErrAlphabetTooLong  = errors.New("alphabet must contain no more than 255 characters")
	ErrAlphabetTooShort = errors.New("alphabet must contain at least 8 characters")
	ErrAlphabetNotASCII = errors.New("alphabet must contain only ASCII characters")
)

// NanoIDGenerator produces URL-safe random ids. Session ids use the default alphabet.
type NanoIDGenerator struct {
	alphabet string
	mask     byte
}

// NewNanoID validates alphabet; an empty alphabet selects DefaultAlphabet.
func NewNanoID(alphabet string) (*NanoIDGenerator, error) {
	if alphabet == "" {
		alphabet = DefaultAlphabet
	}
	// Generate indexes by byte
	for i := 0; i < len(alphabet); i++ {
		if alphabet[i] > 127 {
			return nil, ErrAlphabetNotASCII
		}
	}
	if len(alphabet) > maxAlphabetSize {
		return nil, ErrAlphabetTooLong
	}
	if len(alphabet) < minAlphabetSize {
		return nil, ErrAlphabetTooShort
	}

	return &NanoIDGenerator{alphabet: alphabet, mask: maskFor(len(alphabet))}, nil
}

// DefaultNanoID returns a generator over DefaultAlphabet.
func DefaultNanoID() *NanoIDGenerator {
	return &NanoIDGenerator{alphabet: DefaultAlphabet, mask: maskFor(len(DefaultAlphabet))}
}

// maskFor returns the smallest 2^n-1 covering every alphabet index.
func maskFor(alphabetLen int) byte {
	for bits := 1; bits < 8; bits++ {
		if m := (1 << bits) - 1; m >= alphabetLen-1 {
			return byte(m)
		}
	}
	return 0xFF
}

// Generate returns an id of size characters; size <= 0 means DefaultIDSize.
func (n *NanoIDGenerator) Generate(size int) (string, error) {
	if size <= 0 {
		size = DefaultIDSize
	}

	alphabetLen := len(n.alphabet)
	step := int(math.Ceil(1.6 * float64(int(n.mask)*size) / float64(alphabetLen)))

	id := make([]byte, size)
	buf := make([]byte, step)

	for pos := 0; pos < size; {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for i := 0; i < step && pos < size; i++ {
			// rejection sampling keeps the distribution uniform
			if idx := int(buf[i] & n.mask); idx < alphabetLen {
				id[pos] = n.alphabet[idx]
				pos++
			}
		}
	}

	return string(id), nil
}
