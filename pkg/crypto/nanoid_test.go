package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNanoID(t *testing.T) {
	tests := []struct {
		name         string
		alphabet     string
		wantErr      error
		wantAlphabet string
	}{
		{name: "empty uses default", alphabet: "", wantAlphabet: DefaultAlphabet},
		{name: "custom", alphabet: "ABCDEFGH", wantAlphabet: "ABCDEFGH"},
		{name: "max size", alphabet: strings.Repeat("a", 255), wantAlphabet: strings.Repeat("a", 255)},
		{name: "too long", alphabet: strings.Repeat("a", 256), wantErr: ErrAlphabetTooLong},
		{name: "too short", alphabet: "ABC", wantErr: ErrAlphabetTooShort},
		{name: "non ascii", alphabet: "ABCDEFGé", wantErr: ErrAlphabetNotASCII},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			gen, err := NewNanoID(test.alphabet)

			if test.wantErr != nil {
				assert.ErrorIs(t, err, test.wantErr)
				assert.Nil(t, gen)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.wantAlphabet, gen.alphabet)
		})
	}
}

func TestMaskFor(t *testing.T) {
	tests := []struct {
		alphabetLen int
		want        byte
	}{
		{8, 7},
		{9, 15},
		{16, 15},
		{17, 31},
		{64, 63},
		{65, 127},
		{128, 127},
		{200, 255},
		{255, 255},
	}

	for _, test := range tests {
		got := maskFor(test.alphabetLen)

		assert.Equal(t, test.want, got, "alphabet length %d", test.alphabetLen)
		assert.Zero(t, (got+1)&got, "mask %d is not 2^n-1", got)
	}
}

func TestNanoIDGenerator_Generate_Length(t *testing.T) {
	gen := DefaultNanoID()

	for _, size := range []int{-1, 0, 1, 12, DefaultIDSize, 64} {
		id, err := gen.Generate(size)
		require.NoError(t, err)

		want := size
		if size <= 0 {
			want = DefaultIDSize
		}
		assert.Len(t, id, want)
	}
}

func TestNanoIDGenerator_Generate_UsesAlphabet(t *testing.T) {
	for _, alphabet := range []string{DefaultAlphabet, "ABCD1234", "0123456789", strings.Repeat("xyz", 60)} {
		gen, err := NewNanoID(alphabet)
		require.NoError(t, err)

		id, err := gen.Generate(200)
		require.NoError(t, err)

		for _, r := range id {
			assert.Contains(t, alphabet, string(r))
		}
	}
}

func TestNanoIDGenerator_Generate_Unique(t *testing.T) {
	gen := DefaultNanoID()
	seen := make(map[string]struct{}, 1000)

	for i := 0; i < 1000; i++ {
		id, err := gen.Generate(0)
		require.NoError(t, err)
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %q", id)
		seen[id] = struct{}{}
	}
}
