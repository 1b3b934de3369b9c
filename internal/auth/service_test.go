package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	plain := "messi10"

	hash, err := HashPassword(plain)
	require.NoError(t, err)
	require.NotEqual(t, plain, hash)

	require.True(t, ComparePasswords(hash, plain))
	require.False(t, ComparePasswords(hash, "ronaldo7"))
}

func TestCapitalizeFullName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "john doe", expected: "John Doe"},
		{input: "  ali   veli ", expected: "Ali Veli"},
		{input: "élodie", expected: "Élodie"},
		{input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			require.Equal(t, tt.expected, CapitalizeFullName(tt.input))
		})
	}
}

func TestComparePasswordsMalformedHash(t *testing.T) {
	require.False(t, ComparePasswords("not-a-bcrypt-hash", "messi10"))
	require.False(t, ComparePasswords("", ""))
}

func TestHashPasswordTooLong(t *testing.T) {
	_, err := HashPassword(strings.Repeat("a", 73))
	require.Error(t, err)
}
