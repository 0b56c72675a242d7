package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateInviteCode_Shape(t *testing.T) {
	seen := make(map[byte]bool)
	for i := 0; i < 2000; i++ {
		code, err := GenerateInviteCode()
		require.NoError(t, err)
		require.Len(t, code, 8)
		require.True(t, IsInviteCodeShape(code), code)
		for j := 0; j < len(code); j++ {
			seen[code[j]] = true
		}
	}
	// 16000 draws over 36 symbols: every symbol should appear.
	require.Len(t, seen, 36)
}

func TestIsInviteCodeShape(t *testing.T) {
	require.True(t, IsInviteCodeShape("ABCD1234"))
	require.False(t, IsInviteCodeShape("abcd1234"))
	require.False(t, IsInviteCodeShape("ABCD123"))
	require.False(t, IsInviteCodeShape("ABCD-234"))
}
