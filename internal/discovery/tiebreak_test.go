package discovery

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRandUint32StaysBelowMax(t *testing.T) {
	for i := 0; i < 200; i++ {
		v, err := randUint32(100)
		require.NoError(t, err)
		require.Less(t, v, uint32(100))
	}
}

func TestRandUint32ZeroMaxReturnsZero(t *testing.T) {
	v, err := randUint32(0)
	require.NoError(t, err)
	require.Zero(t, v)
}

func TestRandomSuffixIsFourHexDigits(t *testing.T) {
	s, err := randomSuffix()
	require.NoError(t, err)
	require.Len(t, s, 4)
	for _, r := range s {
		require.True(t, (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f'))
	}
}
