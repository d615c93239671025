package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBitString(t *testing.T) {
	require.Equal(t, "", BitString(nil))
	require.Equal(t, "1010", BitString([]bool{true, false, true, false}))
	require.Equal(t, "0001", BitString([]bool{false, false, false, true}))
}
