package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode_LengthAndCharset(t *testing.T) {
	code, err := GenerateCode(8)

	require.NoError(t, err)
	assert.Len(t, code, 16)
	assert.Equal(t, strings.ToUpper(code), code)
}

func TestGeneratePNR_Format(t *testing.T) {
	pnr, err := GeneratePNR()

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(pnr, "PNR"))
	assert.Len(t, pnr, 13)
}

func TestGeneratePNR_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		pnr, err := GeneratePNR()
		require.NoError(t, err)
		assert.False(t, seen[pnr])
		seen[pnr] = true
	}
}
