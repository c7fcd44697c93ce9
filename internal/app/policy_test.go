package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyByName(t *testing.T) {
	p, err := PolicyByName("")
	require.NoError(t, err)
	assert.Equal(t, DropFrame, p.OnBackPressure(nil))

	p, err = PolicyByName("drop")
	require.NoError(t, err)
	assert.IsType(t, DropPolicy{}, p)

	p, err = PolicyByName("kick")
	require.NoError(t, err)
	assert.Equal(t, KickMember, p.OnBackPressure(nil))

	_, err = PolicyByName("block")
	assert.ErrorContains(t, err, `"block"`)
}
