package rtc

import (
	"testing"

	"github.com/dkeye/roomrelay/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestICEServers_DefaultWhenEmpty(t *testing.T) {
	got, err := ICEServers(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultICEServers(), got)
}

func TestICEServers_Valid(t *testing.T) {
	got, err := ICEServers([]config.ICEServer{
		{URLs: []string{"stun:stun.example.com:3478"}},
		{URLs: []string{"turn:turn.example.com:3478?transport=udp"}, Username: " user ", Credential: "pw"},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "user", got[1].Username)
	assert.Equal(t, "pw", got[1].Credential)
}

func TestICEServers_Errors(t *testing.T) {
	_, err := ICEServers([]config.ICEServer{{}})
	assert.ErrorIs(t, err, ErrNoURLs)

	_, err = ICEServers([]config.ICEServer{{URLs: []string{"turns:turn.example.com:5349"}}})
	assert.ErrorIs(t, err, ErrMissingCredential)

	_, err = ICEServers([]config.ICEServer{{URLs: []string{"http://example.com"}}})
	assert.ErrorContains(t, err, "ice server 0")
}
