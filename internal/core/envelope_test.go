package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Message
		wantErr error
	}{
		{"join", `{"type":"join","roomId":"123456"}`, JoinMessage{RoomID: "123456"}, nil},
		{"join ignores extras", `{"type":"join","roomId":"a","name":"x"}`, JoinMessage{RoomID: "a"}, nil},
		{"relay", `{"type":"offer","payload":{"sdp":"v=0"}}`, RelayMessage{Type: TypeOffer, Payload: json.RawMessage(`{"sdp":"v=0"}`)}, nil},
		{"relay null payload", `{"type":"offer","payload":null}`, RelayMessage{Type: TypeOffer}, nil},
		{"relay ignores roomId", `{"type":"media-state","roomId":5}`, RelayMessage{Type: TypeMediaState}, nil},
		{"garbage", `nope`, nil, ErrInvalidJSON},
		{"truncated", `{"type":"join"`, nil, ErrInvalidJSON},
		{"string", `"join"`, nil, ErrNotObject},
		{"null", `null`, nil, ErrNotObject},
		{"no type", `{}`, nil, ErrMissingType},
		{"null type", `{"type":null}`, nil, ErrMissingType},
		{"object type", `{"type":{}}`, nil, ErrMissingType},
		{"join empty room", `{"type":"join","roomId":""}`, nil, ErrMissingRoomID},
		{"join null room", `{"type":"join","roomId":null}`, nil, ErrMissingRoomID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.in))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func stampedPayload(t *testing.T, f Frame) (string, map[string]any) {
	t.Helper()
	var out struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(f, &out))
	return out.Type, out.Payload
}

func TestStamp_Target(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Target
	}{
		{"absent", `{"sdp":"x"}`, Target{Broadcast: true}},
		{"null", `{"to":null}`, Target{Broadcast: true}},
		{"empty string", `{"to":""}`, Target{Broadcast: true}},
		{"false", `{"to":false}`, Target{Broadcast: true}},
		{"zero", `{"to":0}`, Target{Broadcast: true}},
		{"id", `{"to":"abc"}`, Target{To: "abc"}},
		{"number", `{"to":7}`, Target{}},
		{"object", `{"to":{"id":"abc"}}`, Target{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := RelayMessage{Type: TypeOffer, Payload: json.RawMessage(tt.payload)}
			target, _, err := m.Stamp("me")
			require.NoError(t, err)
			assert.Equal(t, tt.want, target)
		})
	}
}

func TestStamp_OverwritesFromAndKeepsFields(t *testing.T) {
	m := RelayMessage{
		Type:    TypeICECandidate,
		Payload: json.RawMessage(`{"from":"mallory","to":"bob","candidate":{"sdpMid":"0"},"n":1.5}`),
	}

	_, frame, err := m.Stamp("alice")
	require.NoError(t, err)

	typ, payload := stampedPayload(t, frame)
	assert.Equal(t, "ice-candidate", typ)
	assert.Equal(t, map[string]any{
		"from":      "alice",
		"to":        "bob",
		"candidate": map[string]any{"sdpMid": "0"},
		"n":         1.5,
	}, payload)
}

func TestStamp_EmptyPayload(t *testing.T) {
	_, frame, err := RelayMessage{Type: TypeWBRequest}.Stamp("alice")
	require.NoError(t, err)
	_, payload := stampedPayload(t, frame)
	assert.Equal(t, map[string]any{"from": "alice"}, payload)
}

func TestStamp_RejectsNonObjectPayload(t *testing.T) {
	for _, p := range []string{`"text"`, `[1]`, `3`} {
		_, _, err := RelayMessage{Type: TypeOffer, Payload: json.RawMessage(p)}.Stamp("a")
		assert.ErrorIs(t, err, ErrInvalidPayload, p)
	}
}

func TestEncode(t *testing.T) {
	f, err := Encode(TypeJoined, JoinedPayload{ClientID: "x", RoomSize: 1, Peers: []SessionID{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"joined","payload":{"clientId":"x","roomSize":1,"peers":[]}}`, string(f))

	f, err = Encode(TypeError, ErrorPayload{Message: "Room is full"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","payload":{"message":"Room is full"}}`, string(f))
}

func TestNamespaces(t *testing.T) {
	av := AudioVideo("/ws")
	for _, typ := range []MessageType{TypeOffer, TypeAnswer, TypeICECandidate, TypeMediaState} {
		assert.True(t, av.Relays(typ), typ)
	}
	assert.False(t, av.Relays(TypeWBApply))
	assert.False(t, av.Relays(TypeJoin))

	wb := Whiteboard("/ws-wb")
	for _, typ := range []MessageType{TypeWBApply, TypeWBRequest, TypeWBSnapshot} {
		assert.True(t, wb.Relays(typ), typ)
	}
	assert.False(t, wb.Relays(TypeOffer))
	assert.Equal(t, "/ws-wb", wb.Path)
}
