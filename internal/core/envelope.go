package core

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/dkeye/roomrelay/internal/domain"
)

type MessageType string

const (
	TypeJoin       MessageType = "join"
	TypeJoined     MessageType = "joined"
	TypePeerJoined MessageType = "peer-joined"
	TypePeerLeft   MessageType = "peer-left"
	TypeError      MessageType = "error"

	TypeOffer        MessageType = "offer"
	TypeAnswer       MessageType = "answer"
	TypeICECandidate MessageType = "ice-candidate"
	TypeMediaState   MessageType = "media-state"

	TypeWBApply    MessageType = "wb-apply"
	TypeWBRequest  MessageType = "wb-request"
	TypeWBSnapshot MessageType = "wb-snapshot"
)

var (
	ErrInvalidJSON    = errors.New("invalid json")
	ErrNotObject      = errors.New("envelope is not an object")
	ErrMissingType    = errors.New("missing message type")
	ErrMissingRoomID  = errors.New("missing room id")
	ErrInvalidPayload = errors.New("payload is not an object")
)

// Message is a decoded inbound envelope: either a JoinMessage or a
// RelayMessage.
type Message interface {
	Kind() MessageType
}

// JoinMessage is the only inbound message whose content the relay reads.
type JoinMessage struct {
	RoomID domain.RoomID
}

func (JoinMessage) Kind() MessageType { return TypeJoin }

// RelayMessage carries an opaque payload. The relay only reads "to" and
// overwrites "from"; every other field is forwarded byte for byte.
type RelayMessage struct {
	Type    MessageType
	Payload json.RawMessage
}

func (m RelayMessage) Kind() MessageType { return m.Type }

// Decode parses one inbound frame. The room id is checked only for join;
// other types ignore it.
func Decode(data []byte) (Message, error) {
	if !json.Valid(data) {
		return nil, ErrInvalidJSON
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return nil, ErrNotObject
	}

	var typ string
	if err := json.Unmarshal(fields["type"], &typ); err != nil || isNull(fields["type"]) {
		return nil, ErrMissingType
	}

	if MessageType(typ) == TypeJoin {
		var roomID string
		if err := json.Unmarshal(fields["roomId"], &roomID); err != nil || roomID == "" {
			return nil, ErrMissingRoomID
		}
		return JoinMessage{RoomID: domain.RoomID(roomID)}, nil
	}

	payload := fields["payload"]
	if isNull(payload) {
		payload = nil
	}
	return RelayMessage{Type: MessageType(typ), Payload: payload}, nil
}

// Target is the delivery scope of a stamped relay message.
type Target struct {
	// Broadcast is set when the payload names no recipient.
	Broadcast bool
	// To is the recipient for targeted delivery. It may be empty when the
	// payload names a recipient that cannot be an id, which matches nobody.
	To SessionID
}

// Stamp returns the outbound frame with payload.from set to the sender and
// the delivery target read from payload.to. A client supplied "from" is
// always replaced.
func (m RelayMessage) Stamp(from SessionID) (Target, Frame, error) {
	fields := map[string]json.RawMessage{}
	if len(m.Payload) > 0 {
		if err := json.Unmarshal(m.Payload, &fields); err != nil || fields == nil {
			return Target{}, nil, ErrInvalidPayload
		}
	}

	target := readTarget(fields["to"])

	sender, err := json.Marshal(from)
	if err != nil {
		return Target{}, nil, err
	}
	fields["from"] = sender

	frame, err := Encode(m.Type, fields)
	if err != nil {
		return Target{}, nil, err
	}
	return target, frame, nil
}

func readTarget(raw json.RawMessage) Target {
	switch string(bytes.TrimSpace(raw)) {
	case "", "null", `""`, "false", "0":
		return Target{Broadcast: true}
	}
	var to string
	if err := json.Unmarshal(raw, &to); err != nil {
		return Target{}
	}
	return Target{To: SessionID(to)}
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

type outbound struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload,omitempty"`
}

// Encode builds an outbound frame.
func Encode(t MessageType, payload any) (Frame, error) {
	b, err := json.Marshal(outbound{Type: t, Payload: payload})
	if err != nil {
		return nil, err
	}
	return Frame(b), nil
}

type JoinedPayload struct {
	ClientID SessionID   `json:"clientId"`
	RoomSize int         `json:"roomSize"`
	Peers    []SessionID `json:"peers"`
}

type PeerPayload struct {
	ClientID SessionID `json:"clientId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
