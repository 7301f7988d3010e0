package multiplayer

import (
	"encoding/json"
	"errors"
	"fmt"
)

type MessageType string

// outbound
const (
	TypePlayerJoin     MessageType = "playerJoin"
	TypePlayerUpdate   MessageType = "playerUpdate"
	TypeBroadcastReset MessageType = "broadcastReset"
	TypePlayerLeave    MessageType = "playerLeave"
)

// inbound
const (
	TypeExistingPlayers MessageType = "existingPlayers"
	TypePlayerJoined    MessageType = "playerJoined"
	TypePlayerMoved     MessageType = "playerMoved"
	TypePlayerLeft      MessageType = "playerLeft"
	TypeRaceReset       MessageType = "raceReset"
	TypeDisconnect      MessageType = "disconnect"
)

var (
	ErrMissingField   = errors.New("missing field")
	ErrUnknownMessage = errors.New("unknown message type")
	ErrNotConnected   = errors.New("not connected")
)

// Vec3 is a position in world space, Y is the height.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Rotation holds euler angles. Y is the heading, Z the bank.
type Rotation struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// PlayerState is the replicated state of a remote racer. Every field is
// optional, absent fields keep the previously known value.
type PlayerState struct {
	Name      *string   `json:"name,omitempty"`
	Position  *Vec3     `json:"position,omitempty"`
	Rotation  *Rotation `json:"rotation,omitempty"`
	ShipColor *string   `json:"shipColor,omitempty"`
	Lap       *int      `json:"lap,omitempty"`
	Progress  *float64  `json:"progress,omitempty"`
	Racing    *bool     `json:"racing,omitempty"`
}

type PlayerJoin struct {
	Name      string   `json:"name"`
	Position  Vec3     `json:"position"`
	Rotation  Rotation `json:"rotation"`
	ShipColor string   `json:"shipColor"`
}

type PlayerUpdate struct {
	Position Vec3     `json:"position"`
	Rotation Rotation `json:"rotation"`
	Lap      int      `json:"lap"`
	Progress float64  `json:"progress"`
	Racing   bool     `json:"racing"`
}

type BroadcastReset struct {
	Initiator string `json:"initiator"`
	Timestamp int64  `json:"timestamp"`
}

// Inbound is a message received from the room, produced by a Transport.
type Inbound interface {
	Type() MessageType
}

type ExistingPlayers struct {
	Players map[string]PlayerState
}

type PlayerJoined struct {
	ID string `json:"id"`
	PlayerState
}

type PlayerMoved struct {
	ID string `json:"id"`
	PlayerState
}

type PlayerLeft struct {
	ID string `json:"id"`
}

type RaceReset struct {
	Initiator string `json:"initiator"`
	Timestamp int64  `json:"timestamp"`
}

type Disconnect struct {
	Reason string
}

func (ExistingPlayers) Type() MessageType { return TypeExistingPlayers }
func (PlayerJoined) Type() MessageType    { return TypePlayerJoined }
func (PlayerMoved) Type() MessageType     { return TypePlayerMoved }
func (PlayerLeft) Type() MessageType      { return TypePlayerLeft }
func (RaceReset) Type() MessageType       { return TypeRaceReset }
func (Disconnect) Type() MessageType      { return TypeDisconnect }

// Envelope is the wire frame shared by all transports.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Sender  string          `json:"sender"`
	Version string          `json:"version,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func Encode(sender string, t MessageType, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = data
	}
	return json.Marshal(Envelope{
		Type:    t,
		Sender:  sender,
		Version: ProtocolVersion,
		Payload: raw,
	})
}

func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: type", ErrMissingField)
	}
	return &env, nil
}

// ToInbound maps what other participants sent into the message the
// receiving session consumes. Outbound frames are translated, playerJoin
// becomes playerJoined and so on.
//
//nolint:cyclop // one case per message type
func ToInbound(env *Envelope) (Inbound, error) {
	switch env.Type {
	case TypePlayerJoin, TypePlayerJoined:
		var st PlayerState
		if err := unmarshalPayload(env, &st); err != nil {
			return nil, err
		}
		return PlayerJoined{ID: env.Sender, PlayerState: st}, nil
	case TypePlayerUpdate, TypePlayerMoved:
		var st PlayerState
		if err := unmarshalPayload(env, &st); err != nil {
			return nil, err
		}
		return PlayerMoved{ID: env.Sender, PlayerState: st}, nil
	case TypePlayerLeave, TypePlayerLeft:
		return PlayerLeft{ID: env.Sender}, nil
	case TypeBroadcastReset, TypeRaceReset:
		var r RaceReset
		if err := unmarshalPayload(env, &r); err != nil {
			return nil, err
		}
		if r.Initiator == "" {
			r.Initiator = env.Sender
		}
		return r, nil
	case TypeExistingPlayers:
		var players map[string]PlayerState
		if err := unmarshalPayload(env, &players); err != nil {
			return nil, err
		}
		return ExistingPlayers{Players: players}, nil
	case TypeDisconnect:
		return Disconnect{Reason: "remote"}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownMessage, env.Type)
}

func unmarshalPayload(env *Envelope, target any) error {
	if len(env.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(env.Payload, target)
}
