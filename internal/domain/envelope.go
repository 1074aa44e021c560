package domain

import "encoding/json"

// Message type vocabulary. The router rejects everything outside this set.
const (
	TypeChallengeOffer   = "challenge.offer"
	TypeChallengeAccept  = "challenge.accept"
	TypeChallengeDecline = "challenge.decline"
	TypeChallengeCounter = "challenge.counter"
	TypeRosterQuery      = "roster.query"
	TypeEcho             = "echo.message"
	TypeError            = "error"
)

// Challenge colour choices.
const (
	ColourBlack  = "black"
	ColourWhite  = "white"
	ColourRandom = "random"
)

// Time controls, in minutes.
const (
	TimeControlRapid      = 10
	TimeControlBlitz      = 5
	TimeControlSuperblitz = 3
	TimeControlBullet     = 1
)

// Envelope is the bidirectional message shape on the wire. GroupName selects
// the fan-out target for relayed types; replies sent back to a single
// connection leave it empty.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	GroupName string          `json:"group_name,omitempty"`
}

// ChallengePayload is the data carried by the challenge.* types.
type ChallengePayload struct {
	Colour      string `json:"colour"`
	TimeControl int    `json:"time_control"`
}

// Valid reports whether the payload uses a known colour and time control.
func (p ChallengePayload) Valid() bool {
	switch p.Colour {
	case ColourBlack, ColourWhite, ColourRandom:
	default:
		return false
	}
	switch p.TimeControl {
	case TimeControlRapid, TimeControlBlitz, TimeControlSuperblitz, TimeControlBullet:
		return true
	}
	return false
}

// ErrorEnvelope builds the error reply sent back to a peer.
func ErrorEnvelope(msg string) Envelope {
	data, _ := json.Marshal(map[string]string{"error": msg})
	return Envelope{Type: TypeError, Data: data}
}
