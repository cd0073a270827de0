// pkg/core/replay.go
package core

import "encoding/json"

// Event kinds recognized by the decoder. Records with any other kind pass
// through with their payload preserved as raw JSON.
const (
	KindMetadata   = "recorder-metadata"
	KindMap        = "map"
	KindClientInfo = "clientInfo"
	KindTime       = "time"
	KindPlayerTick = "p"
	KindChat       = "chat"
	KindGrab       = "tagproGrab"
	KindKill       = "kill"
	KindDrop       = "drop"
)

// Team identifiers as recorded by the game.
const (
	TeamRed  = 1
	TeamBlue = 2
)

// Event is one record of a decoded replay: a millisecond timestamp, a kind
// tag and the raw payload for that kind. Events are immutable once parsed
// and ordered non-decreasing by timestamp within one replay.
type Event struct {
	Timestamp int64
	Kind      string
	Payload   json.RawMessage
}

// Metadata is the payload of the recorder-metadata record, always the first
// record of a replay.
type Metadata struct {
	UUID    string           `json:"uuid"`
	Started int64            `json:"started"`
	Players []MetadataPlayer `json:"players"`
}

// MetadataPlayer is one roster entry of the recorder-metadata record.
type MetadataPlayer struct {
	ID          int    `json:"id"`
	DisplayName string `json:"displayName"`
	UserID      string `json:"userId"`
	Team        int    `json:"team"`
}

// MapInfo is the payload of the map record. Only the info block is consumed.
type MapInfo struct {
	Info struct {
		Name   string `json:"name"`
		Author string `json:"author"`
	} `json:"info"`
}

// ClientInfo is the payload of the clientInfo record. MapFile references the
// map as "<prefix>/<mapId>" and may be null.
type ClientInfo struct {
	MapFile *string `json:"mapfile"`
}

// TimeState is the payload of a time record. State 1 marks the match start
// anchor all elapsed times are measured from.
type TimeState struct {
	State int `json:"state"`
}

// CapTick is one per-player entry of a p record. SCaptures is nil when the
// tick carries no cumulative capture count for that player.
type CapTick struct {
	ID        *int `json:"id"`
	SCaptures *int `json:"s-captures"`
}

// ChatMessage is the payload of a chat record. From is absent for system
// messages.
type ChatMessage struct {
	From    *int   `json:"from"`
	Message string `json:"message"`
}

// FlagCarrier names the player a tagproGrab, kill or drop record applies to.
// Terminator payloads may carry a single object or a sequence of them.
type FlagCarrier struct {
	ID *int `json:"id"`
}

// Player is the per-replay identity derived from recorder-metadata, keyed by
// the in-replay numeric id.
type Player struct {
	ID     int    `json:"-"`
	Name   string `json:"name"`
	UserID string `json:"user_id"`
	IsRed  bool   `json:"is_red"`
}
