// pkg/core/result.go
package core

import "fmt"

// CapsInfinite marks maps scored only by power-up collection. The required
// cap count is unreachable by normal captures, so such maps never report a
// record time.
const CapsInfinite = -1

// RunResult is the computed outcome of one replay: the qualifying winning
// capture, if any, plus identifying facts of the match. A nil RecordTime
// means the run did not finish; when RecordTime is set, CappingPlayer and
// CappingPlayerUserID are set too.
type RunResult struct {
	MapID               string   `json:"map_id"`
	ActualMapID         string   `json:"actual_map_id"`
	MapName             string   `json:"map_name"`
	MapAuthor           string   `json:"map_author"`
	Players             []Player `json:"players"`
	CappingPlayer       *string  `json:"capping_player"`
	CappingPlayerUserID *string  `json:"capping_player_user_id"`
	CappingPlayerQuote  *string  `json:"capping_player_quote"`
	RecordTime          *int64   `json:"record_time"`
	IsSolo              bool     `json:"is_solo"`
	Timestamp           int64    `json:"timestamp"`
	UUID                string   `json:"uuid"`
	CapsToWin           int      `json:"caps_to_win"`
}

// Finished reports whether a qualifying capture was found.
func (r *RunResult) Finished() bool {
	return r.RecordTime != nil
}

// Summary is the quick-look view of a replay used by the summary command.
type Summary struct {
	MapName    string `json:"map_name"`
	NumPlayers int    `json:"num_players"`
	Timestamp  int64  `json:"timestamp"`
	UUID       string `json:"uuid"`
}

// PossessionStats holds cumulative flag-hold durations in exact integer
// milliseconds, per team id and per player display name.
type PossessionStats struct {
	TeamTotals map[int]int64
	PerPlayer  map[string]int64
}

// FormatDuration renders a millisecond duration as m:ss.mmm for display.
func FormatDuration(ms int64) string {
	minutes := ms / 60000
	rem := ms % 60000
	return fmt.Sprintf("%d:%02d.%03d", minutes, rem/1000, rem%1000)
}
