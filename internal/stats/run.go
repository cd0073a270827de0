// Package stats derives facts from a parsed replay: the qualifying winning
// capture and the cumulative flag-possession durations.
package stats

import (
	"encoding/json"
	"errors"

	"github.com/tagpro-records/tracker/internal/catalog"
	"github.com/tagpro-records/tracker/internal/replay"
	"github.com/tagpro-records/tracker/pkg/core"
)

// ErrMissingMatchStart marks a replay with no match-start anchor (no time
// record with state 1). Run detection cannot produce elapsed times without
// it; possession aggregation is unaffected.
var ErrMissingMatchStart = errors.New("no match start anchor in replay")

// Rules are the scoring rules in effect for one map.
type Rules struct {
	EffectiveMapID string
	CapsToWin      int
	AllowBlueCaps  bool
}

// RulesFromCatalog resolves the rules for a replay's map: a direct catalog
// match first, then an equivalent-id match. With no catalog entry the
// defaults apply: one cap to win, blue caps not allowed, and the effective
// map id is the actual one.
func RulesFromCatalog(entries []catalog.Entry, actualMapID string) Rules {
	if e := catalog.Lookup(entries, actualMapID); e != nil {
		return Rules{
			EffectiveMapID: e.MapID,
			CapsToWin:      e.CapsToWin,
			AllowBlueCaps:  e.AllowBlueCaps,
		}
	}
	return Rules{EffectiveMapID: actualMapID, CapsToWin: 1}
}

// DetectRun locates the qualifying winning capture: the first cap-state
// entry, in stream order, whose cumulative capture count equals the required
// cap count and whose player is red or blue-caps are allowed. The returned
// result always carries the match facts (players, solo flag, timestamp,
// uuid); the run fields stay absent for a non-finish.
func DetectRun(s *replay.Stream, rules Rules) (core.RunResult, error) {
	result := core.RunResult{
		MapID:       rules.EffectiveMapID,
		ActualMapID: s.ActualMapID,
		MapName:     s.MapInfo.Info.Name,
		MapAuthor:   s.MapInfo.Info.Author,
		Players:     s.PlayerList(),
		IsSolo:      len(s.Metadata.Players) == 1,
		Timestamp:   s.Metadata.Started,
		UUID:        s.Metadata.UUID,
		CapsToWin:   rules.CapsToWin,
	}

	matchStart, ok := firstTimerTimestamp(s.Events)
	if !ok {
		return result, ErrMissingMatchStart
	}

	// Power-up-scored maps have no reachable cap count; never a finish.
	if rules.CapsToWin == core.CapsInfinite {
		return result, nil
	}

	players := s.Players()
	for _, ev := range s.Events {
		if ev.Kind != core.KindPlayerTick {
			continue
		}
		var ticks []core.CapTick
		if err := json.Unmarshal(ev.Payload, &ticks); err != nil {
			continue
		}
		for _, tick := range ticks {
			if tick.SCaptures == nil || *tick.SCaptures != rules.CapsToWin {
				continue
			}
			if tick.ID == nil {
				continue
			}
			p, ok := players[*tick.ID]
			if !ok {
				continue
			}
			if !p.IsRed && !rules.AllowBlueCaps {
				continue
			}
			elapsed := ev.Timestamp - matchStart
			result.RecordTime = &elapsed
			name, userID := p.Name, p.UserID
			result.CappingPlayer = &name
			result.CappingPlayerUserID = &userID
			if quote, ok := lastChatFrom(s.Events, p.ID); ok {
				result.CappingPlayerQuote = &quote
			}
			return result, nil
		}
	}
	return result, nil
}

// firstTimerTimestamp finds the earliest time record with state 1.
func firstTimerTimestamp(events []core.Event) (int64, bool) {
	for _, ev := range events {
		if ev.Kind != core.KindTime {
			continue
		}
		var ts core.TimeState
		if err := json.Unmarshal(ev.Payload, &ts); err != nil {
			continue
		}
		if ts.State == 1 {
			return ev.Timestamp, true
		}
	}
	return 0, false
}

// lastChatFrom returns the message of the chronologically last chat record
// sent by the given in-replay player id.
func lastChatFrom(events []core.Event, playerID int) (string, bool) {
	var message string
	found := false
	for _, ev := range events {
		if ev.Kind != core.KindChat {
			continue
		}
		var chat core.ChatMessage
		if err := json.Unmarshal(ev.Payload, &chat); err != nil {
			continue
		}
		if chat.From != nil && *chat.From == playerID {
			message = chat.Message
			found = true
		}
	}
	return message, found
}
