package stats

import (
	"encoding/json"
	"sort"

	"github.com/tagpro-records/tracker/internal/replay"
	"github.com/tagpro-records/tracker/pkg/core"
)

// Hold is one closed flag-possession interval, reported in stream order of
// its close for the holds listing.
type Hold struct {
	Player   string
	IsRed    bool
	Start    int64
	End      int64
	Duration int64
}

// AggregatePossession sums flag-hold durations per team and per player.
//
// A grab opens an interval for its player; a grab for a player already
// holding is ignored, the original start stands. A kill or drop naming the
// player closes the interval, as does any p record entry that carries a
// cumulative capture count for the player. An interval still open at the end
// of the stream is discarded entirely.
func AggregatePossession(s *replay.Stream) (core.PossessionStats, []Hold) {
	stats := core.PossessionStats{
		TeamTotals: make(map[int]int64),
		PerPlayer:  make(map[string]int64),
	}
	players := s.Players()
	open := make(map[int]int64)
	var holds []Hold

	closeHold := func(id int, end int64) {
		start, ok := open[id]
		if !ok {
			return
		}
		delete(open, id)
		p, ok := players[id]
		if !ok {
			return
		}
		d := end - start
		team := core.TeamBlue
		if p.IsRed {
			team = core.TeamRed
		}
		stats.TeamTotals[team] += d
		stats.PerPlayer[p.Name] += d
		holds = append(holds, Hold{Player: p.Name, IsRed: p.IsRed, Start: start, End: end, Duration: d})
	}

	for _, ev := range s.Events {
		switch ev.Kind {
		case core.KindGrab:
			for _, id := range carrierIDs(ev.Payload) {
				if _, held := open[id]; !held {
					open[id] = ev.Timestamp
				}
			}
		case core.KindKill, core.KindDrop:
			for _, id := range carrierIDs(ev.Payload) {
				closeHold(id, ev.Timestamp)
			}
		case core.KindPlayerTick:
			var ticks []core.CapTick
			if err := json.Unmarshal(ev.Payload, &ticks); err != nil {
				continue
			}
			for _, tick := range ticks {
				if tick.SCaptures != nil && tick.ID != nil {
					closeHold(*tick.ID, ev.Timestamp)
				}
			}
		}
	}

	sort.SliceStable(holds, func(i, j int) bool { return holds[i].Start < holds[j].Start })
	return stats, holds
}

// carrierIDs extracts the player ids named by a grab, kill or drop payload.
// The recorder emits either a single object or an array of them.
func carrierIDs(payload json.RawMessage) []int {
	var one core.FlagCarrier
	if err := json.Unmarshal(payload, &one); err == nil {
		if one.ID == nil {
			return nil
		}
		return []int{*one.ID}
	}
	var many []core.FlagCarrier
	if err := json.Unmarshal(payload, &many); err != nil {
		return nil
	}
	ids := make([]int, 0, len(many))
	for _, c := range many {
		if c.ID != nil {
			ids = append(ids, *c.ID)
		}
	}
	return ids
}
