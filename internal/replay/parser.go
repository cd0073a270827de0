// Package replay decodes raw newline-delimited replay data into an ordered
// event stream with typed accessors for the fixed header records.
package replay

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tagpro-records/tracker/pkg/core"
)

// ErrMalformedStream marks a replay that cannot be decoded: a line that is
// not valid JSON, a record that is not a [timestamp, kind, payload] triple,
// or a header prefix that does not match the recorder's fixed layout. It is
// fatal for the one replay only; callers continue with the rest of a batch.
var ErrMalformedStream = errors.New("malformed replay stream")

// maxLineBytes bounds a single record; p records on long matches can run to
// hundreds of kilobytes.
const maxLineBytes = 16 * 1024 * 1024

// Stream is one fully parsed replay.
type Stream struct {
	Events      []core.Event
	Metadata    core.Metadata
	MapInfo     core.MapInfo
	ActualMapID string
}

// Parse decodes raw replay bytes. Each non-empty line must decode to a
// [timestamp, kind, payload] triple, and records 0, 2 and 3 must be
// recorder-metadata, map and clientInfo respectively (record 1 is
// unconstrained). Unknown kinds are preserved, not rejected; no payload
// validation happens here beyond the three header records.
func Parse(raw []byte) (*Stream, error) {
	events, err := parseEvents(raw)
	if err != nil {
		return nil, err
	}
	if err := checkPrefix(events); err != nil {
		return nil, err
	}

	s := &Stream{Events: events}
	if err := json.Unmarshal(events[0].Payload, &s.Metadata); err != nil {
		return nil, fmt.Errorf("%w: recorder-metadata payload: %v", ErrMalformedStream, err)
	}
	if err := json.Unmarshal(events[2].Payload, &s.MapInfo); err != nil {
		return nil, fmt.Errorf("%w: map payload: %v", ErrMalformedStream, err)
	}
	var clientInfo core.ClientInfo
	if err := json.Unmarshal(events[3].Payload, &clientInfo); err != nil {
		return nil, fmt.Errorf("%w: clientInfo payload: %v", ErrMalformedStream, err)
	}
	s.ActualMapID = mapIDFromMapfile(clientInfo.MapFile)

	return s, nil
}

func parseEvents(raw []byte) ([]core.Event, error) {
	var events []core.Event
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec []json.RawMessage
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedStream, lineNo, err)
		}
		if len(rec) != 3 {
			return nil, fmt.Errorf("%w: line %d: record has %d elements, want 3", ErrMalformedStream, lineNo, len(rec))
		}
		var ts int64
		if err := json.Unmarshal(rec[0], &ts); err != nil {
			return nil, fmt.Errorf("%w: line %d: timestamp: %v", ErrMalformedStream, lineNo, err)
		}
		var kind string
		if err := json.Unmarshal(rec[1], &kind); err != nil {
			return nil, fmt.Errorf("%w: line %d: kind: %v", ErrMalformedStream, lineNo, err)
		}
		events = append(events, core.Event{Timestamp: ts, Kind: kind, Payload: rec[2]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedStream, err)
	}
	return events, nil
}

func checkPrefix(events []core.Event) error {
	if len(events) < 4 {
		return fmt.Errorf("%w: stream has %d records, need at least 4", ErrMalformedStream, len(events))
	}
	fixed := []struct {
		idx  int
		kind string
	}{
		{0, core.KindMetadata},
		{2, core.KindMap},
		{3, core.KindClientInfo},
	}
	for _, f := range fixed {
		if events[f.idx].Kind != f.kind {
			return fmt.Errorf("%w: record %d is %q, want %q", ErrMalformedStream, f.idx, events[f.idx].Kind, f.kind)
		}
	}
	return nil
}

// mapIDFromMapfile extracts the map id from a "<prefix>/<mapId>" mapfile
// reference. A null or malformed reference yields "".
func mapIDFromMapfile(mapfile *string) string {
	if mapfile == nil {
		return ""
	}
	parts := strings.Split(*mapfile, "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// Players builds the player table keyed by in-replay numeric id.
func (s *Stream) Players() map[int]core.Player {
	players := make(map[int]core.Player, len(s.Metadata.Players))
	for _, p := range s.Metadata.Players {
		players[p.ID] = core.Player{
			ID:     p.ID,
			Name:   p.DisplayName,
			UserID: p.UserID,
			IsRed:  p.Team == core.TeamRed,
		}
	}
	return players
}

// PlayerList returns the players in roster order, for inclusion in results.
func (s *Stream) PlayerList() []core.Player {
	list := make([]core.Player, 0, len(s.Metadata.Players))
	for _, p := range s.Metadata.Players {
		list = append(list, core.Player{
			ID:     p.ID,
			Name:   p.DisplayName,
			UserID: p.UserID,
			IsRed:  p.Team == core.TeamRed,
		})
	}
	return list
}

// Summary returns the quick-look facts of the replay.
func (s *Stream) Summary() core.Summary {
	return core.Summary{
		MapName:    s.MapInfo.Info.Name,
		NumPlayers: len(s.Metadata.Players),
		Timestamp:  s.Metadata.Started,
		UUID:       s.Metadata.UUID,
	}
}
