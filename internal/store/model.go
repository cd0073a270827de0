// Package store persists the engine's durable state: processed run results,
// failed fetch attempts and the set of replay uuids known to the tracker.
package store

import (
	"time"

	"gorm.io/datatypes"
)

// AttemptRecord tracks the failure window of one replay uuid that could not
// be fetched yet. A successful download never creates one.
type AttemptRecord struct {
	UUID         string    `gorm:"primaryKey"`
	FirstAttempt time.Time `gorm:"not null"`
	LastAttempt  time.Time `gorm:"not null"`
}

func (AttemptRecord) TableName() string {
	return "fetch_attempts"
}

// ResultRecord is one processed replay. The full run result is kept as a
// JSON document; the extracted columns exist for querying. RecordTime is
// null for runs that did not finish.
type ResultRecord struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	UUID       string `gorm:"uniqueIndex;not null"`
	MapID      string `gorm:"index"`
	MapName    string
	RecordTime *int64
	Timestamp  int64 `gorm:"index"`
	IsSolo     bool
	Finished   bool           `gorm:"index"`
	Document   datatypes.JSON `gorm:"not null"`
}

func (ResultRecord) TableName() string {
	return "run_results"
}

// Known replay sources.
const (
	SourceLogged = "logged"
	SourceManual = "manual"
)

// KnownReplay is one replay uuid the tracker should have, either logged by
// the game integration or registered by hand.
type KnownReplay struct {
	UUID   string `gorm:"primaryKey"`
	Source string `gorm:"not null"`
}

func (KnownReplay) TableName() string {
	return "known_replays"
}

// DatabaseModels lists every model for schema migration.
var DatabaseModels = []interface{}{
	&AttemptRecord{},
	&ResultRecord{},
	&KnownReplay{},
}
