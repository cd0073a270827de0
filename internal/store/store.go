package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tagpro-records/tracker/pkg/core"
)

// Store wraps the database connection.
type Store struct {
	DB  *gorm.DB
	log zerolog.Logger
}

// Open connects to Postgres per the db.* config keys, falling back to a
// local SQLite file when Postgres is unreachable, and migrates the schema.
func Open(log zerolog.Logger) (*Store, error) {
	db, err := openPostgres()
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to Postgres DB, trying SQLite")
		db, err = openSqlite(viper.GetString("db.sqlitePath"))
		if err != nil {
			return nil, fmt.Errorf("failed to open local SQLite DB: %w", err)
		}
	} else {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access sql interface: %w", err)
		}
		if err := sqlDB.Ping(); err != nil {
			log.Error().Err(err).Msg("Failed to validate connection, trying SQLite")
			db, err = openSqlite(viper.GetString("db.sqlitePath"))
			if err != nil {
				return nil, fmt.Errorf("failed to open local SQLite DB: %w", err)
			}
		}
	}

	s := &Store{DB: db, log: log}
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	log.Info().Str("dialect", db.Dialector.Name()).Msg("Connected to database")
	return s, nil
}

// OpenSqlite opens a SQLite store at path, or in memory when path is empty,
// and migrates the schema.
func OpenSqlite(path string, log zerolog.Logger) (*Store, error) {
	db, err := openSqlite(path)
	if err != nil {
		return nil, err
	}
	s := &Store{DB: db, log: log}
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func openPostgres() (*gorm.DB, error) {
	dsn := fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		viper.GetString("db.host"),
		viper.GetString("db.port"),
		viper.GetString("db.username"),
		viper.GetString("db.password"),
		viper.GetString("db.database"),
	)
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
}

func openSqlite(path string) (*gorm.DB, error) {
	if path == "" {
		path = "file::memory:?cache=shared"
	}
	return gorm.Open(sqlite.Open(path), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
}

// Migrate creates or updates the schema.
func (s *Store) Migrate() error {
	if err := s.DB.AutoMigrate(DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Attempt returns the failure window for a replay uuid.
func (s *Store) Attempt(uuid string) (first, last time.Time, found bool, err error) {
	var rec AttemptRecord
	res := s.DB.First(&rec, "uuid = ?", uuid)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return time.Time{}, time.Time{}, false, nil
	}
	if res.Error != nil {
		return time.Time{}, time.Time{}, false, res.Error
	}
	return rec.FirstAttempt, rec.LastAttempt, true, nil
}

// CreateAttempt records the first failed fetch of a replay.
func (s *Store) CreateAttempt(uuid string, at time.Time) error {
	return s.DB.Create(&AttemptRecord{UUID: uuid, FirstAttempt: at, LastAttempt: at}).Error
}

// TouchAttempt advances the last-attempt time, leaving the first untouched.
func (s *Store) TouchAttempt(uuid string, at time.Time) error {
	return s.DB.Model(&AttemptRecord{}).Where("uuid = ?", uuid).
		Update("last_attempt", at).Error
}

// MergeResults appends results whose uuid is not stored yet and reports how
// many were added. Already-stored uuids are skipped unchanged, so replaying
// the same batch is idempotent.
func (s *Store) MergeResults(results []core.RunResult) (int, error) {
	added := 0
	for i := range results {
		r := &results[i]
		var count int64
		if err := s.DB.Model(&ResultRecord{}).Where("uuid = ?", r.UUID).Count(&count).Error; err != nil {
			return added, err
		}
		if count > 0 {
			continue
		}
		doc, err := json.Marshal(r)
		if err != nil {
			return added, fmt.Errorf("encoding result %s: %w", r.UUID, err)
		}
		rec := ResultRecord{
			UUID:       r.UUID,
			MapID:      r.MapID,
			MapName:    r.MapName,
			RecordTime: r.RecordTime,
			Timestamp:  r.Timestamp,
			IsSolo:     r.IsSolo,
			Finished:   r.Finished(),
			Document:   doc,
		}
		if err := s.DB.Create(&rec).Error; err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

// ProcessedUUIDs returns the uuids of every stored result.
func (s *Store) ProcessedUUIDs() (map[string]struct{}, error) {
	var uuids []string
	if err := s.DB.Model(&ResultRecord{}).Pluck("uuid", &uuids).Error; err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(uuids))
	for _, u := range uuids {
		set[u] = struct{}{}
	}
	return set, nil
}

// AllResults returns every stored result, newest match first.
func (s *Store) AllResults() ([]core.RunResult, error) {
	return s.queryResults(s.DB.Order("timestamp DESC"))
}

// FinishedResults returns the finished runs, newest match first. This is the
// set pushed to the leaderboard.
func (s *Store) FinishedResults() ([]core.RunResult, error) {
	return s.queryResults(s.DB.Where("finished = ?", true).Order("timestamp DESC"))
}

// BestForMap returns the finished run with the lowest record time for an
// effective map id, or nil when none is stored.
func (s *Store) BestForMap(mapID string) (*core.RunResult, error) {
	var rec ResultRecord
	res := s.DB.Where("map_id = ? AND finished = ?", mapID, true).
		Order("record_time ASC").First(&rec)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if res.Error != nil {
		return nil, res.Error
	}
	var r core.RunResult
	if err := json.Unmarshal(rec.Document, &r); err != nil {
		return nil, fmt.Errorf("decoding result %s: %w", rec.UUID, err)
	}
	return &r, nil
}

func (s *Store) queryResults(tx *gorm.DB) ([]core.RunResult, error) {
	var recs []ResultRecord
	if err := tx.Find(&recs).Error; err != nil {
		return nil, err
	}
	results := make([]core.RunResult, 0, len(recs))
	for _, rec := range recs {
		var r core.RunResult
		if err := json.Unmarshal(rec.Document, &r); err != nil {
			return nil, fmt.Errorf("decoding result %s: %w", rec.UUID, err)
		}
		results = append(results, r)
	}
	return results, nil
}

// KnownUUIDs returns every replay uuid the tracker knows about, in insertion
// order.
func (s *Store) KnownUUIDs() ([]string, error) {
	var recs []KnownReplay
	if err := s.DB.Find(&recs).Error; err != nil {
		return nil, err
	}
	uuids := make([]string, 0, len(recs))
	for _, rec := range recs {
		uuids = append(uuids, rec.UUID)
	}
	return uuids, nil
}

// AddKnownReplay registers a replay uuid. Re-adding a known uuid is a no-op.
func (s *Store) AddKnownReplay(uuid, source string) error {
	res := s.DB.Where("uuid = ?", uuid).FirstOrCreate(&KnownReplay{UUID: uuid, Source: source})
	return res.Error
}
