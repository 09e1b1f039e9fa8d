// Package storage persists tower sightings and location measurements to
// a sqlite database.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/towerhunt/tower-hunter/internal/cell"
	"github.com/towerhunt/tower-hunter/internal/geo"
	"github.com/towerhunt/tower-hunter/internal/locate"
)

// ErrTowerNotFound is returned when no tower matches the given ID.
var ErrTowerNotFound = errors.New("storage: tower not found")

// Store handles database operations. Connections open lazily: the write
// connection initializes the schema on first use, the read connection
// opens the file read-only.
type Store struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// New creates a store backed by the sqlite database at dbPath. The file
// is created on first write.
func New(dbPath string) *Store {
	return &Store{dbPath: dbPath}
}

func (s *Store) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if _, err = db.Exec(schemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *Store) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		// Schema init goes through the write connection so a fresh
		// database is readable.
		if _, err := s.getWriteDB(); err != nil {
			s.readDBErr = err
			return
		}

		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

// RecordTower records one sighting of a tower, creating the tower row on
// first sight or folding the signal into its rolling statistics
// otherwise, and returns the updated record.
func (s *Store) RecordTower(ctx context.Context, tower cell.Tower) (record *TowerRecord, err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return nil, fmt.Errorf("getting write connection: %w", err)
	}

	now := time.Now().UTC()
	id := tower.UniqueID()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	var (
		timesSeen       int
		avg, minS, maxS float64
	)
	err = tx.QueryRowContext(ctx, selectTowerStatsSQL, id).Scan(&timesSeen, &avg, &minS, &maxS)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx, insertTowerSQL,
			id, tower.MCC, tower.MNC, tower.LAC, tower.CellID,
			tower.FrequencyMHz, tower.Technology, tower.Carrier,
			now, now, tower.SignalDBm, tower.SignalDBm, tower.SignalDBm)
		if err != nil {
			return nil, fmt.Errorf("inserting tower: %w", err)
		}

	case err != nil:
		return nil, fmt.Errorf("querying tower stats: %w", err)

	default:
		newTimes := timesSeen + 1
		newAvg := (avg*float64(timesSeen) + tower.SignalDBm) / float64(newTimes)
		_, err = tx.ExecContext(ctx, updateTowerStatsSQL,
			now, newTimes, newAvg,
			min(minS, tower.SignalDBm), max(maxS, tower.SignalDBm), id)
		if err != nil {
			return nil, fmt.Errorf("updating tower stats: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, insertSightingSQL,
		id, now, tower.SignalDBm, tower.ARFCN, tower.Encryption)
	if err != nil {
		return nil, fmt.Errorf("inserting sighting: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	return s.towerOn(ctx, db, id)
}

// Tower returns a tower record by its unique ID.
func (s *Store) Tower(ctx context.Context, uniqueID string) (*TowerRecord, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}
	return s.towerOn(ctx, db, uniqueID)
}

func (s *Store) towerOn(ctx context.Context, db *sql.DB, uniqueID string) (*TowerRecord, error) {
	row := db.QueryRowContext(ctx, selectTowerSQL, uniqueID)
	record, err := scanTowerRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTowerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning tower: %w", err)
	}
	return &record, nil
}

// Towers returns every recorded tower, most recently seen first.
func (s *Store) Towers(ctx context.Context) ([]TowerRecord, error) {
	return s.queryTowers(ctx, selectTowersSQL)
}

// BaselineTowers returns towers marked as known good.
func (s *Store) BaselineTowers(ctx context.Context) ([]TowerRecord, error) {
	return s.queryTowers(ctx, selectBaselineTowersSQL)
}

// SuspiciousTowers returns towers flagged by the detector or operator.
func (s *Store) SuspiciousTowers(ctx context.Context) ([]TowerRecord, error) {
	return s.queryTowers(ctx, selectSuspiciousTowersSQL)
}

// NewTowersSince returns non-baseline towers first seen after the given
// time, newest first.
func (s *Store) NewTowersSince(ctx context.Context, since time.Time) ([]TowerRecord, error) {
	return s.queryTowers(ctx, selectNewTowersSQL, since.UTC())
}

func (s *Store) queryTowers(ctx context.Context, query string, args ...any) (towers []TowerRecord, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying towers: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		record, err := scanTowerRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning tower: %w", err)
		}
		towers = append(towers, record)
	}
	return towers, rows.Err()
}

// MarkBaseline sets or clears the known-good flag on a tower.
func (s *Store) MarkBaseline(ctx context.Context, uniqueID string, isBaseline bool) error {
	return s.exec(ctx, markBaselineSQL, isBaseline, uniqueID)
}

// MarkSuspicious sets or clears the suspicious flag, recording the
// reason in the tower notes.
func (s *Store) MarkSuspicious(ctx context.Context, uniqueID string, isSuspicious bool, notes string) error {
	return s.exec(ctx, markSuspiciousSQL, isSuspicious, notes, uniqueID)
}

// BaselineAll marks every recorded tower as baseline and returns the
// number of towers updated.
func (s *Store) BaselineAll(ctx context.Context) (int64, error) {
	db, err := s.getWriteDB()
	if err != nil {
		return 0, fmt.Errorf("getting write connection: %w", err)
	}

	result, err := db.ExecContext(ctx, baselineAllSQL)
	if err != nil {
		return 0, fmt.Errorf("marking towers baseline: %w", err)
	}
	return result.RowsAffected()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}
	if _, err = db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("executing update: %w", err)
	}
	return nil
}

// History returns up to limit recent sightings of a tower, newest first.
func (s *Store) History(ctx context.Context, uniqueID string, limit int) (sightings []Sighting, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	rows, err := db.QueryContext(ctx, selectSightingsSQL, uniqueID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sightings: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var (
			sighting   Sighting
			signal     sql.NullFloat64
			arfcn      sql.NullInt64
			encryption sql.NullString
		)
		if err = rows.Scan(&sighting.ID, &sighting.TowerID, &sighting.Timestamp, &signal, &arfcn, &encryption); err != nil {
			return nil, fmt.Errorf("scanning sighting: %w", err)
		}
		sighting.SignalDBm = signal.Float64
		sighting.ARFCN = int(arfcn.Int64)
		sighting.Encryption = encryption.String
		sightings = append(sightings, sighting)
	}
	return sightings, rows.Err()
}

// RecordMeasurement stores a geotagged signal reading for later position
// estimation. An empty scanID groups the measurement under its own
// timestamp.
func (s *Store) RecordMeasurement(ctx context.Context, towerID string, location geo.Coordinate, signalDBm float64, scanID string) error {
	now := time.Now().UTC()
	if scanID == "" {
		scanID = now.Format(time.RFC3339Nano)
	}
	return s.exec(ctx, insertMeasurementSQL,
		towerID, location.Latitude, location.Longitude, signalDBm, now, scanID)
}

// Measurements returns all location measurements for a tower, newest
// first, in the form the position estimator consumes.
func (s *Store) Measurements(ctx context.Context, towerID string) (measurements []locate.Measurement, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	rows, err := db.QueryContext(ctx, selectMeasurementsSQL, towerID)
	if err != nil {
		return nil, fmt.Errorf("querying measurements: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var (
			id       string
			lat, lon float64
			signal   float64
			at       time.Time
		)
		if err = rows.Scan(&id, &lat, &lon, &signal, &at); err != nil {
			return nil, fmt.Errorf("scanning measurement: %w", err)
		}

		location, err := geo.New(lat, lon)
		if err != nil {
			return nil, fmt.Errorf("invalid stored coordinate: %w", err)
		}

		measurements = append(measurements, locate.Measurement{
			Location:  location,
			SignalDBm: signal,
			TowerID:   id,
			Timestamp: at.Format(time.RFC3339),
		})
	}
	return measurements, rows.Err()
}

// Stats returns database-wide counts.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	db, err := s.getReadDB()
	if err != nil {
		return Stats{}, fmt.Errorf("getting read connection: %w", err)
	}

	var stats Stats
	err = db.QueryRowContext(ctx, statsSQL).Scan(
		&stats.TotalTowers, &stats.BaselineTowers, &stats.SuspiciousTowers, &stats.TotalSightings)
	if err != nil {
		return Stats{}, fmt.Errorf("scanning stats: %w", err)
	}
	return stats, nil
}

// Close closes both database connections.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}
		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		s.closeErr = errors.Join(writeErr, readErr)
	})

	return s.closeErr
}

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && !errors.Is(cErr, sql.ErrTxDone) && *err == nil {
		*err = cErr
	}
}
