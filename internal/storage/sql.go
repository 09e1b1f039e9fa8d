package storage

import (
	_ "embed"
)

//go:embed schema.sql
var schemaSQL string

const towerColumns = `
    unique_id,
    mcc,
    mnc,
    lac,
    cell_id,
    frequency_mhz,
    technology,
    carrier_name,
    first_seen,
    last_seen,
    times_seen,
    avg_signal,
    min_signal,
    max_signal,
    is_baseline,
    is_suspicious,
    notes`

const (
	selectTowerSQL = `
SELECT` + towerColumns + `
FROM towers
WHERE
    unique_id = ?`

	selectTowersSQL = `
SELECT` + towerColumns + `
FROM towers
ORDER BY last_seen DESC`

	selectBaselineTowersSQL = `
SELECT` + towerColumns + `
FROM towers
WHERE
    is_baseline = 1`

	selectSuspiciousTowersSQL = `
SELECT` + towerColumns + `
FROM towers
WHERE
    is_suspicious = 1
ORDER BY last_seen DESC`

	selectNewTowersSQL = `
SELECT` + towerColumns + `
FROM towers
WHERE
    first_seen > ?
    AND is_baseline = 0
ORDER BY first_seen DESC`

	insertTowerSQL = `
INSERT INTO towers (unique_id,
                    mcc,
                    mnc,
                    lac,
                    cell_id,
                    frequency_mhz,
                    technology,
                    carrier_name,
                    first_seen,
                    last_seen,
                    times_seen,
                    avg_signal,
                    min_signal,
                    max_signal)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?)`

	updateTowerStatsSQL = `
UPDATE towers
SET last_seen  = ?,
    times_seen = ?,
    avg_signal = ?,
    min_signal = ?,
    max_signal = ?
WHERE unique_id = ?`

	selectTowerStatsSQL = `
SELECT times_seen,
       avg_signal,
       min_signal,
       max_signal
FROM towers
WHERE
    unique_id = ?`

	insertSightingSQL = `
INSERT INTO sightings (tower_id,
                       timestamp,
                       signal_strength,
                       arfcn,
                       encryption)
VALUES (?, ?, ?, ?, ?)`

	selectSightingsSQL = `
SELECT id,
       tower_id,
       timestamp,
       signal_strength,
       arfcn,
       encryption
FROM sightings
WHERE
    tower_id = ?
ORDER BY timestamp DESC
LIMIT ?`

	markBaselineSQL = `
UPDATE towers
SET is_baseline = ?
WHERE unique_id = ?`

	markSuspiciousSQL = `
UPDATE towers
SET is_suspicious = ?,
    notes         = ?
WHERE unique_id = ?`

	baselineAllSQL = `
UPDATE towers
SET is_baseline = 1`

	insertMeasurementSQL = `
INSERT INTO location_measurements (tower_id,
                                   latitude,
                                   longitude,
                                   signal_strength,
                                   timestamp,
                                   scan_id)
VALUES (?, ?, ?, ?, ?, ?)`

	selectMeasurementsSQL = `
SELECT tower_id,
       latitude,
       longitude,
       signal_strength,
       timestamp
FROM location_measurements
WHERE
    tower_id = ?
ORDER BY timestamp DESC`

	statsSQL = `
SELECT (SELECT COUNT(*) FROM towers),
       (SELECT COUNT(*) FROM towers WHERE is_baseline = 1),
       (SELECT COUNT(*) FROM towers WHERE is_suspicious = 1),
       (SELECT COUNT(*) FROM sightings)`
)
