package storage

import (
	"database/sql"
	"time"
)

// TowerRecord is the persisted view of a tower: its broadcast identity
// plus signal statistics accumulated over every sighting.
type TowerRecord struct {
	UniqueID     string
	MCC          string
	MNC          string
	LAC          string
	CellID       string
	FrequencyMHz float64
	Technology   string
	Carrier      string

	FirstSeen time.Time
	LastSeen  time.Time
	TimesSeen int
	AvgSignal float64
	MinSignal float64
	MaxSignal float64

	IsBaseline   bool
	IsSuspicious bool
	Notes        string
}

// Sighting is one observation of a tower.
type Sighting struct {
	ID         int64
	TowerID    string
	Timestamp  time.Time
	SignalDBm  float64
	ARFCN      int
	Encryption string
}

// Stats summarizes database contents.
type Stats struct {
	TotalTowers      int
	BaselineTowers   int
	SuspiciousTowers int
	TotalSightings   int
}

type towerRow struct {
	UniqueID     string
	MCC          sql.NullString
	MNC          sql.NullString
	LAC          sql.NullString
	CellID       sql.NullString
	FrequencyMHz sql.NullFloat64
	Technology   sql.NullString
	Carrier      sql.NullString
	FirstSeen    time.Time
	LastSeen     time.Time
	TimesSeen    int
	AvgSignal    sql.NullFloat64
	MinSignal    sql.NullFloat64
	MaxSignal    sql.NullFloat64
	IsBaseline   bool
	IsSuspicious bool
	Notes        sql.NullString
}

func (r towerRow) toRecord() TowerRecord {
	return TowerRecord{
		UniqueID:     r.UniqueID,
		MCC:          r.MCC.String,
		MNC:          r.MNC.String,
		LAC:          r.LAC.String,
		CellID:       r.CellID.String,
		FrequencyMHz: r.FrequencyMHz.Float64,
		Technology:   r.Technology.String,
		Carrier:      r.Carrier.String,
		FirstSeen:    r.FirstSeen,
		LastSeen:     r.LastSeen,
		TimesSeen:    r.TimesSeen,
		AvgSignal:    r.AvgSignal.Float64,
		MinSignal:    r.MinSignal.Float64,
		MaxSignal:    r.MaxSignal.Float64,
		IsBaseline:   r.IsBaseline,
		IsSuspicious: r.IsSuspicious,
		Notes:        r.Notes.String,
	}
}

func scanTowerRow(scan func(dest ...any) error) (TowerRecord, error) {
	var r towerRow
	err := scan(
		&r.UniqueID, &r.MCC, &r.MNC, &r.LAC, &r.CellID,
		&r.FrequencyMHz, &r.Technology, &r.Carrier,
		&r.FirstSeen, &r.LastSeen, &r.TimesSeen,
		&r.AvgSignal, &r.MinSignal, &r.MaxSignal,
		&r.IsBaseline, &r.IsSuspicious, &r.Notes,
	)
	if err != nil {
		return TowerRecord{}, err
	}
	return r.toRecord(), nil
}
