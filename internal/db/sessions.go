package db

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/uwb.report/internal/analysis"
	"github.com/banshee-data/uwb.report/internal/frames"
)

// SessionSummary is one row of analysis_sessions.
type SessionSummary struct {
	ID            string    `json:"id"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Pattern       string    `json:"pattern"`
	Template      string    `json:"template"`
	SourceCount   int       `json:"source_count"`
	RangingCount  int       `json:"uwb_count"`
	InertialCount int       `json:"accel_count"`
	FailedCount   int       `json:"failed_count"`
}

// SourceRow is one analysed input of a session. Nullable statistics are
// nil for sources without distances or without a filter comparison.
type SourceRow struct {
	Index              int      `json:"index"`
	Path               string   `json:"path"`
	Bytes              int      `json:"bytes"`
	RangingCount       int      `json:"uwb_count"`
	InertialCount      int      `json:"accel_count"`
	RejectedRanging    int      `json:"rejected_uwb"`
	RejectedInertial   int      `json:"rejected_accel"`
	DistanceMin        *float64 `json:"distance_min"`
	DistanceMax        *float64 `json:"distance_max"`
	DistanceMean       *float64 `json:"distance_avg"`
	DistanceStd        *float64 `json:"distance_std"`
	BestFilter         *string  `json:"best_filter"`
	BestNoiseReduction *float64 `json:"best_noise_reduction"`
	BestEstimateMethod *string  `json:"best_estimate_method"`
	BestEstimateValue  *float64 `json:"best_estimate_value"`
	BestEstimateMargin *float64 `json:"best_estimate_margin"`
	Error              *string  `json:"error"`
	DurationNS         int64    `json:"duration_ns"`
}

// SessionDetail is a session with its sources.
type SessionDetail struct {
	SessionSummary
	Sources []SourceRow `json:"sources"`
}

// FilterRun is one filter configuration evaluated over one source.
type FilterRun struct {
	SourceIndex           int      `json:"source_index"`
	Source                string   `json:"source"`
	Name                  string   `json:"name"`
	Kind                  string   `json:"kind"`
	ProcessNoise          float64  `json:"process_noise"`
	MeasurementNoise      float64  `json:"measurement_noise"`
	InitialCovariance     float64  `json:"initial_covariance"`
	RawStd                float64  `json:"raw_std"`
	FilteredStd           float64  `json:"filtered_std"`
	NoiseReductionPercent float64  `json:"noise_reduction_percent"`
	MSE                   float64  `json:"mse"`
	SNRImprovementDB      *float64 `json:"snr_improvement_db"`
	SNRInfinite           bool     `json:"snr_infinite"`
	FinalCovariance       float64  `json:"final_covariance"`
	FinalMeasurementNoise float64  `json:"final_measurement_noise"`
	DataPoints            int      `json:"data_points"`
	IsBest                bool     `json:"is_best"`
}

// RangingRow is a stored ranging record.
type RangingRow struct {
	Seq      int    `json:"seq"`
	Offset   int    `json:"offset"`
	HostID   uint32 `json:"host_id"`
	SlaveID  uint32 `json:"slave_id"`
	Distance uint16 `json:"distance"`
}

func nullFloat(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: !math.IsNaN(v) && !math.IsInf(v, 0)}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// RecordSession stores s with all of its sources, filter runs and records
// in one transaction.
func (db *DB) RecordSession(s *analysis.Session) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	id := s.ID.String()
	if _, err := tx.Exec(
		`INSERT INTO analysis_sessions (
			session_id, started_at, finished_at, pattern, template,
			source_count, ranging_count, inertial_count, failed_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, s.StartedAt.UnixNano(), s.FinishedAt.UnixNano(), s.Pattern, s.Template,
		len(s.Sources), s.RangingCount(), s.InertialCount(), s.FailedCount(),
	); err != nil {
		return fmt.Errorf("insert session %s: %w", id, err)
	}

	for i := range s.Sources {
		if err := insertSource(tx, id, i, &s.Sources[i]); err != nil {
			return fmt.Errorf("source %s: %w", s.Sources[i].Path, err)
		}
	}
	return tx.Commit()
}

func insertSource(tx *sql.Tx, id string, idx int, src *analysis.SourceResult) error {
	var (
		dMin, dMax, dMean, dStd   sql.NullFloat64
		bestFilter, estMethod     sql.NullString
		bestNR, estValue, estMarg sql.NullFloat64
		errText                   sql.NullString
		duration                  time.Duration
	)
	if d := src.Stats.Distance; d != nil {
		dMin, dMax, dMean, dStd = nullFloat(d.Min), nullFloat(d.Max), nullFloat(d.Mean), nullFloat(d.Std)
	}
	if cmp := src.Comparison; cmp != nil && cmp.Best != "" {
		bestFilter, bestNR = nullString(cmp.Best), nullFloat(cmp.BestNoiseReduction)
	}
	if b := src.Best; b != nil {
		estMethod, estValue, estMarg = nullString(b.Method), nullFloat(b.Value), nullFloat(b.ErrorMargin)
	}
	if src.Err != nil {
		errText = nullString(src.Err.Error())
	}
	for _, lap := range src.Timings {
		duration += lap.Duration
	}

	if _, err := tx.Exec(
		`INSERT INTO sources (
			session_id, source_idx, path, bytes, ranging_count, inertial_count,
			rejected_ranging, rejected_inertial, distance_min, distance_max,
			distance_mean, distance_std, best_filter, best_noise_reduction,
			best_estimate_method, best_estimate_value, best_estimate_margin,
			error, duration_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, idx, src.Path, src.Bytes, src.Stats.RangingCount, src.Stats.InertialCount,
		src.Stats.RejectedRanging, src.Stats.RejectedInertial, dMin, dMax,
		dMean, dStd, bestFilter, bestNR,
		estMethod, estValue, estMarg,
		errText, int64(duration),
	); err != nil {
		return err
	}

	if cmp := src.Comparison; cmp != nil {
		for _, r := range cmp.Ranked() {
			st := r.Stats
			if _, err := tx.Exec(
				`INSERT INTO filter_runs (
					session_id, source_idx, filter_name, kind, process_noise,
					measurement_noise, initial_covariance, raw_std, filtered_std,
					noise_reduction_percent, mse, snr_improvement_db, snr_infinite,
					final_covariance, final_measurement_noise, data_points, is_best
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				id, idx, r.Config.Name, string(r.Config.Kind), r.Config.ProcessNoise,
				r.Config.MeasurementNoise, r.Config.InitialCovariance, st.RawStd, st.FilteredStd,
				st.NoiseReductionPercent, st.MSE, nullFloat(st.SNRImprovementDB), math.IsInf(st.SNRImprovementDB, 0),
				st.FinalCovariance, r.FinalMeasurementNoise, st.DataPoints, r.Config.Name == cmp.Best,
			); err != nil {
				return fmt.Errorf("filter %s: %w", r.Config.Name, err)
			}
		}
	}

	rangingStmt, err := tx.Prepare(`INSERT INTO ranging_records (
		session_id, source_idx, seq, byte_offset, host_id, slave_id, distance
	) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer rangingStmt.Close()
	inertialStmt, err := tx.Prepare(`INSERT INTO inertial_records (
		session_id, source_idx, seq, byte_offset, device_id, x_acc, y_acc, z_acc,
		x_gyro, y_gyro, z_gyro, altitude, crc16
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer inertialStmt.Close()

	rangingSeq, inertialSeq := 0, 0
	for _, rec := range src.Records {
		switch rec.Kind {
		case frames.KindRanging:
			rangingSeq++
			r := rec.Ranging
			if _, err := rangingStmt.Exec(id, idx, rangingSeq, rec.Offset, r.HostID, r.SlaveID, r.Distance); err != nil {
				return err
			}
		case frames.KindInertial:
			inertialSeq++
			r := rec.Inertial
			if _, err := inertialStmt.Exec(id, idx, inertialSeq, rec.Offset, r.DeviceID,
				r.XAcc, r.YAcc, r.ZAcc, r.XGyro, r.YGyro, r.ZGyro, r.Altitude, r.CRC16); err != nil {
				return err
			}
		}
	}
	return nil
}

const sessionColumns = `session_id, started_at, finished_at, pattern, template,
	source_count, ranging_count, inertial_count, failed_count`

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (SessionSummary, error) {
	var (
		s                 SessionSummary
		started, finished int64
	)
	if err := row.Scan(&s.ID, &started, &finished, &s.Pattern, &s.Template,
		&s.SourceCount, &s.RangingCount, &s.InertialCount, &s.FailedCount); err != nil {
		return SessionSummary{}, err
	}
	s.StartedAt = time.Unix(0, started).UTC()
	s.FinishedAt = time.Unix(0, finished).UTC()
	return s, nil
}

// Sessions returns the most recent sessions first. A limit of zero or less
// returns every session.
func (db *DB) Sessions(limit int) ([]SessionSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(`SELECT `+sessionColumns+` FROM analysis_sessions
		ORDER BY started_at DESC, session_id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []SessionSummary{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Session returns one session with its sources in input order.
func (db *DB) Session(id string) (*SessionDetail, error) {
	summary, err := scanSession(db.QueryRow(`SELECT `+sessionColumns+` FROM analysis_sessions WHERE session_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(`SELECT source_idx, path, bytes, ranging_count, inertial_count,
			rejected_ranging, rejected_inertial, distance_min, distance_max, distance_mean,
			distance_std, best_filter, best_noise_reduction, best_estimate_method,
			best_estimate_value, best_estimate_margin, error, duration_ns
		FROM sources WHERE session_id = ? ORDER BY source_idx`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	detail := &SessionDetail{SessionSummary: summary, Sources: []SourceRow{}}
	for rows.Next() {
		var r SourceRow
		if err := rows.Scan(&r.Index, &r.Path, &r.Bytes, &r.RangingCount, &r.InertialCount,
			&r.RejectedRanging, &r.RejectedInertial, &r.DistanceMin, &r.DistanceMax, &r.DistanceMean,
			&r.DistanceStd, &r.BestFilter, &r.BestNoiseReduction, &r.BestEstimateMethod,
			&r.BestEstimateValue, &r.BestEstimateMargin, &r.Error, &r.DurationNS); err != nil {
			return nil, err
		}
		detail.Sources = append(detail.Sources, r)
	}
	return detail, rows.Err()
}

// FilterRuns returns every filter run of a session ordered by source and
// catalogue position.
func (db *DB) FilterRuns(sessionID string) ([]FilterRun, error) {
	rows, err := db.Query(`SELECT f.source_idx, s.path, f.filter_name, f.kind, f.process_noise,
			f.measurement_noise, f.initial_covariance, f.raw_std, f.filtered_std,
			f.noise_reduction_percent, f.mse, f.snr_improvement_db, f.snr_infinite,
			f.final_covariance, f.final_measurement_noise, f.data_points, f.is_best
		FROM filter_runs f
		JOIN sources s ON s.session_id = f.session_id AND s.source_idx = f.source_idx
		WHERE f.session_id = ?
		ORDER BY f.source_idx, f.rowid`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []FilterRun{}
	for rows.Next() {
		var r FilterRun
		if err := rows.Scan(&r.SourceIndex, &r.Source, &r.Name, &r.Kind, &r.ProcessNoise,
			&r.MeasurementNoise, &r.InitialCovariance, &r.RawStd, &r.FilteredStd,
			&r.NoiseReductionPercent, &r.MSE, &r.SNRImprovementDB, &r.SNRInfinite,
			&r.FinalCovariance, &r.FinalMeasurementNoise, &r.DataPoints, &r.IsBest); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RangingRecords returns the stored ranging records of one source, named
// by its path, in stream order.
func (db *DB) RangingRecords(sessionID, source string) ([]RangingRow, error) {
	var idx int
	err := db.QueryRow(`SELECT source_idx FROM sources WHERE session_id = ? AND path = ?`, sessionID, source).Scan(&idx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("source %q in session %s: %w", source, sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(`SELECT seq, byte_offset, host_id, slave_id, distance
		FROM ranging_records WHERE session_id = ? AND source_idx = ? ORDER BY seq`, sessionID, idx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []RangingRow{}
	for rows.Next() {
		var r RangingRow
		if err := rows.Scan(&r.Seq, &r.Offset, &r.HostID, &r.SlaveID, &r.Distance); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// InertialRecords returns the stored inertial records of one source.
func (db *DB) InertialRecords(sessionID, source string) ([]frames.InertialRecord, error) {
	rows, err := db.Query(`SELECT i.device_id, i.x_acc, i.y_acc, i.z_acc, i.x_gyro, i.y_gyro,
			i.z_gyro, i.altitude, i.crc16
		FROM inertial_records i
		JOIN sources s ON s.session_id = i.session_id AND s.source_idx = i.source_idx
		WHERE i.session_id = ? AND s.path = ?
		ORDER BY i.seq`, sessionID, source)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []frames.InertialRecord{}
	for rows.Next() {
		var r frames.InertialRecord
		if err := rows.Scan(&r.DeviceID, &r.XAcc, &r.YAcc, &r.ZAcc, &r.XGyro, &r.YGyro,
			&r.ZGyro, &r.Altitude, &r.CRC16); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteSession removes a session and everything recorded under it.
func (db *DB) DeleteSession(id string) error {
	res, err := db.Exec(`DELETE FROM analysis_sessions WHERE session_id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}
