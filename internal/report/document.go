// Package report renders an analysis.Session as JSON, CSV, HTML, ECharts
// and PNG plots. It formats results only; every statistic comes from the
// session.
package report

import (
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/uwb.report/internal/analysis"
	"github.com/banshee-data/uwb.report/internal/config"
	"github.com/banshee-data/uwb.report/internal/estimate"
	"github.com/banshee-data/uwb.report/internal/frames"
	"github.com/banshee-data/uwb.report/internal/kalman"
	"github.com/banshee-data/uwb.report/internal/quality"
	"github.com/banshee-data/uwb.report/internal/timeutil"
	"github.com/banshee-data/uwb.report/internal/units"
)

// Options control presentation only.
type Options struct {
	Devices    config.DeviceNames
	MaxRecords int  // records listed per source in JSON and HTML; 0 lists all
	Timing     bool // include stage timings
	Outliers   bool
	Location   *time.Location // display timezone; nil means UTC
}

// Document is the JSON shape of a session.
type Document struct {
	Session SessionInfo  `json:"session"`
	Summary Totals       `json:"summary"`
	Files   []FileReport `json:"files"`
}

type SessionInfo struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Timezone   string    `json:"timezone"`
	DurationMS float64   `json:"duration_ms"`
	Pattern    string    `json:"pattern,omitempty"`
	Template   string    `json:"template"`
}

type Totals struct {
	Files           int `json:"files"`
	Failed          int `json:"failed"`
	RangingRecords  int `json:"uwb_records"`
	InertialRecords int `json:"accel_records"`
	FilteredSources int `json:"filtered_sources"`
}

type FileReport struct {
	Path       string                 `json:"path"`
	Bytes      int                    `json:"bytes"`
	Error      string                 `json:"error,omitempty"`
	Stats      frames.SourceStats     `json:"stats"`
	Summary    *quality.Summary       `json:"distance_summary,omitempty"`
	Violations []quality.Violation    `json:"range_violations,omitempty"`
	Outliers   *quality.OutlierReport `json:"outliers,omitempty"`
	Estimates  []estimate.Estimate    `json:"estimates,omitempty"`
	Best       *estimate.Estimate     `json:"best_estimate,omitempty"`
	Kalman     *KalmanReport          `json:"kalman,omitempty"`
	Timings    []timeutil.Lap         `json:"timings,omitempty"`
	Ranging    []RangingRow           `json:"uwb_data"`
	Inertial   []InertialRow          `json:"accel_data"`
	Truncated  bool                   `json:"truncated,omitempty"`
}

type KalmanReport struct {
	Best               string            `json:"best_filter"`
	BestNoiseReduction float64           `json:"best_noise_reduction"`
	Filters            []FilterReport    `json:"filters"`
	Skipped            map[string]string `json:"skipped,omitempty"`
}

type FilterReport struct {
	Config                kalman.Config `json:"config"`
	Stats                 StatsReport   `json:"stats"`
	FinalMeasurementNoise float64       `json:"final_measurement_noise"`
}

// StatsReport mirrors kalman.Stats with the SNR improvement made
// JSON-safe: an infinite value is written as null with SNRInfinite set.
type StatsReport struct {
	RawStd                float64  `json:"raw_std"`
	FilteredStd           float64  `json:"filtered_std"`
	NoiseReductionPercent float64  `json:"noise_reduction_percent"`
	MSE                   float64  `json:"mse"`
	SNRImprovementDB      *float64 `json:"snr_improvement_db"`
	SNRInfinite           bool     `json:"snr_infinite,omitempty"`
	FinalCovariance       float64  `json:"final_covariance"`
	InnovationMean        float64  `json:"average_innovation"`
	InnovationStd         float64  `json:"innovation_std"`
	DataPoints            int      `json:"data_points"`
}

type RangingRow struct {
	Seq       int    `json:"seq"`
	Offset    int    `json:"offset"`
	HostID    string `json:"host_id"`
	HostName  string `json:"host_name"`
	SlaveID   string `json:"slave_id"`
	SlaveName string `json:"slave_name"`
	Distance  uint16 `json:"distance"`
}

type InertialRow struct {
	Seq        int    `json:"seq"`
	Offset     int    `json:"offset"`
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name"`
	XAcc       int16  `json:"x_acc"`
	YAcc       int16  `json:"y_acc"`
	ZAcc       int16  `json:"z_acc"`
	XGyro      int16  `json:"x_gyro"`
	YGyro      int16  `json:"y_gyro"`
	ZGyro      int16  `json:"z_gyro"`
	Altitude   uint32 `json:"altitude"`
	CRC        string `json:"crc"`
}

// NewStatsReport converts filter statistics for JSON output.
func NewStatsReport(s kalman.Stats) StatsReport {
	r := StatsReport{
		RawStd:                s.RawStd,
		FilteredStd:           s.FilteredStd,
		NoiseReductionPercent: s.NoiseReductionPercent,
		MSE:                   s.MSE,
		FinalCovariance:       s.FinalCovariance,
		InnovationMean:        s.InnovationMean,
		InnovationStd:         s.InnovationStd,
		DataPoints:            s.DataPoints,
	}
	switch v := s.SNRImprovementDB; {
	case math.IsInf(v, 0):
		r.SNRInfinite = true
	case !math.IsNaN(v):
		r.SNRImprovementDB = &v
	}
	return r
}

// FormatCRC renders a CRC the way the device documentation does.
func FormatCRC(crc uint16) string {
	return fmt.Sprintf("0x%04X", crc)
}

// NewDocument builds the JSON document for s.
func NewDocument(s *analysis.Session, opts Options) *Document {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	doc := &Document{
		Session: SessionInfo{
			ID:         s.ID.String(),
			StartedAt:  units.ConvertTime(s.StartedAt, loc),
			FinishedAt: units.ConvertTime(s.FinishedAt, loc),
			Timezone:   loc.String(),
			DurationMS: float64(s.Duration()) / float64(time.Millisecond),
			Pattern:    s.Pattern,
			Template:   s.Template,
		},
		Summary: Totals{
			Files:           len(s.Sources),
			Failed:          s.FailedCount(),
			RangingRecords:  s.RangingCount(),
			InertialRecords: s.InertialCount(),
			FilteredSources: s.FilteredCount(),
		},
		Files: make([]FileReport, 0, len(s.Sources)),
	}
	for i := range s.Sources {
		doc.Files = append(doc.Files, newFileReport(&s.Sources[i], opts))
	}
	return doc
}

func newFileReport(src *analysis.SourceResult, opts Options) FileReport {
	fr := FileReport{
		Path:       src.Path,
		Bytes:      src.Bytes,
		Stats:      src.Stats,
		Summary:    src.Summary,
		Violations: src.Violations,
		Estimates:  src.Estimates,
		Best:       src.Best,
		Ranging:    []RangingRow{},
		Inertial:   []InertialRow{},
	}
	if src.Err != nil {
		fr.Error = src.Err.Error()
	}
	if opts.Outliers {
		fr.Outliers = src.Outliers
	}
	if opts.Timing {
		fr.Timings = src.Timings
	}
	if cmp := src.Comparison; cmp != nil {
		kr := &KalmanReport{
			Best:               cmp.Best,
			BestNoiseReduction: cmp.BestNoiseReduction,
			Skipped:            cmp.Skipped,
		}
		for _, r := range cmp.Ranked() {
			kr.Filters = append(kr.Filters, FilterReport{
				Config:                r.Config,
				Stats:                 NewStatsReport(r.Stats),
				FinalMeasurementNoise: r.FinalMeasurementNoise,
			})
		}
		fr.Kalman = kr
	}

	rangingSeq, inertialSeq := 0, 0
	for _, rec := range src.Records {
		switch rec.Kind {
		case frames.KindRanging:
			rangingSeq++
			if opts.MaxRecords > 0 && len(fr.Ranging) >= opts.MaxRecords {
				fr.Truncated = true
				continue
			}
			fr.Ranging = append(fr.Ranging, RangingRow{
				Seq:       rangingSeq,
				Offset:    rec.Offset,
				HostID:    config.FormatDeviceID(rec.Ranging.HostID),
				HostName:  opts.Devices.Name(rec.Ranging.HostID),
				SlaveID:   config.FormatDeviceID(rec.Ranging.SlaveID),
				SlaveName: opts.Devices.Name(rec.Ranging.SlaveID),
				Distance:  rec.Ranging.Distance,
			})
		case frames.KindInertial:
			inertialSeq++
			if opts.MaxRecords > 0 && len(fr.Inertial) >= opts.MaxRecords {
				fr.Truncated = true
				continue
			}
			in := rec.Inertial
			fr.Inertial = append(fr.Inertial, InertialRow{
				Seq:        inertialSeq,
				Offset:     rec.Offset,
				DeviceID:   config.FormatDeviceID(in.DeviceID),
				DeviceName: opts.Devices.Name(in.DeviceID),
				XAcc:       in.XAcc,
				YAcc:       in.YAcc,
				ZAcc:       in.ZAcc,
				XGyro:      in.XGyro,
				YGyro:      in.YGyro,
				ZGyro:      in.ZGyro,
				Altitude:   in.Altitude,
				CRC:        FormatCRC(in.CRC16),
			})
		}
	}
	return fr
}
