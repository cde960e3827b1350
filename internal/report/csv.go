package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/banshee-data/uwb.report/internal/analysis"
	"github.com/banshee-data/uwb.report/internal/config"
	"github.com/banshee-data/uwb.report/internal/frames"
)

var csvHeader = []string{
	"source", "seq", "kind", "offset",
	"host_id", "slave_id", "distance",
	"device_id", "x_acc", "y_acc", "z_acc", "x_gyro", "y_gyro", "z_gyro", "altitude", "crc",
}

// WriteCSV writes one row per record of every source. Fields that do not
// apply to a record kind are left empty. A zero delimiter means comma.
func WriteCSV(w io.Writer, s *analysis.Session, delimiter rune) error {
	cw := csv.NewWriter(w)
	if delimiter != 0 {
		cw.Comma = delimiter
	}
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	row := make([]string, len(csvHeader))
	for i := range s.Sources {
		src := &s.Sources[i]
		seq := map[frames.Kind]int{}
		for _, rec := range src.Records {
			seq[rec.Kind]++
			clear(row)
			row[0] = src.Path
			row[1] = strconv.Itoa(seq[rec.Kind])
			row[2] = rec.Kind.String()
			row[3] = strconv.Itoa(rec.Offset)
			switch rec.Kind {
			case frames.KindRanging:
				r := rec.Ranging
				row[4] = config.FormatDeviceID(r.HostID)
				row[5] = config.FormatDeviceID(r.SlaveID)
				row[6] = strconv.Itoa(int(r.Distance))
			case frames.KindInertial:
				r := rec.Inertial
				row[7] = config.FormatDeviceID(r.DeviceID)
				for j, v := range r.Axes() {
					row[8+j] = strconv.Itoa(int(v))
				}
				row[14] = strconv.FormatUint(uint64(r.Altitude), 10)
				row[15] = FormatCRC(r.CRC16)
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
