package frames

import (
	"bytes"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Scanner locates and decodes frames in a byte buffer.
//
// By default an inertial frame is only decoded when it directly follows a
// ranging tail, which is how the hardware emits them. Standalone also
// accepts inertial frames found on their own while seeking a header.
type Scanner struct {
	Standalone bool
}

// DistanceStats summarises the distance field of a source's ranging records.
// Std is the population standard deviation.
type DistanceStats struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"avg"`
	Std  float64 `json:"std"`
}

// SourceStats are computed once a buffer has been scanned. Rejected counts
// are header matches that produced no record.
type SourceStats struct {
	RangingCount     int            `json:"uwb_count"`
	InertialCount    int            `json:"accel_count"`
	RejectedRanging  int            `json:"rejected_uwb"`
	RejectedInertial int            `json:"rejected_accel"`
	Distance         *DistanceStats `json:"distance_stats"`
}

// Result holds the records of one buffer in increasing Offset order.
type Result struct {
	Records []Record
	Stats   SourceStats
}

// Scan walks data once and returns every frame it can decode. Malformed or
// truncated candidates are skipped; Scan never fails.
func (s Scanner) Scan(data []byte) Result {
	sc := scan{
		data:      data,
		rangeHead: marker{pat: RangingHeader, data: data},
		rangeTail: marker{pat: RangingTail, data: data},
		inerHead:  marker{pat: InertialHeader, data: data},
		inerTail:  marker{pat: InertialTail, data: data},
	}

	pos := 0
	for pos < len(data) {
		h := sc.rangeHead.at(pos)
		if s.Standalone {
			if i := sc.inerHead.at(pos); i >= 0 && (h < 0 || i < h) {
				if next, ok := sc.inertialAt(i); ok {
					pos = next
				} else {
					pos = i + 1
				}
				continue
			}
		}
		if h < 0 {
			break
		}
		next, ok := sc.rangingAt(h)
		if !ok {
			pos = h + 1
			continue
		}
		pos = next
		// co-located inertial frame; in standalone mode the next pass finds it
		if !s.Standalone && pos+1 < len(data) && data[pos] == InertialHeader[0] && data[pos+1] == InertialHeader[1] {
			if next, ok := sc.inertialAt(pos); ok {
				pos = next
			}
		}
	}

	sc.result.Stats.Distance = distanceStats(sc.result.Records)
	return sc.result
}

type scan struct {
	data      []byte
	rangeHead marker
	rangeTail marker
	inerHead  marker
	inerTail  marker
	result    Result
}

// rangingAt tries a ranging frame whose header sits at h and returns the
// cursor position after its tail. The payload is at fixed offsets, so the
// first tail at or after the payload decides the outcome for every later
// candidate too.
func (sc *scan) rangingAt(h int) (int, bool) {
	t := sc.rangeTail.at(h + RangingMinLength)
	if t < 0 {
		sc.result.Stats.RejectedRanging++
		return 0, false
	}
	rec, ok := decodeRanging(sc.data[h:])
	if !ok || !validRanging(rec) {
		sc.result.Stats.RejectedRanging++
		return 0, false
	}
	sc.result.Records = append(sc.result.Records, Record{Kind: KindRanging, Offset: h, Ranging: &rec})
	sc.result.Stats.RangingCount++
	return t + len(RangingTail), true
}

// inertialAt tries an inertial frame at i and returns the cursor position
// after its CRC.
func (sc *scan) inertialAt(i int) (int, bool) {
	if !bytes.HasPrefix(sc.data[i:], InertialHeader) {
		return 0, false
	}
	t := sc.inerTail.at(i + inertialTailOffset)
	if t < 0 {
		sc.result.Stats.RejectedInertial++
		return 0, false
	}
	rec, ok := decodeInertial(sc.data[i:], t-i)
	if !ok || !validInertial(rec) {
		sc.result.Stats.RejectedInertial++
		return 0, false
	}
	sc.result.Records = append(sc.result.Records, Record{Kind: KindInertial, Offset: i, Inertial: &rec})
	sc.result.Stats.InertialCount++
	return t + len(InertialTail) + 2, true
}

// marker returns the first occurrence of pat at or after a position. It
// remembers its last answer, so a cursor that only moves forward costs one
// pass over data in total.
type marker struct {
	pat   []byte
	data  []byte
	from  int
	next  int
	valid bool
}

func (m *marker) at(from int) int {
	if from >= len(m.data) {
		return -1
	}
	if m.valid && from >= m.from && (m.next < 0 || m.next >= from) {
		return m.next
	}
	i := bytes.Index(m.data[from:], m.pat)
	if i >= 0 {
		i += from
	}
	m.from, m.next, m.valid = from, i, true
	return i
}

func distanceStats(records []Record) *DistanceStats {
	d := Distances(records)
	if len(d) == 0 {
		return nil
	}
	mean, std := stat.PopMeanStdDev(d, nil)
	return &DistanceStats{
		Min:  floats.Min(d),
		Max:  floats.Max(d),
		Mean: mean,
		Std:  std,
	}
}
