package quality

import (
	"fmt"

	"github.com/banshee-data/uwb.report/internal/frames"
)

// Limits are the plausibility bounds applied on top of the wire ranges.
type Limits struct {
	DistanceMin float64
	DistanceMax float64
	AccelLimit  float64 // applies to |x_acc|, |y_acc|, |z_acc|
	GyroLimit   float64 // applies to |x_gyro|, |y_gyro|, |z_gyro|
}

// DefaultLimits returns the bounds used when nothing is configured.
func DefaultLimits() Limits {
	return Limits{DistanceMin: 0, DistanceMax: 10000, AccelLimit: 1000, GyroLimit: 1000}
}

// Violation is one field of one record outside Limits.
type Violation struct {
	Offset int     `json:"offset"`
	Kind   string  `json:"kind"`
	Field  string  `json:"field"`
	Value  float64 `json:"value"`
	Limit  string  `json:"limit"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s@%d: %s=%g outside %s", v.Kind, v.Offset, v.Field, v.Value, v.Limit)
}

var axisNames = [6]string{"x_acc", "y_acc", "z_acc", "x_gyro", "y_gyro", "z_gyro"}

// CheckRanges reports every field outside l. Records are never dropped:
// the frame scanner already enforces the wire ranges.
func CheckRanges(records []frames.Record, l Limits) []Violation {
	var out []Violation
	for _, r := range records {
		switch r.Kind {
		case frames.KindRanging:
			d := float64(r.Ranging.Distance)
			if d < l.DistanceMin || d > l.DistanceMax {
				out = append(out, Violation{
					Offset: r.Offset,
					Kind:   r.Kind.String(),
					Field:  "distance",
					Value:  d,
					Limit:  fmt.Sprintf("[%g, %g]", l.DistanceMin, l.DistanceMax),
				})
			}
		case frames.KindInertial:
			for i, v := range r.Inertial.Axes() {
				limit := l.AccelLimit
				if i >= 3 {
					limit = l.GyroLimit
				}
				if f := float64(v); f < -limit || f > limit {
					out = append(out, Violation{
						Offset: r.Offset,
						Kind:   r.Kind.String(),
						Field:  axisNames[i],
						Value:  f,
						Limit:  fmt.Sprintf("[%g, %g]", -limit, limit),
					})
				}
			}
		}
	}
	return out
}
