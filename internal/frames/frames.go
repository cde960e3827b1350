// Package frames recovers ranging (UWB) and inertial records from the raw
// byte stream of the sensor hardware.
//
// Ranging frame (14 bytes, big-endian):
//
//	offset  size  field
//	0       2     header DD 66
//	2       4     host_id   u32
//	6       4     slave_id  u32
//	10      2     distance  u16
//	12      2     tail AA BB
//
// Inertial frame (28 bytes, big-endian):
//
//	offset  size  field
//	0       4     header AA CC FF 1C
//	4       4     device_id u32
//	8       2     x_acc     i16
//	10      2     y_acc     i16
//	12      2     z_acc     i16
//	14      2     x_gyro    i16
//	16      2     y_gyro    i16
//	18      2     z_gyro    i16
//	20      4     altitude  u32
//	24      2     tail DD CC
//	26      2     crc16     u16 (decoded, not verified)
//
// In the device stream an inertial frame follows its ranging frame directly,
// forming one logical sample.
package frames

import (
	"encoding/binary"
	"fmt"
)

var (
	RangingHeader  = []byte{0xDD, 0x66}
	RangingTail    = []byte{0xAA, 0xBB}
	InertialHeader = []byte{0xAA, 0xCC, 0xFF, 0x1C}
	InertialTail   = []byte{0xDD, 0xCC}
)

const (
	// RangingMinLength is the header plus fixed payload; the tail follows.
	RangingMinLength   = 12
	RangingFrameLength = RangingMinLength + 2

	// InertialMinLength covers header, payload and tail; the CRC follows.
	InertialMinLength   = 26
	InertialFrameLength = InertialMinLength + 2

	inertialTailOffset = 24
	// maxAxisMagnitude is the data-quality gate for the six signed axes.
	maxAxisMagnitude = 32767
)

// Kind tags the variant held by a Record.
type Kind uint8

const (
	KindRanging Kind = iota + 1
	KindInertial
)

func (k Kind) String() string {
	switch k {
	case KindRanging:
		return "ranging"
	case KindInertial:
		return "inertial"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// RangingRecord is one decoded UWB distance measurement.
type RangingRecord struct {
	HostID   uint32 `json:"host_id"`
	SlaveID  uint32 `json:"slave_id"`
	Distance uint16 `json:"distance"`
}

// InertialRecord is one decoded accelerometer/gyroscope sample.
type InertialRecord struct {
	DeviceID uint32 `json:"device_id"`
	XAcc     int16  `json:"x_acc"`
	YAcc     int16  `json:"y_acc"`
	ZAcc     int16  `json:"z_acc"`
	XGyro    int16  `json:"x_gyro"`
	YGyro    int16  `json:"y_gyro"`
	ZGyro    int16  `json:"z_gyro"`
	Altitude uint32 `json:"altitude"`
	CRC16    uint16 `json:"crc16"`
}

// Axes returns the six signed fields in wire order.
func (r InertialRecord) Axes() [6]int16 {
	return [6]int16{r.XAcc, r.YAcc, r.ZAcc, r.XGyro, r.YGyro, r.ZGyro}
}

// Record is one decoded frame. Exactly one of Ranging or Inertial is set,
// according to Kind. Offset is the position of the frame header in the
// scanned buffer.
type Record struct {
	Kind     Kind
	Offset   int
	Ranging  *RangingRecord
	Inertial *InertialRecord
}

func decodeRanging(frame []byte) (RangingRecord, bool) {
	if len(frame) < RangingMinLength {
		return RangingRecord{}, false
	}
	return RangingRecord{
		HostID:   binary.BigEndian.Uint32(frame[2:6]),
		SlaveID:  binary.BigEndian.Uint32(frame[6:10]),
		Distance: binary.BigEndian.Uint16(frame[10:12]),
	}, true
}

// validRanging gates the decoded distance. A u16 always passes; the check
// keeps the wire range explicit next to the inertial gate.
func validRanging(r RangingRecord) bool {
	d := int(r.Distance)
	return d >= 0 && d <= 0xFFFF
}

// decodeInertial decodes the fixed payload at frame[0:] and reads the CRC
// from the two bytes after the tail at frame[tail:].
func decodeInertial(frame []byte, tail int) (InertialRecord, bool) {
	if len(frame) < inertialTailOffset || tail+4 > len(frame) {
		return InertialRecord{}, false
	}
	be := binary.BigEndian
	return InertialRecord{
		DeviceID: be.Uint32(frame[4:8]),
		XAcc:     int16(be.Uint16(frame[8:10])),
		YAcc:     int16(be.Uint16(frame[10:12])),
		ZAcc:     int16(be.Uint16(frame[12:14])),
		XGyro:    int16(be.Uint16(frame[14:16])),
		YGyro:    int16(be.Uint16(frame[16:18])),
		ZGyro:    int16(be.Uint16(frame[18:20])),
		Altitude: be.Uint32(frame[20:24]),
		CRC16:    be.Uint16(frame[tail+2 : tail+4]),
	}, true
}

func validInertial(r InertialRecord) bool {
	for _, v := range r.Axes() {
		if abs(int(v)) > maxAxisMagnitude {
			return false
		}
	}
	return true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// AppendRanging appends the wire encoding of r to dst.
func AppendRanging(dst []byte, r RangingRecord) []byte {
	dst = append(dst, RangingHeader...)
	dst = binary.BigEndian.AppendUint32(dst, r.HostID)
	dst = binary.BigEndian.AppendUint32(dst, r.SlaveID)
	dst = binary.BigEndian.AppendUint16(dst, r.Distance)
	return append(dst, RangingTail...)
}

// AppendInertial appends the wire encoding of r to dst.
func AppendInertial(dst []byte, r InertialRecord) []byte {
	be := binary.BigEndian
	dst = append(dst, InertialHeader...)
	dst = be.AppendUint32(dst, r.DeviceID)
	for _, v := range r.Axes() {
		dst = be.AppendUint16(dst, uint16(v))
	}
	dst = be.AppendUint32(dst, r.Altitude)
	dst = append(dst, InertialTail...)
	return be.AppendUint16(dst, r.CRC16)
}

// RangingRecords returns the ranging records in scan order.
func RangingRecords(records []Record) []RangingRecord {
	var out []RangingRecord
	for _, r := range records {
		if r.Kind == KindRanging && r.Ranging != nil {
			out = append(out, *r.Ranging)
		}
	}
	return out
}

// InertialRecords returns the inertial records in scan order.
func InertialRecords(records []Record) []InertialRecord {
	var out []InertialRecord
	for _, r := range records {
		if r.Kind == KindInertial && r.Inertial != nil {
			out = append(out, *r.Inertial)
		}
	}
	return out
}

// Distances extracts the distance sequence fed to the filter bank.
func Distances(records []Record) []float64 {
	var out []float64
	for _, r := range records {
		if r.Kind == KindRanging && r.Ranging != nil {
			out = append(out, float64(r.Ranging.Distance))
		}
	}
	return out
}
