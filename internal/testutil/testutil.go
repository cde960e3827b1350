// Package testutil provides shared test fixtures: synthetic device streams
// rendered as hex dumps, and small HTTP assertions.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/uwb.report/internal/frames"
	"github.com/banshee-data/uwb.report/internal/fsutil"
	"github.com/banshee-data/uwb.report/internal/hexstream"
)

// Device ids used by the fixtures; they match the default device names.
const (
	HostID  uint32 = 0x21A688DB
	SlaveID uint32 = 0x3543C42E
)

// RangingStream encodes one ranging frame per distance between the fixture
// host and slave.
func RangingStream(distances ...uint16) []byte {
	var out []byte
	for _, d := range distances {
		out = frames.AppendRanging(out, frames.RangingRecord{HostID: HostID, SlaveID: SlaveID, Distance: d})
	}
	return out
}

// SampleStream encodes ranging frames each followed by an inertial frame,
// the layout the device emits.
func SampleStream(distances ...uint16) []byte {
	var out []byte
	for i, d := range distances {
		out = frames.AppendRanging(out, frames.RangingRecord{HostID: HostID, SlaveID: SlaveID, Distance: d})
		out = frames.AppendInertial(out, frames.InertialRecord{
			DeviceID: SlaveID,
			XAcc:     int16(i),
			YAcc:     -int16(i),
			ZAcc:     980,
			XGyro:    1,
			YGyro:    2,
			ZGyro:    3,
			Altitude: 120,
			CRC16:    0xBEEF,
		})
	}
	return out
}

// HexDump renders data the way the capture tool does.
func HexDump(data []byte) string {
	return string(hexstream.Encode(data))
}

// WriteDump stores data as a hex dump at path.
func WriteDump(t *testing.T, fsys fsutil.FileSystem, path string, data []byte) {
	t.Helper()
	if err := fsys.WriteFile(path, []byte(HexDump(data)), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}
