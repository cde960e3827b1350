package testutil

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/uwb.report/internal/frames"
	"github.com/banshee-data/uwb.report/internal/fsutil"
	"github.com/banshee-data/uwb.report/internal/hexstream"
)

func TestHexDump(t *testing.T) {
	assert.Equal(t, "DD 66 0A\n", HexDump([]byte{0xDD, 0x66, 0x0A}))

	data := make([]byte, 17)
	dump := HexDump(data)
	assert.Equal(t, "00 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00\n00\n", dump)

	decoded, err := hexstream.Decode([]byte(dump))
	require.NoError(t, err)
	assert.Equal(t, data, decoded)
}

func TestRangingStream(t *testing.T) {
	stream := RangingStream(100, 200)
	require.Len(t, stream, 2*frames.RangingFrameLength)

	res := frames.Scanner{}.Scan(stream)
	assert.Equal(t, []float64{100, 200}, frames.Distances(res.Records))
}

func TestSampleStream(t *testing.T) {
	stream := SampleStream(100, 200, 300)
	require.Len(t, stream, 3*(frames.RangingFrameLength+frames.InertialFrameLength))

	res := frames.Scanner{}.Scan(stream)
	assert.Equal(t, 3, res.Stats.RangingCount)
	assert.Equal(t, 3, res.Stats.InertialCount)
	inertial := frames.InertialRecords(res.Records)
	assert.Equal(t, int16(-2), inertial[2].YAcc)
	assert.Equal(t, uint16(0xBEEF), inertial[0].CRC16)
}

func TestWriteDump(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	WriteDump(t, fsys, "data/a.txt", RangingStream(42))

	buf, err := (&hexstream.Loader{FS: fsys}).Load("data/a.txt")
	require.NoError(t, err)
	assert.Equal(t, RangingStream(42), buf.Data)
}

func TestAssertStatusCode(t *testing.T) {
	AssertStatusCode(t, http.StatusOK, http.StatusOK)
	AssertNoError(t, nil)
	req := NewTestRequest(http.MethodGet, "/api/sessions")
	assert.Equal(t, "/api/sessions", req.URL.Path)
}
