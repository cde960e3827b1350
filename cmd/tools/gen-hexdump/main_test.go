package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/uwb.report/internal/frames"
	"github.com/banshee-data/uwb.report/internal/hexstream"
)

func TestGenerate_Clean(t *testing.T) {
	data, distances := generate(genOptions{samples: 4, base: 1000, amplitude: 100, period: 4})
	assert.Equal(t, []uint16{1000, 1100, 1000, 900}, distances)
	assert.Len(t, data, 4*frames.RangingFrameLength)

	res := frames.Scanner{}.Scan(data)
	assert.Equal(t, []float64{1000, 1100, 1000, 900}, frames.Distances(res.Records))
}

func TestGenerate_RoundTrip(t *testing.T) {
	data, distances := generate(genOptions{
		samples: 50, base: 2000, amplitude: 30, period: 25, noise: 8,
		inertial: true, junk: 0.5, seed: 7,
	})
	decoded, err := hexstream.Decode(hexstream.Encode(data))
	require.NoError(t, err)

	res := frames.Scanner{}.Scan(decoded)
	assert.Equal(t, 50, res.Stats.RangingCount)
	assert.Equal(t, 50, res.Stats.InertialCount)
	require.Len(t, frames.Distances(res.Records), len(distances))
	for i, d := range frames.Distances(res.Records) {
		assert.Equal(t, float64(distances[i]), d)
	}
	for i, r := range res.Records {
		want := frames.KindRanging
		if i%2 == 1 {
			want = frames.KindInertial
		}
		assert.Equal(t, want, r.Kind, "record %d", i)
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	o := genOptions{samples: 20, base: 500, amplitude: 10, period: 10, noise: 3, inertial: true, seed: 42}
	a, _ := generate(o)
	b, _ := generate(o)
	assert.Equal(t, a, b)

	o.seed = 43
	c, _ := generate(o)
	assert.NotEqual(t, a, c)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, uint16(0), clampDistance(-5))
	assert.Equal(t, uint16(65535), clampDistance(1e9))
	assert.Equal(t, int16(-1000), clampAxis(-5000))
	assert.Equal(t, int16(12), clampAxis(11.6))
}
