// Command gen-hexdump writes a synthetic UWB/inertial hex dump: a sine
// wave of distances with gaussian noise, optional inertial frames and
// optional junk bytes before ranging frames.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand/v2"
	"os"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banshee-data/uwb.report/internal/frames"
	"github.com/banshee-data/uwb.report/internal/hexstream"
)

// Device ids of the generated frames.
const (
	hostID  uint32 = 0x21A688DB
	slaveID uint32 = 0x3543C42E
)

type genOptions struct {
	samples   int
	base      float64
	amplitude float64
	period    float64
	noise     float64
	inertial  bool
	junk      float64 // probability of junk bytes before each ranging frame
	seed      uint64
}

func clampDistance(v float64) uint16 {
	return uint16(math.Round(math.Max(0, math.Min(math.MaxUint16, v))))
}

func clampAxis(v float64) int16 {
	return int16(math.Round(math.Max(-1000, math.Min(1000, v))))
}

// generate returns the raw stream and the distances it encodes.
func generate(o genOptions) ([]byte, []uint16) {
	src := rand.NewPCG(o.seed, o.seed^0x9E3779B97F4A7C15)
	rng := rand.New(src)
	noise := distuv.Normal{Mu: 0, Sigma: math.Max(o.noise, 1e-12), Src: src}
	jitter := distuv.Normal{Mu: 0, Sigma: 5, Src: src}

	junk := func(out []byte) []byte {
		if o.junk <= 0 || rng.Float64() >= o.junk {
			return out
		}
		// Junk stays below 0x80 so it never forms a frame marker.
		for n := 1 + rng.IntN(8); n > 0; n-- {
			out = append(out, byte(rng.IntN(0x80)))
		}
		return out
	}

	var (
		out       []byte
		distances = make([]uint16, 0, o.samples)
	)
	for i := 0; i < o.samples; i++ {
		phase := 0.0
		if o.period > 0 {
			phase = 2 * math.Pi * float64(i) / o.period
		}
		d := o.base + o.amplitude*math.Sin(phase)
		if o.noise > 0 {
			d += noise.Rand()
		}
		dist := clampDistance(d)
		distances = append(distances, dist)

		out = junk(out)
		out = frames.AppendRanging(out, frames.RangingRecord{HostID: hostID, SlaveID: slaveID, Distance: dist})
		// an inertial frame is only decoded when it directly follows a ranging tail
		if o.inertial {
			out = frames.AppendInertial(out, frames.InertialRecord{
				DeviceID: slaveID,
				XAcc:     clampAxis(jitter.Rand()),
				YAcc:     clampAxis(jitter.Rand()),
				ZAcc:     clampAxis(980 + jitter.Rand()),
				XGyro:    clampAxis(jitter.Rand()),
				YGyro:    clampAxis(jitter.Rand()),
				ZGyro:    clampAxis(jitter.Rand()),
				Altitude: 120,
				CRC16:    uint16(i),
			})
		}
	}
	return out, distances
}

func main() {
	var o genOptions
	output := flag.String("o", "", "Output file (default stdout)")
	flag.IntVar(&o.samples, "n", 200, "Number of ranging samples")
	flag.Float64Var(&o.base, "base", 1000, "Mean distance")
	flag.Float64Var(&o.amplitude, "amplitude", 50, "Sine amplitude")
	flag.Float64Var(&o.period, "period", 100, "Sine period in samples (0 for a constant distance)")
	flag.Float64Var(&o.noise, "noise", 10, "Gaussian noise standard deviation")
	flag.BoolVar(&o.inertial, "inertial", true, "Follow each ranging frame with an inertial frame")
	flag.Float64Var(&o.junk, "junk", 0, "Probability of junk bytes before each ranging frame")
	flag.Uint64Var(&o.seed, "seed", 1, "Random seed")
	flag.Parse()

	if o.samples < 0 {
		log.Fatalf("-n must be non-negative, got %d", o.samples)
	}
	if o.junk < 0 || o.junk > 1 {
		log.Fatalf("-junk must be within [0, 1], got %g", o.junk)
	}

	data, _ := generate(o)
	var w io.Writer = os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			log.Fatalf("failed to create %s: %v", *output, err)
		}
		defer f.Close()
		w = f
	}
	if _, err := w.Write(hexstream.Encode(data)); err != nil {
		log.Fatalf("failed to write dump: %v", err)
	}
	if *output != "" {
		fmt.Fprintf(os.Stderr, "wrote %d samples (%d bytes) to %s\n", o.samples, len(data), *output)
	}
}
