package renderer

import (
	"time"

	humanize "github.com/dustin/go-humanize"
)

type TracerStat struct {
	// The tracer id.
	Id string

	// The block height and the percentage of total frame area it represents.
	BlockH       uint32
	FramePercent float32

	// Render time for assigned block
	RenderTime time.Duration

	// Ray counters for the assigned block.
	Rays uint64
	Hits uint64
}

type FrameStats struct {
	// Individual tracer stats.
	Tracers []TracerStat

	// Total render time for entire frame.
	RenderTime time.Duration

	// Totals over all tracers.
	PrimaryRays uint64
	ShadowRays  uint64
	Hits        uint64
}

// Get the ray throughput in rays per second.
func (s FrameStats) RaysPerSecond() float64 {
	if s.RenderTime <= 0 {
		return 0
	}
	return float64(s.PrimaryRays+s.ShadowRays) / s.RenderTime.Seconds()
}

// Format the ray throughput for display.
func (s FrameStats) Throughput() string {
	value, prefix := humanize.ComputeSI(s.RaysPerSecond())
	return humanize.FtoaWithDigits(value, 2) + " " + prefix + "rays/s"
}
