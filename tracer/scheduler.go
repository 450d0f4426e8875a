package tracer

import "math"

// The BlockScheduler interface is implemented by all block scheduling algorithms.
type BlockScheduler interface {
	// Split frame into blocks of variable height and assign to the pool
	// of tracers using feedback collected from previous frames.
	//
	// This function returns the block height assignment for each tracer
	// in the input list.
	Schedule(tracers []Tracer, frameH uint32) []uint32
}

// The naive scheduler splits the frame rows proportionally to each tracer's
// speed estimate.
type naiveScheduler struct{}

// Create a new naive scheduler instance.
func NaiveScheduler() BlockScheduler {
	return naiveScheduler{}
}

func (naiveScheduler) Schedule(tracers []Tracer, frameH uint32) []uint32 {
	return assignBySpeed(tracers, frameH)
}

// The perfect scheduler assumes that the volume of tracing work between two
// subsequent frames is approximately the same.
type perfectScheduler struct {
	blockAssignment []uint32
}

// Create a new perfect scheduler instance
func PerfectScheduler() BlockScheduler {
	return &perfectScheduler{}
}

// Split frame into blocks of variable height and assign to the pool
// of tracers using feedback collected from previous frames.
//
// This function returns the block height assignment for each tracer in the
// input list. When previous frame information is available the scheduler
// uses the following formula for estimating the workload for tracer w and frame i+1:
// w_i, f_i+1 = (blockH,w_i / time,w_i) / Σ(blockH_i-1 / time,i-1)
func (sch *perfectScheduler) Schedule(tracers []Tracer, frameH uint32) []uint32 {
	// If this is the first time we try to schedule or the number of tracers
	// has changed we need to reset the block assignments
	if len(sch.blockAssignment) != len(tracers) {
		sch.blockAssignment = assignBySpeed(tracers, frameH)
		return sch.blockAssignment
	}

	// Use last frame statistics
	var total float64
	throughput := make([]float64, len(tracers))
	for idx, tr := range tracers {
		stats := tr.Stats()
		blockTime := math.Max(1.0, float64(stats.BlockTime))
		throughput[idx] = float64(stats.BlockH) / blockTime
		total += throughput[idx]
	}

	// Nothing rendered so far; fall back to the speed estimates.
	if total == 0 {
		sch.blockAssignment = assignBySpeed(tracers, frameH)
		return sch.blockAssignment
	}

	scaler := float64(frameH) / total
	for idx := range tracers {
		sch.blockAssignment[idx] = uint32(math.Max(1.0, math.Floor(throughput[idx]*scaler)))
	}

	balance(sch.blockAssignment, frameH)
	return sch.blockAssignment
}

func assignBySpeed(tracers []Tracer, frameH uint32) []uint32 {
	blockAssignment := make([]uint32, len(tracers))
	if len(tracers) == 0 {
		return blockAssignment
	}

	// Get speed estimate for each tracer and distribute rows accordingly.
	// Tracers without an estimate are treated as equally fast.
	var total float64
	speeds := make([]float64, len(tracers))
	for idx, tr := range tracers {
		speeds[idx] = math.Max(0, float64(tr.SpeedEstimate()))
		total += speeds[idx]
	}
	if total == 0 {
		for idx := range speeds {
			speeds[idx] = 1
		}
		total = float64(len(tracers))
	}
	scaler := float64(frameH) / total

	for idx, speed := range speeds {
		blockAssignment[idx] = uint32(math.Max(1.0, math.Floor(speed*scaler)))
	}

	balance(blockAssignment, frameH)
	return blockAssignment
}

// Adjust the assignment so that the rows add up to the frame height. Missing
// rows are appended to the first tracer; extra rows are removed from the
// tracers with the largest blocks.
func balance(blockAssignment []uint32, frameH uint32) {
	var scheduledRows uint32
	for _, rows := range blockAssignment {
		scheduledRows += rows
	}

	for ; scheduledRows > frameH; scheduledRows-- {
		largest := 0
		for idx, rows := range blockAssignment {
			if rows > blockAssignment[largest] {
				largest = idx
			}
		}
		blockAssignment[largest]--
	}

	blockAssignment[0] += frameH - scheduledRows
}
