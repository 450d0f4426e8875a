package accel

import "github.com/achilleasa/polaris-bvh/types"

// Per-bin triangle counts and bounding boxes for a single range. Partial bin
// sets computed by different workers are combined with merge; the empty set
// returned by newBins is the identity element.
type bins struct {
	n      int
	counts [maxBins]uint32
	bbox   [maxBins]types.BBox

	// Bounds of all binned centroids.
	centroidBounds types.BBox
}

func newBins(n int) bins {
	b := bins{n: n, centroidBounds: types.EmptyBBox()}
	for i := 0; i < n; i++ {
		b.bbox[i] = types.EmptyBBox()
	}
	return b
}

func (b *bins) add(bin int, bbox types.BBox, centroid types.Vec3) {
	b.counts[bin]++
	b.bbox[bin].ExpandByBox(bbox)
	b.centroidBounds.ExpandBy(centroid)
}

func (b *bins) merge(other *bins) {
	for i := 0; i < b.n; i++ {
		b.counts[i] += other.counts[i]
		b.bbox[i].ExpandByBox(other.bbox[i])
	}
	b.centroidBounds.ExpandByBox(other.centroidBounds)
}

// Map a centroid coordinate to a bin. The result is clamped so binning and
// partitioning always agree on the side of a triangle.
func binIndex(value, min, invBinSize float32, n int) int {
	idx := int((value - min) * invBinSize)
	if idx < 0 {
		return 0
	}
	if idx >= n {
		return n - 1
	}
	return idx
}
