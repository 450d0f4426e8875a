package accel

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/achilleasa/polaris-bvh/types"
	"golang.org/x/sync/errgroup"
)

// Cached bounds for a single triangle.
type primInfo struct {
	bbox     types.BBox
	centroid types.Vec3
}

// The SAH split selected for a node range.
type binnedSplit struct {
	index     int
	leftCount uint32
	leftBox   types.BBox
	rightBox  types.BBox
}

type builder struct {
	cfg Config

	nodes   []Node
	indices []uint32
	prims   []primInfo

	// Scatter target for the parallel partitioning step.
	temp []uint32

	// Prefix surface areas used by the serial sweep. Tasks only touch the
	// slice entries that correspond to their own index range.
	leftAreas []float32

	group *errgroup.Group

	// Nodes at this depth become leaves.
	depthLimit int

	// Counters reported by the build stats.
	binnedNodes atomic.Uint32
	serialNodes atomic.Uint32
}

func newBuilder(cfg Config, meshes []Mesh, meshOffset []uint32, bbox types.BBox, depthLimit int) *builder {
	size := meshOffset[len(meshOffset)-1]

	b := &builder{
		cfg:        cfg,
		depthLimit: depthLimit,
		nodes:      make([]Node, 2*size),
		indices:    make([]uint32, size),
		prims:      make([]primInfo, size),
		temp:       make([]uint32, size),
		leftAreas:  make([]float32, size),
		group:      &errgroup.Group{},
	}
	b.group.SetLimit(cfg.Workers)

	for meshIdx, mesh := range meshes {
		offset := meshOffset[meshIdx]
		b.parallelFor(mesh.TriangleCount(), func(_ int, lo, hi uint32) {
			for tri := lo; tri < hi; tri++ {
				b.indices[offset+tri] = offset + tri
				b.prims[offset+tri] = primInfo{
					bbox:     mesh.TriangleBBox(tri),
					centroid: mesh.Centroid(tri),
				}
			}
		})
	}

	b.nodes[0].BBox = bbox
	return b
}

// Build the tree and wait for all forked subtree tasks to complete.
func (b *builder) build() error {
	b.group.Go(func() error {
		if b.cfg.Split != SplitSAH {
			return b.buildMedian(0, 0, uint32(len(b.indices)), 0)
		}
		return b.buildBinned(0, 0, uint32(len(b.indices)), 0)
	})
	return b.group.Wait()
}

// Split chunks of [0, n) among at most Config.Workers goroutines. The
// callback receives the chunk index along with the chunk bounds.
func (b *builder) parallelFor(n uint32, fn func(chunk int, lo, hi uint32)) {
	grain := uint32(b.cfg.GrainSize)
	if b.cfg.Workers == 1 || n <= grain {
		fn(0, 0, n)
		return
	}

	var g errgroup.Group
	g.SetLimit(b.cfg.Workers)
	for chunk, lo := 0, uint32(0); lo < n; chunk, lo = chunk+1, lo+grain {
		chunk, lo := chunk, lo
		hi := min(lo+grain, n)
		g.Go(func() error {
			fn(chunk, lo, hi)
			return nil
		})
	}
	g.Wait()
}

func (b *builder) numChunks(n uint32) int {
	grain := uint32(b.cfg.GrainSize)
	if b.cfg.Workers == 1 || n <= grain {
		return 1
	}
	return int((n + grain - 1) / grain)
}

// Build the subtree rooted at nodeIdx for the index range [start, end) using
// binned SAH splits. The right child of each split is handed to a new task
// if a worker slot is available and built inline otherwise; the left child
// is processed by the current task.
func (b *builder) buildBinned(nodeIdx, start, end uint32, depth int) error {
	for {
		size := end - start
		if size < uint32(b.cfg.SerialThreshold) || depth >= b.depthLimit {
			b.buildSerial(nodeIdx, start, end, depth)
			return nil
		}

		node := &b.nodes[nodeIdx]
		axis := node.BBox.LargestAxis()
		minVal := node.BBox.Min[axis]
		extent := node.BBox.Max[axis] - minVal
		if !(extent > 0) {
			b.buildSerial(nodeIdx, start, end, depth)
			return nil
		}
		invBinSize := float32(b.cfg.Bins) / extent

		bins := b.binPrimitives(start, end, axis, minVal, invBinSize)

		// All centroids coincide; no split can separate them.
		if bins.centroidBounds.IsPoint() {
			idx := b.indices[start:end]
			sort.Slice(idx, func(i, j int) bool { return idx[i] < idx[j] })
			node.setLeaf(start, size)
			return nil
		}

		split, found := b.findBinnedSplit(&bins, node.BBox, size)
		if !found {
			b.buildSerial(nodeIdx, start, end, depth)
			return nil
		}

		if err := b.partition(start, end, axis, minVal, invBinSize, split); err != nil {
			return err
		}
		b.binnedNodes.Add(1)

		leftIdx := nodeIdx + 1
		rightIdx := nodeIdx + 2*split.leftCount
		mid := start + split.leftCount

		b.nodes[leftIdx].BBox = split.leftBox
		b.nodes[rightIdx].BBox = split.rightBox
		node.setInner(axis, rightIdx)

		// The loop below keeps updating end and depth; the forked task
		// works on its own copies.
		rightEnd, childDepth := end, depth+1
		if !b.group.TryGo(func() error { return b.buildBinned(rightIdx, mid, rightEnd, childDepth) }) {
			if err := b.buildBinned(rightIdx, mid, rightEnd, childDepth); err != nil {
				return err
			}
		}

		nodeIdx, end, depth = leftIdx, mid, childDepth
	}
}

// Accumulate per-bin counts and bounds for the range [start, end) in parallel.
func (b *builder) binPrimitives(start, end uint32, axis int, minVal, invBinSize float32) bins {
	size := end - start
	partial := make([]bins, b.numChunks(size))
	for i := range partial {
		partial[i] = newBins(b.cfg.Bins)
	}

	b.parallelFor(size, func(chunk int, lo, hi uint32) {
		local := &partial[chunk]
		for i := start + lo; i < start+hi; i++ {
			prim := &b.prims[b.indices[i]]
			bin := binIndex(prim.centroid[axis], minVal, invBinSize, local.n)
			local.add(bin, prim.bbox, prim.centroid)
		}
	})

	for i := 1; i < len(partial); i++ {
		partial[0].merge(&partial[i])
	}
	return partial[0]
}

// Evaluate the SAH cost of splitting after each bin and return the cheapest
// split if it beats the cost of a leaf. Splits that leave either side empty
// are never selected.
func (b *builder) findBinnedSplit(bins *bins, nodeBox types.BBox, size uint32) (binnedSplit, bool) {
	n := bins.n

	var leftBox [maxBins]types.BBox
	var leftCount [maxBins]uint32
	leftBox[0] = bins.bbox[0]
	leftCount[0] = bins.counts[0]
	for i := 1; i < n; i++ {
		leftBox[i] = types.MergeBBox(leftBox[i-1], bins.bbox[i])
		leftCount[i] = leftCount[i-1] + bins.counts[i]
	}

	bestCost := b.cfg.IntersectionCost * float32(size)
	triFactor := b.cfg.IntersectionCost / nodeBox.SurfaceArea()
	best := binnedSplit{index: -1}

	rightBox := bins.bbox[n-1]
	for i := n - 2; i >= 0; i-- {
		primsLeft := leftCount[i]
		primsRight := size - primsLeft

		if primsLeft != 0 && primsRight != 0 {
			cost := 2*b.cfg.TraversalCost +
				triFactor*(float32(primsLeft)*leftBox[i].SurfaceArea()+float32(primsRight)*rightBox.SurfaceArea())
			if cost < bestCost {
				bestCost = cost
				best = binnedSplit{
					index:     i,
					leftCount: primsLeft,
					leftBox:   leftBox[i],
					rightBox:  rightBox,
				}
			}
		}

		rightBox.ExpandByBox(bins.bbox[i])
	}

	return best, best.index != -1
}

// Reorder the range [start, end) so that all triangles whose centroid falls
// in a bin up to and including split.index come first. Workers reserve
// output slots through two shared cursors and write into the scratch buffer
// which is then copied back.
func (b *builder) partition(start, end uint32, axis int, minVal, invBinSize float32, split binnedSplit) error {
	size := end - start

	var offsetLeft, offsetRight atomic.Uint32
	offsetRight.Store(split.leftCount)

	b.parallelFor(size, func(_ int, lo, hi uint32) {
		var countLeft, countRight uint32
		for i := start + lo; i < start+hi; i++ {
			if b.isLeft(b.indices[i], axis, minVal, invBinSize, split.index) {
				countLeft++
			} else {
				countRight++
			}
		}

		idxLeft := offsetLeft.Add(countLeft) - countLeft
		idxRight := offsetRight.Add(countRight) - countRight

		for i := start + lo; i < start+hi; i++ {
			prim := b.indices[i]
			if b.isLeft(prim, axis, minVal, invBinSize, split.index) {
				b.temp[start+idxLeft] = prim
				idxLeft++
			} else {
				b.temp[start+idxRight] = prim
				idxRight++
			}
		}
	})

	if offsetLeft.Load() != split.leftCount || offsetRight.Load() != size {
		return fmt.Errorf("%w: partition produced %d/%d triangles; expected %d/%d",
			ErrInvariant, offsetLeft.Load(), offsetRight.Load()-split.leftCount, split.leftCount, size-split.leftCount)
	}

	copy(b.indices[start:end], b.temp[start:end])
	return nil
}

func (b *builder) isLeft(prim uint32, axis int, minVal, invBinSize float32, splitIndex int) bool {
	return binIndex(b.prims[prim].centroid[axis], minVal, invBinSize, b.cfg.Bins) <= splitIndex
}

// Build the subtree for [start, end) by sorting the triangles along each
// axis and sweeping over every possible split position. Triangles with equal
// centroid coordinates are ordered by index so the result does not depend on
// the incoming order of the range.
func (b *builder) buildSerial(nodeIdx, start, end uint32, depth int) {
	b.serialNodes.Add(1)

	node := &b.nodes[nodeIdx]
	size := end - start
	idx := b.indices[start:end]

	// The node bounds inherited from a binned parent may be conservative;
	// serially built nodes always get exact bounds.
	nodeBox := types.EmptyBBox()
	centroidBounds := types.EmptyBBox()
	for _, prim := range idx {
		nodeBox.ExpandByBox(b.prims[prim].bbox)
		centroidBounds.ExpandBy(b.prims[prim].centroid)
	}
	node.BBox = nodeBox

	if size <= 1 || depth >= b.depthLimit || centroidBounds.IsPoint() {
		sort.Slice(idx, func(i, j int) bool { return idx[i] < idx[j] })
		node.setLeaf(start, size)
		return
	}

	leftAreas := b.leftAreas[start:end]
	bestCost := b.cfg.IntersectionCost * float32(size)
	bestIndex, bestAxis := uint32(0), -1
	triFactor := b.cfg.IntersectionCost / nodeBox.SurfaceArea()

	for axis := 0; axis < 3; axis++ {
		b.sortByAxis(idx, axis)

		bbox := types.EmptyBBox()
		for i, prim := range idx {
			bbox.ExpandByBox(b.prims[prim].bbox)
			leftAreas[i] = bbox.SurfaceArea()
		}

		bbox.Reset()
		for i := size - 1; i >= 1; i-- {
			bbox.ExpandByBox(b.prims[idx[i]].bbox)

			cost := 2*b.cfg.TraversalCost +
				triFactor*(float32(i)*leftAreas[i-1]+float32(size-i)*bbox.SurfaceArea())
			if cost < bestCost {
				bestCost = cost
				bestIndex = i
				bestAxis = axis
			}
		}
	}

	if bestAxis == -1 {
		node.setLeaf(start, size)
		return
	}

	b.sortByAxis(idx, bestAxis)

	leftCount := bestIndex
	leftIdx := nodeIdx + 1
	rightIdx := nodeIdx + 2*leftCount
	node.setInner(bestAxis, rightIdx)

	b.buildSerial(leftIdx, start, start+leftCount, depth+1)
	b.buildSerial(rightIdx, start+leftCount, end, depth+1)
}

// Build the subtree for [start, end) by splitting along the largest axis of
// the centroid bounds, either at the axis midpoint or at the median
// centroid. Right subtrees are forked like in buildBinned.
func (b *builder) buildMedian(nodeIdx, start, end uint32, depth int) error {
	for {
		b.serialNodes.Add(1)

		node := &b.nodes[nodeIdx]
		size := end - start
		idx := b.indices[start:end]

		nodeBox := types.EmptyBBox()
		centroidBounds := types.EmptyBBox()
		for _, prim := range idx {
			nodeBox.ExpandByBox(b.prims[prim].bbox)
			centroidBounds.ExpandBy(b.prims[prim].centroid)
		}
		node.BBox = nodeBox

		if size <= uint32(b.cfg.MaxLeafSize) || depth >= b.depthLimit || centroidBounds.IsPoint() {
			sort.Slice(idx, func(i, j int) bool { return idx[i] < idx[j] })
			node.setLeaf(start, size)
			return nil
		}

		axis := centroidBounds.LargestAxis()
		b.sortByAxis(idx, axis)

		leftCount := size / 2
		if b.cfg.Split == SplitMiddle {
			mid := 0.5 * (centroidBounds.Min[axis] + centroidBounds.Max[axis])
			split := uint32(sort.Search(len(idx), func(i int) bool {
				return b.prims[idx[i]].centroid[axis] >= mid
			}))
			if split != 0 && split != size {
				leftCount = split
			}
		}

		leftIdx := nodeIdx + 1
		rightIdx := nodeIdx + 2*leftCount
		mid := start + leftCount
		node.setInner(axis, rightIdx)

		rightEnd, childDepth := end, depth+1
		if !b.group.TryGo(func() error { return b.buildMedian(rightIdx, mid, rightEnd, childDepth) }) {
			if err := b.buildMedian(rightIdx, mid, rightEnd, childDepth); err != nil {
				return err
			}
		}

		nodeIdx, end, depth = leftIdx, mid, childDepth
	}
}

func (b *builder) sortByAxis(idx []uint32, axis int) {
	sort.Slice(idx, func(i, j int) bool {
		ci := b.prims[idx[i]].centroid[axis]
		cj := b.prims[idx[j]].centroid[axis]
		if ci != cj {
			return ci < cj
		}
		return idx[i] < idx[j]
	})
}
