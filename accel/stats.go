package accel

import (
	"time"

	"github.com/dustin/go-humanize"
)

// Statistics collected while building a BVH.
type BuildStats struct {
	Meshes    int
	Triangles uint32

	// Node slots reserved by the builder and nodes left after compaction.
	AllocatedNodes uint32
	Nodes          uint32
	InnerNodes     uint32
	Leaves         uint32

	MaxDepth    int
	MaxLeafSize uint32

	// Nodes split by the parallel binned builder and nodes handled by
	// the serial sweep.
	BinnedSplits uint32
	SerialNodes  uint32

	// Expected cost of tracing a ray through the tree.
	SAHCost float32

	BuildTime   time.Duration
	CompactTime time.Duration
}

// Average number of triangles per leaf.
func (s BuildStats) AvgLeafSize() float32 {
	if s.Leaves == 0 {
		return 0
	}
	return float32(s.Triangles) / float32(s.Leaves)
}

// Memory used by the compacted node and index arrays.
func (s BuildStats) MemoryBytes() uint64 {
	return uint64(s.Nodes)*nodeSize + uint64(s.Triangles)*4
}

// Memory reserved during the build.
func (s BuildStats) PeakMemoryBytes() uint64 {
	// Nodes, indices, scratch buffers and cached triangle bounds.
	return uint64(s.AllocatedNodes)*nodeSize + uint64(s.Triangles)*(4+4+4+36)
}

// Human readable memory usage.
func (s BuildStats) Memory() string {
	return humanize.IBytes(s.MemoryBytes())
}

// Walk the tree and fill in the node, leaf and SAH cost statistics.
func (s *BuildStats) collect(nodes []Node, cfg Config) {
	if len(nodes) == 0 {
		return
	}
	s.SAHCost = s.visit(nodes, 0, 0, cfg)
}

func (s *BuildStats) visit(nodes []Node, nodeIdx uint32, depth int, cfg Config) float32 {
	node := &nodes[nodeIdx]
	if depth > s.MaxDepth {
		s.MaxDepth = depth
	}

	if node.IsLeaf() {
		s.Leaves++
		if node.Size() > s.MaxLeafSize {
			s.MaxLeafSize = node.Size()
		}
		return cfg.IntersectionCost * float32(node.Size())
	}

	s.InnerNodes++
	left, right := nodeIdx+1, node.RightChild()
	costLeft := s.visit(nodes, left, depth+1, cfg)
	costRight := s.visit(nodes, right, depth+1, cfg)

	sa := node.BBox.SurfaceArea()
	if sa == 0 {
		return 2*cfg.TraversalCost + costLeft + costRight
	}
	saLeft := nodes[left].BBox.SurfaceArea()
	saRight := nodes[right].BBox.SurfaceArea()
	return 2*cfg.TraversalCost + (saLeft*costLeft+saRight*costRight)/sa
}
