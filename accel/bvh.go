package accel

import (
	"fmt"
	"sort"
	"time"

	"github.com/achilleasa/polaris-bvh/log"
	"github.com/achilleasa/polaris-bvh/types"
	"github.com/dustin/go-humanize"
)

// A bounding volume hierarchy over the triangles of one or more meshes.
//
// Meshes are registered with AddMesh and the tree is constructed by a single
// call to Build. Once built, the BVH is read-only and may be queried from any
// number of goroutines. Triangles are addressed by a global index formed by
// concatenating the triangle ranges of all meshes in registration order.
type BVH struct {
	logger log.Logger
	cfg    Config

	meshes []Mesh

	// meshOffset[i] is the global index of the first triangle of mesh i.
	// The last entry holds the total triangle count.
	meshOffset []uint32

	nodes   []Node
	indices []uint32
	bbox    types.BBox

	built bool
	stats BuildStats

	// Depth at which the builder forces leaves; never above maxTreeDepth.
	depthLimit int
}

// Create a new empty BVH using the supplied config.
func New(cfg Config) (*BVH, error) {
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, err
	}

	return &BVH{
		logger:     log.New("bvh"),
		cfg:        cfg,
		meshOffset: []uint32{0},
		bbox:       types.EmptyBBox(),
		depthLimit: maxTreeDepth,
	}, nil
}

// Register a mesh. Meshes cannot be added after the BVH has been built.
func (bvh *BVH) AddMesh(mesh Mesh) error {
	switch {
	case mesh == nil:
		return ErrNilMesh
	case bvh.built:
		return ErrAlreadyBuilt
	case bvh.cfg.SingleMesh && len(bvh.meshes) > 0:
		return ErrMeshLimit
	}

	total := bvh.meshOffset[len(bvh.meshOffset)-1]
	bvh.meshes = append(bvh.meshes, mesh)
	bvh.meshOffset = append(bvh.meshOffset, total+mesh.TriangleCount())
	bvh.bbox.ExpandByBox(mesh.BBox())
	return nil
}

// Build the hierarchy. Building a BVH without any triangles is not an error;
// all queries against it report a miss.
func (bvh *BVH) Build() error {
	if bvh.built {
		return ErrAlreadyBuilt
	}
	if !nodeLayoutOK() {
		return ErrNodeLayout
	}
	bvh.built = true

	size := bvh.TriangleCount()
	bvh.stats = BuildStats{Meshes: len(bvh.meshes), Triangles: size}
	if size == 0 {
		bvh.logger.Notice("no triangles registered; skipping build")
		return nil
	}

	bvh.logger.Infof("building BVH for %s triangles in %d mesh(es) using %d worker(s)",
		humanize.Comma(int64(size)), len(bvh.meshes), bvh.cfg.Workers)

	start := time.Now()
	b := newBuilder(bvh.cfg, bvh.meshes, bvh.meshOffset, bvh.bbox, bvh.depthLimit)
	if err := b.build(); err != nil {
		bvh.reset()
		return err
	}
	bvh.stats.BuildTime = time.Since(start)
	bvh.stats.BinnedSplits = b.binnedNodes.Load()
	bvh.stats.SerialNodes = b.serialNodes.Load()
	bvh.stats.AllocatedNodes = uint32(len(b.nodes))

	start = time.Now()
	nodeCount := countUsedNodes(b.nodes)
	nodes, err := compactNodes(b.nodes, nodeCount)
	if err != nil {
		bvh.reset()
		return err
	}
	bvh.stats.CompactTime = time.Since(start)

	bvh.nodes = nodes
	bvh.indices = b.indices
	bvh.stats.Nodes = nodeCount
	bvh.stats.collect(bvh.nodes, bvh.cfg)

	bvh.logger.Infof(
		"built BVH in %d ms (compaction: %d ms); nodes: %s, leaves: %s, max depth: %d, SAH cost: %.2f, memory: %s",
		bvh.stats.BuildTime.Nanoseconds()/1e6,
		bvh.stats.CompactTime.Nanoseconds()/1e6,
		humanize.Comma(int64(bvh.stats.Nodes)),
		humanize.Comma(int64(bvh.stats.Leaves)),
		bvh.stats.MaxDepth,
		bvh.stats.SAHCost,
		bvh.stats.Memory(),
	)
	return nil
}

// Release all meshes and tree data. The BVH can be populated and built again.
func (bvh *BVH) Clear() {
	bvh.reset()
	bvh.meshes = nil
	bvh.meshOffset = []uint32{0}
	bvh.bbox = types.EmptyBBox()
	bvh.built = false
}

func (bvh *BVH) reset() {
	bvh.nodes = nil
	bvh.indices = nil
	bvh.stats = BuildStats{}
}

// Get the bounding box of all registered meshes.
func (bvh *BVH) BBox() types.BBox {
	return bvh.bbox
}

// Get the number of registered meshes.
func (bvh *BVH) MeshCount() int {
	return len(bvh.meshes)
}

// Get a registered mesh.
func (bvh *BVH) Mesh(index int) Mesh {
	return bvh.meshes[index]
}

// Get the total number of triangles in all registered meshes.
func (bvh *BVH) TriangleCount() uint32 {
	return bvh.meshOffset[len(bvh.meshOffset)-1]
}

// Check whether Build has been called.
func (bvh *BVH) Built() bool {
	return bvh.built
}

// Get the compacted node array. The returned slice must not be modified.
func (bvh *BVH) Nodes() []Node {
	return bvh.nodes
}

// Get the triangle index array referenced by leaf nodes. The returned slice
// must not be modified.
func (bvh *BVH) Indices() []uint32 {
	return bvh.indices
}

// Get the statistics collected by the last build.
func (bvh *BVH) Stats() BuildStats {
	return bvh.stats
}

// Get the active config.
func (bvh *BVH) Config() Config {
	return bvh.cfg
}

// Map a global triangle index to a mesh index and a mesh-local triangle index.
func (bvh *BVH) findMesh(index uint32) (meshIdx int, local uint32) {
	if len(bvh.meshes) == 1 {
		return 0, index
	}

	meshIdx = sort.Search(len(bvh.meshOffset), func(i int) bool {
		return bvh.meshOffset[i] > index
	}) - 1
	return meshIdx, index - bvh.meshOffset[meshIdx]
}

// Map a global triangle index to its mesh and mesh-local index.
func (bvh *BVH) Triangle(index uint32) (Mesh, uint32, error) {
	if index >= bvh.TriangleCount() {
		return nil, 0, fmt.Errorf("accel: triangle index %d out of range [0, %d)", index, bvh.TriangleCount())
	}
	meshIdx, local := bvh.findMesh(index)
	return bvh.meshes[meshIdx], local, nil
}
