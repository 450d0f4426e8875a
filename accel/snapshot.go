package accel

import (
	"fmt"

	"github.com/achilleasa/polaris-bvh/types"
)

// A serializable copy of a built BVH. Snapshots do not contain mesh data;
// the meshes must be registered again before restoring.
type Snapshot struct {
	// The packed data word of each node.
	Nodes  []uint64
	BBoxes []types.BBox

	Indices []uint32

	// Triangle count of each mesh in registration order.
	TriangleCounts []uint32
}

// Export the built tree.
func (bvh *BVH) Snapshot() (*Snapshot, error) {
	if !bvh.built {
		return nil, fmt.Errorf("accel: cannot snapshot a BVH that has not been built")
	}

	snap := &Snapshot{
		Nodes:          make([]uint64, len(bvh.nodes)),
		BBoxes:         make([]types.BBox, len(bvh.nodes)),
		Indices:        append([]uint32(nil), bvh.indices...),
		TriangleCounts: make([]uint32, len(bvh.meshes)),
	}
	for i := range bvh.nodes {
		snap.Nodes[i] = bvh.nodes[i].data
		snap.BBoxes[i] = bvh.nodes[i].BBox
	}
	for i, mesh := range bvh.meshes {
		snap.TriangleCounts[i] = mesh.TriangleCount()
	}
	return snap, nil
}

// Load a previously exported tree instead of calling Build. The registered
// meshes must match the ones the snapshot was taken from.
func (bvh *BVH) Restore(snap *Snapshot) error {
	if bvh.built {
		return ErrAlreadyBuilt
	}
	if snap == nil {
		return fmt.Errorf("accel: nil snapshot")
	}

	if len(snap.TriangleCounts) != len(bvh.meshes) {
		return fmt.Errorf("accel: snapshot was taken with %d mesh(es); got %d", len(snap.TriangleCounts), len(bvh.meshes))
	}
	for i, mesh := range bvh.meshes {
		if snap.TriangleCounts[i] != mesh.TriangleCount() {
			return fmt.Errorf("accel: snapshot triangle count for mesh %d is %d; got %d", i, snap.TriangleCounts[i], mesh.TriangleCount())
		}
	}
	if len(snap.Nodes) != len(snap.BBoxes) {
		return fmt.Errorf("accel: snapshot has %d nodes but %d bounding boxes", len(snap.Nodes), len(snap.BBoxes))
	}

	size := bvh.TriangleCount()
	if uint32(len(snap.Indices)) != size {
		return fmt.Errorf("accel: snapshot indexes %d triangles; expected %d", len(snap.Indices), size)
	}

	nodes := make([]Node, len(snap.Nodes))
	for i := range nodes {
		nodes[i] = Node{data: snap.Nodes[i], BBox: snap.BBoxes[i]}
	}

	if err := validateTree(nodes, snap.Indices); err != nil {
		return err
	}

	bvh.nodes = nodes
	bvh.indices = append([]uint32(nil), snap.Indices...)
	bvh.built = true
	bvh.stats = BuildStats{
		Meshes:         len(bvh.meshes),
		Triangles:      size,
		AllocatedNodes: uint32(len(nodes)),
		Nodes:          uint32(len(nodes)),
	}
	bvh.stats.collect(bvh.nodes, bvh.cfg)

	bvh.logger.Infof("restored BVH with %d nodes for %d triangles", len(nodes), size)
	return nil
}

// Check the structural invariants of a compacted tree: every node is reachable
// exactly once, left children directly follow their parent, the depth fits
// the traversal stack and the leaves cover a permutation of the triangles.
func validateTree(nodes []Node, indices []uint32) error {
	if len(indices) == 0 {
		if len(nodes) != 0 {
			return fmt.Errorf("%w: tree without triangles has %d nodes", ErrInvariant, len(nodes))
		}
		return nil
	}
	if len(nodes) == 0 {
		return fmt.Errorf("%w: tree has no nodes", ErrInvariant)
	}

	type entry struct {
		node  uint32
		depth int
	}

	visited := make([]bool, len(nodes))
	covered := make([]bool, len(indices))
	seen := make([]bool, len(indices))

	stack := []entry{{0, 0}}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[cur.node] {
			return fmt.Errorf("%w: node %d is reachable more than once", ErrInvariant, cur.node)
		}
		visited[cur.node] = true

		if cur.depth > maxTreeDepth {
			return fmt.Errorf("%w: tree depth exceeds %d", ErrInvariant, maxTreeDepth)
		}

		node := &nodes[cur.node]
		if node.IsLeaf() {
			if uint64(node.End()) > uint64(len(indices)) {
				return fmt.Errorf("%w: leaf %d range [%d, %d) is out of bounds", ErrInvariant, cur.node, node.Start(), node.End())
			}
			for i := node.Start(); i < node.End(); i++ {
				if covered[i] {
					return fmt.Errorf("%w: index slot %d is referenced by more than one leaf", ErrInvariant, i)
				}
				covered[i] = true

				prim := indices[i]
				if int(prim) >= len(indices) || seen[prim] {
					return fmt.Errorf("%w: invalid or duplicate triangle index %d", ErrInvariant, prim)
				}
				seen[prim] = true
			}
			continue
		}

		left, right := cur.node+1, node.RightChild()
		if int(left) >= len(nodes) || right <= left || int(right) >= len(nodes) {
			return fmt.Errorf("%w: inner node %d has invalid children (%d, %d)", ErrInvariant, cur.node, left, right)
		}
		stack = append(stack, entry{right, cur.depth + 1}, entry{left, cur.depth + 1})
	}

	for i := range visited {
		if !visited[i] {
			return fmt.Errorf("%w: node %d is not reachable", ErrInvariant, i)
		}
	}
	for i := range covered {
		if !covered[i] {
			return fmt.Errorf("%w: index slot %d is not referenced by any leaf", ErrInvariant, i)
		}
	}
	return nil
}
