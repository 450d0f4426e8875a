package accel

import "fmt"

// Remove the unused slots from a node array and rewrite the right child
// references of inner nodes. The array is walked backwards so the number of
// unused slots between a node and its right child is known by the time the
// node is visited. Left children stay adjacent to their parents since the
// builder never leaves a gap between the two.
func compactNodes(nodes []Node, nodeCount uint32) ([]Node, error) {
	compact := make([]Node, nodeCount)
	skippedAccum := make([]uint32, len(nodes))

	j := len(nodes)
	var skipped uint32
	for i := int(nodeCount) - 1; i >= 0; i-- {
		j--
		for j >= 0 && nodes[j].IsUnused() {
			skipped++
			j--
		}
		if j < 0 {
			return nil, fmt.Errorf("%w: found %d nodes while compacting; expected %d", ErrInvariant, int(nodeCount)-1-i, nodeCount)
		}

		node := nodes[j]
		skippedAccum[j] = skipped

		if node.IsInner() {
			rc := node.RightChild()
			if int(rc) <= j || int(rc) >= len(nodes) || nodes[rc].IsUnused() {
				return nil, fmt.Errorf("%w: node %d references invalid right child %d", ErrInvariant, j, rc)
			}
			newRC := i + int(rc) - j - int(skipped-skippedAccum[rc])
			node.setInner(node.Axis(), uint32(newRC))
		}
		compact[i] = node
	}

	return compact, nil
}

// Count the nodes written by the builder.
func countUsedNodes(nodes []Node) uint32 {
	var count uint32
	for i := range nodes {
		if !nodes[i].IsUnused() {
			count++
		}
	}
	return count
}
