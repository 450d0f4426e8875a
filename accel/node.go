package accel

import (
	"unsafe"

	"github.com/achilleasa/polaris-bvh/types"
)

// The packed size of a Node. Build refuses to run if the compiler lays the
// struct out differently.
const nodeSize = 32

// Bvh node definition. Each node takes 32 bytes.
//
// The data word is a tagged union. Bit 0 is the leaf flag; the remaining
// 31 bits of the low word hold the primitive count for leaves or the split
// axis for inner nodes. The high word holds the offset of the first
// primitive in the index array for leaves or the index of the right child
// for inner nodes. The left child of an inner node at index i is always
// stored at index i+1.
//
// A zero data word marks a slot that was never written by the builder.
type Node struct {
	data uint64
	BBox types.BBox
}

func nodeLayoutOK() bool {
	return unsafe.Sizeof(Node{}) == nodeSize
}

func (n *Node) setLeaf(start, size uint32) {
	n.data = uint64(start)<<32 | uint64(size&0x7fffffff)<<1 | 1
}

func (n *Node) setInner(axis int, rightChild uint32) {
	n.data = uint64(rightChild)<<32 | uint64(uint32(axis)&0x7fffffff)<<1
}

// Check whether this is a leaf node.
func (n *Node) IsLeaf() bool {
	return n.data&1 == 1
}

// Check whether this is an inner node.
func (n *Node) IsInner() bool {
	return n.data&1 == 0
}

// Check whether the node slot is unused.
func (n *Node) IsUnused() bool {
	return n.data == 0
}

// Get the offset of the first leaf primitive in the index array.
func (n *Node) Start() uint32 {
	return uint32(n.data >> 32)
}

// Get the number of leaf primitives.
func (n *Node) Size() uint32 {
	return uint32(n.data) >> 1
}

// Get the offset past the last leaf primitive in the index array.
func (n *Node) End() uint32 {
	return n.Start() + n.Size()
}

// Get the split axis of an inner node.
func (n *Node) Axis() int {
	return int(uint32(n.data) >> 1)
}

// Get the index of the right child of an inner node.
func (n *Node) RightChild() uint32 {
	return uint32(n.data >> 32)
}
