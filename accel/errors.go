package accel

import "errors"

var (
	ErrAlreadyBuilt = errors.New("accel: bvh has already been built")
	ErrMeshLimit    = errors.New("accel: only a single mesh is supported")
	ErrNilMesh      = errors.New("accel: nil mesh")
	ErrNodeLayout   = errors.New("accel: bvh node is not packed into 32 bytes; check the target struct layout")
	ErrInvariant    = errors.New("accel: build invariant violated")
)
