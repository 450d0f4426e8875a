package accel

import (
	"math"

	"github.com/achilleasa/polaris-bvh/types"
)

// Intersection details for the closest hit along a ray.
type Intersection struct {
	// Distance along the ray.
	T float32

	// Interpolated texture coordinates. Meshes without texture coordinates
	// report the barycentric coordinates of the hit instead.
	UV types.Vec2

	// Hit position.
	P types.Vec3

	// Frame built around the true triangle normal.
	GeoFrame types.Frame

	// Frame built around the interpolated vertex normal. Equals GeoFrame
	// for meshes without normals.
	ShFrame types.Frame

	// The intersected mesh, its registration index and the mesh-local
	// triangle index.
	Mesh      Mesh
	MeshIndex int
	Triangle  uint32
}

// Find the closest intersection between the ray segment [ray.MinT, ray.MaxT]
// and any registered triangle.
//
// If shadowRay is true the search stops at the first hit found and its is not
// populated; it may be nil in that case. Rays whose MinT equals
// types.Epsilon get their lower bound scaled by the magnitude of the ray
// origin.
func (bvh *BVH) RayIntersect(ray types.Ray, its *Intersection, shadowRay bool) bool {
	if its != nil {
		its.T = float32(math.Inf(1))
	}

	if ray.MinT == types.Epsilon {
		ray.MinT = max(ray.MinT, ray.MinT*ray.Origin.Abs().MaxComponent())
	}

	if len(bvh.nodes) == 0 || ray.MaxT < ray.MinT {
		return false
	}

	var (
		stack     [maxTreeDepth]uint32
		stackSize int
		nodeIdx   uint32
		foundHit  bool
		hitMesh   int
		hitTri    uint32
		hitU      float32
		hitV      float32
		bestT     = float32(math.Inf(1))
	)

	for {
		node := &bvh.nodes[nodeIdx]

		if !node.BBox.RayIntersect(&ray) {
			if stackSize == 0 {
				break
			}
			stackSize--
			nodeIdx = stack[stackSize]
			continue
		}

		if node.IsInner() {
			left, right := nodeIdx+1, node.RightChild()
			if bvh.cfg.Traversal == NearestFirst {
				nearLeft, okLeft := bvh.nodes[left].entryDistance(&ray)
				nearRight, okRight := bvh.nodes[right].entryDistance(&ray)
				switch {
				case okLeft && okRight:
					if nearRight < nearLeft {
						left, right = right, left
					}
				case okLeft:
					nodeIdx = left
					continue
				case okRight:
					nodeIdx = right
					continue
				default:
					if stackSize == 0 {
						return bvh.finishHit(&ray, its, foundHit, hitMesh, hitTri, hitU, hitV)
					}
					stackSize--
					nodeIdx = stack[stackSize]
					continue
				}
			}

			stack[stackSize] = right
			stackSize++
			nodeIdx = left
			continue
		}

		for i := node.Start(); i < node.End(); i++ {
			meshIdx, tri := bvh.findMesh(bvh.indices[i])
			u, v, t, ok := bvh.meshes[meshIdx].RayIntersect(tri, &ray)
			if !ok || t < ray.MinT || t > ray.MaxT || t >= bestT {
				continue
			}

			if shadowRay {
				return true
			}

			foundHit = true
			bestT = t
			ray.MaxT = t
			hitMesh, hitTri, hitU, hitV = meshIdx, tri, u, v
		}

		if stackSize == 0 {
			break
		}
		stackSize--
		nodeIdx = stack[stackSize]
	}

	return bvh.finishHit(&ray, its, foundHit, hitMesh, hitTri, hitU, hitV)
}

// Check whether any triangle blocks the ray segment.
func (bvh *BVH) Occluded(ray types.Ray) bool {
	return bvh.RayIntersect(ray, nil, true)
}

// Get the distance at which the ray segment enters the node bbox.
func (n *Node) entryDistance(ray *types.Ray) (float32, bool) {
	nearT, farT, ok := n.BBox.RayIntersectRange(ray)
	if !ok || farT < ray.MinT || nearT > ray.MaxT {
		return 0, false
	}
	return max(nearT, ray.MinT), true
}

func (bvh *BVH) finishHit(ray *types.Ray, its *Intersection, foundHit bool, meshIdx int, tri uint32, u, v float32) bool {
	if !foundHit {
		return false
	}
	if its != nil {
		bvh.fillIntersection(its, ray.MaxT, meshIdx, tri, u, v)
	}
	return true
}

// Populate the shading details for a hit.
func (bvh *BVH) fillIntersection(its *Intersection, t float32, meshIdx int, tri uint32, u, v float32) {
	mesh := bvh.meshes[meshIdx]
	face := mesh.Faces()[tri]
	i0, i1, i2 := face[0], face[1], face[2]

	bary := types.Vec3{1 - u - v, u, v}

	positions := mesh.Positions()
	p0, p1, p2 := positions[i0], positions[i1], positions[i2]

	its.T = t
	its.Mesh = mesh
	its.MeshIndex = meshIdx
	its.Triangle = tri
	its.P = types.Barycentric3(bary, p0, p1, p2)

	if texCoords := mesh.TexCoords(); len(texCoords) > 0 {
		its.UV = types.Barycentric2(bary, texCoords[i0], texCoords[i1], texCoords[i2])
	} else {
		its.UV = types.Vec2{u, v}
	}

	its.GeoFrame = types.NewFrame(p1.Sub(p0).Cross(p2.Sub(p0)).Normalize())

	if normals := mesh.Normals(); len(normals) > 0 {
		its.ShFrame = types.NewFrame(types.Barycentric3(bary, normals[i0], normals[i1], normals[i2]).Normalize())
	} else {
		its.ShFrame = its.GeoFrame
	}
}
