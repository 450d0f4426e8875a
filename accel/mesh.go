package accel

import "github.com/achilleasa/polaris-bvh/types"

// The Mesh interface is implemented by triangle meshes that can be
// partitioned by the BVH.
type Mesh interface {
	// Get the number of triangles in the mesh.
	TriangleCount() uint32

	// Get the bounding box of the entire mesh.
	BBox() types.BBox

	// Get the bounding box of a triangle.
	TriangleBBox(index uint32) types.BBox

	// Get the centroid of a triangle.
	Centroid(index uint32) types.Vec3

	// Intersect a ray with a triangle. On a hit, u and v are the first two
	// barycentric coordinates and t the ray distance. Callers are responsible
	// for checking that t lies inside the ray segment.
	RayIntersect(index uint32, ray *types.Ray) (u, v, t float32, ok bool)

	// Vertex attribute buffers indexed by the face vertex indices. Normals and
	// texture coordinates may be empty.
	Positions() []types.Vec3
	Normals() []types.Vec3
	TexCoords() []types.Vec2
	Faces() [][3]uint32
}
