package mesh

import (
	"fmt"

	"github.com/achilleasa/polaris-bvh/types"
)

// Rays whose direction is this close to the triangle plane are treated as misses.
const detEpsilon = 1e-8

// An indexed triangle mesh.
type TriangleMesh struct {
	Name string

	positions []types.Vec3
	normals   []types.Vec3
	texCoords []types.Vec2
	faces     [][3]uint32

	bbox types.BBox
}

// Create a mesh from vertex attribute buffers and a face list. The normal and
// texture coordinate buffers must either be empty or contain one entry per
// position.
func NewTriangleMesh(name string, positions, normals []types.Vec3, texCoords []types.Vec2, faces [][3]uint32) (*TriangleMesh, error) {
	if len(normals) != 0 && len(normals) != len(positions) {
		return nil, fmt.Errorf("mesh %q: expected %d normals; got %d", name, len(positions), len(normals))
	}
	if len(texCoords) != 0 && len(texCoords) != len(positions) {
		return nil, fmt.Errorf("mesh %q: expected %d texture coordinates; got %d", name, len(positions), len(texCoords))
	}

	for faceIdx, face := range faces {
		for _, vIdx := range face {
			if int(vIdx) >= len(positions) {
				return nil, fmt.Errorf("mesh %q: face %d references vertex %d; mesh has %d vertices", name, faceIdx, vIdx, len(positions))
			}
		}
	}

	m := &TriangleMesh{
		Name:      name,
		positions: positions,
		normals:   normals,
		texCoords: texCoords,
		faces:     faces,
		bbox:      types.EmptyBBox(),
	}

	// Only referenced vertices contribute to the bounds.
	for _, face := range faces {
		for _, vIdx := range face {
			m.bbox.ExpandBy(positions[vIdx])
		}
	}

	return m, nil
}

// Get the number of triangles in the mesh.
func (m *TriangleMesh) TriangleCount() uint32 {
	return uint32(len(m.faces))
}

// Get the mesh bounding box.
func (m *TriangleMesh) BBox() types.BBox {
	return m.bbox
}

func (m *TriangleMesh) vertices(index uint32) (p0, p1, p2 types.Vec3) {
	f := m.faces[index]
	return m.positions[f[0]], m.positions[f[1]], m.positions[f[2]]
}

// Get the bounding box of a triangle.
func (m *TriangleMesh) TriangleBBox(index uint32) types.BBox {
	return types.BBoxFromPoints(m.vertices(index))
}

// Get the centroid of a triangle.
func (m *TriangleMesh) Centroid(index uint32) types.Vec3 {
	p0, p1, p2 := m.vertices(index)
	return p0.Add(p1).Add(p2).Mul(1.0 / 3.0)
}

// Get the area of a triangle.
func (m *TriangleMesh) SurfaceArea(index uint32) float32 {
	p0, p1, p2 := m.vertices(index)
	return 0.5 * p1.Sub(p0).Cross(p2.Sub(p0)).Len()
}

// Intersect a ray with a triangle using the Möller-Trumbore algorithm. The
// returned t is not checked against the ray segment.
func (m *TriangleMesh) RayIntersect(index uint32, ray *types.Ray) (u, v, t float32, ok bool) {
	p0, p1, p2 := m.vertices(index)

	edge1 := p1.Sub(p0)
	edge2 := p2.Sub(p0)

	pvec := ray.Dir.Cross(edge2)

	// Ray parallel to the triangle plane
	det := edge1.Dot(pvec)
	if det > -detEpsilon && det < detEpsilon {
		return 0, 0, 0, false
	}
	invDet := 1.0 / det

	tvec := ray.Origin.Sub(p0)
	u = tvec.Dot(pvec) * invDet
	if u < 0 || u > 1 {
		return 0, 0, 0, false
	}

	qvec := tvec.Cross(edge1)
	v = ray.Dir.Dot(qvec) * invDet
	if v < 0 || u+v > 1 {
		return 0, 0, 0, false
	}

	t = edge2.Dot(qvec) * invDet
	return u, v, t, true
}

// Get the vertex positions.
func (m *TriangleMesh) Positions() []types.Vec3 {
	return m.positions
}

// Get the vertex normals. The returned slice is empty if the mesh defines no normals.
func (m *TriangleMesh) Normals() []types.Vec3 {
	return m.normals
}

// Get the vertex texture coordinates. The returned slice is empty if the mesh
// defines no texture coordinates.
func (m *TriangleMesh) TexCoords() []types.Vec2 {
	return m.texCoords
}

// Get the triangle vertex indices.
func (m *TriangleMesh) Faces() [][3]uint32 {
	return m.faces
}
