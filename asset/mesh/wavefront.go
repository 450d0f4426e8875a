package mesh

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/achilleasa/polaris-bvh/asset"
	"github.com/achilleasa/polaris-bvh/log"
	"github.com/achilleasa/polaris-bvh/types"
	"github.com/dustin/go-humanize"
)

// Camera settings embedded in a scene file.
type CameraDef struct {
	FOV  float32
	Eye  types.Vec3
	Look types.Vec3
	Up   types.Vec3

	// True if the scene file contains at least one camera directive.
	Defined bool
}

// The meshes and camera settings loaded from a scene file.
type Model struct {
	Meshes []*TriangleMesh
	Camera CameraDef
}

// Get the total number of triangles in all meshes.
func (m *Model) TriangleCount() uint32 {
	var total uint32
	for _, mesh := range m.Meshes {
		total += mesh.TriangleCount()
	}
	return total
}

// A face vertex; -1 marks a missing texture coordinate or normal.
type vertexKey struct {
	p, uv, n int
}

// Accumulates the de-duplicated vertices and faces of a single object.
type meshBuilder struct {
	name string

	vertexMap map[vertexKey]uint32
	positions []types.Vec3
	normals   []types.Vec3
	uvs       []types.Vec2
	faces     [][3]uint32

	missingNormals bool
	missingUVs     bool
}

func newMeshBuilder(name string) *meshBuilder {
	return &meshBuilder{
		name:      name,
		vertexMap: make(map[vertexKey]uint32),
	}
}

type wavefrontReader struct {
	logger log.Logger

	model *Model

	// Coordinate lists shared by all objects and included files.
	vertexList []types.Vec3
	normalList []types.Vec3
	uvList     []types.Vec2

	cur *meshBuilder

	// An error stack that provides additional error information when
	// scene files include other files.
	errStack []string
}

func newWavefrontReader() *wavefrontReader {
	return &wavefrontReader{
		logger:     log.New("wavefront reader"),
		model:      &Model{},
		vertexList: make([]types.Vec3, 0),
		normalList: make([]types.Vec3, 0),
		uvList:     make([]types.Vec2, 0),
		errStack:   make([]string, 0),
	}
}

// Load a Wavefront OBJ file from a local path or URL.
func ReadFile(path string) (*Model, error) {
	res, err := asset.NewResource(path, nil)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	return Read(res)
}

// Load a Wavefront OBJ file from a resource. Each object or group becomes a
// separate mesh; faces defined before the first object or group are
// assigned to a mesh called "default".
func Read(res *asset.Resource) (*Model, error) {
	r := newWavefrontReader()
	r.logger.Noticef(`parsing scene from "%s"`, res.Path())
	start := time.Now()

	if err := r.parse(res); err != nil {
		return nil, err
	}
	if err := r.flushMesh(); err != nil {
		return nil, err
	}

	r.logger.Noticef("parsed %d mesh(es) with %s triangles in %d ms",
		len(r.model.Meshes), humanize.Comma(int64(r.model.TriangleCount())), time.Since(start).Nanoseconds()/1e6)
	return r.model, nil
}

// Generate an error message that also includes any data in the error stack.
func (r *wavefrontReader) emitError(file string, line int, msgFormat string, args ...interface{}) error {
	msg := fmt.Sprintf(msgFormat, args...)

	var errMsg string
	if file != "" {
		errMsg = fmt.Sprintf("[%s: %d] error: %s\n%s", file, line, msg, strings.Join(r.errStack, "\n"))
	} else {
		errMsg = fmt.Sprintf("error: %s\n%s", msg, strings.Join(r.errStack, "\n"))
	}

	return fmt.Errorf("%s", strings.Trim(errMsg, "\n"))
}

// Push a frame to the error stack.
func (r *wavefrontReader) pushFrame(msg string) {
	r.errStack = append([]string{msg}, r.errStack...)
}

// Pop a frame from the error stack.
func (r *wavefrontReader) popFrame() {
	r.errStack = r.errStack[1:]
}

func (r *wavefrontReader) parse(res *asset.Resource) error {
	var lineNum int
	var err error

	// Included files use 1-based indices relative to the coordinates
	// they define themselves.
	relVertexOffset := len(r.vertexList)
	relUvOffset := len(r.uvList)
	relNormalOffset := len(r.normalList)

	scanner := bufio.NewScanner(res)
	for scanner.Scan() {
		lineNum++
		lineTokens := strings.Fields(scanner.Text())
		if len(lineTokens) == 0 || strings.HasPrefix(lineTokens[0], "#") {
			continue
		}

		switch lineTokens[0] {
		case "call":
			if len(lineTokens) != 2 {
				return r.emitError(res.Path(), lineNum, `unsupported syntax for "%s"; expected 1 argument; got %d`, lineTokens[0], len(lineTokens)-1)
			}

			r.pushFrame(fmt.Sprintf("referenced from %s:%d [%s]", res.Path(), lineNum, lineTokens[0]))

			incRes, err := asset.NewResource(lineTokens[1], res)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}

			err = r.parse(incRes)
			incRes.Close()
			if err != nil {
				return err
			}
			r.popFrame()
		case "mtllib", "usemtl", "s":
			r.logger.Debugf("[%s: %d] ignoring %q directive", res.Path(), lineNum, lineTokens[0])
		case "v":
			v, err := parseVec3(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
			r.vertexList = append(r.vertexList, v)
		case "vn":
			v, err := parseVec3(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
			r.normalList = append(r.normalList, v)
		case "vt":
			v, err := parseVec2(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
			r.uvList = append(r.uvList, v)
		case "g", "o":
			if len(lineTokens) < 2 {
				return r.emitError(res.Path(), lineNum, `unsupported syntax for "%s"; expected 1 argument for object name; got %d`, lineTokens[0], len(lineTokens)-1)
			}

			if err := r.flushMesh(); err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
			r.cur = newMeshBuilder(lineTokens[1])
		case "f":
			if r.cur == nil {
				r.cur = newMeshBuilder("default")
			}

			if err := r.parseFace(lineTokens, relVertexOffset, relUvOffset, relNormalOffset); err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
		case "camera_fov":
			r.model.Camera.FOV, err = parseFloat32(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
			r.model.Camera.Defined = true
		case "camera_eye":
			r.model.Camera.Eye, err = parseVec3(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
			r.model.Camera.Defined = true
		case "camera_look":
			r.model.Camera.Look, err = parseVec3(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
			r.model.Camera.Defined = true
		case "camera_up":
			r.model.Camera.Up, err = parseVec3(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
			r.model.Camera.Defined = true
		default:
			r.logger.Debugf("[%s: %d] skipping unknown directive %q", res.Path(), lineNum, lineTokens[0])
		}
	}

	if err := scanner.Err(); err != nil {
		return r.emitError(res.Path(), lineNum, "%s", err.Error())
	}
	return nil
}

// Convert the mesh being parsed into a TriangleMesh. Meshes without faces are dropped.
func (r *wavefrontReader) flushMesh() error {
	b := r.cur
	r.cur = nil
	if b == nil {
		return nil
	}

	if len(b.faces) == 0 {
		r.logger.Warningf(`dropping mesh "%s" as it contains no polygons`, b.name)
		return nil
	}

	normals, uvs := b.normals, b.uvs
	if b.missingNormals {
		if len(r.normalList) > 0 {
			r.logger.Warningf(`mesh "%s" defines normals for only some of its vertices; ignoring normals`, b.name)
		}
		normals = nil
	}
	if b.missingUVs {
		if len(r.uvList) > 0 {
			r.logger.Warningf(`mesh "%s" defines texture coordinates for only some of its vertices; ignoring texture coordinates`, b.name)
		}
		uvs = nil
	}

	m, err := NewTriangleMesh(b.name, b.positions, normals, uvs, b.faces)
	if err != nil {
		return err
	}
	r.model.Meshes = append(r.model.Meshes, m)
	return nil
}

// Parse face definition. Each face definitions consists of 3 arguments,
// one for each vertex. Each one of the vertex arguments is comprised of
// 1, 2 or 3 args separated by a slash character. The following formats are
// supported:
// - vertexIndex
// - vertexIndex/uvIndex
// - vertexIndex//normalIndex
// - vertexIndex/uvIndex/normalIndex
//
// Indices start from 1 and may be negative to indicate
// an offset off the end of the vertex/uv list.
//
// Quad faces are split into two triangles. Faces with more than 4 vertices
// are rejected.
func (r *wavefrontReader) parseFace(lineTokens []string, relVertexOffset, relUvOffset, relNormalOffset int) error {
	if len(lineTokens) < 4 || len(lineTokens) > 5 {
		return fmt.Errorf(`unsupported syntax for "f"; expected 3 arguments for triangular face or 4 arguments for a quad face; got %d. Select the triangulation option in your exporter`, len(lineTokens)-1)
	}

	var keys [4]vertexKey
	expIndices := 0
	for arg := 0; arg < len(lineTokens)-1; arg++ {
		vTokens := strings.Split(lineTokens[arg+1], "/")

		// The first arg defines the format for the following args
		if arg == 0 {
			expIndices = len(vTokens)
		} else if len(vTokens) != expIndices {
			return fmt.Errorf("expected each face argument to contain %d indices; arg %d contains %d indices", expIndices, arg, len(vTokens))
		}

		// Faces must at least define a vertex coord
		if vTokens[0] == "" {
			return fmt.Errorf("face argument %d does not include a vertex index", arg)
		}

		key := vertexKey{p: -1, uv: -1, n: -1}

		var err error
		key.p, err = selectFaceCoordIndex(vTokens[0], len(r.vertexList), relVertexOffset)
		if err != nil {
			return fmt.Errorf("could not parse vertex coord for face argument %d: %s", arg, err.Error())
		}

		if expIndices > 1 && vTokens[1] != "" {
			key.uv, err = selectFaceCoordIndex(vTokens[1], len(r.uvList), relUvOffset)
			if err != nil {
				return fmt.Errorf("could not parse tex coord for face argument %d: %s", arg, err.Error())
			}
		}

		if expIndices > 2 && vTokens[2] != "" {
			key.n, err = selectFaceCoordIndex(vTokens[2], len(r.normalList), relNormalOffset)
			if err != nil {
				return fmt.Errorf("could not parse normal coord for face argument %d: %s", arg, err.Error())
			}
		}

		keys[arg] = key
	}

	indiceList := [][3]int{{0, 1, 2}}
	if len(lineTokens) == 5 {
		indiceList = append(indiceList, [3]int{0, 2, 3})
	}

	for _, indices := range indiceList {
		var face [3]uint32
		for triIndex, selectIndex := range indices {
			face[triIndex] = r.addVertex(keys[selectIndex])
		}
		r.cur.faces = append(r.cur.faces, face)
	}

	return nil
}

// Map a face vertex to a mesh vertex, allocating a new one the first time a
// (position, uv, normal) combination is seen.
func (r *wavefrontReader) addVertex(key vertexKey) uint32 {
	b := r.cur
	if idx, exists := b.vertexMap[key]; exists {
		return idx
	}

	idx := uint32(len(b.positions))
	b.vertexMap[key] = idx
	b.positions = append(b.positions, r.vertexList[key.p])

	if key.n >= 0 {
		b.normals = append(b.normals, r.normalList[key.n])
	} else {
		b.normals = append(b.normals, types.Vec3{})
		b.missingNormals = true
	}

	if key.uv >= 0 {
		b.uvs = append(b.uvs, r.uvList[key.uv])
	} else {
		b.uvs = append(b.uvs, types.Vec2{})
		b.missingUVs = true
	}

	return idx
}

// Given an index for a face coord type (vertex, normal, tex) calculate the
// proper offset into the coord list. Wavefront format can also use negative
// indices to reference elements from the end of the coord list.
func selectFaceCoordIndex(indexToken string, coordListLen int, relOffset int) (int, error) {
	index, err := strconv.ParseInt(indexToken, 10, 32)
	if err != nil {
		return -1, err
	}

	var vOffset int
	if index < 0 {
		vOffset = coordListLen + int(index)
	} else {
		vOffset = relOffset + int(index-1)
	}
	if index == 0 || vOffset < 0 || vOffset >= coordListLen {
		return -1, fmt.Errorf("index out of bounds")
	}
	return vOffset, nil
}

// Parse a float scalar value.
func parseFloat32(lineTokens []string) (float32, error) {
	if len(lineTokens) < 2 {
		return 0, fmt.Errorf(`unsupported syntax for "%s"; expected 1 argument; got %d`, lineTokens[0], len(lineTokens)-1)
	}

	val, err := strconv.ParseFloat(lineTokens[1], 32)
	if err != nil {
		return 0, err
	}

	return float32(val), nil
}

// Parse a Vec3 row.
func parseVec3(lineTokens []string) (types.Vec3, error) {
	if len(lineTokens) < 4 {
		return types.Vec3{}, fmt.Errorf(`unsupported syntax for "%s"; expected 3 arguments; got %d`, lineTokens[0], len(lineTokens)-1)
	}

	v := types.Vec3{}
	for tokIdx := 1; tokIdx <= 3; tokIdx++ {
		coord, err := strconv.ParseFloat(lineTokens[tokIdx], 32)
		if err != nil {
			return v, err
		}
		v[tokIdx-1] = float32(coord)
	}
	return v, nil
}

// Parse a Vec2 row.
func parseVec2(lineTokens []string) (types.Vec2, error) {
	if len(lineTokens) < 3 {
		return types.Vec2{}, fmt.Errorf(`unsupported syntax for "%s"; expected 2 arguments; got %d`, lineTokens[0], len(lineTokens)-1)
	}

	v := types.Vec2{}
	for tokIdx := 1; tokIdx <= 2; tokIdx++ {
		coord, err := strconv.ParseFloat(lineTokens[tokIdx], 32)
		if err != nil {
			return v, err
		}
		v[tokIdx-1] = float32(coord)
	}
	return v, nil
}
