package snapshot

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/achilleasa/polaris-bvh/accel"
	"github.com/achilleasa/polaris-bvh/asset"
	"github.com/achilleasa/polaris-bvh/asset/mesh"
	"github.com/achilleasa/polaris-bvh/log"
	"github.com/achilleasa/polaris-bvh/types"
	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

const (
	meshFile   = "meshes.bin"
	cameraFile = "camera.bin"
	bvhFile    = "bvh.bin"

	// The file extension used for snapshot archives.
	Extension = ".bvhz"
)

var logger = log.New("snapshot")

// The contents of a snapshot archive.
type Archive struct {
	Meshes []*mesh.TriangleMesh
	Camera mesh.CameraDef
	BVH    *accel.Snapshot
}

// Serialized mesh buffers.
type meshData struct {
	Name      string
	Positions []types.Vec3
	Normals   []types.Vec3
	TexCoords []types.Vec2
	Faces     [][3]uint32
}

// Write meshes, camera settings and a built BVH to a zip archive. Archive
// entries are compressed with zstd.
func Write(filename string, archive *Archive) error {
	logger.Noticef("writing snapshot to %s", filename)
	start := time.Now()

	if archive.BVH == nil {
		return fmt.Errorf("snapshot: no BVH data to write")
	}

	zipFile, err := os.Create(filename)
	if err != nil {
		return err
	}

	size, err := encode(zipFile, archive)
	if err != nil {
		os.Remove(filename)
		return err
	}

	logger.Noticef("wrote %s snapshot in %d ms", humanize.IBytes(uint64(size)), time.Since(start).Nanoseconds()/1e6)
	return nil
}

// Encode the archive entries into w and close it. Returns the number of
// bytes written.
func encode(w io.WriteCloser, archive *Archive) (int64, error) {
	cw := &countingWriter{w: w}
	zw := zip.NewWriter(cw)
	zw.RegisterCompressor(zstd.ZipMethodWinZip, zstd.ZipCompressor())

	meshes := make([]meshData, len(archive.Meshes))
	for i, m := range archive.Meshes {
		meshes[i] = meshData{
			Name:      m.Name,
			Positions: m.Positions(),
			Normals:   m.Normals(),
			TexCoords: m.TexCoords(),
			Faces:     m.Faces(),
		}
	}

	entries := []struct {
		name string
		data interface{}
	}{
		{meshFile, meshes},
		{cameraFile, archive.Camera},
		{bvhFile, archive.BVH},
	}
	for _, entry := range entries {
		if err := writeEntry(zw, entry.name, entry.data); err != nil {
			w.Close()
			return 0, err
		}
	}

	if err := zw.Close(); err != nil {
		w.Close()
		return 0, err
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("snapshot: could not close archive: %s", err.Error())
	}
	return cw.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

func writeEntry(zw *zip.Writer, name string, data interface{}) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zstd.ZipMethodWinZip})
	if err != nil {
		return err
	}
	if err = gob.NewEncoder(w).Encode(data); err != nil {
		return fmt.Errorf("snapshot: failed to encode %s: %s", name, err.Error())
	}
	return nil
}

// Load a snapshot archive from a local path or URL.
func ReadFile(path string) (*Archive, error) {
	res, err := asset.NewResource(path, nil)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	return Read(res)
}

// Load a snapshot archive from a resource.
func Read(res *asset.Resource) (*Archive, error) {
	logger.Noticef(`loading snapshot from "%s"`, res.Path())
	start := time.Now()

	// zip package requires a reader implementing ReaderAt. To work around
	// this requirement we read the entire zip file into memory and create
	// a reader from the bytes package that implements ReaderAt
	data, err := io.ReadAll(res)
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("snapshot: %s is not a valid archive: %s", res.Path(), err.Error())
	}
	zr.RegisterDecompressor(zstd.ZipMethodWinZip, zstd.ZipDecompressor())

	var (
		meshes  []meshData
		archive = &Archive{}
	)
	for _, f := range zr.File {
		var target interface{}
		switch f.Name {
		case meshFile:
			target = &meshes
		case cameraFile:
			target = &archive.Camera
		case bvhFile:
			archive.BVH = &accel.Snapshot{}
			target = archive.BVH
		default:
			logger.Warningf("unknown file %s in snapshot archive; skipping", f.Name)
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		err = gob.NewDecoder(rc).Decode(target)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("snapshot: failed to load %s: %s", f.Name, err.Error())
		}
	}

	if archive.BVH == nil {
		return nil, fmt.Errorf("snapshot: archive %s does not contain %s", res.Path(), bvhFile)
	}

	for _, md := range meshes {
		m, err := mesh.NewTriangleMesh(md.Name, md.Positions, md.Normals, md.TexCoords, md.Faces)
		if err != nil {
			return nil, fmt.Errorf("snapshot: %s", err.Error())
		}
		archive.Meshes = append(archive.Meshes, m)
	}

	logger.Noticef("loaded snapshot in %d ms", time.Since(start).Nanoseconds()/1e6)
	return archive, nil
}
