package snapshot

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/achilleasa/polaris-bvh/accel"
	"github.com/achilleasa/polaris-bvh/asset/mesh"
	"github.com/achilleasa/polaris-bvh/types"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

func quadMesh(t *testing.T) *mesh.TriangleMesh {
	m, err := mesh.NewTriangleMesh(
		"quad",
		[]types.Vec3{{-1, -1, 0}, {1, -1, 0}, {1, 1, 0}, {-1, 1, 0}},
		[]types.Vec3{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
		[]types.Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}},
		[][3]uint32{{0, 1, 2}, {0, 2, 3}},
	)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func buildSnapshot(t *testing.T, meshes ...*mesh.TriangleMesh) *accel.Snapshot {
	bvh, err := accel.New(accel.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range meshes {
		if err = bvh.AddMesh(m); err != nil {
			t.Fatal(err)
		}
	}
	if err = bvh.Build(); err != nil {
		t.Fatal(err)
	}
	snap, err := bvh.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	return snap
}

func TestWriteAndRead(t *testing.T) {
	m := quadMesh(t)
	archive := &Archive{
		Meshes: []*mesh.TriangleMesh{m},
		Camera: mesh.CameraDef{FOV: 60, Eye: types.Vec3{0, 0, 5}, Up: types.Vec3{0, 1, 0}, Defined: true},
		BVH:    buildSnapshot(t, m),
	}

	filename := filepath.Join(t.TempDir(), "scene"+Extension)
	if err := Write(filename, archive); err != nil {
		t.Fatal(err)
	}

	loaded, err := ReadFile(filename)
	if err != nil {
		t.Fatal(err)
	}

	if len(loaded.Meshes) != 1 {
		t.Fatalf("expected 1 mesh; got %d", len(loaded.Meshes))
	}
	lm := loaded.Meshes[0]
	if lm.Name != m.Name {
		t.Fatalf("expected mesh name %q; got %q", m.Name, lm.Name)
	}
	if !reflect.DeepEqual(lm.Positions(), m.Positions()) || !reflect.DeepEqual(lm.Faces(), m.Faces()) {
		t.Fatal("expected mesh geometry to survive the round trip")
	}
	if !reflect.DeepEqual(lm.Normals(), m.Normals()) || !reflect.DeepEqual(lm.TexCoords(), m.TexCoords()) {
		t.Fatal("expected mesh attributes to survive the round trip")
	}
	if lm.BBox() != m.BBox() {
		t.Fatalf("expected mesh bbox %v; got %v", m.BBox(), lm.BBox())
	}
	if loaded.Camera != archive.Camera {
		t.Fatalf("expected camera %+v; got %+v", archive.Camera, loaded.Camera)
	}
	if !reflect.DeepEqual(loaded.BVH, archive.BVH) {
		t.Fatal("expected BVH snapshot to survive the round trip")
	}

	// The restored BVH must answer queries.
	bvh, err := accel.New(accel.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if err = bvh.AddMesh(lm); err != nil {
		t.Fatal(err)
	}
	if err = bvh.Restore(loaded.BVH); err != nil {
		t.Fatal(err)
	}
	if !bvh.Occluded(types.NewRay(types.Vec3{0.2, 0.1, 3}, types.Vec3{0, 0, -1})) {
		t.Fatal("expected ray to hit the restored quad")
	}
}

func TestWriteWithoutBVH(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "empty"+Extension)
	if err := Write(filename, &Archive{}); err == nil {
		t.Fatal("expected an error when writing an archive without BVH data")
	}
}

type closeFailWriter struct {
	bytes.Buffer
	closeErr error
}

func (w *closeFailWriter) Close() error {
	return w.closeErr
}

func TestEncodeReportsCloseErrors(t *testing.T) {
	m := quadMesh(t)
	archive := &Archive{Meshes: []*mesh.TriangleMesh{m}, BVH: buildSnapshot(t, m)}

	w := &closeFailWriter{}
	size, err := encode(w, archive)
	if err != nil {
		t.Fatal(err)
	}
	if size == 0 || size != int64(w.Len()) {
		t.Fatalf("expected reported size to match the %d written bytes; got %d", w.Len(), size)
	}

	w = &closeFailWriter{closeErr: errors.New("disk full")}
	if _, err = encode(w, archive); err == nil || !strings.Contains(err.Error(), "could not close archive: disk full") {
		t.Fatalf("expected close error to be reported; got %v", err)
	}
}

func writeArchive(t *testing.T, filename string, entries map[string]interface{}) {
	f, err := os.Create(filename)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	zw.RegisterCompressor(zstd.ZipMethodWinZip, zstd.ZipCompressor())
	for name, data := range entries {
		if err = writeEntry(zw, name, data); err != nil {
			t.Fatal(err)
		}
	}
	if err = zw.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestReadErrors(t *testing.T) {
	dir := t.TempDir()
	m := quadMesh(t)
	snap := buildSnapshot(t, m)

	missingBVH := filepath.Join(dir, "missing"+Extension)
	writeArchive(t, missingBVH, map[string]interface{}{
		meshFile: []meshData{{Name: "quad", Positions: m.Positions(), Faces: m.Faces()}},
	})
	if _, err := ReadFile(missingBVH); err == nil || !strings.Contains(err.Error(), bvhFile) {
		t.Fatalf("expected error about missing %s; got %v", bvhFile, err)
	}

	badMesh := filepath.Join(dir, "bad"+Extension)
	writeArchive(t, badMesh, map[string]interface{}{
		meshFile: []meshData{{Name: "broken", Positions: m.Positions(), Faces: [][3]uint32{{0, 1, 9}}}},
		bvhFile:  snap,
	})
	if _, err := ReadFile(badMesh); err == nil {
		t.Fatal("expected an error for a mesh with out of range face indices")
	}

	garbage := filepath.Join(dir, "garbage"+Extension)
	if err := os.WriteFile(garbage, []byte("not a zip file"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadFile(garbage); err == nil {
		t.Fatal("expected an error for an invalid archive")
	}
}

func TestReadSkipsUnknownEntries(t *testing.T) {
	m := quadMesh(t)
	snap := buildSnapshot(t, m)

	filename := filepath.Join(t.TempDir(), "extra"+Extension)
	writeArchive(t, filename, map[string]interface{}{
		meshFile:     []meshData{{Name: "quad", Positions: m.Positions(), Faces: m.Faces()}},
		bvhFile:      snap,
		"notes.bin":  "something else",
		"extra.data": 42,
	})

	loaded, err := ReadFile(filename)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Meshes) != 1 || loaded.Camera.Defined {
		t.Fatalf("expected 1 mesh and no camera; got %d meshes and camera %+v", len(loaded.Meshes), loaded.Camera)
	}
}
