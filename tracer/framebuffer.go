package tracer

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// The frame buffer stores the result of the primary ray query for each pixel.
// Tracers write to disjoint row ranges so no locking is required.
type FrameBuffer struct {
	Width  uint32
	Height uint32

	// Hit distance along the primary ray; +Inf for misses.
	Depth []float32

	// Shading intensity in [0, 1].
	Shade []float32

	// Index of the hit mesh; -1 for misses.
	Mesh []int32
}

// Allocate a cleared frame buffer.
func NewFrameBuffer(width, height uint32) *FrameBuffer {
	size := int(width) * int(height)
	fb := &FrameBuffer{
		Width:  width,
		Height: height,
		Depth:  make([]float32, size),
		Shade:  make([]float32, size),
		Mesh:   make([]int32, size),
	}
	fb.Clear()
	return fb
}

// Reset all pixels to a miss.
func (fb *FrameBuffer) Clear() {
	inf := float32(math.Inf(1))
	for i := range fb.Depth {
		fb.Depth[i] = inf
		fb.Shade[i] = 0
		fb.Mesh[i] = -1
	}
}

// Record a primary ray hit.
func (fb *FrameBuffer) SetHit(x, y uint32, depth, shade float32, mesh int) {
	offset := y*fb.Width + x
	fb.Depth[offset] = depth
	fb.Shade[offset] = shade
	fb.Mesh[offset] = int32(mesh)
}

// Record a primary ray miss.
func (fb *FrameBuffer) SetMiss(x, y uint32) {
	offset := y*fb.Width + x
	fb.Depth[offset] = float32(math.Inf(1))
	fb.Shade[offset] = 0
	fb.Mesh[offset] = -1
}

// Count the pixels whose primary ray hit the scene.
func (fb *FrameBuffer) HitCount() uint64 {
	var count uint64
	for _, mesh := range fb.Mesh {
		if mesh >= 0 {
			count++
		}
	}
	return count
}

// Get the depth range of all hits. If no pixel was hit, ok is false.
func (fb *FrameBuffer) DepthRange() (minDepth, maxDepth float32, ok bool) {
	minDepth, maxDepth = float32(math.Inf(1)), float32(math.Inf(-1))
	for i, depth := range fb.Depth {
		if fb.Mesh[i] < 0 {
			continue
		}
		ok = true
		minDepth = float32(math.Min(float64(minDepth), float64(depth)))
		maxDepth = float32(math.Max(float64(maxDepth), float64(depth)))
	}
	return minDepth, maxDepth, ok
}

// Convert the shade buffer to an 8-bit grayscale image. Misses are black.
func (fb *FrameBuffer) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, int(fb.Width), int(fb.Height)))
	for y := 0; y < int(fb.Height); y++ {
		for x := 0; x < int(fb.Width); x++ {
			shade := fb.Shade[y*int(fb.Width)+x]
			v := uint8(math.Min(255, math.Max(0, float64(shade)*255+0.5)))
			img.SetRGBA(x, y, color.RGBA{v, v, v, 255})
		}
	}
	return img
}

// Convert the depth buffer to a 16-bit grayscale image where nearer hits are
// brighter. Misses are black.
func (fb *FrameBuffer) DepthImage() *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, int(fb.Width), int(fb.Height)))
	minDepth, maxDepth, ok := fb.DepthRange()
	if !ok {
		return img
	}

	span := maxDepth - minDepth
	for y := 0; y < int(fb.Height); y++ {
		for x := 0; x < int(fb.Width); x++ {
			offset := y*int(fb.Width) + x
			if fb.Mesh[offset] < 0 {
				continue
			}

			v := float32(1)
			if span > 0 {
				v = 1 - 0.9*(fb.Depth[offset]-minDepth)/span
			}
			img.SetGray16(x, y, color.Gray16{uint16(v * 65535)})
		}
	}
	return img
}

// Write the frame to an image file. The format is selected by the file
// extension (.png, .bmp, .tif or .tiff). When depth is true, the depth buffer
// is written instead of the shade buffer.
func (fb *FrameBuffer) Save(filename string, depth bool) error {
	var img image.Image = fb.Image()
	if depth {
		img = fb.DepthImage()
	}

	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".png", ".bmp", ".tif", ".tiff":
	default:
		return fmt.Errorf("tracer: unsupported image format %q", ext)
	}

	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	switch ext {
	case ".bmp":
		err = bmp.Encode(f, img)
	case ".tif", ".tiff":
		err = tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		err = png.Encode(f, img)
	}
	if err != nil {
		return fmt.Errorf("tracer: could not encode %s: %s", filename, err.Error())
	}
	return nil
}
