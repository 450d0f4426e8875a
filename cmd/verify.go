package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/achilleasa/polaris-bvh/accel"
	"github.com/achilleasa/polaris-bvh/scene"
	"github.com/achilleasa/polaris-bvh/types"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// Relative tolerance when comparing hit distances.
const verifyTolerance = 1e-4

// Results of comparing BVH queries against brute force.
type verifyReport struct {
	rays       int
	hits       int
	mismatches int

	bvhTime   time.Duration
	bruteTime time.Duration
}

// Compare the BVH answers for random rays against a brute force search over
// all triangles. Returns an error if any query disagrees.
func Verify(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	if ctx.NArg() == 0 {
		return errors.New("missing scene file argument(s)")
	}

	sc, err := scene.Load(ctx.Args(), cfg.Accel)
	if err != nil {
		return err
	}

	numRays := ctx.Int("rays")
	if numRays <= 0 {
		return fmt.Errorf("ray count must be positive; got %d", numRays)
	}

	report := verifyScene(sc, numRays, rand.New(rand.NewSource(ctx.Int64("seed"))))
	displayVerifyReport(report)

	if report.mismatches != 0 {
		return fmt.Errorf("found %d mismatch(es) in %d ray queries", report.mismatches, report.rays)
	}
	return nil
}

func verifyScene(sc *scene.Scene, numRays int, rng *rand.Rand) verifyReport {
	report := verifyReport{rays: numRays}

	bbox := sc.Accel.BBox()
	if !bbox.IsValid() {
		logger.Warning("scene contains no triangles; nothing to verify")
		return report
	}

	var its accel.Intersection
	for i := 0; i < numRays; i++ {
		ray := randomRay(rng, bbox)

		start := time.Now()
		hit := sc.RayIntersect(ray, &its)
		occluded := sc.Occluded(ray)
		report.bvhTime += time.Since(start)

		start = time.Now()
		expT, expHit := bruteForce(sc, ray)
		report.bruteTime += time.Since(start)

		switch {
		case hit != expHit:
			logger.Warningf("ray %d (origin: %v, dir: %v): expected hit to be %t; got %t", i, ray.Origin, ray.Dir, expHit, hit)
			report.mismatches++
		case hit && math.Abs(float64(its.T-expT)) > verifyTolerance*math.Max(1, float64(expT)):
			logger.Warningf("ray %d (origin: %v, dir: %v): expected hit at t = %f; got %f", i, ray.Origin, ray.Dir, expT, its.T)
			report.mismatches++
		case occluded != expHit:
			logger.Warningf("ray %d (origin: %v, dir: %v): expected occlusion to be %t; got %t", i, ray.Origin, ray.Dir, expHit, occluded)
			report.mismatches++
		}

		if expHit {
			report.hits++
		}
	}

	return report
}

// Generate a ray whose origin lies in a box twice the size of the scene
// bounds and whose target lies inside the scene bounds. Rays use a zero
// lower bound so brute force and BVH queries cover the same segment.
func randomRay(rng *rand.Rand, bbox types.BBox) types.Ray {
	extents := bbox.Extents()
	var origin, target types.Vec3
	for axis := 0; axis < 3; axis++ {
		origin[axis] = bbox.Min[axis] + extents[axis]*(2*rng.Float32()-0.5)
		target[axis] = bbox.Min[axis] + extents[axis]*rng.Float32()
	}

	dir := target.Sub(origin)
	if dir.Len() == 0 {
		dir = types.Vec3{0, 0, 1}
	}
	return types.NewRaySegment(origin, dir.Normalize(), 0, float32(math.Inf(1)))
}

// Find the closest hit by testing every triangle of every mesh.
func bruteForce(sc *scene.Scene, ray types.Ray) (float32, bool) {
	bestT := float32(math.Inf(1))
	found := false
	for _, m := range sc.Meshes {
		for tri := uint32(0); tri < m.TriangleCount(); tri++ {
			_, _, t, ok := m.RayIntersect(tri, &ray)
			if ok && t >= ray.MinT && t <= ray.MaxT && t < bestT {
				bestT = t
				found = true
			}
		}
	}
	return bestT, found
}

func displayVerifyReport(report verifyReport) {
	speedup := "n/a"
	if report.bvhTime > 0 {
		speedup = fmt.Sprintf("%.1fx", float64(report.bruteTime)/float64(report.bvhTime))
	}

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Rays", "Hits", "Mismatches", "BVH time", "Brute force time", "Speedup"})
	table.Append([]string{
		humanize.Comma(int64(report.rays)),
		humanize.Comma(int64(report.hits)),
		humanize.Comma(int64(report.mismatches)),
		report.bvhTime.String(),
		report.bruteTime.String(),
		speedup,
	})

	table.Render()
	logger.Noticef("verification results\n%s", buf.String())
}
