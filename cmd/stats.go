package cmd

import (
	"bytes"
	"fmt"

	"github.com/achilleasa/polaris-bvh/accel"
	"github.com/achilleasa/polaris-bvh/asset/mesh"
	"github.com/achilleasa/polaris-bvh/renderer"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
)

func displayBuildStats(stats accel.BuildStats) {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Statistic", "Value"})
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})
	table.AppendBulk([][]string{
		{"Meshes", humanize.Comma(int64(stats.Meshes))},
		{"Triangles", humanize.Comma(int64(stats.Triangles))},
		{"Nodes (allocated)", humanize.Comma(int64(stats.AllocatedNodes))},
		{"Nodes", humanize.Comma(int64(stats.Nodes))},
		{"Inner nodes", humanize.Comma(int64(stats.InnerNodes))},
		{"Leaves", humanize.Comma(int64(stats.Leaves))},
		{"Max depth", fmt.Sprintf("%d", stats.MaxDepth)},
		{"Max leaf size", fmt.Sprintf("%d", stats.MaxLeafSize)},
		{"Avg leaf size", fmt.Sprintf("%.2f", stats.AvgLeafSize())},
		{"Binned splits", humanize.Comma(int64(stats.BinnedSplits))},
		{"Serial nodes", humanize.Comma(int64(stats.SerialNodes))},
		{"SAH cost", fmt.Sprintf("%.3f", stats.SAHCost)},
		{"Memory", stats.Memory()},
		{"Peak memory", humanize.IBytes(stats.PeakMemoryBytes())},
		{"Build time", stats.BuildTime.String()},
		{"Compaction time", stats.CompactTime.String()},
	})

	table.Render()
	logger.Noticef("BVH statistics\n%s", buf.String())
}

// Geometry totals for a single mesh.
type meshSummary struct {
	name        string
	triangles   uint32
	vertices    int
	area        float64
	degenerates uint32
}

func summarizeMesh(m *mesh.TriangleMesh) meshSummary {
	summary := meshSummary{
		name:      m.Name,
		triangles: m.TriangleCount(),
		vertices:  len(m.Positions()),
	}
	for tri := uint32(0); tri < summary.triangles; tri++ {
		area := m.SurfaceArea(tri)
		if area == 0 {
			summary.degenerates++
		}
		summary.area += float64(area)
	}
	return summary
}

func displayMeshStats(meshes []*mesh.TriangleMesh) {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Mesh", "Triangles", "Vertices", "Surface area", "Degenerate triangles"})
	for _, m := range meshes {
		summary := summarizeMesh(m)
		table.Append([]string{
			summary.name,
			humanize.Comma(int64(summary.triangles)),
			humanize.Comma(int64(summary.vertices)),
			humanize.FormatFloat("#,###.##", summary.area),
			humanize.Comma(int64(summary.degenerates)),
		})
	}

	table.Render()
	logger.Noticef("mesh statistics\n%s", buf.String())
}

func displayFrameStats(stats renderer.FrameStats) {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Tracer", "Block height", "% of frame", "Rays", "Hits", "Render time"})
	for _, stat := range stats.Tracers {
		table.Append([]string{
			stat.Id,
			fmt.Sprintf("%d", stat.BlockH),
			fmt.Sprintf("%02.1f %%", stat.FramePercent),
			humanize.Comma(int64(stat.Rays)),
			humanize.Comma(int64(stat.Hits)),
			stat.RenderTime.String(),
		})
	}
	table.SetFooter([]string{"", "", "TOTAL", humanize.Comma(int64(stats.PrimaryRays + stats.ShadowRays)), humanize.Comma(int64(stats.Hits)), stats.RenderTime.String()})

	table.Render()
	logger.Noticef("frame statistics (%s)\n%s", stats.Throughput(), buf.String())
}
