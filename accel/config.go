package accel

import (
	"fmt"
	"runtime"
	"strings"
)

const (
	// Upper bound for the number of SAH bins.
	maxBins = 64

	// Maximum tree depth. Traversal uses a fixed size stack of this many
	// entries so the builder turns any node at this depth into a leaf.
	maxTreeDepth = 64
)

// The order in which the two children of an inner node are visited.
type TraversalPolicy uint8

const (
	// Always descend into the left child first and defer the right child.
	LeftFirst TraversalPolicy = iota

	// Descend into the child whose bounding box the ray enters first.
	NearestFirst
)

func (p TraversalPolicy) String() string {
	switch p {
	case LeftFirst:
		return "left-first"
	case NearestFirst:
		return "nearest-first"
	}
	return fmt.Sprintf("TraversalPolicy(%d)", p)
}

// Decode a policy name. Used by the TOML decoder.
func (p *TraversalPolicy) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "", "left-first":
		*p = LeftFirst
	case "nearest-first":
		*p = NearestFirst
	default:
		return fmt.Errorf("accel: unknown traversal policy %q", string(text))
	}
	return nil
}

// Encode a policy name.
func (p TraversalPolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// The strategy used for picking split positions.
type SplitMethod uint8

const (
	// Minimize the surface area heuristic cost.
	SplitSAH SplitMethod = iota

	// Split at the midpoint of the centroid bounds along the largest axis.
	// Falls back to SplitEqualCounts when one side would be empty.
	SplitMiddle

	// Split at the median centroid along the largest axis.
	SplitEqualCounts
)

func (m SplitMethod) String() string {
	switch m {
	case SplitSAH:
		return "sah"
	case SplitMiddle:
		return "middle"
	case SplitEqualCounts:
		return "equal-counts"
	}
	return fmt.Sprintf("SplitMethod(%d)", m)
}

// Decode a split method name. Used by the TOML decoder.
func (m *SplitMethod) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "", "sah":
		*m = SplitSAH
	case "middle":
		*m = SplitMiddle
	case "equal-counts":
		*m = SplitEqualCounts
	default:
		return fmt.Errorf("accel: unknown split method %q", string(text))
	}
	return nil
}

// Encode a split method name.
func (m SplitMethod) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// BVH build and traversal settings. Zero values are replaced by the
// defaults returned by DefaultConfig.
type Config struct {
	// Number of bins used for evaluating split candidates.
	Bins int `toml:"bins"`

	// Ranges with fewer triangles than this are built serially using an
	// exact SAH sweep.
	SerialThreshold int `toml:"serial_threshold"`

	// Number of triangles processed by each worker during the parallel
	// binning and partitioning steps.
	GrainSize int `toml:"grain_size"`

	// SAH cost constants.
	TraversalCost    float32 `toml:"traversal_cost"`
	IntersectionCost float32 `toml:"intersection_cost"`

	// Max number of concurrent subtree builds. Defaults to GOMAXPROCS.
	Workers int `toml:"workers"`

	// Reject any mesh registration after the first one.
	SingleMesh bool `toml:"single_mesh"`

	// Child visiting order during traversal.
	Traversal TraversalPolicy `toml:"traversal"`

	// Split strategy. The SAH settings above only apply to SplitSAH.
	Split SplitMethod `toml:"split"`

	// Ranges with at most this many triangles become leaves when using
	// SplitMiddle or SplitEqualCounts.
	MaxLeafSize int `toml:"max_leaf_size"`
}

// Get the default BVH settings.
func DefaultConfig() Config {
	return Config{
		Bins:             16,
		SerialThreshold:  32,
		GrainSize:        1000,
		TraversalCost:    1,
		IntersectionCost: 1,
		Workers:          runtime.GOMAXPROCS(0),
		Traversal:        LeftFirst,
		Split:            SplitSAH,
		MaxLeafSize:      4,
	}
}

// Replace zero values with defaults and check that the remaining values are in range.
func (c Config) normalize() (Config, error) {
	def := DefaultConfig()
	if c.Bins == 0 {
		c.Bins = def.Bins
	}
	if c.SerialThreshold == 0 {
		c.SerialThreshold = def.SerialThreshold
	}
	if c.GrainSize == 0 {
		c.GrainSize = def.GrainSize
	}
	if c.TraversalCost == 0 {
		c.TraversalCost = def.TraversalCost
	}
	if c.IntersectionCost == 0 {
		c.IntersectionCost = def.IntersectionCost
	}
	if c.Workers == 0 {
		c.Workers = def.Workers
	}
	if c.MaxLeafSize == 0 {
		c.MaxLeafSize = def.MaxLeafSize
	}

	switch {
	case c.Bins < 2 || c.Bins > maxBins:
		return c, fmt.Errorf("accel: bin count must be in [2, %d]; got %d", maxBins, c.Bins)
	case c.SerialThreshold < 0:
		return c, fmt.Errorf("accel: serial threshold must not be negative; got %d", c.SerialThreshold)
	case c.GrainSize < 0:
		return c, fmt.Errorf("accel: grain size must not be negative; got %d", c.GrainSize)
	case c.TraversalCost < 0 || c.IntersectionCost < 0:
		return c, fmt.Errorf("accel: SAH costs must not be negative")
	case c.Workers < 0:
		return c, fmt.Errorf("accel: worker count must not be negative; got %d", c.Workers)
	case c.Traversal > NearestFirst:
		return c, fmt.Errorf("accel: unknown traversal policy %d", c.Traversal)
	case c.Split > SplitEqualCounts:
		return c, fmt.Errorf("accel: unknown split method %d", c.Split)
	case c.MaxLeafSize < 0:
		return c, fmt.Errorf("accel: max leaf size must not be negative; got %d", c.MaxLeafSize)
	}

	return c, nil
}

// Check the settings without building anything.
func (c Config) Validate() error {
	_, err := c.normalize()
	return err
}
