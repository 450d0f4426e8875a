package tracer

import "time"

type ChangeType uint8

const (
	// Payload: *scene.Scene
	UpdateScene ChangeType = iota

	// Payload: *scene.Camera
	UpdateCamera

	// Payload: types.Vec3 with the point light position.
	UpdateLight
)

// A unit of work that is processed by a tracer.
type BlockRequest struct {
	// Block start row and height.
	BlockY uint32
	BlockH uint32

	// Cast a shadow ray towards the point light for each primary ray hit.
	Shadows bool

	// A channel to signal on block completion with the number of completed rows.
	DoneChan chan<- uint32

	// A channel to signal if an error occurs.
	ErrChan chan<- error
}

// Tracer statistics.
type Stats struct {
	// The rendered block height
	BlockH uint32

	// The time for rendering this block.
	BlockTime time.Duration

	// Ray counters for the last block.
	PrimaryRays uint64
	ShadowRays  uint64
	Hits        uint64
}

// Total number of rays cast for the last block.
func (s *Stats) Rays() uint64 {
	return s.PrimaryRays + s.ShadowRays
}

type Tracer interface {
	// Get tracer id.
	Id() string

	// Shutdown and cleanup tracer.
	Close()

	// Get the tracers computation speed estimate compared to a
	// baseline single-core implementation.
	SpeedEstimate() float32

	// Setup the tracer to render blocks into the supplied frame buffer.
	Setup(frame *FrameBuffer) error

	// Enqueue block request.
	Enqueue(BlockRequest)

	// Append a change to the tracer's update buffer.
	AppendChange(ChangeType, interface{})

	// Apply all pending changes from the update buffer.
	ApplyPendingChanges() error

	// Retrieve last frame statistics.
	Stats() *Stats
}
