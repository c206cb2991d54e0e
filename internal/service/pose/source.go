package pose

import "context"

// Callback receives frames from the pose estimation collaborator.
type Callback interface {
	// OnFrame is called once per estimated keypoint frame.
	OnFrame(frame Frame)

	// OnError is called when the collaborator fails to produce a frame.
	OnError(err error)
}

// Source defines the interface for pose estimation providers. The model
// behind it is a black box; the pipeline only sees keypoint frames.
type Source interface {
	// Start begins frame delivery. Delivery stops when ctx is cancelled
	// or Stop is called.
	Start(ctx context.Context, cb Callback) error

	// Stop ends frame delivery and releases resources.
	Stop() error
}
