// Package pose defines the skeletal keypoint types produced by the pose
// estimation collaborator and the interface the pipeline consumes them
// through. The topology is the 17-joint COCO ordering.
package pose

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"violin-coach-service/internal/geom"
)

// Joint indexes a keypoint within a frame, in COCO order.
type Joint int

const (
	Nose Joint = iota
	LeftEye
	RightEye
	LeftEar
	RightEar
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle

	// NumJoints is the fixed topology size.
	NumJoints = 17
)

var jointNames = [NumJoints]string{
	"nose", "left_eye", "right_eye", "left_ear", "right_ear",
	"left_shoulder", "right_shoulder", "left_elbow", "right_elbow",
	"left_wrist", "right_wrist", "left_hip", "right_hip",
	"left_knee", "right_knee", "left_ankle", "right_ankle",
}

// String returns the canonical joint name, or "unknown" out of range.
func (j Joint) String() string {
	if j < 0 || j >= NumJoints {
		return "unknown"
	}
	return jointNames[j]
}

// PostureJoints is the subset compared against the calibrated reference.
// Face detail and legs are irrelevant to violin posture.
var PostureJoints = []Joint{
	Nose,
	LeftShoulder, RightShoulder,
	LeftElbow, RightElbow,
	LeftWrist, RightWrist,
	LeftHip, RightHip,
}

// Keypoint is one estimated 3D joint position with a confidence in [0,1].
type Keypoint struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Confidence float64 `json:"confidence"`
}

// Vec returns the keypoint position as a vector.
func (k Keypoint) Vec() r3.Vec {
	return r3.Vec{X: k.X, Y: k.Y, Z: k.Z}
}

// Frame is one capture of the full topology. Frames are transient: the
// pipeline consumes them synchronously and retains only derived state.
type Frame struct {
	Keypoints [NumJoints]Keypoint `json:"keypoints"`
	Timestamp time.Time           `json:"timestamp"`
}

// Keypoint returns the keypoint for the given joint.
func (f *Frame) Keypoint(j Joint) Keypoint {
	return f.Keypoints[j]
}

// Vec returns the position of the given joint.
func (f *Frame) Vec(j Joint) r3.Vec {
	return f.Keypoints[j].Vec()
}

// Visible reports whether the joint's confidence clears the floor.
func (f *Frame) Visible(j Joint, minConfidence float64) bool {
	return f.Keypoints[j].Confidence >= minConfidence
}

// Angle returns the angle in degrees at joint b formed by joints a and c.
func (f *Frame) Angle(a, b, c Joint) float64 {
	return geom.AngleBetween(f.Vec(a), f.Vec(b), f.Vec(c))
}

// RightElbowAngle is the bowing-arm angle the direction classifier tracks.
func (f *Frame) RightElbowAngle() float64 {
	return f.Angle(RightShoulder, RightElbow, RightWrist)
}

// LeftElbowAngle is the violin-arm angle compared against calibration.
func (f *Frame) LeftElbowAngle() float64 {
	return f.Angle(LeftShoulder, LeftElbow, LeftWrist)
}

// ShoulderOffset is the vertical offset between the shoulders.
func (f *Frame) ShoulderOffset() float64 {
	return f.Keypoints[LeftShoulder].Y - f.Keypoints[RightShoulder].Y
}

// ShoulderLine is the horizontal angle of the shoulder segment.
func (f *Frame) ShoulderLine() float64 {
	return geom.HorizontalAngle(f.Vec(LeftShoulder), f.Vec(RightShoulder))
}

// ValidateKeypoints checks a raw keypoint slice against the topology before
// it is accepted as a Frame.
func ValidateKeypoints(kps []Keypoint) error {
	if len(kps) != NumJoints {
		return fmt.Errorf("expected %d keypoints, got %d", NumJoints, len(kps))
	}
	for i, kp := range kps {
		if kp.Confidence < 0 || kp.Confidence > 1 {
			return fmt.Errorf("keypoint %s: confidence %f outside [0,1]", Joint(i), kp.Confidence)
		}
	}
	return nil
}

// FrameFromKeypoints builds a Frame from a validated keypoint slice.
func FrameFromKeypoints(kps []Keypoint, ts time.Time) (Frame, error) {
	var f Frame
	if err := ValidateKeypoints(kps); err != nil {
		return f, err
	}
	copy(f.Keypoints[:], kps)
	f.Timestamp = ts
	return f, nil
}
