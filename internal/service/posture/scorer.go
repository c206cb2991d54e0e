// Package posture compares a live keypoint frame against a calibrated
// reference posture and produces a quality tier plus per-region feedback.
package posture

import (
	"encoding/json"
	"fmt"

	"violin-coach-service/internal/geom"
	"violin-coach-service/internal/service/pose"
)

// Status is the overall posture quality tier.
type Status string

const (
	Excellent Status = "excellent"
	Good      Status = "good"
	Fair      Status = "fair"
	Poor      Status = "poor"
	// Error means the assessment could not be computed, usually from a
	// malformed calibration payload. It is a result, not a failure.
	Error Status = "error"
)

// GoodOrBetter reports whether the tier counts toward the session's
// posture score.
func (s Status) GoodOrBetter() bool {
	return s == Excellent || s == Good
}

// Region identifies a body region the scorer gives feedback on.
type Region string

const (
	RegionShoulders Region = "shoulders"
	RegionViolinArm Region = "violin_position"
	RegionBowArm    Region = "bow_arm"
)

// RegionStatus is the per-region verdict.
type RegionStatus string

const (
	RegionGood       RegionStatus = "good"
	RegionAdjust     RegionStatus = "needs_adjustment"
	RegionNotVisible RegionStatus = "not_visible"
)

// RegionFeedback is one region's verdict with a human-readable message.
type RegionFeedback struct {
	Status  RegionStatus `json:"status"`
	Message string       `json:"message"`
}

// Assessment is the scorer output for one frame.
type Assessment struct {
	Status           Status                    `json:"status"`
	ScalarDifference float64                   `json:"scalarDifference"`
	Feedback         map[Region]RegionFeedback `json:"feedback"`
}

// Reference is a parsed calibration profile: the captured keypoints plus
// the measurements derived from them at calibration time.
type Reference struct {
	Keypoints      [pose.NumJoints]pose.Keypoint `json:"keypoints"`
	LeftElbowAngle float64                       `json:"leftElbowAngle"`
	ShoulderOffset float64                       `json:"shoulderOffset"`
	ShoulderLine   float64                       `json:"shoulderLine"`
}

// BuildReference derives a Reference from a calibration capture frame.
func BuildReference(frame *pose.Frame) *Reference {
	return &Reference{
		Keypoints:      frame.Keypoints,
		LeftElbowAngle: frame.LeftElbowAngle(),
		ShoulderOffset: frame.ShoulderOffset(),
		ShoulderLine:   frame.ShoulderLine(),
	}
}

// ParseReference decodes a stored calibration payload.
func ParseReference(data []byte) (*Reference, error) {
	var ref Reference
	if err := json.Unmarshal(data, &ref); err != nil {
		return nil, fmt.Errorf("decode calibration payload: %w", err)
	}
	return &ref, nil
}

func (r *Reference) frame() *pose.Frame {
	return &pose.Frame{Keypoints: r.Keypoints}
}

// Config holds the scorer thresholds.
type Config struct {
	// Ascending scalar-difference tier bounds.
	ExcellentBelow float64
	GoodBelow      float64
	FairBelow      float64

	// ShoulderTolerance is the allowed deviation of the live shoulder
	// vertical offset from the calibrated one.
	ShoulderTolerance float64
	// ElbowToleranceDeg is the allowed deviation of the live left-elbow
	// angle from the calibrated one.
	ElbowToleranceDeg float64
	// The bow arm moves constantly, so it is checked against a fixed
	// plausible envelope rather than against calibration.
	BowArmMinDeg float64
	BowArmMaxDeg float64

	// MinJointConfidence is the floor below which a joint is treated as
	// absent.
	MinJointConfidence float64
}

// DefaultConfig returns the thresholds used in production.
func DefaultConfig() Config {
	return Config{
		ExcellentBelow:     0.05,
		GoodBelow:          0.10,
		FairBelow:          0.20,
		ShoulderTolerance:  0.1,
		ElbowToleranceDeg:  15,
		BowArmMinDeg:       45,
		BowArmMaxDeg:       150,
		MinJointConfidence: 0.3,
	}
}

// Scorer assesses frames against a calibrated reference. Stateless; safe
// to share across assessments of the same session.
type Scorer struct {
	cfg Config
}

// New constructs a Scorer. Zero thresholds fall back to the defaults.
func New(cfg Config) *Scorer {
	def := DefaultConfig()
	if cfg.ExcellentBelow <= 0 {
		cfg.ExcellentBelow = def.ExcellentBelow
	}
	if cfg.GoodBelow <= 0 {
		cfg.GoodBelow = def.GoodBelow
	}
	if cfg.FairBelow <= 0 {
		cfg.FairBelow = def.FairBelow
	}
	if cfg.ShoulderTolerance <= 0 {
		cfg.ShoulderTolerance = def.ShoulderTolerance
	}
	if cfg.ElbowToleranceDeg <= 0 {
		cfg.ElbowToleranceDeg = def.ElbowToleranceDeg
	}
	if cfg.BowArmMinDeg <= 0 {
		cfg.BowArmMinDeg = def.BowArmMinDeg
	}
	if cfg.BowArmMaxDeg <= 0 {
		cfg.BowArmMaxDeg = def.BowArmMaxDeg
	}
	if cfg.MinJointConfidence <= 0 {
		cfg.MinJointConfidence = def.MinJointConfidence
	}
	return &Scorer{cfg: cfg}
}

// AssessRaw parses a stored calibration payload and assesses against it.
// A payload that does not decode yields an Error-tier assessment rather
// than a failure.
func (s *Scorer) AssessRaw(frame *pose.Frame, payload []byte) Assessment {
	ref, err := ParseReference(payload)
	if err != nil {
		return errorAssessment(err.Error())
	}
	return s.Assess(frame, ref)
}

// Assess compares a live frame to the calibrated reference. A nil
// reference yields an Error-tier assessment.
func (s *Scorer) Assess(frame *pose.Frame, ref *Reference) Assessment {
	if ref == nil {
		return errorAssessment("no calibration reference available")
	}

	refFrame := ref.frame()

	a := Assessment{
		ScalarDifference: s.scalarDifference(frame, refFrame),
		Feedback:         make(map[Region]RegionFeedback, 3),
	}

	switch {
	case a.ScalarDifference < s.cfg.ExcellentBelow:
		a.Status = Excellent
	case a.ScalarDifference < s.cfg.GoodBelow:
		a.Status = Good
	case a.ScalarDifference < s.cfg.FairBelow:
		a.Status = Fair
	default:
		a.Status = Poor
	}

	a.Feedback[RegionShoulders] = s.shoulderFeedback(frame, refFrame, ref)
	a.Feedback[RegionViolinArm] = s.violinArmFeedback(frame, ref)
	a.Feedback[RegionBowArm] = s.bowArmFeedback(frame)

	return a
}

// scalarDifference is the mean 3D distance over the posture joints present
// in both frames. With no joints present it is 1.0, the worst case.
func (s *Scorer) scalarDifference(frame, refFrame *pose.Frame) float64 {
	var sum float64
	var count int
	for _, j := range pose.PostureJoints {
		if !frame.Visible(j, s.cfg.MinJointConfidence) || !refFrame.Visible(j, s.cfg.MinJointConfidence) {
			continue
		}
		sum += geom.Distance(frame.Vec(j), refFrame.Vec(j))
		count++
	}
	if count == 0 {
		return 1.0
	}
	return sum / float64(count)
}

func (s *Scorer) shoulderFeedback(frame, refFrame *pose.Frame, ref *Reference) RegionFeedback {
	if !frame.Visible(pose.LeftShoulder, s.cfg.MinJointConfidence) ||
		!frame.Visible(pose.RightShoulder, s.cfg.MinJointConfidence) ||
		!refFrame.Visible(pose.LeftShoulder, s.cfg.MinJointConfidence) ||
		!refFrame.Visible(pose.RightShoulder, s.cfg.MinJointConfidence) {
		return RegionFeedback{RegionNotVisible, "Shoulders not fully visible"}
	}

	deviation := frame.ShoulderOffset() - ref.ShoulderOffset
	if abs(deviation) > s.cfg.ShoulderTolerance {
		return RegionFeedback{RegionAdjust, fmt.Sprintf("Level your shoulders (off by %.2f)", abs(deviation))}
	}
	return RegionFeedback{RegionGood, "Shoulders level"}
}

func (s *Scorer) violinArmFeedback(frame *pose.Frame, ref *Reference) RegionFeedback {
	if !frame.Visible(pose.LeftShoulder, s.cfg.MinJointConfidence) ||
		!frame.Visible(pose.LeftElbow, s.cfg.MinJointConfidence) ||
		!frame.Visible(pose.LeftWrist, s.cfg.MinJointConfidence) {
		return RegionFeedback{RegionNotVisible, "Left arm not fully visible"}
	}

	deviation := frame.LeftElbowAngle() - ref.LeftElbowAngle
	if abs(deviation) > s.cfg.ElbowToleranceDeg {
		return RegionFeedback{RegionAdjust, fmt.Sprintf("Adjust violin position (elbow off by %.1f deg)", abs(deviation))}
	}
	return RegionFeedback{RegionGood, "Violin position matches calibration"}
}

func (s *Scorer) bowArmFeedback(frame *pose.Frame) RegionFeedback {
	if !frame.Visible(pose.RightShoulder, s.cfg.MinJointConfidence) ||
		!frame.Visible(pose.RightElbow, s.cfg.MinJointConfidence) ||
		!frame.Visible(pose.RightWrist, s.cfg.MinJointConfidence) {
		return RegionFeedback{RegionNotVisible, "Bow arm not fully visible"}
	}

	angle := frame.RightElbowAngle()
	if angle < s.cfg.BowArmMinDeg || angle > s.cfg.BowArmMaxDeg {
		return RegionFeedback{RegionAdjust, fmt.Sprintf("Bow arm angle %.1f deg outside playable range", angle)}
	}
	return RegionFeedback{RegionGood, "Bow arm in playable range"}
}

func errorAssessment(msg string) Assessment {
	return Assessment{
		Status:           Error,
		ScalarDifference: 1.0,
		Feedback: map[Region]RegionFeedback{
			RegionShoulders: {RegionNotVisible, msg},
			RegionViolinArm: {RegionNotVisible, msg},
			RegionBowArm:    {RegionNotVisible, msg},
		},
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
