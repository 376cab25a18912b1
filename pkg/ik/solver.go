package ik

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"

	"github.com/strikelab/go-armctl/internal/log"
	"github.com/strikelab/go-armctl/pkg/chain"
	"github.com/strikelab/go-armctl/pkg/kinmath"
)

// ErrConfiguration marks chains the analytical solver cannot serve; it is
// fatal at construction, never during a solve.
var ErrConfiguration = errors.New("ik: unsupported chain configuration")

// Code is the per-solve result code.
type Code int

const (
	// Success means the returned vector is a usable solution.
	Success Code = iota
	// NoIKSolution means request validation failed (bad seed length or
	// target); the caller may retry with a corrected request.
	NoIKSolution
)

// String returns the wire spelling of the code.
func (c Code) String() string {
	if c == NoIKSolution {
		return "no_ik_solution"
	}
	return "success"
}

// Pose is a requested end-effector pose in the base frame. Orientation is
// optional and ignored by the position-dominant algorithm; it is carried for
// callers that log or relay it.
type Pose struct {
	Position    kinmath.Vec3
	Orientation *quat.Number
}

// Solution is a solve result: a full-length joint-state vector in chain
// order (nil only when Code is NoIKSolution) plus debug markers describing
// the shoulder-to-target ray and the solved arm pose.
type Solution struct {
	Code      Code
	Positions []float64
	Markers   []Marker
}

// Callback receives the solution when a solve succeeds.
type Callback func(target Pose, solution []float64, code Code)

type solveConfig struct {
	callback Callback
	markers  chan<- []Marker
}

// SolveOption configures a single solve call.
type SolveOption func(*solveConfig)

// WithCallback invokes cb with the solution on success.
func WithCallback(cb Callback) SolveOption {
	return func(c *solveConfig) { c.callback = cb }
}

// WithMarkers sends the solve's debug markers on ch. The send never blocks;
// a full channel drops the frame.
func WithMarkers(ch chan<- []Marker) SolveOption {
	return func(c *solveConfig) { c.markers = ch }
}

// axisDominance is how aligned a joint axis must be with its expected
// direction (mount: vertical, shoulder/elbow: lateral) for the planar
// decomposition to hold.
const axisDominance = 0.99

// Geometry is the rest-pose arm geometry the solver caches at construction.
type Geometry struct {
	UpperArm    float64 // shoulder child to elbow child
	Forearm     float64 // elbow child to wrist child
	WristOffset float64 // wrist child to tip frame
	ReachMin    float64 // inner radius of the reachability envelope
	ReachMax    float64 // outer radius of the reachability envelope
	MountOffset float64 // yaw of shoulder-to-effector at the rest pose
}

// Solver computes mount, shoulder and elbow angles for a target pose and
// fills mimic joints. It holds only the immutable chain and geometry cached
// from the rest pose, so one Solver is safe for concurrent solves.
type Solver struct {
	chain *chain.Chain

	mount, shoulder, elbow, wrist int

	shoulderOrigin kinmath.Vec3
	geo            Geometry
	shoulderZero   float64 // rest-pose elevation of the upper arm

	mountSign    float64
	shoulderSign float64
	elbowSign    float64
}

// NewSolver caches the chain's rest-pose geometry and validates that the
// structure suits the analytical decomposition. Failures are configuration
// errors; the solver refuses to activate.
func NewSolver(c *chain.Chain) (*Solver, error) {
	mount := c.FindJoint(chain.Revolute, nil)
	if mount == nil {
		return nil, fmt.Errorf("%w: no mount joint", ErrConfiguration)
	}
	shoulder := c.FindJoint(chain.Revolute, mount)
	if shoulder == nil {
		return nil, fmt.Errorf("%w: no shoulder joint below %q", ErrConfiguration, mount.Name)
	}
	elbow := c.FindJoint(chain.Revolute, shoulder)
	if elbow == nil {
		return nil, fmt.Errorf("%w: no elbow joint below %q", ErrConfiguration, shoulder.Name)
	}
	wrist := c.FindJoint(chain.Revolute, elbow)
	if wrist == nil {
		return nil, fmt.Errorf("%w: no wrist joint below %q", ErrConfiguration, elbow.Name)
	}

	if math.Abs(c.Axis(mount).Z) < axisDominance {
		return nil, fmt.Errorf("%w: mount axis %v is not vertical", ErrConfiguration, mount.Axis)
	}
	for _, j := range []*chain.Joint{shoulder, elbow} {
		if math.Abs(c.Axis(j).Y) < axisDominance {
			return nil, fmt.Errorf("%w: %s axis %v is not lateral", ErrConfiguration, j.Name, j.Axis)
		}
	}

	s := &Solver{chain: c}
	s.mount, _ = c.Index(mount.Name)
	s.shoulder, _ = c.Index(shoulder.Name)
	s.elbow, _ = c.Index(elbow.Name)
	s.wrist, _ = c.Index(wrist.Name)

	// Segment lengths come from the rest pose and are cached here; the
	// per-call State is never consulted for geometry again.
	rest := NewState(c)
	shoulderT, _ := rest.LinkTransform(shoulder.Child)
	s.shoulderOrigin = shoulderT.Trans

	upperArm, err := rest.LinkLength(shoulder.Child, elbow.Child)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	forearm, err := rest.LinkLength(elbow.Child, wrist.Child)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	shoulderToEffector, err := rest.LinkLength(shoulder.Child, c.TipLink())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	wristToEffector, err := rest.LinkLength(wrist.Child, c.TipLink())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	a, b, w := upperArm.Norm(), forearm.Norm(), wristToEffector.Norm()
	if a < 1e-9 || b < 1e-9 {
		return nil, fmt.Errorf("%w: zero-length arm segment (upper %g, forearm %g)",
			ErrConfiguration, a, b)
	}

	s.geo = Geometry{
		UpperArm:    a,
		Forearm:     b,
		WristOffset: w,
		ReachMin:    math.Abs(a-b) + w,
		ReachMax:    a + b - w,
		MountOffset: shoulderToEffector.Yaw(),
	}
	s.shoulderZero = math.Asin(upperArm.Z / a)

	s.mountSign = math.Copysign(1, c.Axis(mount).Z)
	s.shoulderSign = -math.Copysign(1, c.Axis(shoulder).Y)
	s.elbowSign = -math.Copysign(1, c.Axis(elbow).Y)

	log.Debug("ik solver ready",
		"upper_arm", a, "forearm", b, "wrist_offset", w,
		"reach_min", s.geo.ReachMin, "reach_max", s.geo.ReachMax,
		"mount_offset", s.geo.MountOffset)

	return s, nil
}

// Chain returns the solver's chain.
func (s *Solver) Chain() *chain.Chain {
	return s.chain
}

// Geometry returns the cached rest-pose geometry.
func (s *Solver) Geometry() Geometry {
	return s.geo
}

// Solve computes a full-length joint-state vector for the target pose. The
// seed provides the starting positions; joints the algorithm does not place
// (and any joint whose computed angle is NaN) hold their seed value. The
// result code is Success unless seed validation fails.
//
// Targets outside the reachability envelope are not errors: beyond ReachMax
// the shoulder and elbow pin to their maximum positions, inside ReachMin to
// their minimums. A target directly on the shoulder axis yields atan2(0,0),
// which Go defines as 0, so the mount simply keeps the rest heading.
func (s *Solver) Solve(target Pose, seed []float64, opts ...SolveOption) Solution {
	var cfg solveConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if len(seed) != s.chain.Len() {
		log.Error("ik solve rejected",
			"reason", "seed length mismatch",
			"expected", s.chain.Len(), "received", len(seed))
		return Solution{Code: NoIKSolution}
	}

	out := make([]float64, len(seed))
	copy(out, seed)

	local := target.Position.Sub(s.shoulderOrigin)

	// Mount: align the elbow plane with the target, correcting for the yaw
	// the effector already has at the rest pose.
	yaw := local.Yaw() - s.geo.MountOffset
	s.setJoint(s.mount, yaw*s.mountSign, seed, out)

	a, b, w := s.geo.UpperArm, s.geo.Forearm, s.geo.WristOffset
	dist := local.Norm()

	switch {
	case dist > s.geo.ReachMax:
		// Fully extended posture.
		s.setJointLimit(s.elbow, true, out)
		s.setJointLimit(s.shoulder, true, out)
	case dist < s.geo.ReachMin:
		// Fully retracted posture.
		s.setJointLimit(s.elbow, false, out)
		s.setJointLimit(s.shoulder, false, out)
	default:
		c := kinmath.Clamp(dist-w, math.Abs(a-b), a+b)
		elevation := 0.0
		if dist > 0 {
			elevation = math.Asin(local.Z / dist)
		}
		included := kinmath.AcosClamped((a*a + c*c - b*b) / (2 * a * c))
		flex := kinmath.AcosClamped((a*a + b*b - c*c) / (2 * a * b))

		shoulderAngle := elevation + included - s.shoulderZero
		elbowAngle := flex - math.Pi

		s.setJoint(s.shoulder, shoulderAngle*s.shoulderSign, seed, out)
		s.setJoint(s.elbow, elbowAngle*s.elbowSign, seed, out)
	}

	markers := s.buildMarkers(target.Position, out)
	if cfg.markers != nil {
		select {
		case cfg.markers <- markers:
		default:
		}
	}

	if cfg.callback != nil {
		cfg.callback(target, out, Success)
	}
	return Solution{Code: Success, Positions: out, Markers: markers}
}

// setJoint converts an angle to the joint's state value, clamps it into the
// position limits and writes it, then fills any direct mimics. A NaN angle
// holds the seed value instead of propagating the NaN.
func (s *Solver) setJoint(idx int, angle float64, seed, out []float64) {
	if math.IsNaN(angle) {
		out[idx] = seed[idx]
		return
	}
	j := s.chain.Joint(idx)
	state := j.ClampPosition(angle)
	out[idx] = state

	log.Debug("ik joint solved",
		"joint", j.Name, "angle", angle, "state", state,
		"min", j.Limits.Min, "max", j.Limits.Max)

	Propagate(s.chain, idx, state, out)
}

// setJointLimit pins the joint exactly at its max (or min) position and
// fills any direct mimics.
func (s *Solver) setJointLimit(idx int, max bool, out []float64) {
	j := s.chain.Joint(idx)
	state := j.Limits.Min
	if max {
		state = j.Limits.Max
	}
	out[idx] = state
	Propagate(s.chain, idx, state, out)
}
