package ik

import "github.com/strikelab/go-armctl/pkg/kinmath"

// Marker IDs, matching the segments the solver emits per solve.
const (
	MarkerTargetRay = 0
	MarkerArmPose   = 1
)

// Marker is a debug line segment set for a host-side visualizer: a polyline
// of points and an RGB color. Markers are purely informational; the solver
// never consumes them back.
type Marker struct {
	ID     int            `json:"id"`
	Points []kinmath.Vec3 `json:"points"`
	Color  [3]float64     `json:"color"`
}

// buildMarkers produces the shoulder-to-target ray and the solved arm
// polyline (shoulder, elbow, effector) by running forward kinematics over
// the solution.
func (s *Solver) buildMarkers(target kinmath.Vec3, solution []float64) []Marker {
	state := NewState(s.chain)
	if err := state.SetAll(solution); err != nil {
		return nil
	}

	elbowT, ok := state.LinkTransform(s.chain.Joint(s.elbow).Child)
	if !ok {
		return nil
	}
	tip := state.EffectorPose().Trans

	return []Marker{
		{
			ID:     MarkerTargetRay,
			Points: []kinmath.Vec3{s.shoulderOrigin, target},
			Color:  [3]float64{1, 0, 1},
		},
		{
			ID:     MarkerArmPose,
			Points: []kinmath.Vec3{s.shoulderOrigin, elbowT.Trans, tip},
			Color:  [3]float64{0, 1, 1},
		},
	}
}
