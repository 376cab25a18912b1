// Package ik implements the analytical inverse-kinematics solver for the
// 4-DOF arm (mount, shoulder, elbow, wrist). The solver decomposes a target
// pose into joint angles with a law-of-cosines triangle, clamps every result
// into joint limits, and propagates mimic relations.
package ik

import (
	"fmt"

	"github.com/strikelab/go-armctl/pkg/chain"
	"github.com/strikelab/go-armctl/pkg/kinmath"
)

// State is a kinematic snapshot: joint positions plus the global link
// transforms they imply. It is a per-call value, not a shared instance
// field, so concurrent solves against one Solver never race on it.
type State struct {
	chain      *chain.Chain
	positions  []float64
	transforms map[string]kinmath.Transform
	dirty      bool
}

// NewState returns a state at the chain's rest pose (all joints zero,
// clamped into limits).
func NewState(c *chain.Chain) *State {
	s := &State{
		chain:      c,
		positions:  make([]float64, c.Len()),
		transforms: make(map[string]kinmath.Transform, c.Len()+2),
		dirty:      true,
	}
	for i := 0; i < c.Len(); i++ {
		s.positions[i] = c.Joint(i).ClampPosition(0)
	}
	return s
}

// Positions returns a copy of the joint positions in chain order.
func (s *State) Positions() []float64 {
	out := make([]float64, len(s.positions))
	copy(out, s.positions)
	return out
}

// Position returns the position of joint i.
func (s *State) Position(i int) float64 {
	return s.positions[i]
}

// Set writes joint i's position, clamped into its limits.
func (s *State) Set(i int, v float64) {
	s.positions[i] = s.chain.Joint(i).ClampPosition(v)
	s.dirty = true
}

// SetAll replaces every joint position at once. The vector length must match
// the chain's joint count.
func (s *State) SetAll(vs []float64) error {
	if len(vs) != len(s.positions) {
		return fmt.Errorf("ik: state for %d joints, received %d", len(s.positions), len(vs))
	}
	for i, v := range vs {
		s.positions[i] = s.chain.Joint(i).ClampPosition(v)
	}
	s.dirty = true
	return nil
}

// LinkTransform returns the global transform of a named link at the current
// positions. The root link is the identity frame.
func (s *State) LinkTransform(name string) (kinmath.Transform, bool) {
	s.recompute()
	t, ok := s.transforms[name]
	return t, ok
}

// LinkLength returns the translation difference between two link frames at
// the current positions.
func (s *State) LinkLength(from, to string) (kinmath.Vec3, error) {
	a, ok := s.LinkTransform(from)
	if !ok {
		return kinmath.Vec3{}, fmt.Errorf("ik: unknown link %q", from)
	}
	b, ok := s.LinkTransform(to)
	if !ok {
		return kinmath.Vec3{}, fmt.Errorf("ik: unknown link %q", to)
	}
	return b.Trans.Sub(a.Trans), nil
}

// EffectorPose returns the global transform of the tip frame.
func (s *State) EffectorPose() kinmath.Transform {
	s.recompute()
	return s.transforms[s.chain.TipLink()]
}

// recompute walks the chain root to tip, composing each joint's fixed origin
// with its motion at the current position.
func (s *State) recompute() {
	if !s.dirty {
		return
	}
	t := kinmath.Identity()
	s.transforms[s.chain.RootLink()] = t
	for i, j := range s.chain.Joints() {
		t = t.Mul(j.Origin).Mul(j.Motion(s.positions[i]))
		s.transforms[j.Child] = t
	}
	if off, ok := s.chain.TipOffset(); ok {
		s.transforms[s.chain.TipLink()] = t.Mul(kinmath.FromTranslation(off))
	}
	s.dirty = false
}
