// Package chain models the arm's kinematic chain: ordered joints with axes,
// limits and mimic relations, plus the links they connect. A Chain is built
// once from a descriptor, validated, and immutable afterwards, so it is safe
// to share between concurrent solves.
package chain

import (
	"errors"
	"fmt"
	"math"

	"github.com/strikelab/go-armctl/pkg/kinmath"
)

// Sentinel errors for configuration failures. All of them are fatal: a chain
// that fails to build must never be solved against.
var (
	ErrTopology = errors.New("chain: invalid topology")
	ErrMimic    = errors.New("chain: invalid mimic relation")
)

// JointKind is the joint's motion type, resolved once at build time.
type JointKind int

const (
	// Revolute joints rotate about their axis.
	Revolute JointKind = iota
	// Prismatic joints translate along their axis.
	Prismatic
)

// String returns the descriptor spelling of the kind.
func (k JointKind) String() string {
	if k == Prismatic {
		return "prismatic"
	}
	return "revolute"
}

// Limits bounds a joint's position and velocity.
type Limits struct {
	Min, Max float64
	Velocity float64
}

// Mimic is an affine relation to a master joint:
// position = Factor*master + Offset.
type Mimic struct {
	Joint  string
	Factor float64
	Offset float64
}

// Joint is one joint of the chain. Parent and Child name the links the joint
// connects; Origin is the fixed transform from the parent link frame to the
// joint frame, and Axis is the motion axis in that frame.
type Joint struct {
	Name   string
	Kind   JointKind
	Parent string
	Child  string
	Origin kinmath.Transform
	Axis   kinmath.Vec3
	Limits Limits
	Mimic  *Mimic
}

// ChainJointCount is the only supported chain length: mount, shoulder,
// elbow, wrist.
const ChainJointCount = 4

// Chain is the validated, immutable kinematic chain.
type Chain struct {
	joints    []Joint
	index     map[string]int
	mimics    [][]int // master index -> direct mimic indices
	root      string  // base link
	tip       string  // tip frame
	tipOffset kinmath.Vec3
	hasTip    bool
}

// New builds and validates a chain from a descriptor. Any deviation from the
// supported topology (exactly four joints in one parent-to-child chain with
// one tip frame) or a malformed mimic relation is a configuration error.
func New(d Descriptor) (*Chain, error) {
	if len(d.Joints) != ChainJointCount {
		return nil, fmt.Errorf("%w: expected %d joints, found %d",
			ErrTopology, ChainJointCount, len(d.Joints))
	}

	joints := make([]Joint, 0, len(d.Joints))
	for _, jd := range d.Joints {
		j, err := buildJoint(jd)
		if err != nil {
			return nil, err
		}
		joints = append(joints, j)
	}

	ordered, err := orderChain(joints)
	if err != nil {
		return nil, err
	}

	c := &Chain{
		joints: ordered,
		index:  make(map[string]int, len(ordered)),
		mimics: make([][]int, len(ordered)),
		root:   ordered[0].Parent,
		tip:    ordered[len(ordered)-1].Child,
	}
	for i, j := range ordered {
		if _, dup := c.index[j.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate joint %q", ErrTopology, j.Name)
		}
		c.index[j.Name] = i
	}

	if err := c.buildMimics(); err != nil {
		return nil, err
	}

	if d.Effector != nil {
		if d.Effector.Parent != c.tip {
			return nil, fmt.Errorf("%w: effector frame %q attached to %q, want wrist child %q",
				ErrTopology, d.Effector.Link, d.Effector.Parent, c.tip)
		}
		c.tip = d.Effector.Link
		c.tipOffset = kinmath.Vec3{X: d.Effector.XYZ[0], Y: d.Effector.XYZ[1], Z: d.Effector.XYZ[2]}
		c.hasTip = true
	}

	return c, nil
}

func buildJoint(jd JointDescriptor) (Joint, error) {
	var kind JointKind
	switch jd.Type {
	case "revolute":
		kind = Revolute
	case "prismatic":
		kind = Prismatic
	default:
		return Joint{}, fmt.Errorf("%w: joint %q has unsupported type %q",
			ErrTopology, jd.Name, jd.Type)
	}

	axis := kinmath.Vec3{X: jd.Axis[0], Y: jd.Axis[1], Z: jd.Axis[2]}
	if axis.Norm() < 1e-9 {
		return Joint{}, fmt.Errorf("%w: joint %q has a zero axis", ErrTopology, jd.Name)
	}

	if jd.Limits.Upper < jd.Limits.Lower {
		return Joint{}, fmt.Errorf("%w: joint %q limits inverted (%g > %g)",
			ErrTopology, jd.Name, jd.Limits.Lower, jd.Limits.Upper)
	}

	origin := kinmath.FromTranslation(kinmath.Vec3{
		X: jd.Origin.XYZ[0], Y: jd.Origin.XYZ[1], Z: jd.Origin.XYZ[2],
	}).Mul(kinmath.FromRPY(jd.Origin.RPY[0], jd.Origin.RPY[1], jd.Origin.RPY[2]))

	j := Joint{
		Name:   jd.Name,
		Kind:   kind,
		Parent: jd.Parent,
		Child:  jd.Child,
		Origin: origin,
		Axis:   axis.Normalize(),
		Limits: Limits{Min: jd.Limits.Lower, Max: jd.Limits.Upper, Velocity: jd.Limits.Velocity},
	}
	if jd.Mimic != nil {
		factor := jd.Mimic.Factor
		if factor == 0 {
			factor = 1
		}
		j.Mimic = &Mimic{Joint: jd.Mimic.Joint, Factor: factor, Offset: jd.Mimic.Offset}
	}
	return j, nil
}

// orderChain arranges joints root to tip by following parent/child links.
// Branches, cycles and disconnected joints all fail as topology errors.
func orderChain(joints []Joint) ([]Joint, error) {
	children := make(map[string]bool, len(joints))
	for _, j := range joints {
		children[j.Child] = true
	}

	byParent := make(map[string]int, len(joints))
	for i, j := range joints {
		if prev, dup := byParent[j.Parent]; dup {
			return nil, fmt.Errorf("%w: links branch at %q (joints %q and %q)",
				ErrTopology, j.Parent, joints[prev].Name, j.Name)
		}
		byParent[j.Parent] = i
	}

	rootIdx := -1
	for i, j := range joints {
		if !children[j.Parent] {
			if rootIdx >= 0 {
				return nil, fmt.Errorf("%w: found more than one chain root", ErrTopology)
			}
			rootIdx = i
		}
	}
	if rootIdx < 0 {
		return nil, fmt.Errorf("%w: no chain root (link cycle)", ErrTopology)
	}

	ordered := make([]Joint, 0, len(joints))
	for i := rootIdx; ; {
		ordered = append(ordered, joints[i])
		next, ok := byParent[joints[i].Child]
		if !ok {
			break
		}
		i = next
	}
	if len(ordered) != len(joints) {
		return nil, fmt.Errorf("%w: %d of %d joints are disconnected from the chain",
			ErrTopology, len(joints)-len(ordered), len(joints))
	}
	return ordered, nil
}

// buildMimics resolves mimic relations to index-based maps once, so solving
// never searches the joint list. Mimic-of-mimic is rejected rather than
// silently mis-solved.
func (c *Chain) buildMimics() error {
	for i, j := range c.joints {
		if j.Mimic == nil {
			continue
		}
		master, ok := c.index[j.Mimic.Joint]
		if !ok {
			return fmt.Errorf("%w: joint %q mimics unknown joint %q",
				ErrMimic, j.Name, j.Mimic.Joint)
		}
		if master == i {
			return fmt.Errorf("%w: joint %q mimics itself", ErrMimic, j.Name)
		}
		if c.joints[master].Mimic != nil {
			return fmt.Errorf("%w: joint %q mimics %q, which is itself a mimic",
				ErrMimic, j.Name, j.Mimic.Joint)
		}
		c.mimics[master] = append(c.mimics[master], i)
	}
	return nil
}

// Len returns the number of joints.
func (c *Chain) Len() int {
	return len(c.joints)
}

// Joint returns the joint at index i in chain order.
func (c *Chain) Joint(i int) *Joint {
	return &c.joints[i]
}

// Joints returns the joints in chain order. The returned slice is shared;
// callers must not modify it.
func (c *Chain) Joints() []Joint {
	return c.joints
}

// Index returns the chain-order index for a joint name.
func (c *Chain) Index(name string) (int, bool) {
	i, ok := c.index[name]
	return i, ok
}

// MimicTargets returns the indices of joints that directly mimic the joint
// at master. Propagation is one level only.
func (c *Chain) MimicTargets(master int) []int {
	return c.mimics[master]
}

// RootLink returns the base link name.
func (c *Chain) RootLink() string {
	return c.root
}

// TipLink returns the single tip frame name.
func (c *Chain) TipLink() string {
	return c.tip
}

// TipOffset returns the fixed effector offset beyond the wrist child link,
// in the wrist child frame, and whether one is configured.
func (c *Chain) TipOffset() (kinmath.Vec3, bool) {
	return c.tipOffset, c.hasTip
}

// FindJoint returns the first joint of the given kind whose parent link is
// parent's child link, or the first joint of the kind when parent is nil.
// It returns nil when no joint matches; callers must treat that as a fatal
// configuration error, not retry.
func (c *Chain) FindJoint(kind JointKind, parent *Joint) *Joint {
	for i := range c.joints {
		j := &c.joints[i]
		if j.Kind != kind {
			continue
		}
		if parent == nil || j.Parent == parent.Child {
			return j
		}
	}
	return nil
}

// Axis returns the joint's motion axis resolved by its kind. Both kinds
// carry the axis in the same field; the accessor keeps call sites honest
// about the dispatch happening at build time.
func (c *Chain) Axis(j *Joint) kinmath.Vec3 {
	return j.Axis
}

// ClampPosition clamps v into the joint's position limits. NaN holds at the
// limit midpoint rather than propagating.
func (j *Joint) ClampPosition(v float64) float64 {
	if math.IsNaN(v) {
		return kinmath.Clamp((j.Limits.Min+j.Limits.Max)/2, j.Limits.Min, j.Limits.Max)
	}
	return kinmath.Clamp(v, j.Limits.Min, j.Limits.Max)
}

// Motion returns the joint's local motion transform at position q.
func (j *Joint) Motion(q float64) kinmath.Transform {
	if j.Kind == Prismatic {
		return kinmath.TranslationAlong(j.Axis, q)
	}
	return kinmath.RotationAbout(j.Axis, q)
}
