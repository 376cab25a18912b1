package ik

import (
	"math"
	"testing"

	"github.com/strikelab/go-armctl/pkg/chain"
	"github.com/strikelab/go-armctl/pkg/kinmath"
)

const floatTolerance = 1e-9

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) < floatTolerance
}

// armOptions configures the test arm built by makeChain.
type armOptions struct {
	wideLimits  bool // open shoulder/elbow limits so clamping never bites
	wristMimic  bool // wrist = 0.5*elbow + 0.1
	effectorTip bool // fixed 0.05 tip offset beyond the hand
}

// makeChain builds the canonical test arm: 0.10+0.05 column, 0.30 upper arm
// along +X, 0.25 forearm, vertical mount axis, lateral shoulder and elbow.
// The shoulder origin sits at (0, 0, 0.15).
func makeChain(t *testing.T, opts armOptions) *chain.Chain {
	t.Helper()

	shoulderLimits := chain.LimitDescriptor{Lower: -1.2, Upper: 1.8, Velocity: 1.0}
	elbowLimits := chain.LimitDescriptor{Lower: -2.5, Upper: 0.5, Velocity: 1.5}
	if opts.wideLimits {
		shoulderLimits = chain.LimitDescriptor{Lower: -3.14, Upper: 3.14, Velocity: 1.0}
		elbowLimits = chain.LimitDescriptor{Lower: -3.14, Upper: 3.14, Velocity: 1.5}
	}

	d := chain.Descriptor{
		Name: "testarm",
		Joints: []chain.JointDescriptor{
			{
				Name: "mount", Type: "revolute", Parent: "base", Child: "column",
				Origin: chain.OriginDescriptor{XYZ: [3]float64{0, 0, 0.10}},
				Axis:   [3]float64{0, 0, 1},
				Limits: chain.LimitDescriptor{Lower: -3.0, Upper: 3.0, Velocity: 1.0},
			},
			{
				Name: "shoulder", Type: "revolute", Parent: "column", Child: "upper_arm",
				Origin: chain.OriginDescriptor{XYZ: [3]float64{0, 0, 0.05}},
				Axis:   [3]float64{0, -1, 0},
				Limits: shoulderLimits,
			},
			{
				Name: "elbow", Type: "revolute", Parent: "upper_arm", Child: "forearm",
				Origin: chain.OriginDescriptor{XYZ: [3]float64{0.30, 0, 0}},
				Axis:   [3]float64{0, -1, 0},
				Limits: elbowLimits,
			},
			{
				Name: "wrist", Type: "revolute", Parent: "forearm", Child: "hand",
				Origin: chain.OriginDescriptor{XYZ: [3]float64{0.25, 0, 0}},
				Axis:   [3]float64{0, -1, 0},
				Limits: chain.LimitDescriptor{Lower: -1.0, Upper: 1.0, Velocity: 2.0},
			},
		},
	}
	if opts.wristMimic {
		d.Joints[3].Mimic = &chain.MimicDescriptor{Joint: "elbow", Factor: 0.5, Offset: 0.1}
	}
	if opts.effectorTip {
		d.Effector = &chain.EffectorDescriptor{Link: "tip", Parent: "hand", XYZ: [3]float64{0.05, 0, 0}}
	}

	c, err := chain.New(d)
	if err != nil {
		t.Fatalf("chain.New: %v", err)
	}
	return c
}

func makeSolver(t *testing.T, opts armOptions) *Solver {
	t.Helper()
	s, err := NewSolver(makeChain(t, opts))
	if err != nil {
		t.Fatalf("NewSolver: %v", err)
	}
	return s
}

func zeroSeed(c *chain.Chain) []float64 {
	return make([]float64, c.Len())
}

func TestNewSolver_Geometry(t *testing.T) {
	s := makeSolver(t, armOptions{effectorTip: true})
	geo := s.Geometry()

	if !floatEquals(geo.UpperArm, 0.30) {
		t.Errorf("upper arm: got %v, want 0.30", geo.UpperArm)
	}
	if !floatEquals(geo.Forearm, 0.25) {
		t.Errorf("forearm: got %v, want 0.25", geo.Forearm)
	}
	if !floatEquals(geo.WristOffset, 0.05) {
		t.Errorf("wrist offset: got %v, want 0.05", geo.WristOffset)
	}
	if !floatEquals(geo.ReachMax, 0.50) {
		t.Errorf("reach max: got %v, want 0.50", geo.ReachMax)
	}
	if !floatEquals(geo.ReachMin, 0.10) {
		t.Errorf("reach min: got %v, want 0.10", geo.ReachMin)
	}
	if !floatEquals(geo.MountOffset, 0) {
		t.Errorf("mount offset: got %v, want 0", geo.MountOffset)
	}
}

func TestNewSolver_ConfigurationErrors(t *testing.T) {
	t.Run("tilted mount axis", func(t *testing.T) {
		c := makeChain(t, armOptions{})
		d := descriptorOf(c)
		d.Joints[0].Axis = [3]float64{0.5, 0, 0.866}
		rebuilt, err := chain.New(d)
		if err != nil {
			t.Fatalf("chain.New: %v", err)
		}
		if _, err := NewSolver(rebuilt); err == nil {
			t.Fatal("expected configuration error for tilted mount axis")
		}
	})

	t.Run("prismatic elbow breaks the revolute chain", func(t *testing.T) {
		c := makeChain(t, armOptions{})
		d := descriptorOf(c)
		d.Joints[2].Type = "prismatic"
		rebuilt, err := chain.New(d)
		if err != nil {
			t.Fatalf("chain.New: %v", err)
		}
		if _, err := NewSolver(rebuilt); err == nil {
			t.Fatal("expected configuration error for missing revolute elbow")
		}
	})

	t.Run("zero-length upper arm", func(t *testing.T) {
		c := makeChain(t, armOptions{})
		d := descriptorOf(c)
		d.Joints[2].Origin.XYZ = [3]float64{}
		rebuilt, err := chain.New(d)
		if err != nil {
			t.Fatalf("chain.New: %v", err)
		}
		if _, err := NewSolver(rebuilt); err == nil {
			t.Fatal("expected configuration error for zero-length segment")
		}
	})
}

// descriptorOf rebuilds a descriptor from a built chain so tests can mutate
// one field and rebuild.
func descriptorOf(c *chain.Chain) chain.Descriptor {
	d := chain.Descriptor{Name: "testarm"}
	for _, j := range c.Joints() {
		jd := chain.JointDescriptor{
			Name: j.Name, Type: j.Kind.String(), Parent: j.Parent, Child: j.Child,
			Origin: chain.OriginDescriptor{XYZ: [3]float64{j.Origin.Trans.X, j.Origin.Trans.Y, j.Origin.Trans.Z}},
			Axis:   [3]float64{j.Axis.X, j.Axis.Y, j.Axis.Z},
			Limits: chain.LimitDescriptor{Lower: j.Limits.Min, Upper: j.Limits.Max, Velocity: j.Limits.Velocity},
		}
		if j.Mimic != nil {
			jd.Mimic = &chain.MimicDescriptor{Joint: j.Mimic.Joint, Factor: j.Mimic.Factor, Offset: j.Mimic.Offset}
		}
		d.Joints = append(d.Joints, jd)
	}
	return d
}

// TestSolve_WorkedExample is the scenario from the solver's design: upper
// arm 0.3, forearm 0.25, wrist offset 0.05, target 0.4 ahead of the
// shoulder along +Y. The shoulder/elbow pair must satisfy the law of
// cosines for sides (0.3, 0.25, 0.35) and the mount lands at pi/2.
func TestSolve_WorkedExample(t *testing.T) {
	s := makeSolver(t, armOptions{effectorTip: true, wristMimic: true})
	c := s.Chain()

	target := Pose{Position: kinmath.Vec3{X: 0, Y: 0.4, Z: 0.15}} // shoulder origin is (0,0,0.15)
	sol := s.Solve(target, zeroSeed(c))

	if sol.Code != Success {
		t.Fatalf("code: got %v, want success", sol.Code)
	}
	if len(sol.Positions) != c.Len() {
		t.Fatalf("positions length: got %d, want %d", len(sol.Positions), c.Len())
	}

	const (
		a = 0.30
		b = 0.25
		d = 0.35 // 0.4 minus the 0.05 wrist offset
	)
	wantMount := math.Pi / 2
	wantShoulder := math.Acos((a*a + d*d - b*b) / (2 * a * d)) // elevation is zero
	wantElbow := math.Acos((a*a+b*b-d*d)/(2*a*b)) - math.Pi

	mount, _ := c.Index("mount")
	shoulder, _ := c.Index("shoulder")
	elbow, _ := c.Index("elbow")
	wrist, _ := c.Index("wrist")

	if !floatEquals(sol.Positions[mount], wantMount) {
		t.Errorf("mount: got %v, want %v", sol.Positions[mount], wantMount)
	}
	if !floatEquals(sol.Positions[shoulder], wantShoulder) {
		t.Errorf("shoulder: got %v, want %v", sol.Positions[shoulder], wantShoulder)
	}
	if !floatEquals(sol.Positions[elbow], wantElbow) {
		t.Errorf("elbow: got %v, want %v", sol.Positions[elbow], wantElbow)
	}

	// Mimic filled from the solved elbow.
	wantWrist := c.Joint(wrist).ClampPosition(0.5*sol.Positions[elbow] + 0.1)
	if sol.Positions[wrist] != wantWrist {
		t.Errorf("wrist mimic: got %v, want %v", sol.Positions[wrist], wantWrist)
	}
}

// TestSolve_ForwardInverseConsistency checks that solving for a pose reached
// by forward kinematics reproduces the same end-effector position. The test
// arm has no wrist offset, where the triangle decomposition is exact.
func TestSolve_ForwardInverseConsistency(t *testing.T) {
	s := makeSolver(t, armOptions{wideLimits: true})
	c := s.Chain()

	mounts := []float64{0, 0.7, -1.2, 2.0}
	shoulders := []float64{0.2, 0.9}
	elbows := []float64{-0.4, -1.2, -2.0}

	for _, m := range mounts {
		for _, sh := range shoulders {
			for _, el := range elbows {
				state := NewState(c)
				if err := state.SetAll([]float64{m, sh, el, 0}); err != nil {
					t.Fatalf("SetAll: %v", err)
				}
				want := state.EffectorPose().Trans

				sol := s.Solve(Pose{Position: want}, zeroSeed(c))
				if sol.Code != Success {
					t.Fatalf("solve(%v,%v,%v): %v", m, sh, el, sol.Code)
				}

				check := NewState(c)
				if err := check.SetAll(sol.Positions); err != nil {
					t.Fatalf("SetAll solution: %v", err)
				}
				got := check.EffectorPose().Trans

				if got.Sub(want).Norm() > 1e-9 {
					t.Errorf("seed (%v,%v,%v): effector %v, want %v",
						m, sh, el, got, want)
				}
			}
		}
	}
}

// TestSolve_LimitContainment checks every returned joint value stays inside
// its position limits for a grid of targets, reachable or not.
func TestSolve_LimitContainment(t *testing.T) {
	s := makeSolver(t, armOptions{wristMimic: true})
	c := s.Chain()

	for _, x := range []float64{-0.6, -0.2, 0, 0.3, 0.7} {
		for _, y := range []float64{-0.5, 0, 0.4} {
			for _, z := range []float64{-0.3, 0.15, 0.6} {
				sol := s.Solve(Pose{Position: kinmath.Vec3{X: x, Y: y, Z: z}}, zeroSeed(c))
				if sol.Code != Success {
					t.Fatalf("target (%v,%v,%v): %v", x, y, z, sol.Code)
				}
				for i, v := range sol.Positions {
					j := c.Joint(i)
					if v < j.Limits.Min || v > j.Limits.Max {
						t.Errorf("target (%v,%v,%v): joint %s = %v outside [%v, %v]",
							x, y, z, j.Name, v, j.Limits.Min, j.Limits.Max)
					}
				}
			}
		}
	}
}

// TestSolve_ReachabilityClamping checks the extremal postures: past the
// outer envelope the shoulder and elbow sit exactly at max position, inside
// the inner envelope exactly at min.
func TestSolve_ReachabilityClamping(t *testing.T) {
	s := makeSolver(t, armOptions{effectorTip: true})
	c := s.Chain()
	shoulder, _ := c.Index("shoulder")
	elbow, _ := c.Index("elbow")

	shoulderJ := c.Joint(shoulder)
	elbowJ := c.Joint(elbow)

	// Distances walking out past ReachMax (0.50): all must pin at max.
	for _, d := range []float64{0.51, 0.6, 1.0, 5.0} {
		target := Pose{Position: kinmath.Vec3{X: d, Y: 0, Z: 0.15}}
		sol := s.Solve(target, zeroSeed(c))
		if sol.Positions[shoulder] != shoulderJ.Limits.Max {
			t.Errorf("dist %v: shoulder = %v, want exactly max %v",
				d, sol.Positions[shoulder], shoulderJ.Limits.Max)
		}
		if sol.Positions[elbow] != elbowJ.Limits.Max {
			t.Errorf("dist %v: elbow = %v, want exactly max %v",
				d, sol.Positions[elbow], elbowJ.Limits.Max)
		}
	}

	// Distances inside ReachMin (0.10): all must pin at min.
	for _, d := range []float64{0.09, 0.05, 0.01} {
		target := Pose{Position: kinmath.Vec3{X: d, Y: 0, Z: 0.15}}
		sol := s.Solve(target, zeroSeed(c))
		if sol.Positions[shoulder] != shoulderJ.Limits.Min {
			t.Errorf("dist %v: shoulder = %v, want exactly min %v",
				d, sol.Positions[shoulder], shoulderJ.Limits.Min)
		}
		if sol.Positions[elbow] != elbowJ.Limits.Min {
			t.Errorf("dist %v: elbow = %v, want exactly min %v",
				d, sol.Positions[elbow], elbowJ.Limits.Min)
		}
	}
}

// TestSolve_SeedValidation checks that a wrong-length seed yields a
// NoIKSolution code and never indexes out of bounds.
func TestSolve_SeedValidation(t *testing.T) {
	s := makeSolver(t, armOptions{})

	for _, n := range []int{0, 1, 3, 5, 12} {
		seed := make([]float64, n)
		sol := s.Solve(Pose{Position: kinmath.Vec3{X: 0.3, Y: 0, Z: 0.2}}, seed)
		if sol.Code != NoIKSolution {
			t.Errorf("seed length %d: code %v, want no_ik_solution", n, sol.Code)
		}
		if sol.Positions != nil {
			t.Errorf("seed length %d: positions %v, want nil", n, sol.Positions)
		}
	}
}

// TestSolve_NaNTargetHoldsSeed checks that a NaN target never propagates
// into the solution: every joint holds its seed value.
func TestSolve_NaNTargetHoldsSeed(t *testing.T) {
	s := makeSolver(t, armOptions{})
	c := s.Chain()

	seed := []float64{0.5, 0.25, -0.75, 0.1}
	sol := s.Solve(Pose{Position: kinmath.Vec3{X: math.NaN(), Y: 0.1, Z: 0.2}}, seed)

	if sol.Code != Success {
		t.Fatalf("code: got %v, want success", sol.Code)
	}
	for i, v := range sol.Positions {
		if math.IsNaN(v) {
			t.Fatalf("joint %s: NaN leaked into the solution", c.Joint(i).Name)
		}
		if v != seed[i] {
			t.Errorf("joint %s: got %v, want held seed %v", c.Joint(i).Name, v, seed[i])
		}
	}
}

// TestSolve_TargetOnShoulderAxis: a zero-length local target is not a
// failure. atan2(0,0) is 0, so the mount keeps the rest heading, and the
// degenerate distance retracts the arm.
func TestSolve_TargetOnShoulderAxis(t *testing.T) {
	s := makeSolver(t, armOptions{})
	c := s.Chain()
	mount, _ := c.Index("mount")

	sol := s.Solve(Pose{Position: kinmath.Vec3{X: 0, Y: 0, Z: 0.15}}, zeroSeed(c))
	if sol.Code != Success {
		t.Fatalf("code: got %v, want success", sol.Code)
	}
	if sol.Positions[mount] != 0 {
		t.Errorf("mount: got %v, want 0", sol.Positions[mount])
	}
	for i, v := range sol.Positions {
		if math.IsNaN(v) {
			t.Errorf("joint %s: NaN in solution", c.Joint(i).Name)
		}
	}
}

// TestSolve_InvertedAxes checks the angle-to-state mapping respects the
// joint's own axis direction instead of assuming +Z / -Y.
func TestSolve_InvertedAxes(t *testing.T) {
	c := makeChain(t, armOptions{wideLimits: true})
	d := descriptorOf(c)
	d.Joints[0].Axis = [3]float64{0, 0, -1} // mount spins the other way
	d.Joints[1].Axis = [3]float64{0, 1, 0}  // shoulder raises with negative values
	rebuilt, err := chain.New(d)
	if err != nil {
		t.Fatalf("chain.New: %v", err)
	}
	s, err := NewSolver(rebuilt)
	if err != nil {
		t.Fatalf("NewSolver: %v", err)
	}

	// Same consistency property must hold with flipped axes.
	state := NewState(rebuilt)
	if err := state.SetAll([]float64{-0.7, -0.5, -1.0, 0}); err != nil {
		t.Fatalf("SetAll: %v", err)
	}
	want := state.EffectorPose().Trans

	sol := s.Solve(Pose{Position: want}, zeroSeed(rebuilt))
	check := NewState(rebuilt)
	if err := check.SetAll(sol.Positions); err != nil {
		t.Fatalf("SetAll solution: %v", err)
	}
	got := check.EffectorPose().Trans

	if got.Sub(want).Norm() > 1e-9 {
		t.Errorf("effector: got %v, want %v", got, want)
	}
}

func TestSolve_CallbackAndMarkers(t *testing.T) {
	s := makeSolver(t, armOptions{})
	c := s.Chain()

	var gotCode Code
	var gotSolution []float64
	called := false
	markerCh := make(chan []Marker, 1)
	sol := s.Solve(
		Pose{Position: kinmath.Vec3{X: 0.3, Y: 0.1, Z: 0.2}},
		zeroSeed(c),
		WithCallback(func(_ Pose, solution []float64, code Code) {
			called = true
			gotCode = code
			gotSolution = solution
		}),
		WithMarkers(markerCh),
	)

	if !called {
		t.Fatal("callback was not invoked")
	}
	if gotCode != Success {
		t.Errorf("callback code: got %v", gotCode)
	}
	if len(gotSolution) != c.Len() {
		t.Errorf("callback solution length: got %d", len(gotSolution))
	}

	if len(sol.Markers) != 2 {
		t.Fatalf("markers: got %d, want 2", len(sol.Markers))
	}
	ray := sol.Markers[0]
	if ray.ID != MarkerTargetRay || len(ray.Points) != 2 {
		t.Errorf("target ray marker malformed: %+v", ray)
	}
	if !floatEquals(ray.Points[0].Z, 0.15) {
		t.Errorf("ray start: got %v, want shoulder origin", ray.Points[0])
	}
	arm := sol.Markers[1]
	if arm.ID != MarkerArmPose || len(arm.Points) != 3 {
		t.Errorf("arm marker malformed: %+v", arm)
	}

	select {
	case frame := <-markerCh:
		if len(frame) != 2 {
			t.Errorf("marker channel frame: got %d markers", len(frame))
		}
	default:
		t.Error("marker channel never received a frame")
	}
}

// TestSolver_ConcurrentSolves exercises the shared-nothing design: one
// solver, many goroutines, no shared kinematic state to race on.
func TestSolver_ConcurrentSolves(t *testing.T) {
	s := makeSolver(t, armOptions{wristMimic: true})
	c := s.Chain()

	done := make(chan struct{})
	for g := 0; g < 8; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 200; i++ {
				x := 0.1 + 0.001*float64(g*200+i)
				sol := s.Solve(Pose{Position: kinmath.Vec3{X: x, Y: 0.1, Z: 0.2}}, zeroSeed(c))
				if sol.Code != Success || len(sol.Positions) != c.Len() {
					t.Errorf("goroutine %d: bad solution %+v", g, sol)
					return
				}
			}
		}(g)
	}
	for g := 0; g < 8; g++ {
		<-done
	}
}
