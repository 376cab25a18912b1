package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/num/quat"

	"github.com/strikelab/go-armctl/internal/log"
	"github.com/strikelab/go-armctl/pkg/ik"
	"github.com/strikelab/go-armctl/pkg/kinmath"
)

// JointInfo describes one joint of the chain for API consumers.
type JointInfo struct {
	Name     string     `json:"name"`
	Type     string     `json:"type"`
	Parent   string     `json:"parent"`
	Child    string     `json:"child"`
	Axis     [3]float64 `json:"axis"`
	Min      float64    `json:"min"`
	Max      float64    `json:"max"`
	Velocity float64    `json:"velocity"`
	Mimic    string     `json:"mimic,omitempty"`
}

// ChainResponse is the GET /api/chain payload.
type ChainResponse struct {
	Root     string      `json:"root"`
	Tip      string      `json:"tip"`
	Joints   []JointInfo `json:"joints"`
	Geometry ik.Geometry `json:"geometry"`
}

func (s *Server) handleChain(c *fiber.Ctx) error {
	ch := s.solver.Chain()
	resp := ChainResponse{
		Root:     ch.RootLink(),
		Tip:      ch.TipLink(),
		Geometry: s.solver.Geometry(),
	}
	for _, j := range ch.Joints() {
		info := JointInfo{
			Name:     j.Name,
			Type:     j.Kind.String(),
			Parent:   j.Parent,
			Child:    j.Child,
			Axis:     [3]float64{j.Axis.X, j.Axis.Y, j.Axis.Z},
			Min:      j.Limits.Min,
			Max:      j.Limits.Max,
			Velocity: j.Limits.Velocity,
		}
		if j.Mimic != nil {
			info.Mimic = j.Mimic.Joint
		}
		resp.Joints = append(resp.Joints, info)
	}
	return c.JSON(resp)
}

// StateResponse is the GET /api/state payload: the last accepted solution
// plus measured hardware positions when a control loop is attached.
type StateResponse struct {
	Solution []float64          `json:"solution"`
	Measured map[string]float64 `json:"measured,omitempty"`
}

func (s *Server) handleState(c *fiber.Ctx) error {
	resp := StateResponse{Solution: s.currentSeed()}
	if s.loop != nil {
		resp.Measured = s.loop.Positions()
	}
	return c.JSON(resp)
}

// SolveRequest is the POST /api/solve body. Seed is optional; without one
// the last accepted solution seeds the solve. Orientation is optional and
// carried through, never constrained.
type SolveRequest struct {
	Position    [3]float64  `json:"position"`
	Orientation *[4]float64 `json:"orientation,omitempty"` // w, x, y, z
	Seed        []float64   `json:"seed,omitempty"`
	Apply       bool        `json:"apply,omitempty"`
}

// SolveResponse is the POST /api/solve payload.
type SolveResponse struct {
	ID        string      `json:"id"`
	Code      string      `json:"code"`
	Positions []float64   `json:"positions,omitempty"`
	Markers   []ik.Marker `json:"markers,omitempty"`
}

func (s *Server) handleSolve(c *fiber.Ctx) error {
	var req SolveRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed request body"})
	}

	target := ik.Pose{
		Position: kinmath.Vec3{X: req.Position[0], Y: req.Position[1], Z: req.Position[2]},
	}
	if req.Orientation != nil {
		q := quat.Number{
			Real: req.Orientation[0],
			Imag: req.Orientation[1],
			Jmag: req.Orientation[2],
			Kmag: req.Orientation[3],
		}
		target.Orientation = &q
	}

	seed := req.Seed
	if seed == nil {
		seed = s.currentSeed()
	}

	id := uuid.NewString()
	sol := s.solver.Solve(target, seed)

	resp := SolveResponse{ID: id, Code: sol.Code.String()}
	if sol.Code != ik.Success {
		log.Warn("solve rejected", "id", id, "seed_len", len(seed))
		return c.Status(fiber.StatusUnprocessableEntity).JSON(resp)
	}

	resp.Positions = sol.Positions
	resp.Markers = sol.Markers

	s.storeSeed(sol.Positions)
	if err := s.markerHub.Broadcast(resp); err != nil {
		log.Warn("marker broadcast failed", "id", id, "error", err)
	}

	if req.Apply && s.loop != nil {
		targets := make(map[string]float64, len(sol.Positions))
		for i, v := range sol.Positions {
			targets[s.solver.Chain().Joint(i).Name] = v
		}
		s.loop.Apply(targets)
	}

	log.Debug("solve accepted", "id", id,
		"x", req.Position[0], "y", req.Position[1], "z", req.Position[2])
	return c.JSON(resp)
}
