// Package web exposes the arm's HTTP and websocket surface: solve requests,
// chain and state inspection, and live marker streaming for visualizers.
package web

import (
	"context"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/strikelab/go-armctl/internal/log"
	"github.com/strikelab/go-armctl/pkg/hardware"
	"github.com/strikelab/go-armctl/pkg/hub"
	"github.com/strikelab/go-armctl/pkg/ik"
)

// Server serves the arm API. The hardware loop is optional; without one the
// server still solves and streams markers, it just has no measured state.
type Server struct {
	app  *fiber.App
	addr string

	solver *ik.Solver
	loop   *hardware.Loop

	// last accepted solution, used as the seed when a request omits one
	mu   sync.RWMutex
	seed []float64

	markerHub *hub.Hub
	stateHub  *hub.Hub
}

// NewServer wires the API around a solver and an optional hardware loop.
func NewServer(addr string, solver *ik.Solver, loop *hardware.Loop) *Server {
	s := &Server{
		addr:      addr,
		solver:    solver,
		loop:      loop,
		seed:      ik.NewState(solver.Chain()).Positions(),
		markerHub: hub.New("markers"),
		stateHub:  hub.New("states"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "armctl",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/chain", s.handleChain)
	api.Get("/state", s.handleState)
	api.Post("/solve", s.handleSolve)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/markers", websocket.New(func(conn *websocket.Conn) {
		hub.NewClient(s.markerHub, conn).Run()
	}))
	app.Get("/ws/states", websocket.New(func(conn *websocket.Conn) {
		hub.NewClient(s.stateHub, conn).Run()
	}))

	s.app = app
	return s
}

// Run starts the hubs and serves until the context is canceled.
func (s *Server) Run(ctx context.Context) error {
	go s.markerHub.Run(ctx)
	go s.stateHub.Run(ctx)

	errc := make(chan error, 1)
	go func() { errc <- s.app.Listen(s.addr) }()
	log.Info("api listening", "addr", s.addr)

	select {
	case <-ctx.Done():
		if err := s.app.Shutdown(); err != nil {
			log.Warn("api shutdown", "error", err)
		}
		<-errc
		return ctx.Err()
	case err := <-errc:
		return err
	}
}

// PublishState broadcasts a joint-state snapshot to websocket subscribers.
// The daemon calls this from its state ticker.
func (s *Server) PublishState(positions map[string]float64) {
	if err := s.stateHub.Broadcast(positions); err != nil {
		log.Warn("state broadcast failed", "error", err)
	}
}

func (s *Server) currentSeed() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]float64, len(s.seed))
	copy(out, s.seed)
	return out
}

func (s *Server) storeSeed(positions []float64) {
	s.mu.Lock()
	s.seed = positions
	s.mu.Unlock()
}
