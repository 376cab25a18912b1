package hardware

import (
	"context"
	"sync"
	"time"

	"github.com/strikelab/go-armctl/internal/log"
)

// Loop runs the read-update-write control cycle at a fixed rate: read
// encoder feedback, advance every controller toward its target, write the
// resulting commands. Apply and Positions are safe to call while the loop
// runs; controller access is serialized through the loop's mutex.
type Loop struct {
	board       Board
	controllers []Controller
	encoders    []*Encoder
	rate        float64

	mu       sync.Mutex
	byJoint  map[string]Controller
	measured map[string]float64
}

// NewLoop builds a control loop over the board.
func NewLoop(board Board, controllers []Controller, encoders []*Encoder, rateHz float64) *Loop {
	byJoint := make(map[string]Controller, len(controllers))
	for _, c := range controllers {
		byJoint[c.Joint()] = c
	}
	return &Loop{
		board:       board,
		controllers: controllers,
		encoders:    encoders,
		rate:        rateHz,
		byJoint:     byJoint,
		measured:    make(map[string]float64, len(encoders)),
	}
}

// Apply commands new target positions by joint name. Joints without a
// controller are ignored; the solver's vector covers mimic joints that only
// exist kinematically.
func (l *Loop) Apply(targets map[string]float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for joint, pos := range targets {
		if c, ok := l.byJoint[joint]; ok {
			c.SetTarget(pos)
		}
	}
}

// Positions reports the current position of every controlled joint,
// preferring encoder feedback where a joint has one.
func (l *Loop) Positions() map[string]float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]float64, len(l.controllers))
	for _, c := range l.controllers {
		out[c.Joint()] = c.Position()
	}
	for joint, pos := range l.measured {
		out[joint] = pos
	}
	return out
}

// Run drives the cycle until the context is canceled. A cycle that overruns
// its period is skipped, never queued.
func (l *Loop) Run(ctx context.Context) error {
	period := time.Duration(float64(time.Second) / l.rate)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	log.Info("control loop started",
		"rate_hz", l.rate,
		"controllers", len(l.controllers),
		"encoders", len(l.encoders))

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			log.Info("control loop stopped")
			return ctx.Err()
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			if !l.mu.TryLock() {
				log.Warn("control cycle skipped", "period", period)
				continue
			}
			l.cycle(dt)
			l.mu.Unlock()
		}
	}
}

func (l *Loop) cycle(dt float64) {
	for _, e := range l.encoders {
		pos, err := e.Read(l.board)
		if err != nil {
			log.Warn("encoder read failed", "joint", e.Joint(), "error", err)
			continue
		}
		l.measured[e.Joint()] = pos
	}
	for _, c := range l.controllers {
		if err := c.Update(l.board, dt); err != nil {
			log.Error("controller write failed", "joint", c.Joint(), "error", err)
		}
	}
}
