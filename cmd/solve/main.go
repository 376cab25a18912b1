// solve is a one-shot IK check: load a chain descriptor, solve for a target
// point, print the solution as JSON.
package main

import (
	"encoding/json"
	"flag"
	"os"
	"strconv"
	"strings"

	"github.com/strikelab/go-armctl/internal/config"
	"github.com/strikelab/go-armctl/internal/log"
	"github.com/strikelab/go-armctl/pkg/chain"
	"github.com/strikelab/go-armctl/pkg/ik"
	"github.com/strikelab/go-armctl/pkg/kinmath"
)

func main() {
	chainFile := flag.String("chain", config.ChainFile("arm.urdf"), "chain descriptor file")
	x := flag.Float64("x", 0, "target x in the base frame (meters)")
	y := flag.Float64("y", 0, "target y (meters)")
	z := flag.Float64("z", 0, "target z (meters)")
	seedArg := flag.String("seed", "", "comma-separated seed positions (default: rest pose)")
	level := flag.String("log", "warn", "log level")
	flag.Parse()

	log.Init(*level)

	desc, err := chain.LoadDescriptor(*chainFile)
	if err != nil {
		log.Error("chain descriptor", "file", *chainFile, "error", err)
		os.Exit(1)
	}
	c, err := chain.New(desc)
	if err != nil {
		log.Error("chain build", "error", err)
		os.Exit(1)
	}
	solver, err := ik.NewSolver(c)
	if err != nil {
		log.Error("solver", "error", err)
		os.Exit(1)
	}

	seed := ik.NewState(c).Positions()
	if *seedArg != "" {
		seed, err = parseSeed(*seedArg)
		if err != nil {
			log.Error("seed", "error", err)
			os.Exit(1)
		}
	}

	sol := solver.Solve(ik.Pose{Position: kinmath.Vec3{X: *x, Y: *y, Z: *z}}, seed)

	out := map[string]any{"code": sol.Code.String()}
	if sol.Code == ik.Success {
		positions := make(map[string]float64, c.Len())
		for i, v := range sol.Positions {
			positions[c.Joint(i).Name] = v
		}
		out["positions"] = positions
		out["markers"] = sol.Markers
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		os.Exit(1)
	}
	if sol.Code != ik.Success {
		os.Exit(2)
	}
}

func parseSeed(arg string) ([]float64, error) {
	fields := strings.Split(arg, ",")
	seed := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, err
		}
		seed = append(seed, v)
	}
	return seed, nil
}
