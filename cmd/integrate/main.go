// Command integrate is a small demo CLI wiring vector/serial and
// linsolver/dense around the multistep engine: pick a method family and a
// built-in problem, integrate it, and print the result.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"

	kitlog "github.com/go-kit/log"

	"github.com/rollingthunder/multistep/multistep"
	"github.com/rollingthunder/multistep/linsolver/dense"
	"github.com/rollingthunder/multistep/vector"
	"github.com/rollingthunder/multistep/vector/serial"
)

func main() {
	problem := flag.String("problem", "decay", "problem to integrate: decay|vdp")
	lmm := flag.String("lmm", "adams", "method family for the decay problem: adams|bdf (vdp always uses BDF)")
	tout := flag.Float64("tout", 1.0, "final time")
	rtol := flag.Float64("rtol", 1e-6, "relative tolerance")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	var logger kitlog.Logger = kitlog.NewNopLogger()
	if *verbose {
		logger = kitlog.NewLogfmtLogger(os.Stdout)
	}

	family := multistep.Adams
	if *lmm == "bdf" {
		family = multistep.BDF
	}

	switch *problem {
	case "decay":
		runDecay(family, *tout, *rtol, logger)
	case "vdp":
		runVdp(*tout, *rtol, logger)
	default:
		fmt.Fprintf(os.Stderr, "unknown problem %q\n", *problem)
		os.Exit(1)
	}
}

func runDecay(family multistep.LMM, tout, rtol float64, logger kitlog.Logger) {
	f := func(t float64, y, ydot vector.Vector) int {
		ydot.Scale(-1, y)
		return 0
	}
	space := serial.NewSpace(1)
	y0 := space.New()
	y0.(*serial.Vector).Data[0] = 1.0

	it := multistep.New(family, multistep.Functional)
	it.SetLogger(logger)
	if err := it.Init(f, 0, y0, multistep.SS, rtol, rtol*1e-2, space); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	yout := space.New()
	tret, res, err := it.Step(tout, yout, multistep.Normal)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("result=%d t=%g y=%v steps=%d\n", res, tret, yout.(*serial.Vector).Data, it.Stats().NumSteps)
}

func runVdp(tout, rtol float64, logger kitlog.Logger) {
	const mu = 1000.0
	rhs := func(t float64, y, ydot []float64) {
		ydot[0] = y[1]
		ydot[1] = mu*(1-y[0]*y[0])*y[1] - y[0]
	}
	f := func(t float64, y, ydot vector.Vector) int {
		rhs(t, y.(*serial.Vector).Data, ydot.(*serial.Vector).Data)
		return 0
	}
	space := serial.NewSpace(2)
	y0 := space.New()
	y0.(*serial.Vector).Data[0] = 2.0

	it := multistep.New(multistep.BDF, multistep.Newton)
	it.SetLogger(logger)
	if err := it.Init(f, 0, y0, multistep.SS, rtol, rtol*1e-2, space); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := it.AttachLinearSolver(dense.New(2, rhs, nil)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := it.Set(multistep.StabLimDet(true)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	yout := space.New()
	tret, res, err := it.Step(math.Min(tout, 3000), yout, multistep.Normal)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("result=%d t=%g y=%v steps=%d\n", res, tret, yout.(*serial.Vector).Data, it.Stats().NumSteps)
}
