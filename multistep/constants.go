package multistep

// Step-control constants of the method, kept numeric rather than resurfaced
// as tunables: they are fixed properties of the order/step heuristics, not
// configuration.
const (
	thresh   = 1.5
	etamx1   = 1.0e4
	etamx2   = 10.0
	etamx3   = 10.0
	etamxf   = 0.2
	etamin   = 0.1
	etacf    = 0.25
	addon    = 1.0e-6
	bias1    = 6.0
	bias2    = 6.0
	bias3    = 10.0
	dgmax    = 0.3
	msbp     = 20
	mxnef1   = 3
	smallNef = 2
	longWait = 10

	// fuzzFactor widens the tstop/interpolation windows; onepsm pads the
	// |h| <= hmin comparisons against roundoff.
	fuzzFactor = 100.0
	onepsm     = 1.000001

	// crdown bounds how far a new convergence-rate estimate may fall below
	// the running one each iteration; rdiv flags divergence outright.
	crdown = 0.3
	rdiv   = 2.0

	// smallNst is the step-count threshold past which etamax's post-step
	// reset switches from etamx2 to etamx3.
	smallNst = 10
)
