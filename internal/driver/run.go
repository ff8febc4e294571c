package driver

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"xeblock/internal/blocking"
	"xeblock/internal/diag"
	"xeblock/internal/ir"
	"xeblock/internal/observ"
	"xeblock/internal/rewrite"
	"xeblock/internal/trace"
)

// Options configures RunUnits.
type Options struct {
	Pass blocking.Options
	// Jobs bounds the number of units blocked at once; 0 means GOMAXPROCS.
	Jobs           int
	MaxDiagnostics int
	// Cache, when set, serves units whose input snapshot was blocked before.
	Cache    *DiskCache
	Observer PhaseObserver
	// Timings adds a PipeTimings diagnostic per unit.
	Timings bool
}

// UnitResult is the outcome for one unit. Err is set when the pass aborted;
// Unit must not be used then.
type UnitResult struct {
	Name   string
	Unit   *ir.Unit
	Report blocking.Report
	Bag    *diag.Bag
	Cached bool
	Err    error
}

// RunUnits blocks every unit. Units are disjoint, so they are processed in
// parallel; results keep the input order. A unit that fails does not stop
// the others: its error lands in its result and its bag. The returned error
// is only set when ctx is cancelled.
func RunUnits(ctx context.Context, units []*ir.Unit, opts Options) ([]UnitResult, error) {
	results := make([]UnitResult, len(units))
	if len(units) == 0 {
		return results, nil
	}
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	if opts.MaxDiagnostics <= 0 {
		opts.MaxDiagnostics = 256
	}
	span, ctx := trace.Start(ctx, trace.ScopeDriver, "run-units")
	defer span.End(fmt.Sprintf("units=%d jobs=%d", len(units), jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(units)))
	for i, u := range units {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			// each goroutine owns results[i]
			results[i] = runUnit(gctx, u, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func runUnit(ctx context.Context, u *ir.Unit, opts Options) (res UnitResult) {
	res = UnitResult{Name: u.Name, Bag: diag.NewBag(opts.MaxDiagnostics)}
	opts.Observer.emit(PhaseEvent{Unit: u.Name, Name: "blocking", Status: PhaseStart})
	start := time.Now()
	defer func() {
		opts.Observer.emit(PhaseEvent{
			Unit:    u.Name,
			Name:    "blocking",
			Status:  PhaseEnd,
			Elapsed: time.Since(start),
			Cached:  res.Cached,
			Err:     res.Err,
		})
	}()

	var key Digest
	if opts.Cache != nil {
		var err error
		if key, err = UnitDigest(u, opts.Pass); err == nil {
			if cached, ok := lookupCached(opts.Cache, key, u.Name); ok {
				res.Unit, res.Report, res.Cached = cached.unit, cached.report, true
				return res
			}
		}
	}

	rep, err := blocking.Run(ctx, u, opts.Pass)
	res.Report = rep
	for _, d := range rep.Diags {
		res.Bag.Add(d)
	}
	if err != nil {
		res.Err = err
		res.Bag.Add(diag.NewError(errorCode(err), diag.UnitLoc(u.Name), err.Error()))
		return res
	}
	res.Unit = u
	if opts.Timings {
		appendTimingDiagnostic(res.Bag, u.Name, rep.Timings)
	}
	if opts.Cache != nil && key != (Digest{}) {
		if err := storeCached(opts.Cache, key, u, rep); err != nil {
			trace.Point(trace.FromContext(trace.ForUnit(ctx, u.Name)), trace.ScopeUnit, "cache-put", err.Error())
		}
	}
	return res
}

func errorCode(err error) diag.Code {
	var ie *ir.InvariantError
	switch {
	case errors.As(err, &ie):
		return diag.PipeInvariant
	case errors.Is(err, rewrite.ErrNoConvergence):
		return diag.PipeNoConvergence
	case errors.Is(err, blocking.ErrVerify):
		return diag.PipeVerifyFailed
	}
	return diag.PipeInvariant
}

// MergeTimings sums the phase timings of all successful results.
func MergeTimings(results []UnitResult) observ.Report {
	var total observ.Report
	for i := range results {
		if results[i].Err == nil {
			total = total.Merge(results[i].Report.Timings)
		}
	}
	return total
}
