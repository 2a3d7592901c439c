package propagate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"runtime"
	"sync"

	"github.com/c360studio/paramspec/registry"
)

// ErrTimeout is returned when the Monte Carlo stage exceeds its deadline.
// The caller degrades to analytic-only propagation rather than failing the
// build.
var ErrTimeout = errors.New("monte carlo propagation timed out")

// DefaultSamples is the Monte Carlo sample count when none is configured.
const DefaultSamples = 10000

// mcBatchSize fixes the sample partition. The partition depends only on the
// sample count, never on the worker count, so results are reproducible on any
// machine.
const mcBatchSize = 1024

// MCConfig configures a Monte Carlo run.
type MCConfig struct {
	// Samples is the number of draws. Defaults to DefaultSamples.
	Samples int

	// Seed is the master seed. Per-batch sub-seeds are derived from it.
	Seed uint64

	// Workers is the pool size. Defaults to GOMAXPROCS. Affects wall time
	// only, never results.
	Workers int
}

// mcStep is one precompiled derivation step.
type mcStep struct {
	out     int
	inputs  []string
	inIdx   []int
	formula string
	fn      func(map[string]float64) (float64, error)
}

// mcBase is one precompiled base-parameter sampler.
type mcBase struct {
	idx     int
	model   registry.DistModel
	value   float64
	sigma   float64
	missing bool
}

// MonteCarlo draws cfg.Samples joint samples from the base parameters'
// declared distributions, re-runs the full derivation per sample on a worker
// pool, and summarizes empirical mean/std/percentiles plus the full pairwise
// correlation matrix. Runs are deterministic given (Samples, Seed).
func (p *Propagator) MonteCarlo(ctx context.Context, cfg MCConfig) (*Result, error) {
	if cfg.Samples <= 0 {
		cfg.Samples = DefaultSamples
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}

	ids := p.reg.SortedIDs()
	index := make(map[string]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}

	res := &Result{
		Mode:           ModeMonteCarlo,
		Samples:        cfg.Samples,
		Seed:           cfg.Seed,
		Stats:          make(map[string]Stats, len(ids)),
		Underspecified: make(map[string]bool),
	}

	bases, steps, err := p.compile(ids, index, res)
	if err != nil {
		return nil, err
	}

	numBatches := (cfg.Samples + mcBatchSize - 1) / mcBatchSize
	batchRows := make([][][]float64, numBatches)

	jobs := make(chan int)
	var wg sync.WaitGroup
	var failed int64
	var mu sync.Mutex

	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := range jobs {
				rows, bad := runBatch(b, cfg, bases, steps, len(ids))
				batchRows[b] = rows
				mu.Lock()
				failed += bad
				mu.Unlock()
			}
		}()
	}

	var cancelled error
dispatch:
	for b := 0; b < numBatches; b++ {
		select {
		case <-ctx.Done():
			cancelled = ctx.Err()
			break dispatch
		case jobs <- b:
		}
	}
	close(jobs)
	wg.Wait()

	if cancelled != nil {
		p.logger.Warn("monte carlo stage cancelled",
			slog.Int("samples", cfg.Samples),
			slog.String("reason", cancelled.Error()))
		return nil, fmt.Errorf("%w: %v", ErrTimeout, cancelled)
	}

	// Merge in batch index order; determinism does not depend on which
	// worker ran which batch.
	var rows [][]float64
	for _, br := range batchRows {
		rows = append(rows, br...)
	}
	res.FailedSamples = int(failed)
	if len(rows) == 0 {
		return nil, fmt.Errorf("monte carlo: all %d samples failed", cfg.Samples)
	}

	cols := transpose(rows, len(ids))
	for i, id := range ids {
		res.Stats[id] = summarize(cols[i])
	}
	res.Correlation = correlationFromSamples(ids, cols)
	return res, nil
}

// compile precompiles samplers and derivation steps, emitting missing
// uncertainty warnings and the under-specified set.
func (p *Propagator) compile(ids []string, index map[string]int, res *Result) ([]mcBase, []mcStep, error) {
	var bases []mcBase
	for _, id := range ids {
		param, _ := p.reg.Get(id)
		if param.Derived() {
			continue
		}
		b := mcBase{idx: index[id], value: param.Value}
		if param.Uncertainty == nil {
			b.missing = true
			res.Warnings = append(res.Warnings, MissingUncertaintyWarning{ParameterID: id})
			res.Underspecified[id] = true
			for _, d := range p.graph.Downstream(id) {
				res.Underspecified[d] = true
			}
			p.logger.Warn("missing uncertainty declaration", slog.String("parameter", id))
		} else {
			b.model = param.Uncertainty.Model
			b.sigma = param.Uncertainty.Sigma
			if b.model == registry.DistLogNormal && b.value <= 0 {
				return nil, nil, fmt.Errorf("parameter %q: lognormal uncertainty requires a positive value", id)
			}
		}
		bases = append(bases, b)
	}

	var steps []mcStep
	for _, id := range p.graph.TopologicalOrder() {
		param, _ := p.reg.Get(id)
		if !param.Derived() {
			continue
		}
		if param.State != registry.EvalValid {
			return nil, nil, fmt.Errorf("parameter %q is not evaluated; run the evaluator before propagation", id)
		}
		fn, err := p.funcs.Get(param.Formula)
		if err != nil {
			return nil, nil, err
		}
		st := mcStep{out: index[id], formula: param.Formula, fn: fn}
		for _, in := range param.Inputs {
			st.inputs = append(st.inputs, in)
			st.inIdx = append(st.inIdx, index[in])
		}
		steps = append(steps, st)
	}
	return bases, steps, nil
}

// runBatch draws and evaluates one batch of samples. The batch rng is seeded
// from (master seed, batch index) only.
func runBatch(batch int, cfg MCConfig, bases []mcBase, steps []mcStep, width int) ([][]float64, int64) {
	lo := batch * mcBatchSize
	hi := lo + mcBatchSize
	if hi > cfg.Samples {
		hi = cfg.Samples
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, uint64(batch)))
	rows := make([][]float64, 0, hi-lo)
	var failed int64

	inputs := make(map[string]float64)
	for s := lo; s < hi; s++ {
		row := make([]float64, width)
		for _, b := range bases {
			row[b.idx] = b.draw(rng)
		}

		ok := true
		for _, st := range steps {
			for k, in := range st.inputs {
				inputs[in] = row[st.inIdx[k]]
			}
			v, err := st.fn(inputs)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				ok = false
				break
			}
			row[st.out] = v
			clear(inputs)
		}
		if !ok {
			clear(inputs)
			failed++
			continue
		}
		rows = append(rows, row)
	}
	return rows, failed
}

// draw samples one value from the base parameter's declared distribution.
// Missing declarations sample the declared value exactly.
func (b mcBase) draw(rng *rand.Rand) float64 {
	if b.missing || b.sigma == 0 {
		return b.value
	}
	switch b.model {
	case registry.DistUniform:
		// sigma is the half-width.
		return b.value + b.sigma*(2*rng.Float64()-1)
	case registry.DistLogNormal:
		// sigma is interpreted relative to the (positive) central value.
		return b.value * math.Exp((b.sigma/b.value)*rng.NormFloat64())
	default:
		return b.value + b.sigma*rng.NormFloat64()
	}
}

func transpose(rows [][]float64, width int) [][]float64 {
	cols := make([][]float64, width)
	for i := range cols {
		cols[i] = make([]float64, len(rows))
	}
	for r, row := range rows {
		for c, v := range row {
			cols[c][r] = v
		}
	}
	return cols
}
