package reconstruction

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sample is one point of an annealing run's cost history.
type Sample struct {
	Step        uint64
	Cost        float64
	Temperature float64
}

// Result summarizes a completed annealing run.
type Result struct {
	Final       Furnace
	InitialCost float64
	FinalCost   float64
	History     []Sample
}

// AnnealerConfig assembles the strategy objects for one annealing session.
type AnnealerConfig struct {
	System   Tracker
	Target   Tracker
	T0       float64
	Cost     CostFunc
	Modifier Modifier
	Cooldown Schedule

	// Seed seeds the chain's RNG. Zero selects a time-based seed.
	Seed int64

	// HistoryEvery records one cost sample every that many steps.
	// Zero disables history.
	HistoryEvery int

	// OnStep, if set, observes every furnace produced by Step.
	OnStep func(Furnace)

	Logger *zap.Logger
}

// Annealer drives a single Markov chain: one furnace, one strategy set,
// one RNG. Run is synchronous; Furnace and History may be read from other
// goroutines while a run is in flight.
type Annealer struct {
	cost CostFunc
	mod  Modifier
	cool Schedule
	rng  *rand.Rand

	historyEvery int
	onStep       func(Furnace)
	logger       *zap.Logger

	mu      sync.RWMutex
	furnace Furnace
	history []Sample

	cancel context.CancelFunc
}

// NewAnnealer validates the configuration and builds an annealing session.
func NewAnnealer(cfg AnnealerConfig) (*Annealer, error) {
	if cfg.Cost == nil || cfg.Modifier == nil || cfg.Cooldown == nil {
		return nil, NewError("cost, modifier and cooldown are required").
			WithOperation("NewAnnealer").WithComponent("annealer")
	}
	furnace, err := NewFurnace(cfg.System, cfg.Target, cfg.T0)
	if err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Annealer{
		cost:         cfg.Cost,
		mod:          cfg.Modifier,
		cool:         cfg.Cooldown,
		rng:          rand.New(rand.NewSource(seed)),
		historyEvery: cfg.HistoryEvery,
		onStep:       cfg.OnStep,
		logger:       logger,
		furnace:      furnace,
	}, nil
}

// Run performs up to steps annealing steps, stopping early when ctx is
// cancelled. Cancellation is cooperative: the step in flight completes and
// the partial result is returned along with the context error.
func (a *Annealer) Run(ctx context.Context, steps int) (*Result, error) {
	ctx, a.cancel = context.WithCancel(ctx)
	defer a.cancel()

	f := a.Furnace()
	initial, err := a.cost.Evaluate(f.System, f.Target)
	if err != nil {
		return nil, WrapError(err, "initial cost").WithOperation("Run").WithComponent("annealer")
	}
	a.logger.Info("annealing started",
		zap.Int("steps", steps),
		zap.Float64("initial_cost", initial),
		zap.Float64("t0", f.Temperature))

	last := initial
	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			a.logger.Info("annealing cancelled", zap.Uint64("steps_done", f.Steps))
			return a.result(initial, last), ctx.Err()
		default:
		}

		f, err = Step(f, a.cost, a.mod, a.cool, a.rng)
		if err != nil {
			return nil, err
		}

		a.mu.Lock()
		a.furnace = f
		if a.historyEvery > 0 && f.Steps%uint64(a.historyEvery) == 0 {
			c, cerr := a.cost.Evaluate(f.System, f.Target)
			if cerr == nil {
				last = c
				a.history = append(a.history, Sample{Step: f.Steps, Cost: c, Temperature: f.Temperature})
			}
		}
		a.mu.Unlock()

		if a.onStep != nil {
			a.onStep(f)
		}
	}

	final, err := a.cost.Evaluate(f.System, f.Target)
	if err != nil {
		return nil, WrapError(err, "final cost").WithOperation("Run").WithComponent("annealer")
	}
	a.logger.Info("annealing finished",
		zap.Uint64("steps", f.Steps),
		zap.Uint64("accepted", f.Accepted),
		zap.Uint64("rejected", f.Rejected),
		zap.Float64("final_cost", final),
		zap.Float64("temperature", f.Temperature))

	return a.result(initial, final), nil
}

// Stop cancels an in-flight Run.
func (a *Annealer) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
}

// Furnace returns the most recent annealing state.
func (a *Annealer) Furnace() Furnace {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.furnace
}

// History returns a copy of the recorded cost samples.
func (a *Annealer) History() []Sample {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Sample, len(a.history))
	copy(out, a.history)
	return out
}

func (a *Annealer) result(initial, final float64) *Result {
	return &Result{
		Final:       a.Furnace(),
		InitialCost: initial,
		FinalCost:   final,
		History:     a.History(),
	}
}
