package generation

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Loader   Loader
	Resolver Resolver
	Logger   zerolog.Logger
	// Now is the throughput clock; time.Now when nil.
	Now func() time.Time
	// Yield runs after every token; runtime.Gosched when nil.
	Yield func()
}

// Runner executes generations against shared model handles. It holds no
// per-run state and may serve any number of concurrent runs.
type Runner struct {
	loader   Loader
	resolver Resolver
	log      zerolog.Logger
	now      func() time.Time
	yield    func()
}

func NewRunner(cfg RunnerConfig) *Runner {
	r := &Runner{
		loader:   cfg.Loader,
		resolver: cfg.Resolver,
		log:      cfg.Logger,
		now:      cfg.Now,
		yield:    cfg.Yield,
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.yield == nil {
		r.yield = runtime.Gosched
	}
	return r
}

// session is the mutable state of one run.
type session struct {
	id      string
	req     Request
	out     strings.Builder
	emitted int
	start   time.Time
}

func (s *session) output() string { return s.req.Prompt + s.out.String() }

// Run performs one generation, emitting events in order. isCancelled is
// polled before every token and may be nil; cancelling ctx has the same
// effect. Run returns nil for Complete and Aborted and the run's error for
// Errored. emit is called from the calling goroutine only.
func (r *Runner) Run(ctx context.Context, req Request, emit func(Event), isCancelled func() bool) error {
	return r.RunWithID(ctx, "", req, emit, isCancelled)
}

// RunWithID is Run with a caller-chosen run id.
func (r *Runner) RunWithID(ctx context.Context, id string, req Request, emit func(Event), isCancelled func() bool) error {
	if id == "" {
		id = uuid.NewString()
	}
	return r.run(ctx, &session{id: id, req: req}, emit, isCancelled)
}

func (r *Runner) run(ctx context.Context, s *session, emit func(Event), isCancelled func() bool) error {
	req := s.req
	log := r.log.With().Str("run_id", s.id).Str("model", req.ModelID).Logger()
	cancelled := func() bool {
		return ctx.Err() != nil || (isCancelled != nil && isCancelled())
	}
	abort := func() error {
		runsTotal.WithLabelValues(outcomeAborted).Inc()
		log.Info().Int("tokens", s.emitted).Msg("generation aborted")
		emit(Aborted{RunID: s.id, Output: s.output(), Tokens: s.emitted})
		return nil
	}
	fail := func(err error) error {
		if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return abort()
		}
		runsTotal.WithLabelValues(outcomeError).Inc()
		log.Warn().Err(err).Str("kind", ErrorKind(err)).Int("tokens", s.emitted).Msg("generation failed")
		emit(Errored{RunID: s.id, Err: err})
		return err
	}

	if err := req.Validate(); err != nil {
		return fail(err)
	}
	emit(Loading{RunID: s.id, Message: "Loading Model"})
	spec, err := req.loadSpec(r.resolver)
	if err != nil {
		return fail(err)
	}
	h, err := r.loader.GetOrLoad(ctx, spec)
	if err != nil {
		return fail(err)
	}
	emit(Loading{RunID: s.id, Message: "Starting generation"})
	release, err := h.Begin(ctx)
	if err != nil {
		return fail(err)
	}
	defer release()
	if cancelled() {
		return abort()
	}

	emit(Loading{RunID: s.id, Message: "Initializing model"})
	m := h.Model()
	s.start = r.now()
	next, err := m.Prime(req.Prompt, req.Sampling())
	if err != nil {
		return fail(&GenerationError{Op: "prime", Index: 0, Err: err})
	}
	log.Debug().Int("max_tokens", req.MaxTokens).Msg("generation started")
	primed := true
	var tps float64
	for s.emitted < req.MaxTokens {
		if cancelled() {
			return abort()
		}
		if !primed {
			next, err = m.NextToken()
			if err != nil {
				return fail(&GenerationError{Op: "decode", Index: s.emitted, Err: err})
			}
		}
		primed = false
		s.out.WriteString(next)
		s.emitted++

		elapsed := float64(r.now().Sub(s.start)) / float64(time.Millisecond)
		tps = 0
		if elapsed > 0 {
			tps = float64(s.emitted) / elapsed * 1000
		}
		tokensTotal.WithLabelValues(req.ModelID).Inc()
		emit(Progress{
			RunID:        s.id,
			Token:        next,
			Output:       s.out.String(),
			Prompt:       req.Prompt,
			Index:        s.emitted,
			ElapsedMs:    elapsed,
			TokensPerSec: tps,
		})
		r.yield()
	}

	runsTotal.WithLabelValues(outcomeComplete).Inc()
	tokensPerSecond.WithLabelValues(req.ModelID).Set(tps)
	log.Info().Int("tokens", s.emitted).Float64("tokens_per_sec", tps).Msg("generation complete")
	emit(Complete{RunID: s.id, Output: s.output(), Tokens: s.emitted})
	return nil
}
