// Package server owns the unique Timer, runs its tick task, accepts
// connections on one or more bound transports, and dispatches framed
// requests under a single mutual-exclusion primitive (spec.md §5).
//
// Grounded on core/engine/engine.go's select-driven run loop (ctx.Done /
// command channel / ticker.C), generalized from a goroutine-per-command
// design to a single-mutex design: spec.md §5 requires exactly one shared
// resource guarded by exactly one lock, with hooks firing lock-held, which
// the teacher's async event-bus (events/events.go, dispatching via `go
// handler.HandleEvent(event)`) does not provide.
package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"

	"github.com/kubaliski/cycletimer/hooks"
	"github.com/kubaliski/cycletimer/protocol"
	"github.com/kubaliski/cycletimer/stats"
	"github.com/kubaliski/cycletimer/timer"
	"github.com/kubaliski/cycletimer/transport"
)

// Builder assembles a Server's configuration before Build. It mirrors the
// teacher's NewEngine(cfg) construction step, generalized to spec.md §4.3's
// explicit builder responsibilities: cycles, loop, tick cadence, hooks,
// bindings.
type Builder struct {
	cycles       timer.CyclesSet
	loop         timer.Loop
	tickInterval time.Duration
	hookBindings []hookBinding
	bindings     []transport.ServerBind
	clock        clock.Clock
	logger       *logiface.Logger[*stumpy.Event]
}

type hookBinding struct {
	event timer.EventKind
	hook  hooks.Hook
}

// NewBuilder returns a Builder with spec.md §3's one-second default tick
// interval and a real-time clock; both are overridable.
func NewBuilder() *Builder {
	return &Builder{
		tickInterval: time.Second,
		clock:        clock.New(),
		logger:       stumpy.L.New(stumpy.L.WithStumpy()),
	}
}

// AddCycle appends one cycle to the configured CyclesSet, in order.
func (b *Builder) AddCycle(name string, durationSeconds uint32) *Builder {
	b.cycles = append(b.cycles, timer.Cycle{Name: name, DurationSeconds: durationSeconds})
	return b
}

// SetLoop sets the TimerLoop policy.
func (b *Builder) SetLoop(loop timer.Loop) *Builder {
	b.loop = loop
	return b
}

// SetTickInterval overrides the tick cadence.
func (b *Builder) SetTickInterval(d time.Duration) *Builder {
	b.tickInterval = d
	return b
}

// SetClock overrides the clock, primarily for deterministic tests.
func (b *Builder) SetClock(c clock.Clock) *Builder {
	b.clock = c
	return b
}

// SetLogger overrides the structured logger used for accept failures and
// hook errors.
func (b *Builder) SetLogger(l *logiface.Logger[*stumpy.Event]) *Builder {
	b.logger = l
	return b
}

// OnEvent registers hook to run whenever event occurs.
func (b *Builder) OnEvent(event timer.EventKind, hook hooks.Hook) *Builder {
	b.hookBindings = append(b.hookBindings, hookBinding{event: event, hook: hook})
	return b
}

// AddBinding registers a transport to accept connections on.
func (b *Builder) AddBinding(bind transport.ServerBind) *Builder {
	b.bindings = append(b.bindings, bind)
	return b
}

// Build validates the accumulated configuration and constructs a Server.
func (b *Builder) Build() (*Server, error) {
	t, err := timer.New(b.cycles, b.loop, b.tickInterval)
	if err != nil {
		return nil, err
	}
	if len(b.bindings) == 0 {
		return nil, timer.ConfigError{Field: "bindings", Message: "must declare at least one transport binding"}
	}

	registry := hooks.NewRegistry()
	for _, hb := range b.hookBindings {
		registry.On(hb.event, hb.hook)
	}

	return &Server{
		timer:        t,
		hooks:        registry,
		stats:        stats.NewRecorder(),
		clock:        b.clock,
		tickInterval: b.tickInterval,
		bindings:     b.bindings,
		logger:       b.logger,
	}, nil
}

// Server owns the unique Timer and the single mutex serializing every
// mutation, tick, and hook invocation against it (spec.md §5).
type Server struct {
	mu    sync.Mutex
	timer *timer.Timer
	hooks *hooks.Registry
	stats *stats.Recorder

	clock        clock.Clock
	tickInterval time.Duration
	lastTickAt   time.Time

	bindings []transport.ServerBind
	logger   *logiface.Logger[*stumpy.Event]

	wg sync.WaitGroup
}

// Run is the long-running operation described in spec.md §4.3: it starts the
// tick task and one accept loop per binding, and returns once ctx is
// canceled and every accept loop and in-flight connection handler has
// drained. On return, no tick task is running and no hook is mid-execution,
// since both only ever run while Run's own goroutines are alive.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.lastTickAt = s.clock.Now()
	s.mu.Unlock()

	var tickWG sync.WaitGroup
	tickWG.Add(1)
	go func() {
		defer tickWG.Done()
		s.runTickTask(ctx)
	}()

	for _, bind := range s.bindings {
		bind := bind
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runAcceptLoop(ctx, bind)
		}()
	}

	<-ctx.Done()
	for _, bind := range s.bindings {
		_ = bind.Close()
	}
	s.wg.Wait()
	tickWG.Wait()
	return nil
}

// runTickTask wakes every tickInterval and advances the timer, per spec.md
// §4.1's catch-up arithmetic. It exits as soon as ctx is canceled, never
// leaving a tick mid-flight: Advance executes entirely inside one lock
// acquisition.
func (s *Server) runTickTask(ctx context.Context) {
	ticker := s.clock.Ticker(s.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.processTick(now)
		}
	}
}

func (s *Server) processTick(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Consume only whole seconds; the sub-second remainder stays behind
	// lastTickAt and is carried into the next tick.
	delta := now.Sub(s.lastTickAt).Truncate(time.Second)
	if delta <= 0 {
		return
	}
	s.lastTickAt = s.lastTickAt.Add(delta)
	snapshot, occurrences := s.timer.Advance(delta)
	s.recordCompletions(snapshot, occurrences)
	s.applyOccurrences(snapshot, occurrences)
}

// runAcceptLoop accepts connections on bind until ctx is canceled or Accept
// reports an error (which, after ctx is canceled and bind.Close() has run,
// is the expected shutdown path per bind's ServerBind contract).
func (s *Server) runAcceptLoop(ctx context.Context, bind transport.ServerBind) {
	for {
		conn, err := bind.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warning().Str("addr", bind.Addr()).Err(err).Log("accept failed")
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

// handleConn enforces spec.md §5's per-connection ordering and backpressure:
// it reads one request, writes exactly one response, and only then reads the
// next. A read/write error or a clean end-of-stream ends the loop without
// mutating timer state, per §5's "abruptly closed connection" clause.
func (s *Server) handleConn(ctx context.Context, conn transport.ServerConn) {
	defer conn.Close()
	for {
		if ctx.Err() != nil {
			return
		}
		req, err := conn.ReadRequest()
		if err != nil {
			return
		}
		resp := s.Dispatch(req)
		if err := conn.WriteResponse(resp); err != nil {
			return
		}
	}
}

// Dispatch maps one Request to the corresponding Timer operation, firing
// hooks and updating statistics under the single server lock, per spec.md
// §4.3's request-dispatch contract.
func (s *Server) Dispatch(req protocol.Request) protocol.Response {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch req.Kind {
	case protocol.KindStart:
		snapshot, occurrences := s.timer.Start()
		s.applyOccurrences(snapshot, occurrences)
		return protocol.OkResponse(snapshot)

	case protocol.KindGet:
		return protocol.OkResponse(s.timer.Get())

	case protocol.KindPause:
		snapshot, occurrences := s.timer.Pause()
		s.applyOccurrences(snapshot, occurrences)
		return protocol.OkResponse(snapshot)

	case protocol.KindResume:
		snapshot, occurrences := s.timer.Resume()
		s.applyOccurrences(snapshot, occurrences)
		return protocol.OkResponse(snapshot)

	case protocol.KindStop:
		snapshot, occurrences := s.timer.Stop()
		s.recordStop(occurrences)
		s.applyOccurrences(snapshot, occurrences)
		return protocol.OkResponse(snapshot)

	case protocol.KindSetDuration:
		if req.Params == nil {
			return protocol.ErrResponse(protocol.CodeDecodeError, "set_duration requires params.seconds")
		}
		snapshot, err := s.timer.SetDuration(req.Params.Seconds)
		if err != nil {
			return protocol.ErrResponse(protocol.CodeConfigError, err.Error())
		}
		return protocol.OkResponse(snapshot)

	case protocol.KindStats:
		snapshot := s.timer.Get()
		statsView := protocol.StatsView(s.stats.GetSnapshot())
		return protocol.OkStatsResponse(snapshot, statsView)

	default:
		return protocol.ErrResponse(protocol.CodeDecodeError, fmt.Sprintf("unknown request kind %q", req.Kind))
	}
}

// recordStop records every EndCycle occurrence a direct Stop call emits as
// skipped: unlike the tick-driven path (recordCompletions), a Stop never
// represents a full-duration completion of the cycle it cuts short.
func (s *Server) recordStop(occurrences []timer.Occurrence) {
	for _, occ := range occurrences {
		if occ.Kind == timer.EventEndCycle {
			s.stats.RecordSkipped(occ.CycleName)
		}
	}
}

// recordCompletions records every EndCycle occurrence Advance emits as a
// full completion, crediting a lap (current/best streak) when the
// completed cycle was the last one in the configured set.
func (s *Server) recordCompletions(snapshot timer.Snapshot, occurrences []timer.Occurrence) {
	if len(snapshot.Cycles) == 0 {
		return
	}
	lastName := snapshot.Cycles[len(snapshot.Cycles)-1].Name
	for _, occ := range occurrences {
		if occ.Kind != timer.EventEndCycle {
			continue
		}
		s.stats.RecordCompleted(occ.CycleName, cycleDuration(snapshot.Cycles, occ.CycleName), occ.CycleName == lastName)
	}
}

func cycleDuration(cycles timer.CyclesSet, name string) time.Duration {
	for _, c := range cycles {
		if c.Name == name {
			return time.Duration(c.DurationSeconds) * time.Second
		}
	}
	return 0
}

// applyOccurrences fires hooks for each occurrence, in order, and logs their
// outcomes, applying the fatal-hook policy: log and continue, matching
// spec.md §4.2's "default: log and continue."
func (s *Server) applyOccurrences(snapshot timer.Snapshot, occurrences []timer.Occurrence) {
	for _, occ := range occurrences {
		for _, outcome := range s.hooks.Fire(occ, snapshot) {
			s.logHookOutcome(outcome)
		}
	}
}

func (s *Server) logHookOutcome(outcome hooks.Outcome) {
	if outcome.Err == nil {
		return
	}
	switch outcome.Err.(type) {
	case hooks.FatalError:
		s.logger.Err().Str("event", outcome.Event.String()).Err(outcome.Err).Log("fatal hook error; continuing per policy")
	case hooks.ReentrancyError:
		s.logger.Warning().Str("event", outcome.Event.String()).Err(outcome.Err).Log("reentrant hook call rejected")
	default:
		s.logger.Warning().Str("event", outcome.Event.String()).Err(outcome.Err).Log("recoverable hook error")
	}
}

// Stats returns the server's statistics recorder, primarily for embedding
// applications that want direct access outside the wire protocol.
func (s *Server) Stats() *stats.Recorder { return s.stats }
