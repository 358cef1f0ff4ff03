// Package player drives playback of routed transitions: it owns the single
// authoritative character state, resolves a route's timelines before the
// first frame is shown, and walks the frames at a fixed cadence. It also
// hosts the autonomous blink behavior and best-effort idle frame lookup.
package player

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/fogleman/ease"
	"github.com/google/uuid"

	"github.com/doInfinitely/video-generation-pipeline/go-player/internal/manifest"
	"github.com/doInfinitely/video-generation-pipeline/go-player/internal/route"
	"github.com/doInfinitely/video-generation-pipeline/go-player/internal/statespace"
	"github.com/doInfinitely/video-generation-pipeline/go-player/internal/timeline"
)

// #region phase

// Phase is the scheduler's lifecycle state.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseResolving Phase = "resolving"
	PhasePlaying   Phase = "playing"
)

// #endregion

// #region outcomes

// RouteOutcome labels how a submitted route ended.
type RouteOutcome string

const (
	OutcomeCommitted  RouteOutcome = "committed"
	OutcomeCancelled  RouteOutcome = "cancelled"
	OutcomeFetchError RouteOutcome = "fetch_error"
)

// RouteRecord summarizes one finished route for provenance logging.
type RouteRecord struct {
	RouteID    string
	From       statespace.State
	To         statespace.State
	Route      route.Route
	Outcome    RouteOutcome
	Detail     string
	StartedAt  time.Time
	FinishedAt time.Time
}

// RouteRecorder receives a record for every route that reaches an outcome.
type RouteRecorder func(RouteRecord)

// #endregion

// #region errors

// ErrBusy is returned when a route is requested while another is resolving
// or playing. The scheduler only accepts work while idle.
var ErrBusy = errors.New("player: route already active")

// ErrNoIdleFrame is returned when no candidate idle timeline resolved.
var ErrNoIdleFrame = errors.New("player: no idle timeline resolved")

// #endregion

// #region frame-ref

// FrameRef identifies a displayable frame on the frame server.
type FrameRef struct {
	PathID string
	File   string
	T      float64
}

// FrameListener observes every displayed frame, in display order.
type FrameListener func(FrameRef)

// StateListener observes logical state changes on successful completion.
type StateListener func(statespace.State)

// #endregion

// #region config

// Config holds playback tuning.
type Config struct {
	// FPS is the fixed tick cadence, independent of source frame count.
	FPS float64
	// Easing remaps tick progress within a segment before frame selection.
	// nil means linear, which shows exactly one source frame per tick.
	Easing func(float64) float64
	// InitialState is the logical state before any route has run.
	InitialState statespace.State
}

// EasingByName resolves a config string to a pacing curve. Only monotonic
// curves are offered; frame order within a segment must stay strict.
func EasingByName(name string) (func(float64) float64, error) {
	switch name {
	case "", "linear":
		return ease.Linear, nil
	case "in_quad":
		return ease.InQuad, nil
	case "out_quad":
		return ease.OutQuad, nil
	case "in_out_quad":
		return ease.InOutQuad, nil
	case "in_out_cubic":
		return ease.InOutCubic, nil
	case "in_out_sine":
		return ease.InOutSine, nil
	default:
		return nil, fmt.Errorf("unknown easing %q", name)
	}
}

// #endregion

// #region player-struct

// Player is the playback scheduler. All mutation of the logical state happens
// here: on route completion, or on trivial same-state requests.
type Player struct {
	cache  *timeline.Cache
	tick   time.Duration
	easing func(float64) float64

	mu            sync.Mutex
	phase         Phase
	state         statespace.State
	frame         *FrameRef
	active        *activeRoute
	cancelPending bool

	onFrame  FrameListener
	onState  StateListener
	onIdle   func()
	recorder RouteRecorder
}

// activeRoute is the ephemeral playback context of one submitted route.
type activeRoute struct {
	id      string
	route   route.Route
	frames  [][]manifest.Frame // per segment, oriented for its direction
	prior   statespace.State
	target  statespace.State
	started time.Time
	segIdx  int
	tickIdx int
}

// New creates an idle player over cache.
func New(cache *timeline.Cache, cfg Config) *Player {
	fps := cfg.FPS
	if fps <= 0 {
		fps = 12
	}
	initial := cfg.InitialState
	if !statespace.ValidState(initial) {
		initial = statespace.DefaultState()
	}
	easing := cfg.Easing
	if easing == nil {
		easing = ease.Linear
	}
	return &Player{
		cache:  cache,
		tick:   time.Duration(float64(time.Second) / fps),
		easing: easing,
		phase:  PhaseIdle,
		state:  initial,
	}
}

// #endregion

// #region listeners

// SetFrameListener registers the displayed-frame observer. Call before use.
func (p *Player) SetFrameListener(fn FrameListener) {
	p.mu.Lock()
	p.onFrame = fn
	p.mu.Unlock()
}

// SetStateListener registers the state-change observer. Call before use.
func (p *Player) SetStateListener(fn StateListener) {
	p.mu.Lock()
	p.onState = fn
	p.mu.Unlock()
}

// SetIdleListener registers a hook fired on every idle re-entry (completion,
// cancellation, or failed resolution). The blink controller arms off it.
func (p *Player) SetIdleListener(fn func()) {
	p.mu.Lock()
	p.onIdle = fn
	p.mu.Unlock()
}

// SetRecorder registers the provenance sink for route outcomes.
func (p *Player) SetRecorder(fn RouteRecorder) {
	p.mu.Lock()
	p.recorder = fn
	p.mu.Unlock()
}

// #endregion

// #region accessors

// State returns the logical state. Only routes and trivial requests move it.
func (p *Player) State() statespace.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Phase returns the scheduler phase.
func (p *Player) Phase() Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phase
}

// CurrentFrame returns the last displayed frame, if any.
func (p *Player) CurrentFrame() (FrameRef, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.frame == nil {
		return FrameRef{}, false
	}
	return *p.frame, true
}

// ActivePathID reports the timeline currently playing, for diagnostics.
func (p *Player) ActivePathID() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == nil || p.active.segIdx >= len(p.active.route) {
		return "", false
	}
	return p.active.route[p.active.segIdx].PathID, true
}

// #endregion

// #region request-transition

// RequestTransition plans a route from the current state to target and plays
// it. Returns ErrBusy unless idle. A same-state request is a trivial commit:
// no frames, no route, state reasserted in place.
func (p *Player) RequestTransition(ctx context.Context, target statespace.State) error {
	if !statespace.ValidState(target) {
		return fmt.Errorf("invalid target state %s", target)
	}

	p.mu.Lock()
	if p.phase != PhaseIdle {
		p.mu.Unlock()
		return ErrBusy
	}
	r := route.Plan(p.state, target)
	if len(r) == 0 {
		p.state = target
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	return p.SubmitRoute(ctx, r)
}

// #endregion

// #region submit-route

// SubmitRoute resolves every timeline a route needs, then starts playback.
// The resolution gate is all-or-nothing: on any fetch failure no frame is
// shown and the logical state is untouched. The route must start at the
// current state; the blink controller relies on that check to discard stale
// submissions in one check-then-act step.
func (p *Player) SubmitRoute(ctx context.Context, r route.Route) error {
	if len(r) == 0 {
		return nil
	}

	p.mu.Lock()
	if p.phase != PhaseIdle {
		p.mu.Unlock()
		return ErrBusy
	}
	if r[0].From != p.state {
		cur := p.state
		p.mu.Unlock()
		return fmt.Errorf("route starts at %s but current state is %s", r[0].From, cur)
	}
	p.phase = PhaseResolving
	p.cancelPending = false
	prior := p.state
	p.mu.Unlock()

	ar := &activeRoute{
		id:      uuid.New().String(),
		route:   r,
		prior:   prior,
		target:  r.Target(prior),
		started: time.Now().UTC(),
	}

	resolved, err := p.cache.FetchAll(ctx, r.PathIDs())
	if err != nil {
		p.mu.Lock()
		p.phase = PhaseIdle
		p.cancelPending = false
		p.mu.Unlock()
		log.Printf("[PLAYER] route %s aborted, state stays %s: %v", ar.id, prior, err)
		p.record(ar, OutcomeFetchError, err.Error())
		p.notifyIdle()
		return fmt.Errorf("resolve route: %w", err)
	}

	ar.frames = make([][]manifest.Frame, len(r))
	for i, seg := range r {
		ar.frames[i] = orient(resolved[seg.PathID].Frames, seg.Direction)
	}

	p.mu.Lock()
	if p.cancelPending {
		// Cancelled before the first frame: nothing was shown, nothing moves.
		p.cancelPending = false
		p.phase = PhaseIdle
		p.mu.Unlock()
		p.record(ar, OutcomeCancelled, "cancelled during resolution")
		p.notifyIdle()
		return nil
	}
	p.active = ar
	p.phase = PhasePlaying
	p.mu.Unlock()

	log.Printf("[PLAYER] route %s playing: %s", ar.id, r)
	go p.play(ar)
	return nil
}

// orient returns frames in traversal order for the segment direction.
func orient(frames []manifest.Frame, dir route.Direction) []manifest.Frame {
	if dir != route.Backward {
		return frames
	}
	rev := make([]manifest.Frame, len(frames))
	for i, f := range frames {
		rev[len(frames)-1-i] = f
	}
	return rev
}

// #endregion

// #region cancel

// Cancel discards the active route at the next tick boundary. The displayed
// frame freezes where it is; the logical state stays at its pre-route value,
// not the frozen mid-transition position. Calling while idle is a no-op.
func (p *Player) Cancel() {
	p.mu.Lock()
	if p.phase == PhaseIdle {
		p.mu.Unlock()
		return
	}
	p.cancelPending = true
	p.mu.Unlock()
}

// #endregion

// #region play-loop

// play is the fixed-cadence tick loop for one route. One frame decision per
// tick; cancellation is a single flag check at the tick boundary, so no frame
// scheduled after a cancel is ever shown.
func (p *Player) play(ar *activeRoute) {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()

	for range ticker.C {
		p.mu.Lock()
		if p.cancelPending {
			p.cancelPending = false
			p.phase = PhaseIdle
			p.active = nil
			p.mu.Unlock()
			log.Printf("[PLAYER] route %s cancelled, state stays %s", ar.id, ar.prior)
			p.record(ar, OutcomeCancelled, "")
			p.notifyIdle()
			return
		}

		frames := ar.frames[ar.segIdx]
		if ar.tickIdx >= len(frames) {
			ar.segIdx++
			ar.tickIdx = 0
			if ar.segIdx >= len(ar.route) {
				p.state = ar.target
				p.phase = PhaseIdle
				p.active = nil
				final := p.state
				p.mu.Unlock()
				log.Printf("[PLAYER] route %s committed: state %s → %s", ar.id, ar.prior, final)
				p.record(ar, OutcomeCommitted, "")
				p.notifyState(final)
				p.notifyIdle()
				return
			}
			frames = ar.frames[ar.segIdx]
		}

		seg := ar.route[ar.segIdx]
		f := frames[p.displayIndex(ar.tickIdx, len(frames))]
		fr := FrameRef{PathID: seg.PathID, File: f.File, T: f.T}
		p.frame = &fr
		ar.tickIdx++
		p.mu.Unlock()
		p.notifyFrame(fr)
	}
}

// displayIndex maps the tick position within a segment through the pacing
// curve. Linear easing makes this the identity, one source frame per tick.
func (p *Player) displayIndex(tickIdx, n int) int {
	if n <= 1 {
		return 0
	}
	u := float64(tickIdx) / float64(n-1)
	idx := int(math.Round(p.easing(u) * float64(n-1)))
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return idx
}

// #endregion

// #region notify

func (p *Player) notifyFrame(fr FrameRef) {
	p.mu.Lock()
	fn := p.onFrame
	p.mu.Unlock()
	if fn != nil {
		fn(fr)
	}
}

func (p *Player) notifyState(s statespace.State) {
	p.mu.Lock()
	fn := p.onState
	p.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

func (p *Player) notifyIdle() {
	p.mu.Lock()
	fn := p.onIdle
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (p *Player) record(ar *activeRoute, outcome RouteOutcome, detail string) {
	p.mu.Lock()
	fn := p.recorder
	p.mu.Unlock()
	if fn == nil {
		return
	}
	fn(RouteRecord{
		RouteID:    ar.id,
		From:       ar.prior,
		To:         ar.target,
		Route:      ar.route,
		Outcome:    outcome,
		Detail:     detail,
		StartedAt:  ar.started,
		FinishedAt: time.Now().UTC(),
	})
}

// #endregion
