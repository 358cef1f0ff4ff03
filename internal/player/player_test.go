package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/doInfinitely/video-generation-pipeline/go-player/internal/manifest"
	"github.com/doInfinitely/video-generation-pipeline/go-player/internal/route"
	"github.com/doInfinitely/video-generation-pipeline/go-player/internal/statespace"
	"github.com/doInfinitely/video-generation-pipeline/go-player/internal/timeline"
)

// #region harness

// fakeFetcher serves canned timelines keyed by path id.
type fakeFetcher struct {
	mu        sync.Mutex
	timelines map[string]manifest.Timeline
	failures  map[string]error
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		timelines: make(map[string]manifest.Timeline),
		failures:  make(map[string]error),
	}
}

// addSeq registers a timeline of n evenly spaced frames.
func (f *fakeFetcher) addSeq(id string, n int) {
	frames := make([]manifest.Frame, n)
	for i := range frames {
		t := 0.0
		if n > 1 {
			t = float64(i) / float64(n-1)
		}
		frames[i] = manifest.Frame{T: t, File: fmt.Sprintf("%03d.png", i)}
	}
	f.mu.Lock()
	f.timelines[id] = manifest.Timeline{PathID: id, Frames: frames}
	f.mu.Unlock()
}

func (f *fakeFetcher) fail(id string, err error) {
	f.mu.Lock()
	f.failures[id] = err
	f.mu.Unlock()
}

func (f *fakeFetcher) GetTimeline(ctx context.Context, pathID string) (manifest.Timeline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failures[pathID]; err != nil {
		return manifest.Timeline{}, &manifest.FetchError{PathID: pathID, Err: err}
	}
	tl, ok := f.timelines[pathID]
	if !ok {
		return manifest.Timeline{}, &manifest.FetchError{PathID: pathID, Err: errors.New("not found")}
	}
	return tl, nil
}

// frameLog collects displayed frames in order.
type frameLog struct {
	mu     sync.Mutex
	frames []FrameRef
}

func (l *frameLog) add(fr FrameRef) {
	l.mu.Lock()
	l.frames = append(l.frames, fr)
	l.mu.Unlock()
}

func (l *frameLog) list() []FrameRef {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]FrameRef, len(l.frames))
	copy(out, l.frames)
	return out
}

// recordLog collects route outcomes.
type recordLog struct {
	mu   sync.Mutex
	recs []RouteRecord
}

func (l *recordLog) add(rec RouteRecord) {
	l.mu.Lock()
	l.recs = append(l.recs, rec)
	l.mu.Unlock()
}

func (l *recordLog) list() []RouteRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]RouteRecord, len(l.recs))
	copy(out, l.recs)
	return out
}

// newTestPlayer builds a fast player over a fake fetcher.
func newTestPlayer(t *testing.T, f *fakeFetcher, initial statespace.State) (*Player, *frameLog, *recordLog) {
	t.Helper()
	cache := timeline.New(f, time.Second)
	p := New(cache, Config{FPS: 200, InitialState: initial})
	frames := &frameLog{}
	recs := &recordLog{}
	p.SetFrameListener(frames.add)
	p.SetRecorder(recs.add)
	return p, frames, recs
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func st(e statespace.Expression, po statespace.Pose) statespace.State {
	return statespace.State{Expr: e, Pose: po}
}

// #endregion

// #region completion

func TestRouteCompletionSetsState(t *testing.T) {
	f := newFakeFetcher()
	f.addSeq("neutral_to_speaking_ah__center", 5)
	p, frames, recs := newTestPlayer(t, f, statespace.DefaultState())

	target := st(statespace.ExprSpeakingAh, statespace.PoseCenter)
	if err := p.RequestTransition(context.Background(), target); err != nil {
		t.Fatalf("RequestTransition: %v", err)
	}

	waitFor(t, "completion", func() bool { return p.Phase() == PhaseIdle })

	if got := p.State(); got != target {
		t.Fatalf("state = %s, want %s", got, target)
	}
	got := frames.list()
	if len(got) != 5 {
		t.Fatalf("expected 5 displayed frames, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].T <= got[i-1].T {
			t.Fatalf("forward segment not strictly ascending: %v", got)
		}
	}

	rl := recs.list()
	if len(rl) != 1 || rl[0].Outcome != OutcomeCommitted {
		t.Fatalf("expected one committed record, got %+v", rl)
	}
}

func TestBackwardSegmentDescendingT(t *testing.T) {
	f := newFakeFetcher()
	f.addSeq("neutral_to_speaking_ah__center", 4)
	p, frames, _ := newTestPlayer(t, f, st(statespace.ExprSpeakingAh, statespace.PoseCenter))

	if err := p.RequestTransition(context.Background(), statespace.DefaultState()); err != nil {
		t.Fatalf("RequestTransition: %v", err)
	}
	waitFor(t, "completion", func() bool { return p.Phase() == PhaseIdle })

	got := frames.list()
	if len(got) != 4 {
		t.Fatalf("expected 4 frames, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].T >= got[i-1].T {
			t.Fatalf("backward segment not strictly descending: %v", got)
		}
	}
	if p.State() != statespace.DefaultState() {
		t.Fatalf("state = %s, want hub", p.State())
	}
}

func TestSegmentsPlayInRouteOrder(t *testing.T) {
	f := newFakeFetcher()
	f.addSeq("neutral_to_speaking_ah__center", 3)
	f.addSeq("center_to_tilt_left_small", 3)
	f.addSeq("neutral_to_speaking_ee__tilt_left_small", 3)
	p, frames, _ := newTestPlayer(t, f, st(statespace.ExprSpeakingAh, statespace.PoseCenter))

	target := st(statespace.ExprSpeakingEe, statespace.PoseTiltLeftSmall)
	if err := p.RequestTransition(context.Background(), target); err != nil {
		t.Fatalf("RequestTransition: %v", err)
	}
	waitFor(t, "completion", func() bool { return p.Phase() == PhaseIdle })

	got := frames.list()
	if len(got) != 9 {
		t.Fatalf("expected 9 frames, got %d", len(got))
	}
	wantOrder := []string{
		"neutral_to_speaking_ah__center",
		"center_to_tilt_left_small",
		"neutral_to_speaking_ee__tilt_left_small",
	}
	segIdx := 0
	for _, fr := range got {
		for segIdx < len(wantOrder) && fr.PathID != wantOrder[segIdx] {
			segIdx++
		}
		if segIdx >= len(wantOrder) {
			t.Fatalf("frames interleave across segments: %v", got)
		}
	}
	if p.State() != target {
		t.Fatalf("state = %s, want %s", p.State(), target)
	}
}

// #endregion

// #region cancellation

func TestCancelKeepsPreRouteState(t *testing.T) {
	f := newFakeFetcher()
	f.addSeq("neutral_to_oh_round__center", 60)
	prior := statespace.DefaultState()
	p, frames, recs := newTestPlayer(t, f, prior)

	target := st(statespace.ExprOhRound, statespace.PoseCenter)
	if err := p.RequestTransition(context.Background(), target); err != nil {
		t.Fatalf("RequestTransition: %v", err)
	}
	waitFor(t, "first frames", func() bool { return len(frames.list()) >= 2 })

	p.Cancel()
	waitFor(t, "idle after cancel", func() bool { return p.Phase() == PhaseIdle })

	// The documented asymmetry: the display froze mid-transition, but the
	// logical state is the pre-route state, not the frozen position.
	if got := p.State(); got != prior {
		t.Fatalf("state after cancel = %s, want pre-route %s", got, prior)
	}

	// No frame scheduled after the cancel is ever shown.
	n := len(frames.list())
	time.Sleep(50 * time.Millisecond)
	if len(frames.list()) != n {
		t.Fatalf("frames kept flowing after cancel: %d → %d", n, len(frames.list()))
	}

	// The display holds the last shown frame.
	fr, ok := p.CurrentFrame()
	if !ok {
		t.Fatal("expected a frozen frame")
	}
	last := frames.list()[n-1]
	if fr != last {
		t.Fatalf("frozen frame %+v != last shown %+v", fr, last)
	}

	rl := recs.list()
	if len(rl) != 1 || rl[0].Outcome != OutcomeCancelled {
		t.Fatalf("expected one cancelled record, got %+v", rl)
	}
}

func TestCancelWhileIdleIsNoop(t *testing.T) {
	f := newFakeFetcher()
	p, _, recs := newTestPlayer(t, f, statespace.DefaultState())

	p.Cancel()

	if p.Phase() != PhaseIdle {
		t.Fatalf("phase = %s, want idle", p.Phase())
	}
	if len(recs.list()) != 0 {
		t.Fatal("idle cancel must not produce a record")
	}
}

// #endregion

// #region resolution

func TestFetchFailureAbortsWholeRoute(t *testing.T) {
	f := newFakeFetcher()
	// Two-segment route; only the first timeline exists.
	f.addSeq("neutral_to_speaking_ah__center", 3)
	f.fail("neutral_to_happy_big__center", errors.New("generation still running"))
	prior := st(statespace.ExprSpeakingAh, statespace.PoseCenter)
	p, frames, recs := newTestPlayer(t, f, prior)

	err := p.RequestTransition(context.Background(), st(statespace.ExprHappyBig, statespace.PoseCenter))
	if err == nil {
		t.Fatal("expected a fetch failure")
	}
	var fe *manifest.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *manifest.FetchError, got %v", err)
	}

	// Atomic all-or-nothing: no frame shown, state untouched, idle again.
	if len(frames.list()) != 0 {
		t.Fatalf("frames shown from a partially resolved route: %v", frames.list())
	}
	if p.State() != prior {
		t.Fatalf("state = %s, want %s", p.State(), prior)
	}
	if p.Phase() != PhaseIdle {
		t.Fatalf("phase = %s, want idle", p.Phase())
	}

	rl := recs.list()
	if len(rl) != 1 || rl[0].Outcome != OutcomeFetchError {
		t.Fatalf("expected one fetch_error record, got %+v", rl)
	}
}

func TestRetryAfterFetchFailure(t *testing.T) {
	f := newFakeFetcher()
	f.fail("neutral_to_concerned__center", errors.New("boom"))
	p, _, _ := newTestPlayer(t, f, statespace.DefaultState())

	target := st(statespace.ExprConcerned, statespace.PoseCenter)
	if err := p.RequestTransition(context.Background(), target); err == nil {
		t.Fatal("expected first attempt to fail")
	}

	// The failed cache entry was evicted; healing the server makes the
	// caller's re-invocation a genuine retry.
	f.fail("neutral_to_concerned__center", nil)
	f.addSeq("neutral_to_concerned__center", 3)
	if err := p.RequestTransition(context.Background(), target); err != nil {
		t.Fatalf("retry: %v", err)
	}
	waitFor(t, "completion", func() bool { return p.Phase() == PhaseIdle && p.State() == target })
}

func TestBusyWhilePlaying(t *testing.T) {
	f := newFakeFetcher()
	f.addSeq("neutral_to_speaking_uw__center", 40)
	p, frames, _ := newTestPlayer(t, f, statespace.DefaultState())

	if err := p.RequestTransition(context.Background(), st(statespace.ExprSpeakingUw, statespace.PoseCenter)); err != nil {
		t.Fatalf("RequestTransition: %v", err)
	}
	waitFor(t, "playback start", func() bool { return len(frames.list()) > 0 })

	err := p.RequestTransition(context.Background(), st(statespace.ExprHappySoft, statespace.PoseCenter))
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
}

func TestSameStateRequestIsTrivial(t *testing.T) {
	f := newFakeFetcher()
	p, frames, recs := newTestPlayer(t, f, statespace.DefaultState())

	if err := p.RequestTransition(context.Background(), statespace.DefaultState()); err != nil {
		t.Fatalf("RequestTransition: %v", err)
	}
	if p.Phase() != PhaseIdle {
		t.Fatalf("phase = %s, want idle", p.Phase())
	}
	if len(frames.list()) != 0 || len(recs.list()) != 0 {
		t.Fatal("trivial request must not play frames or record a route")
	}
}

// #endregion

// #region idle-frame

func TestResolveIdleFrameAtHub(t *testing.T) {
	f := newFakeFetcher()
	f.addSeq("neutral_to_happy_soft__center", 5)
	p, _, _ := newTestPlayer(t, f, statespace.DefaultState())

	fr, err := p.ResolveIdleFrame(context.Background())
	if err != nil {
		t.Fatalf("ResolveIdleFrame: %v", err)
	}
	// The hub sits at the stored start, so the still is the first frame.
	if fr.T != 0 {
		t.Fatalf("expected the t=0 frame, got %+v", fr)
	}
	if got, ok := p.CurrentFrame(); !ok || got != fr {
		t.Fatalf("displayed frame not updated: %+v", got)
	}
}

func TestResolveIdleFrameNonHubUsesLastFrame(t *testing.T) {
	f := newFakeFetcher()
	f.addSeq("neutral_to_speaking_ah__center", 5)
	p, _, _ := newTestPlayer(t, f, st(statespace.ExprSpeakingAh, statespace.PoseCenter))

	fr, err := p.ResolveIdleFrame(context.Background())
	if err != nil {
		t.Fatalf("ResolveIdleFrame: %v", err)
	}
	if fr.T != 1 {
		t.Fatalf("expected the t=1 frame, got %+v", fr)
	}
}

func TestResolveIdleFrameNoneResolves(t *testing.T) {
	f := newFakeFetcher() // nothing authored
	p, _, _ := newTestPlayer(t, f, statespace.DefaultState())

	_, err := p.ResolveIdleFrame(context.Background())
	if !errors.Is(err, ErrNoIdleFrame) {
		t.Fatalf("expected ErrNoIdleFrame, got %v", err)
	}
	// Never mutates state, never fatal.
	if p.State() != statespace.DefaultState() || p.Phase() != PhaseIdle {
		t.Fatal("idle lookup must not disturb the player")
	}
}

// #endregion

// #region pacing

func TestEasingByName(t *testing.T) {
	if _, err := EasingByName("linear"); err != nil {
		t.Fatalf("linear: %v", err)
	}
	if _, err := EasingByName("in_out_quad"); err != nil {
		t.Fatalf("in_out_quad: %v", err)
	}
	if _, err := EasingByName("bounce"); err == nil {
		t.Fatal("non-monotonic curves must be rejected")
	}
}

func TestEasedPlaybackKeepsFrameOrder(t *testing.T) {
	easing, err := EasingByName("in_out_quad")
	if err != nil {
		t.Fatalf("EasingByName: %v", err)
	}

	f := newFakeFetcher()
	f.addSeq("neutral_to_surprised_ah__center", 12)
	cache := timeline.New(f, time.Second)
	p := New(cache, Config{FPS: 200, Easing: easing, InitialState: statespace.DefaultState()})
	frames := &frameLog{}
	p.SetFrameListener(frames.add)

	target := st(statespace.ExprSurprisedAh, statespace.PoseCenter)
	if err := p.RequestTransition(context.Background(), target); err != nil {
		t.Fatalf("RequestTransition: %v", err)
	}
	waitFor(t, "completion", func() bool { return p.Phase() == PhaseIdle && p.State() == target })

	got := frames.list()
	if len(got) != 12 {
		t.Fatalf("eased playback still ticks once per source frame: got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].T < got[i-1].T {
			t.Fatalf("eased forward segment regressed in t: %v", got)
		}
	}
	if got[0].T != 0 || got[len(got)-1].T != 1 {
		t.Fatalf("eased segment must still span endpoints: %v", got)
	}
}

// #endregion

// #region misc

func TestActivePathIDDuringPlayback(t *testing.T) {
	f := newFakeFetcher()
	f.addSeq("neutral_to_blink__center", 40)
	p, frames, _ := newTestPlayer(t, f, statespace.DefaultState())

	if _, ok := p.ActivePathID(); ok {
		t.Fatal("no active path while idle")
	}
	if err := p.RequestTransition(context.Background(), st(statespace.ExprBlinkClosed, statespace.PoseCenter)); err != nil {
		t.Fatalf("RequestTransition: %v", err)
	}
	waitFor(t, "playback start", func() bool { return len(frames.list()) > 0 })

	if id, ok := p.ActivePathID(); !ok || id != "neutral_to_blink__center" {
		t.Fatalf("active path = %q, %v", id, ok)
	}
	p.Cancel()
}

func TestSubmitRouteRejectsStaleStart(t *testing.T) {
	f := newFakeFetcher()
	p, _, _ := newTestPlayer(t, f, statespace.DefaultState())

	stale := route.Plan(st(statespace.ExprHappyBig, statespace.PoseCenter), statespace.DefaultState())
	if err := p.SubmitRoute(context.Background(), stale); err == nil {
		t.Fatal("a route starting elsewhere must be rejected")
	}
	if p.Phase() != PhaseIdle {
		t.Fatalf("phase = %s, want idle", p.Phase())
	}
}

func TestStateListenerFiresOnCommitOnly(t *testing.T) {
	f := newFakeFetcher()
	f.addSeq("neutral_to_happy_big__center", 30)
	p, frames, _ := newTestPlayer(t, f, statespace.DefaultState())

	var mu sync.Mutex
	var changes []statespace.State
	p.SetStateListener(func(s statespace.State) {
		mu.Lock()
		changes = append(changes, s)
		mu.Unlock()
	})

	// Cancelled route: no notification.
	if err := p.RequestTransition(context.Background(), st(statespace.ExprHappyBig, statespace.PoseCenter)); err != nil {
		t.Fatalf("RequestTransition: %v", err)
	}
	waitFor(t, "playback start", func() bool { return len(frames.list()) > 0 })
	p.Cancel()
	waitFor(t, "idle after cancel", func() bool { return p.Phase() == PhaseIdle })

	mu.Lock()
	n := len(changes)
	mu.Unlock()
	if n != 0 {
		t.Fatalf("cancelled route must not notify a state change, got %v", changes)
	}

	// Completed route: exactly one notification with the target.
	target := st(statespace.ExprHappyBig, statespace.PoseCenter)
	if err := p.RequestTransition(context.Background(), target); err != nil {
		t.Fatalf("RequestTransition: %v", err)
	}
	waitFor(t, "completion", func() bool { return p.Phase() == PhaseIdle && p.State() == target })

	mu.Lock()
	defer mu.Unlock()
	if len(changes) != 1 || changes[0] != target {
		t.Fatalf("expected one notification of %s, got %v", target, changes)
	}
}

// #endregion
