package player

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/doInfinitely/video-generation-pipeline/go-player/internal/route"
	"github.com/doInfinitely/video-generation-pipeline/go-player/internal/statespace"
)

// #region blink-controller

// BlinkController triggers an autonomous blink after a randomized idle
// interval, whenever the player sits idle at the hub expression. It never
// races a user route: the fire path re-validates idleness and the player's
// route-start check discards anything stale.
type BlinkController struct {
	player    *Player
	blinkExpr statespace.Expression
	min, max  time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewBlinkController creates a controller over p. The delay before each blink
// is drawn uniformly from [min, max].
func NewBlinkController(p *Player, min, max time.Duration) *BlinkController {
	if min <= 0 {
		min = 2 * time.Second
	}
	if max < min {
		max = min
	}
	return &BlinkController{
		player:    p,
		blinkExpr: statespace.ExprBlinkClosed,
		min:       min,
		max:       max,
	}
}

// Start hooks the controller to the player's idle re-entries and arms the
// first timer. Re-arming after each blink is automatic: the blink route ends
// back at the hub expression, which re-satisfies the arm condition.
func (b *BlinkController) Start() {
	b.player.SetIdleListener(b.arm)
	b.arm()
}

// Stop disarms the controller permanently.
func (b *BlinkController) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = true
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

// #endregion

// #region arm-fire

// arm schedules a one-shot blink timer if the player is idle at the hub
// expression. Called on every idle re-entry; a pending timer is replaced.
func (b *BlinkController) arm() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	if b.player.Phase() != PhaseIdle || b.player.State().Expr != statespace.ExprHub {
		return
	}
	if b.timer != nil {
		b.timer.Stop()
	}
	delay := b.min
	if b.max > b.min {
		delay += time.Duration(rand.Int63n(int64(b.max - b.min)))
	}
	b.timer = time.AfterFunc(delay, b.fire)
}

// fire re-validates both arm conditions, then submits the blink round trip.
// A stale timer (user route started, or expression moved) does nothing.
func (b *BlinkController) fire() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	if b.player.Phase() != PhaseIdle {
		return
	}
	cur := b.player.State()
	if cur.Expr != statespace.ExprHub {
		return
	}

	closed := statespace.State{Expr: b.blinkExpr, Pose: cur.Pose}
	r := append(route.Plan(cur, closed), route.Plan(closed, cur)...)

	err := b.player.SubmitRoute(context.Background(), r)
	switch {
	case err == nil:
	case errors.Is(err, ErrBusy):
		// Lost the race to a user route; drop silently and re-arm on idle.
	default:
		log.Printf("[BLINK] blink route failed: %v", err)
	}
}

// #endregion
