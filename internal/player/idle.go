package player

import (
	"context"
	"log"

	"github.com/doInfinitely/video-generation-pipeline/go-player/internal/statespace"
)

// #region idle-frame

// ResolveIdleFrame finds a still frame for the current state while no route
// is active: it probes the timelines that have the state as an endpoint and
// displays the matching end of the first one that resolves. Display-only;
// logical state is never touched. Returns ErrBusy mid-route and
// ErrNoIdleFrame when no candidate resolved (non-fatal, degrades to no frame).
func (p *Player) ResolveIdleFrame(ctx context.Context) (FrameRef, error) {
	p.mu.Lock()
	if p.phase != PhaseIdle {
		p.mu.Unlock()
		return FrameRef{}, ErrBusy
	}
	cur := p.state
	p.mu.Unlock()

	for _, cand := range statespace.IdleCandidates(cur) {
		tl, err := p.cache.Fetch(ctx, cand.PathID)
		if err != nil {
			continue
		}
		f := tl.Frames[0]
		if cand.AtEnd {
			f = tl.Frames[len(tl.Frames)-1]
		}
		fr := FrameRef{PathID: cand.PathID, File: f.File, T: f.T}

		p.mu.Lock()
		// A route may have started while probing; its frames win.
		if p.phase != PhaseIdle {
			p.mu.Unlock()
			return FrameRef{}, ErrBusy
		}
		p.frame = &fr
		p.mu.Unlock()

		p.notifyFrame(fr)
		return fr, nil
	}

	log.Printf("[PLAYER] warning: no idle frame resolved for %s", cur)
	return FrameRef{}, ErrNoIdleFrame
}

// #endregion
