package manifest

import (
	"fmt"
	"sort"
)

// #region wire-types

// Frame is one entry of a timeline manifest: a normalized time fraction and
// the frame image filename under the timeline's directory.
type Frame struct {
	T    float64 `json:"t"`
	File string  `json:"file"`
}

// Timeline is the manifest served for one stored frame sequence. It connects
// exactly two states and is traversable in either direction; only the authored
// direction is stored.
type Timeline struct {
	PathID    string  `json:"path_id"`
	ExprStart string  `json:"expr_start"`
	ExprEnd   string  `json:"expr_end"`
	Pose      string  `json:"pose"`
	Frames    []Frame `json:"frames"`
}

// SortFrames orders frames by ascending t. The server scans directories and
// may emit frames in any order; consumers must not assume ingest order.
func (tl *Timeline) SortFrames() {
	sort.Slice(tl.Frames, func(i, j int) bool {
		return tl.Frames[i].T < tl.Frames[j].T
	})
}

// Validate checks the manifest is usable for playback.
func (tl *Timeline) Validate() error {
	if len(tl.Frames) == 0 {
		return fmt.Errorf("timeline %s has no frames", tl.PathID)
	}
	for _, f := range tl.Frames {
		if f.T < 0 || f.T > 1 {
			return fmt.Errorf("timeline %s: frame %s has t=%v outside [0,1]", tl.PathID, f.File, f.T)
		}
		if f.File == "" {
			return fmt.Errorf("timeline %s: frame at t=%v has empty file", tl.PathID, f.T)
		}
	}
	return nil
}

// #endregion

// #region fetch-error

// FetchError reports a failed manifest or frame retrieval for one path id.
// Route resolution treats any FetchError as fatal for the whole route.
type FetchError struct {
	PathID string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch timeline %s: %v", e.PathID, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// #endregion
