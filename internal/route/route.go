// Package route computes the segment chain that realizes a transition
// between two character states. The topology is a pair of hub-anchored stars,
// so planning is a closed-form concatenation of at most four hops — there is
// no search.
package route

import (
	"fmt"
	"strings"

	"github.com/doInfinitely/video-generation-pipeline/go-player/internal/statespace"
)

// #region types

// Direction says which way a stored timeline is traversed.
type Direction string

const (
	Forward  Direction = "forward"  // ascending t
	Backward Direction = "backward" // descending t
)

// Segment is one directed traversal of a stored timeline.
type Segment struct {
	PathID    string
	Direction Direction
	From      statespace.State
	To        statespace.State
}

func (s Segment) String() string {
	return fmt.Sprintf("%s → %s [%s %s]", s.From, s.To, s.PathID, s.Direction)
}

// Route is an ordered chain of segments from a start state to a goal state.
// Empty means the start already is the goal.
type Route []Segment

// PathIDs returns the distinct timeline ids the route needs, in first-use order.
func (r Route) PathIDs() []string {
	seen := make(map[string]bool, len(r))
	var ids []string
	for _, seg := range r {
		if !seen[seg.PathID] {
			seen[seg.PathID] = true
			ids = append(ids, seg.PathID)
		}
	}
	return ids
}

// Target returns the route's goal state, or fallback for an empty route.
func (r Route) Target(fallback statespace.State) statespace.State {
	if len(r) == 0 {
		return fallback
	}
	return r[len(r)-1].To
}

func (r Route) String() string {
	if len(r) == 0 {
		return "(empty)"
	}
	parts := make([]string, len(r))
	for i, seg := range r {
		parts[i] = seg.String()
	}
	return strings.Join(parts, "; ")
}

// #endregion

// #region plan

// Plan computes the route from current to target. Pure and total for valid
// states: expression changes happen at a pose where both endpoints exist, and
// pose changes happen only while the expression sits at its hub. Never longer
// than four segments.
func Plan(current, target statespace.State) Route {
	if current == target {
		return nil
	}

	if current.Pose == target.Pose {
		if statespace.HasExpressionEdge(current.Expr, target.Expr) {
			return Route{exprHop(current.Expr, target.Expr, current.Pose)}
		}
		// Detour through the expression hub at the shared pose.
		var r Route
		if current.Expr != statespace.ExprHub {
			r = append(r, exprHop(current.Expr, statespace.ExprHub, current.Pose))
		}
		if target.Expr != statespace.ExprHub {
			r = append(r, exprHop(statespace.ExprHub, target.Expr, current.Pose))
		}
		return r
	}

	// Pose change: settle to the expression hub, move through the pose hub,
	// then raise the target expression at the destination pose.
	var r Route
	if current.Expr != statespace.ExprHub {
		r = append(r, exprHop(current.Expr, statespace.ExprHub, current.Pose))
	}
	if current.Pose != statespace.PoseHub {
		r = append(r, poseHop(current.Pose, statespace.PoseHub))
	}
	if target.Pose != statespace.PoseHub {
		r = append(r, poseHop(statespace.PoseHub, target.Pose))
	}
	if target.Expr != statespace.ExprHub {
		r = append(r, exprHop(statespace.ExprHub, target.Expr, target.Pose))
	}
	return r
}

// #endregion

// #region hops

// exprHop builds the segment for a single expression edge at pose. Exactly
// one of from/to is the expression hub; the stored direction is hub→other.
func exprHop(from, to statespace.Expression, pose statespace.Pose) Segment {
	if from == statespace.ExprHub {
		id, _ := statespace.ExpressionEdgeID(to, pose)
		return Segment{
			PathID:    id,
			Direction: Forward,
			From:      statespace.State{Expr: from, Pose: pose},
			To:        statespace.State{Expr: to, Pose: pose},
		}
	}
	id, _ := statespace.ExpressionEdgeID(from, pose)
	return Segment{
		PathID:    id,
		Direction: Backward,
		From:      statespace.State{Expr: from, Pose: pose},
		To:        statespace.State{Expr: to, Pose: pose},
	}
}

// poseHop builds the segment for a single pose edge, always at the
// expression hub. Exactly one of from/to is the pose hub.
func poseHop(from, to statespace.Pose) Segment {
	if from == statespace.PoseHub {
		id, _ := statespace.PoseEdgeID(to)
		return Segment{
			PathID:    id,
			Direction: Forward,
			From:      statespace.State{Expr: statespace.ExprHub, Pose: from},
			To:        statespace.State{Expr: statespace.ExprHub, Pose: to},
		}
	}
	id, _ := statespace.PoseEdgeID(from)
	return Segment{
		PathID:    id,
		Direction: Backward,
		From:      statespace.State{Expr: statespace.ExprHub, Pose: from},
		To:        statespace.State{Expr: statespace.ExprHub, Pose: to},
	}
}

// #endregion
