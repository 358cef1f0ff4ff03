// Package statespace holds the authored transition topology: which
// (expression, pose) pairs have a directly generated frame timeline, and the
// path-id naming each timeline is stored under on the frame server.
//
// The topology is two disjoint stars. Expression edges connect the expression
// hub to every non-hub expression, authored once per pose. Pose edges connect
// the pose hub to every non-hub pose, authored only at the expression hub.
// There are no edges between two non-hub values on either axis.
package statespace

import "fmt"

// #region catalog

var expressions = []Expression{
	ExprNeutral,
	ExprHappySoft,
	ExprHappyBig,
	ExprSpeakingAh,
	ExprSpeakingEe,
	ExprSpeakingUw,
	ExprOhRound,
	ExprSurprisedAh,
	ExprConcerned,
	ExprBlinkClosed,
}

var poses = []Pose{
	PoseCenter,
	PoseTiltLeftSmall,
	PoseTiltRightSmall,
	PoseNodUpSmall,
	PoseNodDownSmall,
}

// exprEdgeBases maps a non-hub expression to the base name of its edge
// timeline from the hub. This is hand-authored configuration, not a formula:
// the blink timeline was generated under "neutral_to_blink", not the
// "{hub}_to_{target}" shape every other edge follows, and the stored frame
// directories are the source of truth.
var exprEdgeBases = map[Expression]string{
	ExprHappySoft:   "neutral_to_happy_soft",
	ExprHappyBig:    "neutral_to_happy_big",
	ExprSpeakingAh:  "neutral_to_speaking_ah",
	ExprSpeakingEe:  "neutral_to_speaking_ee",
	ExprSpeakingUw:  "neutral_to_speaking_uw",
	ExprOhRound:     "neutral_to_oh_round",
	ExprSurprisedAh: "neutral_to_surprised_ah",
	ExprConcerned:   "neutral_to_concerned",
	ExprBlinkClosed: "neutral_to_blink",
}

// #endregion

// #region lookups

// Expressions returns every known expression, hub first.
func Expressions() []Expression {
	out := make([]Expression, len(expressions))
	copy(out, expressions)
	return out
}

// Poses returns every known pose, hub first.
func Poses() []Pose {
	out := make([]Pose, len(poses))
	copy(out, poses)
	return out
}

// ValidExpression reports whether e is in the authored expression set.
func ValidExpression(e Expression) bool {
	_, ok := exprEdgeBases[e]
	return ok || e == ExprHub
}

// ValidPose reports whether p is in the authored pose set.
func ValidPose(p Pose) bool {
	for _, known := range poses {
		if p == known {
			return true
		}
	}
	return false
}

// ValidState reports whether both axes of s are authored values.
func ValidState(s State) bool {
	return ValidExpression(s.Expr) && ValidPose(s.Pose)
}

// #endregion

// #region edges

// HasExpressionEdge reports whether a direct timeline exists between two
// expressions at a single pose. True exactly when one endpoint is the hub and
// the other is a distinct authored expression.
func HasExpressionEdge(a, b Expression) bool {
	if a == b {
		return false
	}
	if a == ExprHub {
		_, ok := exprEdgeBases[b]
		return ok
	}
	if b == ExprHub {
		_, ok := exprEdgeBases[a]
		return ok
	}
	return false
}

// HasPoseEdge reports whether a direct timeline exists between two poses.
// Pose edges are only authored against the pose hub, at the expression hub.
func HasPoseEdge(a, b Pose) bool {
	if a == b {
		return false
	}
	if a == PoseHub {
		return ValidPose(b)
	}
	if b == PoseHub {
		return ValidPose(a)
	}
	return false
}

// ExpressionEdgeID returns the path id of the hub→target expression timeline
// at the given pose. The stored direction is always hub→target.
func ExpressionEdgeID(target Expression, pose Pose) (string, error) {
	base, ok := exprEdgeBases[target]
	if !ok {
		return "", fmt.Errorf("no expression edge from %s to %s", ExprHub, target)
	}
	return fmt.Sprintf("%s__%s", base, pose), nil
}

// PoseEdgeID returns the path id of the hub→target pose timeline. Pose
// timelines are anchored at the expression hub by construction, so the id
// carries no expression component.
func PoseEdgeID(target Pose) (string, error) {
	if target == PoseHub || !ValidPose(target) {
		return "", fmt.Errorf("no pose edge from %s to %s", PoseHub, target)
	}
	return fmt.Sprintf("%s_to_%s", PoseHub, target), nil
}

// #endregion

// #region idle-candidates

// IdleCandidate names a timeline that has a given state as one endpoint.
// AtEnd is true when the state sits at the stored timeline's end (so the
// matching still frame is the last one rather than the first).
type IdleCandidate struct {
	PathID string
	AtEnd  bool
}

// IdleCandidates lists every timeline touching s, most specific first. Used
// for best-effort idle frame resolution; the list may name timelines that
// were never generated.
func IdleCandidates(s State) []IdleCandidate {
	var out []IdleCandidate

	if s.Expr == ExprHub {
		// Hub expression: s is the start of every expression edge at its pose.
		for _, e := range expressions {
			if e == ExprHub {
				continue
			}
			id, err := ExpressionEdgeID(e, s.Pose)
			if err != nil {
				continue
			}
			out = append(out, IdleCandidate{PathID: id, AtEnd: false})
		}
		// And an endpoint of pose edges.
		if s.Pose == PoseHub {
			for _, p := range poses {
				if p == PoseHub {
					continue
				}
				if id, err := PoseEdgeID(p); err == nil {
					out = append(out, IdleCandidate{PathID: id, AtEnd: false})
				}
			}
		} else if id, err := PoseEdgeID(s.Pose); err == nil {
			out = append(out, IdleCandidate{PathID: id, AtEnd: true})
		}
		return out
	}

	// Non-hub expression: only the hub→expr edge at this pose touches s.
	if id, err := ExpressionEdgeID(s.Expr, s.Pose); err == nil {
		out = append(out, IdleCandidate{PathID: id, AtEnd: true})
	}
	return out
}

// #endregion
