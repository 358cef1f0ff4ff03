package statespace

// #region expression

// Expression identifies one authored facial expression endpoint.
type Expression string

const (
	ExprNeutral     Expression = "neutral" // expression hub
	ExprHappySoft   Expression = "happy_soft"
	ExprHappyBig    Expression = "happy_big"
	ExprSpeakingAh  Expression = "speaking_ah"
	ExprSpeakingEe  Expression = "speaking_ee"
	ExprSpeakingUw  Expression = "speaking_uw"
	ExprOhRound     Expression = "oh_round"
	ExprSurprisedAh Expression = "surprised_ah"
	ExprConcerned   Expression = "concerned"
	ExprBlinkClosed Expression = "blink_closed"
)

// ExprHub is the expression every cross-expression transition detours through.
const ExprHub = ExprNeutral

// #endregion

// #region pose

// Pose identifies one authored head pose endpoint.
type Pose string

const (
	PoseCenter         Pose = "center" // pose hub
	PoseTiltLeftSmall  Pose = "tilt_left_small"
	PoseTiltRightSmall Pose = "tilt_right_small"
	PoseNodUpSmall     Pose = "nod_up_small"
	PoseNodDownSmall   Pose = "nod_down_small"
)

// PoseHub is the pose every cross-pose transition detours through.
const PoseHub = PoseCenter

// #endregion

// #region state

// State is the (expression, pose) pair the character currently holds.
type State struct {
	Expr Expression
	Pose Pose
}

// DefaultState returns the configured rest state: both hubs.
func DefaultState() State {
	return State{Expr: ExprHub, Pose: PoseHub}
}

func (s State) String() string {
	return string(s.Expr) + "@" + string(s.Pose)
}

// #endregion
