package approval

import "fmt"

// Kind identifies what the agent is asking permission for.
type Kind string

const (
	KindCommand             Kind = "command"
	KindCommandOutput       Kind = "command_output"
	KindTool                Kind = "tool"
	KindCheckpointRestore   Kind = "checkpoint_restore"
	KindUseMCPServer        Kind = "use_mcp_server"
	KindBrowserActionLaunch Kind = "browser_action_launch"
	KindAPIRequestFailed    Kind = "api_req_failed"
	KindMistakeLimitReached Kind = "mistake_limit_reached"
	KindResumeTask          Kind = "resume_task"
	KindFollowup            Kind = "followup"
	KindCompletionResult    Kind = "completion_result"
)

// NonBlocking reports kinds that stream under changing ids without being
// a new question for the user. Their selection survives an id change.
func NonBlocking(k Kind) bool {
	return k == KindCommandOutput
}

// Request is one question from the host. ID is the unix millisecond at
// which the host created it.
type Request struct {
	ID       int64
	Kind     Kind
	Payload  string
	Partial  bool
	Answered bool
}

type Action string

const (
	ActionApprove            Action = "approve"
	ActionReject             Action = "reject"
	ActionApproveAndRemember Action = "approve_and_remember"
)

type Operation string

const (
	OperationApprove Operation = "approve"
	OperationReject  Operation = "reject"
)

// OperationFor maps an option's action to the lock operation it takes.
func OperationFor(a Action) Operation {
	if a == ActionReject {
		return OperationReject
	}
	return OperationApprove
}

type ProcessingLock struct {
	IsProcessing bool
	RequestID    int64
	Operation    Operation
}

type Phase int

const (
	Idle Phase = iota
	Pending
	Processing
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case Processing:
		return "processing"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Decision is what the user picked for a request.
type Decision struct {
	RequestID      int64
	Kind           Kind
	Action         Action
	CommandPattern string
	Label          string
}

func (d Decision) Approved() bool {
	return d.Action != ActionReject
}
