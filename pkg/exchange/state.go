package exchange

// State 命令序列状态
// NotStarted -> Sending -> AwaitingFinalResponse -> Done，任一活动状态都可能转入 Failed
type State int32

const (
	NotStarted State = iota
	Sending
	AwaitingFinalResponse
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "NOT_STARTED"
	case Sending:
		return "SENDING"
	case AwaitingFinalResponse:
		return "AWAITING_FINAL_RESPONSE"
	case Done:
		return "DONE"
	case Failed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}
