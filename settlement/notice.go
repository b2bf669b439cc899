package settlement

// NoticeKind separates blocking errors from advisory notes.
type NoticeKind string

const (
	NoticeError NoticeKind = "error"
	NoticeInfo  NoticeKind = "info"
)

// Notice is a user-visible message raised by a triggering event.
type Notice struct {
	Kind    NoticeKind
	Message string
}

// Recorder observes orchestrator outcomes. metrics.Prometheus implements it.
type Recorder interface {
	BaselineApplied(lines int)
	BaselineFailed(reason string)
	LineRecomputed(component string)
	EditSuppressed()
	TotalMismatch()
}

// Failure reasons passed to Recorder.BaselineFailed.
const (
	ReasonUnavailable = "unavailable"
	ReasonTransport   = "transport"
)

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) BaselineApplied(int)    {}
func (NopRecorder) BaselineFailed(string)  {}
func (NopRecorder) LineRecomputed(string)  {}
func (NopRecorder) EditSuppressed()        {}
func (NopRecorder) TotalMismatch()         {}
