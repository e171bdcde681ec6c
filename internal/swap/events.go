package swap

import "time"

// EventType enumerates the lifecycle transitions published during a run.
type EventType string

const (
	EventPlanAdmitted     EventType = "plan_admitted"
	EventQuoteStarted     EventType = "quote_started"
	EventQuoteReady       EventType = "quote_ready"
	EventExecuteStarted   EventType = "execute_started"
	EventExecuteSubmitted EventType = "execute_submitted"
	EventVerified         EventType = "verified"
	EventFailed           EventType = "failed"
	EventSkipped          EventType = "skipped"
	EventRetryScheduled   EventType = "retry_scheduled"
)

// Event is one lifecycle transition for one wallet. Seq is monotonic per
// wallet; no ordering is promised across wallets. Terminal events carry the
// wallet's receipt so the aggregator can fold from the stream alone.
type Event struct {
	Type        EventType
	WalletIndex int
	Seq         uint64
	At          time.Time

	// retry_scheduled
	Attempt int
	Delay   time.Duration
	Reason  ErrorKind

	// verified / failed / skipped
	Receipt *Receipt
}

// Terminal reports whether the event closes a wallet's lifecycle.
func (e Event) Terminal() bool {
	switch e.Type {
	case EventVerified, EventFailed, EventSkipped:
		return true
	}
	return false
}
