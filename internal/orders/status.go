package orders

// Status is a step of order placement. Terminal states have no successors.
type Status string

const (
	StatusReceived          Status = "RECEIVED"
	StatusRejected          Status = "REJECTED"
	StatusCheckingStock     Status = "CHECKING_STOCK"
	StatusUnavailable       Status = "UNAVAILABLE"
	StatusCheckFailed       Status = "CHECK_FAILED"
	StatusInsufficientStock Status = "INSUFFICIENT_STOCK"
	StatusReducingStock     Status = "REDUCING_STOCK"
	StatusReduceFailed      Status = "REDUCE_FAILED"
	StatusPersisting        Status = "PERSISTING"
	StatusPersistFailed     Status = "PERSIST_FAILED"
	StatusPublishing        Status = "PUBLISHING"
	StatusCompleted         Status = "COMPLETED"
)

var validNext = map[Status]map[Status]bool{
	StatusReceived:          {StatusCheckingStock: true, StatusRejected: true},
	StatusCheckingStock:     {StatusReducingStock: true, StatusInsufficientStock: true, StatusUnavailable: true, StatusCheckFailed: true},
	StatusReducingStock:     {StatusPersisting: true, StatusReduceFailed: true, StatusUnavailable: true},
	StatusPersisting:        {StatusPublishing: true, StatusPersistFailed: true},
	StatusPublishing:        {StatusCompleted: true},
	StatusRejected:          {},
	StatusUnavailable:       {},
	StatusCheckFailed:       {},
	StatusInsufficientStock: {},
	StatusReduceFailed:      {},
	StatusPersistFailed:     {},
	StatusCompleted:         {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Terminal() bool {
	next, ok := validNext[s]
	return ok && len(next) == 0
}
