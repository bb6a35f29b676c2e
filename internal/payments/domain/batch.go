package payments

import "time"

// BatchStatus is the lifecycle state of a computation batch.
type BatchStatus string

const (
	BatchStarted    BatchStatus = "STARTED"
	BatchInProgress BatchStatus = "IN_PROGRESS"
	BatchError      BatchStatus = "ERROR"
	BatchAbort      BatchStatus = "ABORT"
	BatchSuccess    BatchStatus = "SUCCESS"
)

// Terminal reports whether no further transitions are allowed.
func (s BatchStatus) Terminal() bool {
	return s == BatchError || s == BatchAbort || s == BatchSuccess
}

// Batch is one computation run.
type Batch struct {
	id       string
	schemeID string
	category ParticipantCategory
	period   Period
	status   BatchStatus
	start    time.Time
	end      time.Time
	errMsg   string
}

// NewBatch creates a STARTED batch.
func NewBatch(id, schemeID string, category ParticipantCategory, period Period, start time.Time) *Batch {
	return &Batch{
		id:       id,
		schemeID: schemeID,
		category: category,
		period:   period,
		status:   BatchStarted,
		start:    start.UTC(),
	}
}

// RestoreBatch rebuilds a batch from storage.
func RestoreBatch(id, schemeID string, category ParticipantCategory, period Period, status BatchStatus, start, end time.Time, errMsg string) *Batch {
	return &Batch{
		id:       id,
		schemeID: schemeID,
		category: category,
		period:   period,
		status:   status,
		start:    start.UTC(),
		end:      end.UTC(),
		errMsg:   errMsg,
	}
}

// MarkInProgress moves a started batch to IN_PROGRESS.
func (b *Batch) MarkInProgress() error {
	if b.status.Terminal() {
		return ErrBatchTerminal
	}
	b.status = BatchInProgress
	return nil
}

// Succeed closes the batch as SUCCESS.
func (b *Batch) Succeed(end time.Time) error {
	return b.finish(BatchSuccess, end, "")
}

// Fail closes the batch as ERROR.
func (b *Batch) Fail(end time.Time, cause error) error {
	return b.finish(BatchError, end, errorText(cause))
}

// Abort closes the batch as ABORT.
func (b *Batch) Abort(end time.Time, cause error) error {
	return b.finish(BatchAbort, end, errorText(cause))
}

func (b *Batch) finish(status BatchStatus, end time.Time, msg string) error {
	if b.status.Terminal() {
		return ErrBatchTerminal
	}
	b.status = status
	b.end = end.UTC()
	b.errMsg = msg
	return nil
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (b *Batch) ID() string                    { return b.id }
func (b *Batch) SchemeID() string              { return b.schemeID }
func (b *Batch) Category() ParticipantCategory { return b.category }
func (b *Batch) Period() Period                { return b.period }
func (b *Batch) Status() BatchStatus           { return b.status }
func (b *Batch) Start() time.Time              { return b.start }
func (b *Batch) End() time.Time                { return b.end }
func (b *Batch) ErrorMessage() string          { return b.errMsg }

// Clone returns a copy safe to hand out of a store.
func (b *Batch) Clone() *Batch {
	if b == nil {
		return nil
	}
	cp := *b
	return &cp
}
