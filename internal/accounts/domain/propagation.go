package accounts

import (
	"context"
	"time"
)

// WriteState tracks one sibling row inside a propagation.
type WriteState string

const (
	WriteComputed  WriteState = "computed"
	WritePending   WriteState = "pending"
	WritePersisted WriteState = "persisted"
	WriteFailed    WriteState = "failed"
)

// PropagationRow is the ledger entry of one sibling account.
type PropagationRow struct {
	AccountID string     `json:"account_id"`
	State     WriteState `json:"state"`
	Error     string     `json:"error,omitempty"`
	Attempts  int        `json:"attempts"`
}

// Propagation records a cutoff change applied to every account sharing an email.
type Propagation struct {
	ID              string           `json:"id"`
	SourceAccountID string           `json:"source_account_id"`
	DeviceIndex     int              `json:"device_index"`
	Email           string           `json:"email"`
	NewCutoff       string           `json:"new_cutoff"`
	Rows            []PropagationRow `json:"rows"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// FailedCount returns the number of rows in the failed state.
func (p Propagation) FailedCount() int {
	count := 0
	for _, row := range p.Rows {
		if row.State == WriteFailed {
			count++
		}
	}
	return count
}

// Clone returns a deep copy.
func (p Propagation) Clone() Propagation {
	out := p
	out.Rows = append([]PropagationRow(nil), p.Rows...)
	return out
}

// Result summarises the ledger for callers.
func (p Propagation) Result() PropagationResult {
	result := PropagationResult{
		ID:        p.ID,
		Email:     p.Email,
		NewCutoff: p.NewCutoff,
		Succeeded: []string{},
		Failed:    []FailedWrite{},
	}
	for _, row := range p.Rows {
		switch row.State {
		case WritePersisted:
			result.Succeeded = append(result.Succeeded, row.AccountID)
		case WriteFailed:
			result.Failed = append(result.Failed, FailedWrite{AccountID: row.AccountID, Error: row.Error})
		}
	}
	return result
}

// FailedWrite names a sibling whose write did not persist.
type FailedWrite struct {
	AccountID string `json:"account_id"`
	Error     string `json:"error"`
}

// PropagationResult is returned by a cutoff change.
type PropagationResult struct {
	ID        string        `json:"id"`
	Email     string        `json:"email"`
	NewCutoff string        `json:"new_cutoff"`
	Succeeded []string      `json:"succeeded"`
	Failed    []FailedWrite `json:"failed"`
}

// Partial reports whether any row failed.
func (r PropagationResult) Partial() bool {
	return len(r.Failed) > 0
}

// PropagationLedger persists propagation progress. Get returns nil, nil when absent.
type PropagationLedger interface {
	Save(ctx context.Context, propagation Propagation) error
	Get(ctx context.Context, id string) (*Propagation, error)
}
