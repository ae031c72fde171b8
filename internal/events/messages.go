package events

import (
	"encoding/json"
	"time"
)

// Mutation kinds carried on the wire.
const (
	KindExpenseAdded   = "expense_added"
	KindExpenseUpdated = "expense_updated"
	KindExpenseDeleted = "expense_deleted"
	KindLimitsSaved    = "limits_saved"
	KindMonthCleared   = "month_cleared"
	KindLimitsImported = "limits_imported"
)

// MutationEvent announces one committed mutation. It carries just
// enough for a consumer to fetch the changed data itself: the profile
// handle plus the expense id or month key the mutation touched.
type MutationEvent struct {
	Profile    string    `json:"profile"`
	Kind       string    `json:"kind"`
	ExpenseID  int64     `json:"expense_id,omitempty"`
	Month      string    `json:"month,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewExpenseEvent builds an event for an expense mutation.
func NewExpenseEvent(profile, kind string, expenseID int64) MutationEvent {
	return MutationEvent{
		Profile:    profile,
		Kind:       kind,
		ExpenseID:  expenseID,
		OccurredAt: time.Now().UTC(),
	}
}

// NewLimitsEvent builds an event for a limits mutation.
func NewLimitsEvent(profile, kind, monthKey string) MutationEvent {
	return MutationEvent{
		Profile:    profile,
		Kind:       kind,
		Month:      monthKey,
		OccurredAt: time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes.
func (m MutationEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FromJSON decodes an event from JSON bytes.
func FromJSON(data []byte) (MutationEvent, error) {
	var m MutationEvent
	if err := json.Unmarshal(data, &m); err != nil {
		return MutationEvent{}, err
	}
	return m, nil
}
