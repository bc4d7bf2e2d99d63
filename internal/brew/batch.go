package brew

import (
	"fmt"
	"time"
)

// BatchStatus is the lifecycle state of a batch.
type BatchStatus string

const (
	BatchFermenting BatchStatus = "FERMENTING"
	BatchAging      BatchStatus = "AGING"
	BatchComplete   BatchStatus = "COMPLETE"
	BatchFailed     BatchStatus = "FAILED"
)

// ValidBatchStatuses lists the accepted status names.
var ValidBatchStatuses = map[BatchStatus]bool{
	BatchFermenting: true,
	BatchAging:      true,
	BatchComplete:   true,
	BatchFailed:     true,
}

// ParseBatchStatus returns the status with the given canonical name.
func ParseBatchStatus(s string) (BatchStatus, error) {
	st := BatchStatus(s)
	if !ValidBatchStatuses[st] {
		return "", fmt.Errorf("unknown batch status %q", s)
	}
	return st, nil
}

// Finished reports whether the status ends the batch.
func (s BatchStatus) Finished() bool {
	return s == BatchComplete || s == BatchFailed
}

// Batch is one run of a recipe. It owns its alarms.
//
// ExpectedEndDate is fixed at creation from the recipe's filtering offset
// and does not follow later recipe edits.
type Batch struct {
	ID              int64       `json:"id"`
	RecipeID        int64       `json:"recipe_id"`
	BatchName       string      `json:"batch_name"`
	StartDate       time.Time   `json:"start_date"`
	ExpectedEndDate time.Time   `json:"expected_end_date"`
	ActualEndDate   *time.Time  `json:"actual_end_date,omitempty"`
	Status          BatchStatus `json:"status"`
	Notes           string      `json:"notes"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}
