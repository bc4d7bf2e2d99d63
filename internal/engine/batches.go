package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/brewlog/internal/brew"
	"github.com/roach88/brewlog/internal/planner"
	"github.com/roach88/brewlog/internal/scheduler"
)

// NewBatch describes a batch to start. A zero Start means now.
type NewBatch struct {
	RecipeID int64
	Name     string
	Start    time.Time
	Notes    string
}

// CreatedBatch is the result of CreateBatch.
type CreatedBatch struct {
	Batch   brew.Batch
	Alarms  []brew.AlarmItem
	Results []scheduler.ArmResult // parallel to Alarms
}

// CreateBatch plans the recipe's alarms, stores the batch with them in one
// transaction and arms each alarm.
//
// A malformed recipe schedule stores nothing. An arming failure is logged
// and does not fail the call; that alarm's result reads Inactive.
func (e *Engine) CreateBatch(ctx context.Context, nb NewBatch) (CreatedBatch, error) {
	name := norm.NFC.String(strings.TrimSpace(nb.Name))
	if name == "" {
		return CreatedBatch{}, ErrBatchName
	}

	recipe, err := e.store.GetRecipe(ctx, nb.RecipeID)
	if err != nil {
		return CreatedBatch{}, fmt.Errorf("load recipe %d: %w", nb.RecipeID, err)
	}
	stages, err := e.store.RecipeStages(ctx, nb.RecipeID)
	if err != nil {
		return CreatedBatch{}, fmt.Errorf("load recipe stages: %w", err)
	}

	start := nb.Start
	if start.IsZero() {
		start = e.clock.Now()
	}
	start = ms(start)

	planned, err := planner.Plan(stages, recipe.FilteringDays, start, 0, name)
	if err != nil {
		return CreatedBatch{}, err
	}

	batch, alarms, err := e.store.CreateBatchWithAlarms(ctx, brew.Batch{
		RecipeID:        recipe.ID,
		BatchName:       name,
		StartDate:       start,
		ExpectedEndDate: brew.DaysAfter(start, recipe.FilteringDays),
		Status:          brew.BatchFermenting,
		Notes:           nb.Notes,
	}, planned)
	if err != nil {
		return CreatedBatch{}, fmt.Errorf("create batch: %w", err)
	}

	results := make([]scheduler.ArmResult, len(alarms))
	for i, a := range alarms {
		results[i] = e.arm(ctx, a)
	}

	e.log.Info("batch created", "batch_id", batch.ID, "recipe_id", recipe.ID, "alarms", len(alarms))
	return CreatedBatch{Batch: batch, Alarms: alarms, Results: results}, nil
}

// DeleteBatch cancels every registration of the batch and deletes it with
// its alarms. If the delete fails the batch's active alarms are armed
// again so nothing is silently lost.
func (e *Engine) DeleteBatch(ctx context.Context, batchID int64) error {
	if _, err := e.store.GetBatch(ctx, batchID); err != nil {
		return fmt.Errorf("load batch %d: %w", batchID, err)
	}

	if err := e.sched.CancelByBatch(ctx, batchID); err != nil {
		return err
	}

	delErr := e.store.DeleteBatch(ctx, batchID)
	if delErr == nil {
		e.log.Info("batch deleted", "batch_id", batchID)
		return nil
	}

	e.log.Warn("batch delete failed, re-arming its alarms", "batch_id", batchID, "error", delErr)
	alarms, err := e.store.AlarmsByBatch(ctx, batchID)
	if err != nil {
		return errors.Join(fmt.Errorf("delete batch: %w", delErr), fmt.Errorf("reload alarms: %w", err))
	}
	for _, a := range alarms {
		e.arm(ctx, a)
	}
	return fmt.Errorf("delete batch: %w", delErr)
}

// UpdateBatchStatus moves a batch to status. Finishing statuses stamp the
// actual end date.
func (e *Engine) UpdateBatchStatus(ctx context.Context, batchID int64, status brew.BatchStatus) (brew.Batch, error) {
	if !brew.ValidBatchStatuses[status] {
		return brew.Batch{}, fmt.Errorf("unknown batch status %q", status)
	}
	b, err := e.store.UpdateBatchStatus(ctx, batchID, status)
	if err != nil {
		return brew.Batch{}, fmt.Errorf("update batch %d: %w", batchID, err)
	}
	e.log.Info("batch status changed", "batch_id", batchID, "status", status)
	return b, nil
}

// BatchAlarms lists a batch's alarms by scheduled time.
func (e *Engine) BatchAlarms(ctx context.Context, batchID int64) ([]brew.AlarmItem, error) {
	if _, err := e.store.GetBatch(ctx, batchID); err != nil {
		return nil, fmt.Errorf("load batch %d: %w", batchID, err)
	}
	return e.store.AlarmsByBatch(ctx, batchID)
}
