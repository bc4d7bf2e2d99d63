package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/brewlog/internal/brew"
)

func TestCreateBatchWithAlarms_AssignsIDs(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	r := createTestRecipe(t, s)

	planned := []brew.AlarmItem{
		testAlarm(0, brew.AlarmNextStage, testStart.Add(3*brew.Day)),
		testAlarm(0, brew.AlarmFilter, testStart.Add(30*brew.Day)),
	}
	b, alarms, err := s.CreateBatchWithAlarms(ctx, testBatch(r.ID), planned)
	require.NoError(t, err)
	require.NotZero(t, b.ID)
	assert.Equal(t, brew.BatchFermenting, b.Status)
	require.Len(t, alarms, 2)

	for _, a := range alarms {
		assert.NotZero(t, a.ID)
		assert.Equal(t, b.ID, a.BatchID)
	}
	assert.Zero(t, planned[0].BatchID, "input slice is not modified")

	got, err := s.GetBatch(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b, got)

	stored, err := s.AlarmsByBatch(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, alarms, stored)
}

func TestCreateBatchWithAlarms_AllOrNothing(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	r := createTestRecipe(t, s)

	planned := []brew.AlarmItem{
		testAlarm(0, brew.AlarmNextStage, testStart.Add(3*brew.Day)),
		testAlarm(0, brew.AlarmType("BOGUS"), testStart.Add(4*brew.Day)),
	}
	_, _, err := s.CreateBatchWithAlarms(ctx, testBatch(r.ID), planned)
	require.Error(t, err)
	assert.True(t, brew.IsInvalidAlarm(err))

	batches, err := s.ListBatches(ctx)
	require.NoError(t, err)
	assert.Empty(t, batches)

	alarms, err := s.AllAlarms(ctx)
	require.NoError(t, err)
	assert.Empty(t, alarms)
}

func TestCreateBatchWithAlarms_UnknownRecipe(t *testing.T) {
	s := createTestStore(t)

	_, _, err := s.CreateBatchWithAlarms(context.Background(), testBatch(404), nil)
	assert.ErrorIs(t, err, brew.ErrNotFound)
}

func TestUpdateBatchStatus_SetsActualEnd(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	b := createTestBatch(t, s)

	aging, err := s.UpdateBatchStatus(ctx, b.ID, brew.BatchAging)
	require.NoError(t, err)
	assert.Equal(t, brew.BatchAging, aging.Status)
	assert.Nil(t, aging.ActualEndDate)

	done, err := s.UpdateBatchStatus(ctx, b.ID, brew.BatchComplete)
	require.NoError(t, err)
	require.NotNil(t, done.ActualEndDate)
	assert.Equal(t, testStart, *done.ActualEndDate)

	_, err = s.UpdateBatchStatus(ctx, b.ID, brew.BatchStatus("BOTTLED"))
	assert.Error(t, err)

	_, err = s.UpdateBatchStatus(ctx, 999, brew.BatchFailed)
	assert.ErrorIs(t, err, brew.ErrNotFound)
}

func TestDeleteBatch_CascadesAlarms(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	r := createTestRecipe(t, s)

	keep, _, err := s.CreateBatchWithAlarms(ctx, testBatch(r.ID), []brew.AlarmItem{
		testAlarm(0, brew.AlarmFilter, testStart.Add(30*brew.Day)),
	})
	require.NoError(t, err)
	drop, _, err := s.CreateBatchWithAlarms(ctx, testBatch(r.ID), []brew.AlarmItem{
		testAlarm(0, brew.AlarmNextStage, testStart.Add(3*brew.Day)),
		testAlarm(0, brew.AlarmFilter, testStart.Add(30*brew.Day)),
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteBatch(ctx, drop.ID))

	_, err = s.GetBatch(ctx, drop.ID)
	assert.ErrorIs(t, err, brew.ErrNotFound)

	gone, err := s.AlarmsByBatch(ctx, drop.ID)
	require.NoError(t, err)
	assert.Empty(t, gone)

	kept, err := s.AlarmsByBatch(ctx, keep.ID)
	require.NoError(t, err)
	assert.Len(t, kept, 1)

	assert.ErrorIs(t, s.DeleteBatch(ctx, drop.ID), brew.ErrNotFound)
}

func TestListBatches_NewestFirst(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	r := createTestRecipe(t, s)

	for i := 0; i < 3; i++ {
		b := testBatch(r.ID)
		b.StartDate = testStart.Add(time.Duration(i) * brew.Day)
		_, _, err := s.CreateBatchWithAlarms(ctx, b, nil)
		require.NoError(t, err)
	}

	batches, err := s.ListBatches(ctx)
	require.NoError(t, err)
	require.Len(t, batches, 3)
	assert.True(t, batches[0].StartDate.After(batches[1].StartDate))
	assert.True(t, batches[1].StartDate.After(batches[2].StartDate))
}
