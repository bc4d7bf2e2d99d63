package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/brewlog/internal/brew"
	"github.com/roach88/brewlog/internal/testutil"
)

var testStart = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// createTestStore opens a fresh database in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	s.SetNow(func() time.Time { return testStart })
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRecipe stores the Samyangju fixture.
func createTestRecipe(t *testing.T, s *Store) brew.Recipe {
	t.Helper()
	r, stages := testutil.Samyangju()
	r, _, err := s.CreateRecipe(context.Background(), r, stages)
	if err != nil {
		t.Fatalf("CreateRecipe() failed: %v", err)
	}
	return r
}

// createTestBatch stores a recipe and a batch with no alarms.
func createTestBatch(t *testing.T, s *Store) brew.Batch {
	t.Helper()
	r := createTestRecipe(t, s)
	b, _, err := s.CreateBatchWithAlarms(context.Background(), testBatch(r.ID), nil)
	if err != nil {
		t.Fatalf("CreateBatchWithAlarms() failed: %v", err)
	}
	return b
}

func testBatch(recipeID int64) brew.Batch {
	return brew.Batch{
		RecipeID:        recipeID,
		BatchName:       "Spring",
		StartDate:       testStart,
		ExpectedEndDate: brew.DaysAfter(testStart, 30),
	}
}

func testAlarm(batchID int64, typ brew.AlarmType, at time.Time) brew.AlarmItem {
	return brew.AlarmItem{
		BatchID:       batchID,
		AlarmType:     typ,
		Title:         string(typ) + " alarm",
		Description:   "check it",
		ScheduledTime: at,
		IsEnabled:     true,
	}
}
