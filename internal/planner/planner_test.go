package planner

import (
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/brewlog/internal/brew"
	"github.com/roach88/brewlog/internal/testutil"
)

var batchStart = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func TestPlan_OffsetCorrectness(t *testing.T) {
	stages := []brew.RecipeStage{
		{StageNumber: 1, WaterAmountLiters: 2, NurukAmountGrams: 400},
		{StageNumber: 2, DaysFromStart: brew.Days(5), WaterAmountLiters: 1, NurukAmountGrams: 100},
	}

	alarms, err := Plan(stages, 14, batchStart, 9, "Test Batch")
	require.NoError(t, err)
	require.Len(t, alarms, 2)

	assert.Equal(t, brew.AlarmNextStage, alarms[0].AlarmType)
	assert.Equal(t, batchStart.Add(5*24*time.Hour), alarms[0].ScheduledTime)
	assert.Equal(t, brew.AlarmFilter, alarms[1].AlarmType)
	assert.Equal(t, batchStart.Add(14*24*time.Hour), alarms[1].ScheduledTime)

	for _, a := range alarms {
		assert.Equal(t, int64(9), a.BatchID)
		assert.True(t, a.IsEnabled)
		assert.False(t, a.IsTriggered)
		assert.Zero(t, a.ID, "ids are assigned by the store")
	}
}

func TestPlan_StageOneNeverAlarms(t *testing.T) {
	_, stages := testutil.Samyangju()

	alarms, err := Plan(stages, 30, batchStart, 1, "Spring")
	require.NoError(t, err)

	for _, a := range alarms {
		assert.False(t, a.ScheduledTime.Equal(batchStart), "alarm %q lands on batch start", a.Title)
		assert.NotContains(t, a.Title, "Stage 1 ")
	}
	assert.Len(t, alarms, len(stages)) // (n-1) stage alarms + 1 filter
}

func TestPlan_SingleStageRecipe(t *testing.T) {
	stages := []brew.RecipeStage{{StageNumber: 1, WaterAmountLiters: 3, NurukAmountGrams: 500}}

	alarms, err := Plan(stages, 10, batchStart, 1, "Danyangju")
	require.NoError(t, err)
	require.Len(t, alarms, 1)
	assert.Equal(t, brew.AlarmFilter, alarms[0].AlarmType)
	assert.Equal(t, "Filter - Danyangju", alarms[0].Title)
}

func TestPlan_DeterministicAcrossStageOrder(t *testing.T) {
	_, stages := testutil.Samyangju()

	first, err := Plan(stages, 30, batchStart, 3, "Spring")
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		shuffled := make([]brew.RecipeStage, len(stages))
		copy(shuffled, stages)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		again, err := Plan(shuffled, 30, batchStart, 3, "Spring")
		require.NoError(t, err)
		assert.Equal(t, typeTimes(first), typeTimes(again))
	}
}

func TestPlan_DoesNotMutateInput(t *testing.T) {
	stages := []brew.RecipeStage{
		{StageNumber: 2, DaysFromStart: brew.Days(4)},
		{StageNumber: 1},
	}

	_, err := Plan(stages, 12, batchStart, 1, "x")
	require.NoError(t, err)
	assert.Equal(t, 2, stages[0].StageNumber)
	assert.Equal(t, 1, stages[1].StageNumber)
}

func TestPlan_NormalizesBatchName(t *testing.T) {
	composed := "\uB9C9\uAC78\uB9AC"
	decomposed := norm.NFD.String(composed)
	require.NotEqual(t, composed, decomposed)

	stages := []brew.RecipeStage{{StageNumber: 1}}
	a, err := Plan(stages, 7, batchStart, 1, composed)
	require.NoError(t, err)
	b, err := Plan(stages, 7, batchStart, 1, "  "+decomposed+" ")
	require.NoError(t, err)

	assert.Equal(t, a[0].Title, b[0].Title)
}

func TestPlan_MalformedInputRejected(t *testing.T) {
	tests := []struct {
		name          string
		stages        []brew.RecipeStage
		filteringDays int
	}{
		{
			name: "non-contiguous stage numbers",
			stages: []brew.RecipeStage{
				{StageNumber: 1},
				{StageNumber: 2, DaysFromStart: brew.Days(3)},
				{StageNumber: 4, DaysFromStart: brew.Days(6)},
			},
			filteringDays: 20,
		},
		{
			name: "later stage without offset",
			stages: []brew.RecipeStage{
				{StageNumber: 1},
				{StageNumber: 2},
			},
			filteringDays: 20,
		},
		{
			name: "duplicate stage number",
			stages: []brew.RecipeStage{
				{StageNumber: 1},
				{StageNumber: 1},
			},
			filteringDays: 20,
		},
		{
			name: "non-increasing offsets",
			stages: []brew.RecipeStage{
				{StageNumber: 1},
				{StageNumber: 2, DaysFromStart: brew.Days(5)},
				{StageNumber: 3, DaysFromStart: brew.Days(5)},
			},
			filteringDays: 20,
		},
		{
			name: "second stage on day zero",
			stages: []brew.RecipeStage{
				{StageNumber: 1},
				{StageNumber: 2, DaysFromStart: brew.Days(0)},
			},
			filteringDays: 20,
		},
		{
			name: "stage one offset",
			stages: []brew.RecipeStage{
				{StageNumber: 1, DaysFromStart: brew.Days(2)},
			},
			filteringDays: 20,
		},
		{
			name:          "zero filtering days",
			stages:        []brew.RecipeStage{{StageNumber: 1}},
			filteringDays: 0,
		},
		{
			name:          "negative filtering days",
			stages:        []brew.RecipeStage{{StageNumber: 1}},
			filteringDays: -3,
		},
		{
			name: "missing stage one",
			stages: []brew.RecipeStage{
				{StageNumber: 2, DaysFromStart: brew.Days(2)},
			},
			filteringDays: 20,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alarms, err := Plan(tt.stages, tt.filteringDays, batchStart, 1, "Bad")
			require.Error(t, err)
			assert.True(t, brew.IsMalformedSchedule(err), "got %v", err)
			assert.Empty(t, alarms)
		})
	}
}

func TestStageDescription(t *testing.T) {
	withRice := brew.RecipeStage{StageNumber: 3, WaterAmountLiters: 0.5, NurukAmountGrams: 0, RiceAmountKg: brew.Kg(4.5)}
	assert.Equal(t, "Stage 3 ingredients: water 0.5L, nuruk 0g, rice 4.5kg", StageDescription(withRice))

	noRice := brew.RecipeStage{StageNumber: 2, WaterAmountLiters: 1.25, NurukAmountGrams: 150}
	assert.Equal(t, "Stage 2 ingredients: water 1.25L, nuruk 150g", StageDescription(noRice))
}

type plannedAlarm struct {
	Type          brew.AlarmType `json:"alarm_type"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	ScheduledTime string         `json:"scheduled_time"`
	BatchID       int64          `json:"batch_id"`
	Enabled       bool           `json:"is_enabled"`
}

func TestPlan_Golden(t *testing.T) {
	_, stages := testutil.Samyangju()

	alarms, err := Plan(stages, 30, batchStart, 42, "Spring Samyangju")
	require.NoError(t, err)

	out := make([]plannedAlarm, len(alarms))
	for i, a := range alarms {
		out[i] = plannedAlarm{
			Type:          a.AlarmType,
			Title:         a.Title,
			Description:   a.Description,
			ScheduledTime: a.ScheduledTime.UTC().Format(time.RFC3339),
			BatchID:       a.BatchID,
			Enabled:       a.IsEnabled,
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "samyangju", append(data, '\n'))
}

type typeTime struct {
	Type brew.AlarmType
	At   time.Time
}

func typeTimes(alarms []brew.AlarmItem) []typeTime {
	out := make([]typeTime, len(alarms))
	for i, a := range alarms {
		out[i] = typeTime{a.AlarmType, a.ScheduledTime}
	}
	return out
}
