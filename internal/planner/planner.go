// Package planner derives the absolute alarm set for a new batch from its
// recipe's relative schedule.
//
// Plan is pure: it reads nothing and writes nothing. The caller persists
// and arms each returned alarm.
package planner

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/brewlog/internal/brew"
)

// Plan returns one NEXT_STAGE alarm for every stage after the first and one
// FILTER alarm, each placed relative to batchStart.
//
// Stage order in the input does not matter. The result is sorted by
// scheduled time, then type, so identical inputs yield identical slices.
//
// A stage list that is not contiguous from 1, a later stage without a day
// offset, non-increasing offsets, or filteringDays <= 0 fail with a
// MALFORMED_SCHEDULE error and no alarms.
func Plan(stages []brew.RecipeStage, filteringDays int, batchStart time.Time, batchID int64, batchName string) ([]brew.AlarmItem, error) {
	if filteringDays <= 0 {
		return nil, brew.MalformedSchedule("filtering days must be positive, got %d", filteringDays)
	}

	ordered, err := ValidateStages(stages)
	if err != nil {
		return nil, err
	}

	name := norm.NFC.String(strings.TrimSpace(batchName))

	alarms := make([]brew.AlarmItem, 0, len(ordered))
	for _, stage := range ordered {
		if stage.StageNumber == 1 {
			continue // stage 1 happens at batch creation
		}
		alarms = append(alarms, brew.AlarmItem{
			BatchID:       batchID,
			AlarmType:     brew.AlarmNextStage,
			Title:         StageTitle(stage.StageNumber, name),
			Description:   StageDescription(stage),
			ScheduledTime: brew.DaysAfter(batchStart, *stage.DaysFromStart),
			IsEnabled:     true,
		})
	}

	alarms = append(alarms, brew.AlarmItem{
		BatchID:       batchID,
		AlarmType:     brew.AlarmFilter,
		Title:         FilterTitle(name),
		Description:   FilterDescription,
		ScheduledTime: brew.DaysAfter(batchStart, filteringDays),
		IsEnabled:     true,
	})

	sort.SliceStable(alarms, func(i, j int) bool {
		if !alarms[i].ScheduledTime.Equal(alarms[j].ScheduledTime) {
			return alarms[i].ScheduledTime.Before(alarms[j].ScheduledTime)
		}
		return alarms[i].AlarmType < alarms[j].AlarmType
	})

	return alarms, nil
}

// ValidateStages checks stage ordering invariants and returns a copy of the
// stages sorted by stage number.
//
// Stage 1 is implicitly day 0; an explicit non-zero offset on it is
// rejected. Every later stage needs an offset strictly greater than the
// previous stage's.
func ValidateStages(stages []brew.RecipeStage) ([]brew.RecipeStage, error) {
	ordered := make([]brew.RecipeStage, len(stages))
	copy(ordered, stages)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].StageNumber < ordered[j].StageNumber
	})

	prevDays := 0
	for i, stage := range ordered {
		want := i + 1
		if stage.StageNumber != want {
			return nil, brew.MalformedSchedule("stage numbers must be contiguous from 1: expected stage %d, got %d", want, stage.StageNumber)
		}

		if stage.StageNumber == 1 {
			if stage.DaysFromStart != nil && *stage.DaysFromStart != 0 {
				return nil, brew.MalformedSchedule("stage 1 starts with the batch, got days_from_start %d", *stage.DaysFromStart)
			}
			continue
		}

		if stage.DaysFromStart == nil {
			return nil, brew.MalformedSchedule("stage %d has no days_from_start", stage.StageNumber)
		}
		days := *stage.DaysFromStart
		if days <= prevDays {
			return nil, brew.MalformedSchedule("stage %d days_from_start %d must be after day %d", stage.StageNumber, days, prevDays)
		}
		prevDays = days
	}

	return ordered, nil
}

// FilterDescription is the body text of every FILTER alarm.
const FilterDescription = "Time to filter the batch"

// StageTitle names the NEXT_STAGE alarm for stage n of a batch.
func StageTitle(n int, batchName string) string {
	return fmt.Sprintf("Stage %d - %s", n, batchName)
}

// FilterTitle names the FILTER alarm of a batch.
func FilterTitle(batchName string) string {
	return "Filter - " + batchName
}

// StageDescription summarizes the ingredients added at a stage.
func StageDescription(stage brew.RecipeStage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Stage %d ingredients: water %sL, nuruk %sg",
		stage.StageNumber,
		formatAmount(stage.WaterAmountLiters),
		formatAmount(stage.NurukAmountGrams),
	)
	if stage.RiceAmountKg != nil {
		fmt.Fprintf(&b, ", rice %skg", formatAmount(*stage.RiceAmountKg))
	}
	return b.String()
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
