package testutil

import (
	"time"

	"github.com/roach88/brewlog/internal/brew"
)

// Epoch is the batch start used across tests.
var Epoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// Samyangju returns a three-stage rice wine recipe with a 30 day filtering
// offset. Stage 2 lands on day 3, stage 3 on day 7.
func Samyangju() (brew.Recipe, []brew.RecipeStage) {
	recipe := brew.Recipe{
		Name:           "Samyangju",
		Description:    "Triple-brewed rice wine",
		Category:       brew.DefaultCategory,
		NumberOfStages: 3,
		FilteringDays:  30,
	}
	stages := []brew.RecipeStage{
		{StageNumber: 1, RiceAmountKg: brew.Kg(1), WaterAmountLiters: 2, NurukAmountGrams: 400, Instructions: "Make the starter porridge"},
		{StageNumber: 2, DaysFromStart: brew.Days(3), RiceAmountKg: brew.Kg(3), WaterAmountLiters: 1.5, NurukAmountGrams: 0, Instructions: "Add steamed rice"},
		{StageNumber: 3, DaysFromStart: brew.Days(7), RiceAmountKg: brew.Kg(4.5), WaterAmountLiters: 0.5, NurukAmountGrams: 0, Instructions: "Final addition"},
	}
	return recipe, stages
}

// Ihwaju returns a two-stage recipe: stage 2 on day 5, filtering on day 14.
func Ihwaju() (brew.Recipe, []brew.RecipeStage) {
	recipe := brew.Recipe{
		Name:           "Ihwaju",
		Category:       brew.DefaultCategory,
		NumberOfStages: 2,
		FilteringDays:  14,
	}
	stages := []brew.RecipeStage{
		{StageNumber: 1, WaterAmountLiters: 1, NurukAmountGrams: 200},
		{StageNumber: 2, DaysFromStart: brew.Days(5), WaterAmountLiters: 2, NurukAmountGrams: 100},
	}
	return recipe, stages
}
