package brew

import "time"

// Day is the fixed length of one schedule day. Offsets are whole multiples
// of 24 hours from the batch start, not calendar days.
const Day = 24 * time.Hour

// DefaultCategory is the category assigned to recipes that do not name one.
const DefaultCategory = "Makgeolli"

// Recipe is a reusable fermentation schedule.
type Recipe struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Category       string    `json:"category"`
	NumberOfStages int       `json:"number_of_stages"`
	FilteringDays  int       `json:"filtering_days"` // days from batch start until filtering
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// RecipeStage is one step of a recipe. Stage 1 happens at batch creation;
// every later stage carries its offset in DaysFromStart.
type RecipeStage struct {
	ID                int64    `json:"id"`
	RecipeID          int64    `json:"recipe_id"`
	StageNumber       int      `json:"stage_number"`
	RiceAmountKg      *float64 `json:"rice_amount_kg,omitempty"`
	WaterAmountLiters float64  `json:"water_amount_liters"`
	NurukAmountGrams  float64  `json:"nuruk_amount_grams"`
	DaysFromStart     *int     `json:"days_from_start,omitempty"`
	Instructions      string   `json:"instructions"`
}

// DaysAfter returns the instant that lies days schedule days after start.
func DaysAfter(start time.Time, days int) time.Time {
	return start.Add(time.Duration(days) * Day)
}

// Days is a convenience for building optional day offsets.
func Days(n int) *int {
	return &n
}

// Kg is a convenience for building optional rice amounts.
func Kg(v float64) *float64 {
	return &v
}
