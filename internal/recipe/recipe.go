// Package recipe loads recipe definitions from CUE files.
//
// A file declares a single top-level recipe struct:
//
//	recipe: {
//		name:           "Samyangju"
//		filtering_days: 30
//		stages: [
//			{number: 1, water_liters: 2.0, nuruk_grams: 400, rice_kg: 1.0},
//			{number: 2, days_from_start: 3, water_liters: 1.5, nuruk_grams: 0},
//		]
//	}
//
// The file is unified with an embedded schema and must be fully concrete.
// Stage ordering is checked with the same rules the planner applies, so a
// loaded recipe always plans.
package recipe

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/brewlog/internal/brew"
	"github.com/roach88/brewlog/internal/planner"
)

//go:embed schema.cue
var schemaSource string

// LoadError is a recipe file problem, positioned in the source when CUE
// reports a location.
type LoadError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadFile reads and parses the recipe file at path.
func LoadFile(path string) (brew.Recipe, []brew.RecipeStage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return brew.Recipe{}, nil, fmt.Errorf("read recipe: %w", err)
	}
	return Parse(path, data)
}

// Parse converts CUE source into a recipe and its stages, sorted by stage
// number. filename is used only for error positions.
//
// Schema violations come back as *LoadError; stage ordering problems as a
// MALFORMED_SCHEDULE brew.Error.
func Parse(filename string, data []byte) (brew.Recipe, []brew.RecipeStage, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return brew.Recipe{}, nil, fmt.Errorf("compile recipe schema: %w", err)
	}

	file := ctx.CompileBytes(data, cue.Filename(filename))
	if err := file.Err(); err != nil {
		return brew.Recipe{}, nil, formatCUEError(err)
	}

	value := schema.Unify(file)
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return brew.Recipe{}, nil, formatCUEError(err)
	}

	recipe, stages, err := decode(value.LookupPath(cue.ParsePath("recipe")))
	if err != nil {
		return brew.Recipe{}, nil, err
	}

	ordered, err := planner.ValidateStages(stages)
	if err != nil {
		return brew.Recipe{}, nil, fmt.Errorf("%s: %w", filename, err)
	}
	recipe.NumberOfStages = len(ordered)

	return recipe, ordered, nil
}

func decode(v cue.Value) (brew.Recipe, []brew.RecipeStage, error) {
	f, err := fields(v)
	if err != nil {
		return brew.Recipe{}, nil, err
	}

	var r brew.Recipe
	if r.Name, err = f.text("name"); err != nil {
		return brew.Recipe{}, nil, err
	}
	r.Name = norm.NFC.String(strings.TrimSpace(r.Name))
	if r.Description, err = f.text("description"); err != nil {
		return brew.Recipe{}, nil, err
	}
	if r.Category, err = f.text("category"); err != nil {
		return brew.Recipe{}, nil, err
	}
	if r.Category == "" {
		r.Category = brew.DefaultCategory
	}
	days, err := f.integer("filtering_days")
	if err != nil {
		return brew.Recipe{}, nil, err
	}
	r.FilteringDays = int(days)

	list, ok := f["stages"]
	if !ok {
		return r, nil, nil
	}
	iter, err := list.List()
	if err != nil {
		return brew.Recipe{}, nil, formatCUEError(err)
	}

	var stages []brew.RecipeStage
	for iter.Next() {
		stage, err := decodeStage(iter.Value())
		if err != nil {
			return brew.Recipe{}, nil, err
		}
		stages = append(stages, stage)
	}
	return r, stages, nil
}

func decodeStage(v cue.Value) (brew.RecipeStage, error) {
	f, err := fields(v)
	if err != nil {
		return brew.RecipeStage{}, err
	}

	var s brew.RecipeStage
	n, err := f.integer("number")
	if err != nil {
		return brew.RecipeStage{}, err
	}
	s.StageNumber = int(n)

	if s.WaterAmountLiters, err = f.number("water_liters"); err != nil {
		return brew.RecipeStage{}, err
	}
	if s.NurukAmountGrams, err = f.number("nuruk_grams"); err != nil {
		return brew.RecipeStage{}, err
	}
	if s.Instructions, err = f.text("instructions"); err != nil {
		return brew.RecipeStage{}, err
	}

	if _, ok := f["days_from_start"]; ok {
		d, err := f.integer("days_from_start")
		if err != nil {
			return brew.RecipeStage{}, err
		}
		s.DaysFromStart = brew.Days(int(d))
	}
	if _, ok := f["rice_kg"]; ok {
		kg, err := f.number("rice_kg")
		if err != nil {
			return brew.RecipeStage{}, err
		}
		s.RiceAmountKg = brew.Kg(kg)
	}

	return s, nil
}

// fieldSet holds the regular fields of a struct. Optional fields the file
// leaves unset are absent.
type fieldSet map[string]cue.Value

func fields(v cue.Value) (fieldSet, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	out := fieldSet{}
	for iter.Next() {
		out[iter.Label()] = iter.Value()
	}
	return out, nil
}

// text returns "" for an absent field.
func (f fieldSet) text(name string) (string, error) {
	v, ok := f[name]
	if !ok {
		return "", nil
	}
	s, err := v.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func (f fieldSet) integer(name string) (int64, error) {
	v, ok := f[name]
	if !ok {
		return 0, &LoadError{Field: name, Message: name + " is required"}
	}
	n, err := v.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return n, nil
}

func (f fieldSet) number(name string) (float64, error) {
	v, ok := f[name]
	if !ok {
		return 0, &LoadError{Field: name, Message: name + " is required"}
	}
	n, err := v.Float64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return n, nil
}

// formatCUEError keeps the first CUE error and its source position.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Field: "cue", Message: err.Error()}
	}

	first := errs[0]
	field := strings.Join(errors.Path(first), ".")
	if field == "" {
		field = "cue"
	}
	le := &LoadError{Field: field, Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}
