package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/brewlog/internal/brew"
)

const recipeColumns = `id, name, description, category, number_of_stages, filtering_days, created_at, updated_at`

// CreateRecipe inserts a recipe and its stages in one transaction and
// returns them with their assigned ids.
func (s *Store) CreateRecipe(ctx context.Context, r brew.Recipe, stages []brew.RecipeStage) (brew.Recipe, []brew.RecipeStage, error) {
	now := s.stamp()
	r.CreatedAt, r.UpdatedAt = now, now
	if r.Category == "" {
		r.Category = brew.DefaultCategory
	}
	if r.NumberOfStages == 0 {
		r.NumberOfStages = len(stages)
	}

	out := make([]brew.RecipeStage, len(stages))
	copy(out, stages)

	err := s.withTx(ctx, "create recipe", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO recipes (name, description, category, number_of_stages, filtering_days, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, r.Name, r.Description, r.Category, r.NumberOfStages, r.FilteringDays, toMillis(now), toMillis(now))
		if err != nil {
			return brew.StoreUnavailable("insert recipe", err)
		}
		if r.ID, err = res.LastInsertId(); err != nil {
			return brew.StoreUnavailable("insert recipe", err)
		}

		for i := range out {
			out[i].RecipeID = r.ID
			res, err := tx.ExecContext(ctx, `
				INSERT INTO recipe_stages
				(recipe_id, stage_number, rice_amount_kg, water_amount_liters, nuruk_amount_grams, days_from_start, instructions)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, r.ID, out[i].StageNumber, nullFloat(out[i].RiceAmountKg), out[i].WaterAmountLiters,
				out[i].NurukAmountGrams, nullInt(out[i].DaysFromStart), out[i].Instructions)
			if err != nil {
				return brew.StoreUnavailable(fmt.Sprintf("insert stage %d", out[i].StageNumber), err)
			}
			if out[i].ID, err = res.LastInsertId(); err != nil {
				return brew.StoreUnavailable("insert stage", err)
			}
		}
		return nil
	})
	if err != nil {
		return brew.Recipe{}, nil, err
	}
	return r, out, nil
}

// GetRecipe returns the recipe with the given id.
func (s *Store) GetRecipe(ctx context.Context, id int64) (brew.Recipe, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recipeColumns+` FROM recipes WHERE id = ?`, id)
	r, err := scanRecipe(row)
	if err != nil {
		return brew.Recipe{}, wrap(fmt.Sprintf("get recipe %d", id), err)
	}
	return r, nil
}

// ListRecipes returns every recipe ordered by name.
func (s *Store) ListRecipes(ctx context.Context) ([]brew.Recipe, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+recipeColumns+` FROM recipes ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, wrap("list recipes", err)
	}
	defer rows.Close()

	recipes := []brew.Recipe{}
	for rows.Next() {
		r, err := scanRecipe(rows)
		if err != nil {
			return nil, wrap("scan recipe", err)
		}
		recipes = append(recipes, r)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate recipes", err)
	}
	return recipes, nil
}

// RecipeStages returns the stages of a recipe ordered by stage number.
func (s *Store) RecipeStages(ctx context.Context, recipeID int64) ([]brew.RecipeStage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, recipe_id, stage_number, rice_amount_kg, water_amount_liters, nuruk_amount_grams, days_from_start, instructions
		FROM recipe_stages
		WHERE recipe_id = ?
		ORDER BY stage_number ASC
	`, recipeID)
	if err != nil {
		return nil, wrap("list stages", err)
	}
	defer rows.Close()

	stages := []brew.RecipeStage{}
	for rows.Next() {
		var (
			st   brew.RecipeStage
			rice sql.NullFloat64
			days sql.NullInt64
		)
		if err := rows.Scan(&st.ID, &st.RecipeID, &st.StageNumber, &rice, &st.WaterAmountLiters,
			&st.NurukAmountGrams, &days, &st.Instructions); err != nil {
			return nil, wrap("scan stage", err)
		}
		if rice.Valid {
			st.RiceAmountKg = brew.Kg(rice.Float64)
		}
		if days.Valid {
			st.DaysFromStart = brew.Days(int(days.Int64))
		}
		stages = append(stages, st)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate stages", err)
	}
	return stages, nil
}

func scanRecipe(row rowScanner) (brew.Recipe, error) {
	var (
		r                  brew.Recipe
		created, updatedAt int64
	)
	if err := row.Scan(&r.ID, &r.Name, &r.Description, &r.Category, &r.NumberOfStages,
		&r.FilteringDays, &created, &updatedAt); err != nil {
		return brew.Recipe{}, err
	}
	r.CreatedAt = fromMillis(created)
	r.UpdatedAt = fromMillis(updatedAt)
	return r, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
