package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/brewlog/internal/recipe"
)

// NewRecipeCommand creates the recipe command group.
func NewRecipeCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recipe",
		Short: "Import and list recipes",
	}
	cmd.AddCommand(newRecipeImportCommand(opts))
	cmd.AddCommand(newRecipeListCommand(opts))
	return cmd
}

func newRecipeImportCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.cue>",
		Short: "Import a recipe from a CUE file",
		Long: `Import a recipe from a CUE file.

The file declares one recipe:

  recipe: {
    name:           "Samyangju"
    filtering_days: 30
    stages: [
      {number: 1, water_liters: 2.0, nuruk_grams: 400, rice_kg: 1.0},
      {number: 2, days_from_start: 3, water_liters: 1.5, nuruk_grams: 0},
    ]
  }

Example:
  brewlog recipe import ./recipes/samyangju.cue`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(opts, cmd)
			r, stages, err := recipe.LoadFile(args[0])
			if err != nil {
				return err
			}
			f.VerboseLog("loaded %s: %d stages", args[0], len(stages))

			return withApp(opts, cmd.OutOrStdout(), cmd.ErrOrStderr(), func(a *app) error {
				r, stages, err := a.store.CreateRecipe(cmd.Context(), r, stages)
				if err != nil {
					return err
				}
				a.log.Info("recipe imported", "recipe_id", r.ID, "name", r.Name)
				return f.Success(recipeView{Recipe: r, Stages: stages})
			})
		},
	}
}

func newRecipeListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recipes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, cmd.OutOrStdout(), cmd.ErrOrStderr(), func(a *app) error {
				recipes, err := a.store.ListRecipes(cmd.Context())
				if err != nil {
					return err
				}
				return formatter(opts, cmd).Success(recipeList(recipes))
			})
		},
	}
}
