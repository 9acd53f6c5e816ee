package main

import (
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"

	"github.com/cooperativa/registro/internal/schema"
	"github.com/cooperativa/registro/internal/seed"
	"github.com/cooperativa/registro/internal/ui"
)

var seedCmd = &cobra.Command{
	Use:     "seed",
	GroupID: "data",
	Short:   "Replace the data with a generated sample dataset",
	Long: `Fill every table with a generated dataset of people, inventory and
activities with three weeks of sessions. The same --seed always produces
the same data.

Examples:
  registro seed                 # 20 students, 20 youths
  registro seed --size 200 --yes`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		size, _ := cmd.Flags().GetInt("size")
		seedValue, _ := cmd.Flags().GetInt64("seed")
		yes, _ := cmd.Flags().GetBool("yes")
		if size < 1 {
			return fmt.Errorf("--size must be at least 1")
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		existing := 0
		for _, t := range schema.Tables() {
			n, err := a.db.Count(cmd.Context(), t)
			if err != nil {
				return err
			}
			existing += n
		}
		if existing > 0 && !yes {
			ok, err := confirm(fmt.Sprintf("The database holds %s rows. Replace them with sample data?", ui.Count(existing)))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Seed cancelled")
				return nil
			}
		}

		snap := seed.Generate(rand.New(rand.NewSource(seedValue)), size)
		result, err := a.engine.Import(cmd.Context(), snap)
		printResult(cmd.OutOrStdout(), result)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Seeded %s rows\n", ui.RenderPass("✓"), ui.Count(result.Total()))
		return nil
	},
}

func init() {
	seedCmd.Flags().Int("size", 20, "Number of students and youths to generate")
	seedCmd.Flags().Int64("seed", 1, "Random seed")
	seedCmd.Flags().BoolP("yes", "y", false, "Do not ask before replacing existing data")

	rootCmd.AddCommand(seedCmd)
}
