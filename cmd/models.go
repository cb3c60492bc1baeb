package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage model descriptors",
	Long:  "Commands for seeding the model registry from a YAML file and listing registered models.",
}

// -- models seed --

var modelsSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed model descriptors from a YAML file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "query")
		if err != nil {
			return err
		}
		defer env.Close()

		path, _ := cmd.Flags().GetString("file")
		if path == "" {
			path = cfg.Models.SeedFile
		}

		n, err := env.Registry.SeedFromFile(ctx, path)
		if err != nil {
			return eris.Wrap(err, "models seed")
		}

		zap.L().Info("models seeded", zap.Int("count", n), zap.String("file", path))
		fmt.Fprintf(os.Stdout, "Seeded %d models from %s\n", n, path)
		return nil
	},
}

// -- models list --

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered models",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "query")
		if err != nil {
			return err
		}
		defer env.Close()

		models, err := env.Registry.List(ctx)
		if err != nil {
			return eris.Wrap(err, "models list")
		}

		if len(models) == 0 {
			fmt.Fprintln(os.Stderr, "No models registered.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "NAME\tDEPLOYMENT\tDEFAULT\tINPUTS")
		for _, m := range models {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%t\t%d\n",
				m.Name, m.DeploymentID, m.Default, len(m.Inputs))
		}
		_ = w.Flush()
		return nil
	},
}

func init() {
	modelsSeedCmd.Flags().String("file", "", "YAML seed file (default from config)")

	modelsCmd.AddCommand(modelsSeedCmd)
	modelsCmd.AddCommand(modelsListCmd)
	rootCmd.AddCommand(modelsCmd)
}
