package species

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/oceansense/edna-go/internal/analysis"
	"github.com/oceansense/edna-go/internal/conf"
)

// Command creates the species command group.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "species",
		Short: "Manage the species catalog",
	}

	cmd.AddCommand(seedCommand(settings))
	return cmd
}

// seedCommand creates the species seed subcommand.
func seedCommand(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the species catalog from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.SeedSpecies(settings)
		},
	}

	cmd.Flags().StringVar(&settings.Species.SeedFile, "file", viper.GetString("species.seedfile"), "Path to the species seed file")
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		fmt.Printf("error binding flags: %v\n", err)
	}

	return cmd
}
