package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/oceansense/edna-go/cmd/process"
	"github.com/oceansense/edna-go/cmd/serve"
	"github.com/oceansense/edna-go/cmd/species"
	"github.com/oceansense/edna-go/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "edna-go",
		Short: "eDNA biodiversity analysis pipeline",
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
	}

	subcommands := []*cobra.Command{
		serve.Command(settings),
		process.Command(settings),
		species.Command(settings),
	}
	rootCmd.AddCommand(subcommands...)

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().Float64VarP(&settings.Matcher.ConfidenceFloor, "threshold", "t", viper.GetFloat64("matcher.confidencefloor"), "Confidence threshold for accepted matches, value between 0.0 and 1.0")
	rootCmd.PersistentFlags().IntVar(&settings.Pipeline.Workers, "workers", viper.GetInt("pipeline.workers"), "Number of samples processed concurrently")
	rootCmd.PersistentFlags().StringVar(&settings.Storage.UploadPath, "uploadpath", viper.GetString("storage.uploadpath"), "Directory for uploaded sample files")
	rootCmd.PersistentFlags().StringVar(&settings.Storage.ProcessedPath, "processedpath", viper.GetString("storage.processedpath"), "Directory for converted FASTA output")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
