package process

import (
	"github.com/spf13/cobra"

	"github.com/oceansense/edna-go/internal/analysis"
	"github.com/oceansense/edna-go/internal/conf"
)

// Command creates the process command for running one sample file
// through the pipeline.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process [sample file]",
		Short: "Process a single sample file",
		Long:  "Run one genomic sample archive or FASTA file through the detection pipeline and wait for the result.",
		Args:  cobra.ExactArgs(1), // the command expects exactly one argument
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.ProcessFile(settings, args[0])
		},
	}

	return cmd
}
