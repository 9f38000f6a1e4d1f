package export

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/baseera/baseera-go/internal/conf"
	"github.com/baseera/baseera-go/internal/store"
)

// Command creates the export command, which writes the record collection
// as CSV to stdout or a file.
func Command(settings *conf.Settings) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export analysis records as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(settings, outputPath)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write CSV to this file instead of stdout")
	return cmd
}

func runExport(settings *conf.Settings, outputPath string) error {
	st, err := store.New(settings, nil)
	if err != nil {
		return err
	}
	defer st.Close()

	records := st.LoadAll()
	if len(records) == 0 {
		return fmt.Errorf("no records to export")
	}

	out := os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	if err := store.ExportCSV(out, records); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	if outputPath != "" {
		fmt.Fprintf(os.Stderr, "exported %d records to %s\n", len(records), outputPath)
	}
	return nil
}
