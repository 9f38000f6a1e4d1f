package analyze

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/baseera/baseera-go/internal/catalog"
	"github.com/baseera/baseera-go/internal/classifier"
	"github.com/baseera/baseera-go/internal/conf"
	"github.com/baseera/baseera-go/internal/store"
	"github.com/baseera/baseera-go/internal/wizard"
)

// Command creates the analyze command for one-shot classification of an
// image file without the web server.
func Command(settings *conf.Settings) *cobra.Command {
	var dishID string

	cmd := &cobra.Command{
		Use:   "analyze [image file]",
		Short: "Classify a plate photo and record the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(settings, dishID, args[0])
		},
	}

	cmd.Flags().StringVar(&dishID, "dish", "", "Dish id from the catalog (required)")
	_ = cmd.MarkFlagRequired("dish")
	return cmd
}

func runAnalyze(settings *conf.Settings, dishID, imagePath string) error {
	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	st, err := store.New(settings, nil)
	if err != nil {
		return err
	}
	defer st.Close()

	cls := classifier.New(settings, nil)
	defer cls.Delete()

	cat := catalog.New(settings)
	if !cat.Contains(dishID) {
		return fmt.Errorf("unknown dish id %q, valid ids: %s", dishID, dishIDs(cat))
	}

	wiz := wizard.New(st, cls, cat, nil)
	sess := wiz.NewSession()
	wiz.SelectDish(sess, dishID)

	record, ok := wiz.Analyze(sess, imageData)
	if !ok {
		return fmt.Errorf("analysis was rejected")
	}

	fmt.Printf("%s: %s (%.2f%%)\n", record.Dish, record.Result, record.DisplayConfidence())
	fmt.Printf("recorded as %s\n", record.ID)
	return nil
}

func dishIDs(cat *catalog.Catalog) string {
	ids := ""
	for i, d := range cat.Dishes() {
		if i > 0 {
			ids += ", "
		}
		ids += d.ID
	}
	return ids
}
