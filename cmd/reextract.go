package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/startup-programs-crawler/internal/crawler"
)

func newReextractCmd() *cobra.Command {
	var opts crawler.ReextractOptions
	cmd := &cobra.Command{
		Use:   "reextract",
		Short: "Re-runs text extraction over stored records",
		Long: `Sends the stored description and eligibility text of each record through the
LLM again and rewrites the derived fields. Without --force only records the
LLM has never processed are selected.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if opts.Limit < 0 {
				return fmt.Errorf("--limit must be >= 0")
			}
			res := appInstance.ReextractRunner().Run(cmd.Context(), opts)
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("re-extraction failed: %s", strings.Join(res.Errors, "; "))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum records to process (0 = all)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "include records the LLM already processed")
	return cmd
}
