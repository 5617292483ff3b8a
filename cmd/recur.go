package cmd

import (
	"encoding/json"

	"example.com/backstage/invoicing/internal/dto"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var recurAsOf string

var recurCmd = &cobra.Command{
	Use:   "recur",
	Short: "Run one recurrence pass now and print its result",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := dto.RunRecurrenceRequest{AsOf: recurAsOf}
		asOf, err := req.ToAsOf()
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.close()

		result, err := a.recurrence.RunRecurrencePass(cmd.Context(), asOf)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(dto.NewPassResultResponse(result)); err != nil {
			return err
		}

		if len(result.Failures) > 0 {
			return errors.Errorf("%d template(s) failed", len(result.Failures))
		}
		return nil
	},
}

func init() {
	recurCmd.Flags().StringVar(&recurAsOf, "as-of", "", "reference instant (RFC 3339 or YYYY-MM-DD), defaults to now")
	rootCmd.AddCommand(recurCmd)
}
