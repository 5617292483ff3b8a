package cmd

import (
	"fmt"

	"example.com/backstage/invoicing/internal/dto"

	"github.com/spf13/cobra"
)

var allocateDate string

var allocateCmd = &cobra.Command{
	Use:   "allocate <document-type>",
	Short: "Allocate the next number for a document type",
	Example: `  invoicing allocate invoice
  invoicing allocate quote --date 2026-03-31`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := dto.AllocateNumberRequest{DocumentType: args[0], Date: allocateDate}
		if err := req.Validate(); err != nil {
			return err
		}
		docType, date, err := req.ToAllocation()
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

		number, err := a.numbers.AllocateNumber(cmd.Context(), docType, date)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), number)
		return nil
	},
}

func init() {
	allocateCmd.Flags().StringVar(&allocateDate, "date", "", "reference date (YYYY-MM-DD), defaults to today")
	rootCmd.AddCommand(allocateCmd)
}
