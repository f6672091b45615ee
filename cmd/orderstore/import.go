package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import TABLE FILE.csv",
	Short: "Insert the rows of a CSV file into a table in one transaction",
	Long: `The first line of the CSV file must name every column of the table.
Either all rows are inserted or none are.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer f.Close()

		n, err := storage.ImportCSV(contextOrBackground(cmd.Context()), args[0], f)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d rows into %s\n", n, args[0])
		return nil
	},
}
