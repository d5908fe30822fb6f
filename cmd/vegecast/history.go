package main

import (
	"fmt"

	"github.com/mares1402/vegecast/vegepipe"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <file.parquet>",
		Short: "Print a training loss history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := vegepipe.ReadLossHistory(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "epoch\tloss")
			for _, row := range rows {
				fmt.Fprintf(out, "%d\t%.6f\n", row.Epoch, row.Loss)
			}
			return nil
		},
	}
	return cmd
}
