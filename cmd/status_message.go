package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusMessageCmd = &cobra.Command{
	Use:   "status:message <id>",
	Short: "Show the CrossRef message behind an object's status",
	Long: `Print the failure message stored for the object, or the submission result
CrossRef reports for the object's last batch.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		msg, err := a.messages.Lookup(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), msg)
		return err
	},
}

func init() {
	rootCmd.AddCommand(statusMessageCmd)
}
