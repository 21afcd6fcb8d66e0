package cmd

import (
	"github.com/spf13/cobra"

	"github.com/scholarly-tools/doideposit/internal/deposit/domain"
	"github.com/scholarly-tools/doideposit/internal/deposit/orchestrator"
	"github.com/scholarly-tools/doideposit/internal/notify"
	"github.com/scholarly-tools/doideposit/internal/presentation"
)

var (
	registerKind string
	markKind     string
	reportJSON   bool
)

var registerCmd = &cobra.Command{
	Use:   "register [--kind article|issue] <ids...>",
	Short: "Deposit objects with CrossRef and record their status",
	Long: `Register exports, deposits and records the status of each object in turn.

A single summary line is printed when the run has no structured errors. Otherwise
every error is printed on its own line followed by the usage text, and the command
exits non-zero.

Examples:
  doideposit register 12 13 14
  doideposit register --kind issue --context journal-a 3`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRegister,
}

var markRegisteredCmd = &cobra.Command{
	Use:   "mark:registered [--kind article|issue] <ids...>",
	Short: "Mark objects registered without contacting CrossRef",
	Long: `Mark objects as registered after their DOIs were deposited by other means.
The last batch id of each object is kept.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMarkRegistered,
}

func init() {
	registerCmd.Flags().StringVarP(&registerKind, "kind", "k", string(domain.KindArticle), "object kind (article or issue)")
	markRegisteredCmd.Flags().StringVarP(&markKind, "kind", "k", string(domain.KindArticle), "object kind (article or issue)")
	registerCmd.Flags().BoolVar(&reportJSON, "json", false, "print the run report as JSON")
	markRegisteredCmd.Flags().BoolVar(&reportJSON, "json", false, "print the run report as JSON")
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(markRegisteredCmd)
}

type runFunc func(a *app, cmd *cobra.Command, req orchestrator.Request) (*orchestrator.Report, error)

func runRegister(cmd *cobra.Command, args []string) error {
	return runReported(cmd, registerKind, args, func(a *app, cmd *cobra.Command, req orchestrator.Request) (*orchestrator.Report, error) {
		return a.orchestrator.Register(cmd.Context(), req)
	})
}

func runMarkRegistered(cmd *cobra.Command, args []string) error {
	return runReported(cmd, markKind, args, func(a *app, cmd *cobra.Command, req orchestrator.Request) (*orchestrator.Report, error) {
		return a.orchestrator.MarkRegistered(cmd.Context(), req)
	})
}

// runReported executes a run and prints its report to the console. Structured
// entries are followed by the usage text and fail the command.
func runReported(cmd *cobra.Command, kindName string, ids []string, run runFunc) error {
	kind, err := domain.ParseObjectKind(kindName)
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	req, err := a.request(kind, ids)
	if err != nil {
		return err
	}

	report, runErr := run(a, cmd, req)
	if reportJSON && report != nil {
		formatter := presentation.NewFormatter(cmd.OutOrStdout())
		if err := formatter.FormatJSON(presentation.FromReport(report, a.catalog)); err != nil {
			return err
		}
		if runErr != nil {
			return runErr
		}
		if report.HasEntries() {
			return errReported
		}
		return nil
	}

	console := notify.NewConsole(cmd.OutOrStdout(), a.catalog)
	if report != nil {
		if err := report.Deliver(cmd.Context(), "", console); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}
	if console.Entries() > 0 {
		_ = cmd.Usage()
		return errReported
	}
	return nil
}
