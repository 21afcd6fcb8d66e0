package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scholarly-tools/doideposit/internal/deposit/domain"
	"github.com/scholarly-tools/doideposit/internal/log"
	"github.com/scholarly-tools/doideposit/internal/notify"
)

var (
	exportKind   string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export [--kind article|issue] [--output file] <ids...> [outputFile.xml]",
	Short: "Export objects as CrossRef XML without depositing",
	Long: `Export writes one CrossRef deposit document for the given objects. The document
goes to the file named by --output, or to the last argument when that ends in .xml,
otherwise to stdout. With --output every argument is an object id.

Examples:
  doideposit export 12 13 14 articles.xml
  doideposit export -o deposit.out 12 13 14
  doideposit export --kind issue 3 > issue.xml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportKind, "kind", "k", string(domain.KindArticle), "object kind (article or issue)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write the document to this file")
	rootCmd.AddCommand(exportCmd)
}

// splitOutputFile separates the output file from the object ids. An explicit output
// wins; otherwise a trailing .xml argument names the file.
func splitOutputFile(args []string, output string) ([]string, string) {
	if output != "" {
		return args, output
	}
	last := args[len(args)-1]
	if strings.HasSuffix(strings.ToLower(last), ".xml") {
		return args[:len(args)-1], last
	}
	return args, ""
}

func runExport(cmd *cobra.Command, args []string) error {
	kind, err := domain.ParseObjectKind(exportKind)
	if err != nil {
		return err
	}
	ids, outputFile := splitOutputFile(args, exportOutput)
	if len(ids) == 0 {
		_ = cmd.Usage()
		return errors.New("no objects given")
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

	var w io.Writer = cmd.OutOrStdout()
	var f *os.File
	if outputFile != "" {
		//nolint:gosec // G304: output path is supplied by the user on the command line
		f, err = os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		w = f
	}

	err = a.orchestrator.Export(cmd.Context(), req, w)
	if f != nil {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			_ = os.Remove(outputFile)
		}
	}
	if err == nil {
		return nil
	}

	var notFound *domain.ObjectNotFoundError
	if errors.As(err, &notFound) {
		console := notify.NewConsole(cmd.OutOrStdout(), a.catalog)
		_ = console.Notify(cmd.Context(), "", notify.Notification{
			Key:      notify.KeyObjectNotFound,
			Param:    notFound.ID,
			Severity: notify.SeverityError,
			Entry:    true,
		})
		_ = cmd.Usage()
		return errReported
	}
	log.ErrorErr(log.CatExport, "Export failed", err, "objects", len(ids))
	return err
}
