package cmd

import (
	"github.com/spf13/cobra"

	"github.com/scholarly-tools/doideposit/internal/deposit/domain"
	"github.com/scholarly-tools/doideposit/internal/presentation"
)

var (
	listStatuses []string
	listKind     string
	listLimit    int
	listJSON     bool
	listHistory  bool
)

var objectsListCmd = &cobra.Command{
	Use:   "objects:list",
	Short: "List objects and their deposit status",
	Long: `List the objects known to doideposit with their deposit status.

Examples:
  # Everything, as a table
  doideposit objects:list

  # Only failed deposits of one journal
  doideposit objects:list --context journal-a --status failed

  # JSON including the deposit history of each object
  doideposit objects:list --json --history | jq '.[].batches'`,
	Args: cobra.NoArgs,
	RunE: runObjectsList,
}

func init() {
	objectsListCmd.Flags().StringArrayVarP(&listStatuses, "status", "s", nil,
		"filter by status (notDeposited, failed, registered, markedRegistered; repeatable)")
	objectsListCmd.Flags().StringVarP(&listKind, "kind", "k", "", "filter by kind (article or issue)")
	objectsListCmd.Flags().IntVar(&listLimit, "limit", 0, "maximum number of objects (0 for all)")
	objectsListCmd.Flags().BoolVar(&listJSON, "json", false, "print JSON instead of a table")
	objectsListCmd.Flags().BoolVar(&listHistory, "history", false, "include the deposit history and registered DOI (JSON only)")
	rootCmd.AddCommand(objectsListCmd)
}

func runObjectsList(cmd *cobra.Command, _ []string) error {
	filter := domain.ListFilter{ContextID: contextID, Limit: listLimit}
	for _, name := range listStatuses {
		s, err := domain.ParseStatus(name)
		if err != nil {
			return err
		}
		filter.Statuses = append(filter.Statuses, s)
	}
	if listKind != "" {
		kind, err := domain.ParseObjectKind(listKind)
		if err != nil {
			return err
		}
		filter.Kind = kind
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	objects, err := a.store.List(cmd.Context(), filter)
	if err != nil {
		return err
	}

	formatter := presentation.NewFormatter(cmd.OutOrStdout())
	if !listJSON {
		return formatter.FormatObjectsTable(presentation.FromDomainObjects(objects, a.catalog))
	}

	dtos := make([]presentation.ObjectDTO, 0, len(objects))
	for _, obj := range objects {
		var batches []domain.Batch
		if listHistory {
			batches, err = a.store.Batches(cmd.Context(), obj.ID())
			if err != nil {
				return err
			}
		}
		dto := presentation.FromDomainObject(obj, a.catalog, batches)
		if listHistory {
			if dto.RegisteredDOI, err = a.store.RegisteredDOI(cmd.Context(), obj.ID()); err != nil {
				return err
			}
		}
		dtos = append(dtos, dto)
	}
	return formatter.FormatObjects(dtos)
}
