package cmd

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/scholarly-tools/doideposit/internal/deposit/domain"
	"github.com/scholarly-tools/doideposit/internal/log"
	"github.com/scholarly-tools/doideposit/internal/templates"
)

// objectIDPattern restricts imported ids to characters that are safe in file names.
var objectIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// importFile is the YAML document read by objects:import.
type importFile struct {
	Objects []importObject `yaml:"objects"`
}

type importObject struct {
	ID        string     `yaml:"id"`
	Context   string     `yaml:"context"`
	Kind      string     `yaml:"kind"`
	Title     string     `yaml:"title"`
	URL       string     `yaml:"url"`
	Volume    string     `yaml:"volume"`
	Number    string     `yaml:"number"`
	Published *time.Time `yaml:"published"`
}

var objectsImportCmd = &cobra.Command{
	Use:   "objects:import <file.yaml>",
	Short: "Import article and issue metadata",
	Long: `Import objects from a YAML file. Existing objects get their metadata
replaced and keep their deposit status.

Examples:
  doideposit objects:import --example > objects.yaml
  doideposit objects:import objects.yaml`,
	Args: func(cmd *cobra.Command, args []string) error {
		if importExample {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: runObjectsImport,
}

var importExample bool

func init() {
	objectsImportCmd.Flags().BoolVar(&importExample, "example", false, "print an example import file and exit")
	rootCmd.AddCommand(objectsImportCmd)
}

// parseImport decodes and validates an import document. Objects without a context
// get defaultContext.
func parseImport(data []byte, defaultContext string) ([]*domain.Object, error) {
	var doc importFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing import file: %w", err)
	}
	if len(doc.Objects) == 0 {
		return nil, errors.New("import file contains no objects")
	}

	seen := make(map[string]bool, len(doc.Objects))
	objects := make([]*domain.Object, 0, len(doc.Objects))
	for i, item := range doc.Objects {
		if item.ID == "" {
			return nil, fmt.Errorf("objects[%d]: id is required", i)
		}
		if !objectIDPattern.MatchString(item.ID) {
			return nil, fmt.Errorf("objects[%d]: id %q may only contain letters, digits, '-' and '_'", i, item.ID)
		}
		if seen[item.ID] {
			return nil, fmt.Errorf("objects[%d]: duplicate id %q", i, item.ID)
		}
		seen[item.ID] = true

		kind, err := domain.ParseObjectKind(item.Kind)
		if err != nil {
			return nil, fmt.Errorf("objects[%d]: %w", i, err)
		}
		ctxID := item.Context
		if ctxID == "" {
			ctxID = defaultContext
		}
		if ctxID == "" {
			return nil, fmt.Errorf("objects[%d]: context is required", i)
		}

		meta := domain.Metadata{
			Title:  item.Title,
			URL:    item.URL,
			Volume: item.Volume,
			Number: item.Number,
		}
		if item.Published != nil {
			published := item.Published.UTC()
			meta.PublishedAt = &published
		}
		objects = append(objects, domain.NewObject(item.ID, ctxID, kind, meta))
	}
	return objects, nil
}

func runObjectsImport(cmd *cobra.Command, args []string) error {
	if importExample {
		_, err := fmt.Fprint(cmd.OutOrStdout(), templates.ObjectsYAML())
		return err
	}

	//nolint:gosec // G304: import path is supplied by the user on the command line
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading import file: %w", err)
	}

	defaultContext, _ := cfg.ResolveContext(contextID)
	objects, err := parseImport(data, defaultContext)
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	var created, updated int
	for _, obj := range objects {
		existing, err := a.store.Get(cmd.Context(), obj.ID())
		var notFound *domain.ObjectNotFoundError
		switch {
		case errors.As(err, &notFound):
			created++
		case err != nil:
			return err
		default:
			if existing.Kind() != obj.Kind() || existing.ContextID() != obj.ContextID() {
				return fmt.Errorf("object %s already exists as %s in %s", obj.ID(), existing.Kind(), existing.ContextID())
			}
			existing.SetMetadata(obj.Metadata())
			obj = existing
			updated++
		}
		if err := a.store.Save(cmd.Context(), obj); err != nil {
			return err
		}
	}

	log.Info(log.CatDB, "Imported objects", "created", created, "updated", updated)
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Imported %d objects (%d new, %d updated).\n", len(objects), created, updated)
	return err
}
