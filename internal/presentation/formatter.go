package presentation

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Formatter handles output formatting
type Formatter struct {
	writer io.Writer
}

// NewFormatter creates a new formatter
func NewFormatter(writer io.Writer) *Formatter {
	return &Formatter{
		writer: writer,
	}
}

// FormatJSON writes any value as indented JSON
func (f *Formatter) FormatJSON(v any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// FormatObjects formats a list of objects as JSON
func (f *Formatter) FormatObjects(objects []ObjectDTO) error {
	return f.FormatJSON(objects)
}

// FormatObjectsTable renders objects as a bordered table
func (f *Formatter) FormatObjectsTable(objects []ObjectDTO) error {
	if len(objects) == 0 {
		_, err := fmt.Fprintln(f.writer, "No objects.")
		return err
	}

	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "CONTEXT", "KIND", "STATUS", "BATCH", "DOI", "TITLE").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})
	for _, o := range objects {
		t.Row(o.ID, o.ContextID, o.Kind, o.StatusLabel, o.BatchID, o.DOI, o.Title)
	}

	_, err := fmt.Fprintln(f.writer, t.String())
	return err
}

// FormatBatches renders an object's deposit history, newest first
func (f *Formatter) FormatBatches(batches []BatchDTO) error {
	if len(batches) == 0 {
		_, err := fmt.Fprintln(f.writer, "No deposits.")
		return err
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("BATCH", "SUBMITTED", "OUTCOME", "FAILURES", "WARNINGS", "HTTP")
	for _, b := range batches {
		t.Row(b.BatchID, b.SubmittedAt.Format("2006-01-02 15:04:05"), b.Outcome,
			strconv.Itoa(b.FailureCount), strconv.Itoa(b.WarningCount), strconv.Itoa(b.HTTPStatus))
	}
	_, err := fmt.Fprintln(f.writer, t.String())
	return err
}
