package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/wishbone-tools/etherbone-go/pkg/bus"
)

var (
	kindFmt = color.New(color.FgCyan, color.Bold).SprintFunc()
	dimFmt  = color.New(color.Faint).SprintFunc()
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// writeStructured encodes v as json or yaml.
func writeStructured(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown output format: %s (must be table, json, or yaml)", format)
	}
}

// writeGroups prints locators grouped by kind.
func writeGroups(w io.Writer, format string, groups bus.Groups) error {
	if format != "table" {
		return writeStructured(w, format, groups)
	}
	for _, kind := range groups.Kinds() {
		fmt.Fprintf(w, "%s:\n", kindFmt(kind))
		if len(groups[kind]) == 0 {
			fmt.Fprintf(w, "  %s\n", dimFmt("(none)"))
			continue
		}
		for _, l := range groups[kind] {
			fmt.Fprintf(w, "  %s\n", l)
		}
	}
	return nil
}
