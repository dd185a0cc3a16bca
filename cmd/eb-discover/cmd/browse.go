package cmd

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/wishbone-tools/etherbone-go/pkg/discovery"
)

func newBrowseCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Show Etherbone devices advertised over mDNS with their TXT records",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(c.Context(), opts.browseTimeout(cfg))
			defer cancel()

			browser := discovery.NewMDNSBrowser(discovery.BrowserConfig{
				Interface: opts.mdnsInterface(cfg),
				Logger:    opts.logger(),
			})
			services, err := discovery.Collect(ctx, browser)
			if err != nil {
				return err
			}
			return writeServices(c.OutOrStdout(), opts.output, services)
		},
	}
}

// serviceRow is the printed form of a discovered service.
type serviceRow struct {
	Instance string   `json:"instance" yaml:"instance"`
	Locator  string   `json:"locator" yaml:"locator"`
	Host     string   `json:"host" yaml:"host"`
	Addrs    []string `json:"addrs" yaml:"addrs"`
	Name     string   `json:"name,omitempty" yaml:"name,omitempty"`
	Widths   string   `json:"widths" yaml:"widths"`
	Endian   string   `json:"endian,omitempty" yaml:"endian,omitempty"`
	SDB      string   `json:"sdb,omitempty" yaml:"sdb,omitempty"`
}

func toRows(services []*discovery.Service) []serviceRow {
	rows := make([]serviceRow, 0, len(services))
	for _, s := range services {
		r := serviceRow{
			Instance: s.Instance,
			Locator:  s.Locator(),
			Host:     s.Host,
			Addrs:    s.Addrs,
			Name:     s.Info.Name,
			Widths:   fmt.Sprintf("0x%02x", s.Info.Widths),
			Endian:   s.Info.Endian,
		}
		if s.Info.HasSDB {
			r.SDB = fmt.Sprintf("0x%x", s.Info.SDBRoot)
		}
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Instance < rows[j].Instance })
	return rows
}

func writeServices(w io.Writer, format string, services []*discovery.Service) error {
	rows := toRows(services)
	if format != "table" {
		return writeStructured(w, format, rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(w, dimFmt("no devices found"))
		return nil
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "INSTANCE\tLOCATOR\tWIDTHS\tENDIAN\tSDB")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Instance, r.Locator, r.Widths, r.Endian, r.SDB)
	}
	return tw.Flush()
}
