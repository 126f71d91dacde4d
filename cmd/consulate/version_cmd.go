package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"pkt.systems/consulate/internal/version"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the consulate version and build details",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Get()
			return render(cmd, info, func(w io.Writer) error {
				return writeVersion(w, info)
			})
		},
	}
}

func writeVersion(w io.Writer, info version.Info) error {
	if _, err := fmt.Fprintf(w, "%s %s\n", info.Module, info.Version); err != nil {
		return err
	}
	if info.Revision != "" {
		dirty := ""
		if info.Modified {
			dirty = " (modified)"
		}
		if _, err := fmt.Fprintf(w, "revision %s%s\n", info.Revision, dirty); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%s %s\n", info.GoVersion, info.Platform)
	return err
}
