package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/samirrijal/geoagg/internal/pkg/geospatial"
	"github.com/samirrijal/geoagg/internal/pkg/snapshot"
)

func newInspectCommand() *cobra.Command {
	var (
		output     string
		geographic bool
	)

	cmd := &cobra.Command{
		Use:   "inspect SNAPSHOT",
		Short: "Print the summary of a domain snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := snapshot.ReadFile(args[0])
			if err != nil {
				return err
			}
			s := d.Summarize()

			if output == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(s)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "id\t%s\n", s.ID)
			fmt.Fprintf(tw, "input features\t%d\n", s.InputCount)
			fmt.Fprintf(tw, "output features\t%d\n", s.FeatureCount)
			fmt.Fprintf(tw, "clusters\t%d\n", s.ClusterCount)
			fmt.Fprintf(tw, "groups\t%d\n", len(d.Groups))
			fmt.Fprintf(tw, "epsilon\t%g\n", s.Params.Epsilon)
			if s.BBox.Defined {
				fmt.Fprintf(tw, "bbox\t%g,%g,%g,%g\n", s.BBox.Min.X, s.BBox.Min.Y, s.BBox.Max.X, s.BBox.Max.Y)
				if geographic {
					w, h := geospatial.Extent(s.BBox)
					fmt.Fprintf(tw, "extent\t%.2f km x %.2f km\n", w/1000, h/1000)
				}
			} else {
				fmt.Fprintln(tw, "bbox\tundefined")
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format (text, json)")
	cmd.Flags().BoolVar(&geographic, "geographic", false, "coordinates are lon/lat degrees; report the extent in km")
	return cmd
}
