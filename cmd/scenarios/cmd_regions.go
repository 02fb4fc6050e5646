package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"scenarios/internal/regions"
)

// regionsCmd lists the region catalog
var regionsCmd = &cobra.Command{
	Use:   "regions [selector...]",
	Short: "List the region catalog or expand selectors",
	Long: `Without arguments, prints every record of the bundled region
catalog. With arguments, expands the given selectors (all, 50states,
hhsregions) and literal codes and prints the matching records.`,
	RunE: runRegions,
}

func runRegions(cmd *cobra.Command, args []string) error {
	catalog, err := regions.Load()
	if err != nil {
		return fmt.Errorf("loading region catalog: %w", err)
	}

	var records []regions.Record
	if len(args) == 0 {
		records = catalog.Records()
	} else {
		for _, code := range catalog.ExpandSelectors(args) {
			rec, err := catalog.LookupByCode(code)
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tNAME\tKIND\tPOPULATION\tHHS")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			rec.Code, rec.DisplayName, rec.Kind, rec.Population, rec.HHSRegion)
	}
	return w.Flush()
}
