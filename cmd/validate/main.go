// Command validate checks a set of pipeline outputs against the invariants
// every run must hold: dates sorted ascending, neighborhoods drawn from the
// region set, categories and labels from their closed sets, sunrise before
// sunset, choropleth ratings consistent with the incident tally, and report
// counts matching the collections.
//
// Usage:
//
//	go run ./cmd/validate -output data \
//	  -regions data_sources/cambridgegis/Boundary/CDD_Neighborhoods/BOUNDARY_CDDNeighborhoods.geojson
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/HarvardViz/data-processing/internal/adapter/blobstore"
	"github.com/HarvardViz/data-processing/internal/geo"
)

func main() {
	output := flag.String("output", "data", "output directory or bucket URL written by the json sink")
	regions := flag.String("regions", "", "optional neighborhood GeoJSON to check region ids against")
	idPath := flag.String("region-property", geo.DefaultIDPath, "gjson path of the region id")
	flag.Parse()

	if code := run(context.Background(), *output, *regions, *idPath); code != 0 {
		os.Exit(code)
	}
}

func run(ctx context.Context, output, regionsPath, idPath string) int {
	fmt.Println("=== Cambridge Output Validation ===")
	fmt.Println()

	bucket, err := blobstore.OpenBucket(ctx, output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	defer bucket.Close()

	out, err := loadOutputs(ctx, bucket)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	var regionIDs []string
	if regionsPath != "" {
		data, err := os.ReadFile(regionsPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: read regions: %v\n", err)
			return 1
		}
		regions, err := geo.LoadRegions(data, idPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load regions: %v\n", err)
			return 1
		}
		regionIDs = geo.IDs(regions)
	}

	phases := validate(out, regionIDs)

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d incidents, %d citations, %d weather days, %d neighborhoods\n",
		len(out.incidents), len(out.citations), len(out.weather), len(out.neighborhoods))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}
