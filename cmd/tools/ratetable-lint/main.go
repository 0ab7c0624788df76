// cmd/tools/ratetable-lint/main.go
//
// ratetable-lint validates a rate-table file before it is deployed: JSON
// schema, band ordering, and taxonomy integrity. With -business/-coverage/
// -limit/-jurisdiction it also runs a dry-run rating so the expected premium
// can be reviewed alongside a table change.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"quote-engine/internal/models"
	"quote-engine/internal/rating"
)

func main() {
	path := flag.String("path", "configs/ratetables/standard.json", "Path to rate table file")
	business := flag.String("business", "", "Business type for a dry-run rating")
	coverage := flag.String("coverage", "general_liability", "Coverage type for a dry-run rating")
	limit := flag.Int64("limit", 0, "Coverage limit for a dry-run rating")
	jurisdiction := flag.String("jurisdiction", "", "Jurisdiction for a dry-run rating")
	flag.Parse()

	tables, err := rating.LoadTables(*path)
	if err != nil {
		fmt.Printf("Error: %s is invalid: %v\n", *path, err)
		os.Exit(1)
	}
	fmt.Printf("OK: %s (version %s, %d business types, %d jurisdictions, %d limit bands)\n",
		*path, tables.Version, len(tables.BusinessTypes), len(tables.Jurisdictions), len(tables.LimitBands))

	if *business == "" {
		return
	}
	if *limit <= 0 || *jurisdiction == "" {
		fmt.Println("Error: -limit and -jurisdiction are required for a dry run.")
		os.Exit(1)
	}

	req := &models.CoverageRequest{
		BusinessType: *business,
		CoverageType: models.CoverageType(*coverage),
		Limit:        *limit,
		Jurisdiction: *jurisdiction,
	}

	factors, err := rating.Resolve(req, tables)
	if err != nil {
		fmt.Printf("Error: risk resolution failed: %v\n", err)
		os.Exit(1)
	}

	engine := rating.NewEngine(rating.DefaultTermDays)
	quote, err := engine.Rate(req, factors, tables)
	if err != nil {
		fmt.Printf("Error: rating failed: %v\n", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(quote, "", "  ")
	fmt.Println(string(out))
}
