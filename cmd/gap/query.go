package main

import (
	"github.com/matsen/gap/internal/storage"
	"github.com/spf13/cobra"
)

var (
	queryVenues     []string
	queryCountries  []string
	queryContinents []string
	queryTypes      []string
	queryAreas      []string
	queryPosition   string
	queryFrom       int
	queryTo         int
)

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringArrayVar(&queryVenues, "venue", nil, "Venue name (repeatable)")
	queryCmd.Flags().StringArrayVar(&queryCountries, "country", nil, "Country display name (repeatable)")
	queryCmd.Flags().StringArrayVar(&queryContinents, "continent", nil, "Continent (repeatable)")
	queryCmd.Flags().StringArrayVar(&queryTypes, "type", nil, "Publication type, e.g. Article (repeatable)")
	queryCmd.Flags().StringArrayVar(&queryAreas, "area", nil, "Research area (repeatable)")
	queryCmd.Flags().StringVar(&queryPosition, "position", storage.PositionAny, "Author position: any, first, middle or last")
	queryCmd.Flags().IntVar(&queryFrom, "from", 0, "First year (inclusive)")
	queryCmd.Flags().IntVar(&queryTo, "to", 0, "Last year (inclusive)")
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Count publications per year split by author gender",
	Long: `Count the publications of each year whose authorships match the filters,
split by the gender of the matching authors.

Examples:
  gap query --continent Europe --continent Asia --position first
  gap query --area "Software Engineering" --from 2000 --to 2020 --human`,
	Args: cobra.NoArgs,
	RunE: runQuery,
}

func runQuery(cmd *cobra.Command, args []string) error {
	switch queryPosition {
	case storage.PositionAny, storage.PositionFirst, storage.PositionMiddle, storage.PositionLast:
	default:
		exitWithError(ExitError, "invalid position %q: must be any, first, middle or last", queryPosition)
	}
	if queryFrom != 0 && queryTo != 0 && queryFrom > queryTo {
		exitWithError(ExitError, "--from %d is after --to %d", queryFrom, queryTo)
	}

	cfg := mustLoadConfig()
	db := mustExistingDatabase(cfg)
	defer db.Close()

	counts, err := db.GenderCountsByYear(storage.FactFilter{
		Venues:           queryVenues,
		Countries:        queryCountries,
		Continents:       queryContinents,
		PublicationTypes: queryTypes,
		ResearchAreas:    queryAreas,
		Position:         queryPosition,
		YearFrom:         queryFrom,
		YearTo:           queryTo,
	})
	if err != nil {
		exitWithError(ExitError, "querying facts: %v", err)
	}

	if humanOutput {
		outputHuman("%-6s %8s %8s %8s %8s %8s\n", "Year", "Total", "Woman", "Man", "Neutral", "Unknown")
		for _, c := range counts {
			outputHuman("%-6d %8d %8d %8d %8d %8d\n", c.Year, c.Total, c.Woman, c.Man, c.Neutral, c.Unknown)
		}
	} else {
		outputJSON(counts)
	}
	return nil
}
