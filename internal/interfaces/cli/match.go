package cli

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/turtacn/ChemMap/internal/bootstrap"
	domain "github.com/turtacn/ChemMap/internal/domain/mapping"
)

func newMatchCmd() *cobra.Command {
	var minScore int

	cmd := &cobra.Command{
		Use:   "match [name...]",
		Short: "Match compound names against the reference vocabulary",
		Long: "Match one or more raw compound names and print one mapping record per name.\n" +
			"With no arguments, or a single \"-\", names are read from stdin one per line.",
		Example: `  chemmap match "MgCl2 6-hydrate" NaCl
  cut -f3 extract.tsv | chemmap match -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("min-score") {
				cliCtx.Config.Matching.MinScore = minScore
			}

			names := args
			if len(args) == 0 || (len(args) == 1 && args[0] == "-") {
				if names, err = readLines(cmd.InOrStdin()); err != nil {
					return err
				}
			}

			infra, err := cliCtx.Open(cmd.Context(), bootstrap.Options{Cache: true, LoadIndex: true})
			if err != nil {
				return err
			}
			defer infra.Close()

			records := make([]domain.MappingRecord, 0, len(names))
			for _, n := range names {
				rec, err := infra.Service.Match(cmd.Context(), n)
				if err != nil {
					return err
				}
				records = append(records, rec)
			}

			if cliCtx.OutputFormat == FormatJSON {
				return printJSON(cmd.OutOrStdout(), records)
			}
			renderRecords(cmd.OutOrStdout(), records)
			return nil
		},
	}

	cmd.Flags().IntVar(&minScore, "min-score", domain.DefaultMinScore, "fuzzy acceptance threshold (0-100)")
	return cmd
}

// readLines returns the non-empty lines of r.
func readLines(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			out = append(out, line)
		}
	}
	return out, sc.Err()
}

func renderRecords(w io.Writer, records []domain.MappingRecord) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Original", "Base", "Hydration", "Matched ID", "Label", "Method", "Score", "Tier"})
	table.SetAutoWrapText(false)
	for _, r := range records {
		table.Append([]string{
			truncateString(r.Original, 40),
			truncateString(r.BaseCompound, 30),
			r.Hydration.String(),
			r.MatchedID,
			truncateString(r.MatchedLabel, 40),
			string(r.Method),
			strconv.Itoa(r.Score),
			colorizeTier(r.Tier),
		})
	}
	table.Render()
	for _, r := range records {
		for _, n := range r.Notes {
			fmt.Fprintf(w, "  %s: %s\n", r.Original, n)
		}
	}
}

func colorizeTier(t domain.Tier) string {
	switch t {
	case domain.TierVeryHigh, domain.TierHigh:
		return color.GreenString(t.String())
	case domain.TierMedium:
		return color.YellowString(t.String())
	case domain.TierLow:
		return color.RedString(t.String())
	default:
		return t.String()
	}
}

func truncateString(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
