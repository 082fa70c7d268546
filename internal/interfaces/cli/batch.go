package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/turtacn/ChemMap/internal/application/mapping"
	"github.com/turtacn/ChemMap/internal/bootstrap"
	domain "github.com/turtacn/ChemMap/internal/domain/mapping"
	"github.com/turtacn/ChemMap/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemMap/internal/infrastructure/snapshot"
	"github.com/turtacn/ChemMap/pkg/errors"
)

type batchOptions struct {
	column   string
	out      string
	unmapped string
	top      int
	minScore int
	minTier  string
	review   string
	publish  bool
}

func newBatchCmd() *cobra.Command {
	opts := &batchOptions{}

	cmd := &cobra.Command{
		Use:   "batch <extract>",
		Short: "Map every name in a TSV/CSV extract",
		Long: "Map the name column of a tabular extract and write the extract back with the\n" +
			"mapping columns appended. A summary per method and tier and the most frequent\n" +
			"unmapped names are printed. Interrupting a run keeps the rows already mapped.\n\n" +
			"With --min-tier the output keeps only rows mapped at that tier or better; mapped\n" +
			"rows below it are written to the --review file for a curator.",
		Example: `  chemmap batch media.tsv --column compound --out media.mapped.tsv
  chemmap batch media.csv --unmapped review.tsv --publish
  chemmap batch media.tsv --min-tier high --review media.review.tsv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("min-score") {
				cliCtx.Config.Matching.MinScore = opts.minScore
			}
			minTier, err := domain.ParseTier(opts.minTier)
			if err != nil {
				return err
			}
			if opts.review != "" && minTier == domain.TierNone {
				return errors.InvalidParam("--review needs --min-tier above none")
			}
			return runBatch(cmd, cliCtx, args[0], minTier, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.column, "column", snapshot.DefaultNameColumn, "column holding the raw names")
	f.StringVar(&opts.out, "out", "", `annotated output path, "-" for stdout (default: <extract>.mapped<ext>)`)
	f.StringVar(&opts.unmapped, "unmapped", "", "write the full unmapped report (name, count) to this TSV file")
	f.IntVar(&opts.top, "top", 20, "unmapped names to print in the summary")
	f.IntVar(&opts.minScore, "min-score", domain.DefaultMinScore, "fuzzy acceptance threshold (0-100)")
	f.StringVar(&opts.minTier, "min-tier", domain.TierNone.String(), "keep only rows mapped at this tier or better (none, low, medium, high, very_high)")
	f.StringVar(&opts.review, "review", "", "write mapped rows below --min-tier to this file")
	f.BoolVar(&opts.publish, "publish", false, "send the records to the configured sinks (Postgres, Kafka, Neo4j)")
	return cmd
}

func runBatch(cmd *cobra.Command, cliCtx *CLIContext, input string, minTier domain.Tier, opts *batchOptions) error {
	ctx := cmd.Context()
	log := cliCtx.Logger

	table, err := readExtract(input)
	if err != nil {
		return err
	}
	col, err := table.ColumnIndex(opts.column)
	if err != nil {
		return err
	}
	names := table.Names(col)
	rows := make([]mapping.Row, len(names))
	for i, n := range names {
		// Line numbers: the header is line 1.
		rows[i] = mapping.Row{Key: strconv.Itoa(i + 2), Name: n}
	}

	infra, err := cliCtx.Open(ctx, bootstrap.Options{Cache: true, Sinks: opts.publish, LoadIndex: true})
	if err != nil {
		return err
	}
	defer infra.Close()

	res, runErr := infra.Service.MatchBatch(ctx, rows)
	if res == nil {
		return runErr
	}
	if runErr != nil && !res.Cancelled {
		// Sink failures: the records exist, report and carry on.
		log.Error("publishing records failed", logging.Err(runErr))
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", color.YellowString("Warning:"), runErr)
	}

	outPath := opts.out
	if outPath == "" {
		ext := filepath.Ext(input)
		outPath = strings.TrimSuffix(input, ext) + ".mapped" + ext
	}
	records := annotationPrefix(res, len(rows))
	var split *tierSplit
	if minTier == domain.TierNone {
		if err := writeAnnotated(cmd, outPath, table, records); err != nil {
			return err
		}
	} else {
		split = splitByTier(records, minTier)
		if err := writeAnnotated(cmd, outPath, table.Select(split.trusted), pick(records, split.trusted)); err != nil {
			return err
		}
		if opts.review != "" {
			if err := writeAnnotated(cmd, opts.review, table.Select(split.review), pick(records, split.review)); err != nil {
				return err
			}
		}
	}
	if opts.unmapped != "" {
		if err := writeUnmappedReport(opts.unmapped, res.Unmapped); err != nil {
			return err
		}
	}

	// With the extract on stdout the summary moves to stderr.
	summaryOut := cmd.OutOrStdout()
	if outPath == "-" {
		summaryOut = cmd.ErrOrStderr()
	}
	if cliCtx.OutputFormat == FormatJSON {
		report := batchReport{
			RunID:        res.RunID.String(),
			IndexVersion: res.IndexVersion,
			Output:       outPath,
			Summary:      res.Summary,
			Unmapped:     res.Unmapped,
			Cancelled:    res.Cancelled,
		}
		if split != nil {
			report.Split = &splitReport{
				MinTier: minTier,
				Trusted: len(split.trusted),
				Review:  len(split.review),
				Output:  opts.review,
			}
		}
		if err := printJSON(summaryOut, report); err != nil {
			return err
		}
	} else {
		renderSummary(summaryOut, res, opts.top)
		if split != nil {
			fmt.Fprintf(summaryOut, "\nRows at or above %s: %d; below it, for review: %d\n",
				colorizeTier(minTier), len(split.trusted), len(split.review))
			if opts.review != "" {
				fmt.Fprintf(summaryOut, "Review rows written to %s\n", opts.review)
			}
		}
		if outPath != "-" {
			fmt.Fprintf(summaryOut, "\nAnnotated extract written to %s\n", outPath)
		}
	}

	if res.Cancelled {
		return runErr
	}
	return nil
}

type batchReport struct {
	RunID        string                `json:"run_id"`
	IndexVersion string                `json:"index_version"`
	Output       string                `json:"output"`
	Summary      domain.Summary        `json:"summary"`
	Unmapped     []domain.UnmappedName `json:"unmapped"`
	Cancelled    bool                  `json:"cancelled"`
	Split        *splitReport          `json:"split,omitempty"`
}

type splitReport struct {
	MinTier domain.Tier `json:"min_tier"`
	Trusted int         `json:"trusted"`
	Review  int         `json:"review"`
	Output  string      `json:"review_output,omitempty"`
}

func readExtract(path string) (*snapshot.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBatchInputInvalid, "cannot open extract").
			WithDetailf("path=%s", path)
	}
	defer f.Close()
	return snapshot.ReadTable(f, snapshot.DelimiterFor(path))
}

// annotationPrefix returns the records of the leading rows that were all
// matched. A complete run covers every row; a cancelled one may have gaps,
// and rows from the first gap on are written without annotation.
func annotationPrefix(res *mapping.BatchResult, n int) []domain.MappingRecord {
	byKey := make(map[string]domain.MappingRecord, len(res.Records))
	for _, r := range res.Records {
		byKey[r.Row.Key] = r.Record
	}
	out := make([]domain.MappingRecord, 0, n)
	for i := 0; i < n; i++ {
		rec, ok := byKey[strconv.Itoa(i+2)]
		if !ok {
			break
		}
		out = append(out, rec)
	}
	return out
}

// tierSplit holds row indexes: trusted rows were mapped at or above the
// minimum tier, review rows were mapped below it. Unmapped rows are in
// neither; they are listed by the unmapped report.
type tierSplit struct {
	trusted []int
	review  []int
}

func splitByTier(records []domain.MappingRecord, minTier domain.Tier) *tierSplit {
	s := &tierSplit{}
	for i, r := range records {
		switch {
		case !r.IsMapped():
		case r.Tier.AtLeast(minTier):
			s.trusted = append(s.trusted, i)
		default:
			s.review = append(s.review, i)
		}
	}
	return s
}

func pick(records []domain.MappingRecord, idx []int) []domain.MappingRecord {
	out := make([]domain.MappingRecord, len(idx))
	for i, j := range idx {
		out[i] = records[j]
	}
	return out
}

func writeAnnotated(cmd *cobra.Command, path string, t *snapshot.Table, records []domain.MappingRecord) error {
	if path == "-" {
		return snapshot.WriteAnnotated(cmd.OutOrStdout(), t, records)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "cannot create output").WithDetailf("path=%s", path)
	}
	if err := snapshot.WriteAnnotated(f, t, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeUnmappedReport(path string, names []domain.UnmappedName) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "cannot create unmapped report").WithDetailf("path=%s", path)
	}
	fmt.Fprintln(f, "name\tcount")
	for _, u := range names {
		fmt.Fprintf(f, "%s\t%d\n", u.Name, u.Count)
	}
	return f.Close()
}

func renderSummary(w io.Writer, res *mapping.BatchResult, top int) {
	s := res.Summary
	title := "=== Batch Mapping Results ==="
	if res.Cancelled {
		title = "=== Batch Mapping Results (cancelled) ==="
	}
	fmt.Fprintf(w, "\n%s\n", title)
	fmt.Fprintf(w, "Run ID: %s\n", res.RunID)
	fmt.Fprintf(w, "Index version: %s\n", res.IndexVersion)
	fmt.Fprintf(w, "Rows: %d\n", s.Total)
	fmt.Fprintf(w, "Mapped: %d (%s)\n\n", s.Mapped, percent(s.Mapped, s.Total))

	methods := tablewriter.NewWriter(w)
	methods.SetHeader([]string{"Method", "Rows", "Share"})
	for _, m := range s.ByMethod {
		methods.Append([]string{string(m.Method), strconv.Itoa(m.Count), percent(m.Count, s.Total)})
	}
	methods.Render()

	tiers := tablewriter.NewWriter(w)
	tiers.SetHeader([]string{"Tier", "Rows", "Share"})
	for _, t := range s.ByTier {
		tiers.Append([]string{colorizeTier(t.Tier), strconv.Itoa(t.Count), percent(t.Count, s.Total)})
	}
	tiers.Render()

	if len(res.Unmapped) == 0 || top <= 0 {
		return
	}
	fmt.Fprintf(w, "\nMost frequent unmapped names (%d distinct):\n", len(res.Unmapped))
	unmapped := tablewriter.NewWriter(w)
	unmapped.SetHeader([]string{"Name", "Count"})
	for i, u := range res.Unmapped {
		if i == top {
			break
		}
		unmapped.Append([]string{u.Name, strconv.Itoa(u.Count)})
	}
	unmapped.Render()
}

func percent(n, total int) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(n)*100/float64(total))
}
