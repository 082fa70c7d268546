package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/turtacn/ChemMap/internal/bootstrap"
	"github.com/turtacn/ChemMap/internal/domain/reference"
	"github.com/turtacn/ChemMap/internal/infrastructure/snapshot"
	"github.com/turtacn/ChemMap/pkg/errors"
)

func newVocabCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "vocab",
		Aliases: []string{"vocabulary"},
		Short:   "Inspect and maintain the reference vocabulary",
	}
	cmd.AddCommand(
		newVocabStatsCmd(),
		newVocabEntityCmd(),
		newVocabImportCmd(),
		newVocabExportCmd(),
		newVocabPublishCmd(),
	)
	return cmd
}

func newVocabStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Load the configured vocabulary and print index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			infra, err := cliCtx.Open(cmd.Context(), bootstrap.Options{LoadIndex: true})
			if err != nil {
				return err
			}
			defer infra.Close()

			st, err := infra.Service.Stats()
			if err != nil {
				return err
			}
			if cliCtx.OutputFormat == FormatJSON {
				return printJSON(cmd.OutOrStdout(), st)
			}
			renderStats(cmd.OutOrStdout(), st)
			return nil
		},
	}
}

func renderStats(w io.Writer, st reference.Stats) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Property", "Value"})
	table.Append([]string{"Version", st.Version})
	table.Append([]string{"Entities", strconv.Itoa(st.Entities)})
	table.Append([]string{"Terms", strconv.Itoa(st.Terms)})
	table.Append([]string{"Exact keys", strconv.Itoa(st.ExactKeys)})
	table.Append([]string{"Fuzzy terms", strconv.Itoa(st.FuzzyTerms)})
	table.Append([]string{"Hydrate entities", strconv.Itoa(st.HydrateEntities)})
	table.Append([]string{"Overrides", strconv.Itoa(st.Overrides)})
	table.Append([]string{"Unresolved overrides", strconv.Itoa(st.UnresolvedOverrides)})
	table.Render()
}

func newVocabEntityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "entity <id>",
		Short: "Show one vocabulary entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			infra, err := cliCtx.Open(cmd.Context(), bootstrap.Options{LoadIndex: true})
			if err != nil {
				return err
			}
			defer infra.Close()

			e, err := infra.Service.Entity(args[0])
			if err != nil {
				return err
			}
			if cliCtx.OutputFormat == FormatJSON {
				return printJSON(cmd.OutOrStdout(), e)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "ID:       %s\n", e.ID)
			fmt.Fprintf(w, "Label:    %s\n", e.Label)
			fmt.Fprintf(w, "Formula:  %s\n", e.Formula)
			fmt.Fprintf(w, "Category: %s\n", e.Category)
			if len(e.Synonyms) > 0 {
				fmt.Fprintf(w, "Synonyms: %s\n", strings.Join(e.Synonyms, "; "))
			}
			return nil
		},
	}
}

func newVocabImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <vocabulary.tsv>",
		Short: "Upsert a vocabulary TSV into Postgres",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			entities, _, err := readVocabulary(args[0], "")
			if err != nil {
				return err
			}
			infra, err := cliCtx.Open(cmd.Context(), bootstrap.Options{Postgres: true})
			if err != nil {
				return err
			}
			defer infra.Close()
			if infra.Vocabulary == nil {
				return errors.New(errors.ErrCodeBadRequest, "import needs database.postgres.enabled")
			}

			n, err := infra.Vocabulary.ImportEntities(cmd.Context(), entities)
			if err != nil {
				return err
			}
			PrintSuccess(cmd, fmt.Sprintf("imported %d entities from %s", n, args[0]))
			return nil
		},
	}
}

func newVocabExportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the configured vocabulary source as TSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			infra, err := cliCtx.Open(cmd.Context(), bootstrap.Options{})
			if err != nil {
				return err
			}
			defer infra.Close()

			entities, err := infra.Entities.LoadEntities(cmd.Context())
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				return snapshot.EncodeVocabulary(cmd.OutOrStdout(), entities)
			}
			f, err := os.Create(out)
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeSerialization, "cannot create output").WithDetailf("path=%s", out)
			}
			if err := snapshot.EncodeVocabulary(f, entities); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			PrintSuccess(cmd, fmt.Sprintf("exported %d entities to %s", len(entities), out))
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", `output path, "-" for stdout`)
	return cmd
}

func newVocabPublishCmd() *cobra.Command {
	var overridesPath string
	cmd := &cobra.Command{
		Use:   "publish <vocabulary.tsv>",
		Short: "Validate a vocabulary snapshot and upload it to object storage",
		Long: "Build an index from the snapshot (and override table, when given) to make\n" +
			"sure it loads, then upload both objects to the configured bucket. Servers\n" +
			"reading from MinIO pick the new snapshot up on their next reload.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			entities, overrides, err := readVocabulary(args[0], overridesPath)
			if err != nil {
				return err
			}
			table, err := reference.NewOverrideTable(overrides)
			if err != nil {
				return err
			}
			idx, err := reference.NewIndex(entities, table, reference.WithIndexLogger(cliCtx.Logger))
			if err != nil {
				return err
			}

			infra, err := cliCtx.Open(cmd.Context(), bootstrap.Options{Storage: true})
			if err != nil {
				return err
			}
			defer infra.Close()

			info, err := infra.Snapshots.PutVocabulary(cmd.Context(), entities)
			if err != nil {
				return err
			}
			PrintSuccess(cmd, fmt.Sprintf("published %s/%s (%d entities, version %s)",
				info.Bucket, info.Object, idx.Len(), idx.Version()))
			if overridesPath == "" {
				return nil
			}
			info, err = infra.Snapshots.PutOverrides(cmd.Context(), overrides)
			if err != nil {
				return err
			}
			PrintSuccess(cmd, fmt.Sprintf("published %s/%s (%d overrides, %d unresolved)",
				info.Bucket, info.Object, len(overrides), idx.Stats().UnresolvedOverrides))
			return nil
		},
	}
	cmd.Flags().StringVar(&overridesPath, "overrides", "", "override table (YAML) to publish alongside")
	return cmd
}

// readVocabulary decodes a vocabulary TSV and, when overridesPath is set,
// the override table that goes with it.
func readVocabulary(path, overridesPath string) ([]reference.Entity, []reference.Override, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeVocabularyLoad, "cannot open vocabulary").WithDetailf("path=%s", path)
	}
	defer f.Close()
	entities, err := snapshot.DecodeVocabulary(f)
	if err != nil {
		return nil, nil, err
	}
	if overridesPath == "" {
		return entities, nil, nil
	}

	of, err := os.Open(overridesPath)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeVocabularyLoad, "cannot open overrides").WithDetailf("path=%s", overridesPath)
	}
	defer of.Close()
	overrides, err := snapshot.DecodeOverrides(of)
	if err != nil {
		return nil, nil, err
	}
	return entities, overrides, nil
}
