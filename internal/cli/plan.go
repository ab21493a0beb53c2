package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/claimprobe/internal/investigation"
	"github.com/ppiankov/claimprobe/internal/model"
	"github.com/ppiankov/claimprobe/internal/planner"
)

var planJSON bool

var planCmd = &cobra.Command{
	Use:   "plan <investigation>",
	Short: "Show how many combinations are done and how many remain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		p, err := preparePlan(cfg, args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if planJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(p.summary)
		}

		fmt.Fprintf(out, "investigation: %s\n", p.def.Name)
		fmt.Fprintf(out, "store:         %s\n", p.storePath)
		fmt.Fprintf(out, "total:         %d\n", p.summary.Total)
		fmt.Fprintf(out, "done:          %d\n", p.summary.Done)
		fmt.Fprintf(out, "remaining:     %d\n", p.summary.Remaining)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available investigations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := loadCatalog()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tAXES\tOUTPUT\tDESCRIPTION")
		for _, d := range catalog.List() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.Name, strings.Join(d.Axes, " × "), d.OutputFile, d.Description)
		}
		return w.Flush()
	},
}

func init() {
	planCmd.Flags().BoolVar(&planJSON, "json", false, "print the summary as JSON")
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(listCmd)
}

// runPlan is everything a run needs to know before evaluating anything
type runPlan struct {
	def          *investigation.Definition
	institutions []model.Institution
	storePath    string
	pending      []model.Combination
	summary      planner.Summary
}

func preparePlan(cfg *model.Config, name string) (*runPlan, error) {
	catalog, err := loadCatalog()
	if err != nil {
		return nil, err
	}
	def, err := catalog.Get(name)
	if err != nil {
		return nil, err
	}

	insts, err := def.LoadInstitutions(cfg.Registry, logger)
	if err != nil {
		return nil, err
	}

	storePath := filepath.Join(cfg.Store.Dir, def.OutputFile)
	done, err := planner.ReadDone(storePath, def.Axes, logger)
	if err != nil {
		return nil, err
	}

	all := def.Combinations(insts)
	return &runPlan{
		def:          def,
		institutions: insts,
		storePath:    storePath,
		pending:      planner.Plan(all, done),
		summary:      planner.Summarize(all, done),
	}, nil
}
