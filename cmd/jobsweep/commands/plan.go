package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/jobsweep/internal/logger"
	"github.com/jmylchreest/jobsweep/pkg/jobsweep"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print each partition's page plan without scraping",
	Long: `Plan reads the result count of every partition in the manifest and
prints the listing pages a scrape would visit.

Examples:
  jobsweep plan -m cities.yaml
  jobsweep plan -m cities.csv --fetch-mode static --plan-format json`,
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
	addManifestFlags(planCmd)
	addFetchFlags(planCmd)
	planCmd.Flags().String("plan-format", "yaml", "plan output format: yaml, json")
}

// planEntry is the printed form of one partition's plan.
type planEntry struct {
	Key   string   `json:"key" yaml:"key"`
	Total int      `json:"total" yaml:"total"`
	Pages int      `json:"pages" yaml:"pages"`
	URLs  []string `json:"urls" yaml:"urls"`
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	parts, err := loadPartitions()
	if err != nil {
		logger.Error("failed to load manifest", "error", err)
		return err
	}
	opts, err := clientOptions()
	if err != nil {
		return err
	}
	js, err := jobsweep.New(opts...)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		return err
	}
	defer func() { _ = js.Close() }()

	seqs, err := js.Plan(ctx, parts)
	if err != nil {
		logger.Error("planning failed", "error", err)
		return err
	}

	entries := make([]planEntry, len(seqs))
	for i, s := range seqs {
		entries[i] = planEntry{Key: s.Partition.Key, Total: s.Total, Pages: s.PageCount, URLs: s.URLs}
	}

	switch f := viper.GetString("plan-format"); f {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case "yaml", "":
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported plan format: %s", f)
	}
}
