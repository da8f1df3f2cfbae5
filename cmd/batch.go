package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/tuition-cli/internal/model"
	"github.com/sells-group/tuition-cli/internal/pipeline"
)

var (
	batchFile  string
	batchLimit int
)

// batchLeadFile is the YAML shape of a batch input file.
type batchLeadFile struct {
	Project string `yaml:"project"`
	Items   []struct {
		School  string `yaml:"school"`
		Program string `yaml:"program"`
	} `yaml:"items"`
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Extract tuition facts for a batch of school/program pairs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		reqs, err := loadLeadFile(batchFile, batchLimit)
		if err != nil {
			return err
		}
		if len(reqs) == 0 {
			fmt.Fprintln(os.Stderr, "No items to process.")
			return nil
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		results := env.Pipeline.RunBatch(ctx, reqs, pipeline.BatchConfig{
			MaxConcurrency: cfg.Batch.MaxConcurrency,
			ItemsPerSecond: cfg.Batch.ItemsPerSecond,
		})

		var succeeded, notFound, failed int
		for _, r := range results {
			switch {
			case r.Err != nil:
				failed++
			case r.Record != nil && r.Record.Facts.Status == model.StatusNotFound:
				notFound++
			default:
				succeeded++
			}
		}

		zap.L().Info("batch complete",
			zap.Int("items", len(results)),
			zap.Int("succeeded", succeeded),
			zap.Int("not_found", notFound),
			zap.Int("failed", failed),
		)
		fmt.Printf("Processed %d items: %d succeeded, %d not found, %d failed\n",
			len(results), succeeded, notFound, failed)
		return nil
	},
}

func loadLeadFile(path string, limit int) ([]model.ExtractionRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read lead file %s", path)
	}

	var leads batchLeadFile
	if err := yaml.Unmarshal(data, &leads); err != nil {
		return nil, eris.Wrapf(err, "parse lead file %s", path)
	}

	var reqs []model.ExtractionRequest
	for _, item := range leads.Items {
		if item.School == "" || item.Program == "" {
			zap.L().Warn("batch: skipping incomplete lead",
				zap.String("school", item.School),
				zap.String("program", item.Program),
			)
			continue
		}
		reqs = append(reqs, model.ExtractionRequest{
			Project: leads.Project,
			School:  item.School,
			Program: item.Program,
		})
		if limit > 0 && len(reqs) == limit {
			break
		}
	}
	return reqs, nil
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "", "YAML file of school/program pairs (required)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of items to process (0 = all)")
	_ = batchCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(batchCmd)
}
