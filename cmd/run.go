package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tuition-cli/internal/model"
)

var (
	runProject string
	runSchool  string
	runProgram string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Extract tuition facts for a single school/program pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		record, err := env.Pipeline.Run(ctx, model.ExtractionRequest{
			Project: runProject,
			School:  runSchool,
			Program: runProgram,
		})
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("extraction complete",
			zap.String("school", runSchool),
			zap.String("program", runProgram),
			zap.String("status", string(record.Facts.Status)),
			zap.Int("attempts", record.Attempts),
			zap.Int("citations", len(record.Citations)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(record)
	},
}

func init() {
	runCmd.Flags().StringVar(&runProject, "project", "", "project name for grouping records")
	runCmd.Flags().StringVar(&runSchool, "school", "", "school name (required)")
	runCmd.Flags().StringVar(&runProgram, "program", "", "program name (required)")
	_ = runCmd.MarkFlagRequired("school")
	_ = runCmd.MarkFlagRequired("program")
	rootCmd.AddCommand(runCmd)
}
