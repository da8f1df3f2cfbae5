package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/tuition-cli/internal/model"
	"github.com/sells-group/tuition-cli/internal/store"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Inspect stored extraction records",
	Long:  "Commands for listing, viewing, and tracing versions of extraction records.",
}

// -- records list --

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List extraction records",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		project, _ := cmd.Flags().GetString("project")
		school, _ := cmd.Flags().GetString("school")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		records, err := st.ListRecords(ctx, store.RecordFilter{
			Project: project,
			School:  school,
			Status:  model.ExtractionStatus(status),
			Limit:   limit,
		})
		if err != nil {
			return eris.Wrap(err, "records list")
		}

		if len(records) == 0 {
			fmt.Fprintln(os.Stderr, "No records found.")
			return nil
		}

		formatRecordsList(os.Stdout, records)
		return nil
	},
}

// -- records show --

var recordsShowCmd = &cobra.Command{
	Use:   "show <record-id>",
	Short: "Show full details of a record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		record, err := st.GetRecord(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "records show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(record)
	},
}

// -- records versions --

var recordsVersionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List every stored version for a school/program pair",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		project, _ := cmd.Flags().GetString("project")
		school, _ := cmd.Flags().GetString("school")
		program, _ := cmd.Flags().GetString("program")

		records, err := st.ListVersions(ctx, project, school, program)
		if err != nil {
			return eris.Wrap(err, "records versions")
		}

		if len(records) == 0 {
			fmt.Fprintln(os.Stderr, "No versions found.")
			return nil
		}

		formatRecordsList(os.Stdout, records)
		return nil
	},
}

func formatRecordsList(w io.Writer, records []model.ExtractionRecord) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSCHOOL\tPROGRAM\tVER\tSTATUS\tCONFIDENCE\tTUITION\tCREATED")
	for _, r := range records {
		confidence := ""
		if r.Verdict != nil {
			confidence = string(r.Verdict.Confidence)
		}
		tuition := ""
		if r.Facts.TuitionAmount != nil {
			tuition = *r.Facts.TuitionAmount
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			r.ID, r.School, r.Program, r.Version,
			r.Facts.Status, confidence, tuition,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	tw.Flush() //nolint:errcheck
}

func init() {
	recordsListCmd.Flags().String("project", "", "filter by project")
	recordsListCmd.Flags().String("school", "", "filter by school")
	recordsListCmd.Flags().String("status", "", "filter by status (success, not_found, failed)")
	recordsListCmd.Flags().Int("limit", 50, "max records to list")

	recordsVersionsCmd.Flags().String("project", "", "project name")
	recordsVersionsCmd.Flags().String("school", "", "school name (required)")
	recordsVersionsCmd.Flags().String("program", "", "program name (required)")
	_ = recordsVersionsCmd.MarkFlagRequired("school")
	_ = recordsVersionsCmd.MarkFlagRequired("program")

	recordsCmd.AddCommand(recordsListCmd)
	recordsCmd.AddCommand(recordsShowCmd)
	recordsCmd.AddCommand(recordsVersionsCmd)
	rootCmd.AddCommand(recordsCmd)
}
