package main

import (
	"fmt"
	"os"
	"time"
	"unicode/utf8"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/circolari/internal/database"
)

var (
	listLimit    int
	listCategory string
	listDays     int
)

var noticesCmd = &cobra.Command{
	Use:   "notices",
	Short: "List stored notices, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		filter := database.NoticeFilter{Limit: listLimit, Category: listCategory}
		if listDays > 0 {
			filter.Since = database.TruncateDay(time.Now()).AddDate(0, 0, -listDays)
		}
		notices, err := db.RecentNotices(cmd.Context(), filter)
		if err != nil {
			return err
		}
		if len(notices) == 0 {
			fmt.Println("No notices stored yet. Run 'circolari scrape' first.")
			return nil
		}
		renderNotices(notices)
		return nil
	},
}

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent ingestion runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.RecentRunLogs(cmd.Context(), runsLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded yet.")
			return nil
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"#", "When", "Status", "Found", "Saved", "Error"})
		for _, rl := range runs {
			t.AppendRow(table.Row{rl.ID, deref(rl.Timestamp), rl.Status, rl.RecordsFound, rl.RecordsSaved, clip(deref(rl.ErrorDetail), 60)})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}

func init() {
	noticesCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "Maximum number of notices")
	noticesCmd.Flags().StringVar(&listCategory, "category", "", "Only show this category")
	noticesCmd.Flags().IntVar(&listDays, "days", 0, "Only show notices published in the last N days")
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Maximum number of runs")
}

func renderNotices(notices []database.Notice) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"#", "Date", "Title", "Category", "Source", "PDFs"})
	for _, n := range notices {
		id := any(n.ID)
		if n.ID == 0 {
			id = "-"
		}
		t.AppendRow(table.Row{
			id,
			database.FormatDateDisplay(n.PublicationDate),
			clip(n.Title, 70),
			n.Category,
			n.Source,
			len(n.AttachmentRefs),
		})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func clip(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max-1]) + "…"
}
