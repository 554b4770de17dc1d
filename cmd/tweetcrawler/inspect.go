package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"tweetcrawler/pkg/objectlog"
	"tweetcrawler/pkg/ui"
)

var inspectRecords bool

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <file|directory>...",
	Short: "Summarize the entries of object log files",
	Long: `Read object log files back and print one row per entry with its day,
record count, run id and write time.

A directory argument inspects every .ndjson file in it. A file whose last
line has no newline reports the torn entry and stops.`,
	Example: `  tweetcrawler inspect data/tweets_2021-01-01.ndjson
  tweetcrawler inspect data --records`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().BoolVar(&inspectRecords, "records", false, "print every record after the summary")
}

func runInspect(cmd *cobra.Command, args []string) error {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		found, err := objectlog.List(arg, "")
		if err != nil {
			return err
		}
		files = append(files, found...)
	}

	out := ui.Output()
	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("FILE", "DAY", "RECORDS", "RUN", "WRITTEN").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})

	entries, records := 0, 0
	var detailed []objectlog.Entry
	var scanErr error
	for _, path := range files {
		err := objectlog.Scan(path, func(e objectlog.Entry) error {
			entries++
			records += e.Count
			t.Row(path, e.Day, strconv.Itoa(e.Count), e.RunID, e.WrittenAt.Format("2006-01-02 15:04:05"))
			if inspectRecords {
				detailed = append(detailed, e)
			}
			return nil
		})
		if err != nil {
			scanErr = err
			break
		}
	}

	fmt.Fprintln(out, t.String())
	fmt.Fprintf(out, "%d files, %d entries, %d records\n", len(files), entries, records)
	for _, e := range detailed {
		printRecords(e)
	}
	return scanErr
}

func printRecords(e objectlog.Entry) {
	out := ui.Output()
	fmt.Fprintf(out, "\n# %s (%d records)\n", e.Day, e.Count)
	for _, r := range e.Records {
		fmt.Fprintln(out, string(r))
	}
}
