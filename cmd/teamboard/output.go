package main

import (
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/viper"

	"github.com/nhle/teamboard/internal/model"
)

func printJSON(v any) error {
	enc := sonic.ConfigStd.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(header ...any) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(header)
	return tw
}

// printRecord prints fields in keys order, as JSON with --json.
func printRecord(fields map[string]string, keys []string) error {
	if viper.GetBool("json") {
		return printJSON(fields)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleLight)
	for _, k := range keys {
		if v, ok := fields[k]; ok {
			tw.AppendRow(table.Row{k, v})
		}
	}
	tw.Render()
	return nil
}

func printTasks(tasks []model.Task) error {
	if viper.GetBool("json") {
		return printJSON(tasks)
	}
	now := time.Now()
	tw := newTable("ID", "Title", "Status", "Pos", "Assignee", "Deadline", "Tags")
	for _, t := range tasks {
		deadline := ""
		if t.Deadline != nil {
			deadline = t.Deadline.Local().Format("2006-01-02 15:04") +
				" (" + humanize.RelTime(*t.Deadline, now, "ago", "left") + ")"
		}
		tw.AppendRow(table.Row{
			t.ID, t.Title, t.EffectiveStatus(now).Label(), t.Position, t.AssigneeName(), deadline, t.Tags,
		})
	}
	tw.Render()
	return nil
}
