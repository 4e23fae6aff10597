package main

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/seantiz/easel/internal/backend"
	"github.com/seantiz/easel/internal/model"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// renderSummary prints one row per attempted task followed by the batch totals.
func renderSummary(s *model.Summary) string {
	rows := make([][]string, 0, len(s.Results))
	for _, r := range s.Results {
		status := "ok"
		if !r.Success {
			status = "failed"
		}
		rows = append(rows, []string{
			strconv.Itoa(r.Index + 1),
			model.ArtifactName(r.Index + 1),
			r.Backend,
			status,
			fmt.Sprintf("%.1fs", float64(r.DurationMS)/1000),
			r.Error,
		})
	}
	out := renderTable(
		[]string{"#", "Artifact", "Backend", "Status", "Time", "Error"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
	out += fmt.Sprintf("\n%s %s: %d/%d succeeded", s.Kind, s.BatchID, s.SuccessCount, s.Total)
	if len(s.FailedIndices) > 0 {
		out += fmt.Sprintf(", failed %v", s.FailedIndices)
	}
	if len(s.Skipped) > 0 {
		out += fmt.Sprintf(", skipped %v", s.Skipped)
	}
	if s.LogWriteFailures > 0 {
		out += fmt.Sprintf(", %d params log writes failed", s.LogWriteFailures)
	}
	return out
}

func renderProbe(statuses []backend.Status) string {
	rows := make([][]string, 0, len(statuses))
	for _, st := range statuses {
		alive := "no"
		if st.Alive {
			alive = "yes"
		}
		rows = append(rows, []string{st.Address, alive, fmt.Sprintf("%dms", st.LatencyMS), st.Error})
	}
	return renderTable(
		[]string{"Backend", "Alive", "Latency", "Error"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
	)
}
