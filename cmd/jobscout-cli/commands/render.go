package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"jobscout-backend/services/jobstore"
)

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

func formatBudget(b jobstore.Budget) string {
	switch b.Kind {
	case jobstore.BudgetHourly:
		if b.HourlyMin == b.HourlyMax {
			return fmt.Sprintf("$%.2f/hr", b.HourlyMin)
		}
		return fmt.Sprintf("$%.2f-$%.2f/hr", b.HourlyMin, b.HourlyMax)
	case jobstore.BudgetFixed:
		return fmt.Sprintf("$%.2f fixed", b.Amount)
	}
	return "-"
}

func formatProposals(p jobstore.Proposals) string {
	if p.Count != nil {
		return fmt.Sprintf("%d", *p.Count)
	}
	if p.Bucket != "" {
		return p.Bucket
	}
	return "-"
}

func formatPostedAt(p jobstore.PostedAt) string {
	if !p.Parsed.IsZero() {
		return p.Parsed.Local().Format("2006-01-02 15:04")
	}
	if p.Raw != "" {
		return p.Raw
	}
	return "-"
}

const cellSkillLimit = 4

func formatSkills(skills []string) string {
	if len(skills) == 0 {
		return "-"
	}
	if len(skills) > cellSkillLimit {
		return fmt.Sprintf("%s (+%d)",
			strings.Join(skills[:cellSkillLimit], ", "),
			len(skills)-cellSkillLimit)
	}
	return strings.Join(skills, ", ")
}

func renderRecords(records []*jobstore.JobRecord) {
	t := newTable()
	t.AppendHeader(table.Row{"ID", "Title", "Budget", "Experience", "Skills", "Proposals", "Posted"})
	for _, r := range records {
		t.AppendRow(table.Row{
			r.ID,
			truncate(r.Title, 48),
			formatBudget(r.Budget),
			string(r.Experience),
			formatSkills(r.Skills),
			formatProposals(r.Proposals),
			formatPostedAt(r.PostedAt),
		})
	}
	t.Render()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func formatUnix(ts int64) string {
	return time.Unix(ts, 0).Local().Format("2006-01-02 15:04:05")
}
