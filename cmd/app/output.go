package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Mukul-raii/Miss-Minutes/internal/domain"
)

func printJSON(v any) error {
	b, err := jsonMarshal(v)
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func printKV(rows [][2]string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", row[0], row[1])
	}
	_ = w.Flush()
}

func printTable(headers []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Println("no results")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, strings.Join(headers, "\t"))
	for _, row := range rows {
		_, _ = fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}

func formatMaybeUint(v *uint) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatUint(uint64(*v), 10)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatEpochMillis(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04:05")
}

// formatDuration renders millisecond durations as 1h23m style strings.
func formatDuration(ms int64) string {
	if ms <= 0 {
		return "0m"
	}
	d := time.Duration(ms) * time.Millisecond
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	if hours > 0 {
		return fmt.Sprintf("%dh%dm", hours, minutes)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%ds", int(d.Seconds()))
}

func printProjects(items []domain.Project) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			strconv.FormatUint(uint64(item.ID), 10),
			item.Name,
			item.Path,
			formatTime(item.UpdatedAt),
		})
	}
	printTable([]string{"ID", "NAME", "PATH", "UPDATED_AT"}, rows)
}

func printDashboardStats(stats domain.DashboardStats) {
	printKV([][2]string{
		{"total_time", formatDuration(stats.TotalTime)},
		{"total_projects", strconv.Itoa(stats.TotalProjects)},
		{"active_projects", strconv.Itoa(stats.ActiveProjects)},
	})
	fmt.Println()

	projectRows := make([][]string, 0, len(stats.Projects))
	for _, p := range stats.Projects {
		projectRows = append(projectRows, []string{
			strconv.FormatUint(uint64(p.ID), 10),
			p.Name,
			formatDuration(p.TotalDuration),
			strconv.Itoa(p.ActivityCount),
			formatEpochMillis(p.LastActive),
		})
	}
	printTable([]string{"ID", "PROJECT", "TIME", "ACTIVITY", "LAST_ACTIVE"}, projectRows)
	fmt.Println()

	languageRows := make([][]string, 0, len(stats.Languages))
	for _, l := range stats.Languages {
		languageRows = append(languageRows, []string{
			l.Language,
			formatDuration(l.Duration),
			fmt.Sprintf("%.1f%%", l.Percentage),
		})
	}
	printTable([]string{"LANGUAGE", "TIME", "SHARE"}, languageRows)
	fmt.Println()

	dayRows := make([][]string, 0, len(stats.DailyActivity))
	for _, d := range stats.DailyActivity {
		dayRows = append(dayRows, []string{d.Date, formatDuration(d.Duration)})
	}
	printTable([]string{"DATE", "TIME"}, dayRows)
}

func printProjectDetails(details domain.ProjectDetails) {
	printKV([][2]string{
		{"id", strconv.FormatUint(uint64(details.ID), 10)},
		{"name", details.Name},
		{"path", details.Path},
		{"total_time", formatDuration(details.TotalDuration)},
		{"activity_count", strconv.Itoa(details.ActivityCount)},
	})
	fmt.Println()

	languageRows := make([][]string, 0, len(details.TopLanguages))
	for _, l := range details.TopLanguages {
		languageRows = append(languageRows, []string{
			l.Language,
			formatDuration(l.Duration),
			fmt.Sprintf("%.1f%%", l.Percentage),
		})
	}
	printTable([]string{"LANGUAGE", "TIME", "SHARE"}, languageRows)
	fmt.Println()

	fileRows := make([][]string, 0, len(details.TopFiles))
	for _, f := range details.TopFiles {
		fileRows = append(fileRows, []string{f.FilePath, formatDuration(f.Duration)})
	}
	printTable([]string{"FILE", "TIME"}, fileRows)
	fmt.Println()

	commitRows := make([][]string, 0, len(details.Commits))
	for _, c := range details.Commits {
		hash := c.CommitHash
		if len(hash) > 10 {
			hash = hash[:10]
		}
		commitRows = append(commitRows, []string{
			hash,
			truncate(c.Message, 48),
			c.Author,
			formatDuration(c.TotalDuration),
			strconv.Itoa(c.ActivityCount),
			formatEpochMillis(c.Timestamp),
		})
	}
	printTable([]string{"HASH", "MESSAGE", "AUTHOR", "TIME", "ACTIVITY", "AT"}, commitRows)
}

func printAuditRecords(items []domain.AuditRecord) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			strconv.FormatUint(uint64(item.ID), 10),
			item.Action,
			item.TargetType,
			formatMaybeUint(item.TargetID),
			item.ActorUserEmail,
			formatTime(item.CreatedAt),
		})
	}
	printTable([]string{"ID", "ACTION", "TARGET_TYPE", "TARGET_ID", "ACTOR", "AT"}, rows)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
