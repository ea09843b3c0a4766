package application

import (
	"context"
	"sort"
	"time"

	"github.com/Mukul-raii/Miss-Minutes/internal/domain"
)

const (
	dashboardWindowDays = 30
	topLanguagesLimit   = 5
	topFilesLimit       = 10
	recentActivityLimit = 20
	commitListLimit     = 50
)

// DashboardStats folds the cold path (pre-aggregated daily rollups for
// the trailing 30 days) and the hot path (raw activity rows from today,
// which have no rollup yet) into one view. A day never appears in both
// sources because rollups are written for closed days only.
func (s *TrackerService) DashboardStats(ctx context.Context, userID uint) (domain.DashboardStats, error) {
	now := time.Now().UTC()
	startOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	fromDay := startOfToday.AddDate(0, 0, -dashboardWindowDays).Format("2006-01-02")

	projects, err := s.repo.ListProjectsByUser(ctx, userID)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	rollups, err := s.repo.ListDailyStatsSince(ctx, userID, fromDay)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	todays, err := s.repo.ListActivitiesForUserSince(ctx, userID, startOfToday.UnixMilli())
	if err != nil {
		return domain.DashboardStats{}, err
	}

	projectStats := make(map[uint]*domain.ProjectStat, len(projects))
	for _, p := range projects {
		projectStats[p.ID] = &domain.ProjectStat{ID: p.ID, Name: p.Name, Path: p.Path}
	}

	var totalTime int64
	languages := make(map[string]int64)
	days := make(map[string]int64)

	for _, r := range rollups {
		totalTime += r.TotalDuration
		days[r.Day] += r.TotalDuration
		for language, duration := range r.LanguageBreakdown {
			languages[language] += duration
		}
		ps, ok := projectStats[r.ProjectID]
		if !ok {
			continue
		}
		ps.TotalDuration += r.TotalDuration
		ps.ActivityCount += r.FilesEdited
		if dayStart, err := time.Parse("2006-01-02", r.Day); err == nil {
			if ms := dayStart.UnixMilli(); ms > ps.LastActive {
				ps.LastActive = ms
			}
		}
	}

	for _, a := range todays {
		totalTime += a.Duration
		days[time.UnixMilli(a.Timestamp).UTC().Format("2006-01-02")] += a.Duration
		languages[a.Language] += a.Duration
		ps, ok := projectStats[a.ProjectID]
		if !ok {
			continue
		}
		ps.TotalDuration += a.Duration
		ps.ActivityCount++
		if a.Timestamp > ps.LastActive {
			ps.LastActive = a.Timestamp
		}
	}

	stats := domain.DashboardStats{
		TotalTime:     totalTime,
		TotalProjects: len(projects),
		Projects:      make([]domain.ProjectStat, 0, len(projectStats)),
		Languages:     languageStats(languages, totalTime, 0),
		DailyActivity: dailySeries(days),
	}
	for _, ps := range projectStats {
		if ps.TotalDuration > 0 {
			stats.ActiveProjects++
		}
		stats.Projects = append(stats.Projects, *ps)
	}
	sort.Slice(stats.Projects, func(i, j int) bool {
		a, b := stats.Projects[i], stats.Projects[j]
		if a.TotalDuration != b.TotalDuration {
			return a.TotalDuration > b.TotalDuration
		}
		return a.Name < b.Name
	})
	return stats, nil
}

func (s *TrackerService) ListProjects(ctx context.Context, userID uint) ([]domain.Project, error) {
	return s.repo.ListProjectsByUser(ctx, userID)
}

func (s *TrackerService) GetProject(ctx context.Context, userID, projectID uint) (domain.Project, error) {
	return s.repo.GetProjectByID(ctx, userID, projectID)
}

// ProjectDetails builds the per-project drill-down from raw activity
// rows and the commit registry. Scope is enforced by the ownership
// lookup; a project belonging to another user reads as not found.
func (s *TrackerService) ProjectDetails(ctx context.Context, userID, projectID uint) (domain.ProjectDetails, error) {
	project, err := s.repo.GetProjectByID(ctx, userID, projectID)
	if err != nil {
		return domain.ProjectDetails{}, err
	}

	activities, err := s.repo.ListActivitiesByProject(ctx, project.ID)
	if err != nil {
		return domain.ProjectDetails{}, err
	}
	commits, err := s.repo.ListCommitsByProject(ctx, project.ID)
	if err != nil {
		return domain.ProjectDetails{}, err
	}

	details := domain.ProjectDetails{
		ID:            project.ID,
		Name:          project.Name,
		Path:          project.Path,
		ActivityCount: len(activities),
	}

	windowStart := time.Now().UTC().AddDate(0, 0, -dashboardWindowDays).UnixMilli()
	languages := make(map[string]int64)
	files := make(map[string]int64)
	days := make(map[string]int64)
	for _, a := range activities {
		details.TotalDuration += a.Duration
		languages[a.Language] += a.Duration
		files[a.FilePath] += a.Duration
		if a.Timestamp >= windowStart {
			days[time.UnixMilli(a.Timestamp).UTC().Format("2006-01-02")] += a.Duration
		}
	}

	details.TopLanguages = languageStats(languages, details.TotalDuration, topLanguagesLimit)
	details.TopFiles = topFiles(files, topFilesLimit)
	details.DailyActivity = dailySeries(days)

	recent := make([]domain.ActivityLog, len(activities))
	copy(recent, activities)
	sort.Slice(recent, func(i, j int) bool { return recent[i].Timestamp > recent[j].Timestamp })
	if len(recent) > recentActivityLimit {
		recent = recent[:recentActivityLimit]
	}
	details.RecentActivities = recent

	sort.Slice(commits, func(i, j int) bool { return commits[i].Timestamp > commits[j].Timestamp })
	if len(commits) > commitListLimit {
		commits = commits[:commitListLimit]
	}
	details.Commits = make([]domain.CommitSummary, 0, len(commits))
	for _, c := range commits {
		count, err := s.repo.CountActivitiesByCommit(ctx, project.ID, c.CommitHash)
		if err != nil {
			return domain.ProjectDetails{}, err
		}
		details.Commits = append(details.Commits, domain.CommitSummary{
			ID:            c.ID,
			CommitHash:    c.CommitHash,
			Message:       c.Message,
			Author:        c.Author,
			AuthorEmail:   c.AuthorEmail,
			Timestamp:     c.Timestamp,
			TotalDuration: c.TotalDuration,
			FilesChanged:  c.FilesChanged,
			LinesAdded:    c.LinesAdded,
			LinesDeleted:  c.LinesDeleted,
			Branch:        c.Branch,
			ActivityCount: int(count),
		})
	}

	return details, nil
}

// languageStats converts a duration map to a sorted slice with share
// percentages. A zero total yields zero percentages instead of NaN.
// limit <= 0 keeps every language.
func languageStats(byLanguage map[string]int64, total int64, limit int) []domain.LanguageStat {
	out := make([]domain.LanguageStat, 0, len(byLanguage))
	for language, duration := range byLanguage {
		stat := domain.LanguageStat{Language: language, Duration: duration}
		if total > 0 {
			stat.Percentage = float64(duration) / float64(total) * 100
		}
		out = append(out, stat)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Duration != out[j].Duration {
			return out[i].Duration > out[j].Duration
		}
		return out[i].Language < out[j].Language
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func topFiles(byFile map[string]int64, limit int) []domain.FileStat {
	out := make([]domain.FileStat, 0, len(byFile))
	for filePath, duration := range byFile {
		out = append(out, domain.FileStat{FilePath: filePath, Duration: duration})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Duration != out[j].Duration {
			return out[i].Duration > out[j].Duration
		}
		return out[i].FilePath < out[j].FilePath
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func dailySeries(byDay map[string]int64) []domain.DailyActivity {
	out := make([]domain.DailyActivity, 0, len(byDay))
	for day, duration := range byDay {
		out = append(out, domain.DailyActivity{Date: day, Duration: duration})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
