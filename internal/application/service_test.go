package application

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	sqliteadapter "github.com/Mukul-raii/Miss-Minutes/internal/adapters/db/sqlite"
	"github.com/Mukul-raii/Miss-Minutes/internal/domain"
)

func newTestService(t *testing.T) (*TrackerService, string) {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "tracker_test.db")

	db, err := sqliteadapter.Open(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := sqliteadapter.RunMigrations(ctx, db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	service := NewTrackerService(sqliteadapter.NewTrackerRepository(db))
	if err := service.BootstrapAdmin(ctx, "dev@example.com", "secret"); err != nil {
		t.Fatalf("bootstrap admin: %v", err)
	}
	_, token, err := service.LoginWithAPIToken(ctx, "dev@example.com", "secret", "test", nil)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return service, token
}

func TestSyncActivitiesRejectsBadToken(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	_, err := service.SyncActivities(ctx, "bogus", []domain.ActivityInput{
		{ProjectPath: "/a", FilePath: "x.go", Language: "go", Timestamp: 1000, Duration: 10},
	})
	if err != domain.ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestResolveProjectIsIdempotent(t *testing.T) {
	ctx := context.Background()
	service, token := newTestService(t)
	identity, err := service.AuthenticateBearerToken(ctx, token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	first, err := service.ResolveProject(ctx, identity.User.ID, "/home/dev/tracker")
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	second, err := service.ResolveProject(ctx, identity.User.ID, "/home/dev/tracker")
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("resolver created two projects: %d and %d", first.ID, second.ID)
	}
	if first.Name != "tracker" {
		t.Fatalf("expected name from last path segment, got %q", first.Name)
	}
}

func TestProjectNameFromPath(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/home/dev/tracker", "tracker"},
		{"/home/dev/tracker/", "tracker"},
		{"tracker", "tracker"},
		{"///", "Unknown Project"},
		{"", "Unknown Project"},
	}
	for _, tc := range cases {
		if got := projectNameFromPath(tc.path); got != tc.want {
			t.Errorf("projectNameFromPath(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestSyncFileActivitiesMergesByKey(t *testing.T) {
	ctx := context.Background()
	service, token := newTestService(t)

	item := domain.FileActivityInput{
		ProjectPath:     "/home/dev/tracker",
		CommitHash:      "c1",
		Branch:          "main",
		FilePath:        "x.go",
		Language:        "go",
		TotalDuration:   300,
		FirstActivityAt: 5000,
	}
	if _, err := service.SyncFileActivities(ctx, token, []domain.FileActivityInput{item}); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	item.TotalDuration = 200
	item.FirstActivityAt = 3000
	if _, err := service.SyncFileActivities(ctx, token, []domain.FileActivityInput{item}); err != nil {
		t.Fatalf("second sync: %v", err)
	}

	identity, _ := service.AuthenticateBearerToken(ctx, token)
	project, err := service.repo.GetProjectByUserAndPath(ctx, identity.User.ID, "/home/dev/tracker")
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	row, err := service.repo.GetFileAggregate(ctx, project.ID, "c1", "main", "x.go")
	if err != nil {
		t.Fatalf("get aggregate: %v", err)
	}
	if row.Duration != 500 {
		t.Fatalf("expected merged duration 500, got %d", row.Duration)
	}
	if row.Timestamp != 3000 {
		t.Fatalf("expected earliest timestamp 3000, got %d", row.Timestamp)
	}

	rows, err := service.repo.ListActivitiesByProject(ctx, project.ID)
	if err != nil {
		t.Fatalf("list activities: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one merged row, got %d", len(rows))
	}
}

func TestFileActivityAppliesDeltaToExistingCommit(t *testing.T) {
	ctx := context.Background()
	service, token := newTestService(t)

	commits := []domain.CommitInput{{ProjectPath: "/home/dev/tracker", CommitHash: "c1", Message: "init", Timestamp: 1000}}
	if _, err := service.SyncCommits(ctx, token, commits); err != nil {
		t.Fatalf("sync commits: %v", err)
	}

	item := domain.FileActivityInput{
		ProjectPath:     "/home/dev/tracker",
		CommitHash:      "c1",
		Branch:          "main",
		FilePath:        "x.go",
		Language:        "go",
		TotalDuration:   300,
		FirstActivityAt: 5000,
	}
	if _, err := service.SyncFileActivities(ctx, token, []domain.FileActivityInput{item}); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	item.TotalDuration = 200
	if _, err := service.SyncFileActivities(ctx, token, []domain.FileActivityInput{item}); err != nil {
		t.Fatalf("second sync: %v", err)
	}

	identity, _ := service.AuthenticateBearerToken(ctx, token)
	project, _ := service.repo.GetProjectByUserAndPath(ctx, identity.User.ID, "/home/dev/tracker")
	commit, err := service.repo.GetCommitByHash(ctx, project.ID, "c1")
	if err != nil {
		t.Fatalf("get commit: %v", err)
	}
	// The incremental path applies each delta, never the merged total.
	if commit.TotalDuration != 500 {
		t.Fatalf("expected incremental total 500, got %d", commit.TotalDuration)
	}

	if err := service.RecomputeCommitDurations(ctx, project.ID); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	commit, _ = service.repo.GetCommitByHash(ctx, project.ID, "c1")
	if commit.TotalDuration != 500 {
		t.Fatalf("expected recomputed total 500, got %d", commit.TotalDuration)
	}
}

func TestRecomputeOverwritesDrift(t *testing.T) {
	ctx := context.Background()
	service, token := newTestService(t)

	activities := []domain.ActivityInput{
		{ProjectPath: "/a", FilePath: "x.go", Language: "go", Timestamp: 1000, Duration: 100, CommitHash: "c1"},
		{ProjectPath: "/a", FilePath: "y.go", Language: "go", Timestamp: 1100, Duration: 40, CommitHash: "c1"},
		{ProjectPath: "/a", FilePath: "z.go", Language: "go", Timestamp: 1200, Duration: 999},
	}
	if _, err := service.SyncActivities(ctx, token, activities); err != nil {
		t.Fatalf("sync activities: %v", err)
	}

	identity, _ := service.AuthenticateBearerToken(ctx, token)
	project, _ := service.repo.GetProjectByUserAndPath(ctx, identity.User.ID, "/a")

	commits := []domain.CommitInput{{ProjectPath: "/a", CommitHash: "c1", Message: "init", Timestamp: 1000}}
	if _, err := service.SyncCommits(ctx, token, commits); err != nil {
		t.Fatalf("sync commits: %v", err)
	}

	commit, _ := service.repo.GetCommitByHash(ctx, project.ID, "c1")
	if commit.TotalDuration != 140 {
		t.Fatalf("expected recomputed total 140, got %d", commit.TotalDuration)
	}

	// Simulate incremental drift and verify the full pass corrects it.
	if err := service.repo.SetCommitDuration(ctx, commit.ID, 9999); err != nil {
		t.Fatalf("set drifted duration: %v", err)
	}
	if err := service.RecomputeCommitDurations(ctx, project.ID); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	commit, _ = service.repo.GetCommitByHash(ctx, project.ID, "c1")
	if commit.TotalDuration != 140 {
		t.Fatalf("expected corrected total 140, got %d", commit.TotalDuration)
	}
}

func TestSyncCommitsUpsertsMetadataLastWriteWins(t *testing.T) {
	ctx := context.Background()
	service, token := newTestService(t)

	first := []domain.CommitInput{{ProjectPath: "/a", CommitHash: "c1", Message: "wip", Author: "Dev", Timestamp: 1000}}
	if _, err := service.SyncCommits(ctx, token, first); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	second := []domain.CommitInput{{ProjectPath: "/a", CommitHash: "c1", Message: "final", Author: "Dev", Timestamp: 2000, FilesChanged: 3}}
	if _, err := service.SyncCommits(ctx, token, second); err != nil {
		t.Fatalf("second sync: %v", err)
	}

	identity, _ := service.AuthenticateBearerToken(ctx, token)
	project, _ := service.repo.GetProjectByUserAndPath(ctx, identity.User.ID, "/a")
	commits, err := service.repo.ListCommitsByProject(ctx, project.ID)
	if err != nil {
		t.Fatalf("list commits: %v", err)
	}
	if len(commits) != 1 {
		t.Fatalf("expected one commit row, got %d", len(commits))
	}
	if commits[0].Message != "final" || commits[0].FilesChanged != 3 {
		t.Fatalf("metadata not overwritten: %+v", commits[0])
	}
}

func TestSyncDailyStatsIsAdditive(t *testing.T) {
	ctx := context.Background()
	service, token := newTestService(t)

	first := []domain.DailyStatsInput{{
		ProjectPath:       "/a",
		Date:              "2026-08-30",
		TotalDuration:     100,
		LanguageBreakdown: map[string]int64{"go": 100},
		FilesEdited:       2,
		CommitsCount:      1,
	}}
	if _, err := service.SyncDailyStats(ctx, token, first); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	second := []domain.DailyStatsInput{{
		ProjectPath:       "/a",
		Date:              "2026-08-30T15:04:05Z",
		TotalDuration:     50,
		LanguageBreakdown: map[string]int64{"go": 20, "rust": 30},
		FilesEdited:       1,
		CommitsCount:      2,
	}}
	if _, err := service.SyncDailyStats(ctx, token, second); err != nil {
		t.Fatalf("second sync: %v", err)
	}

	identity, _ := service.AuthenticateBearerToken(ctx, token)
	project, _ := service.repo.GetProjectByUserAndPath(ctx, identity.User.ID, "/a")
	stats, err := service.repo.GetDailyStats(ctx, identity.User.ID, project.ID, "2026-08-30")
	if err != nil {
		t.Fatalf("get daily stats: %v", err)
	}
	if stats.TotalDuration != 150 {
		t.Fatalf("expected total 150, got %d", stats.TotalDuration)
	}
	if stats.LanguageBreakdown["go"] != 120 || stats.LanguageBreakdown["rust"] != 30 {
		t.Fatalf("unexpected breakdown: %v", stats.LanguageBreakdown)
	}
	if stats.FilesEdited != 3 || stats.CommitsCount != 3 {
		t.Fatalf("counters not additive: %+v", stats)
	}
}

func TestBatchFailsFastOnFirstInvalidItem(t *testing.T) {
	ctx := context.Background()
	service, token := newTestService(t)

	batch := []domain.ActivityInput{
		{ProjectPath: "/a", FilePath: "x.go", Language: "go", Timestamp: 1000, Duration: 10},
		{ProjectPath: "/a", FilePath: "", Language: "go", Timestamp: 1100, Duration: 10},
		{ProjectPath: "/a", FilePath: "z.go", Language: "go", Timestamp: 1200, Duration: 10},
	}
	_, err := service.SyncActivities(ctx, token, batch)
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	// Items before the invalid one stay committed.
	identity, _ := service.AuthenticateBearerToken(ctx, token)
	project, err := service.repo.GetProjectByUserAndPath(ctx, identity.User.ID, "/a")
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	rows, err := service.repo.ListActivitiesByProject(ctx, project.ID)
	if err != nil {
		t.Fatalf("list activities: %v", err)
	}
	if len(rows) != 1 || rows[0].FilePath != "x.go" {
		t.Fatalf("expected exactly the first item committed, got %+v", rows)
	}
}

func TestDashboardStatsSingleRawActivity(t *testing.T) {
	ctx := context.Background()
	service, token := newTestService(t)

	now := time.Now().UTC().UnixMilli()
	batch := []domain.ActivityInput{{ProjectPath: "/a", FilePath: "x.go", Language: "go", Timestamp: now, Duration: 500}}
	if _, err := service.SyncActivities(ctx, token, batch); err != nil {
		t.Fatalf("sync: %v", err)
	}

	identity, _ := service.AuthenticateBearerToken(ctx, token)
	stats, err := service.DashboardStats(ctx, identity.User.ID)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if stats.TotalTime != 500 {
		t.Fatalf("expected total 500, got %d", stats.TotalTime)
	}
	if stats.TotalProjects != 1 || stats.ActiveProjects != 1 {
		t.Fatalf("unexpected project counts: %+v", stats)
	}
	if len(stats.Languages) != 1 || stats.Languages[0].Language != "go" || stats.Languages[0].Duration != 500 {
		t.Fatalf("unexpected languages: %+v", stats.Languages)
	}
	if stats.Languages[0].Percentage != 100 {
		t.Fatalf("expected 100%%, got %f", stats.Languages[0].Percentage)
	}
	if len(stats.DailyActivity) != 1 || stats.DailyActivity[0].Duration != 500 {
		t.Fatalf("unexpected daily series: %+v", stats.DailyActivity)
	}
}

func TestDashboardFoldsRollupsAndTodayActivity(t *testing.T) {
	ctx := context.Background()
	service, token := newTestService(t)
	identity, _ := service.AuthenticateBearerToken(ctx, token)

	yesterday := time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")
	rollups := []domain.DailyStatsInput{{
		ProjectPath:       "/a",
		Date:              yesterday,
		TotalDuration:     1000,
		LanguageBreakdown: map[string]int64{"go": 700, "sql": 300},
		FilesEdited:       5,
	}}
	if _, err := service.SyncDailyStats(ctx, token, rollups); err != nil {
		t.Fatalf("sync daily: %v", err)
	}

	now := time.Now().UTC().UnixMilli()
	today := []domain.ActivityInput{{ProjectPath: "/a", FilePath: "x.go", Language: "go", Timestamp: now, Duration: 200}}
	if _, err := service.SyncActivities(ctx, token, today); err != nil {
		t.Fatalf("sync activities: %v", err)
	}

	stats, err := service.DashboardStats(ctx, identity.User.ID)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if stats.TotalTime != 1200 {
		t.Fatalf("expected total 1200, got %d", stats.TotalTime)
	}
	if len(stats.DailyActivity) != 2 {
		t.Fatalf("expected two day buckets, got %+v", stats.DailyActivity)
	}
	if stats.DailyActivity[0].Date != yesterday || stats.DailyActivity[0].Duration != 1000 {
		t.Fatalf("unexpected first bucket: %+v", stats.DailyActivity[0])
	}

	var goDuration, sqlDuration int64
	var percentageSum float64
	for _, l := range stats.Languages {
		percentageSum += l.Percentage
		switch l.Language {
		case "go":
			goDuration = l.Duration
		case "sql":
			sqlDuration = l.Duration
		}
	}
	if goDuration != 900 || sqlDuration != 300 {
		t.Fatalf("unexpected language fold: go=%d sql=%d", goDuration, sqlDuration)
	}
	if percentageSum < 99.9 || percentageSum > 100.1 {
		t.Fatalf("percentages should sum to ~100, got %f", percentageSum)
	}

	if len(stats.Projects) != 1 {
		t.Fatalf("expected one project, got %+v", stats.Projects)
	}
	if stats.Projects[0].TotalDuration != 1200 {
		t.Fatalf("expected project total 1200, got %d", stats.Projects[0].TotalDuration)
	}
	// Cold rows contribute filesEdited, hot rows one each.
	if stats.Projects[0].ActivityCount != 6 {
		t.Fatalf("expected activity count 6, got %d", stats.Projects[0].ActivityCount)
	}
	if stats.Projects[0].LastActive != now {
		t.Fatalf("expected last active %d, got %d", now, stats.Projects[0].LastActive)
	}
}

func TestDashboardEmptyUserHasZeroPercentages(t *testing.T) {
	ctx := context.Background()
	service, token := newTestService(t)
	identity, _ := service.AuthenticateBearerToken(ctx, token)

	stats, err := service.DashboardStats(ctx, identity.User.ID)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if stats.TotalTime != 0 || stats.TotalProjects != 0 || stats.ActiveProjects != 0 {
		t.Fatalf("expected empty dashboard, got %+v", stats)
	}
	if len(stats.Languages) != 0 || len(stats.Projects) != 0 || len(stats.DailyActivity) != 0 {
		t.Fatalf("expected empty slices, got %+v", stats)
	}
}

func TestProjectDetailsAggregates(t *testing.T) {
	ctx := context.Background()
	service, token := newTestService(t)
	identity, _ := service.AuthenticateBearerToken(ctx, token)

	now := time.Now().UTC().UnixMilli()
	activities := []domain.ActivityInput{
		{ProjectPath: "/a", FilePath: "x.go", Language: "go", Timestamp: now, Duration: 300, CommitHash: "c1"},
		{ProjectPath: "/a", FilePath: "y.sql", Language: "sql", Timestamp: now - 1000, Duration: 100, CommitHash: "c1"},
		{ProjectPath: "/a", FilePath: "x.go", Language: "go", Timestamp: now - 2000, Duration: 50},
	}
	if _, err := service.SyncActivities(ctx, token, activities); err != nil {
		t.Fatalf("sync activities: %v", err)
	}
	commits := []domain.CommitInput{{ProjectPath: "/a", CommitHash: "c1", Message: "init", Timestamp: now}}
	if _, err := service.SyncCommits(ctx, token, commits); err != nil {
		t.Fatalf("sync commits: %v", err)
	}

	project, _ := service.repo.GetProjectByUserAndPath(ctx, identity.User.ID, "/a")
	details, err := service.ProjectDetails(ctx, identity.User.ID, project.ID)
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	if details.TotalDuration != 450 || details.ActivityCount != 3 {
		t.Fatalf("unexpected totals: %+v", details)
	}
	if len(details.TopLanguages) != 2 || details.TopLanguages[0].Language != "go" || details.TopLanguages[0].Duration != 350 {
		t.Fatalf("unexpected top languages: %+v", details.TopLanguages)
	}
	if len(details.TopFiles) != 2 || details.TopFiles[0].FilePath != "x.go" || details.TopFiles[0].Duration != 350 {
		t.Fatalf("unexpected top files: %+v", details.TopFiles)
	}
	if len(details.Commits) != 1 {
		t.Fatalf("expected one commit, got %+v", details.Commits)
	}
	if details.Commits[0].TotalDuration != 400 || details.Commits[0].ActivityCount != 2 {
		t.Fatalf("unexpected commit summary: %+v", details.Commits[0])
	}
	if details.RecentActivities[0].FilePath != "x.go" || details.RecentActivities[0].Timestamp != now {
		t.Fatalf("recent activities not sorted newest first: %+v", details.RecentActivities[0])
	}

	// Another user cannot see the project.
	if _, err := service.ProjectDetails(ctx, identity.User.ID+100, project.ID); err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound for foreign user, got %v", err)
	}
}

func TestNormalizeDay(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2026-08-30", "2026-08-30", true},
		{"2026-08-30T23:59:59Z", "2026-08-30", true},
		{"2026-08-30T22:00:00-05:00", "2026-08-31", true},
		{"not-a-date", "", false},
	}
	for _, tc := range cases {
		got, err := normalizeDay(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Errorf("normalizeDay(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
		if !tc.ok && err == nil {
			t.Errorf("normalizeDay(%q) should fail", tc.in)
		}
	}
}
