package application

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Mukul-raii/Miss-Minutes/internal/domain"
	"github.com/google/uuid"
)

const fallbackProjectName = "Unknown Project"

// TrackerService carries the ingestion and aggregation rules: project
// auto-creation, activity dedup/merge, commit duration rollups and the
// dashboard read path. All writes inside one batch run sequentially so
// later items observe earlier merges.
type TrackerService struct {
	repo domain.TrackerRepository

	mu           sync.Mutex
	projectLocks map[uint]*sync.Mutex
}

func NewTrackerService(repo domain.TrackerRepository) *TrackerService {
	return &TrackerService{
		repo:         repo,
		projectLocks: make(map[uint]*sync.Mutex),
	}
}

// ResolveProject maps (user, path) to its canonical project, creating
// one on first sight. A concurrent duplicate create is retried as a
// lookup rather than surfaced.
func (s *TrackerService) ResolveProject(ctx context.Context, userID uint, path string) (domain.Project, error) {
	if strings.TrimSpace(path) == "" {
		return domain.Project{}, domain.NewValidationError("projectPath", "required")
	}

	project, err := s.repo.GetProjectByUserAndPath(ctx, userID, path)
	if err == nil {
		return project, nil
	}
	if err != domain.ErrNotFound {
		return domain.Project{}, err
	}

	created, err := s.repo.CreateProject(ctx, domain.Project{
		UserID: userID,
		Path:   path,
		Name:   projectNameFromPath(path),
	})
	if err == nil {
		return created, nil
	}

	// Unique constraint on (user_id, path) means someone else won the
	// race; the row must exist now.
	existing, lookupErr := s.repo.GetProjectByUserAndPath(ctx, userID, path)
	if lookupErr != nil {
		return domain.Project{}, err
	}
	return existing, nil
}

// SyncActivities ingests raw per-event activity rows. This path has no
// dedup key: a redelivered batch produces duplicate rows, matching the
// tracked client's at-most-once delivery assumption. Use the
// file-activity path for idempotent ingestion.
func (s *TrackerService) SyncActivities(ctx context.Context, token string, events []domain.ActivityInput) (domain.SyncResponse, error) {
	user, err := s.authenticateAPIToken(ctx, token)
	if err != nil {
		return domain.SyncResponse{}, err
	}

	synced := 0
	for _, event := range events {
		if err := validateActivity(event); err != nil {
			return domain.SyncResponse{}, err
		}

		project, err := s.ResolveProject(ctx, user.ID, event.ProjectPath)
		if err != nil {
			return domain.SyncResponse{}, err
		}

		row := domain.ActivityLog{
			ProjectID: project.ID,
			FilePath:  event.FilePath,
			Language:  event.Language,
			Timestamp: event.Timestamp,
			Duration:  event.Duration,
			Editor:    optional(event.Editor),
			CommitID:  optional(event.CommitHash),
		}
		if _, err := s.repo.InsertActivity(ctx, row); err != nil {
			return domain.SyncResponse{}, err
		}
		if err := s.repo.TouchProject(ctx, project.ID); err != nil {
			return domain.SyncResponse{}, err
		}
		synced++
	}

	s.auditSync(ctx, user.ID, "sync.activities", synced)
	return syncResponse(synced, "activities"), nil
}

// SyncFileActivities ingests pre-aggregated per-file summaries keyed by
// (project, commit, branch, file). Existing rows merge additively with
// the earliest timestamp kept; only the incoming delta is applied to
// the owning commit's running total, never the merged sum.
func (s *TrackerService) SyncFileActivities(ctx context.Context, token string, items []domain.FileActivityInput) (domain.SyncResponse, error) {
	user, err := s.authenticateAPIToken(ctx, token)
	if err != nil {
		return domain.SyncResponse{}, err
	}

	synced := 0
	for _, item := range items {
		if err := validateFileActivity(item); err != nil {
			return domain.SyncResponse{}, err
		}

		project, err := s.ResolveProject(ctx, user.ID, item.ProjectPath)
		if err != nil {
			return domain.SyncResponse{}, err
		}

		delta := item.TotalDuration
		existing, err := s.repo.GetFileAggregate(ctx, project.ID, item.CommitHash, item.Branch, item.FilePath)
		switch err {
		case nil:
			merged := existing.Duration + item.TotalDuration
			earliest := existing.Timestamp
			if item.FirstActivityAt < earliest {
				earliest = item.FirstActivityAt
			}
			if err := s.repo.MergeFileAggregate(ctx, existing.ID, merged, earliest); err != nil {
				return domain.SyncResponse{}, err
			}
		case domain.ErrNotFound:
			commitHash := item.CommitHash
			branch := item.Branch
			row := domain.ActivityLog{
				ProjectID: project.ID,
				FilePath:  item.FilePath,
				Language:  item.Language,
				Timestamp: item.FirstActivityAt,
				Duration:  item.TotalDuration,
				Editor:    optional(item.Editor),
				CommitID:  &commitHash,
				Branch:    &branch,
			}
			if _, err := s.repo.InsertActivity(ctx, row); err != nil {
				return domain.SyncResponse{}, err
			}
		default:
			return domain.SyncResponse{}, err
		}

		// Cheap incremental update; the full recomputation in
		// RecomputeCommitDurations remains the source of truth.
		commit, err := s.repo.GetCommitByHash(ctx, project.ID, item.CommitHash)
		if err == nil {
			if err := s.repo.AddCommitDuration(ctx, commit.ID, delta); err != nil {
				return domain.SyncResponse{}, err
			}
		} else if err != domain.ErrNotFound {
			return domain.SyncResponse{}, err
		}

		if err := s.repo.TouchProject(ctx, project.ID); err != nil {
			return domain.SyncResponse{}, err
		}
		synced++
	}

	s.auditSync(ctx, user.ID, "sync.file_activities", synced)
	return syncResponse(synced, "file activities"), nil
}

// SyncCommits upserts commit metadata (last write wins) and then runs
// the authoritative duration recomputation for every touched project.
func (s *TrackerService) SyncCommits(ctx context.Context, token string, commits []domain.CommitInput) (domain.SyncResponse, error) {
	user, err := s.authenticateAPIToken(ctx, token)
	if err != nil {
		return domain.SyncResponse{}, err
	}

	synced := 0
	touched := make(map[uint]struct{})
	for _, commit := range commits {
		if err := validateCommit(commit); err != nil {
			return domain.SyncResponse{}, err
		}

		project, err := s.ResolveProject(ctx, user.ID, commit.ProjectPath)
		if err != nil {
			return domain.SyncResponse{}, err
		}

		row := domain.GitCommit{
			ProjectID:    project.ID,
			CommitHash:   commit.CommitHash,
			Message:      commit.Message,
			Author:       commit.Author,
			AuthorEmail:  commit.AuthorEmail,
			Timestamp:    commit.Timestamp,
			FilesChanged: commit.FilesChanged,
			LinesAdded:   commit.LinesAdded,
			LinesDeleted: commit.LinesDeleted,
			Branch:       optional(commit.Branch),
		}
		if _, err := s.repo.UpsertCommit(ctx, row); err != nil {
			return domain.SyncResponse{}, err
		}
		if err := s.repo.TouchProject(ctx, project.ID); err != nil {
			return domain.SyncResponse{}, err
		}
		touched[project.ID] = struct{}{}
		synced++
	}

	for projectID := range touched {
		if err := s.RecomputeCommitDurations(ctx, projectID); err != nil {
			return domain.SyncResponse{}, err
		}
	}

	s.auditSync(ctx, user.ID, "sync.commits", synced)
	return syncResponse(synced, "commits"), nil
}

// RecomputeCommitDurations overwrites every commit's total with the
// exact sum of activity rows attributed to its hash. Safe to call
// repeatedly; recomputations for the same project are serialized so
// two passes cannot interleave partial sums.
func (s *TrackerService) RecomputeCommitDurations(ctx context.Context, projectID uint) error {
	lock := s.lockFor(projectID)
	lock.Lock()
	defer lock.Unlock()

	sums, err := s.repo.SumActivityByCommit(ctx, projectID)
	if err != nil {
		return err
	}
	commits, err := s.repo.ListCommitsByProject(ctx, projectID)
	if err != nil {
		return err
	}
	for _, commit := range commits {
		if err := s.repo.SetCommitDuration(ctx, commit.ID, sums[commit.CommitHash]); err != nil {
			return err
		}
	}
	return nil
}

// SyncDailyStats merges externally pre-aggregated per-day summaries.
// Clients send deltas: counters increment on re-sync and the language
// breakdown merges key by key, so the rollup is additive rather than
// last-write-wins.
func (s *TrackerService) SyncDailyStats(ctx context.Context, token string, stats []domain.DailyStatsInput) (domain.SyncResponse, error) {
	user, err := s.authenticateAPIToken(ctx, token)
	if err != nil {
		return domain.SyncResponse{}, err
	}

	synced := 0
	for _, entry := range stats {
		if err := validateDailyStats(entry); err != nil {
			return domain.SyncResponse{}, err
		}

		project, err := s.ResolveProject(ctx, user.ID, entry.ProjectPath)
		if err != nil {
			return domain.SyncResponse{}, err
		}

		day, err := normalizeDay(entry.Date)
		if err != nil {
			return domain.SyncResponse{}, err
		}

		existing, err := s.repo.GetDailyStats(ctx, user.ID, project.ID, day)
		switch err {
		case nil:
			existing.TotalDuration += entry.TotalDuration
			existing.FilesEdited += entry.FilesEdited
			existing.CommitsCount += entry.CommitsCount
			if existing.LanguageBreakdown == nil {
				existing.LanguageBreakdown = make(map[string]int64)
			}
			for language, duration := range entry.LanguageBreakdown {
				existing.LanguageBreakdown[language] += duration
			}
			if err := s.repo.UpdateDailyStats(ctx, existing); err != nil {
				return domain.SyncResponse{}, err
			}
		case domain.ErrNotFound:
			breakdown := make(map[string]int64, len(entry.LanguageBreakdown))
			for language, duration := range entry.LanguageBreakdown {
				breakdown[language] = duration
			}
			row := domain.DailyStats{
				UserID:            user.ID,
				ProjectID:         project.ID,
				Day:               day,
				TotalDuration:     entry.TotalDuration,
				LanguageBreakdown: breakdown,
				FilesEdited:       entry.FilesEdited,
				CommitsCount:      entry.CommitsCount,
			}
			if _, err := s.repo.CreateDailyStats(ctx, row); err != nil {
				return domain.SyncResponse{}, err
			}
		default:
			return domain.SyncResponse{}, err
		}

		if err := s.repo.TouchProject(ctx, project.ID); err != nil {
			return domain.SyncResponse{}, err
		}
		synced++
	}

	s.auditSync(ctx, user.ID, "sync.daily_stats", synced)
	return syncResponse(synced, "daily stats"), nil
}

// ListAuditLogs returns only the rows the requesting user produced.
func (s *TrackerService) ListAuditLogs(ctx context.Context, actorUserID uint, limit int) ([]domain.AuditRecord, error) {
	if limit <= 0 {
		limit = 200
	}
	if limit > 2000 {
		limit = 2000
	}
	return s.repo.ListAuditLogs(ctx, actorUserID, limit)
}

func (s *TrackerService) lockFor(projectID uint) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.projectLocks[projectID]
	if !ok {
		lock = &sync.Mutex{}
		s.projectLocks[projectID] = lock
	}
	return lock
}

func (s *TrackerService) auditSync(ctx context.Context, userID uint, action string, count int) {
	batchID := uuid.NewString()
	_ = s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ActorUserID: &userID,
		Action:      action,
		TargetType:  "batch",
		Metadata:    fmt.Sprintf("batch=%s count=%d", batchID, count),
	})
}

func syncResponse(count int, noun string) domain.SyncResponse {
	return domain.SyncResponse{
		Success:     true,
		Message:     fmt.Sprintf("Synced %d %s", count, noun),
		SyncedCount: count,
	}
}

func validateActivity(in domain.ActivityInput) error {
	switch {
	case strings.TrimSpace(in.ProjectPath) == "":
		return domain.NewValidationError("projectPath", "required")
	case strings.TrimSpace(in.FilePath) == "":
		return domain.NewValidationError("filePath", "required")
	case strings.TrimSpace(in.Language) == "":
		return domain.NewValidationError("language", "required")
	case in.Timestamp <= 0:
		return domain.NewValidationError("timestamp", "must be a positive epoch millisecond value")
	case in.Duration < 0:
		return domain.NewValidationError("duration", "must be non-negative")
	}
	return nil
}

func validateFileActivity(in domain.FileActivityInput) error {
	switch {
	case strings.TrimSpace(in.ProjectPath) == "":
		return domain.NewValidationError("projectPath", "required")
	case strings.TrimSpace(in.CommitHash) == "":
		return domain.NewValidationError("commitHash", "required")
	case strings.TrimSpace(in.FilePath) == "":
		return domain.NewValidationError("filePath", "required")
	case strings.TrimSpace(in.Language) == "":
		return domain.NewValidationError("language", "required")
	case in.TotalDuration < 0:
		return domain.NewValidationError("totalDuration", "must be non-negative")
	case in.FirstActivityAt <= 0:
		return domain.NewValidationError("firstActivityAt", "must be a positive epoch millisecond value")
	}
	return nil
}

func validateCommit(in domain.CommitInput) error {
	switch {
	case strings.TrimSpace(in.ProjectPath) == "":
		return domain.NewValidationError("projectPath", "required")
	case strings.TrimSpace(in.CommitHash) == "":
		return domain.NewValidationError("commitHash", "required")
	case in.Timestamp <= 0:
		return domain.NewValidationError("timestamp", "must be a positive epoch millisecond value")
	}
	return nil
}

func validateDailyStats(in domain.DailyStatsInput) error {
	switch {
	case strings.TrimSpace(in.ProjectPath) == "":
		return domain.NewValidationError("projectPath", "required")
	case strings.TrimSpace(in.Date) == "":
		return domain.NewValidationError("date", "required")
	case in.TotalDuration < 0:
		return domain.NewValidationError("totalDuration", "must be non-negative")
	}
	return nil
}

// normalizeDay accepts a YYYY-MM-DD day or any RFC3339 instant and
// truncates it to its UTC calendar day.
func normalizeDay(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if t, err := time.Parse("2006-01-02", trimmed); err == nil {
		return t.UTC().Format("2006-01-02"), nil
	}
	if t, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return t.UTC().Format("2006-01-02"), nil
	}
	return "", domain.NewValidationError("date", "must be YYYY-MM-DD or RFC3339")
}

func projectNameFromPath(path string) string {
	segments := strings.Split(strings.TrimRight(path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			return segments[i]
		}
	}
	return fallbackProjectName
}

func optional(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}
