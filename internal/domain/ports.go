package domain

import "context"

// TrackerRepository is the persistence port. Implementations map
// storage-level "record not found" conditions to ErrNotFound and leave
// unique-constraint violations to surface as-is so the service can
// retry creates as lookups.
type TrackerRepository interface {
	// Users and auth.
	CreateUser(ctx context.Context, value User) (User, error)
	CountUsers(ctx context.Context) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, id uint) (User, error)
	CreateSession(ctx context.Context, value AuthSession) (AuthSession, error)
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (AuthSession, error)
	DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error
	CreateAPIToken(ctx context.Context, value APIToken) (APIToken, error)
	GetAPITokenByTokenHash(ctx context.Context, tokenHash string) (APIToken, error)

	// Projects.
	CreateProject(ctx context.Context, value Project) (Project, error)
	GetProjectByUserAndPath(ctx context.Context, userID uint, path string) (Project, error)
	GetProjectByID(ctx context.Context, userID, projectID uint) (Project, error)
	ListProjectsByUser(ctx context.Context, userID uint) ([]Project, error)
	TouchProject(ctx context.Context, projectID uint) error

	// Activity rows.
	InsertActivity(ctx context.Context, value ActivityLog) (ActivityLog, error)
	GetFileAggregate(ctx context.Context, projectID uint, commitHash, branch, filePath string) (ActivityLog, error)
	MergeFileAggregate(ctx context.Context, activityID uint, duration, timestamp int64) error
	ListActivitiesByProject(ctx context.Context, projectID uint) ([]ActivityLog, error)
	ListActivitiesForUserSince(ctx context.Context, userID uint, sinceMs int64) ([]ActivityLog, error)
	CountActivitiesByCommit(ctx context.Context, projectID uint, commitHash string) (int64, error)

	// Commits.
	UpsertCommit(ctx context.Context, value GitCommit) (GitCommit, error)
	GetCommitByHash(ctx context.Context, projectID uint, commitHash string) (GitCommit, error)
	AddCommitDuration(ctx context.Context, commitID uint, delta int64) error
	SetCommitDuration(ctx context.Context, commitID uint, total int64) error
	ListCommitsByProject(ctx context.Context, projectID uint) ([]GitCommit, error)
	// SumActivityByCommit returns commit hash -> summed activity
	// duration for every attributed activity row in the project.
	SumActivityByCommit(ctx context.Context, projectID uint) (map[string]int64, error)

	// Daily rollups.
	GetDailyStats(ctx context.Context, userID, projectID uint, day string) (DailyStats, error)
	CreateDailyStats(ctx context.Context, value DailyStats) (DailyStats, error)
	UpdateDailyStats(ctx context.Context, value DailyStats) error
	ListDailyStatsSince(ctx context.Context, userID uint, fromDay string) ([]DailyStats, error)

	// Audit.
	CreateAuditLog(ctx context.Context, value AuditLog) error
	ListAuditLogs(ctx context.Context, actorUserID uint, limit int) ([]AuditRecord, error)
}
