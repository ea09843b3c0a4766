package sqlite

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Mukul-raii/Miss-Minutes/internal/domain"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"
)

type TrackerRepository struct {
	db *gorm.DB
}

func Open(path string) (*gorm.DB, error) {
	// Concurrent writers block on the sqlite lock instead of
	// surfacing SQLITE_BUSY to callers.
	return gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        path + "?_pragma=busy_timeout(10000)",
	}, &gorm.Config{})
}

func NewTrackerRepository(db *gorm.DB) *TrackerRepository {
	return &TrackerRepository{db: db}
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}

func (r *TrackerRepository) CreateUser(ctx context.Context, value domain.User) (domain.User, error) {
	m := UserModel{Email: strings.ToLower(strings.TrimSpace(value.Email)), PasswordHash: value.PasswordHash}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.User{}, err
	}
	return userFromModel(m), nil
}

func (r *TrackerRepository) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&UserModel{}).Count(&count).Error
	return count, err
}

func (r *TrackerRepository) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var m UserModel
	if err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&m).Error; err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return userFromModel(m), nil
}

func (r *TrackerRepository) GetUserByID(ctx context.Context, id uint) (domain.User, error) {
	var m UserModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return userFromModel(m), nil
}

func (r *TrackerRepository) CreateSession(ctx context.Context, value domain.AuthSession) (domain.AuthSession, error) {
	m := SessionModel{UserID: value.UserID, TokenHash: value.TokenHash, ExpiresAt: value.ExpiresAt}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.AuthSession{}, err
	}
	return domain.AuthSession{ID: m.ID, UserID: m.UserID, TokenHash: m.TokenHash, ExpiresAt: m.ExpiresAt, CreatedAt: m.CreatedAt}, nil
}

func (r *TrackerRepository) GetSessionByTokenHash(ctx context.Context, tokenHash string) (domain.AuthSession, error) {
	var m SessionModel
	if err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&m).Error; err != nil {
		return domain.AuthSession{}, mapNotFound(err)
	}
	return domain.AuthSession{ID: m.ID, UserID: m.UserID, TokenHash: m.TokenHash, ExpiresAt: m.ExpiresAt, CreatedAt: m.CreatedAt}, nil
}

func (r *TrackerRepository) DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error {
	return r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).Delete(&SessionModel{}).Error
}

func (r *TrackerRepository) CreateAPIToken(ctx context.Context, value domain.APIToken) (domain.APIToken, error) {
	m := APITokenModel{UserID: value.UserID, Name: value.Name, TokenHash: value.TokenHash, ExpiresAt: value.ExpiresAt}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.APIToken{}, err
	}
	return domain.APIToken{ID: m.ID, UserID: m.UserID, Name: m.Name, TokenHash: m.TokenHash, ExpiresAt: m.ExpiresAt, CreatedAt: m.CreatedAt}, nil
}

func (r *TrackerRepository) GetAPITokenByTokenHash(ctx context.Context, tokenHash string) (domain.APIToken, error) {
	var m APITokenModel
	if err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&m).Error; err != nil {
		return domain.APIToken{}, mapNotFound(err)
	}
	return domain.APIToken{ID: m.ID, UserID: m.UserID, Name: m.Name, TokenHash: m.TokenHash, ExpiresAt: m.ExpiresAt, CreatedAt: m.CreatedAt}, nil
}

func (r *TrackerRepository) CreateProject(ctx context.Context, value domain.Project) (domain.Project, error) {
	m := ProjectModel{UserID: value.UserID, Path: value.Path, Name: value.Name}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.Project{}, err
	}
	return projectFromModel(m), nil
}

func (r *TrackerRepository) GetProjectByUserAndPath(ctx context.Context, userID uint, path string) (domain.Project, error) {
	var m ProjectModel
	if err := r.db.WithContext(ctx).Where("user_id = ? AND path = ?", userID, path).First(&m).Error; err != nil {
		return domain.Project{}, mapNotFound(err)
	}
	return projectFromModel(m), nil
}

func (r *TrackerRepository) GetProjectByID(ctx context.Context, userID, projectID uint) (domain.Project, error) {
	var m ProjectModel
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, projectID).First(&m).Error; err != nil {
		return domain.Project{}, mapNotFound(err)
	}
	return projectFromModel(m), nil
}

func (r *TrackerRepository) ListProjectsByUser(ctx context.Context, userID uint) ([]domain.Project, error) {
	rows := make([]ProjectModel, 0)
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("updated_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.Project, 0, len(rows))
	for _, m := range rows {
		result = append(result, projectFromModel(m))
	}
	return result, nil
}

func (r *TrackerRepository) TouchProject(ctx context.Context, projectID uint) error {
	return r.db.WithContext(ctx).Model(&ProjectModel{}).Where("id = ?", projectID).
		Update("updated_at", time.Now().UTC()).Error
}

func (r *TrackerRepository) InsertActivity(ctx context.Context, value domain.ActivityLog) (domain.ActivityLog, error) {
	m := ActivityLogModel{
		ProjectID: value.ProjectID,
		FilePath:  value.FilePath,
		Language:  value.Language,
		Timestamp: value.Timestamp,
		Duration:  value.Duration,
		Editor:    value.Editor,
		CommitID:  value.CommitID,
		Branch:    value.Branch,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.ActivityLog{}, err
	}
	return activityFromModel(m), nil
}

func (r *TrackerRepository) GetFileAggregate(ctx context.Context, projectID uint, commitHash, branch, filePath string) (domain.ActivityLog, error) {
	var m ActivityLogModel
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND commit_id = ? AND branch = ? AND file_path = ?", projectID, commitHash, branch, filePath).
		First(&m).Error
	if err != nil {
		return domain.ActivityLog{}, mapNotFound(err)
	}
	return activityFromModel(m), nil
}

func (r *TrackerRepository) MergeFileAggregate(ctx context.Context, activityID uint, duration, timestamp int64) error {
	return r.db.WithContext(ctx).Model(&ActivityLogModel{}).Where("id = ?", activityID).
		Updates(map[string]any{"duration": duration, "timestamp": timestamp}).Error
}

func (r *TrackerRepository) ListActivitiesByProject(ctx context.Context, projectID uint) ([]domain.ActivityLog, error) {
	rows := make([]ActivityLogModel, 0)
	if err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Order("timestamp DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.ActivityLog, 0, len(rows))
	for _, m := range rows {
		result = append(result, activityFromModel(m))
	}
	return result, nil
}

func (r *TrackerRepository) ListActivitiesForUserSince(ctx context.Context, userID uint, sinceMs int64) ([]domain.ActivityLog, error) {
	rows := make([]ActivityLogModel, 0)
	err := r.db.WithContext(ctx).
		Joins("JOIN projects ON projects.id = activity_logs.project_id").
		Where("projects.user_id = ? AND activity_logs.timestamp >= ?", userID, sinceMs).
		Order("activity_logs.timestamp ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make([]domain.ActivityLog, 0, len(rows))
	for _, m := range rows {
		result = append(result, activityFromModel(m))
	}
	return result, nil
}

func (r *TrackerRepository) CountActivitiesByCommit(ctx context.Context, projectID uint, commitHash string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&ActivityLogModel{}).
		Where("project_id = ? AND commit_id = ?", projectID, commitHash).
		Count(&count).Error
	return count, err
}

// UpsertCommit keys on (project_id, commit_hash). Metadata fields are
// last write wins; total_duration is owned by the recomputation path
// and left untouched on update.
func (r *TrackerRepository) UpsertCommit(ctx context.Context, value domain.GitCommit) (domain.GitCommit, error) {
	var m GitCommitModel
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND commit_hash = ?", value.ProjectID, value.CommitHash).
		First(&m).Error
	switch {
	case err == nil:
		return r.updateCommitMetadata(ctx, m.ID, value)
	case errors.Is(err, gorm.ErrRecordNotFound):
		m = GitCommitModel{
			ProjectID:    value.ProjectID,
			CommitHash:   value.CommitHash,
			Message:      value.Message,
			Author:       value.Author,
			AuthorEmail:  value.AuthorEmail,
			Timestamp:    value.Timestamp,
			FilesChanged: value.FilesChanged,
			LinesAdded:   value.LinesAdded,
			LinesDeleted: value.LinesDeleted,
			Branch:       value.Branch,
		}
		if createErr := r.db.WithContext(ctx).Create(&m).Error; createErr != nil {
			// A concurrent writer can insert the same
			// (project, hash) between the lookup and the
			// create. Retry as a lookup and update instead of
			// surfacing the duplicate-key error.
			var existing GitCommitModel
			if err := r.db.WithContext(ctx).
				Where("project_id = ? AND commit_hash = ?", value.ProjectID, value.CommitHash).
				First(&existing).Error; err != nil {
				return domain.GitCommit{}, createErr
			}
			return r.updateCommitMetadata(ctx, existing.ID, value)
		}
		return commitFromModel(m), nil
	default:
		return domain.GitCommit{}, err
	}
}

func (r *TrackerRepository) updateCommitMetadata(ctx context.Context, id uint, value domain.GitCommit) (domain.GitCommit, error) {
	updates := map[string]any{
		"message":       value.Message,
		"author":        value.Author,
		"author_email":  value.AuthorEmail,
		"timestamp":     value.Timestamp,
		"files_changed": value.FilesChanged,
		"lines_added":   value.LinesAdded,
		"lines_deleted": value.LinesDeleted,
		"branch":        value.Branch,
	}
	if err := r.db.WithContext(ctx).Model(&GitCommitModel{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return domain.GitCommit{}, err
	}
	return r.getCommitByID(ctx, id)
}

func (r *TrackerRepository) getCommitByID(ctx context.Context, id uint) (domain.GitCommit, error) {
	var m GitCommitModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return domain.GitCommit{}, mapNotFound(err)
	}
	return commitFromModel(m), nil
}

func (r *TrackerRepository) GetCommitByHash(ctx context.Context, projectID uint, commitHash string) (domain.GitCommit, error) {
	var m GitCommitModel
	if err := r.db.WithContext(ctx).Where("project_id = ? AND commit_hash = ?", projectID, commitHash).First(&m).Error; err != nil {
		return domain.GitCommit{}, mapNotFound(err)
	}
	return commitFromModel(m), nil
}

func (r *TrackerRepository) AddCommitDuration(ctx context.Context, commitID uint, delta int64) error {
	return r.db.WithContext(ctx).Model(&GitCommitModel{}).Where("id = ?", commitID).
		Update("total_duration", gorm.Expr("total_duration + ?", delta)).Error
}

func (r *TrackerRepository) SetCommitDuration(ctx context.Context, commitID uint, total int64) error {
	return r.db.WithContext(ctx).Model(&GitCommitModel{}).Where("id = ?", commitID).
		Update("total_duration", total).Error
}

func (r *TrackerRepository) ListCommitsByProject(ctx context.Context, projectID uint) ([]domain.GitCommit, error) {
	rows := make([]GitCommitModel, 0)
	if err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Order("timestamp DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.GitCommit, 0, len(rows))
	for _, m := range rows {
		result = append(result, commitFromModel(m))
	}
	return result, nil
}

func (r *TrackerRepository) SumActivityByCommit(ctx context.Context, projectID uint) (map[string]int64, error) {
	type row struct {
		CommitID string
		Total    int64
	}
	rows := make([]row, 0)
	err := r.db.WithContext(ctx).Raw(`
SELECT commit_id, SUM(duration) AS total
FROM activity_logs
WHERE project_id = ? AND commit_id IS NOT NULL
GROUP BY commit_id
`, projectID).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make(map[string]int64, len(rows))
	for _, m := range rows {
		result[m.CommitID] = m.Total
	}
	return result, nil
}

func (r *TrackerRepository) GetDailyStats(ctx context.Context, userID, projectID uint, day string) (domain.DailyStats, error) {
	var m DailyStatsModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND project_id = ? AND day = ?", userID, projectID, day).
		First(&m).Error
	if err != nil {
		return domain.DailyStats{}, mapNotFound(err)
	}
	return dailyFromModel(m), nil
}

func (r *TrackerRepository) CreateDailyStats(ctx context.Context, value domain.DailyStats) (domain.DailyStats, error) {
	m := DailyStatsModel{
		UserID:            value.UserID,
		ProjectID:         value.ProjectID,
		Day:               value.Day,
		TotalDuration:     value.TotalDuration,
		LanguageBreakdown: datatypes.NewJSONType(value.LanguageBreakdown),
		FilesEdited:       value.FilesEdited,
		CommitsCount:      value.CommitsCount,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.DailyStats{}, err
	}
	return dailyFromModel(m), nil
}

func (r *TrackerRepository) UpdateDailyStats(ctx context.Context, value domain.DailyStats) error {
	return r.db.WithContext(ctx).Model(&DailyStatsModel{}).Where("id = ?", value.ID).
		Updates(map[string]any{
			"total_duration":     value.TotalDuration,
			"language_breakdown": datatypes.NewJSONType(value.LanguageBreakdown),
			"files_edited":       value.FilesEdited,
			"commits_count":      value.CommitsCount,
		}).Error
}

func (r *TrackerRepository) ListDailyStatsSince(ctx context.Context, userID uint, fromDay string) ([]domain.DailyStats, error) {
	rows := make([]DailyStatsModel, 0)
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND day >= ?", userID, fromDay).
		Order("day ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make([]domain.DailyStats, 0, len(rows))
	for _, m := range rows {
		result = append(result, dailyFromModel(m))
	}
	return result, nil
}

func (r *TrackerRepository) CreateAuditLog(ctx context.Context, value domain.AuditLog) error {
	m := AuditLogModel{ActorUserID: value.ActorUserID, Action: value.Action, TargetType: value.TargetType, TargetID: value.TargetID, Metadata: value.Metadata}
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *TrackerRepository) ListAuditLogs(ctx context.Context, actorUserID uint, limit int) ([]domain.AuditRecord, error) {
	type row struct {
		ID             uint
		ActorUserID    *uint
		ActorUserEmail string
		Action         string
		TargetType     string
		TargetID       *uint
		Metadata       string
		CreatedAt      time.Time
	}
	rows := make([]row, 0)
	err := r.db.WithContext(ctx).Raw(`
SELECT a.id,
       a.actor_user_id,
       COALESCE(u.email, '') AS actor_user_email,
       a.action,
       a.target_type,
       a.target_id,
       a.metadata,
       a.created_at
FROM audit_logs a
LEFT JOIN users u ON u.id = a.actor_user_id
WHERE a.actor_user_id = ?
ORDER BY a.id DESC
LIMIT ?
`, actorUserID, limit).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make([]domain.AuditRecord, 0, len(rows))
	for _, m := range rows {
		result = append(result, domain.AuditRecord{
			ID:             m.ID,
			ActorUserID:    m.ActorUserID,
			ActorUserEmail: m.ActorUserEmail,
			Action:         m.Action,
			TargetType:     m.TargetType,
			TargetID:       m.TargetID,
			Metadata:       m.Metadata,
			CreatedAt:      m.CreatedAt,
		})
	}
	return result, nil
}

func userFromModel(m UserModel) domain.User {
	return domain.User{ID: m.ID, Email: m.Email, PasswordHash: m.PasswordHash, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
}

func projectFromModel(m ProjectModel) domain.Project {
	return domain.Project{ID: m.ID, UserID: m.UserID, Path: m.Path, Name: m.Name, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
}

func activityFromModel(m ActivityLogModel) domain.ActivityLog {
	return domain.ActivityLog{
		ID:        m.ID,
		ProjectID: m.ProjectID,
		FilePath:  m.FilePath,
		Language:  m.Language,
		Timestamp: m.Timestamp,
		Duration:  m.Duration,
		Editor:    m.Editor,
		CommitID:  m.CommitID,
		Branch:    m.Branch,
		CreatedAt: m.CreatedAt,
	}
}

func commitFromModel(m GitCommitModel) domain.GitCommit {
	return domain.GitCommit{
		ID:            m.ID,
		ProjectID:     m.ProjectID,
		CommitHash:    m.CommitHash,
		Message:       m.Message,
		Author:        m.Author,
		AuthorEmail:   m.AuthorEmail,
		Timestamp:     m.Timestamp,
		TotalDuration: m.TotalDuration,
		FilesChanged:  m.FilesChanged,
		LinesAdded:    m.LinesAdded,
		LinesDeleted:  m.LinesDeleted,
		Branch:        m.Branch,
		CreatedAt:     m.CreatedAt,
	}
}

func dailyFromModel(m DailyStatsModel) domain.DailyStats {
	return domain.DailyStats{
		ID:                m.ID,
		UserID:            m.UserID,
		ProjectID:         m.ProjectID,
		Day:               m.Day,
		TotalDuration:     m.TotalDuration,
		LanguageBreakdown: m.LanguageBreakdown.Data(),
		FilesEdited:       m.FilesEdited,
		CommitsCount:      m.CommitsCount,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}
