package sqlite

import (
	"time"

	"gorm.io/datatypes"
)

type UserModel struct {
	ID           uint   `gorm:"primaryKey"`
	Email        string `gorm:"not null;uniqueIndex"`
	PasswordHash string `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (UserModel) TableName() string { return "users" }

type SessionModel struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"not null;index"`
	TokenHash string `gorm:"not null;uniqueIndex"`
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (SessionModel) TableName() string { return "sessions" }

type APITokenModel struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"not null;index"`
	Name      string `gorm:"not null"`
	TokenHash string `gorm:"not null;uniqueIndex"`
	ExpiresAt *time.Time
	CreatedAt time.Time
}

func (APITokenModel) TableName() string { return "api_tokens" }

type ProjectModel struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"not null;index:idx_user_path,unique"`
	Path      string `gorm:"not null;index:idx_user_path,unique"`
	Name      string `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ProjectModel) TableName() string { return "projects" }

// The aggregation key index carries nullable columns; SQLite treats
// NULLs as distinct there, so raw rows (nil commit/branch) never
// collide while pre-aggregated rows stay unique per file.
type ActivityLogModel struct {
	ID        uint   `gorm:"primaryKey"`
	ProjectID uint   `gorm:"not null;index:idx_file_agg,unique"`
	FilePath  string `gorm:"not null;index:idx_file_agg,unique"`
	Language  string `gorm:"not null;index"`
	Timestamp int64  `gorm:"not null;index"`
	Duration  int64  `gorm:"not null;default:0"`
	Editor    *string
	CommitID  *string `gorm:"index:idx_file_agg,unique"`
	Branch    *string `gorm:"index:idx_file_agg,unique"`
	CreatedAt time.Time
}

func (ActivityLogModel) TableName() string { return "activity_logs" }

type GitCommitModel struct {
	ID            uint   `gorm:"primaryKey"`
	ProjectID     uint   `gorm:"not null;index:idx_project_hash,unique"`
	CommitHash    string `gorm:"not null;index:idx_project_hash,unique"`
	Message       string
	Author        string
	AuthorEmail   string
	Timestamp     int64 `gorm:"not null;index"`
	TotalDuration int64 `gorm:"not null;default:0"`
	FilesChanged  int   `gorm:"not null;default:0"`
	LinesAdded    int   `gorm:"not null;default:0"`
	LinesDeleted  int   `gorm:"not null;default:0"`
	Branch        *string
	CreatedAt     time.Time
}

func (GitCommitModel) TableName() string { return "git_commits" }

type DailyStatsModel struct {
	ID                uint   `gorm:"primaryKey"`
	UserID            uint   `gorm:"not null;index:idx_user_project_day,unique"`
	ProjectID         uint   `gorm:"not null;index:idx_user_project_day,unique"`
	Day               string `gorm:"not null;index;index:idx_user_project_day,unique"`
	TotalDuration     int64  `gorm:"not null;default:0"`
	LanguageBreakdown datatypes.JSONType[map[string]int64]
	FilesEdited       int `gorm:"not null;default:0"`
	CommitsCount      int `gorm:"not null;default:0"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (DailyStatsModel) TableName() string { return "daily_stats" }

type AuditLogModel struct {
	ID          uint `gorm:"primaryKey"`
	ActorUserID *uint
	Action      string `gorm:"not null;index"`
	TargetType  string `gorm:"not null;index"`
	TargetID    *uint
	Metadata    string
	CreatedAt   time.Time
}

func (AuditLogModel) TableName() string { return "audit_logs" }
