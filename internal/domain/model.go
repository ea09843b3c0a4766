package domain

import "time"

// All wire timestamps are millisecond-precision Unix epoch values.

type User struct {
	ID           uint
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type AuthSession struct {
	ID        uint
	UserID    uint
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

type APIToken struct {
	ID        uint
	UserID    uint
	Name      string
	TokenHash string
	ExpiresAt *time.Time
	CreatedAt time.Time
}

type Project struct {
	ID        uint
	UserID    uint
	Path      string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ActivityLog is tracked time on one file. CommitID is the commit hash
// string, not a foreign key, so activity can land before the commit is
// synced. Raw rows carry nil CommitID/Branch; pre-aggregated rows hold
// at most one row per (ProjectID, CommitID, Branch, FilePath).
type ActivityLog struct {
	ID        uint
	ProjectID uint
	FilePath  string
	Language  string
	Timestamp int64
	Duration  int64
	Editor    *string
	CommitID  *string
	Branch    *string
	CreatedAt time.Time
}

// GitCommit metadata is last-write-wins on re-sync. TotalDuration is
// derived from activity rows and never taken from client input.
type GitCommit struct {
	ID            uint
	ProjectID     uint
	CommitHash    string
	Message       string
	Author        string
	AuthorEmail   string
	Timestamp     int64
	TotalDuration int64
	FilesChanged  int
	LinesAdded    int
	LinesDeleted  int
	Branch        *string
	CreatedAt     time.Time
}

// DailyStats is a pre-aggregated per-(user, project, day) rollup. Day
// is a UTC calendar day in YYYY-MM-DD form. Numeric fields are additive
// across syncs; LanguageBreakdown merges per key.
type DailyStats struct {
	ID                uint
	UserID            uint
	ProjectID         uint
	Day               string
	TotalDuration     int64
	LanguageBreakdown map[string]int64
	FilesEdited       int
	CommitsCount      int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type ActivityInput struct {
	ProjectPath string `json:"projectPath"`
	FilePath    string `json:"filePath"`
	Language    string `json:"language"`
	Timestamp   int64  `json:"timestamp"`
	Duration    int64  `json:"duration"`
	Editor      string `json:"editor"`
	CommitHash  string `json:"commitHash"`
}

type FileActivityInput struct {
	ProjectPath     string `json:"projectPath"`
	CommitHash      string `json:"commitHash"`
	Branch          string `json:"branch"`
	FilePath        string `json:"filePath"`
	Language        string `json:"language"`
	TotalDuration   int64  `json:"totalDuration"`
	ActivityCount   int    `json:"activityCount"`
	FirstActivityAt int64  `json:"firstActivityAt"`
	LastActivityAt  int64  `json:"lastActivityAt"`
	Editor          string `json:"editor"`
}

type CommitInput struct {
	ProjectPath  string `json:"projectPath"`
	CommitHash   string `json:"commitHash"`
	Message      string `json:"message"`
	Author       string `json:"author"`
	AuthorEmail  string `json:"authorEmail"`
	Timestamp    int64  `json:"timestamp"`
	FilesChanged int    `json:"filesChanged"`
	LinesAdded   int    `json:"linesAdded"`
	LinesDeleted int    `json:"linesDeleted"`
	Branch       string `json:"branch"`
}

type DailyStatsInput struct {
	ProjectPath       string           `json:"projectPath"`
	Date              string           `json:"date"`
	TotalDuration     int64            `json:"totalDuration"`
	LanguageBreakdown map[string]int64 `json:"languageBreakdown"`
	FilesEdited       int              `json:"filesEdited"`
	CommitsCount      int              `json:"commitCount"`
}

type SyncResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	SyncedCount int    `json:"syncedCount"`
}

type ProjectStat struct {
	ID            uint   `json:"id"`
	Name          string `json:"name"`
	Path          string `json:"path"`
	TotalDuration int64  `json:"totalDuration"`
	ActivityCount int    `json:"activityCount"`
	LastActive    int64  `json:"lastActive"`
}

type LanguageStat struct {
	Language   string  `json:"language"`
	Duration   int64   `json:"duration"`
	Percentage float64 `json:"percentage"`
}

type DailyActivity struct {
	Date     string `json:"date"`
	Duration int64  `json:"duration"`
}

type FileStat struct {
	FilePath string `json:"filePath"`
	Duration int64  `json:"duration"`
}

type DashboardStats struct {
	TotalTime      int64           `json:"totalTime"`
	TotalProjects  int             `json:"totalProjects"`
	ActiveProjects int             `json:"activeProjects"`
	Projects       []ProjectStat   `json:"projects"`
	Languages      []LanguageStat  `json:"languages"`
	DailyActivity  []DailyActivity `json:"dailyActivity"`
}

type CommitSummary struct {
	ID            uint    `json:"id"`
	CommitHash    string  `json:"commitHash"`
	Message       string  `json:"message"`
	Author        string  `json:"author"`
	AuthorEmail   string  `json:"authorEmail"`
	Timestamp     int64   `json:"timestamp"`
	TotalDuration int64   `json:"totalDuration"`
	FilesChanged  int     `json:"filesChanged"`
	LinesAdded    int     `json:"linesAdded"`
	LinesDeleted  int     `json:"linesDeleted"`
	Branch        *string `json:"branch"`
	ActivityCount int     `json:"activityCount"`
}

type ProjectDetails struct {
	ID               uint            `json:"id"`
	Name             string          `json:"name"`
	Path             string          `json:"path"`
	TotalDuration    int64           `json:"totalDuration"`
	ActivityCount    int             `json:"activityCount"`
	TopLanguages     []LanguageStat  `json:"topLanguages"`
	TopFiles         []FileStat      `json:"topFiles"`
	DailyActivity    []DailyActivity `json:"dailyActivity"`
	RecentActivities []ActivityLog   `json:"recentActivities"`
	Commits          []CommitSummary `json:"commits"`
}

type AuditLog struct {
	ID          uint
	ActorUserID *uint
	Action      string
	TargetType  string
	TargetID    *uint
	Metadata    string
	CreatedAt   time.Time
}

type AuditRecord struct {
	ID             uint
	ActorUserID    *uint
	ActorUserEmail string
	Action         string
	TargetType     string
	TargetID       *uint
	Metadata       string
	CreatedAt      time.Time
}

type Identity struct {
	User User
}
