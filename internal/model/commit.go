package model

import "time"

// Commit records one versioned-store commit that went through this service,
// enriching the store's own log with hub authorship. The store remains the
// source of truth for history; rows here may lag it after a crash.
type Commit struct {
	ID           int64     `json:"id" gorm:"primaryKey"`
	CommitID     string    `json:"commit_id" gorm:"not null;index"`
	RepositoryID int64     `json:"repository_id" gorm:"not null;index"`
	RepoType     RepoType  `json:"repo_type" gorm:"not null"`
	Branch       string    `json:"branch" gorm:"not null;default:main"`
	AuthorID     *int64    `json:"author_id"`
	Username     string    `json:"username"`
	Message      string    `json:"message"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName returns the database table name.
func (Commit) TableName() string {
	return "commits"
}
