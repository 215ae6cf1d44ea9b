package model

import "time"

// File is the catalog row for one path in a repository. Rows are never
// hard-deleted while LFS history may still point at them; IsDeleted flips
// instead, and a later upload of the same content resurrects the row.
//
// SHA256 holds the Git blob SHA-1 of the content when LFS is false and the
// content's SHA-256 when LFS is true.
type File struct {
	ID           int64     `json:"id" gorm:"primaryKey"`
	RepositoryID int64     `json:"repository_id" gorm:"not null;uniqueIndex:idx_files_repo_path;index"`
	PathInRepo   string    `json:"path_in_repo" gorm:"not null;uniqueIndex:idx_files_repo_path"`
	Size         int64     `json:"size" gorm:"default:0"`
	SHA256       string    `json:"sha256" gorm:"column:sha256;index"`
	LFS          bool      `json:"lfs" gorm:"column:lfs;default:false"`
	IsDeleted    bool      `json:"is_deleted" gorm:"default:false;index"`
	OwnerID      int64     `json:"owner_id" gorm:"not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name.
func (File) TableName() string {
	return "files"
}
