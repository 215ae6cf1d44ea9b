package model

import "time"

// Wire types for the admin surface. All requests are gated by the
// X-Admin-Token header; none of these are HF-compatible shapes.

// AdminCreateUserRequest creates a user or organization row.
type AdminCreateUserRequest struct {
	Username          string  `json:"username"`
	Email             *string `json:"email,omitempty"`
	IsOrg             bool    `json:"is_org"`
	PrivateQuotaBytes *int64  `json:"private_quota_bytes,omitempty"`
	PublicQuotaBytes  *int64  `json:"public_quota_bytes,omitempty"`
}

// AdminQuotaRequest updates one namespace's quota limits. Nil leaves the
// current value; -1 clears the limit (unlimited).
type AdminQuotaRequest struct {
	PrivateQuotaBytes *int64 `json:"private_quota_bytes,omitempty"`
	PublicQuotaBytes  *int64 `json:"public_quota_bytes,omitempty"`
}

// AdminUserView is a user row plus humanized usage.
type AdminUserView struct {
	User
	PrivateUsed string `json:"private_used"`
	PublicUsed  string `json:"public_used"`
}

// AdminRepoView is a repository row plus humanized usage.
type AdminRepoView struct {
	Repository
	Used string `json:"used"`
}

// AdminStats is the response of GET /api/admin/stats.
type AdminStats struct {
	Users           int64            `json:"users"`
	Organizations   int64            `json:"organizations"`
	Repositories    map[string]int64 `json:"repositories"`
	TotalUsedBytes  int64            `json:"total_used_bytes"`
	TotalUsed       string           `json:"total_used"`
	LFSObjectsBytes int64            `json:"lfs_objects_bytes"`
	LFSObjects      string           `json:"lfs_objects"`
}

// AdminStorageObject is one blob in a storage browse.
type AdminStorageObject struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// AdminStorageList is the response of GET /api/admin/storage.
type AdminStorageList struct {
	Prefix  string               `json:"prefix"`
	Objects []AdminStorageObject `json:"objects"`
	HasMore bool                 `json:"has_more"`
}

// AdminDeleteRequest names a prefix for destructive deletion. The first call
// (delete-request) issues a confirmation token; the second presents it.
type AdminDeleteRequest struct {
	Prefix            string `json:"prefix"`
	ConfirmationToken string `json:"confirmation_token,omitempty"`
}

// AdminConfirmation carries the token for a pending destructive operation.
type AdminConfirmation struct {
	ConfirmationToken string `json:"confirmation_token"`
	ExpiresInSeconds  int    `json:"expires_in_seconds"`
	Prefix            string `json:"prefix"`
}

// AdminDeleteResult reports a completed prefix deletion.
type AdminDeleteResult struct {
	Prefix  string `json:"prefix"`
	Deleted int    `json:"deleted"`
}

// AdminRecalculateResult reports a ledger recomputation.
type AdminRecalculateResult struct {
	RepositoriesUpdated int `json:"repositories_updated"`
	NamespacesUpdated   int `json:"namespaces_updated"`
}
