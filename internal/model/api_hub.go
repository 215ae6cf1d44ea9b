package model

import "time"

// Wire types for the HuggingFace-compatible JSON surface. Field names follow
// what the hub client actually parses, not Go conventions.

// ErrorResponse is the JSON body for every non-2xx hub response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ===== Repository Lifecycle =====

// CreateRepoRequest is the body of POST /api/repos/create.
type CreateRepoRequest struct {
	Type         RepoType `json:"type"`
	Name         string   `json:"name"`
	Organization *string  `json:"organization,omitempty"`
	Private      bool     `json:"private"`
	SDK          string   `json:"sdk,omitempty"`
}

// CreateRepoResponse echoes the new repository's location.
type CreateRepoResponse struct {
	URL    string `json:"url"`
	RepoID string `json:"repo_id"`
}

// DeleteRepoRequest is the body of DELETE /api/repos/delete.
type DeleteRepoRequest struct {
	Type         RepoType `json:"type"`
	Name         string   `json:"name"`
	Organization *string  `json:"organization,omitempty"`
}

// MoveRepoRequest is the body of POST /api/repos/move.
type MoveRepoRequest struct {
	FromRepo string   `json:"fromRepo"`
	ToRepo   string   `json:"toRepo"`
	Type     RepoType `json:"type"`
}

// SquashRepoRequest is the body of POST /api/repos/squash.
type SquashRepoRequest struct {
	Repo string   `json:"repo"`
	Type RepoType `json:"type"`
}

// OperationResponse is the generic success envelope for mutations that have
// no richer payload (move, squash, branch ops, ...).
type OperationResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message,omitempty"`
	URL      string `json:"url,omitempty"`
	CommitID string `json:"commit_id,omitempty"`
}

// ===== Listing & Info =====

// RepoSummary is one element of the list endpoints.
type RepoSummary struct {
	ID           string    `json:"id"`
	Author       string    `json:"author"`
	Private      bool      `json:"private"`
	Downloads    int64     `json:"downloads"`
	Likes        int64     `json:"likes"`
	Tags         []string  `json:"tags"`
	CreatedAt    time.Time `json:"createdAt"`
	LastModified time.Time `json:"lastModified"`
}

// RepoSibling is a file name entry in repo info.
type RepoSibling struct {
	RFilename string `json:"rfilename"`
}

// RepoInfo is the repo info document for GET /api/{type}s/{ns}/{name}.
type RepoInfo struct {
	ID           string        `json:"id"`
	Author       string        `json:"author"`
	SHA          string        `json:"sha,omitempty"`
	Private      bool          `json:"private"`
	Disabled     bool          `json:"disabled"`
	Gated        bool          `json:"gated"`
	Downloads    int64         `json:"downloads"`
	Likes        int64         `json:"likes"`
	Tags         []string      `json:"tags"`
	CreatedAt    *time.Time    `json:"createdAt,omitempty"`
	LastModified *time.Time    `json:"lastModified,omitempty"`
	Siblings     []RepoSibling `json:"siblings"`
}

// RevisionCommit is the commit stanza of revision info.
type RevisionCommit struct {
	OID  string    `json:"oid"`
	Date time.Time `json:"date"`
}

// RevisionInfo extends RepoInfo for GET .../revision/{rev}.
type RevisionInfo struct {
	RepoInfo
	Revision   string          `json:"revision"`
	Commit     *RevisionCommit `json:"commit,omitempty"`
	XetEnabled bool            `json:"xetEnabled"`
}

// ===== Tree =====

// TreeLFS is the LFS stanza on a tree entry.
type TreeLFS struct {
	OID         string `json:"oid"`
	Size        int64  `json:"size"`
	PointerSize int    `json:"pointerSize"`
}

// LastCommit is the lastCommit stanza on a tree entry.
type LastCommit struct {
	ID    string    `json:"id"`
	Title string    `json:"title"`
	Date  time.Time `json:"date"`
}

// TreeEntry is one row of GET .../tree/{rev}/{path}. Type is "file" or
// "directory", matching what the hub client's tree parser expects.
type TreeEntry struct {
	Type       string      `json:"type"`
	OID        string      `json:"oid"`
	Size       int64       `json:"size"`
	Path       string      `json:"path"`
	LFS        *TreeLFS    `json:"lfs,omitempty"`
	LastCommit *LastCommit `json:"lastCommit,omitempty"`
}

// ===== Preupload =====

// PreuploadFile is one candidate file in a preupload request.
type PreuploadFile struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Sample string `json:"sample,omitempty"`
	SHA256 string `json:"sha,omitempty"`
}

// PreuploadRequest is the body of POST .../preupload/{rev}.
type PreuploadRequest struct {
	Files []PreuploadFile `json:"files"`
}

// UploadModeRegular and UploadModeLFS are the two preupload verdicts.
const (
	UploadModeRegular = "regular"
	UploadModeLFS     = "lfs"
)

// PreuploadResult is the verdict for one file.
type PreuploadResult struct {
	Path         string `json:"path"`
	UploadMode   string `json:"uploadMode"`
	ShouldIgnore bool   `json:"shouldIgnore"`
	OID          string `json:"oid,omitempty"`
}

// PreuploadResponse is the body returned by preupload.
type PreuploadResponse struct {
	Files []PreuploadResult `json:"files"`
}

// ===== Commits =====

// CommitResponse is the body returned by a successful NDJSON commit.
// PullRequestURL is always null; the field exists for client compatibility.
type CommitResponse struct {
	CommitURL      string  `json:"commitUrl"`
	CommitOID      string  `json:"commitOid"`
	PullRequestURL *string `json:"pullRequestUrl"`
}

// CommitDetail is one commit in the history listing.
type CommitDetail struct {
	ID      string    `json:"id"`
	OID     string    `json:"oid"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	Date    time.Time `json:"date"`
	Author  string    `json:"author"`
	Email   string    `json:"email,omitempty"`
	Parents []string  `json:"parents"`
}

// CommitList is the paginated history response.
type CommitList struct {
	Commits    []CommitDetail `json:"commits"`
	HasMore    bool           `json:"hasMore"`
	NextCursor string         `json:"nextCursor,omitempty"`
}

// CommitDiffEntry describes one changed path between a commit and its parent.
type CommitDiffEntry struct {
	Path           string `json:"path"`
	Type           string `json:"type"`
	SizeBytes      int64  `json:"size_bytes"`
	IsLFS          bool   `json:"is_lfs"`
	SHA256         string `json:"sha256,omitempty"`
	PreviousSize   *int64 `json:"previous_size,omitempty"`
	PreviousSHA256 string `json:"previous_sha256,omitempty"`
	Diff           string `json:"diff,omitempty"`
}

// CommitInfo is the response of GET .../commit/{id}.
type CommitInfo struct {
	Commit CommitDetail      `json:"commit"`
	Files  []CommitDiffEntry `json:"files"`
}

// ===== Branch Algebra =====

// CreateBranchRequest carries an optional starting revision.
type CreateBranchRequest struct {
	Branch   string  `json:"branch,omitempty"`
	Revision *string `json:"revision,omitempty"`
}

// CreateTagRequest names the tag and an optional revision.
type CreateTagRequest struct {
	Tag      string  `json:"tag,omitempty"`
	Revision *string `json:"revision,omitempty"`
	Message  *string `json:"message,omitempty"`
}

// RevertRequest is the body of POST .../branch/{b}/revert.
type RevertRequest struct {
	Ref          string            `json:"ref"`
	ParentNumber int               `json:"parent_number"`
	Message      *string           `json:"message,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Force        bool              `json:"force"`
	AllowEmpty   bool              `json:"allow_empty"`
}

// ResetRequest is the body of POST .../branch/{b}/reset.
type ResetRequest struct {
	Ref     string  `json:"ref"`
	Message *string `json:"message,omitempty"`
	Force   bool    `json:"force"`
}

// MergeRequest is the body of POST .../merge/{src}/into/{dst}.
type MergeRequest struct {
	Message     *string           `json:"message,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Strategy    string            `json:"strategy,omitempty"`
	Force       bool              `json:"force"`
	AllowEmpty  bool              `json:"allow_empty"`
	SquashMerge bool              `json:"squash_merge"`
}

// ResetBlockedResponse reports why a reset was refused.
type ResetBlockedResponse struct {
	Error           string   `json:"error"`
	MissingFiles    []string `json:"missing_files"`
	AffectedCommits []string `json:"affected_commits,omitempty"`
}

// CommitRecoverability reports whether one commit's LFS content is still
// fully present in the blob store.
type CommitRecoverability struct {
	CommitID string   `json:"commit_id"`
	OK       bool     `json:"ok"`
	Missing  []string `json:"missing,omitempty"`
}

// ===== Identity =====

// WhoAmIOrg is one organization stanza in whoami-v2.
type WhoAmIOrg struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// WhoAmIToken describes the presented credential.
type WhoAmIToken struct {
	DisplayName string `json:"displayName,omitempty"`
	Role        string `json:"role"`
}

// WhoAmIAuth is the auth stanza in whoami-v2.
type WhoAmIAuth struct {
	Type        string      `json:"type"`
	AccessToken WhoAmIToken `json:"accessToken"`
}

// WhoAmI is the response of GET /api/whoami-v2.
type WhoAmI struct {
	Name          string      `json:"name"`
	Type          string      `json:"type"`
	Email         string      `json:"email,omitempty"`
	EmailVerified bool        `json:"emailVerified"`
	Orgs          []WhoAmIOrg `json:"orgs"`
	Auth          WhoAmIAuth  `json:"auth"`
}

// ===== Misc =====

// ValidateYAMLRequest is the body of POST /api/validate-yaml.
type ValidateYAMLRequest struct {
	Content string `json:"content"`
}

// ValidateYAMLResponse reports front-matter validity.
type ValidateYAMLResponse struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}
