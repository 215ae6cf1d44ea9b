package repo

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/kohakuhub/server/internal/model"
	"github.com/kohakuhub/server/internal/port/outbound"
	apperr "github.com/kohakuhub/server/internal/shared/errors"
	"github.com/kohakuhub/server/internal/utils/pagination"
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

// ===== Listing =====

// List returns repositories of one type, newest first. Private rows appear
// only when owned by the viewer or one of the viewer's organizations.
func (d *Domain) List(ctx context.Context, viewer *model.User, repoType model.RepoType, author string, limit int) ([]*model.RepoSummary, error) {
	filter := outbound.RepoFilter{
		Type:   &repoType,
		Author: author,
		Limit:  pagination.ClampLimit(limit, defaultListLimit, maxListLimit),
	}
	if viewer != nil {
		filter.VisibleOwnerIDs = d.visibleOwnerIDs(ctx, viewer)
	}

	rows, err := d.repos.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	out := make([]*model.RepoSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, &model.RepoSummary{
			ID:           row.FullID,
			Author:       row.Namespace,
			Private:      row.Private,
			Downloads:    row.Downloads,
			Tags:         []string{},
			CreatedAt:    row.CreatedAt,
			LastModified: row.UpdatedAt,
		})
	}
	return out, nil
}

// visibleOwnerIDs resolves the owner ids whose private repositories the
// viewer may see: their own and their organizations'.
func (d *Domain) visibleOwnerIDs(ctx context.Context, viewer *model.User) []int64 {
	ids := []int64{viewer.ID}
	orgs, err := d.users.ListOrgsOf(ctx, viewer.ID)
	if err != nil {
		d.logger.Warn("Org lookup for listing failed",
			zap.String("user", viewer.Username), zap.Error(err))
		return ids
	}
	for _, org := range orgs {
		ids = append(ids, org.ID)
	}
	return ids
}

// Info builds the hub info document for one repository.
func (d *Domain) Info(ctx context.Context, viewer *model.User, repoType model.RepoType, namespace, name string) (*model.RepoInfo, error) {
	repo, err := d.Get(ctx, repoType, namespace, name)
	if err != nil {
		return nil, err
	}
	if err := d.CheckRepoRead(ctx, repo, viewer); err != nil {
		return nil, err
	}

	info := d.baseInfo(repo)
	if head, err := d.store.GetBranchHead(ctx, d.StoreName(repo), d.cfg.DefaultBranch); err != nil {
		d.logger.Debug("Branch head lookup failed",
			zap.String("repo", repo.FullID), zap.Error(err))
	} else {
		info.SHA = head
	}

	siblings, err := d.siblings(ctx, repo)
	if err != nil {
		return nil, err
	}
	info.Siblings = siblings
	return info, nil
}

// Revision builds the revision info document: repo info pinned at a ref.
func (d *Domain) Revision(ctx context.Context, viewer *model.User, repoType model.RepoType, namespace, name, rev string) (*model.RevisionInfo, error) {
	repo, err := d.Get(ctx, repoType, namespace, name)
	if err != nil {
		return nil, err
	}
	if err := d.CheckRepoRead(ctx, repo, viewer); err != nil {
		return nil, err
	}

	commit, err := d.ResolveRef(ctx, repo, rev)
	if err != nil {
		return nil, err
	}

	info := d.baseInfo(repo)
	info.SHA = commit.ID
	siblings, err := d.siblings(ctx, repo)
	if err != nil {
		return nil, err
	}
	info.Siblings = siblings

	return &model.RevisionInfo{
		RepoInfo: *info,
		Revision: rev,
		Commit: &model.RevisionCommit{
			OID:  commit.ID,
			Date: commit.CreationDate,
		},
	}, nil
}

func (d *Domain) baseInfo(repo *model.Repository) *model.RepoInfo {
	created := repo.CreatedAt
	modified := repo.UpdatedAt
	return &model.RepoInfo{
		ID:           repo.FullID,
		Author:       repo.Namespace,
		Private:      repo.Private,
		Downloads:    repo.Downloads,
		Tags:         []string{},
		CreatedAt:    &created,
		LastModified: &modified,
		Siblings:     []model.RepoSibling{},
	}
}

func (d *Domain) siblings(ctx context.Context, repo *model.Repository) ([]model.RepoSibling, error) {
	files, err := d.files.ListActive(ctx, repo.ID, 0, 0)
	if err != nil {
		return nil, err
	}
	out := make([]model.RepoSibling, 0, len(files))
	for _, f := range files {
		out = append(out, model.RepoSibling{RFilename: f.PathInRepo})
	}
	return out, nil
}

// ResolveRef resolves a branch, tag or commit id to its newest commit.
func (d *Domain) ResolveRef(ctx context.Context, repo *model.Repository, ref string) (*outbound.CommitRecord, error) {
	page, err := d.store.LogCommits(ctx, d.StoreName(repo), ref, outbound.LogOptions{Amount: 1})
	if err != nil {
		if errors.Is(err, outbound.ErrNotFound) {
			return nil, apperr.RevisionNotFound(ref)
		}
		return nil, apperr.Upstream("failed to resolve revision", err)
	}
	if len(page.Commits) == 0 {
		return nil, apperr.RevisionNotFound(ref)
	}
	return &page.Commits[0], nil
}

// ===== Tree =====

// TreeOptions controls a tree listing.
type TreeOptions struct {
	Recursive bool
	// Expand adds per-entry last-commit information at the cost of one
	// history lookup per file.
	Expand bool
	After  string
	Limit  int
}

// Tree lists entries under treePath at rev. The second return value is the
// pagination cursor for the next page, empty when done.
func (d *Domain) Tree(ctx context.Context, viewer *model.User, repoType model.RepoType, namespace, name, rev, treePath string, opts TreeOptions) ([]model.TreeEntry, string, error) {
	repo, err := d.Get(ctx, repoType, namespace, name)
	if err != nil {
		return nil, "", err
	}
	if err := d.CheckRepoRead(ctx, repo, viewer); err != nil {
		return nil, "", err
	}

	prefix := strings.Trim(treePath, "/")
	if prefix != "" {
		prefix += "/"
	}
	delimiter := "/"
	if opts.Recursive {
		delimiter = ""
	}

	storeName := d.StoreName(repo)
	page, err := d.store.ListObjects(ctx, storeName, rev, outbound.ListOptions{
		Prefix:    prefix,
		Delimiter: delimiter,
		After:     opts.After,
		Amount:    pagination.ClampLimit(opts.Limit, maxListLimit, maxListLimit),
	})
	if err != nil {
		if errors.Is(err, outbound.ErrNotFound) {
			return nil, "", apperr.RevisionNotFound(rev)
		}
		return nil, "", apperr.Upstream("failed to list tree", err)
	}

	lfsRows, err := d.files.ListActiveByPrefix(ctx, repo.ID, prefix)
	if err != nil {
		return nil, "", err
	}
	lfsByPath := make(map[string]*model.File, len(lfsRows))
	for _, row := range lfsRows {
		if row.LFS {
			lfsByPath[row.PathInRepo] = row
		}
	}

	entries := make([]model.TreeEntry, 0, len(page.Objects))
	for _, obj := range page.Objects {
		if obj.PathType == outbound.PathTypeCommonPrefix {
			entries = append(entries, model.TreeEntry{
				Type: "directory",
				Path: strings.TrimSuffix(obj.Path, "/"),
			})
			continue
		}

		entry := model.TreeEntry{
			Type: "file",
			OID:  obj.Checksum,
			Size: obj.SizeBytes,
			Path: obj.Path,
		}
		if row, ok := lfsByPath[obj.Path]; ok {
			entry.LFS = &model.TreeLFS{
				OID:         row.SHA256,
				Size:        row.Size,
				PointerSize: len(model.LFSPointer(row.SHA256, row.Size)),
			}
		}
		if opts.Expand {
			entry.LastCommit = d.lastCommit(ctx, storeName, rev, obj.Path)
		}
		entries = append(entries, entry)
	}
	return entries, page.NextAfter, nil
}

// lastCommit finds the newest commit touching one path, best-effort.
func (d *Domain) lastCommit(ctx context.Context, storeName, ref, objPath string) *model.LastCommit {
	page, err := d.store.LogCommits(ctx, storeName, ref, outbound.LogOptions{
		Amount:  1,
		Objects: []string{objPath},
	})
	if err != nil || len(page.Commits) == 0 {
		return nil
	}
	c := page.Commits[0]
	title, _, _ := strings.Cut(c.Message, "\n")
	return &model.LastCommit{ID: c.ID, Title: title, Date: c.CreationDate}
}

// ===== Resolve =====

// ResolveResult carries everything the resolve endpoint needs to answer.
type ResolveResult struct {
	URL      string
	CommitID string
	ETag     string
	Size     int64
	Filename string
	LFS      bool
	SHA256   string
}

// Resolve locates one file at a revision and presigns its download straight
// from the blob store. When countDownload is set the repository download
// counter is bumped, best-effort.
func (d *Domain) Resolve(ctx context.Context, viewer *model.User, repoType model.RepoType, namespace, name, rev, filePath string, countDownload bool) (*ResolveResult, error) {
	repo, err := d.Get(ctx, repoType, namespace, name)
	if err != nil {
		return nil, err
	}
	if err := d.CheckRepoRead(ctx, repo, viewer); err != nil {
		return nil, err
	}

	storeName := d.StoreName(repo)
	stat, err := d.store.StatObject(ctx, storeName, rev, filePath)
	if err != nil {
		if errors.Is(err, outbound.ErrNotFound) {
			return nil, apperr.EntryNotFound(filePath)
		}
		return nil, apperr.Upstream("failed to stat file", err)
	}

	commit, err := d.ResolveRef(ctx, repo, rev)
	if err != nil {
		return nil, err
	}

	key, ok := model.BlobKeyFromAddress(stat.PhysicalAddress)
	if !ok {
		return nil, apperr.Internal(fmt.Sprintf("unresolvable physical address for %s", filePath), nil)
	}

	presigned, err := d.blobs.PresignGet(ctx, key, outbound.PresignGetOptions{
		Expires:          d.cfg.DownloadExpiry,
		DownloadFilename: path.Base(filePath),
	})
	if err != nil {
		return nil, apperr.Upstream("failed to presign download", err)
	}

	result := &ResolveResult{
		URL:      presigned.URL,
		CommitID: commit.ID,
		ETag:     stat.Checksum,
		Size:     stat.SizeBytes,
		Filename: path.Base(filePath),
	}
	if model.IsLFSKey(key) {
		result.LFS = true
		result.SHA256 = path.Base(key)
	}

	if countDownload {
		if err := d.repos.IncrementDownloads(ctx, repo.ID); err != nil {
			d.logger.Debug("Download counter bump failed",
				zap.String("repo", repo.FullID), zap.Error(err))
		}
	}
	return result, nil
}
