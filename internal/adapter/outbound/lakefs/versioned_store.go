package lakefs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/treeverse/lakefs/pkg/api"

	"github.com/kohakuhub/server/internal/port/outbound"
)

// VersionedStoreAdapter implements outbound.VersionedStore on the lakeFS
// HTTP API. Every hub repository maps to one lakeFS repository; revisions
// map to branches, tags and commit ids.
type VersionedStoreAdapter struct {
	client api.ClientWithResponsesInterface
}

// NewVersionedStoreAdapter creates a new lakeFS-backed versioned store.
func NewVersionedStoreAdapter(client api.ClientWithResponsesInterface) *VersionedStoreAdapter {
	return &VersionedStoreAdapter{client: client}
}

var _ outbound.VersionedStore = (*VersionedStoreAdapter)(nil)

// ===== Repositories =====

func (a *VersionedStoreAdapter) CreateRepository(ctx context.Context, name, storageNamespace, defaultBranch string) error {
	resp, err := a.client.CreateRepositoryWithResponse(ctx, &api.CreateRepositoryParams{}, api.CreateRepositoryJSONRequestBody{
		Name:             name,
		StorageNamespace: storageNamespace,
		DefaultBranch:    ptr(defaultBranch),
	})
	if err != nil {
		return transportErr("create repository", err)
	}
	if resp.JSON201 == nil {
		return statusErr("create repository", resp.StatusCode(), resp.Body)
	}
	return nil
}

func (a *VersionedStoreAdapter) DeleteRepository(ctx context.Context, name string) error {
	resp, err := a.client.DeleteRepositoryWithResponse(ctx, name)
	if err != nil {
		return transportErr("delete repository", err)
	}
	if resp.StatusCode() != http.StatusNoContent {
		return statusErr("delete repository", resp.StatusCode(), resp.Body)
	}
	return nil
}

// ===== Branches and tags =====

func (a *VersionedStoreAdapter) CreateBranch(ctx context.Context, repo, name, sourceRef string) error {
	resp, err := a.client.CreateBranchWithResponse(ctx, repo, api.CreateBranchJSONRequestBody{
		Name:   name,
		Source: sourceRef,
	})
	if err != nil {
		return transportErr("create branch", err)
	}
	if resp.StatusCode() != http.StatusCreated {
		return statusErr("create branch", resp.StatusCode(), resp.Body)
	}
	return nil
}

func (a *VersionedStoreAdapter) DeleteBranch(ctx context.Context, repo, name string) error {
	resp, err := a.client.DeleteBranchWithResponse(ctx, repo, name)
	if err != nil {
		return transportErr("delete branch", err)
	}
	if resp.StatusCode() != http.StatusNoContent {
		return statusErr("delete branch", resp.StatusCode(), resp.Body)
	}
	return nil
}

func (a *VersionedStoreAdapter) GetBranchHead(ctx context.Context, repo, branch string) (string, error) {
	resp, err := a.client.GetBranchWithResponse(ctx, repo, branch)
	if err != nil {
		return "", transportErr("get branch", err)
	}
	if resp.JSON200 == nil {
		return "", statusErr("get branch", resp.StatusCode(), resp.Body)
	}
	return resp.JSON200.CommitId, nil
}

func (a *VersionedStoreAdapter) CreateTag(ctx context.Context, repo, tag, ref string) (string, error) {
	resp, err := a.client.CreateTagWithResponse(ctx, repo, api.CreateTagJSONRequestBody{
		Id:  tag,
		Ref: ref,
	})
	if err != nil {
		return "", transportErr("create tag", err)
	}
	if resp.JSON201 == nil {
		return "", statusErr("create tag", resp.StatusCode(), resp.Body)
	}
	return resp.JSON201.CommitId, nil
}

func (a *VersionedStoreAdapter) DeleteTag(ctx context.Context, repo, tag string) error {
	resp, err := a.client.DeleteTagWithResponse(ctx, repo, tag)
	if err != nil {
		return transportErr("delete tag", err)
	}
	if resp.StatusCode() != http.StatusNoContent {
		return statusErr("delete tag", resp.StatusCode(), resp.Body)
	}
	return nil
}

// ===== Objects =====

func (a *VersionedStoreAdapter) ListObjects(ctx context.Context, repo, ref string, opts outbound.ListOptions) (*outbound.ObjectPage, error) {
	params := &api.ListObjectsParams{}
	if opts.Prefix != "" {
		params.Prefix = ptr(api.PaginationPrefix(opts.Prefix))
	}
	if opts.Delimiter != "" {
		params.Delimiter = ptr(api.PaginationDelimiter(opts.Delimiter))
	}
	if opts.After != "" {
		params.After = ptr(api.PaginationAfter(opts.After))
	}
	if opts.Amount > 0 {
		params.Amount = ptr(api.PaginationAmount(opts.Amount))
	}

	resp, err := a.client.ListObjectsWithResponse(ctx, repo, ref, params)
	if err != nil {
		return nil, transportErr("list objects", err)
	}
	if resp.JSON200 == nil {
		return nil, statusErr("list objects", resp.StatusCode(), resp.Body)
	}

	page := &outbound.ObjectPage{
		Objects:   make([]outbound.ObjectStat, 0, len(resp.JSON200.Results)),
		NextAfter: resp.JSON200.Pagination.NextOffset,
		HasMore:   resp.JSON200.Pagination.HasMore,
	}
	for _, o := range resp.JSON200.Results {
		page.Objects = append(page.Objects, toObjectStat(o))
	}
	return page, nil
}

func (a *VersionedStoreAdapter) StatObject(ctx context.Context, repo, ref, path string) (*outbound.ObjectStat, error) {
	resp, err := a.client.StatObjectWithResponse(ctx, repo, ref, &api.StatObjectParams{Path: path})
	if err != nil {
		return nil, transportErr("stat object", err)
	}
	if resp.JSON200 == nil {
		return nil, statusErr("stat object", resp.StatusCode(), resp.Body)
	}
	stat := toObjectStat(*resp.JSON200)
	return &stat, nil
}

func (a *VersionedStoreAdapter) GetObject(ctx context.Context, repo, ref, path string) ([]byte, error) {
	resp, err := a.client.GetObjectWithResponse(ctx, repo, ref, &api.GetObjectParams{Path: path})
	if err != nil {
		return nil, transportErr("get object", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, statusErr("get object", resp.StatusCode(), resp.Body)
	}
	return resp.Body, nil
}

func (a *VersionedStoreAdapter) UploadObject(ctx context.Context, repo, branch, path string, content []byte) (*outbound.ObjectStat, error) {
	resp, err := a.client.UploadObjectWithBodyWithResponse(ctx, repo, branch,
		&api.UploadObjectParams{Path: path},
		"application/octet-stream",
		bytes.NewReader(content))
	if err != nil {
		return nil, transportErr("upload object", err)
	}
	if resp.JSON201 == nil {
		return nil, statusErr("upload object", resp.StatusCode(), resp.Body)
	}
	stat := toObjectStat(*resp.JSON201)
	return &stat, nil
}

func (a *VersionedStoreAdapter) LinkPhysicalAddress(ctx context.Context, repo, branch, path, physicalAddress, checksum string, sizeBytes int64) (*outbound.ObjectStat, error) {
	resp, err := a.client.StageObjectWithResponse(ctx, repo, branch,
		&api.StageObjectParams{Path: path},
		api.StageObjectJSONRequestBody{
			PhysicalAddress: physicalAddress,
			Checksum:        checksum,
			SizeBytes:       sizeBytes,
		})
	if err != nil {
		return nil, transportErr("stage object", err)
	}
	if resp.JSON201 == nil {
		return nil, statusErr("stage object", resp.StatusCode(), resp.Body)
	}
	stat := toObjectStat(*resp.JSON201)
	return &stat, nil
}

func (a *VersionedStoreAdapter) DeleteObject(ctx context.Context, repo, branch, path string) error {
	resp, err := a.client.DeleteObjectWithResponse(ctx, repo, branch, &api.DeleteObjectParams{Path: path})
	if err != nil {
		return transportErr("delete object", err)
	}
	if resp.StatusCode() != http.StatusNoContent {
		return statusErr("delete object", resp.StatusCode(), resp.Body)
	}
	return nil
}

// ===== Commits =====

func (a *VersionedStoreAdapter) Commit(ctx context.Context, repo, branch, message string, metadata map[string]string) (*outbound.CommitRecord, error) {
	body := api.CommitJSONRequestBody{Message: message}
	if len(metadata) > 0 {
		body.Metadata = &api.CommitCreation_Metadata{AdditionalProperties: metadata}
	}

	resp, err := a.client.CommitWithResponse(ctx, repo, branch, &api.CommitParams{}, body)
	if err != nil {
		return nil, transportErr("commit", err)
	}
	if resp.JSON201 == nil {
		return nil, statusErr("commit", resp.StatusCode(), resp.Body)
	}
	rec := toCommitRecord(*resp.JSON201)
	return &rec, nil
}

func (a *VersionedStoreAdapter) GetCommit(ctx context.Context, repo, commitID string) (*outbound.CommitRecord, error) {
	resp, err := a.client.GetCommitWithResponse(ctx, repo, commitID)
	if err != nil {
		return nil, transportErr("get commit", err)
	}
	if resp.JSON200 == nil {
		return nil, statusErr("get commit", resp.StatusCode(), resp.Body)
	}
	rec := toCommitRecord(*resp.JSON200)
	return &rec, nil
}

func (a *VersionedStoreAdapter) LogCommits(ctx context.Context, repo, ref string, opts outbound.LogOptions) (*outbound.CommitPage, error) {
	params := &api.LogCommitsParams{}
	if opts.After != "" {
		params.After = ptr(api.PaginationAfter(opts.After))
	}
	if opts.Amount > 0 {
		params.Amount = ptr(api.PaginationAmount(opts.Amount))
	}
	if len(opts.Objects) > 0 {
		params.Objects = &opts.Objects
	}

	resp, err := a.client.LogCommitsWithResponse(ctx, repo, ref, params)
	if err != nil {
		return nil, transportErr("log commits", err)
	}
	if resp.JSON200 == nil {
		return nil, statusErr("log commits", resp.StatusCode(), resp.Body)
	}

	page := &outbound.CommitPage{
		Commits:   make([]outbound.CommitRecord, 0, len(resp.JSON200.Results)),
		NextAfter: resp.JSON200.Pagination.NextOffset,
		HasMore:   resp.JSON200.Pagination.HasMore,
	}
	for _, c := range resp.JSON200.Results {
		page.Commits = append(page.Commits, toCommitRecord(c))
	}
	return page, nil
}

// ===== Diffs, revert, merge =====

func (a *VersionedStoreAdapter) DiffRefs(ctx context.Context, repo, leftRef, rightRef string, opts outbound.DiffOptions) (*outbound.DiffPage, error) {
	params := &api.DiffRefsParams{}
	if opts.Prefix != "" {
		params.Prefix = ptr(api.PaginationPrefix(opts.Prefix))
	}
	if opts.After != "" {
		params.After = ptr(api.PaginationAfter(opts.After))
	}
	if opts.Amount > 0 {
		params.Amount = ptr(api.PaginationAmount(opts.Amount))
	}

	resp, err := a.client.DiffRefsWithResponse(ctx, repo, leftRef, rightRef, params)
	if err != nil {
		return nil, transportErr("diff refs", err)
	}
	if resp.JSON200 == nil {
		return nil, statusErr("diff refs", resp.StatusCode(), resp.Body)
	}

	page := &outbound.DiffPage{
		Entries:   make([]outbound.DiffEntry, 0, len(resp.JSON200.Results)),
		NextAfter: resp.JSON200.Pagination.NextOffset,
		HasMore:   resp.JSON200.Pagination.HasMore,
	}
	for _, d := range resp.JSON200.Results {
		entry := outbound.DiffEntry{
			Path:     d.Path,
			PathType: string(d.PathType),
			Type:     string(d.Type),
		}
		if d.SizeBytes != nil {
			entry.SizeBytes = *d.SizeBytes
		}
		page.Entries = append(page.Entries, entry)
	}
	return page, nil
}

func (a *VersionedStoreAdapter) Revert(ctx context.Context, repo, branch, ref string, parentNumber int) error {
	resp, err := a.client.RevertBranchWithResponse(ctx, repo, branch, api.RevertBranchJSONRequestBody{
		Ref:          ref,
		ParentNumber: parentNumber,
	})
	if err != nil {
		return transportErr("revert", err)
	}
	if resp.StatusCode() != http.StatusNoContent {
		return statusErr("revert", resp.StatusCode(), resp.Body)
	}
	return nil
}

func (a *VersionedStoreAdapter) Merge(ctx context.Context, repo, sourceRef, destBranch string, opts outbound.MergeOptions) (string, error) {
	body := api.MergeIntoBranchJSONRequestBody{}
	if opts.Message != "" {
		body.Message = ptr(opts.Message)
	}
	if opts.Strategy != outbound.MergeStrategyDefault {
		body.Strategy = ptr(opts.Strategy)
	}
	if len(opts.Metadata) > 0 {
		body.Metadata = &api.Merge_Metadata{AdditionalProperties: opts.Metadata}
	}

	resp, err := a.client.MergeIntoBranchWithResponse(ctx, repo, sourceRef, destBranch, body)
	if err != nil {
		return "", transportErr("merge", err)
	}
	if resp.JSON200 == nil {
		return "", statusErr("merge", resp.StatusCode(), resp.Body)
	}
	return resp.JSON200.Reference, nil
}

// ===== Mapping helpers =====

func toObjectStat(o api.ObjectStats) outbound.ObjectStat {
	stat := outbound.ObjectStat{
		Path:            o.Path,
		PathType:        string(o.PathType),
		PhysicalAddress: o.PhysicalAddress,
		Checksum:        o.Checksum,
		Mtime:           time.Unix(o.Mtime, 0).UTC(),
	}
	if o.SizeBytes != nil {
		stat.SizeBytes = *o.SizeBytes
	}
	if o.ContentType != nil {
		stat.ContentType = *o.ContentType
	}
	return stat
}

func toCommitRecord(c api.Commit) outbound.CommitRecord {
	rec := outbound.CommitRecord{
		ID:           c.Id,
		Message:      c.Message,
		Committer:    c.Committer,
		CreationDate: time.Unix(c.CreationDate, 0).UTC(),
		Parents:      c.Parents,
	}
	if c.Metadata != nil {
		rec.Metadata = c.Metadata.AdditionalProperties
	}
	return rec
}

// transportErr wraps request-level failures (network, timeouts, open
// circuit breaker) as upstream errors.
func transportErr(op string, err error) error {
	return fmt.Errorf("lakefs: %s: %w: %w", op, err, outbound.ErrUpstream)
}

// statusErr maps an unexpected lakeFS status code onto the port's error
// vocabulary.
func statusErr(op string, status int, body []byte) error {
	msg := apiMessage(body)
	switch {
	case status == http.StatusNotFound:
		return fmt.Errorf("lakefs: %s: %s: %w", op, msg, outbound.ErrNotFound)
	case status == http.StatusConflict || status == http.StatusPreconditionFailed:
		return fmt.Errorf("lakefs: %s: %s: %w", op, msg, outbound.ErrConflict)
	case status >= http.StatusInternalServerError:
		return fmt.Errorf("lakefs: %s: status %d: %s: %w", op, status, msg, outbound.ErrUpstream)
	default:
		return fmt.Errorf("lakefs: %s: unexpected status %d: %s", op, status, msg)
	}
}

// apiMessage extracts the error message from a lakeFS error body.
func apiMessage(body []byte) string {
	var e api.Error
	if err := json.Unmarshal(body, &e); err == nil && e.Message != "" {
		return e.Message
	}
	return strings.TrimSpace(string(body))
}

func ptr[T any](v T) *T {
	return &v
}
