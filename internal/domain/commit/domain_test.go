package commit

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kohakuhub/server/internal/model"
	"github.com/kohakuhub/server/internal/port/outbound"
	apperr "github.com/kohakuhub/server/internal/shared/errors"
)

// helloBlobSHA is git's blob hash of the five bytes "hello".
const helloBlobSHA = "b6fc4c620b67d95f953a5c1c1230aaab5db5a1b0"

const testStoreName = "hub-model-alice-m1-7"

func testRepo() *model.Repository {
	return &model.Repository{
		ID:        7,
		RepoType:  model.RepoTypeModel,
		Namespace: "alice",
		Name:      "m1",
		FullID:    "alice/m1",
		OwnerID:   1,
	}
}

func testConfig() *Config {
	return &Config{
		BaseURL:      "http://localhost:8080",
		PollAttempts: 2,
		PollInterval: time.Millisecond,
	}
}

func testOID(b string) string {
	return strings.Repeat(b, 64)
}

func ndjsonBody(lines ...string) io.Reader {
	return strings.NewReader(strings.Join(lines, "\n") + "\n")
}

func TestCommitInlineFile(t *testing.T) {
	ctx := context.Background()
	d, m := newTestDomain(testConfig())
	r := testRepo()
	user := &model.User{ID: 42, Username: "alice"}

	m.files.On("Find", mock.Anything, int64(7), "README.md").Return(nil, nil)
	m.store.On("UploadObject", mock.Anything, testStoreName, "main", "README.md", []byte("hello")).
		Return(&outbound.ObjectStat{Path: "README.md", SizeBytes: 5}, nil)
	m.files.On("Upsert", mock.Anything, mock.MatchedBy(func(f *model.File) bool {
		return f.RepositoryID == 7 && f.PathInRepo == "README.md" &&
			f.Size == 5 && f.SHA256 == helloBlobSHA &&
			!f.LFS && !f.IsDeleted && f.OwnerID == 1
	})).Return(nil)
	m.store.On("Commit", mock.Anything, testStoreName, "main", "Add readme", map[string]string{}).
		Return(&outbound.CommitRecord{ID: "c1"}, nil)
	m.store.On("GetCommit", mock.Anything, testStoreName, "c1").
		Return(&outbound.CommitRecord{ID: "c1"}, nil)
	m.commits.On("Create", mock.Anything, mock.MatchedBy(func(c *model.Commit) bool {
		return c.CommitID == "c1" && c.RepositoryID == 7 && c.Branch == "main" &&
			c.Message == "Add readme" && c.Username == "alice" &&
			c.AuthorID != nil && *c.AuthorID == 42
	})).Return(nil)
	m.usage.On("RecalculateUsed", mock.Anything, r).Return(nil)

	resp, err := d.Commit(ctx, user, r, "main", ndjsonBody(
		`{"key":"header","value":{"summary":"Add readme"}}`,
		`{"key":"file","value":{"path":"README.md","content":"aGVsbG8=","encoding":"base64"}}`,
	))
	require.NoError(t, err)
	assert.Equal(t, "c1", resp.CommitOID)
	assert.Equal(t, "http://localhost:8080/alice/m1/commit/c1", resp.CommitURL)
	assert.Nil(t, resp.PullRequestURL)
	m.assertExpectations(t)
}

func TestCommitLFSFileTracksHistory(t *testing.T) {
	ctx := context.Background()
	d, m := newTestDomain(testConfig())
	r := testRepo()
	oid := testOID("a")
	key := model.LFSObjectKey(oid)

	m.blobs.On("Bucket").Return("hub-bucket")
	m.files.On("Find", mock.Anything, int64(7), "model.bin").Return(nil, nil)
	m.blobs.On("Head", mock.Anything, key).Return(&outbound.ObjectInfo{Key: key, Size: 1000}, nil)
	m.store.On("LinkPhysicalAddress", mock.Anything, testStoreName, "main", "model.bin",
		"s3://hub-bucket/"+key, oid, int64(1000)).
		Return(&outbound.ObjectStat{Path: "model.bin"}, nil)
	m.files.On("Upsert", mock.Anything, mock.MatchedBy(func(f *model.File) bool {
		return f.PathInRepo == "model.bin" && f.LFS && f.SHA256 == oid && f.Size == 1000
	})).Return(nil)
	m.store.On("Commit", mock.Anything, testStoreName, "main", "Add weights", map[string]string{}).
		Return(&outbound.CommitRecord{ID: "c2"}, nil)
	m.store.On("GetCommit", mock.Anything, testStoreName, "c2").
		Return(&outbound.CommitRecord{ID: "c2"}, nil)
	m.commits.On("Create", mock.Anything, mock.Anything).Return(nil)
	m.tracker.On("TrackLFSObject", mock.Anything, int64(7), "model.bin", oid, int64(1000), "c2", mock.Anything).
		Return(nil)
	m.usage.On("RecalculateUsed", mock.Anything, r).Return(nil)

	resp, err := d.Commit(ctx, nil, r, "main", ndjsonBody(
		`{"key":"header","value":{"summary":"Add weights"}}`,
		`{"key":"lfsFile","value":{"path":"model.bin","algo":"sha256","oid":"`+oid+`","size":1000}}`,
	))
	require.NoError(t, err)
	assert.Equal(t, "c2", resp.CommitOID)

	// Nothing replaced live content, so retention GC must not run.
	m.tracker.AssertNotCalled(t, "RunGCForFile", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	m.assertExpectations(t)
}

func TestCommitLFSReplacementRunsGC(t *testing.T) {
	ctx := context.Background()
	d, m := newTestDomain(testConfig())
	r := testRepo()
	oldOID := testOID("0")
	newOID := testOID("f")
	key := model.LFSObjectKey(newOID)
	existing := &model.File{ID: 9, RepositoryID: 7, PathInRepo: "model.bin", Size: 500, SHA256: oldOID, LFS: true}

	m.blobs.On("Bucket").Return("hub-bucket")
	m.files.On("Find", mock.Anything, int64(7), "model.bin").Return(existing, nil)
	m.blobs.On("Head", mock.Anything, key).Return(&outbound.ObjectInfo{Key: key, Size: 1000}, nil)
	m.store.On("LinkPhysicalAddress", mock.Anything, testStoreName, "main", "model.bin",
		"s3://hub-bucket/"+key, newOID, int64(1000)).
		Return(&outbound.ObjectStat{}, nil)
	m.files.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	m.store.On("Commit", mock.Anything, testStoreName, "main", "Update weights", map[string]string{}).
		Return(&outbound.CommitRecord{ID: "c3"}, nil)
	m.store.On("GetCommit", mock.Anything, testStoreName, "c3").
		Return(&outbound.CommitRecord{ID: "c3"}, nil)
	m.commits.On("Create", mock.Anything, mock.Anything).Return(nil)
	m.tracker.On("TrackLFSObject", mock.Anything, int64(7), "model.bin", newOID, int64(1000), "c3", mock.Anything).
		Return(nil)
	m.tracker.On("RunGCForFile", mock.Anything, r, "model.bin", "c3").Return(nil)
	m.usage.On("RecalculateUsed", mock.Anything, r).Return(nil)

	_, err := d.Commit(ctx, nil, r, "main", ndjsonBody(
		`{"key":"header","value":{"summary":"Update weights"}}`,
		`{"key":"lfsFile","value":{"path":"model.bin","oid":"`+newOID+`","size":1000}}`,
	))
	require.NoError(t, err)
	m.assertExpectations(t)
}

func TestCommitNoChangesReturnsBranchHead(t *testing.T) {
	ctx := context.Background()
	d, m := newTestDomain(testConfig())
	r := testRepo()

	m.store.On("GetBranchHead", mock.Anything, testStoreName, "main").Return("headsha", nil)

	resp, err := d.Commit(ctx, nil, r, "main", ndjsonBody(
		`{"key":"header","value":{"summary":"Nothing"}}`,
		`{"key":"somethingNew","value":{"path":"x"}}`,
	))
	require.NoError(t, err)
	assert.Equal(t, "headsha", resp.CommitOID)
	assert.Equal(t, "http://localhost:8080/alice/m1/commit/headsha", resp.CommitURL)

	m.store.AssertNotCalled(t, "Commit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	m.assertExpectations(t)
}

func TestCommitURLIncludesTypeForDatasets(t *testing.T) {
	ctx := context.Background()
	d, m := newTestDomain(testConfig())
	r := testRepo()
	r.RepoType = model.RepoTypeDataset
	r.FullID = "alice/d1"
	r.Name = "d1"

	m.store.On("GetBranchHead", mock.Anything, "hub-dataset-alice-d1-7", "main").Return("headsha", nil)

	resp, err := d.Commit(ctx, nil, r, "main", ndjsonBody(
		`{"key":"header","value":{"summary":""}}`,
	))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/datasets/alice/d1/commit/headsha", resp.CommitURL)
	m.assertExpectations(t)
}

func TestCommitBodyValidation(t *testing.T) {
	ctx := context.Background()
	r := testRepo()

	cases := []struct {
		name string
		body io.Reader
	}{
		{
			name: "operation before header",
			body: ndjsonBody(`{"key":"file","value":{"path":"a","content":"","encoding":"base64"}}`),
		},
		{
			name: "duplicate header",
			body: ndjsonBody(
				`{"key":"header","value":{"summary":"a"}}`,
				`{"key":"header","value":{"summary":"b"}}`,
			),
		},
		{
			name: "empty body",
			body: strings.NewReader("\n\n"),
		},
		{
			name: "malformed line",
			body: ndjsonBody(`not json at all`),
		},
		{
			name: "malformed operation payload",
			body: ndjsonBody(
				`{"key":"header","value":{"summary":"a"}}`,
				`{"key":"file","value":{"path":123}}`,
			),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, m := newTestDomain(testConfig())
			_, err := d.Commit(ctx, nil, r, "main", tc.body)
			assertCode(t, err, apperr.CodeBadRequest)
			m.assertExpectations(t)
		})
	}
}

func TestCommitRejectsOversizedLine(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.MaxBodyBytes = 1024
	d, m := newTestDomain(cfg)

	body := strings.NewReader(
		`{"key":"header","value":{"summary":"big"}}` + "\n" +
			strings.Repeat("a", 2*1024*1024) + "\n")

	_, err := d.Commit(ctx, nil, testRepo(), "main", body)
	assertCode(t, err, apperr.CodeBadRequest)
	m.assertExpectations(t)
}

func TestCommitDefaultsMessageAndKeepsDescription(t *testing.T) {
	ctx := context.Background()
	d, m := newTestDomain(testConfig())
	r := testRepo()

	m.store.On("DeleteObject", mock.Anything, testStoreName, "main", "old.txt").Return(nil)
	m.files.On("SoftDelete", mock.Anything, int64(7), "old.txt").Return(nil)
	m.store.On("Commit", mock.Anything, testStoreName, "main", "Upload files",
		map[string]string{"description": "cleanup"}).
		Return(&outbound.CommitRecord{ID: "c4"}, nil)
	m.store.On("GetCommit", mock.Anything, testStoreName, "c4").
		Return(&outbound.CommitRecord{ID: "c4"}, nil)
	m.commits.On("Create", mock.Anything, mock.MatchedBy(func(c *model.Commit) bool {
		return c.Message == "Upload files" && c.Description == "cleanup" && c.AuthorID == nil
	})).Return(nil)
	m.usage.On("RecalculateUsed", mock.Anything, r).Return(nil)

	_, err := d.Commit(ctx, nil, r, "main", ndjsonBody(
		`{"key":"header","value":{"summary":"   ","description":"cleanup"}}`,
		`{"key":"deletedFile","value":{"path":"old.txt"}}`,
	))
	require.NoError(t, err)
	m.assertExpectations(t)
}

func TestCommitStoreConflict(t *testing.T) {
	ctx := context.Background()
	d, m := newTestDomain(testConfig())
	r := testRepo()

	m.store.On("DeleteObject", mock.Anything, testStoreName, "main", "old.txt").Return(nil)
	m.files.On("SoftDelete", mock.Anything, int64(7), "old.txt").Return(nil)
	m.store.On("Commit", mock.Anything, testStoreName, "main", "Drop", map[string]string{}).
		Return(nil, outbound.ErrConflict)

	_, err := d.Commit(ctx, nil, r, "main", ndjsonBody(
		`{"key":"header","value":{"summary":"Drop"}}`,
		`{"key":"deletedFile","value":{"path":"old.txt"}}`,
	))
	assertCode(t, err, apperr.CodeConflict)
	m.assertExpectations(t)
}

func TestCommitBookkeepingFailuresDoNotSurface(t *testing.T) {
	ctx := context.Background()
	d, m := newTestDomain(testConfig())
	r := testRepo()

	m.files.On("Find", mock.Anything, int64(7), "README.md").Return(nil, nil)
	m.store.On("UploadObject", mock.Anything, testStoreName, "main", "README.md", []byte("hello")).
		Return(&outbound.ObjectStat{}, nil)
	m.files.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	m.store.On("Commit", mock.Anything, testStoreName, "main", "Add readme", map[string]string{}).
		Return(&outbound.CommitRecord{ID: "c5"}, nil)
	m.store.On("GetCommit", mock.Anything, testStoreName, "c5").
		Return(&outbound.CommitRecord{ID: "c5"}, nil)
	m.commits.On("Create", mock.Anything, mock.Anything).Return(assert.AnError)
	m.usage.On("RecalculateUsed", mock.Anything, r).Return(assert.AnError)

	resp, err := d.Commit(ctx, nil, r, "main", ndjsonBody(
		`{"key":"header","value":{"summary":"Add readme"}}`,
		`{"key":"file","value":{"path":"README.md","content":"aGVsbG8=","encoding":"base64"}}`,
	))
	require.NoError(t, err)
	assert.Equal(t, "c5", resp.CommitOID)
	m.assertExpectations(t)
}

func TestCommitWaitsForVisibility(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.PollAttempts = 3
	d, m := newTestDomain(cfg)
	r := testRepo()

	m.store.On("DeleteObject", mock.Anything, testStoreName, "main", "old.txt").Return(nil)
	m.files.On("SoftDelete", mock.Anything, int64(7), "old.txt").Return(nil)
	m.store.On("Commit", mock.Anything, testStoreName, "main", "Drop", map[string]string{}).
		Return(&outbound.CommitRecord{ID: "c6"}, nil)
	m.store.On("GetCommit", mock.Anything, testStoreName, "c6").
		Return(nil, outbound.ErrNotFound).Once()
	m.store.On("GetCommit", mock.Anything, testStoreName, "c6").
		Return(&outbound.CommitRecord{ID: "c6"}, nil).Once()
	m.commits.On("Create", mock.Anything, mock.Anything).Return(nil)
	m.usage.On("RecalculateUsed", mock.Anything, r).Return(nil)

	_, err := d.Commit(ctx, nil, r, "main", ndjsonBody(
		`{"key":"header","value":{"summary":"Drop"}}`,
		`{"key":"deletedFile","value":{"path":"old.txt"}}`,
	))
	require.NoError(t, err)
	m.store.AssertNumberOfCalls(t, "GetCommit", 2)
	m.assertExpectations(t)
}

func TestPreupload(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.DefaultRules = model.LFSRules{
		ThresholdBytes: 10 * 1024 * 1024,
		SuffixPatterns: []string{".safetensors"},
		KeepVersions:   5,
	}
	d, m := newTestDomain(cfg)
	r := testRepo()
	sha := testOID("2")

	m.files.On("Find", mock.Anything, int64(7), "dup.txt").
		Return(&model.File{RepositoryID: 7, PathInRepo: "dup.txt", Size: 5, SHA256: sha}, nil)

	resp, err := d.Preupload(ctx, r, &model.PreuploadRequest{Files: []model.PreuploadFile{
		{Path: "a.txt", Size: 100},
		{Path: "b.bin", Size: 20 * 1024 * 1024},
		{Path: "weights.safetensors", Size: 500},
		{Path: "dup.txt", Size: 5, SHA256: sha},
	}})
	require.NoError(t, err)
	require.Len(t, resp.Files, 4)

	assert.Equal(t, model.UploadModeRegular, resp.Files[0].UploadMode)
	assert.False(t, resp.Files[0].ShouldIgnore)

	assert.Equal(t, model.UploadModeLFS, resp.Files[1].UploadMode)

	assert.Equal(t, model.UploadModeLFS, resp.Files[2].UploadMode)

	assert.Equal(t, model.UploadModeRegular, resp.Files[3].UploadMode)
	assert.True(t, resp.Files[3].ShouldIgnore)
	assert.Equal(t, sha, resp.Files[3].OID)
	m.assertExpectations(t)
}

func TestGitBlobSHA1(t *testing.T) {
	assert.Equal(t, helloBlobSHA, gitBlobSHA1([]byte("hello")))
	// git's well-known empty blob hash.
	assert.Equal(t, "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391", gitBlobSHA1(nil))
}
