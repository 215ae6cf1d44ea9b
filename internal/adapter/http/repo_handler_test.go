package http

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kohakuhub/server/internal/model"
	"github.com/kohakuhub/server/internal/port/outbound"
	apperr "github.com/kohakuhub/server/internal/shared/errors"
	"github.com/kohakuhub/server/internal/shared/response"
)

const testLFSOID = "aa11bb22cc33dd44ee55ff66aa77bb88cc99dd00ee11ff22aa33bb44cc55dd66"

func TestResolve(t *testing.T) {
	head := outbound.CommitRecord{ID: "c-head"}

	t.Run("GET redirects and counts a download", func(t *testing.T) {
		e := aliceEnv()
		e.repos.On("Find", mock.Anything, model.RepoTypeModel, "alice", "bert").Return(testRepo(), nil)
		e.store.On("StatObject", mock.Anything, testStoreName, "main", "config.json").
			Return(&outbound.ObjectStat{
				Path:            "config.json",
				PhysicalAddress: "s3://hub-blobs/data/g1abc",
				Checksum:        "etag123",
				SizeBytes:       42,
			}, nil)
		e.store.On("LogCommits", mock.Anything, testStoreName, "main", outbound.LogOptions{Amount: 1}).
			Return(&outbound.CommitPage{Commits: []outbound.CommitRecord{head}}, nil)
		e.blobs.On("PresignGet", mock.Anything, "data/g1abc", mock.Anything).
			Return(&outbound.PresignedURL{URL: "https://blobs.test/signed"}, nil)
		e.repos.On("IncrementDownloads", mock.Anything, int64(7)).Return(nil)

		w := e.do(http.MethodGet, "/alice/bert/resolve/main/config.json", "", nil)

		require.Equal(t, http.StatusFound, w.Code, w.Body.String())
		assert.Equal(t, "https://blobs.test/signed", w.Header().Get("Location"))
		assert.Equal(t, "c-head", w.Header().Get("X-Repo-Commit"))
		assert.Equal(t, `"etag123"`, w.Header().Get("ETag"))
		assert.Equal(t, `inline; filename="config.json"`, w.Header().Get("Content-Disposition"))
		assert.Equal(t, "bytes", w.Header().Get("Accept-Ranges"))
		assert.Empty(t, w.Header().Get("X-Linked-Etag"))
		e.repos.AssertCalled(t, "IncrementDownloads", mock.Anything, int64(7))
	})

	t.Run("HEAD reports the size and skips the download counter", func(t *testing.T) {
		e := aliceEnv()
		e.repos.On("Find", mock.Anything, model.RepoTypeModel, "alice", "bert").Return(testRepo(), nil)
		e.store.On("StatObject", mock.Anything, testStoreName, "main", "config.json").
			Return(&outbound.ObjectStat{
				Path:            "config.json",
				PhysicalAddress: "s3://hub-blobs/data/g1abc",
				Checksum:        "etag123",
				SizeBytes:       42,
			}, nil)
		e.store.On("LogCommits", mock.Anything, testStoreName, "main", outbound.LogOptions{Amount: 1}).
			Return(&outbound.CommitPage{Commits: []outbound.CommitRecord{head}}, nil)
		e.blobs.On("PresignGet", mock.Anything, "data/g1abc", mock.Anything).
			Return(&outbound.PresignedURL{URL: "https://blobs.test/signed"}, nil)

		w := e.do(http.MethodHead, "/alice/bert/resolve/main/config.json", "", nil)

		require.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "42", w.Header().Get("Content-Length"))
		e.repos.AssertNotCalled(t, "IncrementDownloads", mock.Anything, mock.Anything)
	})

	t.Run("LFS files advertise the linked object", func(t *testing.T) {
		e := aliceEnv()
		key := model.LFSObjectKey(testLFSOID)
		e.repos.On("Find", mock.Anything, model.RepoTypeModel, "alice", "bert").Return(testRepo(), nil)
		e.store.On("StatObject", mock.Anything, testStoreName, "main", "weights.bin").
			Return(&outbound.ObjectStat{
				Path:            "weights.bin",
				PhysicalAddress: "s3://hub-blobs/" + key,
				Checksum:        "etag456",
				SizeBytes:       4096,
			}, nil)
		e.store.On("LogCommits", mock.Anything, testStoreName, "main", outbound.LogOptions{Amount: 1}).
			Return(&outbound.CommitPage{Commits: []outbound.CommitRecord{head}}, nil)
		e.blobs.On("PresignGet", mock.Anything, key, mock.Anything).
			Return(&outbound.PresignedURL{URL: "https://blobs.test/lfs"}, nil)
		e.repos.On("IncrementDownloads", mock.Anything, int64(7)).Return(nil)

		w := e.do(http.MethodGet, "/alice/bert/resolve/main/weights.bin", "", nil)

		require.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, strconv.Quote(testLFSOID), w.Header().Get("X-Linked-Etag"))
		assert.Equal(t, "4096", w.Header().Get("X-Linked-Size"))
	})

	t.Run("missing entry maps to 404", func(t *testing.T) {
		e := aliceEnv()
		e.repos.On("Find", mock.Anything, model.RepoTypeModel, "alice", "bert").Return(testRepo(), nil)
		e.store.On("StatObject", mock.Anything, testStoreName, "main", "nope.txt").
			Return(nil, outbound.ErrNotFound)

		w := e.do(http.MethodGet, "/alice/bert/resolve/main/nope.txt", "", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, apperr.CodeEntryNotFound, w.Header().Get(response.ErrorCodeHeader))
	})

	t.Run("missing revision maps to 404", func(t *testing.T) {
		e := aliceEnv()
		e.repos.On("Find", mock.Anything, model.RepoTypeModel, "alice", "bert").Return(testRepo(), nil)
		e.store.On("StatObject", mock.Anything, testStoreName, "gone", "config.json").
			Return(&outbound.ObjectStat{PhysicalAddress: "s3://hub-blobs/data/g1abc"}, nil)
		e.store.On("LogCommits", mock.Anything, testStoreName, "gone", outbound.LogOptions{Amount: 1}).
			Return(nil, outbound.ErrNotFound)

		w := e.do(http.MethodGet, "/alice/bert/resolve/gone/config.json", "", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, apperr.CodeRevisionNotFound, w.Header().Get(response.ErrorCodeHeader))
	})

	t.Run("private repo hides from anonymous viewers", func(t *testing.T) {
		e := aliceEnv()
		e.repos.On("Find", mock.Anything, model.RepoTypeModel, "alice", "bert").Return(privateRepo(), nil)

		w := e.do(http.MethodGet, "/alice/bert/resolve/main/config.json", "", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, apperr.CodeRepoNotFound, w.Header().Get(response.ErrorCodeHeader))
		e.store.AssertNotCalled(t, "StatObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("private repo resolves for its owner", func(t *testing.T) {
		e := aliceEnv()
		e.repos.On("Find", mock.Anything, model.RepoTypeModel, "alice", "bert").Return(privateRepo(), nil)
		e.store.On("StatObject", mock.Anything, testStoreName, "main", "config.json").
			Return(&outbound.ObjectStat{PhysicalAddress: "s3://hub-blobs/data/g1abc", Checksum: "etag123", SizeBytes: 1}, nil)
		e.store.On("LogCommits", mock.Anything, testStoreName, "main", outbound.LogOptions{Amount: 1}).
			Return(&outbound.CommitPage{Commits: []outbound.CommitRecord{head}}, nil)
		e.blobs.On("PresignGet", mock.Anything, "data/g1abc", mock.Anything).
			Return(&outbound.PresignedURL{URL: "https://blobs.test/signed"}, nil)
		e.repos.On("IncrementDownloads", mock.Anything, int64(7)).Return(nil)

		w := e.do(http.MethodGet, "/alice/bert/resolve/main/config.json", aliceToken, nil)

		assert.Equal(t, http.StatusFound, w.Code, w.Body.String())
	})
}

func TestTree(t *testing.T) {
	t.Run("lists entries with LFS decoration", func(t *testing.T) {
		e := aliceEnv()
		e.repos.On("Find", mock.Anything, model.RepoTypeModel, "alice", "bert").Return(testRepo(), nil)
		e.store.On("ListObjects", mock.Anything, testStoreName, "main",
			outbound.ListOptions{Delimiter: "/", Amount: 1000}).
			Return(&outbound.ObjectPage{Objects: []outbound.ObjectStat{
				{PathType: outbound.PathTypeCommonPrefix, Path: "vocab/"},
				{PathType: outbound.PathTypeObject, Path: "config.json", Checksum: "sum1", SizeBytes: 12},
				{PathType: outbound.PathTypeObject, Path: "weights.bin", Checksum: "sumw", SizeBytes: 134},
			}}, nil)
		e.files.On("ListActiveByPrefix", mock.Anything, int64(7), "").
			Return([]*model.File{
				{PathInRepo: "weights.bin", SHA256: testLFSOID, Size: 4096, LFS: true},
			}, nil)

		w := e.do(http.MethodGet, "/api/models/alice/bert/tree/main", "", nil)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var entries []model.TreeEntry
		decodeJSON(t, w, &entries)
		require.Len(t, entries, 3)

		assert.Equal(t, "directory", entries[0].Type)
		assert.Equal(t, "vocab", entries[0].Path)

		assert.Equal(t, "file", entries[1].Type)
		assert.Equal(t, "sum1", entries[1].OID)
		assert.Nil(t, entries[1].LFS)

		require.NotNil(t, entries[2].LFS)
		assert.Equal(t, testLFSOID, entries[2].LFS.OID)
		assert.Equal(t, int64(4096), entries[2].LFS.Size)
		assert.Equal(t, len(model.LFSPointer(testLFSOID, 4096)), entries[2].LFS.PointerSize)
	})

	t.Run("pages with a Link header", func(t *testing.T) {
		e := aliceEnv()
		e.repos.On("Find", mock.Anything, model.RepoTypeModel, "alice", "bert").Return(testRepo(), nil)
		e.store.On("ListObjects", mock.Anything, testStoreName, "main",
			outbound.ListOptions{Prefix: "vocab/", After: "abc", Amount: 2}).
			Return(&outbound.ObjectPage{NextAfter: "tok42", HasMore: true}, nil)
		e.files.On("ListActiveByPrefix", mock.Anything, int64(7), "vocab/").
			Return(nil, nil)

		w := e.do(http.MethodGet, "/api/models/alice/bert/tree/main/vocab?recursive=1&cursor=abc&limit=2", "", nil)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.JSONEq(t, "[]", w.Body.String())
		assert.Equal(t,
			`</api/models/alice/bert/tree/main/vocab?cursor=tok42&limit=2&recursive=1>; rel="next"`,
			w.Header().Get("Link"))
	})

	t.Run("missing revision maps to 404", func(t *testing.T) {
		e := aliceEnv()
		e.repos.On("Find", mock.Anything, model.RepoTypeModel, "alice", "bert").Return(testRepo(), nil)
		e.store.On("ListObjects", mock.Anything, testStoreName, "gone", mock.Anything).
			Return(nil, outbound.ErrNotFound)

		w := e.do(http.MethodGet, "/api/models/alice/bert/tree/gone", "", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, apperr.CodeRevisionNotFound, w.Header().Get(response.ErrorCodeHeader))
	})
}

func TestRepoInfo(t *testing.T) {
	t.Run("returns the info document", func(t *testing.T) {
		e := aliceEnv()
		e.repos.On("Find", mock.Anything, model.RepoTypeModel, "alice", "bert").Return(testRepo(), nil)
		e.store.On("GetBranchHead", mock.Anything, testStoreName, "main").Return("c-head", nil)
		e.files.On("ListActive", mock.Anything, int64(7), 0, 0).
			Return([]*model.File{{PathInRepo: "config.json"}, {PathInRepo: "weights.bin"}}, nil)

		w := e.do(http.MethodGet, "/api/models/alice/bert", "", nil)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var info model.RepoInfo
		decodeJSON(t, w, &info)
		assert.Equal(t, "alice/bert", info.ID)
		assert.Equal(t, "alice", info.Author)
		assert.Equal(t, "c-head", info.SHA)
		require.Len(t, info.Siblings, 2)
		assert.Equal(t, "config.json", info.Siblings[0].RFilename)
	})

	t.Run("unknown repo maps to 404", func(t *testing.T) {
		e := aliceEnv()
		e.repos.On("Find", mock.Anything, model.RepoTypeModel, "alice", "missing").Return(nil, nil)

		w := e.do(http.MethodGet, "/api/models/alice/missing", "", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, apperr.CodeRepoNotFound, w.Header().Get(response.ErrorCodeHeader))
	})
}

func TestRepoList(t *testing.T) {
	t.Run("returns summaries", func(t *testing.T) {
		e := aliceEnv()
		e.repos.On("List", mock.Anything, mock.Anything).
			Return([]*model.Repository{testRepo()}, nil)

		w := e.do(http.MethodGet, "/api/models", "", nil)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var out []*model.RepoSummary
		decodeJSON(t, w, &out)
		require.Len(t, out, 1)
		assert.Equal(t, "alice/bert", out[0].ID)
		assert.Equal(t, "alice", out[0].Author)
	})

	t.Run("empty result is a JSON array", func(t *testing.T) {
		e := aliceEnv()
		e.repos.On("List", mock.Anything, mock.Anything).Return(nil, nil)

		w := e.do(http.MethodGet, "/api/models", "", nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, "[]", w.Body.String())
	})
}

func TestRepoCreate(t *testing.T) {
	t.Run("provisions the catalog row and backing store", func(t *testing.T) {
		e := aliceEnv()
		e.users.On("FindByUsername", mock.Anything, "alice").Return(testUser(), nil)
		e.repos.On("Find", mock.Anything, model.RepoTypeModel, "alice", "roberta").Return(nil, nil)
		e.repos.On("Create", mock.Anything, mock.MatchedBy(func(r *model.Repository) bool {
			return r.FullID == "alice/roberta" && r.OwnerID == 1 && !r.Private
		})).Return(nil)
		e.blobs.On("Bucket").Return("hub-blobs")
		e.store.On("CreateRepository", mock.Anything,
			"hub-model-alice-roberta-0", "s3://hub-blobs/hub-model-alice-roberta-0", "main").
			Return(nil)

		w := e.doJSON(t, http.MethodPost, "/api/repos/create", aliceToken,
			model.CreateRepoRequest{Type: model.RepoTypeModel, Name: "roberta"})

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var out model.CreateRepoResponse
		decodeJSON(t, w, &out)
		assert.Equal(t, "http://localhost:8080/alice/roberta", out.URL)
		assert.Equal(t, "alice/roberta", out.RepoID)
	})

	t.Run("requires authentication", func(t *testing.T) {
		e := aliceEnv()

		w := e.doJSON(t, http.MethodPost, "/api/repos/create", "",
			model.CreateRepoRequest{Type: model.RepoTypeModel, Name: "roberta"})

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		e.repos.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("occupied name maps to 409", func(t *testing.T) {
		e := aliceEnv()
		e.users.On("FindByUsername", mock.Anything, "alice").Return(testUser(), nil)
		e.repos.On("Find", mock.Anything, model.RepoTypeModel, "alice", "bert").Return(testRepo(), nil)

		w := e.doJSON(t, http.MethodPost, "/api/repos/create", aliceToken,
			model.CreateRepoRequest{Type: model.RepoTypeModel, Name: "bert"})

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, apperr.CodeRepoExists, w.Header().Get(response.ErrorCodeHeader))
		e.repos.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestRepoDelete(t *testing.T) {
	t.Run("removes the store, blobs and catalog rows", func(t *testing.T) {
		e := aliceEnv()
		findsTestRepo(e)
		e.store.On("DeleteRepository", mock.Anything, testStoreName).Return(nil)
		e.blobs.On("DeletePrefix", mock.Anything, testStoreName+"/").Return(3, nil)
		e.files.On("SoftDeleteByPrefix", mock.Anything, int64(7), "").Return(int64(2), nil)
		e.history.On("DistinctOIDs", mock.Anything, int64(7)).Return([]string{}, nil)
		e.repos.On("DeleteCascade", mock.Anything, int64(7)).Return(nil)
		e.users.On("FindByUsername", mock.Anything, "alice").Return(testUser(), nil)
		e.repos.On("SumUsedByNamespace", mock.Anything, "alice", false).Return(int64(0), nil)
		e.users.On("SetUsedBytes", mock.Anything, int64(1), false, int64(0)).Return(nil)

		w := e.doJSON(t, http.MethodDelete, "/api/repos/delete", aliceToken,
			model.DeleteRepoRequest{Type: model.RepoTypeModel, Name: "bert"})

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var out model.OperationResponse
		decodeJSON(t, w, &out)
		assert.True(t, out.Success)
		assert.Equal(t, "repository deleted", out.Message)
		e.repos.AssertCalled(t, "DeleteCascade", mock.Anything, int64(7))
	})

	t.Run("outsiders cannot delete in a foreign namespace", func(t *testing.T) {
		bob := &model.User{ID: 2, Username: "bob", NormalizedName: "bob", IsActive: true}
		e := newTestEnv(staticTokens{"tok-bob": bob})
		e.repos.On("Find", mock.Anything, model.RepoTypeModel, "alice", "bert").Return(testRepo(), nil)
		e.users.On("FindByUsername", mock.Anything, "alice").Return(testUser(), nil)

		owner := "alice"
		w := e.doJSON(t, http.MethodDelete, "/api/repos/delete", "tok-bob",
			model.DeleteRepoRequest{Type: model.RepoTypeModel, Name: "bert", Organization: &owner})

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, apperr.CodeForbidden, w.Header().Get(response.ErrorCodeHeader))
		assert.Contains(t, w.Body.String(), "delete access to alice/bert denied")
		e.repos.AssertNotCalled(t, "DeleteCascade", mock.Anything, mock.Anything)
		e.store.AssertNotCalled(t, "DeleteRepository", mock.Anything, mock.Anything)
	})
}

func TestRepoMove(t *testing.T) {
	t.Run("migrates the store and renames the catalog row", func(t *testing.T) {
		e := aliceEnv()
		newStore := "hub-model-alice-bert2-7"
		findsTestRepo(e)
		e.users.On("FindByUsername", mock.Anything, "alice").Return(testUser(), nil)
		e.repos.On("Find", mock.Anything, model.RepoTypeModel, "alice", "bert2").Return(nil, nil)
		e.blobs.On("Bucket").Return("hub-blobs")
		e.store.On("CreateRepository", mock.Anything, newStore, "s3://hub-blobs/"+newStore, "main").
			Return(nil)
		e.store.On("ListObjects", mock.Anything, testStoreName, "main", outbound.ListOptions{Amount: 1000}).
			Return(&outbound.ObjectPage{}, nil)
		e.store.On("DeleteRepository", mock.Anything, testStoreName).Return(nil)
		e.repos.On("Rename", mock.Anything, int64(7), "alice", "bert2", "alice/bert2", int64(1)).
			Return(nil)
		e.blobs.On("DeletePrefix", mock.Anything, testStoreName+"/").Return(0, nil)
		e.repos.On("SumUsedByNamespace", mock.Anything, "alice", false).Return(int64(0), nil)
		e.users.On("SetUsedBytes", mock.Anything, int64(1), false, int64(0)).Return(nil)

		w := e.doJSON(t, http.MethodPost, "/api/repos/move", aliceToken,
			model.MoveRepoRequest{FromRepo: "alice/bert", ToRepo: "alice/bert2", Type: model.RepoTypeModel})

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var out model.OperationResponse
		decodeJSON(t, w, &out)
		assert.True(t, out.Success)
		assert.Equal(t, "Moved alice/bert to alice/bert2", out.Message)
		assert.Equal(t, "http://localhost:8080/alice/bert2", out.URL)
		e.repos.AssertCalled(t, "Rename", mock.Anything, int64(7), "alice", "bert2", "alice/bert2", int64(1))
		// An empty tree migrates without a commit on the destination.
		e.store.AssertNotCalled(t, "Commit",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("occupied destination maps to 409", func(t *testing.T) {
		e := aliceEnv()
		findsTestRepo(e)
		e.users.On("FindByUsername", mock.Anything, "alice").Return(testUser(), nil)
		e.repos.On("Find", mock.Anything, model.RepoTypeModel, "alice", "bert2").Return(testRepo(), nil)

		w := e.doJSON(t, http.MethodPost, "/api/repos/move", aliceToken,
			model.MoveRepoRequest{FromRepo: "alice/bert", ToRepo: "alice/bert2", Type: model.RepoTypeModel})

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, apperr.CodeRepoExists, w.Header().Get(response.ErrorCodeHeader))
		e.store.AssertNotCalled(t, "CreateRepository",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		e.repos.AssertNotCalled(t, "Rename",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("identical source and destination is rejected", func(t *testing.T) {
		e := aliceEnv()

		w := e.doJSON(t, http.MethodPost, "/api/repos/move", aliceToken,
			model.MoveRepoRequest{FromRepo: "alice/bert", ToRepo: "alice/bert", Type: model.RepoTypeModel})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "same repository")
		e.repos.AssertNotCalled(t, "Find",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestRepoSquash(t *testing.T) {
	t.Run("unknown repo maps to 404", func(t *testing.T) {
		e := aliceEnv()
		e.repos.On("Find", mock.Anything, model.RepoTypeModel, "alice", "missing").Return(nil, nil)

		w := e.doJSON(t, http.MethodPost, "/api/repos/squash", aliceToken,
			model.SquashRepoRequest{Repo: "alice/missing", Type: model.RepoTypeModel})

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, apperr.CodeRepoNotFound, w.Header().Get(response.ErrorCodeHeader))
		e.store.AssertNotCalled(t, "CreateRepository",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
