package http

import (
	"encoding/base64"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kohakuhub/server/internal/model"
	"github.com/kohakuhub/server/internal/port/outbound"
	apperr "github.com/kohakuhub/server/internal/shared/errors"
	"github.com/kohakuhub/server/internal/shared/response"
)

// ndjson joins commit operation lines into a request body.
func ndjson(lines ...string) *strings.Reader {
	return strings.NewReader(strings.Join(lines, "\n") + "\n")
}

func TestCommit(t *testing.T) {
	t.Run("writes inline content and records the commit", func(t *testing.T) {
		e := aliceEnv()
		content := []byte("hello hub")
		encoded := base64.StdEncoding.EncodeToString(content)

		e.repos.On("Find", mock.Anything, model.RepoTypeModel, "alice", "bert").Return(testRepo(), nil)
		e.files.On("Find", mock.Anything, int64(7), "config.json").Return(nil, nil)
		e.store.On("UploadObject", mock.Anything, testStoreName, "main", "config.json", content).
			Return(&outbound.ObjectStat{Path: "config.json", SizeBytes: 9}, nil)
		e.files.On("Upsert", mock.Anything, mock.MatchedBy(func(f *model.File) bool {
			return f.RepositoryID == 7 && f.PathInRepo == "config.json" &&
				f.Size == int64(len(content)) && !f.LFS && f.OwnerID == 1
		})).Return(nil)
		e.store.On("Commit", mock.Anything, testStoreName, "main", "add config", mock.Anything).
			Return(&outbound.CommitRecord{ID: "c-new"}, nil)
		e.store.On("GetCommit", mock.Anything, testStoreName, "c-new").
			Return(&outbound.CommitRecord{ID: "c-new"}, nil)
		e.commits.On("Create", mock.Anything, mock.MatchedBy(func(row *model.Commit) bool {
			return row.CommitID == "c-new" && row.RepositoryID == 7 &&
				row.Branch == "main" && row.Username == "alice"
		})).Return(nil)
		e.files.On("SumActiveSize", mock.Anything, int64(7)).Return(int64(9), nil)
		e.repos.On("SetUsedBytes", mock.Anything, int64(7), int64(9)).Return(nil)
		e.users.On("FindByUsername", mock.Anything, "alice").Return(testUser(), nil)
		e.repos.On("SumUsedByNamespace", mock.Anything, "alice", false).Return(int64(9), nil)
		e.users.On("SetUsedBytes", mock.Anything, int64(1), false, int64(9)).Return(nil)

		body := ndjson(
			`{"key":"header","value":{"summary":"add config"}}`,
			`{"key":"file","value":{"path":"config.json","content":"`+encoded+`","encoding":"base64"}}`,
		)
		w := e.do(http.MethodPost, "/api/models/alice/bert/commit/main", aliceToken, body)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var resp model.CommitResponse
		decodeJSON(t, w, &resp)
		assert.Equal(t, "c-new", resp.CommitOID)
		assert.Equal(t, "http://localhost:8080/alice/bert/commit/c-new", resp.CommitURL)
		e.files.AssertExpectations(t)
		e.store.AssertExpectations(t)
	})

	t.Run("header-only commit returns the branch head", func(t *testing.T) {
		e := aliceEnv()
		e.repos.On("Find", mock.Anything, model.RepoTypeModel, "alice", "bert").Return(testRepo(), nil)
		e.store.On("GetBranchHead", mock.Anything, testStoreName, "main").Return("c-head", nil)

		w := e.do(http.MethodPost, "/api/models/alice/bert/commit/main", aliceToken,
			ndjson(`{"key":"header","value":{"summary":"noop"}}`))

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var resp model.CommitResponse
		decodeJSON(t, w, &resp)
		assert.Equal(t, "c-head", resp.CommitOID)
		e.store.AssertNotCalled(t, "Commit",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejects a body that does not start with a header", func(t *testing.T) {
		e := aliceEnv()
		e.repos.On("Find", mock.Anything, model.RepoTypeModel, "alice", "bert").Return(testRepo(), nil)

		w := e.do(http.MethodPost, "/api/models/alice/bert/commit/main", aliceToken,
			ndjson(`{"key":"file","value":{"path":"a.txt","content":"aGk=","encoding":"base64"}}`))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "must start with a header line")
	})

	t.Run("rejects inline content that belongs in LFS", func(t *testing.T) {
		e := aliceEnv()
		r := testRepo()
		r.LFSSuffixPatterns = []string{".safetensors"}
		e.repos.On("Find", mock.Anything, model.RepoTypeModel, "alice", "bert").Return(r, nil)

		body := ndjson(
			`{"key":"header","value":{"summary":"add weights"}}`,
			`{"key":"file","value":{"path":"model.safetensors","content":"aGk=","encoding":"base64"}}`,
		)
		w := e.do(http.MethodPost, "/api/models/alice/bert/commit/main", aliceToken, body)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "must be uploaded as an LFS object")
		e.store.AssertNotCalled(t, "UploadObject",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("anonymous commits are rejected", func(t *testing.T) {
		e := aliceEnv()

		w := e.do(http.MethodPost, "/api/models/alice/bert/commit/main", "",
			ndjson(`{"key":"header","value":{"summary":"x"}}`))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		e.repos.AssertNotCalled(t, "Find",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("non-owner writes are forbidden", func(t *testing.T) {
		mallory := &model.User{ID: 2, Username: "mallory", NormalizedName: "mallory", IsActive: true}
		e := newTestEnv(staticTokens{"tok-mallory": mallory})
		e.repos.On("Find", mock.Anything, model.RepoTypeModel, "alice", "bert").Return(testRepo(), nil)
		e.users.On("FindByUsername", mock.Anything, "alice").Return(testUser(), nil)

		w := e.do(http.MethodPost, "/api/models/alice/bert/commit/main", "tok-mallory",
			ndjson(`{"key":"header","value":{"summary":"x"}}`))

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, apperr.CodeForbidden, w.Header().Get(response.ErrorCodeHeader))
	})
}

func TestPreupload(t *testing.T) {
	e := aliceEnv()
	e.repos.On("Find", mock.Anything, model.RepoTypeModel, "alice", "bert").Return(testRepo(), nil)
	e.files.On("Find", mock.Anything, int64(7), "config.json").
		Return(&model.File{PathInRepo: "config.json", SHA256: "abc123", Size: 12}, nil)

	req := model.PreuploadRequest{Files: []model.PreuploadFile{
		{Path: "config.json", Size: 12, SHA256: "abc123"},
		{Path: "weights.bin", Size: 50 * 1024 * 1024},
	}}
	w := e.doJSON(t, http.MethodPost, "/api/models/alice/bert/preupload/main", aliceToken, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp model.PreuploadResponse
	decodeJSON(t, w, &resp)
	require.Len(t, resp.Files, 2)

	assert.Equal(t, model.UploadModeRegular, resp.Files[0].UploadMode)
	assert.True(t, resp.Files[0].ShouldIgnore, "identical live content uploads again otherwise")

	assert.Equal(t, model.UploadModeLFS, resp.Files[1].UploadMode, "files over the threshold go through LFS")
	assert.False(t, resp.Files[1].ShouldIgnore)
}

func TestCommitHistory(t *testing.T) {
	e := aliceEnv()
	e.repos.On("Find", mock.Anything, model.RepoTypeModel, "alice", "bert").Return(testRepo(), nil)
	e.store.On("LogCommits", mock.Anything, testStoreName, "main",
		outbound.LogOptions{After: "c-7", Amount: 2}).
		Return(&outbound.CommitPage{
			Commits: []outbound.CommitRecord{
				{ID: "c-6", Message: "tune heads\n\nlonger body"},
				{ID: "c-5", Message: "initial import"},
			},
			NextAfter: "c-5",
			HasMore:   true,
		}, nil)
	e.commits.On("FindByCommitIDs", mock.Anything, int64(7), []string{"c-6", "c-5"}).
		Return(map[string]*model.Commit{
			"c-6": {CommitID: "c-6", Username: "alice"},
		}, nil)

	w := e.do(http.MethodGet, "/api/models/alice/bert/commits/main?limit=2&after=c-7", "", nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var list model.CommitList
	decodeJSON(t, w, &list)
	require.Len(t, list.Commits, 2)
	assert.Equal(t, "c-6", list.Commits[0].ID)
	assert.Equal(t, "tune heads", list.Commits[0].Title)
	assert.Equal(t, "alice", list.Commits[0].Author)
	assert.True(t, list.HasMore)
	assert.Equal(t, "c-5", list.NextCursor)
}
