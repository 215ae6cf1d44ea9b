// Package outboundtest provides hand-written testify mocks for the outbound
// ports, shared by domain tests.
package outboundtest

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/kohakuhub/server/internal/model"
	"github.com/kohakuhub/server/internal/port/outbound"
)

// ===== Metadata stores =====

type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserStore) Update(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserStore) FindByID(ctx context.Context, id int64) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserStore) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserStore) FindByNormalizedName(ctx context.Context, normalized string) (*model.User, error) {
	args := m.Called(ctx, normalized)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserStore) AddUsedBytes(ctx context.Context, userID int64, private bool, delta int64) error {
	args := m.Called(ctx, userID, private, delta)
	return args.Error(0)
}

func (m *MockUserStore) SetUsedBytes(ctx context.Context, userID int64, private bool, used int64) error {
	args := m.Called(ctx, userID, private, used)
	return args.Error(0)
}

func (m *MockUserStore) OrgRole(ctx context.Context, userID, orgID int64) (model.OrgRole, bool, error) {
	args := m.Called(ctx, userID, orgID)
	return args.Get(0).(model.OrgRole), args.Bool(1), args.Error(2)
}

func (m *MockUserStore) ListOrgsOf(ctx context.Context, userID int64) ([]*model.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.User), args.Error(1)
}

func (m *MockUserStore) Counts(ctx context.Context) (int64, int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}

type MockTokenStore struct {
	mock.Mock
}

func (m *MockTokenStore) FindByHash(ctx context.Context, hash string) (*model.Token, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Token), args.Error(1)
}

func (m *MockTokenStore) Touch(ctx context.Context, tokenID int64, when time.Time) error {
	args := m.Called(ctx, tokenID, when)
	return args.Error(0)
}

type MockRepoStore struct {
	mock.Mock
}

func (m *MockRepoStore) Create(ctx context.Context, repo *model.Repository) error {
	args := m.Called(ctx, repo)
	return args.Error(0)
}

func (m *MockRepoStore) Update(ctx context.Context, repo *model.Repository) error {
	args := m.Called(ctx, repo)
	return args.Error(0)
}

func (m *MockRepoStore) FindByID(ctx context.Context, id int64) (*model.Repository, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Repository), args.Error(1)
}

func (m *MockRepoStore) Find(ctx context.Context, repoType model.RepoType, namespace, name string) (*model.Repository, error) {
	args := m.Called(ctx, repoType, namespace, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Repository), args.Error(1)
}

func (m *MockRepoStore) List(ctx context.Context, filter outbound.RepoFilter) ([]*model.Repository, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Repository), args.Error(1)
}

func (m *MockRepoStore) Rename(ctx context.Context, repoID int64, namespace, name, fullID string, ownerID int64) error {
	args := m.Called(ctx, repoID, namespace, name, fullID, ownerID)
	return args.Error(0)
}

func (m *MockRepoStore) DeleteCascade(ctx context.Context, repoID int64) error {
	args := m.Called(ctx, repoID)
	return args.Error(0)
}

func (m *MockRepoStore) SetUsedBytes(ctx context.Context, repoID, used int64) error {
	args := m.Called(ctx, repoID, used)
	return args.Error(0)
}

func (m *MockRepoStore) IncrementDownloads(ctx context.Context, repoID int64) error {
	args := m.Called(ctx, repoID)
	return args.Error(0)
}

func (m *MockRepoStore) SumUsedByNamespace(ctx context.Context, namespace string, private bool) (int64, error) {
	args := m.Called(ctx, namespace, private)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepoStore) CountByType(ctx context.Context) (map[model.RepoType]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[model.RepoType]int64), args.Error(1)
}

func (m *MockRepoStore) TotalUsedBytes(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type MockFileStore struct {
	mock.Mock
}

func (m *MockFileStore) Upsert(ctx context.Context, file *model.File) error {
	args := m.Called(ctx, file)
	return args.Error(0)
}

func (m *MockFileStore) Find(ctx context.Context, repoID int64, path string) (*model.File, error) {
	args := m.Called(ctx, repoID, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.File), args.Error(1)
}

func (m *MockFileStore) FindActiveLFS(ctx context.Context, sha256 string, size int64) (*model.File, error) {
	args := m.Called(ctx, sha256, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.File), args.Error(1)
}

func (m *MockFileStore) FindActiveLFSInRepo(ctx context.Context, repoID int64, sha256 string) (*model.File, error) {
	args := m.Called(ctx, repoID, sha256)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.File), args.Error(1)
}

func (m *MockFileStore) CountActiveLFSRefs(ctx context.Context, sha256 string) (int64, error) {
	args := m.Called(ctx, sha256)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockFileStore) ListActive(ctx context.Context, repoID int64, limit, offset int) ([]*model.File, error) {
	args := m.Called(ctx, repoID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.File), args.Error(1)
}

func (m *MockFileStore) ListActiveByPrefix(ctx context.Context, repoID int64, prefix string) ([]*model.File, error) {
	args := m.Called(ctx, repoID, prefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.File), args.Error(1)
}

func (m *MockFileStore) SoftDelete(ctx context.Context, repoID int64, path string) error {
	args := m.Called(ctx, repoID, path)
	return args.Error(0)
}

func (m *MockFileStore) SoftDeleteByPrefix(ctx context.Context, repoID int64, prefix string) (int64, error) {
	args := m.Called(ctx, repoID, prefix)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockFileStore) DeleteHard(ctx context.Context, repoID int64, path string) error {
	args := m.Called(ctx, repoID, path)
	return args.Error(0)
}

func (m *MockFileStore) SumActiveSize(ctx context.Context, repoID int64) (int64, error) {
	args := m.Called(ctx, repoID)
	return args.Get(0).(int64), args.Error(1)
}

type MockCommitStore struct {
	mock.Mock
}

func (m *MockCommitStore) Create(ctx context.Context, commit *model.Commit) error {
	args := m.Called(ctx, commit)
	return args.Error(0)
}

func (m *MockCommitStore) FindByCommitID(ctx context.Context, repoID int64, commitID string) (*model.Commit, error) {
	args := m.Called(ctx, repoID, commitID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Commit), args.Error(1)
}

func (m *MockCommitStore) FindByCommitIDs(ctx context.Context, repoID int64, commitIDs []string) (map[string]*model.Commit, error) {
	args := m.Called(ctx, repoID, commitIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]*model.Commit), args.Error(1)
}

type MockLFSHistoryStore struct {
	mock.Mock
}

func (m *MockLFSHistoryStore) Insert(ctx context.Context, row *model.LFSObjectHistory) error {
	args := m.Called(ctx, row)
	return args.Error(0)
}

func (m *MockLFSHistoryStore) ListByRepoPath(ctx context.Context, repoID int64, path string) ([]*model.LFSObjectHistory, error) {
	args := m.Called(ctx, repoID, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.LFSObjectHistory), args.Error(1)
}

func (m *MockLFSHistoryStore) ListByCommit(ctx context.Context, repoID int64, commitID string) ([]*model.LFSObjectHistory, error) {
	args := m.Called(ctx, repoID, commitID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.LFSObjectHistory), args.Error(1)
}

func (m *MockLFSHistoryStore) DistinctOIDs(ctx context.Context, repoID int64) ([]string, error) {
	args := m.Called(ctx, repoID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockLFSHistoryStore) CountByOID(ctx context.Context, sha256 string, repoID *int64) (int64, error) {
	args := m.Called(ctx, sha256, repoID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLFSHistoryStore) DeleteByOID(ctx context.Context, sha256 string, repoID *int64) (int64, error) {
	args := m.Called(ctx, sha256, repoID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLFSHistoryStore) TotalDistinctSize(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type MockStagingStore struct {
	mock.Mock
}

func (m *MockStagingStore) Create(ctx context.Context, upload *model.StagingUpload) error {
	args := m.Called(ctx, upload)
	return args.Error(0)
}

func (m *MockStagingStore) FindByUploadID(ctx context.Context, uploadID string) (*model.StagingUpload, error) {
	args := m.Called(ctx, uploadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.StagingUpload), args.Error(1)
}

func (m *MockStagingStore) Delete(ctx context.Context, uploadID string) error {
	args := m.Called(ctx, uploadID)
	return args.Error(0)
}

func (m *MockStagingStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

// ===== Versioned store =====

type MockVersionedStore struct {
	mock.Mock
}

func (m *MockVersionedStore) CreateRepository(ctx context.Context, name, storageNamespace, defaultBranch string) error {
	args := m.Called(ctx, name, storageNamespace, defaultBranch)
	return args.Error(0)
}

func (m *MockVersionedStore) DeleteRepository(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *MockVersionedStore) CreateBranch(ctx context.Context, repo, name, sourceRef string) error {
	args := m.Called(ctx, repo, name, sourceRef)
	return args.Error(0)
}

func (m *MockVersionedStore) DeleteBranch(ctx context.Context, repo, name string) error {
	args := m.Called(ctx, repo, name)
	return args.Error(0)
}

func (m *MockVersionedStore) GetBranchHead(ctx context.Context, repo, branch string) (string, error) {
	args := m.Called(ctx, repo, branch)
	return args.String(0), args.Error(1)
}

func (m *MockVersionedStore) CreateTag(ctx context.Context, repo, tag, ref string) (string, error) {
	args := m.Called(ctx, repo, tag, ref)
	return args.String(0), args.Error(1)
}

func (m *MockVersionedStore) DeleteTag(ctx context.Context, repo, tag string) error {
	args := m.Called(ctx, repo, tag)
	return args.Error(0)
}

func (m *MockVersionedStore) ListObjects(ctx context.Context, repo, ref string, opts outbound.ListOptions) (*outbound.ObjectPage, error) {
	args := m.Called(ctx, repo, ref, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbound.ObjectPage), args.Error(1)
}

func (m *MockVersionedStore) StatObject(ctx context.Context, repo, ref, path string) (*outbound.ObjectStat, error) {
	args := m.Called(ctx, repo, ref, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbound.ObjectStat), args.Error(1)
}

func (m *MockVersionedStore) GetObject(ctx context.Context, repo, ref, path string) ([]byte, error) {
	args := m.Called(ctx, repo, ref, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockVersionedStore) UploadObject(ctx context.Context, repo, branch, path string, content []byte) (*outbound.ObjectStat, error) {
	args := m.Called(ctx, repo, branch, path, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbound.ObjectStat), args.Error(1)
}

func (m *MockVersionedStore) LinkPhysicalAddress(ctx context.Context, repo, branch, path, physicalAddress, checksum string, sizeBytes int64) (*outbound.ObjectStat, error) {
	args := m.Called(ctx, repo, branch, path, physicalAddress, checksum, sizeBytes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbound.ObjectStat), args.Error(1)
}

func (m *MockVersionedStore) DeleteObject(ctx context.Context, repo, branch, path string) error {
	args := m.Called(ctx, repo, branch, path)
	return args.Error(0)
}

func (m *MockVersionedStore) Commit(ctx context.Context, repo, branch, message string, metadata map[string]string) (*outbound.CommitRecord, error) {
	args := m.Called(ctx, repo, branch, message, metadata)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbound.CommitRecord), args.Error(1)
}

func (m *MockVersionedStore) GetCommit(ctx context.Context, repo, commitID string) (*outbound.CommitRecord, error) {
	args := m.Called(ctx, repo, commitID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbound.CommitRecord), args.Error(1)
}

func (m *MockVersionedStore) LogCommits(ctx context.Context, repo, ref string, opts outbound.LogOptions) (*outbound.CommitPage, error) {
	args := m.Called(ctx, repo, ref, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbound.CommitPage), args.Error(1)
}

func (m *MockVersionedStore) DiffRefs(ctx context.Context, repo, leftRef, rightRef string, opts outbound.DiffOptions) (*outbound.DiffPage, error) {
	args := m.Called(ctx, repo, leftRef, rightRef, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbound.DiffPage), args.Error(1)
}

func (m *MockVersionedStore) Revert(ctx context.Context, repo, branch, ref string, parentNumber int) error {
	args := m.Called(ctx, repo, branch, ref, parentNumber)
	return args.Error(0)
}

func (m *MockVersionedStore) Merge(ctx context.Context, repo, sourceRef, destBranch string, opts outbound.MergeOptions) (string, error) {
	args := m.Called(ctx, repo, sourceRef, destBranch, opts)
	return args.String(0), args.Error(1)
}

// ===== Blob store =====

type MockBlobStore struct {
	mock.Mock
}

func (m *MockBlobStore) Bucket() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockBlobStore) PresignPut(ctx context.Context, key string, opts outbound.PresignPutOptions) (*outbound.PresignedURL, error) {
	args := m.Called(ctx, key, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbound.PresignedURL), args.Error(1)
}

func (m *MockBlobStore) PresignGet(ctx context.Context, key string, opts outbound.PresignGetOptions) (*outbound.PresignedURL, error) {
	args := m.Called(ctx, key, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbound.PresignedURL), args.Error(1)
}

func (m *MockBlobStore) CreateMultipart(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockBlobStore) PresignPart(ctx context.Context, key, uploadID string, partNumber int32, expires time.Duration) (*outbound.PresignedURL, error) {
	args := m.Called(ctx, key, uploadID, partNumber, expires)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbound.PresignedURL), args.Error(1)
}

func (m *MockBlobStore) CompleteMultipart(ctx context.Context, key, uploadID string, parts []outbound.CompletedPart) (*outbound.ObjectInfo, error) {
	args := m.Called(ctx, key, uploadID, parts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbound.ObjectInfo), args.Error(1)
}

func (m *MockBlobStore) AbortMultipart(ctx context.Context, key, uploadID string) error {
	args := m.Called(ctx, key, uploadID)
	return args.Error(0)
}

func (m *MockBlobStore) Head(ctx context.Context, key string) (*outbound.ObjectInfo, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbound.ObjectInfo), args.Error(1)
}

func (m *MockBlobStore) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockBlobStore) List(ctx context.Context, prefix string, limit int) ([]outbound.ObjectInfo, bool, error) {
	args := m.Called(ctx, prefix, limit)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]outbound.ObjectInfo), args.Bool(1), args.Error(2)
}

func (m *MockBlobStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockBlobStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	args := m.Called(ctx, prefix)
	return args.Int(0), args.Error(1)
}

// ===== Caches =====

type MockPrincipalCache struct {
	mock.Mock
}

func (m *MockPrincipalCache) GetUserID(ctx context.Context, tokenHash string) (int64, error) {
	args := m.Called(ctx, tokenHash)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPrincipalCache) SetUserID(ctx context.Context, tokenHash string, userID int64, ttl time.Duration) error {
	args := m.Called(ctx, tokenHash, userID, ttl)
	return args.Error(0)
}

func (m *MockPrincipalCache) Invalidate(ctx context.Context, tokenHash string) error {
	args := m.Called(ctx, tokenHash)
	return args.Error(0)
}

type MockConfirmationStore struct {
	mock.Mock
}

func (m *MockConfirmationStore) Put(ctx context.Context, token string, value string, ttl time.Duration) error {
	args := m.Called(ctx, token, value, ttl)
	return args.Error(0)
}

func (m *MockConfirmationStore) Take(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

type MockRateLimiter struct {
	mock.Mock
}

func (m *MockRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func (m *MockRateLimiter) Remaining(ctx context.Context, key string, limit int, window time.Duration) (int, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Int(0), args.Error(1)
}

// ===== Compile-time checks =====

var (
	_ outbound.UserStore         = (*MockUserStore)(nil)
	_ outbound.TokenStore        = (*MockTokenStore)(nil)
	_ outbound.RepoStore         = (*MockRepoStore)(nil)
	_ outbound.FileStore         = (*MockFileStore)(nil)
	_ outbound.CommitStore       = (*MockCommitStore)(nil)
	_ outbound.LFSHistoryStore   = (*MockLFSHistoryStore)(nil)
	_ outbound.StagingStore      = (*MockStagingStore)(nil)
	_ outbound.VersionedStore    = (*MockVersionedStore)(nil)
	_ outbound.BlobStore         = (*MockBlobStore)(nil)
	_ outbound.PrincipalCache    = (*MockPrincipalCache)(nil)
	_ outbound.ConfirmationStore = (*MockConfirmationStore)(nil)
	_ outbound.RateLimiter       = (*MockRateLimiter)(nil)
)
