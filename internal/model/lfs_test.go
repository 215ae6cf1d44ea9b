package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLFSObjectKey(t *testing.T) {
	oid := strings.Repeat("ab", 32)
	assert.Equal(t, "lfs/ab/ab/"+oid, LFSObjectKey(oid))

	oid = "0123" + strings.Repeat("f", 60)
	assert.Equal(t, "lfs/01/23/"+oid, LFSObjectKey(oid))

	assert.Equal(t, "lfs/abc", LFSObjectKey("abc"))
}

func TestIsLFSKey(t *testing.T) {
	assert.True(t, IsLFSKey("lfs/ab/cd/"+strings.Repeat("a", 64)))
	assert.False(t, IsLFSKey("hub-model-alice-m1-7/data/g1"))
	assert.False(t, IsLFSKey("lfsish/ab"))
}

func TestLFSPointer(t *testing.T) {
	oid := strings.Repeat("1a", 32)
	want := "version https://git-lfs.github.com/spec/v1\noid sha256:" + oid + "\nsize 50000000\n"
	assert.Equal(t, want, LFSPointer(oid, 50000000))
}

func TestIsValidLFSOID(t *testing.T) {
	assert.True(t, IsValidLFSOID(strings.Repeat("0f", 32)))
	assert.False(t, IsValidLFSOID(strings.Repeat("0F", 32)))
	assert.False(t, IsValidLFSOID(strings.Repeat("0f", 31)))
	assert.False(t, IsValidLFSOID(""))
	assert.False(t, IsValidLFSOID(strings.Repeat("g", 64)))
}

func TestBlobKeyFromAddress(t *testing.T) {
	key, ok := BlobKeyFromAddress("s3://kohakuhub/lfs/ab/cd/ef01")
	assert.True(t, ok)
	assert.Equal(t, "lfs/ab/cd/ef01", key)

	_, ok = BlobKeyFromAddress("file:///tmp/x")
	assert.False(t, ok)

	_, ok = BlobKeyFromAddress("s3://bucket-only")
	assert.False(t, ok)

	_, ok = BlobKeyFromAddress("s3://bucket/")
	assert.False(t, ok)
}
