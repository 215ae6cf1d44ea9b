package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRepoTypePlural(t *testing.T) {
	assert.Equal(t, "models", RepoTypeModel.Plural())
	assert.Equal(t, "datasets", RepoTypeDataset.Plural())
	assert.Equal(t, "spaces", RepoTypeSpace.Plural())

	rt, ok := RepoTypeFromPlural("datasets")
	assert.True(t, ok)
	assert.Equal(t, RepoTypeDataset, rt)

	_, ok = RepoTypeFromPlural("notebooks")
	assert.False(t, ok)
}

func TestShouldUseLFS(t *testing.T) {
	rules := LFSRules{
		ThresholdBytes: 10 * 1024 * 1024,
		SuffixPatterns: []string{".safetensors", "*.bin"},
	}

	// Strictly greater than the threshold.
	assert.False(t, rules.ShouldUseLFS("data.txt", 10*1024*1024))
	assert.True(t, rules.ShouldUseLFS("data.txt", 10*1024*1024+1))

	assert.True(t, rules.ShouldUseLFS("model.safetensors", 1))
	assert.True(t, rules.ShouldUseLFS("weights/pytorch_model.bin", 1))
	assert.False(t, rules.ShouldUseLFS("README.md", 1))
}

func TestEffectiveLFSRules(t *testing.T) {
	defaults := LFSRules{ThresholdBytes: 10 * 1024 * 1024, KeepVersions: 5}

	repo := &Repository{}
	assert.Equal(t, defaults, repo.EffectiveLFSRules(defaults))

	threshold := int64(1024)
	keep := 2
	repo = &Repository{
		LFSThresholdBytes: &threshold,
		LFSKeepVersions:   &keep,
		LFSSuffixPatterns: []string{".onnx"},
	}
	rules := repo.EffectiveLFSRules(defaults)
	assert.Equal(t, int64(1024), rules.ThresholdBytes)
	assert.Equal(t, 2, rules.KeepVersions)
	assert.Equal(t, []string{".onnx"}, rules.SuffixPatterns)
}
