package experiments

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketDeterministic(t *testing.T) {
	variants := []string{"control", "treatment"}

	first := Bucket("new_checkout", "identity-1", variants)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Bucket("new_checkout", "identity-1", variants))
	}
	assert.Contains(t, variants, first)
}

func TestBucketVariesByExperiment(t *testing.T) {
	variants := []string{"a", "b", "c", "d"}

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		seen[Bucket(fmt.Sprintf("experiment_%d", i), "identity-1", variants)] = true
	}
	// one identity across many experiments should not always land in the
	// same variant
	assert.Greater(t, len(seen), 1)
}

func TestBucketEmptyVariants(t *testing.T) {
	assert.Equal(t, "", Bucket("exp", "id", nil))
}

func TestBucketSplitRoughlyUniform(t *testing.T) {
	variants := []string{"control", "treatment"}

	counts := make(map[string]int)
	for i := 0; i < 1000; i++ {
		counts[Bucket("pricing_test", fmt.Sprintf("identity-%d", i), variants)]++
	}

	require.Equal(t, 1000, counts["control"]+counts["treatment"])
	assert.Greater(t, counts["control"], 400)
	assert.Less(t, counts["control"], 600)
}
