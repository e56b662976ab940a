package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"widget-chat-service/internal/models"
)

func TestPreviewPrefersContainment(t *testing.T) {
	rules := []models.AutoReplyRule{rule(1, "hours", "9-5")}

	got, ok := Preview("what are your hours?", rules, 0.8)
	require.True(t, ok)
	assert.True(t, got.Exact)
	assert.Equal(t, 1.0, got.Score)
}

func TestPreviewToleratesTypos(t *testing.T) {
	rules := []models.AutoReplyRule{rule(1, "shipping", "2-3 days"), rule(2, "refund", "30 days")}

	got, ok := Preview("how long does shiping take", rules, 0.8)
	require.True(t, ok)
	assert.False(t, got.Exact)
	assert.Equal(t, int64(1), got.Rule.ID)
	assert.GreaterOrEqual(t, got.Score, 0.8)

	// The authoritative matcher disagrees on typos.
	_, exact := Match("how long does shiping take", rules)
	assert.False(t, exact)
}

func TestPreviewMultiWordKeyword(t *testing.T) {
	rules := []models.AutoReplyRule{rule(1, "opening hours", "9-5")}

	got, ok := Preview("what are your openin hours", rules, 0.8)
	require.True(t, ok)
	assert.Equal(t, int64(1), got.Rule.ID)
}

func TestPreviewBelowThreshold(t *testing.T) {
	rules := []models.AutoReplyRule{rule(1, "pricing", "p")}

	_, ok := Preview("xyz", rules, 0.8)
	assert.False(t, ok)

	_, ok = Preview("", rules, 0.8)
	assert.False(t, ok)
}
