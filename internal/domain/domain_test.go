package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimilarityBreakdown_MarshalPreservesOrder(t *testing.T) {
	b := SimilarityBreakdown{
		{Category: "Water", Score: 0.512},
		{Category: "Healthcare", Score: 0.1},
		{Category: "Roads", Score: -0.02},
	}

	data, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, `{"Water":0.512,"Healthcare":0.1,"Roads":-0.02}`, string(data))
}

func TestSimilarityBreakdown_UnmarshalPreservesOrder(t *testing.T) {
	var b SimilarityBreakdown
	err := json.Unmarshal([]byte(`{"Sanitation":0.3,"Education":0.2,"Water":0.9}`), &b)
	require.NoError(t, err)

	assert.Equal(t, []string{"Sanitation", "Education", "Water"}, b.Categories())
	score, ok := b.Get("Water")
	assert.True(t, ok)
	assert.Equal(t, 0.9, score)
}

func TestSimilarityBreakdown_UnmarshalRejectsArray(t *testing.T) {
	var b SimilarityBreakdown
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &b))
}

func TestSimilarityBreakdown_ScanFromDatabase(t *testing.T) {
	var b SimilarityBreakdown
	require.NoError(t, b.Scan([]byte(`{"Electricity":0.44}`)))
	assert.Equal(t, SimilarityBreakdown{{Category: "Electricity", Score: 0.44}}, b)

	require.NoError(t, b.Scan(nil))
	assert.Empty(t, b)

	assert.Error(t, b.Scan(42))
}

func TestStatus_IsManualTarget(t *testing.T) {
	for _, s := range []Status{StatusSubmitted, StatusInProgress, StatusCompleted, StatusRejected} {
		assert.True(t, s.IsManualTarget(), s)
	}
	assert.False(t, StatusEscalated.IsManualTarget())
	assert.False(t, Status("Closed").IsManualTarget())
}

func TestLanguage_Valid(t *testing.T) {
	assert.True(t, LanguageEnglish.Valid())
	assert.True(t, LanguageTamil.Valid())
	assert.True(t, LanguageHindi.Valid())
	assert.False(t, Language("fr").Valid())
}

func TestComplaintBeforeCreate_GeneratesUUID(t *testing.T) {
	c := &Complaint{}
	require.NoError(t, c.BeforeCreate(nil))
	_, err := uuid.Parse(c.ID)
	assert.NoError(t, err)

	c = &Complaint{ID: "fixed"}
	require.NoError(t, c.BeforeCreate(nil))
	assert.Equal(t, "fixed", c.ID)
}

func TestTimelineEntry_IsSystem(t *testing.T) {
	admin := "admin-1"
	assert.True(t, TimelineEntry{Message: "auto"}.IsSystem())
	assert.False(t, TimelineEntry{Message: "manual", Actor: &admin}.IsSystem())
}

func TestDistribution_MarshalPreservesOrder(t *testing.T) {
	d := Distribution{{Name: "High", Count: 2}, {Name: "Medium", Count: 0}, {Name: "Low", Count: 7}}
	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `{"High":2,"Medium":0,"Low":7}`, string(data))

	count, ok := d.Get("Low")
	assert.True(t, ok)
	assert.Equal(t, int64(7), count)
}
