package dedup

import (
	"encoding/json"
	"testing"

	"github.com/bartek5186/woo2mag/internal/integrations"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pub(id int64) integrations.RemoteVariation {
	return integrations.RemoteVariation{ID: id, Status: integrations.StatusPublish}
}

func ids(pairs []Pair) []int64 {
	out := make([]int64, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, p.Variation.ID)
	}
	return out
}

func TestApply_PerParentDuplicatesAndGhosts(t *testing.T) {
	hidden := false
	f := New(zerolog.Nop(), Strict())
	parent := integrations.RemoteProduct{ID: 1, Name: "Shirt"}

	res := f.Apply(parent, []integrations.RemoteVariation{
		pub(10),
		pub(11),
		pub(10),
		{ID: 12, Status: "private"},
		{ID: 13, Status: "publish", Visible: &hidden},
		{ID: 0, Status: "publish"},
		pub(14),
	})

	assert.Equal(t, []int64{10, 11, 14}, ids(res.Pairs))
	assert.Equal(t, Stats{TotalSeen: 7, UniqueKept: 3, DuplicatesDropped: 1, GhostsDropped: 2, Invalid: 1}, res.Stats)
	assert.Equal(t, []int64{10}, res.Duplicates)
	require.Len(t, res.Ghosts, 2)
	assert.Equal(t, "private", res.Ghosts[0].Status)
	for _, p := range res.Pairs {
		assert.Equal(t, int64(1), p.Variation.ParentID)
		assert.Equal(t, "Shirt", p.Parent.Name)
	}
}

func TestApply_CrossParentCollision(t *testing.T) {
	f := New(zerolog.Nop(), Strict())

	first := f.Apply(integrations.RemoteProduct{ID: 1}, []integrations.RemoteVariation{pub(77), pub(78)})
	second := f.Apply(integrations.RemoteProduct{ID: 2}, []integrations.RemoteVariation{pub(77), pub(79)})

	assert.Equal(t, []int64{77, 78}, ids(first.Pairs))
	assert.Equal(t, []int64{79}, ids(second.Pairs))
	require.Len(t, second.Collisions, 1)
	assert.Equal(t, Collision{VariationID: 77, FirstParentID: 1, ParentID: 2}, second.Collisions[0])

	assert.Equal(t, Stats{TotalSeen: 4, UniqueKept: 3, DuplicatesDropped: 1, Collisions: 1}, f.Stats())
}

func TestApply_RepeatFetchOfSameParentIsNotCollision(t *testing.T) {
	f := New(zerolog.Nop(), Strict())
	parent := integrations.RemoteProduct{ID: 5}

	f.Apply(parent, []integrations.RemoteVariation{pub(1), pub(2)})
	again := f.Apply(parent, []integrations.RemoteVariation{pub(1), pub(2)})

	assert.Empty(t, again.Pairs)
	assert.Empty(t, again.Collisions)
	assert.Equal(t, 2, again.Stats.DuplicatesDropped)
}

func TestApply_StrictnessLevels(t *testing.T) {
	vs := []integrations.RemoteVariation{pub(1), {ID: 2, Status: "draft"}, pub(1)}

	basic := New(zerolog.Nop(), Basic()).Apply(integrations.RemoteProduct{ID: 1}, vs)
	assert.Equal(t, []int64{1, 2}, ids(basic.Pairs), "basic only removes repeated ids")

	status := New(zerolog.Nop(), StatusAware())
	status.Apply(integrations.RemoteProduct{ID: 1}, vs)
	res := status.Apply(integrations.RemoteProduct{ID: 2}, vs)
	assert.Equal(t, []int64{1}, ids(res.Pairs), "no global set without strict mode")
}

func TestApply_CountPerParentEqualsDistinctPublished(t *testing.T) {
	f := New(zerolog.Nop(), Strict())
	vs := []integrations.RemoteVariation{pub(3), pub(3), pub(4), {ID: 5, Status: "trash"}, pub(4), pub(6)}

	res := f.Apply(integrations.RemoteProduct{ID: 9}, vs)
	assert.Len(t, res.Pairs, 3)
}

func TestSnapshotRestore(t *testing.T) {
	f := New(zerolog.Nop(), Strict())
	f.Apply(integrations.RemoteProduct{ID: 1}, []integrations.RemoteVariation{pub(10)})

	raw, err := json.Marshal(f.Snapshot())
	require.NoError(t, err)
	var snap Snapshot
	require.NoError(t, json.Unmarshal(raw, &snap))

	restored := Restore(zerolog.Nop(), Strict(), snap)
	res := restored.Apply(integrations.RemoteProduct{ID: 2}, []integrations.RemoteVariation{pub(10)})
	assert.Empty(t, res.Pairs)
	assert.Len(t, res.Collisions, 1)
	assert.Equal(t, 2, restored.Stats().TotalSeen)
}
