package mirror

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naigggs/hau2park.web-sub001/internal/changefeed"
)

type space struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

func spaceKey(s space) int { return s.ID }

func mustInsert(t *testing.T, entity space) changefeed.Event {
	t.Helper()
	ev, err := changefeed.NewInsert(changefeed.TopicParkingSpaces, entity)
	require.NoError(t, err)
	return ev
}

func mustDelete(t *testing.T, entity space) changefeed.Event {
	t.Helper()
	ev, err := changefeed.NewDelete(changefeed.TopicParkingSpaces, entity)
	require.NoError(t, err)
	return ev
}

func rawUpdate(payload string) changefeed.Event {
	return changefeed.Event{
		ID:    "test-update",
		Topic: changefeed.TopicParkingSpaces,
		Kind:  changefeed.KindUpdate,
		New:   json.RawMessage(payload),
	}
}

func TestSeedAndSnapshotKeepInsertionOrder(t *testing.T) {
	m := New(spaceKey)
	m.Seed([]space{
		{ID: 2, Name: "P2", Status: "Available"},
		{ID: 1, Name: "P1", Status: "Occupied"},
	})

	snap := m.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "P2", snap[0].Name)
	assert.Equal(t, "P1", snap[1].Name)
}

func TestDuplicateInsertIsIdempotent(t *testing.T) {
	m := New(spaceKey)
	m.Seed(nil)

	ev := mustInsert(t, space{ID: 1, Name: "P1", Status: "Available"})
	require.NoError(t, m.Apply(ev))
	once := m.Snapshot()

	require.NoError(t, m.Apply(ev))
	twice := m.Snapshot()

	assert.Equal(t, once, twice)
	assert.Equal(t, 1, m.Len())
}

func TestInsertOnExistingKeyMergesInstead(t *testing.T) {
	m := New(spaceKey)
	m.Seed([]space{{ID: 1, Name: "P1", Status: "Available"}})

	require.NoError(t, m.Apply(mustInsert(t, space{ID: 1, Name: "P1", Status: "Reserved"})))

	got, ok := m.Get(1)
	require.True(t, ok)
	assert.Equal(t, "Reserved", got.Status)
	assert.Equal(t, 1, m.Len())
}

func TestUpdateMergesOnlyPresentFields(t *testing.T) {
	m := New(spaceKey)
	m.Seed([]space{{ID: 1, Name: "P1", Status: "Available"}})

	require.NoError(t, m.Apply(rawUpdate(`{"id":1,"status":"Occupied"}`)))

	got, ok := m.Get(1)
	require.True(t, ok)
	assert.Equal(t, "Occupied", got.Status)
	assert.Equal(t, "P1", got.Name, "field absent from the event must stay untouched")
}

func TestUpdateForAbsentKeyIsNoOp(t *testing.T) {
	m := New(spaceKey)
	m.Seed(nil)

	require.NoError(t, m.Apply(rawUpdate(`{"id":9,"status":"Occupied"}`)))
	assert.Equal(t, 0, m.Len())
}

func TestDuplicateAndEarlyDeleteAreAbsorbed(t *testing.T) {
	m := New(spaceKey)
	m.Seed([]space{{ID: 1, Name: "P1"}})

	del := mustDelete(t, space{ID: 1})
	require.NoError(t, m.Apply(del))
	require.NoError(t, m.Apply(del))
	assert.Equal(t, 0, m.Len())

	// Delete for a key that never arrived.
	require.NoError(t, m.Apply(mustDelete(t, space{ID: 42})))
	assert.Equal(t, 0, m.Len())
}

func TestEventsBeforeSeedAreBufferedAndReplayedInOrder(t *testing.T) {
	m := New(spaceKey)

	require.NoError(t, m.Apply(mustInsert(t, space{ID: 1, Name: "P1", Status: "Available"})))
	require.NoError(t, m.Apply(rawUpdate(`{"id":1,"status":"Occupied"}`)))
	require.NoError(t, m.Apply(mustDelete(t, space{ID: 2})))
	assert.Equal(t, 0, m.Len(), "nothing applies before the snapshot lands")

	m.Seed([]space{{ID: 2, Name: "P2", Status: "Available"}})

	got, ok := m.Get(1)
	require.True(t, ok)
	assert.Equal(t, "Occupied", got.Status, "buffered update must replay after the buffered insert")
	_, ok = m.Get(2)
	assert.False(t, ok, "buffered delete must apply against the snapshot")
}

func TestReplayInterleavingsConverge(t *testing.T) {
	insertA := mustInsert(t, space{ID: 1, Name: "A", Status: "Available"})
	insertB := mustInsert(t, space{ID: 2, Name: "B", Status: "Available"})
	deleteA := mustDelete(t, space{ID: 1})

	// Duplicate delivery patterns of the same logical history must all
	// land on the same final state.
	histories := [][]changefeed.Event{
		{insertA, insertB, deleteA},
		{insertA, insertA, insertB, deleteA, deleteA},
		{insertA, insertB, insertB, deleteA},
	}

	var want []space
	for i, history := range histories {
		m := New(spaceKey)
		m.Seed(nil)
		for _, ev := range history {
			require.NoError(t, m.Apply(ev))
		}
		if i == 0 {
			want = m.Snapshot()
			continue
		}
		assert.Equal(t, want, m.Snapshot(), "history %d diverged", i)
	}
}

func TestStaleMirrorBuffersUntilReseeded(t *testing.T) {
	m := New(spaceKey)
	m.Seed([]space{
		{ID: 1, Name: "A"},
		{ID: 2, Name: "B"},
		{ID: 3, Name: "C"},
	})

	// Outage: a Delete(B) happens server-side and is never delivered.
	m.MarkStale()
	require.True(t, m.Stale())

	// Events during the outage window are held, not trusted.
	require.NoError(t, m.Apply(rawUpdate(`{"id":1,"status":"Occupied"}`)))
	got, _ := m.Get(1)
	assert.Empty(t, got.Status)

	// Fresh snapshot no longer includes B.
	m.Seed([]space{
		{ID: 1, Name: "A"},
		{ID: 3, Name: "C"},
	})

	assert.False(t, m.Stale())
	assert.Equal(t, 2, m.Len())
	_, ok := m.Get(2)
	assert.False(t, ok, "missed delete is recovered by the reseed")
	got, _ = m.Get(1)
	assert.Equal(t, "Occupied", got.Status, "held events replay after the reseed")
}

func TestOrderingComparator(t *testing.T) {
	m := New(spaceKey, WithOrdering[int](func(a, b space) bool { return a.Name < b.Name }))
	m.Seed([]space{
		{ID: 1, Name: "P9"},
		{ID: 2, Name: "P1"},
	})
	require.NoError(t, m.Apply(mustInsert(t, space{ID: 3, Name: "P5"})))

	snap := m.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, []string{"P1", "P5", "P9"}, []string{snap[0].Name, snap[1].Name, snap[2].Name})
}

func TestReinsertAfterDeleteLandsAtEndOfOrder(t *testing.T) {
	m := New(spaceKey)
	m.Seed([]space{
		{ID: 1, Name: "A"},
		{ID: 2, Name: "B"},
		{ID: 3, Name: "C"},
	})

	require.NoError(t, m.Apply(mustDelete(t, space{ID: 2})))
	require.NoError(t, m.Apply(mustInsert(t, space{ID: 2, Name: "B2"})))

	snap := m.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, []string{"A", "C", "B2"},
		[]string{snap[0].Name, snap[1].Name, snap[2].Name},
		"a reinserted key takes a fresh position, not its old slot")
}

func TestSnapshotIsACopy(t *testing.T) {
	m := New(spaceKey)
	m.Seed([]space{{ID: 1, Name: "P1"}})

	snap := m.Snapshot()
	snap[0].Name = "mutated"

	got, _ := m.Get(1)
	assert.Equal(t, "P1", got.Name)
}

func TestManyDeletesCompactOrder(t *testing.T) {
	m := New(spaceKey)
	var seedData []space
	for i := 1; i <= 64; i++ {
		seedData = append(seedData, space{ID: i, Name: "P"})
	}
	m.Seed(seedData)

	for i := 1; i <= 60; i++ {
		require.NoError(t, m.Apply(mustDelete(t, space{ID: i})))
	}
	assert.Equal(t, 4, m.Len())
	assert.Len(t, m.Snapshot(), 4)
}
