package patient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scribe/store"
)

func TestCreateAssignsStableID(t *testing.T) {
	s, err := NewStore(store.NewMemory())
	require.NoError(t, err)

	p, err := s.Create("Ada Lovelace", "1990-03-14", "MRN-001", "hypertension")
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "Ada Lovelace", p.Name)
	assert.Empty(t, p.Visits)

	got, ok := s.Get(p.ID)
	require.True(t, ok)
	assert.Equal(t, p.ID, got.ID)
}

func TestCreateRejectsEmptyName(t *testing.T) {
	s, err := NewStore(store.NewMemory())
	require.NoError(t, err)

	_, err = s.Create("   ", "", "", "")
	assert.ErrorIs(t, err, ErrEmptyName)
	assert.Empty(t, s.List())
}

func TestAppendVisitIsAppendOnly(t *testing.T) {
	s, err := NewStore(store.NewMemory())
	require.NoError(t, err)

	alice, err := s.Create("Alice", "", "", "")
	require.NoError(t, err)
	bob, err := s.Create("Bob", "", "", "")
	require.NoError(t, err)

	first, err := s.AppendVisit(alice.ID, "transcript one", "notes one")
	require.NoError(t, err)
	second, err := s.AppendVisit(alice.ID, "transcript two", "notes two")
	require.NoError(t, err)

	got, ok := s.Get(alice.ID)
	require.True(t, ok)
	require.Len(t, got.Visits, 2)
	assert.Equal(t, first.ID, got.Visits[0].ID)
	assert.Equal(t, "notes one", got.Visits[0].Notes)
	assert.Equal(t, second.ID, got.Visits[1].ID)

	other, ok := s.Get(bob.ID)
	require.True(t, ok)
	assert.Empty(t, other.Visits)
}

func TestAppendVisitUnknownPatient(t *testing.T) {
	s, err := NewStore(store.NewMemory())
	require.NoError(t, err)

	_, err = s.AppendVisit("nope", "t", "n")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRoundTripThroughStore(t *testing.T) {
	docs := store.NewMemory()

	s, err := NewStore(docs)
	require.NoError(t, err)
	p, err := s.Create("Carol", "1985-07-01", "MRN-9", "asthma")
	require.NoError(t, err)
	_, err = s.AppendVisit(p.ID, "spoke about inhaler use", "continue current dose")
	require.NoError(t, err)

	reloaded, err := NewStore(docs)
	require.NoError(t, err)
	assert.Equal(t, s.List(), reloaded.List())
}

func TestListSortsByName(t *testing.T) {
	s, err := NewStore(store.NewMemory())
	require.NoError(t, err)

	_, err = s.Create("zoe", "", "", "")
	require.NoError(t, err)
	_, err = s.Create("Andy", "", "", "")
	require.NoError(t, err)

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "Andy", list[0].Name)
	assert.Equal(t, "zoe", list[1].Name)
}

func TestMutationsDoNotLeakSharedSlices(t *testing.T) {
	s, err := NewStore(store.NewMemory())
	require.NoError(t, err)

	p, err := s.Create("Dana", "", "", "")
	require.NoError(t, err)

	before, ok := s.Get(p.ID)
	require.True(t, ok)

	_, err = s.AppendVisit(p.ID, "t", "n")
	require.NoError(t, err)

	// The earlier snapshot is unaffected by the later append.
	assert.Empty(t, before.Visits)
}
