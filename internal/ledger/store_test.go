package ledger

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashflow/internal/core"
	"cashflow/internal/log"
)

var fixedNow = time.Date(2025, time.February, 1, 9, 30, 0, 0, time.UTC)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	base := []Option{
		WithLogger(log.Discard()),
		WithIDGenerator(NewSequenceGenerator("id-", 0)),
		WithClock(func() time.Time { return fixedNow }),
	}
	return New(append(base, opts...)...)
}

func ptr[T any](v T) *T { return &v }

func validInput() EntryInput {
	return EntryInput{
		Date:          core.NewDate(2025, 2, 3),
		StatusID:      "business",
		TypeID:        "expense",
		CategoryID:    "marketing",
		SubcategoryID: "farpost",
		Amount:        core.FromUnits(1200),
		Comment:       "  Banner  ",
	}
}

func TestNewStoreSeed(t *testing.T) {
	s := newTestStore(t)
	rd := s.ReferenceData()

	assert.Len(t, rd.Statuses, 3)
	assert.Len(t, rd.Types, 2)
	assert.Len(t, rd.Categories, 4)
	assert.Len(t, rd.Subcategories, 8)
	assert.Len(t, s.Entries(), 5)

	e, err := s.Entry("3")
	require.NoError(t, err)
	assert.Equal(t, "income", e.TypeID)
	assert.Equal(t, core.FromUnits(50000), e.Amount)
}

func TestEmptyStore(t *testing.T) {
	s := newTestStore(t, Empty())
	assert.Empty(t, s.Entries())
	assert.Empty(t, s.ReferenceData().Categories)
}

func TestAddEntry(t *testing.T) {
	s := newTestStore(t)

	e, err := s.AddEntry(validInput())
	require.NoError(t, err)

	assert.Equal(t, "id-1", e.ID)
	assert.Equal(t, fixedNow, e.CreatedAt)
	assert.Equal(t, "Banner", e.Comment)

	entries := s.Entries()
	require.Len(t, entries, 6)
	assert.Equal(t, e, entries[5])
}

func TestAddEntryRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*EntryInput)
		want   error
	}{
		{"zero amount", func(in *EntryInput) { in.Amount = core.Money{} }, core.ErrInvalidAmount},
		{"negative amount", func(in *EntryInput) { in.Amount = core.Money{Cents: -100} }, core.ErrInvalidAmount},
		{"missing status", func(in *EntryInput) { in.StatusID = "" }, core.ErrMissingReference},
		{"missing subcategory", func(in *EntryInput) { in.SubcategoryID = " " }, core.ErrMissingReference},
		{"zero date", func(in *EntryInput) { in.Date = core.Date{} }, core.ErrInvalidDate},
		{"unknown status", func(in *EntryInput) { in.StatusID = "ghost" }, core.ErrInvalidReference},
		{"category of other type", func(in *EntryInput) { in.CategoryID = "salary"; in.SubcategoryID = "bonus" }, core.ErrInvalidReference},
		{"subcategory of other category", func(in *EntryInput) { in.SubcategoryID = "vps" }, core.ErrInvalidReference},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			in := validInput()
			tt.mutate(&in)

			_, err := s.AddEntry(in)

			require.ErrorIs(t, err, tt.want)
			assert.Len(t, s.Entries(), 5, "failed add must not mutate")
		})
	}
}

func TestUpdateEntryEndToEnd(t *testing.T) {
	s := newTestStore(t)
	before, err := s.Entry("3")
	require.NoError(t, err)

	updated, err := s.UpdateEntry("3", EntryPatch{Amount: ptr(core.FromUnits(60000))})
	require.NoError(t, err)

	want := before
	want.Amount = core.FromUnits(60000)
	assert.Equal(t, want, updated)

	got, err := s.Entry("3")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, before.CreatedAt, got.CreatedAt)

	require.NoError(t, s.DeleteEntry("3"))
	entries := s.Entries()
	assert.Len(t, entries, 4)
	for _, e := range entries {
		assert.NotEqual(t, "3", e.ID)
	}
}

func TestUpdateEntryMissing(t *testing.T) {
	s := newTestStore(t)
	before := s.Entries()

	_, err := s.UpdateEntry("nope", EntryPatch{Amount: ptr(core.FromUnits(1))})

	require.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, before, s.Entries())
}

func TestUpdateEntryValidation(t *testing.T) {
	s := newTestStore(t)

	_, err := s.UpdateEntry("1", EntryPatch{Amount: ptr(core.Money{})})
	require.ErrorIs(t, err, core.ErrInvalidAmount)

	// Changing the type alone leaves the category under the old type.
	_, err = s.UpdateEntry("1", EntryPatch{TypeID: ptr("income")})
	require.ErrorIs(t, err, core.ErrInvalidReference)

	e, err := s.UpdateEntry("1", EntryPatch{
		TypeID:        ptr("income"),
		CategoryID:    ptr("sales"),
		SubcategoryID: ptr("products"),
	})
	require.NoError(t, err)
	assert.Equal(t, "products", e.SubcategoryID)
	assert.Equal(t, core.FromUnits(5000), e.Amount)
}

func TestUpdateEntryToleratesDanglingStatus(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.DeleteStatus("tax"))

	e, err := s.UpdateEntry("5", EntryPatch{Comment: ptr("still here")})
	require.NoError(t, err)
	assert.Equal(t, "tax", e.StatusID)
	assert.Equal(t, core.UnknownName, s.ReferenceData().StatusName(e.StatusID))
}

func TestDeleteEntryIdempotent(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.DeleteEntry("2"))
	require.NoError(t, s.DeleteEntry("2"))
	assert.Len(t, s.Entries(), 4)
}

func TestEntrySequenceProperty(t *testing.T) {
	s := newTestStore(t, WithSeed(SeedReferenceData(), nil))
	want := map[string]core.Money{}

	for i := 1; i <= 20; i++ {
		in := validInput()
		in.Amount = core.FromUnits(int64(i))
		e, err := s.AddEntry(in)
		require.NoError(t, err)
		want[e.ID] = e.Amount

		switch {
		case i%3 == 0:
			require.NoError(t, s.DeleteEntry(e.ID))
			delete(want, e.ID)
		case i%2 == 0:
			amt := core.FromUnits(int64(i * 100))
			_, err := s.UpdateEntry(e.ID, EntryPatch{Amount: &amt})
			require.NoError(t, err)
			want[e.ID] = amt
		}
	}

	got := map[string]core.Money{}
	for _, e := range s.Entries() {
		got[e.ID] = e.Amount
	}
	assert.Equal(t, want, got)
}

func TestSnapshotsAreImmutable(t *testing.T) {
	s := newTestStore(t)
	entries := s.Entries()
	rd := s.ReferenceData()

	_, err := s.UpdateEntry("1", EntryPatch{Amount: ptr(core.FromUnits(1))})
	require.NoError(t, err)
	_, err = s.UpdateStatus("business", NamePatch{Name: ptr("Company")})
	require.NoError(t, err)

	assert.Equal(t, core.FromUnits(5000), entries[0].Amount)
	assert.Equal(t, "Business", rd.Statuses[0].Name)

	entries[1].Amount = core.FromUnits(999)
	e, err := s.Entry("2")
	require.NoError(t, err)
	assert.Equal(t, core.FromUnits(3000), e.Amount)
}

func TestIDsAreNeverReused(t *testing.T) {
	// The sequence starts on ids the seed already uses.
	s := New(
		WithLogger(log.Discard()),
		WithIDGenerator(NewSequenceGenerator("", 0)),
	)

	e, err := s.AddEntry(validInput())
	require.NoError(t, err)
	assert.Equal(t, "6", e.ID)

	require.NoError(t, s.DeleteEntry("6"))
	s2, err := s.AddEntry(validInput())
	require.NoError(t, err)
	assert.Equal(t, "7", s2.ID)
}

func TestUUIDGenerator(t *testing.T) {
	s := New(WithLogger(log.Discard()))
	a, err := s.AddStatus(NameInput{Name: "A"})
	require.NoError(t, err)
	b, err := s.AddStatus(NameInput{Name: "B"})
	require.NoError(t, err)

	assert.Len(t, a.ID, 36)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestSubscribeReceivesEventsInOrder(t *testing.T) {
	s := newTestStore(t)
	var got []Event
	unsubscribe := s.Subscribe(func(ev Event) {
		// Listeners may read the store.
		_ = s.Entries()
		got = append(got, ev)
	})

	e, err := s.AddEntry(validInput())
	require.NoError(t, err)
	_, err = s.UpdateEntry(e.ID, EntryPatch{Comment: ptr("x")})
	require.NoError(t, err)
	require.NoError(t, s.DeleteEntry(e.ID))
	require.NoError(t, s.DeleteEntry(e.ID)) // no-op, no event
	_, err = s.AddStatus(NameInput{Name: ""})
	require.Error(t, err) // rejected, no event

	unsubscribe()
	unsubscribe()
	_, err = s.AddStatus(NameInput{Name: "Later"})
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, Event{Kind: EventAdded, Collection: CollectionEntries, ID: e.ID, At: fixedNow}, got[0])
	assert.Equal(t, EventUpdated, got[1].Kind)
	assert.Equal(t, EventDeleted, got[2].Kind)
}

func TestConcurrentMutations(t *testing.T) {
	s := newTestStore(t, WithSeed(SeedReferenceData(), nil))
	var mu sync.Mutex
	events := 0
	s.Subscribe(func(Event) {
		mu.Lock()
		events++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := validInput()
			in.Comment = fmt.Sprintf("entry %d", i)
			_, err := s.AddEntry(in)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Len(t, s.Entries(), 50)
	assert.Equal(t, 50, events)
}
