package ledger

import "time"

// EventKind is the mutation that produced an Event.
type EventKind string

const (
	EventAdded   EventKind = "added"
	EventUpdated EventKind = "updated"
	EventDeleted EventKind = "deleted"
)

// Collection names one of the store's record families.
type Collection string

const (
	CollectionEntries       Collection = "entries"
	CollectionStatuses      Collection = "statuses"
	CollectionTypes         Collection = "types"
	CollectionCategories    Collection = "categories"
	CollectionSubcategories Collection = "subcategories"
)

// Event describes one applied mutation.
type Event struct {
	Kind       EventKind
	Collection Collection
	ID         string
	At         time.Time
}

// Listener receives events synchronously, in the order mutations were applied.
// A listener may read the store but must not mutate it.
type Listener func(Event)
