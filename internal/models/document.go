package models

import "fmt"

// SplitDocument is the canonical shared state for one bill-splitting
// session. It lives in the remote record store keyed by a PIN; every
// connected client holds a local projection that converges to the remote
// value after each round trip.
type SplitDocument struct {
	// Items are the receipt line items, in display order. Order matters
	// for rendering but not for totals.
	Items []Item `json:"items"`

	// Users is the set of participants splitting the bill, unique by ID.
	Users []Participant `json:"users"`

	// HostID identifies the participant who created the split. It is
	// informational only: host privilege is tracked client-side, not
	// enforced by the store.
	HostID string `json:"hostId,omitempty"`

	// Status is the session lifecycle state.
	Status Status `json:"status"`
}

// Item is a single line item on the receipt.
type Item struct {
	// ID is unique for the document's lifetime.
	ID string `json:"id"`

	// Name is the display string for the line (e.g. "Pizza").
	Name string `json:"name"`

	// Price is the total for the line, already multiplied by Quantity.
	Price float64 `json:"price"`

	// Quantity is the number of units on the line, at least 1.
	Quantity int `json:"quantity"`

	// AssignedTo lists the IDs of participants sharing this item's cost.
	// The item is split evenly among them; order is irrelevant.
	AssignedTo []string `json:"assignedTo"`

	// SplitGroupID links sibling items produced by splitting one
	// multi-quantity line into unit items. Empty when the item has never
	// been split or has been fully remerged.
	SplitGroupID string `json:"splitGroupId,omitempty"`
}

// Validate checks the item invariants that must hold before an item
// enters a split document.
func (i Item) Validate() error {
	if i.Name == "" {
		return fmt.Errorf("item name must not be empty")
	}
	if i.Price < 0 {
		return fmt.Errorf("item %q: price %.2f must not be negative", i.Name, i.Price)
	}
	if i.Quantity < 1 {
		return fmt.Errorf("item %q: quantity %d must be at least 1", i.Name, i.Quantity)
	}
	return nil
}

// Clone returns a deep copy of the item.
func (i Item) Clone() Item {
	out := i
	if i.AssignedTo != nil {
		out.AssignedTo = make([]string, len(i.AssignedTo))
		copy(out.AssignedTo, i.AssignedTo)
	}
	return out
}

// Clone returns a deep copy of the document. The sync engine hands clones
// to mutators and renderers so that no caller can alias the canonical
// projection.
func (d SplitDocument) Clone() SplitDocument {
	out := d
	if d.Items != nil {
		out.Items = make([]Item, len(d.Items))
		for i, it := range d.Items {
			out.Items[i] = it.Clone()
		}
	}
	if d.Users != nil {
		out.Users = make([]Participant, len(d.Users))
		copy(out.Users, d.Users)
	}
	return out
}

// HasUser reports whether a participant with the given ID is in the
// document's user set.
func (d SplitDocument) HasUser(id string) bool {
	for _, u := range d.Users {
		if u.ID == id {
			return true
		}
	}
	return false
}
