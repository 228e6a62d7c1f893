// Package calculator implements the item algebra for split documents:
// dividing multi-quantity line items into per-unit items, merging them
// back, and allocating costs to participants.
package calculator

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/snaptab/snaptab/internal/models"
)

// SplitUnit splits one unit off a multi-quantity item. The new sibling
// gets quantity 1, the unit price, and a snapshot of the source item's
// assignment; source and sibling share a split group ID (the source's own
// ID on first split). The sibling is inserted immediately after the source
// in display order.
//
// The input slice is not modified; a new slice is returned.
func SplitUnit(items []models.Item, itemID string) ([]models.Item, error) {
	idx := -1
	for i, it := range items {
		if it.ID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("item %s not found", itemID)
	}

	src := items[idx].Clone()
	if src.Quantity < 2 {
		return nil, fmt.Errorf("item %q has quantity %d, nothing to split", src.Name, src.Quantity)
	}

	unitPrice := src.Price / float64(src.Quantity)
	groupID := src.SplitGroupID
	if groupID == "" {
		groupID = src.ID
	}

	sibling := models.Item{
		ID:           uuid.New().String(),
		Name:         src.Name,
		Price:        unitPrice,
		Quantity:     1,
		AssignedTo:   src.Clone().AssignedTo,
		SplitGroupID: groupID,
	}

	src.Quantity--
	src.Price -= unitPrice
	src.SplitGroupID = groupID

	out := make([]models.Item, 0, len(items)+1)
	for i, it := range items {
		if i == idx {
			out = append(out, src, sibling)
			continue
		}
		out = append(out, it.Clone())
	}
	return out, nil
}

// MergeGroup merges all items sharing the given split group ID back into
// one item: quantities and prices are summed, assignee sets are unioned,
// the first member keeps its identity and position, and the group ID is
// dropped. Fewer than two matching items is a no-op.
func MergeGroup(items []models.Item, groupID string) []models.Item {
	if groupID == "" {
		return items
	}

	var members []int
	for i, it := range items {
		if it.SplitGroupID == groupID {
			members = append(members, i)
		}
	}
	if len(members) < 2 {
		return items
	}

	merged := items[members[0]].Clone()
	merged.SplitGroupID = ""
	seen := make(map[string]bool, len(merged.AssignedTo))
	for _, id := range merged.AssignedTo {
		seen[id] = true
	}
	for _, i := range members[1:] {
		sib := items[i]
		merged.Quantity += sib.Quantity
		merged.Price += sib.Price
		for _, id := range sib.AssignedTo {
			if !seen[id] {
				seen[id] = true
				merged.AssignedTo = append(merged.AssignedTo, id)
			}
		}
	}

	out := make([]models.Item, 0, len(items)-len(members)+1)
	for i, it := range items {
		if i == members[0] {
			out = append(out, merged)
			continue
		}
		if it.SplitGroupID == groupID {
			continue
		}
		out = append(out, it.Clone())
	}
	return out
}
