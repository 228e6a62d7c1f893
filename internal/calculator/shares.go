package calculator

import (
	"fmt"

	"github.com/snaptab/snaptab/internal/models"
)

// ItemShare is one participant's portion of a single item.
type ItemShare struct {
	Name   string
	Amount float64
}

// Share is one participant's computed share of the bill.
type Share struct {
	Subtotal float64
	Tax      float64
	Total    float64
	Items    []ItemShare
}

// Shares computes each participant's total from the even split of every
// assigned item. Items with no assignees contribute to nobody. Stale
// assignee IDs that reference no current participant are ignored.
func Shares(items []models.Item, users []models.Participant) map[string]*Share {
	shares := make(map[string]*Share, len(users))
	for _, u := range users {
		shares[u.ID] = &Share{}
	}

	for _, item := range items {
		if len(item.AssignedTo) == 0 {
			continue
		}
		perPerson := item.Price / float64(len(item.AssignedTo))
		for _, id := range item.AssignedTo {
			share, ok := shares[id]
			if !ok {
				continue
			}
			share.Subtotal += perPerson
			share.Items = append(share.Items, ItemShare{Name: item.Name, Amount: perPerson})
		}
	}

	for _, share := range shares {
		share.Total = share.Subtotal
	}
	return shares
}

// SharesWithTax computes shares and distributes the difference between
// billTotal and billSubtotal (tax, tip, fees) proportionally to each
// participant's subtotal: share_total = share_subtotal × (1 + tax/subtotal).
func SharesWithTax(items []models.Item, users []models.Participant, billTotal, billSubtotal float64) (map[string]*Share, error) {
	if billSubtotal <= 0 {
		return nil, fmt.Errorf("subtotal must be positive")
	}

	tax := billTotal - billSubtotal
	shares := Shares(items, users)
	for _, share := range shares {
		share.Tax = share.Subtotal * (tax / billSubtotal)
		share.Total = share.Subtotal + share.Tax
	}
	return shares, nil
}
