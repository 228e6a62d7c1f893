// Package receipt defines the boundary to the receipt-extraction
// collaborator and normalizes its output before items enter a split
// document.
package receipt

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/snaptab/snaptab/internal/models"
)

// ErrExtractionFailed wraps failures of the extraction collaborator. The
// UI surfaces it as a retry prompt rather than a stuck loading state.
var ErrExtractionFailed = errors.New("receipt extraction failed")

// Recognizer extracts line items from a photographed receipt. The
// implementation (OCR pipeline, vision model) lives outside this module;
// extracted items carry name, line-total price, and quantity.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) ([]models.Item, error)
}

// Normalize prepares extracted items for a split document: names are
// trimmed, a missing quantity defaults to 1, fresh IDs are minted, and
// assignment fields left over from extraction are discarded. Lines that
// still violate the item invariants are dropped with a log entry rather
// than poisoning the document.
func Normalize(items []models.Item) []models.Item {
	out := make([]models.Item, 0, len(items))
	for _, item := range items {
		item.Name = strings.TrimSpace(item.Name)
		if item.Quantity < 1 {
			item.Quantity = 1
		}
		item.ID = uuid.New().String()
		item.AssignedTo = nil
		item.SplitGroupID = ""

		if err := item.Validate(); err != nil {
			slog.Warn("dropping extracted line", "error", err)
			continue
		}
		out = append(out, item)
	}
	return out
}
