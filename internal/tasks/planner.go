package tasks

import (
	"fmt"
	"strconv"

	"github.com/desertthunder/stocksync/internal/models"
	"github.com/desertthunder/stocksync/internal/shared"
)

// VariantLookup resolves matched variant ids to their catalog snapshot.
//
// *matching.VariantIndex implements it.
type VariantLookup interface {
	Variant(variantID string) (models.Variant, bool)
	ProductTitle(variantID string) string
}

// PlanOptions selects the operation types to plan.
type PlanOptions struct {
	UpdatePrices    bool
	UpdateInventory bool
	// CoalesceInventory keeps only the last inventory write per inventory item.
	CoalesceInventory bool
}

// projected holds the value a target will have once earlier planned operations apply.
type projected struct {
	value string
	known bool
}

// PlanSync projects matched rows onto price and inventory operations.
//
// Rows keep their order; a row yields its price operation before its inventory
// operation. Values equal to the current (or earlier planned) value are not
// planned. The function is pure: identical inputs give identical output.
func PlanSync(rows []models.CsvRow, matches []models.MatchResult, variants VariantLookup, opts PlanOptions) (*models.SyncPreviewResult, error) {
	if !opts.UpdatePrices && !opts.UpdateInventory {
		return nil, shared.ErrNothingToUpdate
	}
	if len(rows) != len(matches) {
		return nil, fmt.Errorf("%w: %d rows but %d match results", shared.ErrInvalidArgument, len(rows), len(matches))
	}
	if variants == nil {
		return nil, fmt.Errorf("%w: variant lookup is nil", shared.ErrMissingArgument)
	}

	preview := &models.SyncPreviewResult{
		Planned:       []models.PlannedOperation{},
		UnmatchedRows: []models.UnmatchedRow{},
		TotalRows:     len(rows),
	}
	state := make(map[string]projected)

	for i, row := range rows {
		match := matches[i]

		if !match.Matched() {
			preview.UnmatchedRows = append(preview.UnmatchedRows, models.NewUnmatchedRow(row, models.ReasonNoMatch))
			continue
		}

		variant, ok := variants.Variant(match.VariantID)
		if !ok {
			preview.UnmatchedRows = append(preview.UnmatchedRows, models.NewUnmatchedRow(row, models.ReasonUnknownVariant))
			continue
		}

		var newPrice string
		if opts.UpdatePrices {
			if row.Price == "" {
				preview.UnmatchedRows = append(preview.UnmatchedRows, models.NewUnmatchedRow(row, models.ReasonMissingPrice))
				continue
			}
			p, err := shared.NormalizePrice(row.Price)
			if err != nil {
				preview.UnmatchedRows = append(preview.UnmatchedRows, models.NewUnmatchedRow(row, models.ReasonInvalidPrice))
				continue
			}
			newPrice = p
		}
		if opts.UpdateInventory && row.Stock == nil {
			preview.UnmatchedRows = append(preview.UnmatchedRows, models.NewUnmatchedRow(row, models.ReasonMissingStock))
			continue
		}

		preview.MatchedRows++
		if match.Confidence != models.ConfidenceExact {
			preview.Warnings = append(preview.Warnings, models.PlanWarning{
				RowNumber: row.RowNumber,
				Message:   fmt.Sprintf("%s match with %s confidence for %q", match.Method, match.Confidence, row.Name),
			})
		}

		base := models.PlannedOperation{
			RowNumber:       row.RowNumber,
			VariantID:       variant.ID,
			ProductID:       variant.ProductID,
			InventoryItemID: variant.InventoryItemID,
			SKU:             variant.SKU,
			ProductTitle:    variants.ProductTitle(variant.ID),
			VariantTitle:    variant.Title,
			Match:           match,
		}

		if opts.UpdatePrices {
			op := base
			op.Type = models.OperationPrice
			cur := currentValue(state, op.Target(), variant.Price, variant.Price != "")
			if _, err := shared.ParsePrice(variant.Price); variant.Price != "" && err != nil {
				preview.Warnings = append(preview.Warnings, models.PlanWarning{
					RowNumber: row.RowNumber,
					Message:   fmt.Sprintf("catalog price %q of variant %s is not numeric", variant.Price, variant.ID),
				})
			}
			if !cur.known || !shared.PricesEqual(cur.value, newPrice) {
				op.ID = operationID(op.Type, variant.ID, row.RowNumber)
				op.OldValue = cur.pointer()
				op.NewValue = newPrice
				preview.Planned = append(preview.Planned, op)
				state[op.Target()] = projected{value: newPrice, known: true}
			}
		}

		if opts.UpdateInventory {
			if variant.InventoryItemID == "" {
				preview.Warnings = append(preview.Warnings, models.PlanWarning{
					RowNumber: row.RowNumber,
					Message:   fmt.Sprintf("variant %s has no inventory item, stock not updated", variant.ID),
				})
				continue
			}

			op := base
			op.Type = models.OperationInventory
			qty := *row.Stock
			var initial string
			if variant.CurrentQuantity != nil {
				initial = strconv.Itoa(*variant.CurrentQuantity)
			}
			cur := currentValue(state, op.Target(), initial, variant.CurrentQuantity != nil)
			next := strconv.Itoa(qty)
			if !cur.known || cur.value != next {
				op.ID = operationID(op.Type, variant.InventoryItemID, row.RowNumber)
				op.OldValue = cur.pointer()
				op.NewValue = next
				op.Quantity = qty
				preview.Planned = append(preview.Planned, op)
				state[op.Target()] = projected{value: next, known: true}
			}
		}
	}

	if opts.CoalesceInventory {
		preview.Planned = coalesceInventory(preview.Planned)
	}

	return preview, nil
}

func currentValue(state map[string]projected, target, initial string, known bool) projected {
	if p, ok := state[target]; ok {
		return p
	}
	return projected{value: initial, known: known}
}

func (p projected) pointer() *string {
	if !p.known {
		return nil
	}
	v := p.value
	return &v
}

func operationID(t models.OperationType, targetID string, row int) string {
	return fmt.Sprintf("%s-%s-r%d", t, targetID, row)
}

// coalesceInventory keeps the last inventory operation per inventory item, carrying
// over the old value of the first one. An item that ends where it started is dropped.
func coalesceInventory(ops []models.PlannedOperation) []models.PlannedOperation {
	last := make(map[string]int)
	first := make(map[string]int)
	for i, op := range ops {
		if op.Type != models.OperationInventory {
			continue
		}
		if _, ok := first[op.InventoryItemID]; !ok {
			first[op.InventoryItemID] = i
		}
		last[op.InventoryItemID] = i
	}

	out := make([]models.PlannedOperation, 0, len(ops))
	for i, op := range ops {
		if op.Type != models.OperationInventory {
			out = append(out, op)
			continue
		}
		if last[op.InventoryItemID] != i {
			continue
		}
		op.OldValue = ops[first[op.InventoryItemID]].OldValue
		if op.OldValue != nil && *op.OldValue == op.NewValue {
			continue
		}
		out = append(out, op)
	}
	return out
}
