package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/stocksync/internal/models"
)

var (
	_ list.Item = operationItem{}
	_ list.Item = unmatchedItem{}
)

// operationItem wraps [models.PlannedOperation] to implement [list.Item].
type operationItem struct {
	op models.PlannedOperation
}

func (i operationItem) FilterValue() string { return i.op.SKU + " " + i.op.ProductTitle }
func (i operationItem) Title() string {
	name := i.op.ProductTitle
	if i.op.VariantTitle != "" && i.op.VariantTitle != "Default Title" {
		name = fmt.Sprintf("%s - %s", name, i.op.VariantTitle)
	}
	if i.op.SKU == "" {
		return name
	}
	return fmt.Sprintf("%s • %s", i.op.SKU, name)
}
func (i operationItem) Description() string {
	old := i.op.OldValueString()
	if old == "" {
		old = "?"
	}
	desc := fmt.Sprintf("row %d • %s %s → %s • %s", i.op.RowNumber, i.op.Type, old, i.op.NewValue, i.op.Match.Method)
	if i.op.Match.Confidence != models.ConfidenceExact {
		desc = fmt.Sprintf("%s (%s)", desc, styles.Confidence(i.op.Match.Confidence))
	}
	return desc
}

// unmatchedItem wraps [models.UnmatchedRow] to implement [list.Item].
type unmatchedItem struct {
	row models.UnmatchedRow
}

func (i unmatchedItem) FilterValue() string { return i.row.SKU + " " + i.row.Name }
func (i unmatchedItem) Title() string {
	return fmt.Sprintf("Row %d • %s", i.row.RowNumber, valueOr(i.row.SKU, "(no SKU)"))
}
func (i unmatchedItem) Description() string {
	desc := string(i.row.Reason)
	if i.row.Name != "" {
		desc = fmt.Sprintf("%s • %s", i.row.Name, desc)
	}
	return desc
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
