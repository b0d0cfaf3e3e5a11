package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/imoblink/imoblink/internal/store"
)

// DefaultPageSize is how many items one search call returns.
const DefaultPageSize = 3

// ResultMarker prefixes every reply that introduced search results. Kept
// stable so older conversations can still be inspected for prior pages when
// the persisted counter is absent.
const ResultMarker = "Encontrei"

// resultNote tells the model how to phrase the final reply. Item details are
// rendered by media dispatch, never by the model.
const resultNote = "Os imoveis serao enviados como fotos em seguida. Responda apenas com uma frase curta de introducao, sem listar, descrever ou enumerar os imoveis."

const emptyNote = "Nenhum imovel encontrado com esses criterios. Informe o cliente e sugira ajustar a busca."

// SearchArgs are the tool-call arguments as supplied by the model. All
// fields are optional; missing ones are completed from conversation state.
type SearchArgs struct {
	Location        string `json:"location,omitempty"`
	TransactionType string `json:"transaction_type,omitempty"`
	Category        string `json:"category,omitempty"`
	Limit           int    `json:"limit,omitempty"`
}

// SearchResult is what a search call resolves to. Items feed media
// dispatch; the count fields plus Note form the tool-result payload.
type SearchResult struct {
	Items          []*store.Property `json:"-"`
	TotalCount     int               `json:"totalCount"`
	ReturnedCount  int               `json:"returnedCount"`
	Offset         int               `json:"offset"`
	HasMore        bool              `json:"hasMore"`
	RemainingCount int               `json:"remainingCount"`
	Note           string            `json:"note"`
}

// Paginator resolves catalog searches: completes missing criteria from the
// conversation, pages via the per-conversation offset counter, and shapes
// the result for the model.
type Paginator struct {
	catalog    store.CatalogStore
	classifier Classifier
	pageSize   int
}

func NewPaginator(catalog store.CatalogStore, classifier Classifier) *Paginator {
	return &Paginator{
		catalog:    catalog,
		classifier: classifier,
		pageSize:   DefaultPageSize,
	}
}

// Search runs one paginated catalog query. slots carries the conversation's
// persisted criteria and pagination counter; the returned slots reflect the
// state after this call and must be persisted by the caller.
func (p *Paginator) Search(ctx context.Context, tenantID uuid.UUID, args SearchArgs, slots store.SearchSlots, historyText, currentText string) (*SearchResult, store.SearchSlots, error) {
	limit := args.Limit
	if limit <= 0 {
		limit = p.pageSize
	}

	filter := p.completeFilter(ctx, tenantID, args, slots, historyText, currentText)

	offset := 0
	if WantsMore(currentText) && sameCriteria(filter, slots) {
		offset = slots.Offset
	}

	items, total, err := p.catalog.Search(ctx, tenantID, filter, offset, limit)
	if err != nil {
		return nil, slots, fmt.Errorf("catalog search: %w", err)
	}

	result := &SearchResult{
		Items:         items,
		TotalCount:    total,
		ReturnedCount: len(items),
		Offset:        offset,
		HasMore:       offset+len(items) < total,
	}
	result.RemainingCount = total - offset - len(items)
	if result.RemainingCount < 0 {
		result.RemainingCount = 0
	}
	if result.ReturnedCount > 0 {
		result.Note = resultNote
	} else {
		result.Note = emptyNote
	}

	next := store.SearchSlots{
		Location:    filter.Location,
		Category:    filter.Category,
		Transaction: filter.Transaction,
		Offset:      offset + len(items),
	}
	return result, next, nil
}

// sameCriteria reports whether the resolved filter still targets the search
// the persisted counter was advanced for. A continuation word in a message
// that changes criteria starts a fresh search, not a next page.
func sameCriteria(f store.PropertyFilter, s store.SearchSlots) bool {
	return Normalize(f.Location) == Normalize(s.Location) &&
		f.Category == s.Category &&
		f.Transaction == s.Transaction
}

// completeFilter fills criteria the model did not supply: first from the
// persisted slots, then by scanning current message and history text.
func (p *Paginator) completeFilter(ctx context.Context, tenantID uuid.UUID, args SearchArgs, slots store.SearchSlots, historyText, currentText string) store.PropertyFilter {
	filter := store.PropertyFilter{
		Location:    strings.TrimSpace(args.Location),
		Category:    canonicalCategory(args.Category),
		Transaction: canonicalTransaction(args.TransactionType),
	}

	scanText := currentText + "\n" + historyText

	if filter.Category == "" {
		if cat, ok := p.classifier.Category(currentText); ok {
			filter.Category = cat
		} else if slots.Category != "" {
			filter.Category = slots.Category
		} else if cat, ok := p.classifier.Category(scanText); ok {
			filter.Category = cat
		}
	}
	if filter.Transaction == "" {
		if tx, ok := p.classifier.Transaction(currentText); ok {
			filter.Transaction = tx
		} else if slots.Transaction != "" {
			filter.Transaction = slots.Transaction
		} else if tx, ok := p.classifier.Transaction(scanText); ok {
			filter.Transaction = tx
		}
	}
	if filter.Location == "" {
		known, err := p.catalog.Locations(ctx, tenantID)
		if err == nil {
			if loc, ok := p.classifier.Location(currentText, known); ok {
				filter.Location = loc
			} else if slots.Location != "" {
				filter.Location = slots.Location
			} else if loc, ok := p.classifier.Location(scanText, known); ok {
				filter.Location = loc
			}
		} else if slots.Location != "" {
			filter.Location = slots.Location
		}
	}
	return filter
}

// canonicalCategory maps whatever the model sent to the canonical set, or
// empty when unrecognized.
func canonicalCategory(s string) string {
	s = Normalize(s)
	if s == "" {
		return ""
	}
	for _, c := range Categories {
		if s == c {
			return c
		}
	}
	if c, ok := categorySynonyms[s]; ok {
		return c
	}
	return ""
}

func canonicalTransaction(s string) string {
	switch Normalize(s) {
	case "sale", "venda":
		return string(store.TransactionSale)
	case "rent", "aluguel", "locacao":
		return string(store.TransactionRent)
	}
	return ""
}
