package catalog

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/imoblink/imoblink/internal/store"
)

type fakeCatalog struct {
	items      []*store.Property
	lastFilter store.PropertyFilter
	lastOffset int
	lastLimit  int
}

func (f *fakeCatalog) Search(ctx context.Context, tenantID uuid.UUID, filter store.PropertyFilter, offset, limit int) ([]*store.Property, int, error) {
	f.lastFilter = filter
	f.lastOffset = offset
	f.lastLimit = limit

	var matched []*store.Property
	for _, p := range f.items {
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if filter.Transaction != "" && string(p.Transaction) != filter.Transaction {
			continue
		}
		if filter.Location != "" && Normalize(p.City) != Normalize(filter.Location) {
			continue
		}
		matched = append(matched, p)
	}
	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (f *fakeCatalog) Locations(ctx context.Context, tenantID uuid.UUID) ([]string, error) {
	seen := map[string]bool{}
	var locs []string
	for _, p := range f.items {
		c := Normalize(p.City)
		if c != "" && !seen[c] {
			seen[c] = true
			locs = append(locs, c)
		}
	}
	return locs, nil
}

func catalogWith(n int, category, city string) *fakeCatalog {
	f := &fakeCatalog{}
	for i := 0; i < n; i++ {
		f.items = append(f.items, &store.Property{
			ID:          uuid.Must(uuid.NewV7()),
			Code:        fmt.Sprintf("C%03d", i),
			Title:       fmt.Sprintf("Listing %d", i),
			Category:    category,
			Transaction: store.TransactionSale,
			City:        city,
		})
	}
	return f
}

func TestPaginator_CompletesParamsFromHistory(t *testing.T) {
	fake := catalogWith(4, CategoryApartment, "Joaçaba")
	p := NewPaginator(fake, NewKeywordClassifier())

	// Model supplied neither category nor location; both occur in history.
	history := "cliente: procuro apartamento\nagente: em qual cidade?\ncliente: em joaçaba"
	result, _, err := p.Search(context.Background(), uuid.Nil, SearchArgs{}, store.SearchSlots{}, history, "pode me mostrar?")
	if err != nil {
		t.Fatal(err)
	}
	if fake.lastFilter.Category != CategoryApartment {
		t.Errorf("category = %q, want %q", fake.lastFilter.Category, CategoryApartment)
	}
	if Normalize(fake.lastFilter.Location) != "joacaba" {
		t.Errorf("location = %q, want joacaba", fake.lastFilter.Location)
	}
	if result.ReturnedCount != 3 || result.TotalCount != 4 {
		t.Errorf("returned/total = %d/%d, want 3/4", result.ReturnedCount, result.TotalCount)
	}
}

func TestPaginator_ModelArgsWin(t *testing.T) {
	fake := catalogWith(2, CategoryHouse, "Joaçaba")
	p := NewPaginator(fake, NewKeywordClassifier())

	slots := store.SearchSlots{Category: CategoryApartment}
	_, _, err := p.Search(context.Background(), uuid.Nil,
		SearchArgs{Category: "house"}, slots, "", "quero ver casas")
	if err != nil {
		t.Fatal(err)
	}
	if fake.lastFilter.Category != CategoryHouse {
		t.Errorf("category = %q, explicit tool argument must win over slots", fake.lastFilter.Category)
	}
}

func TestPaginator_ShowMoreAdvancesOffset(t *testing.T) {
	fake := catalogWith(10, CategoryApartment, "Joaçaba")
	p := NewPaginator(fake, NewKeywordClassifier())
	ctx := context.Background()

	// First search: offset 0, persisted counter moves to 3.
	result, slots, err := p.Search(ctx, uuid.Nil, SearchArgs{}, store.SearchSlots{}, "", "procuro apartamento em joaçaba")
	if err != nil {
		t.Fatal(err)
	}
	if result.Offset != 0 || result.ReturnedCount != 3 || !result.HasMore || result.RemainingCount != 7 {
		t.Fatalf("first page = %+v", result)
	}
	if slots.Offset != 3 {
		t.Fatalf("slots.Offset = %d, want 3", slots.Offset)
	}

	// "show more" resumes from the counter.
	result, slots, err = p.Search(ctx, uuid.Nil, SearchArgs{}, slots, "", "quero ver mais")
	if err != nil {
		t.Fatal(err)
	}
	if result.Offset != 3 {
		t.Fatalf("second page offset = %d, want 3", result.Offset)
	}
	if slots.Offset != 6 {
		t.Fatalf("slots.Offset = %d, want 6", slots.Offset)
	}

	// And again.
	result, _, err = p.Search(ctx, uuid.Nil, SearchArgs{}, slots, "", "mais")
	if err != nil {
		t.Fatal(err)
	}
	if result.Offset != 6 {
		t.Fatalf("third page offset = %d, want 6", result.Offset)
	}
	if result.RemainingCount != 1 || !result.HasMore {
		t.Errorf("remaining = %d hasMore = %v, want 1/true", result.RemainingCount, result.HasMore)
	}
}

func TestPaginator_NewCriteriaResetOffset(t *testing.T) {
	fake := catalogWith(10, CategoryApartment, "Joaçaba")
	p := NewPaginator(fake, NewKeywordClassifier())

	slots := store.SearchSlots{Category: CategoryApartment, Offset: 6}
	result, _, err := p.Search(context.Background(), uuid.Nil, SearchArgs{}, slots, "", "e casas em joaçaba?")
	if err != nil {
		t.Fatal(err)
	}
	// Not a continuation phrase, so pagination restarts.
	if result.Offset != 0 {
		t.Fatalf("offset = %d, want 0 for a fresh query", result.Offset)
	}
}

func TestPaginator_CriteriaChangeResetsOffsetDespiteContinuationWord(t *testing.T) {
	fake := catalogWith(6, CategoryApartment, "Joaçaba")
	fake.items = append(fake.items, catalogWith(5, CategoryHouse, "Joaçaba").items...)
	p := NewPaginator(fake, NewKeywordClassifier())

	// Mid-pagination through apartments, the contact switches to houses
	// with a message that still contains a continuation phrase.
	slots := store.SearchSlots{Category: CategoryApartment, Offset: 3}
	result, next, err := p.Search(context.Background(), uuid.Nil,
		SearchArgs{Category: "house"}, slots, "", "agora quero ver mais casas")
	if err != nil {
		t.Fatal(err)
	}
	if fake.lastFilter.Category != CategoryHouse {
		t.Fatalf("category = %q, want %q", fake.lastFilter.Category, CategoryHouse)
	}
	if result.Offset != 0 {
		t.Fatalf("offset = %d, want 0 for a changed search", result.Offset)
	}
	if result.ReturnedCount != 3 || result.TotalCount != 5 {
		t.Errorf("returned/total = %d/%d, want the first 3 of 5 houses", result.ReturnedCount, result.TotalCount)
	}
	if next.Offset != 3 || next.Category != CategoryHouse {
		t.Errorf("next slots = %+v, want house at offset 3", next)
	}
}

func TestPaginator_SlotsFillMissingCriteria(t *testing.T) {
	fake := catalogWith(5, CategoryApartment, "Joaçaba")
	p := NewPaginator(fake, NewKeywordClassifier())

	slots := store.SearchSlots{Location: "Joaçaba", Category: CategoryApartment, Transaction: "sale"}
	_, _, err := p.Search(context.Background(), uuid.Nil, SearchArgs{}, slots, "", "quero ver mais")
	if err != nil {
		t.Fatal(err)
	}
	if fake.lastFilter.Category != CategoryApartment || fake.lastFilter.Location != "Joaçaba" || fake.lastFilter.Transaction != "sale" {
		t.Errorf("persisted slots must complete the filter, got %+v", fake.lastFilter)
	}
}

func TestPaginator_EmptyResult(t *testing.T) {
	p := NewPaginator(&fakeCatalog{}, NewKeywordClassifier())
	result, _, err := p.Search(context.Background(), uuid.Nil, SearchArgs{Category: "house"}, store.SearchSlots{}, "", "procuro casa")
	if err != nil {
		t.Fatal(err)
	}
	if result.TotalCount != 0 || result.ReturnedCount != 0 || result.HasMore {
		t.Fatalf("empty catalog result = %+v", result)
	}
	if result.Note != emptyNote {
		t.Errorf("note = %q, want the empty-result instruction", result.Note)
	}
}

func TestPaginator_NoteNeverListsItems(t *testing.T) {
	fake := catalogWith(3, CategoryApartment, "Joaçaba")
	p := NewPaginator(fake, NewKeywordClassifier())
	result, _, err := p.Search(context.Background(), uuid.Nil, SearchArgs{}, store.SearchSlots{}, "", "procuro apartamento")
	if err != nil {
		t.Fatal(err)
	}
	if result.Note != resultNote {
		t.Errorf("note = %q", result.Note)
	}
	// The payload sent to the model carries counts only; items travel
	// out-of-band to media dispatch.
	if result.ReturnedCount != len(result.Items) {
		t.Errorf("returnedCount = %d, items = %d", result.ReturnedCount, len(result.Items))
	}
}
