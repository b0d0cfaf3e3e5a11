// Package catalog resolves search criteria from conversational text and
// pages through a tenant's property listings.
package catalog

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// Canonical category values. Listing filters and the tool schema use these;
// conversational synonyms are mapped onto them.
const (
	CategoryApartment  = "apartment"
	CategoryHouse      = "house"
	CategoryLand       = "land"
	CategoryCommercial = "commercial"
	CategoryCountry    = "country"
)

// Categories is the closed canonical set, in schema order.
var Categories = []string{
	CategoryApartment, CategoryHouse, CategoryLand, CategoryCommercial, CategoryCountry,
}

// Classifier extracts search criteria from free text. The keyword
// implementation below is the default; an embedding- or model-based one can
// replace it without touching the orchestration flow.
type Classifier interface {
	// Category returns a canonical category mentioned in text, if any.
	Category(text string) (string, bool)
	// Transaction returns "sale" or "rent" if the text implies one.
	Transaction(text string) (string, bool)
	// Location returns the first known location name found in text. known
	// holds the tenant's catalog locations, lowercased.
	Location(text string, known []string) (string, bool)
}

// categorySynonyms maps Brazilian Portuguese listing vocabulary to canonical
// categories. Matching is longest-first so short forms like "ap" never fire
// inside longer words.
var categorySynonyms = map[string]string{
	"apartamento":     CategoryApartment,
	"apartamentos":    CategoryApartment,
	"apto":            CategoryApartment,
	"ap":              CategoryApartment,
	"kitnet":          CategoryApartment,
	"casa":            CategoryHouse,
	"casas":           CategoryHouse,
	"sobrado":         CategoryHouse,
	"terreno":         CategoryLand,
	"terrenos":        CategoryLand,
	"lote":            CategoryLand,
	"lotes":           CategoryLand,
	"sala comercial":  CategoryCommercial,
	"ponto comercial": CategoryCommercial,
	"comercial":       CategoryCommercial,
	"loja":            CategoryCommercial,
	"chacara":         CategoryCountry,
	"chacaras":        CategoryCountry,
	"sitio":           CategoryCountry,
	"sitios":          CategoryCountry,
	"fazenda":         CategoryCountry,
	"rural":           CategoryCountry,
}

var transactionSynonyms = map[string]string{
	"comprar": "sale",
	"compra":  "sale",
	"venda":   "sale",
	"vender":  "sale",
	"a venda": "sale",
	"alugar":  "rent",
	"aluguel": "rent",
	"alugo":   "rent",
	"locacao": "rent",
	"locar":   "rent",
}

// KeywordClassifier matches known vocabulary against normalized text.
type KeywordClassifier struct {
	categoryKeys    []string // sorted longest-first
	transactionKeys []string
}

func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{
		categoryKeys:    sortedByLength(categorySynonyms),
		transactionKeys: sortedByLength(transactionSynonyms),
	}
}

func (c *KeywordClassifier) Category(text string) (string, bool) {
	norm := Normalize(text)
	for _, key := range c.categoryKeys {
		if containsPhrase(norm, key) {
			return categorySynonyms[key], true
		}
	}
	return "", false
}

func (c *KeywordClassifier) Transaction(text string) (string, bool) {
	norm := Normalize(text)
	for _, key := range c.transactionKeys {
		if containsPhrase(norm, key) {
			return transactionSynonyms[key], true
		}
	}
	return "", false
}

func (c *KeywordClassifier) Location(text string, known []string) (string, bool) {
	norm := Normalize(text)
	// Longest first so "balneario camboriu" beats "camboriu".
	sorted := make([]string, len(known))
	copy(sorted, known)
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	for _, loc := range sorted {
		if loc == "" {
			continue
		}
		if containsPhrase(norm, Normalize(loc)) {
			return loc, true
		}
	}
	return "", false
}

// moreRE matches explicit continuation phrases. The bare word "mais" only
// counts when it is the whole message; inside a sentence it is usually a
// quantity refinement ("com mais de 2 quartos").
var moreRE = regexp.MustCompile(`\b(ver mais|mostrar? mais|mostre mais|quero mais|tem (mais|outr[ao]s?)|mais (opcoes|imoveis|resultados)|outr[ao]s? (opcoes|opcao|imoveis|imovel)|proxim[ao]s|continuar?)\b`)

var bareMoreRE = regexp.MustCompile(`^(mais|outr[ao]s?|proxim[ao]s?)[!.?\s]*$`)

// WantsMore reports whether the message is a "show more results" follow-up.
func WantsMore(text string) bool {
	norm := Normalize(text)
	return moreRE.MatchString(norm) || bareMoreRE.MatchString(norm)
}

var greetingRE = regexp.MustCompile(`^(oi|ola|oie|eai|e ai|bom dia|boa tarde|boa noite|hey|hello|hi|opa|tudo bem\??|td bem\??)[!. ]*$`)

// IsGreeting reports whether the message is a bare greeting with no intent.
func IsGreeting(text string) bool {
	return greetingRE.MatchString(strings.TrimSpace(Normalize(text)))
}

// Normalize lowercases text and strips diacritics so keyword tables stay
// accent-free.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case 'á', 'à', 'â', 'ã', 'ä':
			b.WriteRune('a')
		case 'é', 'è', 'ê', 'ë':
			b.WriteRune('e')
		case 'í', 'ì', 'î', 'ï':
			b.WriteRune('i')
		case 'ó', 'ò', 'ô', 'õ', 'ö':
			b.WriteRune('o')
		case 'ú', 'ù', 'û', 'ü':
			b.WriteRune('u')
		case 'ç':
			b.WriteRune('c')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// containsPhrase reports whether phrase occurs in text on word boundaries.
// Substring matching alone would let "ap" fire inside "mapa".
func containsPhrase(text, phrase string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], phrase)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(phrase)
		beforeOK := start == 0 || !isWordRune(rune(text[start-1]))
		afterOK := end >= len(text) || !isWordRune(rune(text[end]))
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func sortedByLength(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}
