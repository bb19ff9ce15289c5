package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Feed represents one ingestion session. A feed row is written once per
// import and never mutated afterwards.
type Feed struct {
	ID               int64
	SupplierID       string
	UserID           string
	SessionID        string
	SessionStartTime time.Time
	SessionEndTime   time.Time
	CreatedAt        time.Time
}

// Item is a catalog entry identified by the natural key (code, type).
// Type is nullable: an absent type is a different identity than an empty
// string.
type Item struct {
	ID                          int64
	Code                        string
	Type                        *string
	AmountMultiplier            *int64
	Brand                       string
	CategID                     *int64
	CategoryID                  string
	Description                 string
	GrossWeight                 json.RawMessage
	NetWeight                   json.RawMessage
	Hierarchies                 json.RawMessage
	Notes                       string
	EdekaArticleNumber          *string
	Packaging                   string
	RegulatedName               string
	RequiresBestBeforeDate      *bool
	RequiresMeatInfo            *bool
	Status                      string
	TradeItemUnitDescriptor     string
	TradeItemUnitDescriptorName string
	UnitName                    string
	ValidationStatus            string
	VATRate                     string
	VAT                         json.RawMessage
}

// NaturalKey renders the (code, type) identity of the item. The absent type
// is encoded distinctly from the empty string.
func (i Item) NaturalKey() string {
	return ItemKey(i.Code, i.Type)
}

// ItemKey builds the natural key string for a (code, type) pair.
func ItemKey(code string, typ *string) string {
	if typ == nil {
		return code + "\x1f\x00"
	}
	return code + "\x1f" + *typ
}

// Product is one quantity/lot instance of an Item, optionally tied to a
// Feed. Products are append-only; no update path exists.
type Product struct {
	ID                         int64
	FeedID                     *int64
	ItemID                     int64
	Amount                     int64
	BBD                        *time.Time
	Comment                    string
	CountryOfDisassembly       string
	CountryOfRearing           string
	CountryOfSlaughter         string
	SlaughterhouseRegistration string
	LotNumber                  string
	CuttingPlantRegistration   string
	CreatedAt                  time.Time
}

// RelatedProduct is a cross-reference to another trade item, keyed by gtin
// within the scope of a single owning item.
type RelatedProduct struct {
	ID                      int64
	GTIN                    string
	TradeItemUnitDescriptor string
}

// ProductRecord bundles a product with its resolved item and the item's
// related products, as served by the read layer.
type ProductRecord struct {
	Product Product
	Item    Item
	Related []RelatedProduct
}

// Errors surfaced by the feed domain.
var (
	// ErrInvalidIdentifier indicates a code or gtin that cannot be parsed
	// as a base-10 integer.
	ErrInvalidIdentifier = errors.New("invalid identifier")
	// ErrItemConflict indicates the unique (code, type) constraint fired
	// under concurrency; the caller may retry.
	ErrItemConflict = errors.New("item natural key conflict")
)

// ValidationError carries the field-keyed error report for a rejected
// payload. Keys are dotted record paths such as "amounts.3.item.code".
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("validation failed: %s", strings.Join(keys, ", "))
}

// NewValidationError builds an empty report ready to collect fields.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: map[string]string{}}
}

// Add records one field error, keeping the first message per path.
func (e *ValidationError) Add(path, msg string) {
	if _, ok := e.Fields[path]; !ok {
		e.Fields[path] = msg
	}
}

// Merge folds another report into this one.
func (e *ValidationError) Merge(other *ValidationError) {
	if other == nil {
		return
	}
	for k, v := range other.Fields {
		e.Add(k, v)
	}
}

// Empty reports whether no field errors were collected.
func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Fields) == 0
}
