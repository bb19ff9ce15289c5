package feed

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ItemInput is a normalized item record ready for the upsert engine.
// Pointer fields distinguish NULL from the empty value where the schema
// keeps them apart; plain strings collapse absent and empty, which the
// merge law treats identically anyway.
type ItemInput struct {
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
	Related                     []RelatedInput
}

// RelatedInput is a normalized related-product record.
type RelatedInput struct {
	GTIN                    string
	TradeItemUnitDescriptor string
}

// ProductInput is a normalized product record.
type ProductInput struct {
	Amount                     int64
	BBD                        *time.Time
	Comment                    string
	CountryOfDisassembly       string
	CountryOfRearing           string
	CountryOfSlaughter         string
	SlaughterhouseRegistration string
	LotNumber                  string
	CuttingPlantRegistration   string
	Item                       ItemInput
}

// FeedInput is a normalized feed upload.
type FeedInput struct {
	SupplierID       string
	UserID           string
	SessionID        string
	SessionStartTime time.Time
	SessionEndTime   time.Time
	Products         []ProductInput
}

var asciiFolder = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
)

// asciiFold maps text to its closest ASCII form: compatibility decomposition
// followed by dropping every rune without an ASCII representation.
func asciiFold(s string) string {
	out, _, err := transform.String(asciiFolder, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeIdentifier interprets an incoming code or gtin as a base-10
// integer and re-renders it as a decimal string with no leading zeros.
func NormalizeIdentifier(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrInvalidIdentifier
	}
	neg := false
	switch s[0] {
	case '+':
		s = s[1:]
	case '-':
		neg = true
		s = s[1:]
	}
	if s == "" {
		return "", ErrInvalidIdentifier
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", ErrInvalidIdentifier
		}
	}
	s = strings.TrimLeft(s, "0")
	if s == "" {
		return "0", nil
	}
	if neg {
		return "-" + s, nil
	}
	return s, nil
}

// truthyJSON mirrors the loose truthiness the legacy feed contract uses for
// raw JSON values: null, false, 0, "", {} and [] all count as empty.
func truthyJSON(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	switch {
	case len(v) == 0:
		return false
	case bytes.Equal(v, []byte("null")), bytes.Equal(v, []byte("false")):
		return false
	case bytes.Equal(v, []byte(`""`)), bytes.Equal(v, []byte("{}")), bytes.Equal(v, []byte("[]")):
		return false
	case bytes.Equal(v, []byte("0")), bytes.Equal(v, []byte("0.0")):
		return false
	}
	return true
}

// buildItemInput normalizes one item payload. Field errors are collected
// under the given path prefix (for example "item." or "amounts.3.item.").
func buildItemInput(p *ItemPayload, prefix string, verrs *ValidationError) ItemInput {
	in := ItemInput{
		Brand:                       p.Brand,
		CategoryID:                  string(p.CategoryID),
		Description:                 p.Description,
		GrossWeight:                 p.GrossWeight,
		NetWeight:                   p.NetWeight,
		Hierarchies:                 p.Hierarchies,
		Packaging:                   p.Packaging,
		RegulatedName:               p.RegulatedName,
		RequiresBestBeforeDate:      p.RequiresBestBeforeDate,
		RequiresMeatInfo:            p.RequiresMeatInfo,
		Status:                      p.Status,
		TradeItemUnitDescriptor:     string(p.TradeItemUnitDescriptor),
		TradeItemUnitDescriptorName: p.TradeItemUnitDescriptorName,
		UnitName:                    p.UnitName,
		ValidationStatus:            p.ValidationStatus,
		VATRate:                     string(p.VATRate),
		VAT:                         p.VAT,
	}

	if p.Code != "" {
		code, err := NormalizeIdentifier(string(p.Code))
		if err != nil {
			verrs.Add(prefix+"code", "a valid integer identifier is required")
		} else {
			in.Code = code
		}
	}

	// Absent type key means NULL, which is a different identity than an
	// empty string.
	if p.TypePresent() && p.Type != nil {
		t := asciiFold(*p.Type)
		in.Type = &t
	}

	if p.Notes != nil {
		in.Notes = asciiFold(*p.Notes)
	}

	if p.AmountMultiplier != nil {
		v := int64(*p.AmountMultiplier)
		in.AmountMultiplier = &v
	}

	// Legacy alias: trade_item_descriptor wins over the canonical key.
	if p.TradeItemDescriptor != nil {
		in.TradeItemUnitDescriptor = string(*p.TradeItemDescriptor)
	}

	// Legacy feeds transposed category and category_id; when category is
	// present the two values swap slots. Preserved as observed.
	if p.CategoryPresent() {
		in.CategoryID = string(p.Category)
		if s := strings.TrimSpace(string(p.CategoryID)); s != "" {
			v, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				verrs.Add(prefix+"categ_id", "a valid integer is required")
			} else {
				in.CategID = &v
			}
		}
	} else if p.CategID != nil {
		v := int64(*p.CategID)
		in.CategID = &v
	}

	if ean := normalizeEdeka(p.EdekaArticleNumber, prefix, verrs); ean != nil {
		in.EdekaArticleNumber = ean
	}

	for idx, rp := range p.RelatedProducts {
		rin := RelatedInput{TradeItemUnitDescriptor: string(rp.TradeItemUnitDescriptor)}
		if rp.GTIN != "" {
			gtin, err := NormalizeIdentifier(string(rp.GTIN))
			if err != nil {
				verrs.Add(prefix+"related_products."+strconv.Itoa(idx)+".gtin", "a valid integer identifier is required")
				continue
			}
			rin.GTIN = gtin
		}
		in.Related = append(in.Related, rin)
	}
	return in
}

// normalizeEdeka coerces edeka_article_number: an absent key stays NULL, a
// present falsy value becomes the empty string, never null.
func normalizeEdeka(raw json.RawMessage, prefix string, verrs *ValidationError) *string {
	if raw == nil {
		return nil
	}
	if !truthyJSON(raw) {
		s := ""
		return &s
	}
	v := bytes.TrimSpace(raw)
	if v[0] == '"' {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			verrs.Add(prefix+"edeka_article_number", "not a valid string")
			return nil
		}
		return &s
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err != nil {
		verrs.Add(prefix+"edeka_article_number", "not a valid string")
		return nil
	}
	s := n.String()
	return &s
}

// buildProductInput normalizes one product payload. Related products given
// beside the item are folded into the item's set.
func buildProductInput(p ProductPayload, prefix string, verrs *ValidationError) ProductInput {
	in := ProductInput{
		BBD:                        p.BBD,
		Comment:                    p.Comment,
		CountryOfDisassembly:       p.CountryOfDisassembly,
		CountryOfRearing:           p.CountryOfRearing,
		CountryOfSlaughter:         p.CountryOfSlaughter,
		SlaughterhouseRegistration: p.SlaughterhouseRegistration,
		LotNumber:                  p.LotNumber,
		CuttingPlantRegistration:   p.CuttingPlantRegistration,
	}
	if p.Amount != nil {
		in.Amount = int64(*p.Amount)
	}
	if p.Item != nil {
		in.Item = buildItemInput(p.Item, prefix+"item.", verrs)
	}
	for idx, rp := range p.RelatedProducts {
		rin := RelatedInput{TradeItemUnitDescriptor: string(rp.TradeItemUnitDescriptor)}
		if rp.GTIN != "" {
			gtin, err := NormalizeIdentifier(string(rp.GTIN))
			if err != nil {
				verrs.Add(prefix+"related_products."+strconv.Itoa(idx)+".gtin", "a valid integer identifier is required")
				continue
			}
			rin.GTIN = gtin
		}
		in.Item.Related = append(in.Item.Related, rin)
	}
	return in
}

// buildFeedInput normalizes a whole feed upload in input order.
func buildFeedInput(p FeedPayload, verrs *ValidationError) FeedInput {
	in := FeedInput{
		SupplierID: p.SupplierID,
		UserID:     p.UserID,
		SessionID:  p.SessionID,
	}
	if p.SessionStartTime != nil {
		in.SessionStartTime = *p.SessionStartTime
	}
	if p.SessionEndTime != nil {
		in.SessionEndTime = *p.SessionEndTime
	}
	for idx, ap := range p.Amounts {
		prefix := "amounts." + strconv.Itoa(idx) + "."
		in.Products = append(in.Products, buildProductInput(ap, prefix, verrs))
	}
	return in
}

// itemFromInput materialises a new item carrying exactly the supplied
// fields; unset fields keep their defaults.
func itemFromInput(in ItemInput) Item {
	return Item{
		Code:                        in.Code,
		Type:                        in.Type,
		AmountMultiplier:            in.AmountMultiplier,
		Brand:                       in.Brand,
		CategID:                     in.CategID,
		CategoryID:                  in.CategoryID,
		Description:                 in.Description,
		GrossWeight:                 in.GrossWeight,
		NetWeight:                   in.NetWeight,
		Hierarchies:                 in.Hierarchies,
		Notes:                       in.Notes,
		EdekaArticleNumber:          in.EdekaArticleNumber,
		Packaging:                   in.Packaging,
		RegulatedName:               in.RegulatedName,
		RequiresBestBeforeDate:      in.RequiresBestBeforeDate,
		RequiresMeatInfo:            in.RequiresMeatInfo,
		Status:                      in.Status,
		TradeItemUnitDescriptor:     in.TradeItemUnitDescriptor,
		TradeItemUnitDescriptorName: in.TradeItemUnitDescriptorName,
		UnitName:                    in.UnitName,
		ValidationStatus:            in.ValidationStatus,
		VATRate:                     in.VATRate,
		VAT:                         in.VAT,
	}
}

// mergeItem applies the partial-update law: every present-and-truthy
// incoming field overwrites the stored one, everything else is untouched.
func mergeItem(existing Item, in ItemInput) Item {
	merged := existing
	if in.AmountMultiplier != nil && *in.AmountMultiplier != 0 {
		merged.AmountMultiplier = in.AmountMultiplier
	}
	if in.Brand != "" {
		merged.Brand = in.Brand
	}
	if in.CategID != nil && *in.CategID != 0 {
		merged.CategID = in.CategID
	}
	if in.CategoryID != "" {
		merged.CategoryID = in.CategoryID
	}
	if in.Description != "" {
		merged.Description = in.Description
	}
	if truthyJSON(in.GrossWeight) {
		merged.GrossWeight = in.GrossWeight
	}
	if truthyJSON(in.NetWeight) {
		merged.NetWeight = in.NetWeight
	}
	if truthyJSON(in.Hierarchies) {
		merged.Hierarchies = in.Hierarchies
	}
	if in.Notes != "" {
		merged.Notes = in.Notes
	}
	if in.EdekaArticleNumber != nil && *in.EdekaArticleNumber != "" {
		merged.EdekaArticleNumber = in.EdekaArticleNumber
	}
	if in.Packaging != "" {
		merged.Packaging = in.Packaging
	}
	if in.RegulatedName != "" {
		merged.RegulatedName = in.RegulatedName
	}
	if in.RequiresBestBeforeDate != nil && *in.RequiresBestBeforeDate {
		merged.RequiresBestBeforeDate = in.RequiresBestBeforeDate
	}
	if in.RequiresMeatInfo != nil && *in.RequiresMeatInfo {
		merged.RequiresMeatInfo = in.RequiresMeatInfo
	}
	if in.Status != "" {
		merged.Status = in.Status
	}
	if in.TradeItemUnitDescriptor != "" {
		merged.TradeItemUnitDescriptor = in.TradeItemUnitDescriptor
	}
	if in.TradeItemUnitDescriptorName != "" {
		merged.TradeItemUnitDescriptorName = in.TradeItemUnitDescriptorName
	}
	if in.UnitName != "" {
		merged.UnitName = in.UnitName
	}
	if in.ValidationStatus != "" {
		merged.ValidationStatus = in.ValidationStatus
	}
	if in.VATRate != "" {
		merged.VATRate = in.VATRate
	}
	if truthyJSON(in.VAT) {
		merged.VAT = in.VAT
	}
	return merged
}
