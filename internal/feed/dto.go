package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// FlexString decodes a JSON string or number into a string. Legacy feeds
// carry identifiers both quoted and unquoted.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (s *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number: %w", err)
	}
	*s = FlexString(n.String())
	return nil
}

// FlexInt decodes a JSON number or numeric string into an int64.
type FlexInt int64

// UnmarshalJSON implements json.Unmarshaler.
func (i *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*i = 0
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		raw = v
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("expected integer, got %s", raw)
	}
	*i = FlexInt(v)
	return nil
}

// RelatedPayload is the wire form of one related-product reference.
type RelatedPayload struct {
	GTIN                    FlexString `json:"gtin" validate:"required"`
	TradeItemUnitDescriptor FlexString `json:"trade_item_unit_descriptor" validate:"required"`
}

// ItemPayload is the wire form of a catalog item. Several fields need
// key-presence tracking because the normalizer distinguishes an absent key
// from a present null or empty value.
type ItemPayload struct {
	Code                        FlexString       `json:"code" validate:"required"`
	Type                        *string          `json:"type"`
	AmountMultiplier            *FlexInt         `json:"amount_multiplier"`
	Brand                       string           `json:"brand"`
	CategID                     *FlexInt         `json:"categ_id"`
	CategoryID                  FlexString       `json:"category_id"`
	Category                    FlexString       `json:"category"`
	Description                 string           `json:"description"`
	GrossWeight                 json.RawMessage  `json:"gross_weight"`
	NetWeight                   json.RawMessage  `json:"net_weight"`
	Hierarchies                 json.RawMessage  `json:"hierarchies"`
	Notes                       *string          `json:"notes"`
	EdekaArticleNumber          json.RawMessage  `json:"edeka_article_number"`
	Packaging                   string           `json:"packaging"`
	RegulatedName               string           `json:"regulated_name"`
	RequiresBestBeforeDate      *bool            `json:"requires_best_before_date"`
	RequiresMeatInfo            *bool            `json:"requires_meat_info"`
	Status                      string           `json:"status"`
	TradeItemUnitDescriptor     FlexString       `json:"trade_item_unit_descriptor"`
	TradeItemDescriptor         *FlexString      `json:"trade_item_descriptor"`
	TradeItemUnitDescriptorName string           `json:"trade_item_unit_descriptor_name"`
	UnitName                    string           `json:"unit_name"`
	ValidationStatus            string           `json:"validation_status"`
	VATRate                     FlexString       `json:"vat_rate"`
	VAT                         json.RawMessage  `json:"vat"`
	RelatedProducts             []RelatedPayload `json:"related_products" validate:"omitempty,dive"`

	typePresent     bool
	categoryPresent bool
}

// UnmarshalJSON decodes the item and records which keys were present.
func (p *ItemPayload) UnmarshalJSON(data []byte) error {
	type alias ItemPayload
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	_, a.typePresent = keys["type"]
	_, a.categoryPresent = keys["category"]
	*p = ItemPayload(a)
	return nil
}

// TypePresent reports whether the type key appeared in the payload.
func (p *ItemPayload) TypePresent() bool { return p.typePresent }

// CategoryPresent reports whether the category key appeared in the payload.
func (p *ItemPayload) CategoryPresent() bool { return p.categoryPresent }

// ProductPayload is the wire form of one product record. Related products
// normally nest under item; legacy producers also put them beside it, so
// both slots are accepted.
type ProductPayload struct {
	Item                       *ItemPayload     `json:"item" validate:"required"`
	Amount                     *FlexInt         `json:"amount" validate:"required"`
	BBD                        *time.Time       `json:"bbd"`
	Comment                    string           `json:"comment"`
	CountryOfDisassembly       string           `json:"country_of_disassembly"`
	CountryOfRearing           string           `json:"country_of_rearing"`
	CountryOfSlaughter         string           `json:"country_of_slaughter"`
	SlaughterhouseRegistration string           `json:"slaughterhouse_registration"`
	LotNumber                  string           `json:"lot_number"`
	CuttingPlantRegistration   string           `json:"cutting_plant_registration"`
	RelatedProducts            []RelatedPayload `json:"related_products" validate:"omitempty,dive"`
}

// FeedPayload is the wire form of a whole feed upload.
type FeedPayload struct {
	SupplierID       string           `json:"supplier_id" validate:"required"`
	UserID           string           `json:"user_id" validate:"required"`
	SessionID        string           `json:"session_id" validate:"required"`
	SessionStartTime *time.Time       `json:"session_start_time" validate:"required"`
	SessionEndTime   *time.Time       `json:"session_end_time" validate:"required"`
	Amounts          []ProductPayload `json:"amounts" validate:"required,dive"`
}
