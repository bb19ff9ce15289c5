package feed

import (
	"encoding/json"
	"time"

	"github.com/feedgate/feedgate/internal/shared"
)

// relatedView is the wire representation of a related product.
type relatedView struct {
	ID                      int64  `json:"id"`
	GTIN                    string `json:"gtin"`
	TradeItemUnitDescriptor string `json:"trade_item_unit_descriptor"`
}

// itemView is the wire representation of an item. Notes and the edeka
// article number render as boolean false when empty: the stored value is a
// string but the wire contract is string-or-false.
type itemView struct {
	ID                          int64           `json:"id"`
	Code                        string          `json:"code"`
	Type                        *string         `json:"type"`
	AmountMultiplier            *int64          `json:"amount_multiplier"`
	Brand                       string          `json:"brand"`
	CategID                     *int64          `json:"categ_id"`
	CategoryID                  string          `json:"category_id"`
	Description                 string          `json:"description"`
	GrossWeight                 json.RawMessage `json:"gross_weight"`
	NetWeight                   json.RawMessage `json:"net_weight"`
	Hierarchies                 json.RawMessage `json:"hierarchies"`
	Notes                       any             `json:"notes"`
	EdekaArticleNumber          any             `json:"edeka_article_number"`
	Packaging                   string          `json:"packaging"`
	RegulatedName               string          `json:"regulated_name"`
	RequiresBestBeforeDate      *bool           `json:"requires_best_before_date"`
	RequiresMeatInfo            *bool           `json:"requires_meat_info"`
	Status                      string          `json:"status"`
	TradeItemUnitDescriptor     string          `json:"trade_item_unit_descriptor"`
	TradeItemUnitDescriptorName string          `json:"trade_item_unit_descriptor_name"`
	UnitName                    string          `json:"unit_name"`
	ValidationStatus            string          `json:"validation_status"`
	VATRate                     string          `json:"vat_rate"`
	VAT                         json.RawMessage `json:"vat"`
	RelatedProducts             []relatedView   `json:"related_products"`
}

// productView is the wire representation of one product.
type productView struct {
	ID                         int64      `json:"id"`
	ProductFeed                *int64     `json:"product_feed"`
	Amount                     int64      `json:"amount"`
	BBD                        *time.Time `json:"bbd"`
	Comment                    string     `json:"comment"`
	CountryOfDisassembly       string     `json:"country_of_disassembly"`
	CountryOfRearing           string     `json:"country_of_rearing"`
	CountryOfSlaughter         string     `json:"country_of_slaughter"`
	SlaughterhouseRegistration string     `json:"slaughterhouse_registration"`
	LotNumber                  string     `json:"lot_number"`
	CuttingPlantRegistration   string     `json:"cutting_plant_registration"`
	Item                       itemView   `json:"item"`
}

// feedView is the wire representation of an imported feed.
type feedView struct {
	ID               int64         `json:"id"`
	SupplierID       string        `json:"supplier_id"`
	UserID           string        `json:"user_id"`
	SessionID        string        `json:"session_id"`
	SessionStartTime time.Time     `json:"session_start_time"`
	SessionEndTime   time.Time     `json:"session_end_time"`
	Amounts          []productView `json:"amounts"`
}

// pageView is the paginated listing envelope.
type pageView struct {
	shared.Pagination
	Results []productView `json:"results"`
}

// stringOrFalse renders an empty value as boolean false.
func stringOrFalse(s string) any {
	if s == "" {
		return false
	}
	return s
}

// ptrStringOrFalse renders a nil or empty value as boolean false.
func ptrStringOrFalse(p *string) any {
	if p == nil || *p == "" {
		return false
	}
	return *p
}

func newItemView(item Item, related []RelatedProduct) itemView {
	views := make([]relatedView, 0, len(related))
	for _, rp := range related {
		views = append(views, relatedView{
			ID:                      rp.ID,
			GTIN:                    rp.GTIN,
			TradeItemUnitDescriptor: rp.TradeItemUnitDescriptor,
		})
	}
	return itemView{
		ID:                          item.ID,
		Code:                        item.Code,
		Type:                        item.Type,
		AmountMultiplier:            item.AmountMultiplier,
		Brand:                       item.Brand,
		CategID:                     item.CategID,
		CategoryID:                  item.CategoryID,
		Description:                 item.Description,
		GrossWeight:                 item.GrossWeight,
		NetWeight:                   item.NetWeight,
		Hierarchies:                 item.Hierarchies,
		Notes:                       stringOrFalse(item.Notes),
		EdekaArticleNumber:          ptrStringOrFalse(item.EdekaArticleNumber),
		Packaging:                   item.Packaging,
		RegulatedName:               item.RegulatedName,
		RequiresBestBeforeDate:      item.RequiresBestBeforeDate,
		RequiresMeatInfo:            item.RequiresMeatInfo,
		Status:                      item.Status,
		TradeItemUnitDescriptor:     item.TradeItemUnitDescriptor,
		TradeItemUnitDescriptorName: item.TradeItemUnitDescriptorName,
		UnitName:                    item.UnitName,
		ValidationStatus:            item.ValidationStatus,
		VATRate:                     item.VATRate,
		VAT:                         item.VAT,
		RelatedProducts:             views,
	}
}

func newProductView(rec ProductRecord) productView {
	return productView{
		ID:                         rec.Product.ID,
		ProductFeed:                rec.Product.FeedID,
		Amount:                     rec.Product.Amount,
		BBD:                        rec.Product.BBD,
		Comment:                    rec.Product.Comment,
		CountryOfDisassembly:       rec.Product.CountryOfDisassembly,
		CountryOfRearing:           rec.Product.CountryOfRearing,
		CountryOfSlaughter:         rec.Product.CountryOfSlaughter,
		SlaughterhouseRegistration: rec.Product.SlaughterhouseRegistration,
		LotNumber:                  rec.Product.LotNumber,
		CuttingPlantRegistration:   rec.Product.CuttingPlantRegistration,
		Item:                       newItemView(rec.Item, rec.Related),
	}
}

func newFeedView(result ImportResult) feedView {
	views := make([]productView, 0, len(result.Products))
	for _, rec := range result.Products {
		views = append(views, newProductView(rec))
	}
	return feedView{
		ID:               result.Feed.ID,
		SupplierID:       result.Feed.SupplierID,
		UserID:           result.Feed.UserID,
		SessionID:        result.Feed.SessionID,
		SessionStartTime: result.Feed.SessionStartTime,
		SessionEndTime:   result.Feed.SessionEndTime,
		Amounts:          views,
	}
}

func newPageView(page ProductPage) pageView {
	views := make([]productView, 0, len(page.Results))
	for _, rec := range page.Results {
		views = append(views, newProductView(rec))
	}
	return pageView{Pagination: page.Pagination, Results: views}
}
