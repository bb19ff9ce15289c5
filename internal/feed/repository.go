package feed

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/feedgate/feedgate/internal/shared"
)

// Repository provides PostgreSQL backed persistence for the feed domain.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the write operations used by the import engine. All
// of them run inside one transaction so a failed import writes nothing.
type TxRepository interface {
	LockItemKey(ctx context.Context, code string, typ *string) error
	FindItemByKey(ctx context.Context, code string, typ *string) (Item, error)
	InsertItem(ctx context.Context, item Item) (Item, error)
	UpdateItem(ctx context.Context, item Item) error
	InsertFeed(ctx context.Context, f Feed) (Feed, error)
	InsertProduct(ctx context.Context, p Product) (Product, error)
	LinkedGTINs(ctx context.Context, itemID int64) (map[string]bool, error)
	AttachRelated(ctx context.Context, itemID int64, rp RelatedProduct) (RelatedProduct, error)
}

// Storage is the read/write contract the service depends on.
type Storage interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListProducts(ctx context.Context, filter ListFilter) ([]ProductRecord, int, error)
	GetProduct(ctx context.Context, id int64) (ProductRecord, error)
}

// ListFilter narrows and pages the product listing. A zero Limit returns
// every row.
type ListFilter struct {
	ItemCode string
	Limit    int
	Offset   int
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps the callback in a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	wrapper := &txRepo{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

const itemColumns = `id, code, type, amount_multiplier, brand, categ_id, category_id, description,
gross_weight, net_weight, hierarchies, notes, edeka_article_number, packaging, regulated_name,
requires_best_before_date, requires_meat_info, status, trade_item_unit_descriptor,
trade_item_unit_descriptor_name, unit_name, validation_status, vat_rate, vat`

func scanItem(row pgx.Row) (Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.Code, &it.Type, &it.AmountMultiplier, &it.Brand, &it.CategID,
		&it.CategoryID, &it.Description, &it.GrossWeight, &it.NetWeight, &it.Hierarchies,
		&it.Notes, &it.EdekaArticleNumber, &it.Packaging, &it.RegulatedName,
		&it.RequiresBestBeforeDate, &it.RequiresMeatInfo, &it.Status,
		&it.TradeItemUnitDescriptor, &it.TradeItemUnitDescriptorName, &it.UnitName,
		&it.ValidationStatus, &it.VATRate, &it.VAT)
	return it, err
}

// LockItemKey serialises writers of one (code, type) identity for the
// duration of the transaction. Together with the unique index this turns
// the lookup-then-write into an atomic get-or-create.
func (r *txRepo) LockItemKey(ctx context.Context, code string, typ *string) error {
	_, err := r.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 42))`, ItemKey(code, typ))
	return err
}

// FindItemByKey resolves an item by its natural key. NULL type only matches
// NULL, never the empty string.
func (r *txRepo) FindItemByKey(ctx context.Context, code string, typ *string) (Item, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE code = $1 AND type IS NOT DISTINCT FROM $2`, code, typ)
	it, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, shared.ErrNotFound
		}
		return Item{}, err
	}
	return it, nil
}

func (r *txRepo) InsertItem(ctx context.Context, item Item) (Item, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO items (code, type, amount_multiplier, brand, categ_id, category_id,
description, gross_weight, net_weight, hierarchies, notes, edeka_article_number, packaging,
regulated_name, requires_best_before_date, requires_meat_info, status, trade_item_unit_descriptor,
trade_item_unit_descriptor_name, unit_name, validation_status, vat_rate, vat)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
RETURNING id`,
		item.Code, item.Type, item.AmountMultiplier, item.Brand, item.CategID, item.CategoryID,
		item.Description, item.GrossWeight, item.NetWeight, item.Hierarchies, item.Notes,
		item.EdekaArticleNumber, item.Packaging, item.RegulatedName, item.RequiresBestBeforeDate,
		item.RequiresMeatInfo, item.Status, item.TradeItemUnitDescriptor,
		item.TradeItemUnitDescriptorName, item.UnitName, item.ValidationStatus, item.VATRate, item.VAT,
	).Scan(&item.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return Item{}, ErrItemConflict
		}
		return Item{}, err
	}
	return item, nil
}

func (r *txRepo) UpdateItem(ctx context.Context, item Item) error {
	_, err := r.tx.Exec(ctx, `UPDATE items SET amount_multiplier = $2, brand = $3, categ_id = $4,
category_id = $5, description = $6, gross_weight = $7, net_weight = $8, hierarchies = $9,
notes = $10, edeka_article_number = $11, packaging = $12, regulated_name = $13,
requires_best_before_date = $14, requires_meat_info = $15, status = $16,
trade_item_unit_descriptor = $17, trade_item_unit_descriptor_name = $18, unit_name = $19,
validation_status = $20, vat_rate = $21, vat = $22 WHERE id = $1`,
		item.ID, item.AmountMultiplier, item.Brand, item.CategID, item.CategoryID,
		item.Description, item.GrossWeight, item.NetWeight, item.Hierarchies, item.Notes,
		item.EdekaArticleNumber, item.Packaging, item.RegulatedName, item.RequiresBestBeforeDate,
		item.RequiresMeatInfo, item.Status, item.TradeItemUnitDescriptor,
		item.TradeItemUnitDescriptorName, item.UnitName, item.ValidationStatus, item.VATRate, item.VAT)
	return err
}

func (r *txRepo) InsertFeed(ctx context.Context, f Feed) (Feed, error) {
	f.CreatedAt = time.Now()
	err := r.tx.QueryRow(ctx, `INSERT INTO feeds (supplier_id, user_id, session_id, session_start_time, session_end_time, created_at)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		f.SupplierID, f.UserID, f.SessionID, f.SessionStartTime, f.SessionEndTime, f.CreatedAt,
	).Scan(&f.ID)
	if err != nil {
		return Feed{}, err
	}
	return f, nil
}

func (r *txRepo) InsertProduct(ctx context.Context, p Product) (Product, error) {
	p.CreatedAt = time.Now()
	err := r.tx.QueryRow(ctx, `INSERT INTO products (feed_id, item_id, amount, bbd, comment,
country_of_disassembly, country_of_rearing, country_of_slaughter, slaughterhouse_registration,
lot_number, cutting_plant_registration, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id`,
		p.FeedID, p.ItemID, p.Amount, p.BBD, p.Comment, p.CountryOfDisassembly,
		p.CountryOfRearing, p.CountryOfSlaughter, p.SlaughterhouseRegistration,
		p.LotNumber, p.CuttingPlantRegistration, p.CreatedAt,
	).Scan(&p.ID)
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

func (r *txRepo) LinkedGTINs(ctx context.Context, itemID int64) (map[string]bool, error) {
	rows, err := r.tx.Query(ctx, `SELECT rp.gtin FROM related_products rp
JOIN item_related_products irp ON irp.related_product_id = rp.id WHERE irp.item_id = $1`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	gtins := make(map[string]bool)
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, err
		}
		gtins[g] = true
	}
	return gtins, rows.Err()
}

func (r *txRepo) AttachRelated(ctx context.Context, itemID int64, rp RelatedProduct) (RelatedProduct, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO related_products (gtin, trade_item_unit_descriptor)
VALUES ($1, $2) RETURNING id`, rp.GTIN, rp.TradeItemUnitDescriptor).Scan(&rp.ID)
	if err != nil {
		return RelatedProduct{}, err
	}
	_, err = r.tx.Exec(ctx, `INSERT INTO item_related_products (item_id, related_product_id) VALUES ($1, $2)`, itemID, rp.ID)
	if err != nil {
		return RelatedProduct{}, err
	}
	return rp, nil
}

// ListProducts returns one page of products joined with their items, in
// creation order, optionally restricted to one item code.
func (r *Repository) ListProducts(ctx context.Context, filter ListFilter) ([]ProductRecord, int, error) {
	countQuery := `SELECT COUNT(*) FROM products p JOIN items i ON i.id = p.item_id`
	listQuery := `SELECT p.id, p.feed_id, p.item_id, p.amount, p.bbd, p.comment,
p.country_of_disassembly, p.country_of_rearing, p.country_of_slaughter,
p.slaughterhouse_registration, p.lot_number, p.cutting_plant_registration, p.created_at,
` + prefixedItemColumns + ` FROM products p JOIN items i ON i.id = p.item_id`

	var args []any
	if filter.ItemCode != "" {
		countQuery += ` WHERE i.code = $1`
		listQuery += ` WHERE i.code = $1`
		args = append(args, filter.ItemCode)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery += ` ORDER BY p.id`
	if filter.Limit > 0 {
		listQuery += ` LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		args = append(args, filter.Limit, offset)
	}

	rows, err := r.pool.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var records []ProductRecord
	itemIDs := make(map[int64]bool)
	for rows.Next() {
		rec, err := scanProductRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
		itemIDs[rec.Item.ID] = true
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if err := r.loadRelated(ctx, records, itemIDs); err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// GetProduct loads one product with its item and related products.
func (r *Repository) GetProduct(ctx context.Context, id int64) (ProductRecord, error) {
	row := r.pool.QueryRow(ctx, `SELECT p.id, p.feed_id, p.item_id, p.amount, p.bbd, p.comment,
p.country_of_disassembly, p.country_of_rearing, p.country_of_slaughter,
p.slaughterhouse_registration, p.lot_number, p.cutting_plant_registration, p.created_at,
`+prefixedItemColumns+` FROM products p JOIN items i ON i.id = p.item_id WHERE p.id = $1`, id)
	rec, err := scanProductRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductRecord{}, shared.ErrNotFound
		}
		return ProductRecord{}, err
	}
	records := []ProductRecord{rec}
	if err := r.loadRelated(ctx, records, map[int64]bool{rec.Item.ID: true}); err != nil {
		return ProductRecord{}, err
	}
	return records[0], nil
}

const prefixedItemColumns = `i.id, i.code, i.type, i.amount_multiplier, i.brand, i.categ_id,
i.category_id, i.description, i.gross_weight, i.net_weight, i.hierarchies, i.notes,
i.edeka_article_number, i.packaging, i.regulated_name, i.requires_best_before_date,
i.requires_meat_info, i.status, i.trade_item_unit_descriptor, i.trade_item_unit_descriptor_name,
i.unit_name, i.validation_status, i.vat_rate, i.vat`

func scanProductRecord(row pgx.Row) (ProductRecord, error) {
	var rec ProductRecord
	p := &rec.Product
	it := &rec.Item
	err := row.Scan(&p.ID, &p.FeedID, &p.ItemID, &p.Amount, &p.BBD, &p.Comment,
		&p.CountryOfDisassembly, &p.CountryOfRearing, &p.CountryOfSlaughter,
		&p.SlaughterhouseRegistration, &p.LotNumber, &p.CuttingPlantRegistration, &p.CreatedAt,
		&it.ID, &it.Code, &it.Type, &it.AmountMultiplier, &it.Brand, &it.CategID,
		&it.CategoryID, &it.Description, &it.GrossWeight, &it.NetWeight, &it.Hierarchies,
		&it.Notes, &it.EdekaArticleNumber, &it.Packaging, &it.RegulatedName,
		&it.RequiresBestBeforeDate, &it.RequiresMeatInfo, &it.Status,
		&it.TradeItemUnitDescriptor, &it.TradeItemUnitDescriptorName, &it.UnitName,
		&it.ValidationStatus, &it.VATRate, &it.VAT)
	return rec, err
}

func (r *Repository) loadRelated(ctx context.Context, records []ProductRecord, itemIDs map[int64]bool) error {
	if len(itemIDs) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(itemIDs))
	for id := range itemIDs {
		ids = append(ids, id)
	}
	rows, err := r.pool.Query(ctx, `SELECT irp.item_id, rp.id, rp.gtin, rp.trade_item_unit_descriptor
FROM item_related_products irp JOIN related_products rp ON rp.id = irp.related_product_id
WHERE irp.item_id = ANY($1) ORDER BY rp.id`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	related := make(map[int64][]RelatedProduct)
	for rows.Next() {
		var itemID int64
		var rp RelatedProduct
		if err := rows.Scan(&itemID, &rp.ID, &rp.GTIN, &rp.TradeItemUnitDescriptor); err != nil {
			return err
		}
		related[itemID] = append(related[itemID], rp)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for i := range records {
		records[i].Related = related[records[i].Item.ID]
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
