package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/feedgate/feedgate/internal/shared"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// SessionStore claims feed session ids so a session is ingested at most
// once. shared.SessionRegistry implements it.
type SessionStore interface {
	Register(ctx context.Context, sessionID string) error
	Release(ctx context.Context, sessionID string) error
}

// Service implements the import engine and the read access layer.
type Service struct {
	storage  Storage
	sessions SessionStore
	cache    *Cache
	logger   *slog.Logger
	validate *validator.Validate
	group    singleflight.Group
}

// NewService constructs the feed service. Sessions and cache may be nil; the
// corresponding behaviors degrade to no-ops.
func NewService(storage Storage, sessions SessionStore, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		storage:  storage,
		sessions: sessions,
		cache:    cache,
		logger:   logger,
		validate: newValidator(),
	}
}

// ImportResult is the outcome of a whole-feed import.
type ImportResult struct {
	Feed     Feed
	Products []ProductRecord
}

// ProductPage is one page of the product listing.
type ProductPage struct {
	Pagination shared.Pagination
	Results    []ProductRecord
}

// CreateProduct validates and persists a single product together with its
// item and related products. No feed is bound.
func (s *Service) CreateProduct(ctx context.Context, payload ProductPayload) (ProductRecord, error) {
	verrs := NewValidationError()
	collectFieldErrors(s.validate, payload, verrs)
	in := buildProductInput(payload, "", verrs)
	if !verrs.Empty() {
		return ProductRecord{}, verrs
	}

	var rec ProductRecord
	err := s.storage.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		rec, err = s.writeProduct(ctx, tx, nil, in)
		return err
	})
	if err != nil {
		return ProductRecord{}, err
	}
	s.bumpCache(ctx)
	return rec, nil
}

// ImportFeed validates the whole payload, claims the session id and ingests
// every product record in input order inside one transaction. A failed
// validation writes nothing and reports errors keyed by record path.
func (s *Service) ImportFeed(ctx context.Context, payload FeedPayload) (ImportResult, error) {
	verrs := NewValidationError()
	collectFieldErrors(s.validate, payload, verrs)
	in := buildFeedInput(payload, verrs)
	if !verrs.Empty() {
		return ImportResult{}, verrs
	}

	if s.sessions != nil {
		if err := s.sessions.Register(ctx, in.SessionID); err != nil {
			return ImportResult{}, err
		}
	}

	traceID := uuid.NewString()
	logger := s.logger.With(
		slog.String("import_id", traceID),
		slog.String("session_id", in.SessionID),
		slog.Int("records", len(in.Products)),
	)
	start := time.Now()

	var result ImportResult
	err := s.storage.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		feedRow, err := tx.InsertFeed(ctx, Feed{
			SupplierID:       in.SupplierID,
			UserID:           in.UserID,
			SessionID:        in.SessionID,
			SessionStartTime: in.SessionStartTime,
			SessionEndTime:   in.SessionEndTime,
		})
		if err != nil {
			return fmt.Errorf("insert feed: %w", err)
		}
		result.Feed = feedRow

		for idx, pin := range in.Products {
			rec, err := s.writeProduct(ctx, tx, &feedRow.ID, pin)
			if err != nil {
				return fmt.Errorf("record %d: %w", idx, err)
			}
			result.Products = append(result.Products, rec)
		}
		return nil
	})
	if err != nil {
		if s.sessions != nil {
			// The request context is often already cancelled when the import
			// failed; the claim must still be released or it leaks until the
			// cleanup job runs.
			releaseCtx := context.WithoutCancel(ctx)
			if relErr := s.sessions.Release(releaseCtx, in.SessionID); relErr != nil {
				logger.Warn("release session claim", slog.Any("error", relErr))
			}
		}
		logger.Error("feed import failed", slog.Any("error", err))
		return ImportResult{}, err
	}

	s.bumpCache(ctx)
	logger.Info("feed imported",
		slog.Int64("feed_id", result.Feed.ID),
		slog.Duration("duration", time.Since(start)),
	)
	return result, nil
}

// writeProduct resolves the item, inserts the product row and attaches
// related products, all on the supplied transaction.
func (s *Service) writeProduct(ctx context.Context, tx TxRepository, feedID *int64, in ProductInput) (ProductRecord, error) {
	item, err := s.upsertItem(ctx, tx, in.Item)
	if err != nil {
		return ProductRecord{}, err
	}

	product, err := tx.InsertProduct(ctx, Product{
		FeedID:                     feedID,
		ItemID:                     item.ID,
		Amount:                     in.Amount,
		BBD:                        in.BBD,
		Comment:                    in.Comment,
		CountryOfDisassembly:       in.CountryOfDisassembly,
		CountryOfRearing:           in.CountryOfRearing,
		CountryOfSlaughter:         in.CountryOfSlaughter,
		SlaughterhouseRegistration: in.SlaughterhouseRegistration,
		LotNumber:                  in.LotNumber,
		CuttingPlantRegistration:   in.CuttingPlantRegistration,
	})
	if err != nil {
		return ProductRecord{}, fmt.Errorf("insert product: %w", err)
	}

	related, err := s.attachRelated(ctx, tx, item, in.Item.Related)
	if err != nil {
		return ProductRecord{}, err
	}
	return ProductRecord{Product: product, Item: item, Related: related}, nil
}

// upsertItem resolves an item by its (code, type) natural key under a
// per-key advisory lock: found items get only their present-and-truthy
// incoming fields overwritten, missing ones are created with exactly the
// supplied fields. The unique index backstops the lock; a violation maps to
// ErrItemConflict.
func (s *Service) upsertItem(ctx context.Context, tx TxRepository, in ItemInput) (Item, error) {
	if err := tx.LockItemKey(ctx, in.Code, in.Type); err != nil {
		return Item{}, fmt.Errorf("lock item key: %w", err)
	}

	existing, err := tx.FindItemByKey(ctx, in.Code, in.Type)
	switch {
	case err == nil:
		merged := mergeItem(existing, in)
		if err := tx.UpdateItem(ctx, merged); err != nil {
			return Item{}, fmt.Errorf("update item: %w", err)
		}
		return merged, nil
	case errors.Is(err, shared.ErrNotFound):
		created, err := tx.InsertItem(ctx, itemFromInput(in))
		if err != nil {
			return Item{}, fmt.Errorf("insert item: %w", err)
		}
		return created, nil
	default:
		return Item{}, fmt.Errorf("find item: %w", err)
	}
}

// attachRelated links related products to the item, skipping gtins already
// linked to it. Dedup scope is the single item; the same gtin may exist on
// other items.
func (s *Service) attachRelated(ctx context.Context, tx TxRepository, item Item, related []RelatedInput) ([]RelatedProduct, error) {
	if len(related) == 0 {
		return nil, nil
	}
	linked, err := tx.LinkedGTINs(ctx, item.ID)
	if err != nil {
		return nil, fmt.Errorf("list linked gtins: %w", err)
	}
	var attached []RelatedProduct
	for _, rin := range related {
		if rin.GTIN == "" || linked[rin.GTIN] {
			continue
		}
		rp, err := tx.AttachRelated(ctx, item.ID, RelatedProduct{
			GTIN:                    rin.GTIN,
			TradeItemUnitDescriptor: rin.TradeItemUnitDescriptor,
		})
		if err != nil {
			return nil, fmt.Errorf("attach related %s: %w", rin.GTIN, err)
		}
		linked[rin.GTIN] = true
		attached = append(attached, rp)
	}
	return attached, nil
}

// ListProducts serves one page of products, optionally filtered by item
// code. Pages beyond the available range fail with shared.ErrNotFound; an
// empty first page is served normally.
func (s *Service) ListProducts(ctx context.Context, itemCode string, page, perPage int) (ProductPage, error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = defaultPageSize
	}
	if perPage > maxPageSize {
		perPage = maxPageSize
	}

	key, err := s.cache.BuildKey(ctx, "feed", "products", itemCode, strconv.Itoa(page), strconv.Itoa(perPage))
	if err != nil {
		s.logger.Warn("cache key", slog.Any("error", err))
		return s.loadPage(ctx, itemCode, page, perPage)
	}

	result, err, _ := s.group.Do(key, func() (interface{}, error) {
		var cached ProductPage
		err := s.cache.FetchJSON(ctx, key, &cached, func(ctx context.Context) (interface{}, error) {
			return s.loadPage(ctx, itemCode, page, perPage)
		})
		if err != nil {
			return ProductPage{}, err
		}
		return cached, nil
	})
	if err != nil {
		return ProductPage{}, err
	}
	return result.(ProductPage), nil
}

func (s *Service) loadPage(ctx context.Context, itemCode string, page, perPage int) (ProductPage, error) {
	// Page bounds depend on the total, so count first via a probe with the
	// final pagination metadata.
	pagination := shared.NewPagination(page, perPage, 0)
	records, total, err := s.storage.ListProducts(ctx, ListFilter{
		ItemCode: itemCode,
		Limit:    pagination.PerPage,
		Offset:   pagination.Offset(),
	})
	if err != nil {
		return ProductPage{}, err
	}
	pagination = shared.NewPagination(page, perPage, total)
	if !pagination.InRange() {
		return ProductPage{}, shared.ErrPageOutOfRange
	}
	if records == nil {
		records = []ProductRecord{}
	}
	return ProductPage{Pagination: pagination, Results: records}, nil
}

// GetProduct loads one product by id.
func (s *Service) GetProduct(ctx context.Context, id int64) (ProductRecord, error) {
	return s.storage.GetProduct(ctx, id)
}

// AllProducts returns every product in creation order, for the GraphQL read
// path.
func (s *Service) AllProducts(ctx context.Context) ([]ProductRecord, error) {
	records, _, err := s.storage.ListProducts(ctx, ListFilter{})
	return records, err
}

func (s *Service) bumpCache(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("cache bump", slog.Any("error", err))
	}
}
