package graph

import (
	"context"
	"testing"

	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/require"

	"github.com/feedgate/feedgate/internal/feed"
	"github.com/feedgate/feedgate/internal/shared"
)

type stubReader struct {
	records []feed.ProductRecord
}

func (s *stubReader) GetProduct(ctx context.Context, id int64) (feed.ProductRecord, error) {
	for _, rec := range s.records {
		if rec.Product.ID == id {
			return rec, nil
		}
	}
	return feed.ProductRecord{}, shared.ErrNotFound
}

func (s *stubReader) AllProducts(ctx context.Context) ([]feed.ProductRecord, error) {
	return s.records, nil
}

func testReader() *stubReader {
	feedID := int64(9)
	return &stubReader{records: []feed.ProductRecord{
		{
			Product: feed.Product{ID: 1, FeedID: &feedID, Amount: 3, LotNumber: "L-1"},
			Item:    feed.Item{ID: 11, Code: "7"},
			Related: []feed.RelatedProduct{{ID: 21, GTIN: "99", TradeItemUnitDescriptor: "CASE"}},
		},
		{
			Product: feed.Product{ID: 2, Amount: 1},
			Item:    feed.Item{ID: 12, Code: "8"},
		},
	}}
}

func execute(t *testing.T, reader ProductReader, query string) map[string]interface{} {
	t.Helper()
	schema, err := NewSchema(reader)
	require.NoError(t, err)
	result := graphql.Do(graphql.Params{
		Schema:        schema,
		RequestString: query,
		Context:       context.Background(),
	})
	require.Empty(t, result.Errors)
	return result.Data.(map[string]interface{})
}

func TestQueryProductByID(t *testing.T) {
	data := execute(t, testReader(), `{
		product(id: 1) {
			id
			productFeed
			amount
			lotNumber
			itemCode
			relatedProducts { gtin tradeItemUnitDescriptor }
		}
	}`)

	product := data["product"].(map[string]interface{})
	require.Equal(t, 1, product["id"])
	require.Equal(t, 9, product["productFeed"])
	require.Equal(t, 3, product["amount"])
	require.Equal(t, "L-1", product["lotNumber"])
	require.Equal(t, "7", product["itemCode"])

	related := product["relatedProducts"].([]interface{})
	require.Len(t, related, 1)
	first := related[0].(map[string]interface{})
	require.Equal(t, "99", first["gtin"])
	require.Equal(t, "CASE", first["tradeItemUnitDescriptor"])
}

func TestQueryProductWithoutFeed(t *testing.T) {
	data := execute(t, testReader(), `{ product(id: 2) { id productFeed } }`)
	product := data["product"].(map[string]interface{})
	require.Equal(t, 2, product["id"])
	require.Nil(t, product["productFeed"])
}

func TestQueryAllProducts(t *testing.T) {
	data := execute(t, testReader(), `{ products { id itemCode } }`)
	products := data["products"].([]interface{})
	require.Len(t, products, 2)
}

func TestQueryProductNotFound(t *testing.T) {
	schema, err := NewSchema(testReader())
	require.NoError(t, err)
	result := graphql.Do(graphql.Params{
		Schema:        schema,
		RequestString: `{ product(id: 999) { id } }`,
		Context:       context.Background(),
	})
	require.NotEmpty(t, result.Errors)
}

func TestQueryRequiresID(t *testing.T) {
	schema, err := NewSchema(testReader())
	require.NoError(t, err)
	result := graphql.Do(graphql.Params{
		Schema:        schema,
		RequestString: `{ product { id } }`,
	})
	require.NotEmpty(t, result.Errors)
}
