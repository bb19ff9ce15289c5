// Package graph exposes the read-only GraphQL view of the product store.
package graph

import (
	"context"
	"errors"
	"net/http"

	"github.com/graphql-go/graphql"
	gqlhandler "github.com/graphql-go/handler"

	"github.com/feedgate/feedgate/internal/feed"
)

// ProductReader is the read contract the schema resolves against.
type ProductReader interface {
	GetProduct(ctx context.Context, id int64) (feed.ProductRecord, error)
	AllProducts(ctx context.Context) ([]feed.ProductRecord, error)
}

var relatedProductType = graphql.NewObject(graphql.ObjectConfig{
	Name: "RelatedProduct",
	Fields: graphql.Fields{
		"id": &graphql.Field{
			Type: graphql.Int,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return p.Source.(feed.RelatedProduct).ID, nil
			},
		},
		"gtin": &graphql.Field{
			Type: graphql.String,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return p.Source.(feed.RelatedProduct).GTIN, nil
			},
		},
		"tradeItemUnitDescriptor": &graphql.Field{
			Type: graphql.String,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return p.Source.(feed.RelatedProduct).TradeItemUnitDescriptor, nil
			},
		},
	},
})

func productField(resolve func(feed.ProductRecord) (interface{}, error), typ graphql.Output) *graphql.Field {
	return &graphql.Field{
		Type: typ,
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			rec, ok := p.Source.(feed.ProductRecord)
			if !ok {
				return nil, errors.New("unexpected source type")
			}
			return resolve(rec)
		},
	}
}

var productType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Product",
	Fields: graphql.Fields{
		"id": productField(func(rec feed.ProductRecord) (interface{}, error) {
			return rec.Product.ID, nil
		}, graphql.Int),
		"productFeed": productField(func(rec feed.ProductRecord) (interface{}, error) {
			if rec.Product.FeedID == nil {
				return nil, nil
			}
			return *rec.Product.FeedID, nil
		}, graphql.Int),
		"amount": productField(func(rec feed.ProductRecord) (interface{}, error) {
			return rec.Product.Amount, nil
		}, graphql.Int),
		"bbd": productField(func(rec feed.ProductRecord) (interface{}, error) {
			if rec.Product.BBD == nil {
				return nil, nil
			}
			return *rec.Product.BBD, nil
		}, graphql.DateTime),
		"comment": productField(func(rec feed.ProductRecord) (interface{}, error) {
			return rec.Product.Comment, nil
		}, graphql.String),
		"countryOfDisassembly": productField(func(rec feed.ProductRecord) (interface{}, error) {
			return rec.Product.CountryOfDisassembly, nil
		}, graphql.String),
		"countryOfRearing": productField(func(rec feed.ProductRecord) (interface{}, error) {
			return rec.Product.CountryOfRearing, nil
		}, graphql.String),
		"countryOfSlaughter": productField(func(rec feed.ProductRecord) (interface{}, error) {
			return rec.Product.CountryOfSlaughter, nil
		}, graphql.String),
		"slaughterhouseRegistration": productField(func(rec feed.ProductRecord) (interface{}, error) {
			return rec.Product.SlaughterhouseRegistration, nil
		}, graphql.String),
		"lotNumber": productField(func(rec feed.ProductRecord) (interface{}, error) {
			return rec.Product.LotNumber, nil
		}, graphql.String),
		"cuttingPlantRegistration": productField(func(rec feed.ProductRecord) (interface{}, error) {
			return rec.Product.CuttingPlantRegistration, nil
		}, graphql.String),
		"itemCode": productField(func(rec feed.ProductRecord) (interface{}, error) {
			return rec.Item.Code, nil
		}, graphql.String),
		"relatedProducts": productField(func(rec feed.ProductRecord) (interface{}, error) {
			return rec.Related, nil
		}, graphql.NewList(relatedProductType)),
	},
})

// NewSchema builds the read-only query schema.
func NewSchema(reader ProductReader) (graphql.Schema, error) {
	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"product": &graphql.Field{
				Type: productType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id, ok := p.Args["id"].(int)
					if !ok {
						return nil, errors.New("id must be an integer")
					}
					return reader.GetProduct(p.Context, int64(id))
				},
			},
			"products": &graphql.Field{
				Type: graphql.NewList(productType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return reader.AllProducts(p.Context)
				},
			},
		},
	})
	return graphql.NewSchema(graphql.SchemaConfig{Query: query})
}

// NewHandler serves the schema over HTTP with GraphiQL enabled.
func NewHandler(schema graphql.Schema) http.Handler {
	return gqlhandler.New(&gqlhandler.Config{
		Schema:   &schema,
		Pretty:   true,
		GraphiQL: true,
	})
}
