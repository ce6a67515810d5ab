// Package graphapi exposes the GraphQL surface mirroring the REST
// operations, plus the subscription bridge feeding topic listeners.
package graphapi

import (
	"context"
	"net/http"

	"github.com/graphql-go/graphql"
	jsoniter "github.com/json-iterator/go"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/funkostack/funkostore/internal/domain"
	"github.com/funkostack/funkostore/internal/service"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FunkoService is the slice of the funko service the schema needs.
type FunkoService interface {
	Get(ctx context.Context, id int64) (*domain.Funko, error)
	List(ctx context.Context, filter service.FunkoFilter) ([]domain.Funko, int64, error)
	Latest(ctx context.Context, limit int) ([]domain.Funko, error)
	Create(ctx context.Context, in service.CreateFunkoInput) (*domain.Funko, error)
	Update(ctx context.Context, id int64, in service.UpdateFunkoInput) (*domain.Funko, error)
	Delete(ctx context.Context, id int64) error
}

// CategoryService is the slice of the category service the schema needs.
// Id and name lookups stay distinct fields.
type CategoryService interface {
	FindByID(ctx context.Context, id string) (*domain.Category, error)
	FindByName(ctx context.Context, name string) (*domain.Category, error)
	List(ctx context.Context) ([]domain.Category, error)
	Create(ctx context.Context, name string) (*domain.Category, error)
	Update(ctx context.Context, id, name string) (*domain.Category, error)
	Delete(ctx context.Context, id string) error
}

type Handler struct {
	schema graphql.Schema
}

func funkoFrom(src interface{}) *domain.Funko {
	switch v := src.(type) {
	case *domain.Funko:
		return v
	case domain.Funko:
		return &v
	}
	return nil
}

func categoryFrom(src interface{}) *domain.Category {
	switch v := src.(type) {
	case *domain.Category:
		return v
	case domain.Category:
		return &v
	}
	return nil
}

func New(funkos FunkoService, categories CategoryService) (*Handler, error) {
	categoryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Categoria",
		Fields: graphql.Fields{
			"id": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return categoryFrom(p.Source).ID, nil
				},
			},
			"name": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return categoryFrom(p.Source).Name, nil
				},
			},
		},
	})

	funkoType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Funko",
		Fields: graphql.Fields{
			"id": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Int),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return int(funkoFrom(p.Source).ID), nil
				},
			},
			"name": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return funkoFrom(p.Source).Name, nil
				},
			},
			"price": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Float),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return funkoFrom(p.Source).Price, nil
				},
			},
			"image": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return funkoFrom(p.Source).Image, nil
				},
			},
			"categoria": &graphql.Field{
				Type: categoryType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return funkoFrom(p.Source).Category, nil
				},
			},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"funko": &graphql.Field{
				Type: funkoType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return funkos.Get(p.Context, int64(p.Args["id"].(int)))
				},
			},
			"funkos": &graphql.Field{
				Type: graphql.NewList(funkoType),
				Args: graphql.FieldConfigArgument{
					"query":     &graphql.ArgumentConfig{Type: graphql.String},
					"categoria": &graphql.ArgumentConfig{Type: graphql.String},
					"page":      &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 1},
					"pageSize":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					filter := service.FunkoFilter{
						Page:     p.Args["page"].(int),
						PageSize: p.Args["pageSize"].(int),
					}
					if q, ok := p.Args["query"].(string); ok {
						filter.Query = q
					}
					if cat, ok := p.Args["categoria"].(string); ok {
						filter.Category = cat
					}
					rows, _, err := funkos.List(p.Context, filter)
					return rows, err
				},
			},
			"ultimosFunkos": &graphql.Field{
				Type: graphql.NewList(funkoType),
				Args: graphql.FieldConfigArgument{
					"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 10},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return funkos.Latest(p.Context, p.Args["limit"].(int))
				},
			},
			"categoriaById": &graphql.Field{
				Type: categoryType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return categories.FindByID(p.Context, p.Args["id"].(string))
				},
			},
			"categoriaByNombre": &graphql.Field{
				Type: categoryType,
				Args: graphql.FieldConfigArgument{
					"nombre": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return categories.FindByName(p.Context, p.Args["nombre"].(string))
				},
			},
			"categorias": &graphql.Field{
				Type: graphql.NewList(categoryType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return categories.List(p.Context)
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"crearFunko": &graphql.Field{
				Type: funkoType,
				Args: graphql.FieldConfigArgument{
					"name":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"price":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"categoria": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if err := requireAdmin(p.Context); err != nil {
						return nil, err
					}
					return funkos.Create(p.Context, service.CreateFunkoInput{
						Name:     p.Args["name"].(string),
						Price:    p.Args["price"].(float64),
						Category: p.Args["categoria"].(string),
					})
				},
			},
			"actualizarFunko": &graphql.Field{
				Type: funkoType,
				Args: graphql.FieldConfigArgument{
					"id":        &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"name":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"price":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"categoria": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if err := requireAdmin(p.Context); err != nil {
						return nil, err
					}
					return funkos.Update(p.Context, int64(p.Args["id"].(int)), service.UpdateFunkoInput{
						Name:     p.Args["name"].(string),
						Price:    p.Args["price"].(float64),
						Category: p.Args["categoria"].(string),
					})
				},
			},
			"eliminarFunko": &graphql.Field{
				Type: graphql.Boolean,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if err := requireAdmin(p.Context); err != nil {
						return nil, err
					}
					if err := funkos.Delete(p.Context, int64(p.Args["id"].(int))); err != nil {
						return false, err
					}
					return true, nil
				},
			},
			"crearCategoria": &graphql.Field{
				Type: categoryType,
				Args: graphql.FieldConfigArgument{
					"name": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if err := requireAdmin(p.Context); err != nil {
						return nil, err
					}
					return categories.Create(p.Context, p.Args["name"].(string))
				},
			},
			"actualizarCategoria": &graphql.Field{
				Type: categoryType,
				Args: graphql.FieldConfigArgument{
					"id":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"name": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if err := requireAdmin(p.Context); err != nil {
						return nil, err
					}
					return categories.Update(p.Context, p.Args["id"].(string), p.Args["name"].(string))
				},
			},
			"eliminarCategoria": &graphql.Field{
				Type: graphql.Boolean,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if err := requireAdmin(p.Context); err != nil {
						return nil, err
					}
					if err := categories.Delete(p.Context, p.Args["id"].(string)); err != nil {
						return false, err
					}
					return true, nil
				},
			},
		},
	})

	schema, err := graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
	if err != nil {
		return nil, errors.Wrap(err, "build graphql schema")
	}
	return &Handler{schema: schema}, nil
}

type gqlRequest struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

// Handle serves POST /graphql. Resolver errors ride in the standard
// GraphQL errors array with a 200 status.
func (h *Handler) Handle(c echo.Context) error {
	var req gqlRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid graphql request")
	}

	result := graphql.Do(graphql.Params{
		Schema:         h.schema,
		RequestString:  req.Query,
		OperationName:  req.OperationName,
		VariableValues: req.Variables,
		Context:        c.Request().Context(),
	})
	return c.JSON(http.StatusOK, result)
}

// Execute runs a query directly, used by tests.
func (h *Handler) Execute(ctx context.Context, query string, variables map[string]interface{}) *graphql.Result {
	return graphql.Do(graphql.Params{
		Schema:         h.schema,
		RequestString:  query,
		VariableValues: variables,
		Context:        ctx,
	})
}
