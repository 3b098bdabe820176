package http

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/geoagg/internal/core/domain"
)

func pointMap(p domain.Point) map[string]interface{} {
	m := map[string]interface{}{"x": p.X, "y": p.Y}
	if p.HasZ {
		m["z"] = p.Z
	}
	return m
}

func bboxMap(b domain.BoundingBox) interface{} {
	if !b.Defined {
		return nil
	}
	return map[string]interface{}{"min": pointMap(b.Min), "max": pointMap(b.Max)}
}

func summaryMap(s domain.Summary) map[string]interface{} {
	return map[string]interface{}{
		"id":            s.ID,
		"created_at":    s.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		"feature_count": s.FeatureCount,
		"cluster_count": s.ClusterCount,
		"input_count":   s.InputCount,
		"bbox":          bboxMap(s.BBox),
		"epsilon":       s.Params.Epsilon,
	}
}

func featureMap(f domain.Feature) map[string]interface{} {
	props, _ := json.Marshal(f.Properties)
	return map[string]interface{}{
		"id":            f.ID,
		"source":        f.Source,
		"geometry_type": string(f.Geometry.Type),
		"centroid":      pointMap(f.Geometry.Centroid()),
		"bbox":          bboxMap(f.Geometry.Bounds()),
		"properties":    string(props),
	}
}

// buildSchema creates the GraphQL schema wired to the aggregation service.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	pointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Point",
		Fields: graphql.Fields{
			"x": &graphql.Field{Type: graphql.Float},
			"y": &graphql.Field{Type: graphql.Float},
			"z": &graphql.Field{Type: graphql.Float},
		},
	})

	bboxType := graphql.NewObject(graphql.ObjectConfig{
		Name: "BoundingBox",
		Fields: graphql.Fields{
			"min": &graphql.Field{Type: pointType},
			"max": &graphql.Field{Type: pointType},
		},
	})

	summaryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Domain",
		Fields: graphql.Fields{
			"id":            &graphql.Field{Type: graphql.String},
			"created_at":    &graphql.Field{Type: graphql.String},
			"feature_count": &graphql.Field{Type: graphql.Int},
			"cluster_count": &graphql.Field{Type: graphql.Int},
			"input_count":   &graphql.Field{Type: graphql.Int},
			"bbox":          &graphql.Field{Type: bboxType},
			"epsilon":       &graphql.Field{Type: graphql.Float},
		},
	})

	featureType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Feature",
		Fields: graphql.Fields{
			"id":            &graphql.Field{Type: graphql.Float},
			"source":        &graphql.Field{Type: graphql.Int},
			"geometry_type": &graphql.Field{Type: graphql.String},
			"centroid":      &graphql.Field{Type: pointType},
			"bbox":          &graphql.Field{Type: bboxType},
			"properties":    &graphql.Field{Type: graphql.String, Description: "Properties as a JSON object"},
		},
	})

	groupType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Group",
		Fields: graphql.Fields{
			"key":      &graphql.Field{Type: graphql.String},
			"kind":     &graphql.Field{Type: graphql.String},
			"vertices": &graphql.Field{Type: graphql.NewList(pointType)},
			"bbox":     &graphql.Field{Type: bboxType},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"domains": &graphql.Field{
				Type:        graphql.NewList(summaryType),
				Description: "List stored domains, newest first",
				Args: graphql.FieldConfigArgument{
					"offset": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					items, _, err := deps.Aggregations.List(p.Context, p.Args["offset"].(int), p.Args["limit"].(int))
					if err != nil {
						return nil, err
					}
					out := make([]map[string]interface{}, len(items))
					for i, s := range items {
						out[i] = summaryMap(s)
					}
					return out, nil
				},
			},
			"domain": &graphql.Field{
				Type:        summaryType,
				Description: "Get a domain by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					s, err := deps.Aggregations.Summary(p.Context, p.Args["id"].(string))
					if err != nil {
						return nil, err
					}
					return summaryMap(*s), nil
				},
			},
			"features": &graphql.Field{
				Type:        graphql.NewList(featureType),
				Description: "Features of a domain, optionally limited to a bbox [minx, miny, maxx, maxy]",
				Args: graphql.FieldConfigArgument{
					"domain": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"bbox":   &graphql.ArgumentConfig{Type: graphql.NewList(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					var box *domain.BoundingBox
					if raw, ok := p.Args["bbox"].([]interface{}); ok && len(raw) == 4 {
						v := make([]float64, 4)
						for i, r := range raw {
							v[i], _ = r.(float64)
						}
						b := domain.BoxOf(domain.Pt(v[0], v[1]), domain.Pt(v[2], v[3]))
						box = &b
					}
					features, err := deps.Aggregations.Features(p.Context, p.Args["domain"].(string), box)
					if err != nil {
						return nil, err
					}
					out := make([]map[string]interface{}, len(features))
					for i, f := range features {
						out[i] = featureMap(f)
					}
					return out, nil
				},
			},
			"groups": &graphql.Field{
				Type:        graphql.NewList(groupType),
				Description: "Convex hull of every group in a domain",
				Args: graphql.FieldConfigArgument{
					"domain": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					groups, err := deps.Aggregations.Groups(p.Context, p.Args["domain"].(string))
					if err != nil {
						return nil, err
					}
					out := make([]map[string]interface{}, len(groups))
					for i, g := range groups {
						vs := make([]map[string]interface{}, len(g.Hull.Vertices))
						for j, v := range g.Hull.Vertices {
							vs[j] = pointMap(v)
						}
						out[i] = map[string]interface{}{
							"key":      g.Key,
							"kind":     string(g.Hull.Kind),
							"vertices": vs,
							"bbox":     bboxMap(g.BBox),
						}
					}
					return out, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
