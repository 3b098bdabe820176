package http

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/geoagg/internal/adapters/geojson"
	"github.com/samirrijal/geoagg/internal/core/domain"
	"github.com/samirrijal/geoagg/internal/core/pipeline"
	"github.com/samirrijal/geoagg/internal/pkg/geospatial"
)

// AggregationResponse is returned by synchronous runs.
type AggregationResponse struct {
	domain.Summary
	ExportURL string `json:"export_url,omitempty"`
}

// CreateAggregationHandler runs the pipeline on a JSON AggregationRequest.
// Params fields missing from the body keep their default value. With
// ?async=true the request is queued and 202 is returned.
func CreateAggregationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		defaults := deps.Aggregations.Defaults()
		req := domain.AggregationRequest{Params: &defaults}
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return errBadRequest(c, "invalid request body: "+err.Error())
		}
		if rid, ok := c.Locals("requestid").(string); ok && req.RequestID == "" {
			req.RequestID = rid
		}
		return runAggregation(c, deps, &req)
	}
}

// UploadAggregationHandler runs the pipeline on GeoJSON files sent as
// multipart form parts named "files". An optional "params" part holds JSON
// parameters; "crs" and "scale" apply to every uploaded collection.
func UploadAggregationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		form, err := c.MultipartForm()
		if err != nil {
			return errBadRequest(c, "multipart form expected")
		}
		files := form.File["files"]
		if len(files) == 0 {
			return errBadRequest(c, "at least one file is required")
		}

		req := domain.AggregationRequest{}
		if rid, ok := c.Locals("requestid").(string); ok {
			req.RequestID = rid
		}
		if raw := c.FormValue("params"); raw != "" {
			p := deps.Aggregations.Defaults()
			if err := json.Unmarshal([]byte(raw), &p); err != nil {
				return errBadRequest(c, "invalid params: "+err.Error())
			}
			req.Params = &p
		}
		scale := 0.0
		if raw := c.FormValue("scale"); raw != "" {
			if scale, err = strconv.ParseFloat(raw, 64); err != nil {
				return errBadRequest(c, "scale must be a number")
			}
		}

		for _, fh := range files {
			f, err := fh.Open()
			if err != nil {
				return errBadRequest(c, "read "+fh.Filename)
			}
			buf, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return errBadRequest(c, "read "+fh.Filename)
			}
			name := strings.TrimSuffix(fh.Filename, filepath.Ext(fh.Filename))
			col, err := geojson.Decode(buf, name, c.FormValue("crs"))
			if err != nil {
				return errFromDomain(c, fmt.Errorf("%w: %v", domain.ErrInvalidParameter, err))
			}
			col.Scale = scale
			req.Collections = append(req.Collections, col)
		}
		return runAggregation(c, deps, &req)
	}
}

func runAggregation(c *fiber.Ctx, deps *Dependencies, req *domain.AggregationRequest) error {
	if c.QueryBool("async", false) {
		id, err := deps.Aggregations.Submit(c.UserContext(), req)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"request_id": id})
	}

	d, err := deps.Aggregations.Aggregate(c.UserContext(), req)
	if err != nil {
		return errFromDomain(c, err)
	}
	c.Location("/v1/domains/" + d.ID)
	return c.Status(fiber.StatusCreated).JSON(AggregationResponse{
		Summary:   d.Summarize(),
		ExportURL: deps.Aggregations.ExportURL(d.ID),
	})
}

// ListDomainsHandler returns stored domains newest first.
func ListDomainsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		pg := parsePagination(c)
		items, total, err := deps.Aggregations.List(c.UserContext(), pg.Offset, pg.Limit)
		if err != nil {
			return errFromDomain(c, err)
		}
		pg.Total = total
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: items, Pagination: pg})
	}
}

// GetDomainHandler returns the summary of one domain.
func GetDomainHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := deps.Aggregations.Summary(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(AggregationResponse{Summary: *s, ExportURL: deps.Aggregations.ExportURL(s.ID)})
	}
}

// DomainFeaturesHandler returns domain features as GeoJSON. ?bbox=minx,miny,maxx,maxy
// keeps intersecting features only; ?within=true keeps fully contained ones.
// For geographic domains ?near=lon,lat&radius=meters is a shorthand for the
// box around that circle.
func DomainFeaturesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		box, err := parseBBox(c.Query("bbox"))
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		if box == nil && c.Query("near") != "" {
			if box, err = parseNear(c.Query("near"), c.QueryFloat("radius", 1000)); err != nil {
				return errBadRequest(c, err.Error())
			}
		}
		features, err := deps.Aggregations.Features(c.UserContext(), c.Params("id"), box)
		if err != nil {
			return errFromDomain(c, err)
		}
		if box != nil && c.QueryBool("within", false) {
			features = pipeline.PickByBoundingBox(features, *box, true)
		}

		enc := deps.Encoder
		if s := c.QueryFloat("simplify", 0); s > 0 {
			enc.Simplify = s
		}
		data, err := enc.Features(features).MarshalJSON()
		if err != nil {
			return errInternal(c, err.Error())
		}
		c.Set(fiber.HeaderContentType, enc.ContentType())
		return c.Send(data)
	}
}

// DomainGroupsHandler returns the group hulls of a domain. ?format=geojson
// returns a FeatureCollection of hull outlines.
func DomainGroupsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		groups, err := deps.Aggregations.Groups(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		if c.Query("format") != "geojson" {
			return c.JSON(groups)
		}
		data, err := deps.Encoder.Hulls(groups).MarshalJSON()
		if err != nil {
			return errInternal(c, err.Error())
		}
		c.Set(fiber.HeaderContentType, deps.Encoder.ContentType())
		return c.Send(data)
	}
}

// DomainHullsHandler serves the GeoJSON view of group hulls.
func DomainHullsHandler(deps *Dependencies) fiber.Handler {
	groups := DomainGroupsHandler(deps)
	return func(c *fiber.Ctx) error {
		c.Request().URI().QueryArgs().Set("format", "geojson")
		return groups(c)
	}
}

// DomainClustersHandler returns the clusters of a recent domain.
func DomainClustersHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		d, err := deps.Aggregations.Domain(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(fiber.Map{
			"clusters":      d.Clusters,
			"footprints":    d.Footprints,
			"feature_hulls": d.FeatureHulls,
			"extensions":    d.Extensions,
		})
	}
}

// GetParamsHandler returns the default run parameters.
func GetParamsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("Cache-Control", "no-cache")
		return c.JSON(deps.Aggregations.Defaults())
	}
}

// PutParamsHandler replaces the default run parameters. Fields missing from
// the body keep their current value.
func PutParamsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p := deps.Aggregations.Defaults()
		if err := json.Unmarshal(c.Body(), &p); err != nil {
			return errBadRequest(c, "invalid request body: "+err.Error())
		}
		if err := deps.Aggregations.UpdateParams(p); err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(p)
	}
}

func parseNear(raw string, radius float64) (*domain.BoundingBox, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return nil, fmt.Errorf("near must be lon,lat")
	}
	lon, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lat, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil || lat < -90 || lat > 90 {
		return nil, fmt.Errorf("near must be lon,lat in degrees")
	}
	if radius <= 0 {
		return nil, fmt.Errorf("radius must be positive")
	}
	box := geospatial.Around(domain.Pt(lon, lat), radius)
	return &box, nil
}

func parseBBox(raw string) (*domain.BoundingBox, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bbox must be minx,miny,maxx,maxy")
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("bbox value %q is not a number", p)
		}
		v[i] = f
	}
	if v[0] > v[2] || v[1] > v[3] {
		return nil, fmt.Errorf("bbox min must not exceed max")
	}
	box := domain.BoxOf(domain.Pt(v[0], v[1]), domain.Pt(v[2], v[3]))
	return &box, nil
}
