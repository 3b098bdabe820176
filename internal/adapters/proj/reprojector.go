// Package proj reprojects coordinates with the pure-Go proj4 port in
// github.com/ctessum/geom/proj.
package proj

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/ctessum/geom/proj"

	"github.com/samirrijal/geoagg/internal/core/domain"
)

// Well-known codes accepted in place of a proj4 definition.
var known = map[string]string{
	"EPSG:4326":  "+proj=longlat +datum=WGS84 +no_defs",
	"EPSG:3857":  "+proj=merc +a=6378137 +b=6378137 +lat_ts=0 +lon_0=0 +x_0=0 +y_0=0 +k=1 +units=m +no_defs",
	"EPSG:25830": "+proj=utm +zone=30 +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +units=m +no_defs",
	"EPSG:32630": "+proj=utm +zone=30 +datum=WGS84 +units=m +no_defs",
	"EPSG:2154":  "+proj=lcc +lat_1=49 +lat_2=44 +lat_0=46.5 +lon_0=3 +x_0=700000 +y_0=6600000 +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +units=m +no_defs",
}

type pair struct{ src, dst string }

// Reprojector converts points between reference systems and caches one
// transformer per (source, target) pair. It is safe for concurrent use.
type Reprojector struct {
	mu    sync.RWMutex
	cache map[pair]proj.Transformer
	defs  map[string]string
}

// New returns a Reprojector. extra adds or overrides code definitions.
func New(extra map[string]string) *Reprojector {
	defs := make(map[string]string, len(known)+len(extra))
	for k, v := range known {
		defs[k] = v
	}
	for k, v := range extra {
		defs[strings.ToUpper(k)] = v
	}
	return &Reprojector{cache: make(map[pair]proj.Transformer), defs: defs}
}

// Reproject converts p from sourceCRS to targetCRS. Z passes through.
func (r *Reprojector) Reproject(p domain.Point, sourceCRS, targetCRS string) (domain.Point, error) {
	t, err := r.transformer(sourceCRS, targetCRS)
	if err != nil {
		return domain.Point{}, err
	}
	x, y, err := t(p.X, p.Y)
	if err != nil {
		return domain.Point{}, fmt.Errorf("%w: %s -> %s at %v: %v", domain.ErrProjection, sourceCRS, targetCRS, p, err)
	}
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return domain.Point{}, fmt.Errorf("%w: %s -> %s at %v: non-finite result", domain.ErrProjection, sourceCRS, targetCRS, p)
	}
	out := p
	out.X, out.Y = x, y
	return out, nil
}

func (r *Reprojector) transformer(src, dst string) (proj.Transformer, error) {
	key := pair{src, dst}
	r.mu.RLock()
	t, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return t, nil
	}

	from, err := r.parse(src)
	if err != nil {
		return nil, err
	}
	to, err := r.parse(dst)
	if err != nil {
		return nil, err
	}
	t, err = from.NewTransform(to)
	if err != nil {
		return nil, fmt.Errorf("%w: %s -> %s: %v", domain.ErrProjection, src, dst, err)
	}

	r.mu.Lock()
	r.cache[key] = t
	r.mu.Unlock()
	return t, nil
}

func (r *Reprojector) parse(crs string) (*proj.SR, error) {
	def := crs
	if d, ok := r.defs[strings.ToUpper(strings.TrimSpace(crs))]; ok {
		def = d
	} else if !strings.HasPrefix(strings.TrimSpace(crs), "+") {
		return nil, fmt.Errorf("%w: unknown reference system %q", domain.ErrProjection, crs)
	}
	sr, err := proj.Parse(def)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %q: %v", domain.ErrProjection, crs, err)
	}
	return sr, nil
}
