package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/geoagg/internal/adapters/nats"
	"github.com/samirrijal/geoagg/internal/core/domain"
	"github.com/samirrijal/geoagg/internal/pkg/metrics"
)

// wsRequest changes what a connection receives.
//
//	{"action":"watch","bbox":"minx,miny,maxx,maxy","min_features":10}
//	{"action":"clear"}
type wsRequest struct {
	Action      string `json:"action"`
	BBox        string `json:"bbox,omitempty"`
	MinFeatures int    `json:"min_features,omitempty"`
}

// wsEvent is relayed for every completed domain that passes the filter.
type wsEvent struct {
	Type   string          `json:"type"`
	Domain *domain.Summary `json:"domain"`
}

// domainFilter selects completed domains by area and size. The zero value
// passes everything.
type domainFilter struct {
	area        *domain.BoundingBox
	minFeatures int
}

func (f domainFilter) match(s *domain.Summary) bool {
	if s.FeatureCount < f.minFeatures {
		return false
	}
	return f.area == nil || s.BBox.Intersects(*f.area)
}

// WebSocketHandler relays completed-domain summaries from NATS to the
// client as JSON. Every connection starts unfiltered.
func WebSocketHandler(nc *nats.Conn) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		remote := c.RemoteAddr().String()
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		var (
			writeMu  sync.Mutex
			filterMu sync.RWMutex
			filter   domainFilter
		)
		write := func(messageType int, data []byte) error {
			writeMu.Lock()
			defer writeMu.Unlock()
			return c.WriteMessage(messageType, data)
		}
		writeJSON := func(v any) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			return write(websocket.TextMessage, data)
		}

		if nc == nil {
			_ = writeJSON(map[string]string{"error": "event stream unavailable"})
			return
		}

		sub, err := nc.Subscribe(natsadapter.SubjectDomainCompleted, func(msg *nats.Msg) {
			s, err := natsadapter.DecodeSummary(msg.Data)
			if err != nil {
				slog.Warn("ws relay decode failed", "subject", msg.Subject, "error", err)
				return
			}
			filterMu.RLock()
			ok := filter.match(s)
			filterMu.RUnlock()
			if ok {
				_ = writeJSON(wsEvent{Type: "domain.completed", Domain: s})
			}
		})
		if err != nil {
			slog.Error("ws subscribe failed", "error", err)
			return
		}
		defer sub.Unsubscribe()
		slog.Debug("ws client connected", "remote", remote)

		done := make(chan struct{})
		defer close(done)
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if err := write(websocket.PingMessage, nil); err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				break
			}

			var req wsRequest
			if err := json.Unmarshal(raw, &req); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			switch req.Action {
			case "watch":
				area, err := parseBBox(req.BBox)
				if err != nil {
					_ = writeJSON(map[string]string{"error": err.Error()})
					continue
				}
				filterMu.Lock()
				filter = domainFilter{area: area, minFeatures: req.MinFeatures}
				filterMu.Unlock()
				_ = writeJSON(map[string]string{"status": "watching"})

			case "clear":
				filterMu.Lock()
				filter = domainFilter{}
				filterMu.Unlock()
				_ = writeJSON(map[string]string{"status": "cleared"})

			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + req.Action})
			}
		}
		slog.Debug("ws client disconnected", "remote", remote)
	}
}
