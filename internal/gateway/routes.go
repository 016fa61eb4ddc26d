// Package gateway is the static reverse proxy in front of the domain services.
package gateway

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/config"
)

// Route forwards every path under Prefix to Upstream.
type Route struct {
	Name     string
	Prefix   string
	Upstream *url.URL
	// KeepPrefix forwards the full path instead of the part after Prefix.
	KeepPrefix bool
	// UpstreamPrefix is prepended to the stripped path.
	UpstreamPrefix string
	Timeout        time.Duration
}

type routeDef struct {
	service        string
	prefix         string
	keepPrefix     bool
	upstreamPrefix string
	timeout        func(config.Gateway) time.Duration
}

var routeDefs = []routeDef{
	{service: "auth", prefix: "/api/auth"},
	{service: "team", prefix: "/api/team", keepPrefix: true},
	{service: "tasks", prefix: "/api/tasks"},
	{service: "ships", prefix: "/api/ships"},
	{service: "machinery", prefix: "/api/machinery"},
	{service: "ports", prefix: "/api/ports"},
	{service: "voyages", prefix: "/api/voyages"},
	{service: "tanks", prefix: "/api/tanks"},
	{service: "bunkering", prefix: "/api/bunkering"},
	{service: "reporting", prefix: "/api/reporting"},
	{service: "excel", prefix: "/api/excel", timeout: func(g config.Gateway) time.Duration { return g.ExcelTimeout }},
	{service: "additives", prefix: "/api/additives"},
	{service: "excel", prefix: "/office-addin", upstreamPrefix: "/office-addin", timeout: func(config.Gateway) time.Duration { return 30 * time.Second }},
}

// Upload directories served by the services as static files under /uploads.
var uploadDirs = []string{
	"voyage_attachments", "bunker_attachments", "task_attachments",
	"member_images", "vessel_images", "fleet_logos", "user_images",
}

type RouteTable struct {
	routes []Route
}

// NewRouteTable builds the table from the configured upstreams. Routes
// without an upstream URL are skipped with a warning.
func NewRouteTable(cfg config.Gateway, logger *zap.Logger) (*RouteTable, error) {
	t := &RouteTable{}
	for _, d := range routeDefs {
		raw := cfg.Upstreams[d.service]
		if raw == "" {
			logger.Warn("gateway route skipped: no upstream configured", zap.String("prefix", d.prefix), zap.String("service", d.service))
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid upstream url for %s: %q", d.service, raw)
		}
		timeout := cfg.DefaultTimeout
		if d.timeout != nil {
			timeout = d.timeout(cfg)
		}
		t.routes = append(t.routes, Route{
			Name:           strings.TrimPrefix(strings.ReplaceAll(d.prefix, "/api/", ""), "/"),
			Prefix:         d.prefix,
			Upstream:       u,
			KeepPrefix:     d.keepPrefix,
			UpstreamPrefix: d.upstreamPrefix,
			Timeout:        timeout,
		})
		logger.Info("gateway route", zap.String("prefix", d.prefix), zap.String("upstream", u.String()), zap.Duration("timeout", timeout))
	}
	sort.SliceStable(t.routes, func(i, j int) bool { return len(t.routes[i].Prefix) > len(t.routes[j].Prefix) })
	return t, nil
}

func (t *RouteTable) Routes() []Route { return t.routes }

// Match returns the route with the longest prefix ending at a path segment boundary.
func (t *RouteTable) Match(path string) (Route, bool) {
	for _, r := range t.routes {
		if path == r.Prefix || strings.HasPrefix(path, r.Prefix+"/") {
			return r, true
		}
	}
	return Route{}, false
}

// UpstreamPath maps an incoming path to the path requested upstream.
func (r Route) UpstreamPath(path string) string {
	p := path
	if !r.KeepPrefix {
		p = strings.TrimPrefix(path, r.Prefix)
	}
	p = r.UpstreamPrefix + p
	for _, dir := range uploadDirs {
		if i := strings.Index(p, "/uploads/"+dir+"/"); i > 0 {
			p = p[i:]
			break
		}
	}
	if p == "" {
		return "/"
	}
	return p
}
