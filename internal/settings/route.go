// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package settings

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// Dashboard sources the host can route to.
const (
	RouteFile          = "file"
	RouteDB            = "db"
	RouteElasticsearch = "elasticsearch"
	RouteScript        = "script"
	RouteTemp          = "temp"
)

var routeKinds = []string{RouteFile, RouteDB, RouteElasticsearch, RouteScript, RouteTemp}

const routePrefix = "/dashboard/"

// Route is a parsed default_route.
type Route struct {
	Kind  string
	Name  string
	Query url.Values
}

// ParseRoute parses "/dashboard/<kind>/<name>[?query]".
func ParseRoute(raw string) (Route, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Route{}, fmt.Errorf("invalid route %q: %w", raw, err)
	}
	if u.Scheme != "" || u.Host != "" || u.Fragment != "" {
		return Route{}, fmt.Errorf("route %q must be a bare path", raw)
	}
	if !strings.HasPrefix(u.Path, routePrefix) {
		return Route{}, fmt.Errorf("route %q must start with %s", raw, routePrefix)
	}

	kind, name, ok := strings.Cut(strings.TrimPrefix(u.Path, routePrefix), "/")
	if !ok || name == "" {
		return Route{}, fmt.Errorf("route %q must name a dashboard", raw)
	}
	if !slices.Contains(routeKinds, kind) {
		return Route{}, fmt.Errorf("route %q: unknown dashboard source %q (known: %v)", raw, kind, routeKinds)
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return Route{}, fmt.Errorf("route %q has an invalid path segment", raw)
		}
	}

	switch kind {
	case RouteFile:
		if !strings.HasSuffix(name, ".json") {
			return Route{}, fmt.Errorf("route %q: file dashboards must end in .json", raw)
		}
	case RouteScript:
		if !strings.HasSuffix(name, ".js") {
			return Route{}, fmt.Errorf("route %q: scripted dashboards must end in .js", raw)
		}
	}

	return Route{Kind: kind, Name: name, Query: u.Query()}, nil
}
