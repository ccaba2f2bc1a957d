package router

import (
	"fmt"

	"github.com/pario-ai/sift/pkg/config"
)

// Route is one provider to try for a search.
type Route struct {
	Provider config.ProviderConfig
}

// Router resolves content types to ordered provider chains.
type Router struct {
	providers []config.ProviderConfig
	index     map[string]config.ProviderConfig
	routes    map[string][]string
}

// New creates a Router from the given configuration.
func New(cfg *config.Config) *Router {
	r := &Router{
		providers: cfg.Providers,
		index:     make(map[string]config.ProviderConfig, len(cfg.Providers)),
		routes:    make(map[string][]string, len(cfg.Router.Routes)),
	}
	for _, p := range cfg.Providers {
		r.index[p.Name] = p
	}
	for _, rc := range cfg.Router.Routes {
		r.routes[rc.ContentType] = rc.Providers
	}
	return r
}

// Resolve returns the providers to try, in order, for a content type.
// A configured route yields its known providers; anything else falls back to
// the first configured provider.
func (r *Router) Resolve(contentType string) ([]Route, error) {
	if len(r.providers) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}

	if names, ok := r.routes[contentType]; ok {
		var routes []Route
		for _, name := range names {
			p, ok := r.index[name]
			if !ok {
				continue
			}
			routes = append(routes, Route{Provider: p})
		}
		if len(routes) == 0 {
			return nil, fmt.Errorf("route %q: all providers unknown", contentType)
		}
		return routes, nil
	}

	return []Route{{Provider: r.providers[0]}}, nil
}
