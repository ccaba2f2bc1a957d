package router

import (
	"testing"

	"github.com/pario-ai/sift/pkg/config"
)

func TestResolveNoRoutes(t *testing.T) {
	cfg := &config.Config{
		Providers: []config.ProviderConfig{
			{Name: "web", URL: "https://search.example.com", APIKey: "k1"},
		},
	}
	r := New(cfg)
	routes, err := r.Resolve("web")
	if err != nil {
		t.Fatal(err)
	}
	if len(routes) != 1 {
		t.Fatalf("expected 1 route, got %d", len(routes))
	}
	if routes[0].Provider.Name != "web" {
		t.Errorf("unexpected route: %+v", routes[0])
	}
}

func TestResolveEmptyContentTypeUsesDefault(t *testing.T) {
	cfg := &config.Config{
		Providers: []config.ProviderConfig{
			{Name: "web", URL: "https://search.example.com"},
			{Name: "news", URL: "https://news.example.com"},
		},
	}
	routes, err := New(cfg).Resolve("")
	if err != nil {
		t.Fatal(err)
	}
	if routes[0].Provider.Name != "web" {
		t.Errorf("expected first provider, got %s", routes[0].Provider.Name)
	}
}

func TestResolveWithRoute(t *testing.T) {
	cfg := &config.Config{
		Providers: []config.ProviderConfig{
			{Name: "web", URL: "https://search.example.com"},
			{Name: "news", URL: "https://news.example.com"},
		},
		Router: config.RouterConfig{
			Routes: []config.RouteConfig{
				{ContentType: "news", Providers: []string{"news", "web"}},
			},
		},
	}
	routes, err := New(cfg).Resolve("news")
	if err != nil {
		t.Fatal(err)
	}
	if len(routes) != 2 {
		t.Fatalf("expected 2 routes, got %d", len(routes))
	}
	if routes[0].Provider.Name != "news" || routes[1].Provider.Name != "web" {
		t.Errorf("unexpected order: %+v", routes)
	}
}

func TestResolveSkipsUnknownProvider(t *testing.T) {
	cfg := &config.Config{
		Providers: []config.ProviderConfig{
			{Name: "web", URL: "https://search.example.com"},
		},
		Router: config.RouterConfig{
			Routes: []config.RouteConfig{
				{ContentType: "images", Providers: []string{"unknown", "web"}},
			},
		},
	}
	routes, err := New(cfg).Resolve("images")
	if err != nil {
		t.Fatal(err)
	}
	if len(routes) != 1 || routes[0].Provider.Name != "web" {
		t.Errorf("unexpected routes: %+v", routes)
	}
}

func TestResolveAllUnknownProviders(t *testing.T) {
	cfg := &config.Config{
		Providers: []config.ProviderConfig{{Name: "web", URL: "https://search.example.com"}},
		Router: config.RouterConfig{
			Routes: []config.RouteConfig{{ContentType: "videos", Providers: []string{"unknown"}}},
		},
	}
	if _, err := New(cfg).Resolve("videos"); err == nil {
		t.Fatal("expected error for all unknown providers")
	}
}

func TestResolveNoProviders(t *testing.T) {
	if _, err := New(&config.Config{}).Resolve("web"); err == nil {
		t.Fatal("expected error for no providers")
	}
}
