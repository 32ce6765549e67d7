package route

import (
	"sort"
	"sync"

	"github.com/chirino/chat-history/internal/history"
	"github.com/gin-gonic/gin"
)

// RouterLoader mounts routes on a gin router. svc is the history service
// of the active user; management routes ignore it.
type RouterLoader func(r gin.IRouter, svc *history.Service) error

// RouteType distinguishes the API routes from the management routes.
type RouteType int

const (
	// RouteTypeMain registers routes under the /v1 API group.
	RouteTypeMain RouteType = iota
	// RouteTypeManagement registers routes at the root (health, metrics).
	RouteTypeManagement
)

// Plugin represents a route plugin with an order for deterministic mount sequence.
type Plugin struct {
	Order  int
	Type   RouteType
	Loader RouterLoader
}

var (
	plugins  []Plugin
	sortOnce sync.Once
)

// Register adds a route plugin. Called from init() in plugin packages.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

func sorted() []Plugin {
	sortOnce.Do(func() {
		sort.SliceStable(plugins, func(i, j int) bool { return plugins[i].Order < plugins[j].Order })
	})
	return plugins
}

// Loaders returns the loaders of the given type, sorted by order.
func Loaders(t RouteType) []RouterLoader {
	var loaders []RouterLoader
	for _, p := range sorted() {
		if p.Type == t {
			loaders = append(loaders, p.Loader)
		}
	}
	return loaders
}
