package router

import (
	"github.com/gin-gonic/gin"
)

// Registrar mounts a handler's routes on a route group.
type Registrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router collects handlers and mounts them under a versioned API prefix.
// Webhook endpoints are registered on the bare engine instead, so the
// URLs configured at the providers never move with the API version.
type Router struct {
	engine     *gin.Engine
	version    string
	registrars []Registrar
}

// New creates a Router that mounts routes under /api/<version>.
func New(engine *gin.Engine, version string) *Router {
	return &Router{
		engine:  engine,
		version: version,
	}
}

// Register queues handlers for mounting. It returns the Router so
// registrations chain.
func (r *Router) Register(regs ...Registrar) *Router {
	r.registrars = append(r.registrars, regs...)
	return r
}

// Mount attaches every registered handler to the versioned group.
func (r *Router) Mount() {
	api := r.engine.Group("/api/" + r.version)
	for _, reg := range r.registrars {
		reg.RegisterRoutes(api)
	}
}
