package http

import "github.com/labstack/echo/v4"

// Handler mounts a group of endpoints on the server.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}

// HandlerFunc lets a route table be passed where a Handler is expected.
type HandlerFunc func(e *echo.Echo)

func (f HandlerFunc) RegisterRoutes(e *echo.Echo) { f(e) }

// Mount returns a Handler registering every h in order. Nil entries are
// skipped so optional endpoints can be passed unconditionally.
func Mount(hs ...Handler) Handler {
	return HandlerFunc(func(e *echo.Echo) {
		for _, h := range hs {
			if h != nil {
				h.RegisterRoutes(e)
			}
		}
	})
}
