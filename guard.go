package session

// Decision is the route guard's verdict for one navigation attempt. When the
// navigation is denied, Origin carries the requested destination so the login
// flow can return there afterwards; it is threaded explicitly rather than
// hidden in a router side channel.
type Decision struct {
	Allowed    bool
	RedirectTo string
	Origin     string
}

// Guard gates navigation into protected areas. It has no side effects of its
// own and must be consulted on every navigation attempt: session state can
// change between navigations due to a forced logout or another tab.
type Guard struct {
	engine    *Engine
	loginPath string
}

// NewGuard builds a guard redirecting to the engine's configured login path.
func NewGuard(engine *Engine) *Guard {
	return &Guard{
		engine:    engine,
		loginPath: engine.cfg.LoginPath,
	}
}

// Check evaluates one navigation attempt to destination.
func (g *Guard) Check(destination string) Decision {
	if g.engine.Authorized() {
		return Decision{Allowed: true}
	}
	return Decision{
		RedirectTo: g.loginPath,
		Origin:     destination,
	}
}
