package handlers

// Registry maps an event ABI to its optional pure and side-effect handlers.
type Registry struct {
	pure       map[string]PureHandler
	sideEffect map[string]SideEffectHandler
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		pure:       make(map[string]PureHandler),
		sideEffect: make(map[string]SideEffectHandler),
	}
}

// RegisterPure registers a pure handler for its ABI.
func (r *Registry) RegisterPure(h PureHandler) {
	r.pure[h.ABI()] = h
}

// RegisterSideEffect registers a side-effect handler for its ABI.
func (r *Registry) RegisterSideEffect(h SideEffectHandler) {
	r.sideEffect[h.ABI()] = h
}

// Pure looks up the pure handler for an ABI, if any.
func (r *Registry) Pure(abi string) (PureHandler, bool) {
	h, ok := r.pure[abi]
	return h, ok
}

// SideEffect looks up the side-effect handler for an ABI, if any.
func (r *Registry) SideEffect(abi string) (SideEffectHandler, bool) {
	h, ok := r.sideEffect[abi]
	return h, ok
}
