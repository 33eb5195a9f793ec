package task

import (
	"fmt"
	"sort"
)

// Registry maps task type names to handlers. Registration happens once at
// startup; duplicate registrations are a wiring bug and fail fast rather
// than silently overriding.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register binds a handler to a task type. Returns an error if the type is
// empty, the handler is nil, or the type is already registered.
func (r *Registry) Register(taskType string, handler Handler) error {
	if taskType == "" {
		return fmt.Errorf("task type cannot be empty")
	}
	if handler == nil {
		return fmt.Errorf("handler for task type %q cannot be nil", taskType)
	}
	if _, exists := r.handlers[taskType]; exists {
		return fmt.Errorf("handler already registered for task type %q", taskType)
	}

	r.handlers[taskType] = handler
	return nil
}

// Lookup returns the handler for the given task type, if one is registered.
func (r *Registry) Lookup(taskType string) (Handler, bool) {
	h, ok := r.handlers[taskType]
	return h, ok
}

// Types returns the registered task type names, sorted for stable logging.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
