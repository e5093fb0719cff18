package rpc

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Call is one decoded invocation.
type Call struct {
	Model  string
	Method string
	UserID int32
	Args   []json.RawMessage
	Kwargs map[string]json.RawMessage
}

// HandlerFunc executes an operation and returns its result.
type HandlerFunc func(ctx context.Context, call *Call) (interface{}, error)

// Registry is the allow-list of invocable operations keyed by model and method.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]HandlerFunc),
	}
}

func operationKey(model, method string) string {
	return model + ":" + method
}

// Register adds or replaces the handler of model and method.
func (r *Registry) Register(model, method string, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[operationKey(model, method)] = h
}

// Lookup returns the handler of model and method.
func (r *Registry) Lookup(model, method string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[operationKey(model, method)]
	return h, ok
}

// Operations lists the registered operations as model:method.
func (r *Registry) Operations() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ops := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		ops = append(ops, k)
	}
	sort.Strings(ops)
	return ops
}

// ParseOperation splits a "model:method" operation name.
func ParseOperation(s string) (model, method string, err error) {
	i := strings.LastIndex(s, ":")
	if i <= 0 || i == len(s)-1 {
		return "", "", errors.Errorf("invalid operation %q, expected model:method", s)
	}
	return s[:i], s[i+1:], nil
}
