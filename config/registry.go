package config

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	processor "github.com/goliatone/go-processor"
	"gopkg.in/yaml.v3"
)

// TypeInfo describes a registered process type.
type TypeInfo struct {
	Type        string
	Description string

	decode   func(settings *yaml.Node) (any, error)
	defaults func() any
}

// Registry maps process type names to the decoders of their settings.
type Registry struct {
	mu    sync.RWMutex
	types map[string]TypeInfo
}

func NewRegistry() *Registry {
	return &Registry{types: make(map[string]TypeInfo)}
}

// RegisterType registers settings of type S under typ. Decoding starts from
// defaults and calls Validate when S implements it.
func RegisterType[S any](r *Registry, typ, description string, defaults func() S) error {
	key := NormalizeType(typ)
	if key == "" {
		return processor.CloneError(processor.ErrInvalidConfig, "process type cannot be empty", nil, nil)
	}
	if defaults == nil {
		defaults = func() S {
			var zero S
			return zero
		}
	}

	info := TypeInfo{
		Type:        key,
		Description: description,
		defaults:    func() any { return defaults() },
		decode: func(settings *yaml.Node) (any, error) {
			s := defaults()
			if settings != nil {
				if err := settings.Decode(&s); err != nil {
					return nil, processor.CloneError(ErrInvalidJob,
						fmt.Sprintf("decode %s settings: %v", key, err), err,
						map[string]any{"type": key})
				}
			}
			if v, ok := any(s).(interface{ Validate() error }); ok {
				if err := v.Validate(); err != nil {
					return nil, err
				}
			}
			return s, nil
		},
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[key]; exists {
		return processor.CloneError(ErrDuplicateType, "", nil, map[string]any{"type": key})
	}
	r.types[key] = info
	return nil
}

// Decode resolves the settings of pc through its registered type.
func (r *Registry) Decode(pc ProcessConfig) (any, error) {
	info, err := r.lookup(pc.Type)
	if err != nil {
		return nil, err
	}
	return info.decode(pc.Settings)
}

// DefaultJob returns a job for typ holding its default settings.
func (r *Registry) DefaultJob(typ string) (Job, error) {
	info, err := r.lookup(typ)
	if err != nil {
		return Job{}, err
	}

	var settings yaml.Node
	if err := settings.Encode(info.defaults()); err != nil {
		return Job{}, err
	}
	job := Job{
		Process:   ProcessConfig{Type: info.Type},
		Execution: processor.DefaultExecutionConfig(),
	}
	if settings.Kind == yaml.MappingNode && len(settings.Content) > 0 {
		job.Process.Settings = &settings
	}
	return job, nil
}

// Types lists registered types sorted by name.
func (r *Registry) Types() []TypeInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]TypeInfo, 0, len(r.types))
	for _, info := range r.types {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

func (r *Registry) lookup(typ string) (TypeInfo, error) {
	key := NormalizeType(typ)
	r.mu.RLock()
	info, ok := r.types[key]
	r.mu.RUnlock()
	if !ok {
		return TypeInfo{}, processor.CloneError(ErrUnknownType,
			fmt.Sprintf("unknown process type %q", typ), nil,
			map[string]any{"type": typ})
	}
	return info, nil
}

// NormalizeType is the registry key of a process type name.
func NormalizeType(typ string) string {
	return strings.ToLower(strings.TrimSpace(typ))
}
