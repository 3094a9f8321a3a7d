package api

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/samcharles93/modelgate/internal/engineaccess"
	"github.com/samcharles93/modelgate/internal/logger"
	"github.com/samcharles93/modelgate/pkg/modelloader"
)

// ModelExt is the file extension of compiled models discovered in a
// models directory.
const ModelExt = ".cmf"

type entry struct {
	name     string
	loader   *modelloader.ModelLoader
	loadedAt time.Time
}

// Registry holds named, loaded models. A ModelLoader does no locking of its
// own; the registry serializes layout and stack writes with its mutex.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	opts    []modelloader.Option
	log     logger.Logger
	clock   func() time.Time
}

func NewRegistry(log logger.Logger, opts ...modelloader.Option) *Registry {
	if log == nil {
		log = logger.Discard()
	}
	return &Registry{
		entries: make(map[string]*entry),
		opts:    opts,
		log:     log,
		clock:   time.Now,
	}
}

// Add registers an already loaded model under name. The registry takes
// ownership and closes m on Remove or Close.
func (r *Registry) Add(name string, m *modelloader.ModelLoader) error {
	if err := validateName(name); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; ok {
		return fmt.Errorf("%w: %q", ErrModelExists, name)
	}
	r.entries[name] = &entry{
		name:     name,
		loader:   m,
		loadedAt: r.clock(),
	}
	r.log.Info("model registered", "name", name, "function", m.FunctionName(), "source", m.Source())
	return nil
}

// Load opens function from the model at path and registers it as name.
func (r *Registry) Load(name, path, function string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if r.has(name) {
		return fmt.Errorf("%w: %q", ErrModelExists, name)
	}
	m, err := modelloader.New(path, function, r.opts...)
	if err != nil {
		return err
	}
	if err := r.Add(name, m); err != nil {
		m.Close()
		return err
	}
	return nil
}

// LoadDir loads function from every compiled model in dir, naming each
// entry after its file. It returns the names it registered.
func (r *Registry) LoadDir(dir, function string) ([]string, error) {
	paths, err := DiscoverModels(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(paths))
	for _, path := range paths {
		name := ModelName(path)
		if err := r.Load(name, path, function); err != nil {
			return names, fmt.Errorf("load %s: %w", path, err)
		}
		names = append(names, name)
	}
	return names, nil
}

func (r *Registry) has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// Remove unregisters name and releases its device resources.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	e, ok := r.entries[name]
	delete(r.entries, name)
	r.mu.Unlock()
	if !ok {
		return false
	}
	e.loader.Close()
	r.log.Info("model removed", "name", name)
	return true
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of registered models.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// View runs fn with shared access to the model registered as name.
func (r *Registry) View(name string, fn func(m *modelloader.ModelLoader) error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrModelNotFound, name)
	}
	return fn(e.loader)
}

// Update runs fn with exclusive access to the model registered as name.
func (r *Registry) Update(name string, fn func(m *modelloader.ModelLoader) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrModelNotFound, name)
	}
	return fn(e.loader)
}

// Describe snapshots the IO table of name.
func (r *Registry) Describe(name string) (ModelDetail, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return ModelDetail{}, fmt.Errorf("%w: %q", ErrModelNotFound, name)
	}
	return r.detail(e)
}

// List snapshots every registered model, ordered by name.
func (r *Registry) List() ([]ModelDetail, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ModelDetail, 0, len(r.entries))
	for _, e := range r.entries {
		d, err := r.detail(e)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b ModelDetail) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (r *Registry) detail(e *entry) (ModelDetail, error) {
	a, ok := engineaccess.New(e.loader)
	if !ok {
		return ModelDetail{}, fmt.Errorf("%w: model %q is closed", modelloader.ErrUnavailable, e.name)
	}
	return ModelDetail{
		Object:      "model",
		Name:        e.name,
		LoadedAt:    e.loadedAt.Unix(),
		Description: a.Describe(),
	}, nil
}

// Close releases every registered model.
func (r *Registry) Close() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()
	for _, e := range entries {
		e.loader.Close()
	}
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return newInvalidRequest("model name is required")
	}
	if strings.ContainsAny(name, `/\`) {
		return newInvalidRequest(fmt.Sprintf("model name %q must not contain path separators", name))
	}
	return nil
}

// ModelName derives a registry name from a model path: the file name
// without its extension.
func ModelName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// DiscoverModels lists the compiled models directly inside dir, sorted by
// file name.
func DiscoverModels(dir string) ([]string, error) {
	st, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("models path is not a directory: %s", dir)
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	models := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ModelExt) {
			continue
		}
		models = append(models, filepath.Join(dir, name))
	}
	return models, nil
}
