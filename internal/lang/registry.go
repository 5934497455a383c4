package lang

import (
	"fmt"
	"strings"
	"sync"
)

// Registry holds the descriptors for every language codelens knows about,
// keyed both by name and by file extension. Adapted from the teacher's
// chunk.LanguageRegistry, generalized from four languages to nine and
// carrying decision-point and kind-mapping tables the teacher's
// LanguageConfig didn't need.
type Registry struct {
	mu          sync.RWMutex
	byName      map[string]*Descriptor
	extToName   map[string]string
	unavailable map[string]string // language name -> reason, for grammars that failed to register
}

// NewRegistry builds a registry with every descriptor this binary ships
// grammars for. A grammar that fails to initialize is recorded in
// Unavailable() rather than causing NewRegistry to fail, so one broken
// binding never takes down parsing for the other eight languages.
func NewRegistry() *Registry {
	r := &Registry{
		byName:      make(map[string]*Descriptor),
		extToName:   make(map[string]string),
		unavailable: make(map[string]string),
	}
	for _, build := range []func() (*Descriptor, error){
		newGoDescriptor,
		newPythonDescriptor,
		newJavaScriptDescriptor,
		newTypeScriptDescriptor,
		newTSXDescriptor,
		newJavaDescriptor,
		newCSharpDescriptor,
		newCppDescriptor,
		newPHPDescriptor,
		newRustDescriptor,
	} {
		desc, err := func() (d *Descriptor, err error) {
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("lang: grammar initialization panicked: %v", p)
				}
			}()
			return build()
		}()
		if err != nil {
			// build() only returns a non-nil descriptor on success, so on
			// error we don't have a name to key Unavailable by; record it
			// under the error text itself as a best-effort breadcrumb.
			r.unavailable[err.Error()] = err.Error()
			continue
		}
		r.register(desc)
	}
	return r
}

func (r *Registry) register(desc *Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[desc.Name] = desc
	for _, ext := range desc.Extensions {
		r.extToName[ext] = desc.Name
	}
}

// ByExtension returns the descriptor registered for a file extension
// (with or without leading dot).
func (r *Registry) ByExtension(ext string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	name, ok := r.extToName[ext]
	if !ok {
		return nil, false
	}
	d, ok := r.byName[name]
	return d, ok
}

// ByName returns the descriptor for a language name.
func (r *Registry) ByName(name string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byName[name]
	return d, ok
}

// Unavailable returns the set of grammars that failed to register, keyed
// by a diagnostic string; callers surface these once at startup rather
// than failing parse of every file.
func (r *Registry) Unavailable() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.unavailable))
	for k, v := range r.unavailable {
		out[k] = v
	}
	return out
}

// SupportedExtensions lists every registered file extension.
func (r *Registry) SupportedExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.extToName))
	for ext := range r.extToName {
		exts = append(exts, ext)
	}
	return exts
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry built at package init.
func Default() *Registry {
	return defaultRegistry
}
