package jsl

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

// Parse decodes and validates one job definition.
func Parse(data []byte) (*Job, error) {
	var job Job
	if err := yaml.Unmarshal(data, &job); err != nil {
		return nil, exception.NewBatchError("jsl_loader", "Failed to parse JSL file", err, false, false)
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return &job, nil
}

// Registry holds the job definitions known to the engine, by job id.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*Job)}
}

// Load parses data and registers the job. A duplicated job id is an error.
func (r *Registry) Load(data JSLDefinitionBytes) (*Job, error) {
	job, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := r.Register(job); err != nil {
		return nil, err
	}
	return job, nil
}

// Register adds an already built job definition.
func (r *Registry) Register(job *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.ID]; exists {
		return exception.NewConfigurationError("jsl_loader", "JSL Job ID '%s' is duplicated", job.ID)
	}
	r.jobs[job.ID] = job
	logger.Infof("Loaded JSL job '%s' (%d top-level elements).", job.ID, len(job.Elements))
	return nil
}

// Get returns a deep copy of the job definition with the given id.
func (r *Registry) Get(jobID string) (*Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, false
	}
	return job.Clone(), true
}

// Definition returns the stored job definition itself, not a copy. Callers must not
// modify it once jobs run.
func (r *Registry) Definition(jobID string) (*Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[jobID]
	return job, ok
}

// Names returns the registered job ids in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.jobs))
	for name := range r.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String implements fmt.Stringer.
func (r *Registry) String() string {
	return fmt.Sprintf("jsl.Registry%v", r.Names())
}

// LoadDir loads every .yaml and .yml file of dir, in name order.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return exception.NewBatchError("jsl_loader", fmt.Sprintf("Failed to read JSL directory '%s'", dir), err, false, false)
	}
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return exception.NewBatchError("jsl_loader", fmt.Sprintf("Failed to read JSL file '%s'", e.Name()), err, false, false)
		}
		if _, err := r.Load(data); err != nil {
			return fmt.Errorf("%s: %w", e.Name(), err)
		}
	}
	return nil
}

// SetDefaultItemCount sets the item count of every chunk of the job that declares none.
func (j *Job) SetDefaultItemCount(n int) {
	setDefaultItemCount(j.Elements, n)
}

func setDefaultItemCount(elements Elements, n int) {
	for _, el := range elements {
		switch e := el.(type) {
		case *Step:
			if e.Chunk != nil && e.Chunk.ItemCount <= 0 {
				e.Chunk.ItemCount = n
			}
		case *Flow:
			setDefaultItemCount(e.Elements, n)
		case *Split:
			for _, f := range e.Flows {
				setDefaultItemCount(f.Elements, n)
			}
		}
	}
}
