// Package jsl defines the execution-element graph of a batch job (steps, decisions, flows
// and splits joined by transitions) and a YAML encoding of it.
//
// A graph is read-only once resolved. Property substitution happens once per start or
// restart on a deep clone, and once more per partition on the partition's own clone.
package jsl

// JSLDefinitionBytes holds the content of a JSL file.
type JSLDefinitionBytes []byte

// Job is the root of an execution-element graph.
type Job struct {
	// ID is the job name.
	ID string `yaml:"id"`
	// Restartable defaults to true.
	Restartable *bool             `yaml:"restartable,omitempty"`
	Properties  map[string]string `yaml:"properties,omitempty"`
	Listeners   []ComponentRef    `yaml:"listeners,omitempty"`
	Elements    Elements          `yaml:"elements"`
}

// IsRestartable reports whether the job may be restarted.
func (j *Job) IsRestartable() bool {
	return j.Restartable == nil || *j.Restartable
}

// ElementKind tags the concrete type of an Element.
type ElementKind string

const (
	KindStep     ElementKind = "step"
	KindDecision ElementKind = "decision"
	KindFlow     ElementKind = "flow"
	KindSplit    ElementKind = "split"
)

// Element is a node of the execution-element graph.
type Element interface {
	ElementID() string
	Kind() ElementKind
	// NextID is the id of the element to run when no transition matches. Empty for decisions.
	NextID() string
	// TransitionList returns the transition elements in declaration order.
	TransitionList() []Transition
}

// ComponentRef refers to an artifact by name.
type ComponentRef struct {
	Ref        string            `yaml:"ref"`
	Properties map[string]string `yaml:"properties,omitempty"`
}

// Transition is a next, end, fail or stop transition element.
type Transition struct {
	// On is the exit status pattern; '*' matches any run of characters and '?' exactly one.
	On string `yaml:"on"`
	// To is the id of the next element for a "next" transition.
	To   string `yaml:"to,omitempty"`
	End  bool   `yaml:"end,omitempty"`
	Fail bool   `yaml:"fail,omitempty"`
	Stop bool   `yaml:"stop,omitempty"`
	// ExitStatus overrides the job exit status for end, fail and stop.
	ExitStatus string `yaml:"exit-status,omitempty"`
	// Restart is the element a stopped job resumes at.
	Restart string `yaml:"restart,omitempty"`
}

// IsTerminating reports whether the transition ends the job.
func (t *Transition) IsTerminating() bool {
	return t.End || t.Fail || t.Stop
}

// Step is a batchlet, chunk or partitioned step.
type Step struct {
	ID   string `yaml:"id"`
	Next string `yaml:"next,omitempty"`
	// StartLimit caps the number of starts across restarts. Zero means unlimited.
	StartLimit           int               `yaml:"start-limit,omitempty"`
	AllowStartIfComplete bool              `yaml:"allow-start-if-complete,omitempty"`
	Properties           map[string]string `yaml:"properties,omitempty"`
	Listeners            []ComponentRef    `yaml:"listeners,omitempty"`
	Batchlet             *ComponentRef     `yaml:"batchlet,omitempty"`
	Chunk                *Chunk            `yaml:"chunk,omitempty"`
	Partition            *Partition        `yaml:"partition,omitempty"`
	Transitions          []Transition      `yaml:"transitions,omitempty"`
}

func (s *Step) ElementID() string            { return s.ID }
func (s *Step) Kind() ElementKind            { return KindStep }
func (s *Step) NextID() string               { return s.Next }
func (s *Step) TransitionList() []Transition { return s.Transitions }

// Checkpoint policies.
const (
	CheckpointPolicyItem   = "item"
	CheckpointPolicyCustom = "custom"
)

// DefaultItemCount is the chunk size when none is declared.
const DefaultItemCount = 10

// Chunk declares the artifacts and policies of a chunk step.
type Chunk struct {
	Reader    ComponentRef  `yaml:"reader"`
	Processor *ComponentRef `yaml:"processor,omitempty"`
	Writer    ComponentRef  `yaml:"writer"`
	// CheckpointPolicy is "item" (default) or "custom".
	CheckpointPolicy    string        `yaml:"checkpoint-policy,omitempty"`
	ItemCount           int           `yaml:"item-count,omitempty"`
	TimeLimit           int           `yaml:"time-limit,omitempty"`
	CheckpointAlgorithm *ComponentRef `yaml:"checkpoint-algorithm,omitempty"`
	// SkipLimit is the number of skips allowed for the step. Zero allows none, negative is unlimited.
	SkipLimit int `yaml:"skip-limit,omitempty"`
	// RetryLimit is the number of retries allowed for the step. Zero allows none, negative is unlimited.
	RetryLimit           int                  `yaml:"retry-limit,omitempty"`
	SkippableExceptions  ExceptionClassFilter `yaml:"skippable-exception-classes,omitempty"`
	RetryableExceptions  ExceptionClassFilter `yaml:"retryable-exception-classes,omitempty"`
	NoRollbackExceptions ExceptionClassFilter `yaml:"no-rollback-exception-classes,omitempty"`
}

// EffectiveItemCount returns the item count, defaulting to DefaultItemCount.
func (c *Chunk) EffectiveItemCount() int {
	if c.ItemCount <= 0 {
		return DefaultItemCount
	}
	return c.ItemCount
}

// ExceptionClassFilter lists error class names resolved by exception.IsErrorOfType.
type ExceptionClassFilter struct {
	Include []string `yaml:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"`
}

// IsEmpty reports whether the filter names nothing.
func (f ExceptionClassFilter) IsEmpty() bool {
	return len(f.Include) == 0 && len(f.Exclude) == 0
}

// Partition declares how a step is fanned out.
type Partition struct {
	Mapper    *ComponentRef  `yaml:"mapper,omitempty"`
	Plan      *PartitionPlan `yaml:"plan,omitempty"`
	Collector *ComponentRef  `yaml:"collector,omitempty"`
	Analyzer  *ComponentRef  `yaml:"analyzer,omitempty"`
	Reducer   *ComponentRef  `yaml:"reducer,omitempty"`
}

// PartitionPlan is a static partition plan.
type PartitionPlan struct {
	Partitions int                 `yaml:"partitions"`
	Threads    int                 `yaml:"threads,omitempty"`
	Properties []map[string]string `yaml:"properties,omitempty"`
}

// Decision computes an exit status from the preceding step executions.
type Decision struct {
	ID          string            `yaml:"id"`
	Ref         string            `yaml:"ref"`
	Properties  map[string]string `yaml:"properties,omitempty"`
	Transitions []Transition      `yaml:"transitions,omitempty"`
}

func (d *Decision) ElementID() string            { return d.ID }
func (d *Decision) Kind() ElementKind            { return KindDecision }
func (d *Decision) NextID() string               { return "" }
func (d *Decision) TransitionList() []Transition { return d.Transitions }

// Flow is a sequence of elements treated as one unit for transitions.
type Flow struct {
	ID          string       `yaml:"id"`
	Next        string       `yaml:"next,omitempty"`
	Elements    Elements     `yaml:"elements"`
	Transitions []Transition `yaml:"transitions,omitempty"`
}

func (f *Flow) ElementID() string            { return f.ID }
func (f *Flow) Kind() ElementKind            { return KindFlow }
func (f *Flow) NextID() string               { return f.Next }
func (f *Flow) TransitionList() []Transition { return f.Transitions }

// LastStep returns the structurally last Step of the flow, searching nested flows
// from the end. It returns nil if the flow holds no step.
func (f *Flow) LastStep() *Step {
	for i := len(f.Elements) - 1; i >= 0; i-- {
		switch e := f.Elements[i].(type) {
		case *Step:
			return e
		case *Flow:
			if s := e.LastStep(); s != nil {
				return s
			}
		}
	}
	return nil
}

// Split runs its flows in parallel.
type Split struct {
	ID          string       `yaml:"id"`
	Next        string       `yaml:"next,omitempty"`
	Flows       []*Flow      `yaml:"flows"`
	Transitions []Transition `yaml:"transitions,omitempty"`
}

func (s *Split) ElementID() string            { return s.ID }
func (s *Split) Kind() ElementKind            { return KindSplit }
func (s *Split) NextID() string               { return s.Next }
func (s *Split) TransitionList() []Transition { return s.Transitions }

var (
	_ Element = (*Step)(nil)
	_ Element = (*Decision)(nil)
	_ Element = (*Flow)(nil)
	_ Element = (*Split)(nil)
)
