package jsl

// Clone returns a deep copy of the job graph.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	if j.Restartable != nil {
		r := *j.Restartable
		c.Restartable = &r
	}
	c.Properties = cloneProps(j.Properties)
	c.Listeners = cloneRefs(j.Listeners)
	c.Elements = j.Elements.Clone()
	return &c
}

// Clone returns a deep copy of every element.
func (e Elements) Clone() Elements {
	if e == nil {
		return nil
	}
	out := make(Elements, len(e))
	for i, el := range e {
		out[i] = CloneElement(el)
	}
	return out
}

// CloneElement returns a deep copy of el.
func CloneElement(el Element) Element {
	switch e := el.(type) {
	case *Step:
		return e.Clone()
	case *Decision:
		c := *e
		c.Properties = cloneProps(e.Properties)
		c.Transitions = cloneTransitions(e.Transitions)
		return &c
	case *Flow:
		return e.Clone()
	case *Split:
		c := *e
		c.Transitions = cloneTransitions(e.Transitions)
		c.Flows = make([]*Flow, len(e.Flows))
		for i, f := range e.Flows {
			c.Flows[i] = f.Clone()
		}
		return &c
	}
	return el
}

// Clone returns a deep copy of the step.
func (s *Step) Clone() *Step {
	c := *s
	c.Properties = cloneProps(s.Properties)
	c.Listeners = cloneRefs(s.Listeners)
	c.Batchlet = cloneRef(s.Batchlet)
	c.Transitions = cloneTransitions(s.Transitions)
	if s.Chunk != nil {
		ch := *s.Chunk
		ch.Reader = *cloneRef(&s.Chunk.Reader)
		ch.Writer = *cloneRef(&s.Chunk.Writer)
		ch.Processor = cloneRef(s.Chunk.Processor)
		ch.CheckpointAlgorithm = cloneRef(s.Chunk.CheckpointAlgorithm)
		ch.SkippableExceptions = s.Chunk.SkippableExceptions.clone()
		ch.RetryableExceptions = s.Chunk.RetryableExceptions.clone()
		ch.NoRollbackExceptions = s.Chunk.NoRollbackExceptions.clone()
		c.Chunk = &ch
	}
	if s.Partition != nil {
		p := *s.Partition
		p.Mapper = cloneRef(s.Partition.Mapper)
		p.Collector = cloneRef(s.Partition.Collector)
		p.Analyzer = cloneRef(s.Partition.Analyzer)
		p.Reducer = cloneRef(s.Partition.Reducer)
		if s.Partition.Plan != nil {
			plan := *s.Partition.Plan
			plan.Properties = make([]map[string]string, len(s.Partition.Plan.Properties))
			for i, props := range s.Partition.Plan.Properties {
				plan.Properties[i] = cloneProps(props)
			}
			p.Plan = &plan
		}
		c.Partition = &p
	}
	return &c
}

// Clone returns a deep copy of the flow.
func (f *Flow) Clone() *Flow {
	c := *f
	c.Elements = f.Elements.Clone()
	c.Transitions = cloneTransitions(f.Transitions)
	return &c
}

func (f ExceptionClassFilter) clone() ExceptionClassFilter {
	return ExceptionClassFilter{
		Include: append([]string(nil), f.Include...),
		Exclude: append([]string(nil), f.Exclude...),
	}
}

func cloneProps(p map[string]string) map[string]string {
	if p == nil {
		return nil
	}
	out := make(map[string]string, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func cloneRef(r *ComponentRef) *ComponentRef {
	if r == nil {
		return nil
	}
	return &ComponentRef{Ref: r.Ref, Properties: cloneProps(r.Properties)}
}

func cloneRefs(refs []ComponentRef) []ComponentRef {
	if refs == nil {
		return nil
	}
	out := make([]ComponentRef, len(refs))
	for i := range refs {
		out[i] = *cloneRef(&refs[i])
	}
	return out
}

func cloneTransitions(ts []Transition) []Transition {
	if ts == nil {
		return nil
	}
	return append([]Transition(nil), ts...)
}
