package jsl

import (
	"github.com/hashicorp/go-multierror"

	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
)

const validateModule = "jsl"

// Validate checks the structural rules of the graph and returns every violation found,
// each wrapping exception.ErrConfiguration.
func (j *Job) Validate() error {
	v := &validator{ids: make(map[string]bool)}
	if j.ID == "" {
		v.fail("job has no id")
	}
	if len(j.Elements) == 0 {
		v.fail("job '%s' has no elements", j.ID)
	}
	v.collectIDs(j.Elements)
	v.checkScope(j.Elements)
	return v.errs.ErrorOrNil()
}

type validator struct {
	ids  map[string]bool
	errs *multierror.Error
}

func (v *validator) fail(format string, a ...interface{}) {
	v.errs = multierror.Append(v.errs, exception.NewConfigurationError(validateModule, format, a...))
}

func (v *validator) collectIDs(elements Elements) {
	for _, el := range elements {
		id := el.ElementID()
		if id == "" {
			v.fail("%s element without id", el.Kind())
		} else if v.ids[id] {
			v.fail("duplicate element id '%s'", id)
		}
		v.ids[id] = true
		switch e := el.(type) {
		case *Flow:
			v.collectIDs(e.Elements)
		case *Split:
			for _, f := range e.Flows {
				v.collectIDs(Elements{f})
			}
		}
	}
}

// checkScope validates one level of elements. Next and transition targets must be
// siblings within the same level.
func (v *validator) checkScope(elements Elements) {
	for _, el := range elements {
		if next := el.NextID(); next != "" {
			if _, ok := elements.Find(next); !ok {
				v.fail("element '%s' has next '%s' which is not an element of the same flow", el.ElementID(), next)
			}
		}
		for _, t := range el.TransitionList() {
			v.checkTransition(el, t, elements)
		}

		switch e := el.(type) {
		case *Step:
			v.checkStep(e)
		case *Decision:
			if e.Ref == "" {
				v.fail("decision '%s' has no ref", e.ID)
			}
		case *Flow:
			if len(e.Elements) == 0 {
				v.fail("flow '%s' has no elements", e.ID)
			}
			v.checkScope(e.Elements)
		case *Split:
			if len(e.Flows) == 0 {
				v.fail("split '%s' has no flows", e.ID)
			}
			for _, f := range e.Flows {
				if len(f.Elements) == 0 {
					v.fail("flow '%s' has no elements", f.ID)
				}
				v.checkScope(f.Elements)
			}
		}
	}
}

func (v *validator) checkTransition(from Element, t Transition, scope Elements) {
	kinds := 0
	for _, set := range []bool{t.To != "", t.End, t.Fail, t.Stop} {
		if set {
			kinds++
		}
	}
	if kinds != 1 {
		v.fail("transition on '%s' of '%s' must have exactly one of to, end, fail, stop", t.On, from.ElementID())
	}
	if t.On == "" {
		v.fail("transition of '%s' has no 'on' pattern", from.ElementID())
	}
	if t.Restart != "" && !t.Stop {
		v.fail("transition on '%s' of '%s' declares restart without stop", t.On, from.ElementID())
	}
	if t.Restart != "" && !v.ids[t.Restart] {
		v.fail("transition on '%s' of '%s' restarts at unknown element '%s'", t.On, from.ElementID(), t.Restart)
	}
	if t.To == "" {
		return
	}
	target, ok := scope.Find(t.To)
	if !ok {
		v.fail("transition on '%s' of '%s' targets '%s' which is not an element of the same flow", t.On, from.ElementID(), t.To)
		return
	}
	if from.Kind() == KindDecision && target.Kind() == KindDecision {
		v.fail("decision '%s' transitions directly to decision '%s'", from.ElementID(), t.To)
	}
}

func (v *validator) checkStep(s *Step) {
	if s.StartLimit < 0 {
		v.fail("step '%s' has negative start-limit %d", s.ID, s.StartLimit)
	}
	switch {
	case s.Batchlet == nil && s.Chunk == nil:
		v.fail("step '%s' has neither batchlet nor chunk", s.ID)
	case s.Batchlet != nil && s.Chunk != nil:
		v.fail("step '%s' has both batchlet and chunk", s.ID)
	}
	if s.Batchlet != nil && s.Batchlet.Ref == "" {
		v.fail("step '%s' batchlet has no ref", s.ID)
	}
	if c := s.Chunk; c != nil {
		if c.Reader.Ref == "" || c.Writer.Ref == "" {
			v.fail("chunk step '%s' needs a reader and a writer", s.ID)
		}
		switch c.CheckpointPolicy {
		case "", CheckpointPolicyItem:
		case CheckpointPolicyCustom:
			if c.CheckpointAlgorithm == nil {
				v.fail("chunk step '%s' uses custom checkpoint policy without checkpoint-algorithm", s.ID)
			}
		default:
			v.fail("chunk step '%s' has unknown checkpoint-policy '%s'", s.ID, c.CheckpointPolicy)
		}
		if c.ItemCount < 0 || c.TimeLimit < 0 {
			v.fail("chunk step '%s' has negative item-count or time-limit", s.ID)
		}
	}
	if p := s.Partition; p != nil {
		switch {
		case p.Mapper != nil && p.Plan != nil:
			v.fail("partitioned step '%s' declares both mapper and plan", s.ID)
		case p.Mapper == nil && p.Plan == nil:
			v.fail("partitioned step '%s' declares neither mapper nor plan", s.ID)
		case p.Plan != nil && p.Plan.Partitions <= 0:
			v.fail("partitioned step '%s' plan has %d partitions", s.ID, p.Plan.Partitions)
		}
	}
}
