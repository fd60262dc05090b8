package expression

import (
	"github.com/tigerroll/jbatch/pkg/batch/core/config/jsl"
)

// ResolveJob returns a deep copy of job with every property, artifact reference and
// transition exit status resolved against params and the job's own properties.
// Job properties are resolved first, against params only.
func ResolveJob(job *jsl.Job, params map[string]string) *jsl.Job {
	out := job.Clone()
	out.Properties = ResolveMap(out.Properties, Sources{JobParameters: params})
	src := Sources{JobParameters: params, JobProperties: out.Properties}
	resolveRefs(out.Listeners, src)
	resolveElements(out.Elements, src)
	return out
}

// ResolveStepForPartition returns a deep copy of step with the partitionPlan
// expressions resolved against the properties of one partition.
func ResolveStepForPartition(step *jsl.Step, jobProperties, params, partitionProps map[string]string) *jsl.Step {
	out := step.Clone()
	if partitionProps == nil {
		partitionProps = map[string]string{}
	}
	resolveStep(out, Sources{JobParameters: params, JobProperties: jobProperties, PartitionPlan: partitionProps})
	return out
}

func resolveElements(elements jsl.Elements, src Sources) {
	for _, el := range elements {
		switch e := el.(type) {
		case *jsl.Step:
			resolveStep(e, src)
		case *jsl.Decision:
			e.Ref = Resolve(e.Ref, src)
			e.Properties = ResolveMap(e.Properties, src)
			resolveTransitions(e.Transitions, src)
		case *jsl.Flow:
			resolveElements(e.Elements, src)
			resolveTransitions(e.Transitions, src)
		case *jsl.Split:
			for _, f := range e.Flows {
				resolveElements(f.Elements, src)
				resolveTransitions(f.Transitions, src)
			}
			resolveTransitions(e.Transitions, src)
		}
	}
}

func resolveStep(s *jsl.Step, src Sources) {
	s.Properties = ResolveMap(s.Properties, src)
	resolveRefs(s.Listeners, src)
	resolveRef(s.Batchlet, src)
	resolveTransitions(s.Transitions, src)
	if c := s.Chunk; c != nil {
		resolveRef(&c.Reader, src)
		resolveRef(&c.Writer, src)
		resolveRef(c.Processor, src)
		resolveRef(c.CheckpointAlgorithm, src)
	}
	if p := s.Partition; p != nil {
		resolveRef(p.Mapper, src)
		resolveRef(p.Collector, src)
		resolveRef(p.Analyzer, src)
		resolveRef(p.Reducer, src)
		if p.Plan != nil {
			for i, props := range p.Plan.Properties {
				p.Plan.Properties[i] = ResolveMap(props, src)
			}
		}
	}
}

func resolveRef(r *jsl.ComponentRef, src Sources) {
	if r == nil {
		return
	}
	r.Ref = Resolve(r.Ref, src)
	r.Properties = ResolveMap(r.Properties, src)
}

func resolveRefs(refs []jsl.ComponentRef, src Sources) {
	for i := range refs {
		resolveRef(&refs[i], src)
	}
}

func resolveTransitions(ts []jsl.Transition, src Sources) {
	for i := range ts {
		ts[i].ExitStatus = Resolve(ts[i].ExitStatus, src)
	}
}
