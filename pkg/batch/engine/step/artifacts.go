package step

import (
	"context"
	"fmt"

	port "github.com/tigerroll/jbatch/pkg/batch/core/application/port"
	"github.com/tigerroll/jbatch/pkg/batch/core/config/jsl"
	"github.com/tigerroll/jbatch/pkg/batch/engine/step/retry"
	"github.com/tigerroll/jbatch/pkg/batch/engine/step/skip"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
)

// CreateArtifact builds the artifact named by ref and checks that it implements T.
func CreateArtifact[T any](ctx context.Context, factory port.ArtifactFactory, ref *jsl.ComponentRef) (T, error) {
	var zero T
	a, err := factory.Create(ctx, ref.Ref, ref.Properties)
	if err != nil {
		return zero, exception.NewBatchError("artifact", fmt.Sprintf("Failed to create artifact '%s'", ref.Ref), err, false, false)
	}
	t, ok := a.(T)
	if !ok {
		return zero, exception.NewConfigurationError("artifact", "artifact '%s' (%T) does not implement %T", ref.Ref, a, (*T)(nil))
	}
	return t, nil
}

// Listeners groups the listener artifacts of a step by family.
type Listeners struct {
	Step    []port.StepListener
	Chunk   []port.ChunkListener
	Read    []port.ItemReadListener
	Process []port.ItemProcessListener
	Write   []port.ItemWriteListener
	Skip    []skip.Listener
	Retry   []retry.Listener
}

// BuildListeners creates the listener artifacts of refs and sorts each into every
// family it implements.
func BuildListeners(ctx context.Context, factory port.ArtifactFactory, refs []jsl.ComponentRef) (*Listeners, error) {
	ls := &Listeners{}
	for i := range refs {
		a, err := factory.Create(ctx, refs[i].Ref, refs[i].Properties)
		if err != nil {
			return nil, exception.NewBatchError("artifact", fmt.Sprintf("Failed to create listener '%s'", refs[i].Ref), err, false, false)
		}
		matched := false
		if l, ok := a.(port.StepListener); ok {
			ls.Step, matched = append(ls.Step, l), true
		}
		if l, ok := a.(port.ChunkListener); ok {
			ls.Chunk, matched = append(ls.Chunk, l), true
		}
		if l, ok := a.(port.ItemReadListener); ok {
			ls.Read, matched = append(ls.Read, l), true
		}
		if l, ok := a.(port.ItemProcessListener); ok {
			ls.Process, matched = append(ls.Process, l), true
		}
		if l, ok := a.(port.ItemWriteListener); ok {
			ls.Write, matched = append(ls.Write, l), true
		}
		if l, ok := a.(port.SkipListener); ok {
			ls.Skip, matched = append(ls.Skip, l), true
		}
		if l, ok := a.(port.RetryListener); ok {
			ls.Retry, matched = append(ls.Retry, l), true
		}
		if !matched {
			return nil, exception.NewConfigurationError("artifact", "listener '%s' (%T) implements no step listener interface", refs[i].Ref, a)
		}
	}
	return ls, nil
}
