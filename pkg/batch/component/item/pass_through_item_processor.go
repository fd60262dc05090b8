package item

import (
	"context"

	port "github.com/tigerroll/jbatch/pkg/batch/core/application/port"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

// PassThroughItemProcessor returns every item unchanged.
type PassThroughItemProcessor struct{}

// NewPassThroughItemProcessor creates a PassThroughItemProcessor.
func NewPassThroughItemProcessor() *PassThroughItemProcessor {
	return &PassThroughItemProcessor{}
}

// ProcessItem returns item as is.
func (p *PassThroughItemProcessor) ProcessItem(ctx context.Context, item any) (any, error) {
	logger.Debugf("PassThroughItemProcessor: Processing item: %+v", item)
	return item, nil
}

var _ port.ItemProcessor = (*PassThroughItemProcessor)(nil)
