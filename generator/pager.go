package generator

import (
	log "github.com/sirupsen/logrus"
)

// pager walks a privately owned index list in consecutive slices of
// batchSize. The cursor only moves forward through advance, so a slice whose
// batch failed to build is handed out again on the next call.
type pager struct {
	kind      string
	indices   []int
	batchSize int
	slice     int
	inPass    bool
	passes    int
}

func newPager(kind string, indices []int, batchSize int) (*pager, error) {
	if batchSize < 1 {
		return nil, ErrBatchSize
	}
	return &pager{
		kind:      kind,
		indices:   append([]int(nil), indices...),
		batchSize: batchSize,
	}, nil
}

func (p *pager) batches() int {
	return (len(p.indices) + p.batchSize - 1) / p.batchSize
}

// current returns the slice under the cursor. When a new pass starts it
// checks for an empty index list and hands the list to begin, which may
// reorder it in place.
func (p *pager) current(begin func([]int)) ([]int, error) {
	if !p.inPass {
		if len(p.indices) == 0 {
			return nil, ErrEmptyIndex
		}
		if begin != nil {
			begin(p.indices)
		}
		p.inPass = true
		p.slice = 0
		p.passes++
		log.WithFields(log.Fields{
			"generator": p.kind,
			"pass":      p.passes,
			"rows":      len(p.indices),
			"batches":   p.batches(),
		}).Debug("starting pass")
	}

	start := p.slice * p.batchSize
	end := min(start+p.batchSize, len(p.indices))
	return p.indices[start:end], nil
}

func (p *pager) advance() {
	p.slice++
	if p.slice >= p.batches() {
		p.slice = 0
		p.inPass = false
	}
}
