// Package application contains the pipeline stage services.
package application

import (
	"sync"
	"time"
)

// StageProgress is a snapshot of one stage's progress.
type StageProgress struct {
	Stage     string    `json:"stage"`
	Total     int       `json:"total"`
	Done      int       `json:"done"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
	Current   string    `json:"current,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// Progress tracks per-stage progress for the status endpoint. All methods
// are safe for concurrent use; the batch loops write, the status server
// reads.
type Progress struct {
	mu     sync.RWMutex
	order  []string
	stages map[string]*StageProgress
}

// NewProgress creates an empty progress tracker.
func NewProgress() *Progress {
	return &Progress{stages: make(map[string]*StageProgress)}
}

// Begin resets a stage with the given total.
func (p *Progress) Begin(stage string, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.stages[stage]; !ok {
		p.order = append(p.order, stage)
	}
	p.stages[stage] = &StageProgress{
		Stage:     stage,
		Total:     total,
		StartedAt: time.Now().UTC(),
	}
}

// Step records one processed file.
func (p *Progress) Step(stage, current string, failed, skipped bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sp, ok := p.stages[stage]
	if !ok {
		return
	}
	sp.Done++
	sp.Current = current
	if failed {
		sp.Failed++
	}
	if skipped {
		sp.Skipped++
	}
}

// Snapshot returns the stages in start order.
func (p *Progress) Snapshot() []StageProgress {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]StageProgress, 0, len(p.order))
	for _, stage := range p.order {
		out = append(out, *p.stages[stage])
	}
	return out
}
