package worker

import (
	"github.com/dataspace/catalogue-coordinator/pkg/log"
	"github.com/dataspace/catalogue-coordinator/pkg/metrics"
)

// Stats summarises the pool's task records.
type Stats struct {
	TotalTasks int  `json:"total_tasks"`
	Pending    int  `json:"pending"`
	Completed  int  `json:"completed"`
	Failed     int  `json:"failed"`
	Cancelled  int  `json:"cancelled"`
	MaxWorkers int  `json:"max_workers"`
	IsRunning  bool `json:"is_running"`
}

// MemoryStats estimates the memory retained by task records.
type MemoryStats struct {
	RetainedRecords      int     `json:"retained_records"`
	EstimatedMemoryBytes int     `json:"estimated_memory_bytes"`
	EstimatedMemoryMB    float64 `json:"estimated_memory_mb"`
	MaxWorkers           int     `json:"max_workers"`
	IsRunning            bool    `json:"is_running"`
}

// taskRecordEstimate approximates the footprint of one retained record.
const taskRecordEstimate = 200

// Stats returns counts per task status and refreshes the pool gauges.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	stats := Stats{
		TotalTasks: len(p.tasks),
		MaxWorkers: p.workers,
		IsRunning:  p.running,
	}
	for _, t := range p.tasks {
		t.mu.Lock()
		switch t.status {
		case StatusPending:
			stats.Pending++
		case StatusCompleted:
			stats.Completed++
		case StatusFailed:
			stats.Failed++
		case StatusCancelled:
			stats.Cancelled++
		}
		t.mu.Unlock()
	}
	p.mu.Unlock()

	metrics.PoolTasksTotal.WithLabelValues(string(StatusPending)).Set(float64(stats.Pending))
	metrics.PoolTasksTotal.WithLabelValues(string(StatusCompleted)).Set(float64(stats.Completed))
	metrics.PoolTasksTotal.WithLabelValues(string(StatusFailed)).Set(float64(stats.Failed))
	metrics.PoolTasksTotal.WithLabelValues(string(StatusCancelled)).Set(float64(stats.Cancelled))
	return stats
}

// MemoryStats returns a rough estimate of retained task-record memory.
func (p *Pool) MemoryStats() MemoryStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	bytes := len(p.tasks) * taskRecordEstimate
	return MemoryStats{
		RetainedRecords:      len(p.tasks),
		EstimatedMemoryBytes: bytes,
		EstimatedMemoryMB:    float64(bytes) / (1024 * 1024),
		MaxWorkers:           p.workers,
		IsRunning:            p.running,
	}
}

// ClearCompleted drops terminal task records from memory.
func (p *Pool) ClearCompleted() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	removed := 0
	for id, t := range p.tasks {
		t.mu.Lock()
		terminal := t.status == StatusCompleted || t.status == StatusFailed || t.status == StatusCancelled
		t.mu.Unlock()
		if terminal {
			delete(p.tasks, id)
			removed++
		}
	}
	if removed > 0 {
		log.WithComponent("worker").Info().Int("removed", removed).Msg("cleared completed tasks")
	}
	return removed
}

// AutoCleanup drops terminal records once their count exceeds maxRetained.
func (p *Pool) AutoCleanup(maxRetained int) {
	p.mu.Lock()
	terminal := 0
	for _, t := range p.tasks {
		t.mu.Lock()
		if t.status == StatusCompleted || t.status == StatusFailed || t.status == StatusCancelled {
			terminal++
		}
		t.mu.Unlock()
	}
	p.mu.Unlock()

	if terminal > maxRetained {
		log.WithComponent("worker").Info().
			Int("terminal", terminal).Int("threshold", maxRetained).
			Msg("auto-cleanup triggered")
		p.ClearCompleted()
	}
}
