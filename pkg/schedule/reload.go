package schedule

import (
	"fmt"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/akinokuni/renderbridge/pkg/logger"
)

// ReloadFunc refreshes the template cache.
type ReloadFunc func()

// Reloader reloads templates on a cron schedule. An empty expression
// disables it.
type Reloader struct {
	expr     string
	reload   ReloadFunc
	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	nextRun  time.Time
}

func NewReloader(expr string, reload ReloadFunc) (*Reloader, error) {
	if expr != "" && !gronx.New().IsValid(expr) {
		return nil, fmt.Errorf("invalid cron expression %q", expr)
	}
	return &Reloader{
		expr:   expr,
		reload: reload,
	}, nil
}

func (r *Reloader) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.expr == "" || r.running {
		return nil
	}

	next, err := gronx.NextTickAfter(r.expr, time.Now(), false)
	if err != nil {
		return fmt.Errorf("failed to compute next reload: %w", err)
	}
	r.nextRun = next

	r.running = true
	r.stopChan = make(chan struct{})
	go r.runLoop()

	logger.InfoCF("schedule", "Template reload scheduled", map[string]interface{}{
		"expr":     r.expr,
		"next_run": next.Format(time.RFC3339),
	})
	return nil
}

func (r *Reloader) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}

	r.running = false
	close(r.stopChan)
}

func (r *Reloader) runLoop() {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopChan:
			return
		case <-ticker.C:
			r.checkDue()
		}
	}
}

func (r *Reloader) checkDue() {
	r.mu.Lock()
	if !r.running || time.Now().Before(r.nextRun) {
		r.mu.Unlock()
		return
	}

	next, err := gronx.NextTickAfter(r.expr, time.Now(), false)
	if err != nil {
		logger.ErrorC("schedule", "Failed to compute next reload: "+err.Error())
		r.running = false
		r.mu.Unlock()
		return
	}
	r.nextRun = next
	r.mu.Unlock()

	r.reload()
	logger.InfoC("schedule", "Templates reloaded on schedule")
}
