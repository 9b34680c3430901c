// Package health probes the services the API depends on
package health

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	// StatusSimulated marks notification channels running without credentials
	StatusSimulated = "simulated"
	StatusDisabled  = "disabled"
)

const probeTimeout = 3 * time.Second

// Probe returns nil when the dependency works
type Probe func(ctx context.Context) error

// Pinger is satisfied by *sql.DB
type Pinger interface {
	PingContext(ctx context.Context) error
}

type component struct {
	name     string
	probe    Probe
	critical bool
	static   string
}

type Check struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latencyMs,omitempty"`
	Error     string `json:"error,omitempty"`
}

type Report struct {
	Status    string           `json:"status"`
	Checks    map[string]Check `json:"checks"`
	CheckedAt time.Time        `json:"checkedAt"`
}

// Runtime is extra detail for the admin view
type Runtime struct {
	Version    string `json:"version"`
	Uptime     string `json:"uptime"`
	Goroutines int    `json:"goroutines"`
	HeapMB     uint64 `json:"heapMB"`
}

type Checker struct {
	components []component
	started    time.Time
	version    string
}

func NewChecker(version string) *Checker {
	return &Checker{started: time.Now(), version: version}
}

// Critical registers a probe whose failure makes the whole service unhealthy
func (c *Checker) Critical(name string, p Probe) *Checker {
	c.components = append(c.components, component{name: name, probe: p, critical: true})
	return c
}

// Optional registers a probe whose failure only degrades the service
func (c *Checker) Optional(name string, p Probe) *Checker {
	c.components = append(c.components, component{name: name, probe: p})
	return c
}

// Static reports a fixed status, used for disabled or simulated components
func (c *Checker) Static(name, status string) *Checker {
	c.components = append(c.components, component{name: name, static: status})
	return c
}

func PingProbe(p Pinger) Probe {
	return p.PingContext
}

// Check runs every probe concurrently
func (c *Checker) Check(ctx context.Context) Report {
	r := Report{
		Status:    StatusHealthy,
		Checks:    make(map[string]Check, len(c.components)),
		CheckedAt: time.Now().UTC(),
	}

	var (
		mu sync.Mutex
		wg conc.WaitGroup
	)

	for _, comp := range c.components {
		if comp.probe == nil {
			r.Checks[comp.name] = Check{Status: comp.static}
			continue
		}

		wg.Go(func() {
			pctx, cancel := context.WithTimeout(ctx, probeTimeout)
			defer cancel()

			start := time.Now()
			err := comp.probe(pctx)

			res := Check{Status: StatusHealthy, LatencyMs: time.Since(start).Milliseconds()}
			if err != nil {
				res.Status = StatusUnhealthy
				res.Error = err.Error()
			}

			mu.Lock()
			defer mu.Unlock()

			r.Checks[comp.name] = res
			if err == nil {
				return
			}

			if comp.critical {
				r.Status = StatusUnhealthy
			} else if r.Status == StatusHealthy {
				r.Status = StatusDegraded
			}
		})
	}

	wg.Wait()
	return r
}

// Public strips error details so they don't leak to anonymous callers
func (r Report) Public() Report {
	out := Report{
		Status:    r.Status,
		Checks:    make(map[string]Check, len(r.Checks)),
		CheckedAt: r.CheckedAt,
	}

	for k, v := range r.Checks {
		out.Checks[k] = Check{Status: v.Status}
	}

	return out
}

func (c *Checker) Runtime() Runtime {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return Runtime{
		Version:    c.version,
		Uptime:     time.Since(c.started).Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
		HeapMB:     m.HeapAlloc / 1024 / 1024,
	}
}
