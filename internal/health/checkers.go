// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/cutroom/cutroom/internal/resilience"
)

// PingChecker reports a dependency reachable through a ping function, such as
// the SQLite pool or Redis.
type PingChecker struct {
	name     string
	ping     func(ctx context.Context) error
	optional bool
}

// NewPingChecker fails hard when ping fails.
func NewPingChecker(name string, ping func(ctx context.Context) error) *PingChecker {
	return &PingChecker{name: name, ping: ping}
}

// NewOptionalPingChecker only degrades when ping fails.
func NewOptionalPingChecker(name string, ping func(ctx context.Context) error) *PingChecker {
	return &PingChecker{name: name, ping: ping, optional: true}
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	if err := c.ping(ctx); err != nil {
		status := StatusUnhealthy
		if c.optional {
			status = StatusDegraded
		}
		return CheckResult{Status: status, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy, Message: "reachable"}
}

// WritableChecker verifies a storage root accepts new files.
type WritableChecker struct {
	name  string
	probe func() error
}

func NewWritableChecker(name string, probe func() error) *WritableChecker {
	return &WritableChecker{name: name, probe: probe}
}

func (c *WritableChecker) Name() string { return c.name }

func (c *WritableChecker) Check(context.Context) CheckResult {
	if err := c.probe(); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy, Message: "writable"}
}

// BinaryChecker looks up external tools on PATH. Missing required tools are
// unhealthy; missing optional ones degrade.
type BinaryChecker struct {
	required []string
	optional []string
	lookPath func(string) (string, error)
}

func NewBinaryChecker(required, optional []string) *BinaryChecker {
	return &BinaryChecker{required: required, optional: optional, lookPath: exec.LookPath}
}

func (c *BinaryChecker) Name() string { return "binaries" }

func (c *BinaryChecker) Check(context.Context) CheckResult {
	missing := func(bins []string) []string {
		var out []string
		for _, b := range bins {
			if _, err := c.lookPath(b); err != nil {
				out = append(out, b)
			}
		}
		return out
	}
	if m := missing(c.required); len(m) > 0 {
		return CheckResult{Status: StatusUnhealthy, Error: "not found: " + strings.Join(m, ", ")}
	}
	if m := missing(c.optional); len(m) > 0 {
		return CheckResult{Status: StatusDegraded, Message: "optional tools missing: " + strings.Join(m, ", ")}
	}
	return CheckResult{Status: StatusHealthy, Message: "all tools found"}
}

// BreakerChecker degrades while any upstream circuit is open.
type BreakerChecker struct {
	breakers []*resilience.CircuitBreaker
}

func NewBreakerChecker(breakers ...*resilience.CircuitBreaker) *BreakerChecker {
	return &BreakerChecker{breakers: breakers}
}

func (c *BreakerChecker) Name() string { return "upstreams" }

func (c *BreakerChecker) Check(context.Context) CheckResult {
	var open []string
	for _, b := range c.breakers {
		if b.State() != resilience.StateClosed {
			open = append(open, fmt.Sprintf("%s=%s", b.Name(), b.State()))
		}
	}
	if len(open) > 0 {
		sort.Strings(open)
		return CheckResult{Status: StatusDegraded, Message: strings.Join(open, ", ")}
	}
	return CheckResult{Status: StatusHealthy, Message: fmt.Sprintf("%d circuits closed", len(c.breakers))}
}

// QueueChecker degrades when the download queue is nearly full.
type QueueChecker struct {
	depth    func() int
	capacity int
}

func NewQueueChecker(depth func() int, capacity int) *QueueChecker {
	return &QueueChecker{depth: depth, capacity: capacity}
}

func (c *QueueChecker) Name() string { return "download_queue" }

func (c *QueueChecker) Check(context.Context) CheckResult {
	d := c.depth()
	msg := fmt.Sprintf("%d/%d queued", d, c.capacity)
	if c.capacity > 0 && d*10 >= c.capacity*9 {
		return CheckResult{Status: StatusDegraded, Message: msg}
	}
	return CheckResult{Status: StatusHealthy, Message: msg}
}
