// Package taskctx provides a minimal interfaces.TaskContext: a completion
// hook list run exactly once, covering success, failure, and cancellation
// alike, so a Sorter registered via WithTaskContext always gets its
// CleanupResources call regardless of how the owning task ends.
package taskctx

import "sync"

// Context is the reference TaskContext.
type Context struct {
	mu    sync.Mutex
	hooks []func()
	done  bool
}

func New() *Context { return &Context{} }

// OnCompletion registers hook to run once this context completes. If the
// context already completed, hook runs immediately.
func (c *Context) OnCompletion(hook func()) {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		hook()
		return
	}
	c.hooks = append(c.hooks, hook)
	c.mu.Unlock()
}

// Complete runs every registered hook exactly once. Safe to call more
// than once or from a failure or cancellation path — only the first call
// has any effect.
func (c *Context) Complete() {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return
	}
	c.done = true
	hooks := c.hooks
	c.hooks = nil
	c.mu.Unlock()

	for _, h := range hooks {
		h()
	}
}

// Cancel is an alias for Complete: cancellation guarantees cleanup the
// same way normal completion does.
func (c *Context) Cancel() { c.Complete() }
