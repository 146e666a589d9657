package vm

import (
	"fmt"
	"time"

	"github.com/dop251/goja"
)

// RuntimeConfig defines limits for one sandboxed evaluation runtime.
type RuntimeConfig struct {
	ExecTimeout   time.Duration // per-evaluation wall clock limit
	MaxStackDepth int           // goja call stack size
}

// DefaultRuntimeConfig returns limits suitable for untrusted composition
// code.
func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		ExecTimeout:   5 * time.Second,
		MaxStackDepth: 1024,
	}
}

// runtime wraps a goja VM with security controls. Not safe for concurrent
// use; the owning engine serializes access.
type runtime struct {
	vm     *goja.Runtime
	config RuntimeConfig
}

// newRuntime creates a locked-down goja VM: Node globals removed, timers
// neutered, stack depth capped.
func newRuntime(config RuntimeConfig) *runtime {
	gvm := goja.New()
	if config.MaxStackDepth > 0 {
		gvm.SetMaxCallStackSize(config.MaxStackDepth)
	}
	r := &runtime{vm: gvm, config: config}
	r.lockdown()
	return r
}

func (r *runtime) lockdown() {
	// Remove dangerous globals.
	r.vm.Set("require", goja.Undefined())
	r.vm.Set("process", goja.Undefined())
	r.vm.Set("module", goja.Undefined())
	r.vm.Set("exports", goja.Undefined())

	// Timers are no-ops: the frame clock is the only scheduler.
	noop := func(call goja.FunctionCall) goja.Value { return goja.Undefined() }
	r.vm.Set("setTimeout", noop)
	r.vm.Set("setInterval", noop)
}

// run evaluates script with the configured wall-clock limit, interrupting
// the VM if it is exceeded.
func (r *runtime) run(name, script string) (goja.Value, error) {
	timer := time.AfterFunc(r.config.ExecTimeout, func() {
		r.vm.Interrupt("execution timeout exceeded")
	})
	defer timer.Stop()

	val, err := r.vm.RunScript(name, script)
	if err != nil {
		return nil, err
	}
	return val, nil
}

// call invokes a previously defined global function, if present. Returns
// false if no such callable exists.
func (r *runtime) call(name string, args ...any) (bool, error) {
	val := r.vm.Get(name)
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return false, nil
	}
	fn, ok := goja.AssertFunction(val)
	if !ok {
		return false, nil
	}

	timer := time.AfterFunc(r.config.ExecTimeout, func() {
		r.vm.Interrupt("execution timeout exceeded")
	})
	defer timer.Stop()

	gojaArgs := make([]goja.Value, len(args))
	for i, a := range args {
		gojaArgs[i] = r.vm.ToValue(a)
	}
	if _, err := fn(goja.Undefined(), gojaArgs...); err != nil {
		return true, fmt.Errorf("calling %s: %w", name, err)
	}
	return true, nil
}

// setGlobal exposes a host value to the script.
func (r *runtime) setGlobal(name string, value any) {
	r.vm.Set(name, value)
}
