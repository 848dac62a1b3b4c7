package domain

import (
	"fmt"

	"github.com/integrationkit/apphost/capture"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// RunOnce applies configuration overrides and bootstraps the application. It must be called
// exactly once, before any work is submitted; later calls return ErrAlreadyInitialized, even
// if the first one failed.
//
// Only overrides whose key is already a setting of the application are applied. The
// bootstrap then creates a handler instance, installs the capture interceptor on it and on
// the runtime, rebuilds the instance's handler chain so the hook takes effect, and returns
// the instance to the pool, so that every request sees a fully set up instance.
func (d *Domain) RunOnce(overrides map[string]string) error {
	d.callLock.Lock()
	defer d.callLock.Unlock()

	d.lock.Lock()
	switch {
	case d.closed:
		d.lock.Unlock()
		return ErrClosed
	case d.attempted:
		d.lock.Unlock()
		return ErrAlreadyInitialized
	}
	d.attempted = true
	d.lock.Unlock()

	applied := d.applyOverrides(overrides)

	inst, err := d.runtime.GetOrCreateInstance()
	if err != nil {
		d.logger.Printf("Bootstrap failed: %s", err)
		return err
	}
	capture.Install(d.runtime, inst)
	if err := d.runtime.RebuildHandlerChain(inst); err != nil {
		d.runtime.RecycleInstance(inst)
		d.logger.Printf("Bootstrap failed: %s", err)
		return fmt.Errorf("rebuilding handler chain: %w", err)
	}
	d.runtime.RecycleInstance(inst)
	d.box.Reset()

	d.lock.Lock()
	d.overrides = applied
	d.state = Initialized
	d.lock.Unlock()
	d.metrics.bootstraps.Inc()
	d.logger.Printf("Initialized with %d override(s)", len(applied))
	return nil
}

func (d *Domain) applyOverrides(overrides map[string]string) map[string]string {
	settings := d.runtime.Settings()
	applied := make(map[string]string)
	keys := maps.Keys(overrides)
	slices.Sort(keys)
	for _, k := range keys {
		if settings.Set(k, overrides[k]) {
			applied[k] = overrides[k]
			d.logger.Printf("Setting %q overridden", k)
		} else {
			d.logger.Printf("Ignoring override for unknown setting %q", k)
		}
	}
	return applied
}
