package vm

import (
	"github.com/jbweber/harrow/internal/fault"
	"github.com/jbweber/harrow/internal/hypervisor"
	"github.com/jbweber/harrow/internal/reconcile"
	"github.com/jbweber/harrow/internal/state"
)

// Performance samples CPU usage over the sampling window as a percentage
// of one CPU and records it with the balloon size in MiB.
func Performance(op *reconcile.Op) error {
	op.Log.Info("update statistics")
	if err := op.Require("No servers for statistics."); err != nil {
		return err
	}
	window := op.Retry().SampleInterval
	if window <= 0 {
		window = reconcile.DefaultRetry().SampleInterval
	}

	return withDomain(op, func(_ hypervisor.Conn, d hypervisor.Domain) error {
		before, err := d.CPUTime()
		if err != nil {
			return fault.WrapNonRecoverable(err, "Can not read cpu time of %s", d.Name())
		}
		op.Log.Debugf("Used: %v seconds.", float64(before)/1e9)

		if err := op.Sleep(window); err != nil {
			return fault.WrapRecoverable(err, "Interrupted while sampling")
		}

		after, err := d.CPUTime()
		if err != nil {
			return fault.WrapNonRecoverable(err, "Can not read cpu time of %s", d.Name())
		}
		mem, err := d.MemoryStats()
		if err != nil {
			return fault.WrapNonRecoverable(err, "Can not read memory stats of %s", d.Name())
		}

		var used float64
		if after > before {
			used = float64(after-before) / 1e9
		}
		stat := state.Stat{
			CPU:    100 * used / window.Seconds(),
			Memory: float64(mem.Actual) / 1024.0,
		}
		op.Instance.SetStat(stat)
		op.Log.Infof("Statistics: %+v", stat)
		return nil
	})
}
