package vm

import (
	"errors"

	"github.com/jbweber/harrow/internal/fault"
	"github.com/jbweber/harrow/internal/hypervisor"
	"github.com/jbweber/harrow/internal/reconcile"
)

// transition drives a domain toward a power state.
type transition struct {
	verb string
	// done reports whether the domain reached the target.
	done func(hypervisor.PowerState) bool
	// doneMsg is logged when the target is reached.
	doneMsg string
	act     func(hypervisor.Domain) error
	failMsg string
	// stuckMsg is the recoverable error once the attempts are exhausted.
	stuckMsg string
}

func isRunning(s hypervisor.PowerState) bool { return s == hypervisor.StateRunning }
func notRunning(s hypervisor.PowerState) bool { return s != hypervisor.StateRunning }

var (
	stopTransition = transition{
		verb:     "stop",
		done:     notRunning,
		doneMsg:  "Looks as not run.",
		act:      hypervisor.Domain.Shutdown,
		failMsg:  "Can not shutdown guest domain.",
		stuckMsg: "Domain %s is still running, try later.",
	}
	suspendTransition = transition{
		verb:     "suspend",
		done:     notRunning,
		doneMsg:  "Looks as not run.",
		act:      hypervisor.Domain.Suspend,
		failMsg:  "Can not suspend guest domain.",
		stuckMsg: "Domain %s is still running, try later.",
	}
	resumeTransition = transition{
		verb:     "resume",
		done:     isRunning,
		doneMsg:  "Looks as running.",
		act:      hypervisor.Domain.Resume,
		failMsg:  "Can not resume guest domain.",
		stuckMsg: "Domain %s is not running yet, try later.",
	}
)

func (t transition) run(op *reconcile.Op, d hypervisor.Domain) error {
	attempts := op.Retry().Attempts
	err := reconcile.Converge(op, func(i int) (bool, error) {
		s, err := powerState(d)
		if err != nil {
			return false, err
		}
		if t.done(s) {
			op.Log.Info(t.doneMsg)
			return true, nil
		}
		op.Log.Infof("Trying to %s vm %d/%d", t.verb, i, attempts)
		if err := t.act(d); err != nil {
			return false, fault.WrapNonRecoverable(err, "%s", t.failMsg)
		}
		return false, nil
	})
	if errors.Is(err, reconcile.ErrNotConverged) {
		return fault.Recoverable(t.stuckMsg, d.Name())
	}
	return err
}

// Start boots the domain and waits until it runs. With wait_for_ip the
// domain must also report an address; running out of attempts is then
// recoverable.
func Start(op *reconcile.Op) error {
	op.Log.Info("start")
	if err := op.Require("No servers for start"); err != nil {
		return err
	}

	p := op.Params()
	waitForIP := p.Bool("wait_for_ip")
	source, err := hypervisor.ParseAddressSource(p.String("address_source"))
	if err != nil {
		return fault.WrapNonRecoverable(err, "Invalid address_source")
	}

	return withDomain(op, func(_ hypervisor.Conn, d hypervisor.Domain) error {
		attempts := op.Retry().Attempts
		err := reconcile.Converge(op, func(i int) (bool, error) {
			s, err := powerState(d)
			if err != nil {
				return false, err
			}
			op.Log.Infof("Trying to start vm %d/%d", i, attempts)
			if waitForIP {
				op.Log.Info("Waiting for ip.")
			}
			if s == hypervisor.StateRunning {
				if _, err := UpdateNetworks(op, d, source); err != nil {
					op.Log.WithError(err).Warn("network discovery failed")
				}
				if !waitForIP || op.Instance.IP() != "" {
					op.Log.Info("Looks as running.")
					return true, nil
				}
				return false, nil
			}
			if err := d.Create(); err != nil {
				return false, fault.WrapNonRecoverable(err, "Can not start guest domain.")
			}
			return false, nil
		})
		if errors.Is(err, reconcile.ErrNotConverged) {
			if waitForIP {
				return fault.Recoverable("No ip for now, try later")
			}
			op.Log.Warnf("Domain %s did not report running after %d attempts", d.Name(), attempts)
			return nil
		}
		return err
	})
}

// Stop shuts the domain down gracefully and forgets its ip. External
// domains are never stopped.
func Stop(op *reconcile.Op) error {
	op.Log.Info("stop")
	if op.Skip("No servers for stop") {
		return nil
	}
	return withDomain(op, func(_ hypervisor.Conn, d hypervisor.Domain) error {
		op.Instance.SetIP("")
		return stopTransition.run(op, d)
	})
}

// Suspend pauses a running domain.
func Suspend(op *reconcile.Op) error {
	op.Log.Info("suspend")
	if err := op.Require("No servers for suspend"); err != nil {
		return err
	}
	return withDomain(op, func(_ hypervisor.Conn, d hypervisor.Domain) error {
		return suspendTransition.run(op, d)
	})
}

// Resume continues a paused domain.
func Resume(op *reconcile.Op) error {
	op.Log.Info("resume")
	if err := op.Require("No servers for resume"); err != nil {
		return err
	}
	return withDomain(op, func(_ hypervisor.Conn, d hypervisor.Domain) error {
		return resumeTransition.run(op, d)
	})
}

// Reboot asks the guest to reboot.
func Reboot(op *reconcile.Op) error {
	op.Log.Info("reboot")
	if err := op.Require("No servers for reboot"); err != nil {
		return err
	}
	return withDomain(op, func(_ hypervisor.Conn, d hypervisor.Domain) error {
		if err := d.Reboot(); err != nil {
			return fault.WrapNonRecoverable(err, "Can not reboot guest domain.")
		}
		return nil
	})
}

// Update applies memory_size live. vcpu and memory_maxsize can only change
// while the domain is not running and are skipped otherwise.
func Update(op *reconcile.Op) error {
	op.Log.Info("set vcpu/memory values")
	if err := op.Require("No servers for update"); err != nil {
		return err
	}
	p := op.Params()

	return withDomain(op, func(_ hypervisor.Conn, d hypervisor.Domain) error {
		if p.Truthy("memory_size") {
			op.Log.Infof("Set memory to %d", p.Uint64("memory_size"))
			if err := d.SetMemory(p.Uint64("memory_size")); err != nil {
				return fault.WrapNonRecoverable(err, "Can not change memory amount.")
			}
		}

		s, err := powerState(d)
		if err != nil {
			return err
		}
		if s == hypervisor.StateRunning {
			op.Log.Info("CPU/Maximum memory size count should be changed on stopped vm.")
			return nil
		}

		if p.Truthy("vcpu") {
			op.Log.Infof("Set cpu count to %d", p.Int("vcpu"))
			if err := d.SetVcpus(uint32(p.Int("vcpu"))); err != nil {
				return fault.WrapNonRecoverable(err, "Can not change cpu count.")
			}
		}

		if p.Truthy("memory_maxsize") {
			op.Log.Infof("Set max memory to %d", p.Uint64("memory_maxsize"))
			if err := d.SetMaxMemory(p.Uint64("memory_maxsize")); err != nil {
				return fault.WrapNonRecoverable(err, "Can not change max memory amount.")
			}
		}
		return nil
	})
}
