// Package glutbridge hands the host's windowing functions to a
// separately built windowing-shim library through its "reg_fn_<name>"
// registration symbols.
package glutbridge

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/enginelauncher/pkg/dynlib"
	"github.com/xaionaro-go/xsync"
)

// Policy defines what RegisterAll does when a registration symbol is
// missing.
type Policy int

const (
	// PolicySkipMissing logs the miss and continues with the next entry point.
	PolicySkipMissing = Policy(iota)

	// PolicyStopOnFirstMiss stops the pass at the first miss, leaving the
	// rest of the table unregistered.
	PolicyStopOnFirstMiss
)

func (p Policy) String() string {
	switch p {
	case PolicySkipMissing:
		return "skip_missing"
	case PolicyStopOnFirstMiss:
		return "stop_on_first_miss"
	default:
		return fmt.Sprintf("<unknown_policy_%d>", int(p))
	}
}

func PolicyFromString(s string) (Policy, error) {
	for _, p := range []Policy{PolicySkipMissing, PolicyStopOnFirstMiss} {
		if p.String() == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown registration policy '%s'", s)
}

func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Policy) UnmarshalText(b []byte) error {
	v, err := PolicyFromString(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// CallbackFactory exports a Go function as a C function pointer.
type CallbackFactory func(fn any) (uintptr, error)

type Bridge struct {
	Policy      Policy
	NewCallback CallbackFactory

	locker    xsync.Mutex
	callbacks map[string]uintptr
	slots     map[string]*Slot
	order     []string
}

func New(policy Policy) *Bridge {
	return &Bridge{
		Policy:      policy,
		NewCallback: NewCCallback,
		callbacks:   map[string]uintptr{},
		slots:       map[string]*Slot{},
	}
}

// RegisterAll registers every entry point with the shim, in order. Slots
// filled by a previous call are left untouched, so calling it again with
// the same shim and table changes nothing.
func (b *Bridge) RegisterAll(
	ctx context.Context,
	shim dynlib.Library,
	entryPoints []EntryPoint,
) (_ret *RegistrationReport, _err error) {
	logger.Debugf(ctx, "RegisterAll(ctx, '%s', [%d entry points])", shim.Path(), len(entryPoints))
	defer func() { logger.Debugf(ctx, "/RegisterAll(ctx, '%s'): %v", shim.Path(), _err) }()
	return xsync.DoR2(ctx, &b.locker, func() (*RegistrationReport, error) {
		return b.registerAllLocked(ctx, shim, entryPoints)
	})
}

func (b *Bridge) registerAllLocked(
	ctx context.Context,
	shim dynlib.Library,
	entryPoints []EntryPoint,
) (*RegistrationReport, error) {
	report := &RegistrationReport{Shim: shim.Path()}
	for idx, ep := range entryPoints {
		slot := b.slotLocked(ep)
		if slot.IsRegistered() {
			logger.Tracef(ctx, "%s is already registered with '%s'", ep.Name, slot.Shim)
			report.add(ep.Name, OutcomeAlreadyRegistered)
			continue
		}

		register, err := lookupRegistration(shim, ep)
		if err != nil {
			logger.Warnf(ctx, "could not find %s in '%s': %v", ep.RegistrationSymbol(), shim.Path(), err)
			report.add(ep.Name, OutcomeNotFound)
			if b.Policy != PolicyStopOnFirstMiss {
				continue
			}
			var skipped []string
			for _, rest := range entryPoints[idx+1:] {
				if slot, ok := b.slots[rest.Name]; ok && slot.IsRegistered() {
					report.add(rest.Name, OutcomeAlreadyRegistered)
					continue
				}
				report.add(rest.Name, OutcomeSkipped)
				skipped = append(skipped, rest.Name)
			}
			return report, &RegistrationAbortedError{
				Shim:    shim.Path(),
				Missing: ep.RegistrationSymbol(),
				Skipped: skipped,
				Cause:   err,
			}
		}
		logger.Debugf(ctx, "loaded %s from '%s'", ep.RegistrationSymbol(), shim.Path())

		addr, err := b.callbackLocked(ep)
		if err != nil {
			return report, err
		}

		register.Register(addr)
		slot.Addr = addr
		slot.Shim = shim.Path()
		report.add(ep.Name, OutcomeRegistered)
		logger.Debugf(ctx, "registered %s", ep.Name)
	}
	return report, nil
}

func (b *Bridge) slotLocked(ep EntryPoint) *Slot {
	if slot, ok := b.slots[ep.Name]; ok {
		return slot
	}
	slot := &Slot{
		Name:               ep.Name,
		RegistrationSymbol: ep.RegistrationSymbol(),
	}
	b.slots[ep.Name] = slot
	b.order = append(b.order, ep.Name)
	return slot
}

// callbackLocked returns the C address of the entry point's Go
// implementation, creating it once.
func (b *Bridge) callbackLocked(ep EntryPoint) (uintptr, error) {
	if addr, ok := b.callbacks[ep.Name]; ok {
		return addr, nil
	}
	if err := ep.Validate(); err != nil {
		return 0, err
	}
	addr, err := b.NewCallback(ep.Func)
	if err != nil {
		return 0, fmt.Errorf("unable to export %s: %w", ep.Name, err)
	}
	if addr == 0 {
		return 0, fmt.Errorf("unable to export %s: got a nil function pointer", ep.Name)
	}
	b.callbacks[ep.Name] = addr
	return addr, nil
}

// Table returns a snapshot of the function pointer table.
func (b *Bridge) Table(ctx context.Context) FunctionPointerTable {
	return xsync.DoR1(ctx, &b.locker, func() FunctionPointerTable {
		result := make(FunctionPointerTable, 0, len(b.order))
		for _, name := range b.order {
			result = append(result, *b.slots[name])
		}
		return result
	})
}

// CallbackAddr returns the address created for the entry point, if any.
func (b *Bridge) CallbackAddr(ctx context.Context, name string) (uintptr, bool) {
	return xsync.DoR2(ctx, &b.locker, func() (uintptr, bool) {
		addr, ok := b.callbacks[name]
		return addr, ok
	})
}

// registrationFunc is a resolved "reg_fn_<name>" symbol: a C function
// taking the host implementation's function pointer.
type registrationFunc struct {
	symbol dynlib.Symbol
}

func (f registrationFunc) Register(fnPtr uintptr) {
	f.symbol.Call(fnPtr)
}

func lookupRegistration(
	shim dynlib.Library,
	ep EntryPoint,
) (registrationFunc, error) {
	symbol, err := shim.Lookup(ep.RegistrationSymbol())
	if err != nil {
		return registrationFunc{}, err
	}
	return registrationFunc{symbol: symbol}, nil
}
