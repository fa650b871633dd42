package sim

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

var ErrUnknownFault = errors.New("unknown fault")

var faultSetters = map[string]func(*Faults){
	"autocal-stuck":       func(f *Faults) { f.AutoCalStuck = true },
	"clock-unstable":      func(f *Faults) { f.ClockUnstable = true },
	"no-64bit":            func(f *Faults) { f.No64Bit = true },
	"dll-calibrate-stuck": func(f *Faults) { f.DLLCalibrateStuck = true },
	"dll-finalize-stuck":  func(f *Faults) { f.DLLFinalizeStuck = true },
}

// FaultNames lists the names accepted by ParseFaults, sorted.
func FaultNames() []string {
	names := maps.Keys(faultSetters)
	slices.Sort(names)
	return names
}

// ParseFaults builds a fault set from names such as "autocal-stuck".
// Empty names are ignored.
func ParseFaults(names ...string) (Faults, error) {
	var f Faults
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		set, ok := faultSetters[name]
		if !ok {
			return Faults{}, fmt.Errorf("%w %q (known: %s)", ErrUnknownFault, name, strings.Join(FaultNames(), ", "))
		}
		set(&f)
	}
	return f, nil
}
