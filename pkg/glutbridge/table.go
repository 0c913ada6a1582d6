package glutbridge

// Slot holds the address handed to the shim for one entry point; a zero
// Addr means the entry point is not registered.
type Slot struct {
	Name               string
	RegistrationSymbol string
	Addr               uintptr
	Shim               string
}

func (s Slot) IsRegistered() bool {
	return s.Addr != 0
}

// FunctionPointerTable is a snapshot of all slots in table order.
type FunctionPointerTable []Slot

func (t FunctionPointerTable) Get(name string) (Slot, bool) {
	for _, s := range t {
		if s.Name == name {
			return s, true
		}
	}
	return Slot{}, false
}

func (t FunctionPointerTable) Registered() int {
	n := 0
	for _, s := range t {
		if s.IsRegistered() {
			n++
		}
	}
	return n
}
