package toolchain

// Flags is an ordered set of compiler flags in a compiler-agnostic form.
// Drivers translate them to the concrete syntax of their tools, so the
// order in which flags are set is the order they appear on the command line.
type Flags struct {
	entries []flagEntry
}

type flagEntry struct {
	name     string
	values   []string
	isToggle bool
}

func (f *Flags) index(name string) int {
	for i := range f.entries {
		if f.entries[i].name == name {
			return i
		}
	}
	return -1
}

// Set assigns values to the named flag, replacing previous values while
// keeping the flag's position. Setting no values is a no-op.
func (f *Flags) Set(name string, values ...string) {
	if len(values) == 0 {
		return
	}

	values = append([]string(nil), values...)

	if i := f.index(name); i >= 0 {
		f.entries[i].values = values
		f.entries[i].isToggle = false
		return
	}

	f.entries = append(f.entries, flagEntry{name: name, values: values})
}

// Toggle enables a flag that takes no value.
func (f *Flags) Toggle(name string) {
	if i := f.index(name); i >= 0 {
		f.entries[i].values = nil
		f.entries[i].isToggle = true
		return
	}

	f.entries = append(f.entries, flagEntry{name: name, isToggle: true})
}

// Has reports whether the named flag is set or toggled.
func (f *Flags) Has(name string) bool {
	return f.index(name) >= 0
}

// Get returns the values of the named flag.
func (f *Flags) Get(name string) []string {
	if i := f.index(name); i >= 0 {
		return f.entries[i].values
	}
	return nil
}

// Merge applies other on top of f. Flags from other override the ones in f.
func (f *Flags) Merge(other Flags) {
	other.Range(func(name string, values []string, isToggle bool) {
		if isToggle {
			f.Toggle(name)
		} else {
			f.Set(name, values...)
		}
	})
}

// Range calls fn for every flag, in order.
func (f *Flags) Range(fn func(name string, values []string, isToggle bool)) {
	for _, e := range f.entries {
		fn(e.name, e.values, e.isToggle)
	}
}

// Len returns the number of distinct flags.
func (f *Flags) Len() int {
	return len(f.entries)
}
