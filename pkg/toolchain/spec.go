package toolchain

import (
	"fmt"
)

// Family identifies a compiler family and the runtime convention its output targets.
type Family string

const (
	FamilyGCC       Family = "gcc"
	FamilyMSVC      Family = "msvc"
	FamilyClangGNU  Family = "clang-gnu"
	FamilyClangMSVC Family = "clang-msvc"
)

// Families lists every known family in a stable order.
var Families = []Family{FamilyGCC, FamilyMSVC, FamilyClangGNU, FamilyClangMSVC}

// ParseFamily validates the textual representation of a family.
func ParseFamily(s string) (Family, error) {
	for _, f := range Families {
		if string(f) == s {
			return f, nil
		}
	}

	return "", fmt.Errorf("toolchain: unknown family %q", s)
}

// ABI returns the ABI family binaries produced by f belong to.
func (f Family) ABI() ABI {
	switch f {
	case FamilyGCC, FamilyClangGNU:
		return ABIGNU
	case FamilyMSVC, FamilyClangMSVC:
		return ABIMSVC
	default:
		return ABIUnknown
	}
}

// DefaultTarget returns the target triplet implied by the family.
func (f Family) DefaultTarget() string {
	switch f {
	case FamilyGCC:
		return "x86_64-w64-mingw32"
	case FamilyClangGNU:
		return "x86_64-windows-gnu"
	case FamilyMSVC:
		return "x86_64-pc-windows-msvc"
	case FamilyClangMSVC:
		return "x86_64-windows-msvc"
	default:
		return ""
	}
}

// ABI is the C runtime and calling convention family of a binary.
type ABI int

const (
	ABIUnknown ABI = iota
	ABIGNU
	ABIMSVC
)

var abiNames = [...]string{
	ABIUnknown: "unknown",
	ABIGNU:     "gnu",
	ABIMSVC:    "msvc",
}

func (a ABI) String() string {
	if a < 0 || int(a) >= len(abiNames) {
		return abiNames[ABIUnknown]
	}
	return abiNames[a]
}

func (a ABI) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *ABI) UnmarshalText(text []byte) error {
	for i, name := range abiNames {
		if name == string(text) {
			*a = ABI(i)
			return nil
		}
	}

	return fmt.Errorf("toolchain: unknown ABI %q", text)
}

// Spec defines one toolchain: how to invoke it and what it targets.
// Specs are values; once defined they are not modified.
type Spec struct {
	// ID identifies the toolchain on the command line and in reports.
	ID string `yaml:"id" json:"id"`
	// Family selects the driver.
	Family Family `yaml:"family" json:"family"`
	// Compiler is the compiler executable name or path.
	Compiler string `yaml:"compiler" json:"compiler"`
	// Archiver creates import libraries from module definition files.
	// Only MSVC style families use it.
	Archiver string `yaml:"archiver,omitempty" json:"archiver,omitempty"`
	// Target is the target triplet. Clang receives it through -target,
	// for the other families it is implied by the executable.
	Target string `yaml:"target,omitempty" json:"target,omitempty"`
	// ExtraArgs are appended verbatim to every compiler invocation.
	ExtraArgs []string `yaml:"extra_args,omitempty" json:"extra_args,omitempty"`
}

// DefaultSpecs returns the four toolchains of the reference setup.
func DefaultSpecs() []Spec {
	return []Spec{
		{ID: "gcc", Family: FamilyGCC, Compiler: "gcc", Target: FamilyGCC.DefaultTarget()},
		{ID: "msvc", Family: FamilyMSVC, Compiler: "cl", Archiver: "lib", Target: FamilyMSVC.DefaultTarget()},
		{ID: "clang-gnu", Family: FamilyClangGNU, Compiler: "clang", Target: FamilyClangGNU.DefaultTarget()},
		{ID: "clang-msvc", Family: FamilyClangMSVC, Compiler: "clang", Archiver: "llvm-lib", Target: FamilyClangMSVC.DefaultTarget()},
	}
}

// Validate reports whether the spec can be used to construct a toolchain.
func (s Spec) Validate() error {
	if !isValidID(s.ID) {
		return fmt.Errorf("toolchain: invalid id %q", s.ID)
	}

	if _, err := ParseFamily(string(s.Family)); err != nil {
		return fmt.Errorf("toolchain: %s: %w", s.ID, err)
	}

	if s.Compiler == "" {
		return fmt.Errorf("toolchain: %s: compiler is required", s.ID)
	}

	if s.Family.ABI() == ABIMSVC && s.Archiver == "" {
		return fmt.Errorf("toolchain: %s: archiver is required for family %s", s.ID, s.Family)
	}

	return nil
}

// TargetTriple returns the configured target or the family default.
func (s Spec) TargetTriple() string {
	if s.Target != "" {
		return s.Target
	}
	return s.Family.DefaultTarget()
}

func (s Spec) String() string {
	return fmt.Sprintf("%s (%s, %s)", s.ID, s.Family, s.TargetTriple())
}
