package zeal

import (
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/wippyai/gcroot/errors"
)

// Mode is a single zeal mode. Numbers match the conventional table.
type Mode uint8

const (
	ModeNone                        Mode = 0
	ModeRootsChange                 Mode = 1
	ModeAlloc                       Mode = 2
	ModeVerifierPre                 Mode = 4
	ModeGenerationalGC              Mode = 7
	ModeIncrementalMultipleSlices   Mode = 10
	ModeIncrementalMarkingValidator Mode = 11
	ModeCompact                     Mode = 14
	ModeCheckHeapAfterGC            Mode = 15
)

// DefaultFrequency is used when a setting does not give one.
const DefaultFrequency = 100

// ErrHelp is returned by Parse when the mode table was requested.
var ErrHelp = stderrors.New("zeal: mode table requested")

type modeInfo struct {
	name string
	desc string
	mode Mode
}

var modeTable = []modeInfo{
	{mode: ModeNone, name: "None", desc: "Normal amount of collection (resets all modes)"},
	{mode: ModeRootsChange, name: "RootsChange", desc: "Collect when stack roots are added or removed"},
	{mode: ModeAlloc, name: "Alloc", desc: "Collect every N allocations (default: 100)"},
	{mode: ModeVerifierPre, name: "VerifierPre", desc: "Verify pre write barriers every N allocations"},
	{mode: ModeGenerationalGC, name: "GenerationalGC", desc: "Collect the nursery every N nursery allocations"},
	{mode: ModeIncrementalMultipleSlices, name: "IncrementalMultipleSlices", desc: "Run an incremental GC slice every N allocations"},
	{mode: ModeIncrementalMarkingValidator, name: "IncrementalMarkingValidator", desc: "Verify incremental marking against a full mark"},
	{mode: ModeCompact, name: "Compact", desc: "Perform a compacting collection every N allocations"},
	{mode: ModeCheckHeapAfterGC, name: "CheckHeapAfterGC", desc: "Check every edge resolves after each collection"},
}

func (m Mode) String() string {
	for _, info := range modeTable {
		if info.mode == m {
			return info.name
		}
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

// Modes returns every known mode in table order.
func Modes() []Mode {
	out := make([]Mode, len(modeTable))
	for i, info := range modeTable {
		out[i] = info.mode
	}
	return out
}

// Table renders the mode table for diagnostics.
func Table() string {
	var b strings.Builder
	b.WriteString("Format: mode[;mode[;mode...]][,N]\n")
	b.WriteString("  Modes may be given by number or name. N defaults to ")
	b.WriteString(strconv.Itoa(DefaultFrequency))
	b.WriteString(".\n\n")
	for _, info := range modeTable {
		fmt.Fprintf(&b, "  %2d  %-28s %s\n", info.mode, info.name, info.desc)
	}
	b.WriteString("\n  help (or -1) prints this table.")
	return b.String()
}

func lookupMode(s string) (Mode, bool) {
	if n, err := strconv.Atoi(s); err == nil {
		for _, info := range modeTable {
			if int(info.mode) == n {
				return info.mode, true
			}
		}
		return 0, false
	}
	for _, info := range modeTable {
		if strings.EqualFold(info.name, s) {
			return info.mode, true
		}
	}
	return 0, false
}

// Settings is a parsed zeal configuration. The zero value is disabled.
type Settings struct {
	modes     uint32
	Frequency int
}

// Enabled reports whether any mode is active.
func (s Settings) Enabled() bool { return s.modes != 0 }

// Has reports whether m is active.
func (s Settings) Has(m Mode) bool {
	return m != ModeNone && s.modes&(1<<m) != 0
}

// With returns s with m enabled. ModeNone clears every mode.
func (s Settings) With(m Mode) Settings {
	if m == ModeNone {
		s.modes = 0
		return s
	}
	s.modes |= 1 << m
	if s.Frequency <= 0 {
		s.Frequency = DefaultFrequency
	}
	return s
}

// Active lists the enabled modes in table order.
func (s Settings) Active() []Mode {
	var out []Mode
	for _, info := range modeTable {
		if s.Has(info.mode) {
			out = append(out, info.mode)
		}
	}
	return out
}

func (s Settings) String() string {
	if !s.Enabled() {
		return "none"
	}
	parts := make([]string, 0, 4)
	for _, m := range s.Active() {
		parts = append(parts, strconv.Itoa(int(m)))
	}
	return strings.Join(parts, ";") + "," + strconv.Itoa(s.Frequency)
}

// Parse reads a setting of the form "mode[;mode...][,N]". An empty string is
// the disabled setting. "help" or "-1" returns ErrHelp.
func Parse(setting string) (Settings, error) {
	setting = strings.TrimSpace(setting)
	if setting == "" {
		return Settings{}, nil
	}
	if strings.EqualFold(setting, "help") || setting == "-1" {
		return Settings{}, ErrHelp
	}

	modesPart, freqPart, hasFreq := strings.Cut(setting, ",")
	s := Settings{Frequency: DefaultFrequency}

	if hasFreq {
		n, err := strconv.Atoi(strings.TrimSpace(freqPart))
		if err != nil || n <= 0 {
			return Settings{}, errors.New(errors.PhaseZeal, errors.KindInvalidInput).
				Label(setting).
				Detail("frequency %q must be a positive integer", freqPart).
				Build()
		}
		s.Frequency = n
	}

	for _, name := range strings.Split(modesPart, ";") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		m, ok := lookupMode(name)
		if !ok {
			return Settings{}, errors.New(errors.PhaseZeal, errors.KindNotFound).
				Label(setting).
				Detail("unknown zeal mode %q\n%s", name, Table()).
				Build()
		}
		s = s.With(m)
	}

	if !s.Enabled() {
		return Settings{}, nil
	}
	return s, nil
}
