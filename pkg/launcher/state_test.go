package launcher

import (
	"strings"
	"testing"
)

func TestStateStrings(t *testing.T) {
	seen := map[string]State{}
	for _, s := range AllStates() {
		str := s.String()
		if strings.HasPrefix(str, "<unknown") {
			t.Fatalf("state %d has no name", int(s))
		}
		if prev, ok := seen[str]; ok {
			t.Fatalf("states %d and %d share the name '%s'", int(prev), int(s), str)
		}
		seen[str] = s
	}
	if first, last := AllStates()[0], AllStates()[len(AllStates())-1]; first != StateIdle || last != StateTerminal {
		t.Fatalf("unexpected bounds: %s..%s", first, last)
	}
}

func TestExitCodesAreDistinct(t *testing.T) {
	codes := []ExitCode{
		ExitCodeOK,
		ExitCodeConfig,
		ExitCodeEngineLoad,
		ExitCodeShimDependencyNotFound,
		ExitCodeShimLoad,
		ExitCodeRegistrationAborted,
		ExitCodeEntrySymbolMissing,
		ExitCodeEntryArguments,
	}
	seen := map[ExitCode]bool{}
	for _, c := range codes {
		if seen[c] {
			t.Fatalf("duplicate exit code %d", int(c))
		}
		seen[c] = true
		if c != ExitCodeOK && int(c) == 0 {
			t.Fatalf("%s must be non-zero", c)
		}
	}
}
