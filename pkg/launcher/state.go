package launcher

import (
	"fmt"
)

// State is a step of the bootstrap sequence. The sequence only moves forward.
type State int

const (
	StateIdle = State(iota)
	StateWindowSizeInitialized
	StateLogRedirectionStarted
	StateEngineLibraryLoaded
	StateShimLibraryLoaded
	StateAllSymbolsRegistered
	StateEngineEntryInvoked
	StateTerminal
	endOfState
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWindowSizeInitialized:
		return "window_size_initialized"
	case StateLogRedirectionStarted:
		return "log_redirection_started"
	case StateEngineLibraryLoaded:
		return "engine_library_loaded"
	case StateShimLibraryLoaded:
		return "shim_library_loaded"
	case StateAllSymbolsRegistered:
		return "all_symbols_registered"
	case StateEngineEntryInvoked:
		return "engine_entry_invoked"
	case StateTerminal:
		return "terminal"
	default:
		return fmt.Sprintf("<unknown_state_%d>", int(s))
	}
}

func AllStates() []State {
	result := make([]State, 0, int(endOfState))
	for s := StateIdle; s < endOfState; s++ {
		result = append(result, s)
	}
	return result
}

// ExitCode is the process exit status the bootstrap sequence ended with.
type ExitCode int

const (
	ExitCodeOK                     = ExitCode(0)
	ExitCodeConfig                 = ExitCode(1)
	ExitCodeEngineLoad             = ExitCode(10)
	ExitCodeShimDependencyNotFound = ExitCode(11)
	ExitCodeShimLoad               = ExitCode(12)
	ExitCodeRegistrationAborted    = ExitCode(13)
	ExitCodeEntrySymbolMissing     = ExitCode(14)
	ExitCodeEntryArguments         = ExitCode(15)
)

func (c ExitCode) String() string {
	switch c {
	case ExitCodeOK:
		return "ok"
	case ExitCodeConfig:
		return "config"
	case ExitCodeEngineLoad:
		return "engine_load"
	case ExitCodeShimDependencyNotFound:
		return "shim_dependency_not_found"
	case ExitCodeShimLoad:
		return "shim_load"
	case ExitCodeRegistrationAborted:
		return "registration_aborted"
	case ExitCodeEntrySymbolMissing:
		return "entry_symbol_missing"
	case ExitCodeEntryArguments:
		return "entry_arguments"
	default:
		return fmt.Sprintf("<unknown_exit_code_%d>", int(c))
	}
}
