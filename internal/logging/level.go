package logging

// Level gates which diagnostics a Logger emits. Higher values are strictly
// more verbose than lower ones, so a Logger's threshold is a single
// comparison against the level of the call site.
type Level uint

const (
	// LevelDisabled drops every diagnostic except Error's fatal-class ones,
	// which are emitted at any level.
	LevelDisabled Level = iota
	// LevelError keeps only the unconditional "** " fatal-class diagnostics
	// (Error always emits regardless of the configured level; this value
	// exists for completeness of the hierarchy rather than as a reachable
	// --verbose setting).
	LevelError
	// LevelWarn is rsnap's default: corrupt-record and stat-failure
	// diagnostics (Warn), plus fatal errors.
	LevelWarn
	// LevelInfo adds basic run information, selected by -v/--verbose once.
	LevelInfo
	// LevelDebug adds per-record tracing and enables the run-correlation
	// ID, selected by -vv/--verbose twice.
	LevelDebug
)

// NameToLevel maps the integer string rsnap's --verbose flag is counted
// into (CountVarP yields "0", "1", or "2") to the Level it selects. It
// reports false for any other input.
func NameToLevel(name string) (Level, bool) {
	switch name {
	case "0":
		return LevelWarn, true
	case "1":
		return LevelInfo, true
	case "2":
		return LevelDebug, true
	default:
		return LevelDisabled, false
	}
}

// String renders a Level the way rsnap's diagnostics refer to it.
func (l Level) String() string {
	switch l {
	case LevelDisabled:
		return "disabled"
	case LevelError:
		return "error"
	case LevelWarn:
		return "warn"
	case LevelInfo:
		return "info"
	case LevelDebug:
		return "debug"
	default:
		return "unknown"
	}
}
