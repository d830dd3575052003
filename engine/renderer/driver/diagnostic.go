package driver

import "fmt"

type Severity int

const (
	SeverityVerbose Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityVerbose:
		return "VERBOSE"
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Diagnostic is a message emitted by the validation layers.
type Diagnostic struct {
	Severity  Severity
	MessageID int32
	Layer     string
	Object    uint64
	Message   string
}

// DiagnosticHandler receives validation messages. It may be called from
// any goroutine that issues GPU calls.
type DiagnosticHandler func(d Diagnostic)

// Validation messages that fire on every debug build and carry no
// information about the application.
var benignMessageIDs = map[int32]string{
	648835635: "UNASSIGNED-khronos-Validation-debug-build-warning-message",
	767975156: "UNASSIGNED-BestPractices-vkCreateInstance-specialuse-extension",
}

// Benign reports whether the message is a known validation-layer notice
// that must not be surfaced as a warning or error.
func (d Diagnostic) Benign() bool {
	_, ok := benignMessageIDs[d.MessageID]
	return ok
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: [%s] Code %d : %s", d.Severity, d.Layer, d.MessageID, d.Message)
}
