package logging

import "strings"

// Severity is a syslog-style importance level.
type Severity int

const (
	Emergency Severity = iota
	Alert
	Critical
	Error
	Warning
	Notice
	Info
	Debug
	Kernel
)

var severityNames = map[Severity]string{
	Emergency: "EMERGENCY",
	Alert:     "ALERT",
	Critical:  "CRITICAL",
	Error:     "ERROR",
	Warning:   "WARNING",
	Notice:    "NOTICE",
	Info:      "INFO",
	Debug:     "DEBUG",
	Kernel:    "KERNEL",
}

// String returns the upper-case name, falling back to ERROR.
func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return severityNames[Error]
}

// ParseSeverity accepts names case-insensitively along with common
// syslog abbreviations.
func ParseSeverity(raw string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "emerg", "emergency":
		return Emergency, true
	case "alert":
		return Alert, true
	case "crit", "critical":
		return Critical, true
	case "err", "error":
		return Error, true
	case "warn", "warning":
		return Warning, true
	case "notice":
		return Notice, true
	case "info":
		return Info, true
	case "debug":
		return Debug, true
	case "kern", "kernel":
		return Kernel, true
	default:
		return Error, false
	}
}
