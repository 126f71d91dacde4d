// Package svcfields holds the shared log field conventions.
package svcfields

import (
	"strings"

	"pkt.systems/pslog"
)

// SubsystemKey is the canonical key for subsystem tags.
const SubsystemKey = pslog.TrustedString("sys")

// Subsystem builds a dot-delimited subsystem path from the supplied parts while
// skipping empty fragments.
func Subsystem(parts ...string) string {
	filtered := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.Trim(part, ". ")
		if part == "" {
			continue
		}
		filtered = append(filtered, part)
	}
	return strings.Join(filtered, ".")
}

// WithSubsystem attaches a subsystem tag to every log entry.
func WithSubsystem(logger pslog.Logger, subsystem string) pslog.Logger {
	if logger == nil {
		logger = pslog.NoopLogger()
	}
	subsystem = strings.Trim(subsystem, ". ")
	if subsystem == "" {
		return logger
	}
	return logger.With(SubsystemKey, subsystem)
}

// Tag returns base tagged with subsystem when it supports field binding.
// A nil base yields the no-op logger; a plain pslog.Base is returned as-is.
func Tag(base pslog.Base, subsystem string) pslog.Base {
	if base == nil {
		return pslog.NoopLogger()
	}
	if full, ok := base.(pslog.Logger); ok {
		return WithSubsystem(full, subsystem)
	}
	return base
}
