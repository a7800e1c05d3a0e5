// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package validate

import "strings"

// LogLevels accepted by internal/log; anything else is rejected at load time
// rather than silently falling back to info.
var LogLevels = []string{"debug", "info", "warn", "error"}

// LogLevel checks value case-insensitively against LogLevels.
func (v *Validator) LogLevel(field, value string) {
	for _, l := range LogLevels {
		if strings.EqualFold(l, value) {
			return
		}
	}
	v.AddError(field, "must be one of "+strings.Join(LogLevels, ", "), value)
}
