// manager/export_test.go
// Copyright(c) 2024-2026 covey contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package manager

import "time"

// SetNowFuncForTest substitutes the Registry's clock.
func (r *Registry) SetNowFuncForTest(now func() time.Time) {
	r.now = now
}
