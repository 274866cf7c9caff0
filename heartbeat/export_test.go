// heartbeat/export_test.go
// Copyright(c) 2024-2026 covey contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package heartbeat

import "time"

// SetNowFuncForTest substitutes the Monitor's clock.
func (m *Monitor) SetNowFuncForTest(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
	m.lastSeen = now()
}
