package session

// ActiveLocks reports the number of lock entries currently held in memory.
func ActiveLocks(m *Manager) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
