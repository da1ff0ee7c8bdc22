//go:build !linux

package clock

// SyncStatus — на не-Linux состояние неизвестно.
func SyncStatus() (Status, error) {
	return Status{}, nil
}
