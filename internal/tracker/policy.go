package tracker

import "passbot/internal/storage"

// EqualPercent treats "no value" as distinct from every integer, so
// nil -> 5 and 5 -> nil both count as changes.
func EqualPercent(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// ShouldNotify decides whether a scheduled check fires a notification.
// Daily mode notifies unconditionally; on_change only when the percent
// moved. The stored percent is updated either way; that bookkeeping
// belongs to the caller (see Engine.Observe).
func ShouldNotify(mode string, prev, next *int) bool {
	if mode == storage.ModeDaily {
		return true
	}
	return !EqualPercent(prev, next)
}
