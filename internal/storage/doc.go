// Package storage persists the three durable tables behind the tracker:
// subscriptions (chat -> tracked id -> last percent), notification modes
// (chat -> mode) and labels (chat -> id -> display name).
//
// Each table is read and replaced whole per call. There are no partial
// updates and no cross-table transactions; the durability story is
// "last write wins on disk".
package storage
