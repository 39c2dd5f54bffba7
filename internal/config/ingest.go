package config

import "github.com/mcluseau/kingress/internal/watch"

// ingestEvent folds one typed event into m, returning the map's new ready
// state. It mirrors the fold every per-kind stream goes through: Init
// clears the map and un-readies it, InitApply/Apply upsert a key computed
// from the raw object (skipped silently if key/value extraction fails, the
// same tolerant behavior as the source implementation this is grounded
// on), InitDone readies the map without touching it, and Delete removes a
// key. InitApply does not flip ready; every other kind does.
func ingestEvent[K comparable, V any, T any](
	m map[K]V,
	kind watch.Kind,
	raw T,
	keyOf func(T) (K, bool),
	valueOf func(T) (V, bool),
) (ready bool) {
	switch kind {
	case watch.Init:
		for k := range m {
			delete(m, k)
		}
		return false
	case watch.InitApply:
		if k, ok := keyOf(raw); ok {
			if v, ok := valueOf(raw); ok {
				m[k] = v
			}
		}
		return false
	case watch.InitDone:
		return true
	case watch.Apply:
		if k, ok := keyOf(raw); ok {
			if v, ok := valueOf(raw); ok {
				m[k] = v
			}
		}
		return true
	case watch.Delete:
		if k, ok := keyOf(raw); ok {
			delete(m, k)
		}
		return true
	default:
		return true
	}
}
