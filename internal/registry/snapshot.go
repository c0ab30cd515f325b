package registry

import "github.com/raaihank/text-pseudonymizer/internal/entity"

// Snapshot is the exported state of a registry, used to persist a session
// between requests and as the correspondence audit artifact.
type Snapshot struct {
	Correspondences map[string]string         `json:"correspondences"`
	Counters        map[entity.EntityType]int `json:"counters"`
}

// Snapshot exports the current state.
func (r *Registry) Snapshot() Snapshot {
	return Snapshot{
		Correspondences: r.Correspondences(),
		Counters:        r.Counters(),
	}
}

// Restore builds a registry that continues from s. Counters resume where the
// snapshot left them so no pseudonym is handed out twice.
func Restore(s Snapshot, opts Options) *Registry {
	r := New(opts)
	for k, v := range s.Correspondences {
		r.entries[k] = v
		r.issued[v] = true
	}
	for t, n := range s.Counters {
		r.counters[t] = n
	}
	return r
}
