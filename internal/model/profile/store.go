package profile

// Store exposes profile retrieval for HTTP handlers and the turn pipeline.
type Store interface {
	List() []Profile
	FindByID(id string) (Profile, bool)
	Default() Profile
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items     []Profile
	defaultID string
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied profiles. Later entries
// replace earlier ones with the same ID, so overrides can simply be appended to Seed().
func NewMemoryStore(items []Profile, defaultID string) *MemoryStore {
	store := &MemoryStore{defaultID: defaultID}
	for _, item := range items {
		item = item.WithDefaults()
		if item.ID == "" {
			continue
		}
		replaced := false
		for i := range store.items {
			if store.items[i].ID == item.ID {
				store.items[i] = item
				replaced = true
				break
			}
		}
		if !replaced {
			store.items = append(store.items, item)
		}
	}
	return store
}

// List returns every known profile.
func (s *MemoryStore) List() []Profile {
	return append([]Profile(nil), s.items...)
}

// FindByID looks up a profile by identifier.
func (s *MemoryStore) FindByID(id string) (Profile, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Profile{}, false
}

// Default returns the configured default profile, the first profile when the default is
// unknown, or a bare profile when the store is empty.
func (s *MemoryStore) Default() Profile {
	if p, ok := s.FindByID(s.defaultID); ok {
		return p
	}
	if len(s.items) > 0 {
		return s.items[0]
	}
	return Profile{ID: "default"}.WithDefaults()
}

// Resolve returns the profile for id, falling back to the default.
func Resolve(store Store, id string) Profile {
	if id != "" {
		if p, ok := store.FindByID(id); ok {
			return p
		}
	}
	return store.Default()
}
