package testsupport

import (
	"testing"

	"texbake/internal/config"
	"texbake/internal/hashstore"
)

// MustOpenStore opens a hashstore.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *hashstore.Store {
	t.Helper()

	store, err := hashstore.OpenConfig(cfg)
	if err != nil {
		t.Fatalf("hashstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
