package shm

import (
	"context"
	"runtime"
	"testing"

	"github.com/rs/xid"
)

func testName() string {
	return "todoshm-test-" + xid.New().String()
}

func skipUnlessLinux(t *testing.T) {
	t.Helper()
	if runtime.GOOS != "linux" {
		t.Skipf("shared memory segments are not supported on %s", runtime.GOOS)
	}
}

// createTestStore creates a store that is destroyed and detached when the test ends.
func createTestStore(t *testing.T, capacity int) *Store {
	t.Helper()
	s, err := Create(context.Background(), Options{Name: testName(), Capacity: capacity})
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Destroy()
		s.Detach()
	})
	return s
}
