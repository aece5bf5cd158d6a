// Package testing puts the process into test mode when imported for side
// effects: binaries skip startup and the ledger defaults to the memory store.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var (
	once     sync.Once
	defaults = map[string]string{
		"ODYSSEY_TEST_MODE": "1",
		"LEDGER_STORE":      "memory",
	}
)

func applyDefaults() {
	once.Do(func() {
		for key, value := range defaults {
			if _, set := os.LookupEnv(key); !set {
				_ = os.Setenv(key, value)
			}
		}
	})
}

func init() {
	applyDefaults()
}

// TestMain can be delegated to from packages that need the defaults applied
// before any test runs.
func TestMain(m *stdtesting.M) {
	applyDefaults()
	os.Exit(m.Run())
}
