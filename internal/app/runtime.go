package app

import (
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// TestModeEnv turns the binaries into no-ops when set to 1 or true.
const TestModeEnv = "LEDGER_TEST_MODE"

var testMode struct {
	once sync.Once
	on   atomic.Bool
}

// InTestMode reports whether the binaries should skip runtime side effects.
func InTestMode() bool {
	testMode.once.Do(RefreshTestMode)
	return testMode.on.Load()
}

// RefreshTestMode re-reads the environment.
func RefreshTestMode() {
	v := strings.TrimSpace(os.Getenv(TestModeEnv))
	testMode.on.Store(v == "1" || strings.EqualFold(v, "true"))
}
