package state

import (
	"time"

	"go.uber.org/zap"
)

// newLocalEnv creates environment with no configuration yet. Logger is
// replaced as soon as configuration is loaded.
func newLocalEnv() *LocalEnv {
	return &LocalEnv{
		Log:   zap.NewNop(),
		start: time.Now(),
	}
}
