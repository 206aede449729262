// Package state defines shared program state.
package state

import (
	"context"
	"time"

	"go.uber.org/zap"

	"folio/config"
)

type envKey struct{}

// LocalEnv keeps everything program needs in a single place.
type LocalEnv struct {
	Cfg *config.Config
	Rpt *config.Report
	Log *zap.Logger

	// set from global flags
	ConfigFile string
	Debug      bool

	start         time.Time
	restoreStdLog func()
}

func EnvFromContext(ctx context.Context) *LocalEnv {
	if env, ok := LookupEnv(ctx); ok {
		return env
	}
	// this should never happen
	panic("localenv not found in context")
}

// LookupEnv returns environment if context carries one. Library code uses it
// for optional things like debug report.
func LookupEnv(ctx context.Context) (*LocalEnv, bool) {
	env, ok := ctx.Value(envKey{}).(*LocalEnv)
	return env, ok && env != nil
}

func ContextWithEnv(ctx context.Context) context.Context {
	return context.WithValue(ctx, envKey{}, newLocalEnv())
}

func (e *LocalEnv) Uptime() time.Duration {
	return time.Since(e.start)
}

func (e *LocalEnv) RedirectStdLog() {
	if e.Log == nil {
		return
	}
	e.restoreStdLog = zap.RedirectStdLog(e.Log)
}

func (e *LocalEnv) RestoreStdLog() {
	if e.Log != nil {
		_ = e.Log.Sync()
	}
	if e.restoreStdLog != nil {
		e.restoreStdLog()
	}
}
