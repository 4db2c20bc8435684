// Package state keeps program wide environment in context.
package state

import (
	"context"
	"time"

	"go.uber.org/zap"

	"pdx/config"
)

type envKey struct{}

// LocalEnv is set up once before command runs and read by command actions.
type LocalEnv struct {
	Cfg *config.Config
	Rpt *config.Report
	Log *zap.Logger

	// patch command flags
	Overwrite bool
	NoDirs    bool

	// SVG rasterized for Pokémon without usable artwork
	DefaultArtwork []byte

	start         time.Time
	restoreStdLog func()
}

func newLocalEnv() *LocalEnv {
	return &LocalEnv{
		start:          time.Now(),
		DefaultArtwork: pokeBallSVG,
	}
}

// ContextWithEnv returns context carrying fresh environment.
func ContextWithEnv(ctx context.Context) context.Context {
	return context.WithValue(ctx, envKey{}, newLocalEnv())
}

// EnvFromContext panics when ctx was not prepared with ContextWithEnv, this
// is programming error.
func EnvFromContext(ctx context.Context) *LocalEnv {
	env, ok := ctx.Value(envKey{}).(*LocalEnv)
	if !ok {
		panic("local environment is missing from context")
	}
	return env
}

func (e *LocalEnv) Uptime() time.Duration {
	return time.Since(e.start)
}

// RedirectStdLog sends output of standard log package to zap logger.
func (e *LocalEnv) RedirectStdLog() {
	if e.Log == nil {
		return
	}
	e.restoreStdLog = zap.RedirectStdLog(e.Log)
}

// RestoreStdLog syncs logger and undoes RedirectStdLog.
func (e *LocalEnv) RestoreStdLog() {
	if e.Log != nil {
		_ = e.Log.Sync()
	}
	if e.restoreStdLog != nil {
		e.restoreStdLog()
		e.restoreStdLog = nil
	}
}
