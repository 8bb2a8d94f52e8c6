package logger

import (
	"go.uber.org/zap"
)

var Log *zap.SugaredLogger

func init() {
	// Safe default so packages can log before main wires the real logger.
	Log = zap.NewNop().Sugar()
}

// Init installs the production logger. Called once from main.
func Init() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic("failed to initialize zap logger: " + err.Error())
	}
	Log = logger.Sugar()
}

// InitDevelopment installs a human-readable logger. Used by tests and the
// interactive client.
func InitDevelopment() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic("failed to initialize zap logger: " + err.Error())
	}
	Log = logger.Sugar()
}
