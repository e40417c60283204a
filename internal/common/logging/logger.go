package logging

import (
	"go.uber.org/zap"

	"github.com/codecraftes/mottu-yard/internal/common/config"
)

// New builds the process logger. Development gets a console encoder,
// everything else JSON. Both write to stderr so command output stays clean.
func New(cfg *config.Config) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.IsDev() {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}

	log, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return log.With(zap.String("environment", cfg.Environment)), nil
}
