package logging

import (
	"go.uber.org/zap"
)

// New builds the process-wide logger. Development mode uses the
// human-readable console encoder with debug enabled; production uses
// JSON at info level.
func New(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
