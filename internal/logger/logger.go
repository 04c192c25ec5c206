package logger

import (
	"go.uber.org/zap"
)

// New builds the sugared logger used across the service. Development gets
// the human-readable console encoder.
func New(development bool) *zap.SugaredLogger {
	var (
		l   *zap.Logger
		err error
	)
	if development {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		panic("failed to initialize zap logger: " + err.Error())
	}
	return l.Sugar()
}
