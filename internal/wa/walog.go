package wa

import (
	"fmt"

	btclog "github.com/btcsuite/btclog/v2"
	waLog "go.mau.fi/whatsmeow/util/log"
)

// waLogger forwards whatsmeow's internal logging onto our logger so the
// whole daemon shares one log stream.
type waLogger struct {
	log    btclog.Logger
	module string
}

func newWALogger(log btclog.Logger) waLog.Logger {
	return &waLogger{log: log}
}

func (w *waLogger) prefix(msg string, args []any) string {
	formatted := fmt.Sprintf(msg, args...)
	if w.module == "" {
		return formatted
	}
	return fmt.Sprintf("[%s] %s", w.module, formatted)
}

func (w *waLogger) Errorf(msg string, args ...any) {
	w.log.Errorf("%s", w.prefix(msg, args))
}

func (w *waLogger) Warnf(msg string, args ...any) {
	w.log.Warnf("%s", w.prefix(msg, args))
}

func (w *waLogger) Infof(msg string, args ...any) {
	w.log.Debugf("%s", w.prefix(msg, args))
}

func (w *waLogger) Debugf(msg string, args ...any) {
	w.log.Tracef("%s", w.prefix(msg, args))
}

func (w *waLogger) Sub(module string) waLog.Logger {
	sub := module
	if w.module != "" {
		sub = w.module + "/" + module
	}

	return &waLogger{
		log:    w.log,
		module: sub,
	}
}
