package plasa

import (
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"github.com/davecgh/go-spew/spew"
	"github.com/mborders/logmatic"
)

var logLevel int64 = 4

// SetLogLevel drops every message above level. See LogCLI for the scale.
func SetLogLevel(level int) {
	atomic.StoreInt64(&logLevel, int64(level))
}

// Logs to the terminal. Level options are: 0 fatal error (stack dump, exits), 1 serious error (stack dump), 2 warning, 3 debug, 4 info, 5 trace (stack dump).
func LogCLI(message interface{}, level int) {
	if int64(level) > atomic.LoadInt64(&logLevel) {
		return
	}
	l := logmatic.NewLogger()
	l.SetLevel(logmatic.TRACE)
	l.ExitOnFatal = true
	message = fmt.Sprint(message)
	switch level {
	case 5:
		debug.PrintStack()
		l.Trace("%v", message)
	case 4:
		l.Info("%v", message)
	case 3:
		l.Debug("%v", message)
	case 2:
		l.Warn("%v", message)
	case 1:
		debug.PrintStack()
		l.Error("%v", message)
	case 0:
		debug.PrintStack()
		l.Fatal("%v", message)
	}
}

var firstMalformed = MakeNewInverseBloomFilter(4096)

// LogMalformed reports a fact set the composer refused, with the offending input
// dumped. Repeats of an error already reported drop to debug level.
func LogMalformed(err error, input interface{}) {
	if !firstMalformed(err.Error()) {
		LogCLI(err.Error(), 3)
		return
	}
	LogCLI(fmt.Sprintf("%s\n%s", err, spew.Sdump(input)), 2)
}
