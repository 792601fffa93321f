package monitoring

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Console receives calibration notices meant for an operator watching stdout.
var Console io.Writer = os.Stdout

// SetConsole replaces the notice writer. Passing nil discards notices.
func SetConsole(w io.Writer) {
	if w == nil {
		Console = io.Discard
		return
	}
	Console = w
}

// Noticef writes a single line to Console.
func Noticef(format string, v ...interface{}) {
	fmt.Fprintf(Console, format+"\n", v...)
}
