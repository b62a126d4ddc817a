// Package mlog is muddle's ambient logging layer: a bitmask log-class
// scheme in the style of the teacher's logit/croak/logEnable
// (surgeon/inner.go, surgeon/reposurgeon.go), backed by logrus for the
// actual structured write. Carries forward muddled/logs.py's idea of a
// configurable verbosity level, set through SetLevel and Enable.
package mlog

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Class is a bitmask log class, matching the teacher's logSHOUT/logWARN/...
// idiom: add a constant, add an entry to classNames, done.
type Class uint

const (
	Shout     Class = 1 << iota // Errors and urgent messages, always shown
	Warn                        // Exceptional condition, probably not a bug
	Scheduler                   // Rule claiming, dep satisfaction, pause protocol
	Store                       // Tag/rule store reads and writes
	VCS                         // VCS plugin dispatch
	Stamp                       // Version stamp save/restore
	License                     // License propagation and clash detection
	DSL                         // Build-description loading
	Action                      // make/deb/cpio/distribute action execution
)

var classNames = map[Class]string{
	Shout:     "shout",
	Warn:      "warn",
	Scheduler: "scheduler",
	Store:     "store",
	VCS:       "vcs",
	Stamp:     "stamp",
	License:   "license",
	DSL:       "dsl",
	Action:    "action",
}

// control holds the process-wide logging state, analogous to the teacher's
// Control.logmask/logfp/logmutex.
type control struct {
	mu     sync.Mutex
	mask   Class
	logger *logrus.Logger
}

var c = control{
	mask:   Shout | Warn,
	logger: logrus.New(),
}

func init() {
	c.logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// SetLevel replaces the active class mask wholesale - the Go analogue of
// muddled/logs.py's setup_logging(). internal/dsl exposes no builtin for it.
func SetLevel(mask Class) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mask = mask
}

// Enable turns the named classes on without disturbing the rest of the mask.
func Enable(classes ...Class) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cl := range classes {
		c.mask |= cl
	}
}

// Enabled reports whether logging is active for the given class.
func Enabled(class Class) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mask&class != 0
}

// Logit writes msg under the given class if that class is enabled.
func Logit(class Class, msg string, fields logrus.Fields) {
	if !Enabled(class) {
		return
	}
	c.mu.Lock()
	entry := c.logger.WithFields(fields).WithField("class", classNames[class])
	c.mu.Unlock()
	if class == Shout {
		entry.Error(msg)
	} else if class == Warn {
		entry.Warn(msg)
	} else {
		entry.Info(msg)
	}
}

// Croak reports a user-facing GiveUp-style message unconditionally -
// the mlog analogue of the teacher's croak().
func Croak(msg string, fields logrus.Fields) {
	c.mu.Lock()
	entry := c.logger.WithFields(fields)
	c.mu.Unlock()
	entry.Error(msg)
}
