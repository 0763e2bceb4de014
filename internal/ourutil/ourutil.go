// Package ourutil holds small reporting helpers; the flash package uses
// Reportf for its programming progress. It is adapted from the teacher's
// mos/ourutil.Reportf, but a library must not assume it owns the process's
// stderr, so the destination is a pluggable io.Writer instead of a direct
// os.Stderr write.
package ourutil

import (
	"fmt"
	"io"
	"os"

	"github.com/golang/glog"
)

// Out is where Reportf writes human-readable progress messages (the
// per-block "writing" lines of flash.Base.BurnDV). It
// defaults to os.Stderr, matching the teacher's behavior, but callers
// embedding this library in a service can redirect or silence it by
// assigning io.Discard.
var Out io.Writer = os.Stderr

// Reportf writes a progress line to Out and mirrors it to glog at Info
// level, exactly as mos/ourutil.Reportf does.
func Reportf(f string, args ...interface{}) {
	fmt.Fprintf(Out, f+"\n", args...)
	glog.Infof(f, args...)
}
