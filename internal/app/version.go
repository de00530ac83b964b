package app

import (
	"fmt"
	"io"
	"runtime"
)

// Version information, set via ldflags at build time.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// PrintVersion writes version details to w.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "hostpulse %s\n", Version)
	fmt.Fprintf(w, "  Commit:     %s\n", Commit)
	fmt.Fprintf(w, "  Built:      %s\n", BuildTime)
	fmt.Fprintf(w, "  Go version: %s\n", runtime.Version())
	fmt.Fprintf(w, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

// Release is the identifier reported to error tracking.
func Release() string {
	return "hostpulse@" + Version
}
