package monitor

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/tphakala/hostpulse/internal/conf"
	"github.com/tphakala/hostpulse/internal/hostprobe"
)

// fakeProbe returns a fixed reading. When block is set, Sample signals
// entered and waits for release or ctx.
type fakeProbe struct {
	mu      sync.Mutex
	reading hostprobe.Reading
	procs   []hostprobe.Process
	err     error
	calls   atomic.Int32

	block   bool
	entered chan struct{}
	release chan struct{}
}

func newFakeProbe(r hostprobe.Reading) *fakeProbe {
	return &fakeProbe{reading: r, entered: make(chan struct{}, 8), release: make(chan struct{})}
}

func (f *fakeProbe) set(r hostprobe.Reading) {
	f.mu.Lock()
	f.reading = r
	f.mu.Unlock()
}

func (f *fakeProbe) Sample(ctx context.Context, _ hostprobe.Host) (hostprobe.Reading, error) {
	f.calls.Add(1)
	if f.block {
		f.entered <- struct{}{}
		select {
		case <-f.release:
		case <-ctx.Done():
			return hostprobe.Reading{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reading, f.err
}

func (f *fakeProbe) Processes(context.Context, hostprobe.Host) ([]hostprobe.Process, error) {
	return f.procs, f.err
}

func testDirectory(ids ...string) *hostprobe.Directory {
	settings := make([]conf.HostSettings, 0, len(ids))
	for _, id := range ids {
		settings = append(settings, conf.HostSettings{ID: id, Name: id, Kind: conf.HostKindLocal, DiskPath: "/"})
	}
	return hostprobe.NewDirectory(settings)
}
