// Package hostprobe reads resource utilization and process lists from
// monitored hosts, over SSH for remote machines or directly for the local
// machine.
package hostprobe

import (
	"context"
	"fmt"

	"github.com/tphakala/hostpulse/internal/conf"
	"github.com/tphakala/hostpulse/internal/errors"
)

// Host is a monitored machine.
type Host struct {
	ID                    string `json:"id"`
	Name                  string `json:"name"`
	Kind                  string `json:"kind"`
	Address               string `json:"address,omitempty"`
	Port                  int    `json:"port,omitempty"`
	User                  string `json:"-"`
	PrivateKeyPath        string `json:"-"`
	KnownHostsPath        string `json:"-"`
	InsecureIgnoreHostKey bool   `json:"-"`
	DiskPath              string `json:"disk_path"`
}

// Reading is one utilization snapshot. Percentages are 0..100.
type Reading struct {
	CPUPercent    float64
	MemoryPercent float64
	DiskPercent   float64
	Load1m        float64
}

// Process is one row of a host's process table.
type Process struct {
	PID           int     `json:"pid"`
	User          string  `json:"user"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	Command       string  `json:"command"`
}

// Probe reads a host. Implementations must honor ctx cancellation.
type Probe interface {
	Sample(ctx context.Context, host Host) (Reading, error)
	Processes(ctx context.Context, host Host) ([]Process, error)
}

// Router dispatches to the probe matching the host kind.
type Router struct {
	probes map[string]Probe
}

// NewRouter builds a router from kind to probe.
func NewRouter(probes map[string]Probe) *Router {
	return &Router{probes: probes}
}

func (r *Router) probeFor(host Host) (Probe, error) {
	p, ok := r.probes[host.Kind]
	if !ok {
		return nil, fmt.Errorf("no probe for host kind %q", host.Kind)
	}
	return p, nil
}

// Sample implements Probe.
func (r *Router) Sample(ctx context.Context, host Host) (Reading, error) {
	p, err := r.probeFor(host)
	if err != nil {
		return Reading{}, err
	}
	return p.Sample(ctx, host)
}

// Processes implements Probe.
func (r *Router) Processes(ctx context.Context, host Host) ([]Process, error) {
	p, err := r.probeFor(host)
	if err != nil {
		return nil, err
	}
	return p.Processes(ctx, host)
}

// ErrHostNotFound is returned by Directory.Lookup.
var ErrHostNotFound = errors.NotFound("host")

// Directory is the fixed set of configured hosts.
type Directory struct {
	hosts map[string]Host
	order []string
}

// NewDirectory builds a directory from configuration, preserving order.
func NewDirectory(settings []conf.HostSettings) *Directory {
	d := &Directory{hosts: make(map[string]Host, len(settings))}
	for i := range settings {
		s := &settings[i]
		d.hosts[s.ID] = Host{
			ID:                    s.ID,
			Name:                  s.Name,
			Kind:                  s.Kind,
			Address:               s.Address,
			Port:                  s.Port,
			User:                  s.User,
			PrivateKeyPath:        s.PrivateKeyPath,
			KnownHostsPath:        s.KnownHostsPath,
			InsecureIgnoreHostKey: s.InsecureIgnoreHostKey,
			DiskPath:              s.DiskPath,
		}
		d.order = append(d.order, s.ID)
	}
	return d
}

// Lookup returns the host with id.
func (d *Directory) Lookup(id string) (Host, error) {
	h, ok := d.hosts[id]
	if !ok {
		return Host{}, &errors.NotFoundError{Resource: "host", ID: id}
	}
	return h, nil
}

// List returns all hosts in configuration order.
func (d *Directory) List() []Host {
	out := make([]Host, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.hosts[id])
	}
	return out
}
