package hostprobe

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Section markers emitted by sampleCommand.
const (
	markLoad = "@@load"
	markCPU  = "@@cpu"
	markMem  = "@@mem"
	markDisk = "@@disk"
)

// sampleCommand reads /proc twice one second apart for CPU deltas, plus
// memory, load and disk usage of diskPath, in a single round trip.
func sampleCommand(diskPath string) string {
	return strings.Join([]string{
		"echo " + markLoad, "cat /proc/loadavg",
		"echo " + markCPU, "head -n 1 /proc/stat", "sleep 1", "head -n 1 /proc/stat",
		"echo " + markMem, "grep -E '^(MemTotal|MemAvailable):' /proc/meminfo",
		"echo " + markDisk, "df -P " + shellQuote(diskPath) + " | tail -n 1",
	}, "; ")
}

const processCommand = "ps -eo pid=,user=,pcpu=,pmem=,args="

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func splitSections(out []byte) map[string][]string {
	sections := make(map[string][]string)
	current := ""
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "@@") {
			current = line
			continue
		}
		if current != "" && line != "" {
			sections[current] = append(sections[current], line)
		}
	}
	return sections
}

// parseSampleOutput turns sampleCommand output into a Reading.
func parseSampleOutput(out []byte) (Reading, error) {
	sections := splitSections(out)
	var r Reading
	var err error

	if r.Load1m, err = parseLoadAvg(sections[markLoad]); err != nil {
		return Reading{}, err
	}
	if r.CPUPercent, err = parseCPUDelta(sections[markCPU]); err != nil {
		return Reading{}, err
	}
	if r.MemoryPercent, err = parseMemInfo(sections[markMem]); err != nil {
		return Reading{}, err
	}
	if r.DiskPercent, err = parseDF(sections[markDisk]); err != nil {
		return Reading{}, err
	}
	return r, nil
}

func parseLoadAvg(lines []string) (float64, error) {
	if len(lines) == 0 {
		return 0, fmt.Errorf("missing /proc/loadavg output")
	}
	fields := strings.Fields(lines[0])
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty /proc/loadavg output")
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, fmt.Errorf("parse load average %q: %w", fields[0], err)
	}
	return v, nil
}

type cpuTimes struct {
	idle  uint64
	total uint64
}

func parseStatLine(line string) (cpuTimes, error) {
	fields := strings.Fields(line)
	if len(fields) < 5 || fields[0] != "cpu" {
		return cpuTimes{}, fmt.Errorf("unexpected /proc/stat line %q", line)
	}
	var t cpuTimes
	for i, f := range fields[1:] {
		v, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			return cpuTimes{}, fmt.Errorf("parse cpu field %q: %w", f, err)
		}
		t.total += v
		// idle and iowait
		if i == 3 || i == 4 {
			t.idle += v
		}
	}
	return t, nil
}

func parseCPUDelta(lines []string) (float64, error) {
	if len(lines) < 2 {
		return 0, fmt.Errorf("expected two /proc/stat samples, got %d", len(lines))
	}
	first, err := parseStatLine(lines[0])
	if err != nil {
		return 0, err
	}
	second, err := parseStatLine(lines[1])
	if err != nil {
		return 0, err
	}
	if second.total <= first.total {
		return 0, nil
	}
	dTotal := float64(second.total - first.total)
	dIdle := float64(second.idle - first.idle)
	return clampPercent((1 - dIdle/dTotal) * 100), nil
}

func parseMemInfo(lines []string) (float64, error) {
	var total, available float64
	var haveTotal, haveAvail bool
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return 0, fmt.Errorf("parse meminfo %q: %w", line, err)
		}
		switch fields[0] {
		case "MemTotal:":
			total, haveTotal = v, true
		case "MemAvailable:":
			available, haveAvail = v, true
		}
	}
	if !haveTotal || !haveAvail || total <= 0 {
		return 0, fmt.Errorf("incomplete /proc/meminfo output")
	}
	return clampPercent((total - available) / total * 100), nil
}

// parseDF reads a POSIX df line: filesystem blocks used available capacity mount.
func parseDF(lines []string) (float64, error) {
	if len(lines) == 0 {
		return 0, fmt.Errorf("missing df output")
	}
	fields := strings.Fields(lines[len(lines)-1])
	if len(fields) < 6 {
		return 0, fmt.Errorf("unexpected df output %q", lines[len(lines)-1])
	}
	used, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return 0, fmt.Errorf("parse df used %q: %w", fields[2], err)
	}
	avail, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return 0, fmt.Errorf("parse df available %q: %w", fields[3], err)
	}
	if used+avail <= 0 {
		return 0, nil
	}
	return clampPercent(used / (used + avail) * 100), nil
}

// parseProcesses reads processCommand output. Malformed rows are skipped.
func parseProcesses(out []byte) []Process {
	procs := make([]Process, 0)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 {
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		cpu, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			continue
		}
		mem, err := strconv.ParseFloat(fields[3], 64)
		if err != nil {
			continue
		}
		procs = append(procs, Process{
			PID:           pid,
			User:          fields[1],
			CPUPercent:    cpu,
			MemoryPercent: mem,
			Command:       strings.Join(fields[4:], " "),
		})
	}
	return procs
}

func clampPercent(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
