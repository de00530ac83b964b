package hostprobe

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/tphakala/hostpulse/internal/logger"
)

// sshHandshakeTimeout bounds the handshake when ctx carries no deadline.
const sshHandshakeTimeout = 15 * time.Second

// SSHProbe runs shell commands on remote hosts over SSH.
type SSHProbe struct {
	log logger.Logger

	mu         sync.Mutex
	signers    map[string]ssh.Signer
	hostKeyCBs map[string]ssh.HostKeyCallback
}

// NewSSHProbe creates an SSH probe. Keys and known_hosts files are read once
// and cached by path.
func NewSSHProbe(log logger.Logger) *SSHProbe {
	return &SSHProbe{
		log:        log,
		signers:    make(map[string]ssh.Signer),
		hostKeyCBs: make(map[string]ssh.HostKeyCallback),
	}
}

// Sample implements Probe.
func (p *SSHProbe) Sample(ctx context.Context, host Host) (Reading, error) {
	out, err := p.run(ctx, host, sampleCommand(host.DiskPath))
	if err != nil {
		return Reading{}, err
	}
	r, err := parseSampleOutput(out)
	if err != nil {
		return Reading{}, fmt.Errorf("host %s: %w", host.ID, err)
	}
	return r, nil
}

// Processes implements Probe.
func (p *SSHProbe) Processes(ctx context.Context, host Host) ([]Process, error) {
	out, err := p.run(ctx, host, processCommand)
	if err != nil {
		return nil, err
	}
	return parseProcesses(out), nil
}

func (p *SSHProbe) run(ctx context.Context, host Host, command string) ([]byte, error) {
	cfg, err := p.clientConfig(host)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(host.Address, strconv.Itoa(host.Port))
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(sshHandshakeTimeout)
	}
	_ = conn.SetDeadline(deadline)

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)
	defer func() { _ = client.Close() }()

	// Tear the connection down if ctx ends while the command is running.
	stop := context.AfterFunc(ctx, func() { _ = client.Close() })
	defer stop()

	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("open ssh session on %s: %w", host.ID, err)
	}
	defer func() { _ = session.Close() }()

	out, err := session.Output(command)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		return nil, fmt.Errorf("run probe command on %s: %w", host.ID, err)
	}
	return out, nil
}

func (p *SSHProbe) clientConfig(host Host) (*ssh.ClientConfig, error) {
	signer, err := p.signer(host.PrivateKeyPath)
	if err != nil {
		return nil, err
	}
	hostKeyCB, err := p.hostKeyCallback(host)
	if err != nil {
		return nil, err
	}
	return &ssh.ClientConfig{
		User:            host.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCB,
		Timeout:         sshHandshakeTimeout,
	}, nil
}

func (p *SSHProbe) signer(path string) (ssh.Signer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.signers[path]; ok {
		return s, nil
	}
	pem, err := os.ReadFile(path) //nolint:gosec // key path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("read private key %s: %w", path, err)
	}
	s, err := ssh.ParsePrivateKey(pem)
	if err != nil {
		return nil, fmt.Errorf("parse private key %s: %w", path, err)
	}
	p.signers[path] = s
	return s, nil
}

func (p *SSHProbe) hostKeyCallback(host Host) (ssh.HostKeyCallback, error) {
	if host.KnownHostsPath == "" {
		if host.InsecureIgnoreHostKey {
			p.log.Warn("host key verification disabled", logger.String("host_id", host.ID))
			return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // explicitly opted in per host
		}
		return nil, fmt.Errorf("host %s: known_hosts_path is required", host.ID)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if cb, ok := p.hostKeyCBs[host.KnownHostsPath]; ok {
		return cb, nil
	}
	cb, err := knownhosts.New(host.KnownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("load known_hosts %s: %w", host.KnownHostsPath, err)
	}
	p.hostKeyCBs[host.KnownHostsPath] = cb
	return cb, nil
}
