//go:build integration

package containers

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/ssh"

	"github.com/tphakala/hostpulse/internal/conf"
)

const (
	sshdImage = "lscr.io/linuxserver/openssh-server:latest"
	sshdPort  = "2222/tcp"
	sshdUser  = "hostpulse"
)

// SSHContainer is an OpenSSH server that accepts a generated ed25519 key.
type SSHContainer struct {
	container testcontainers.Container
	host      string
	port      int
	keyPath   string
	cleanup   *CleanupManager
}

// NewSSHContainer starts an SSH server and writes the matching private key
// to a temporary directory.
func NewSSHContainer(ctx context.Context) (*SSHContainer, error) {
	cleanup := NewCleanupManager()
	fail := func(err error) (*SSHContainer, error) {
		return nil, errors.Join(append([]error{err}, cleanup.Cleanup()...)...)
	}

	dir, err := os.MkdirTemp("", "hostpulse-sshd-")
	if err != nil {
		return nil, fmt.Errorf("failed to create key dir: %w", err)
	}
	cleanup.Add("key dir", func() error { return os.RemoveAll(dir) })

	authorized, keyPath, err := writeKeyPair(dir)
	if err != nil {
		return fail(err)
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        sshdImage,
			ExposedPorts: []string{sshdPort},
			Env: map[string]string{
				"PUID":       "1000",
				"PGID":       "1000",
				"USER_NAME":  sshdUser,
				"PUBLIC_KEY": authorized,
			},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort(sshdPort),
				wait.ForLog("[ls.io-init] done."),
			).WithDeadline(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		return fail(fmt.Errorf("failed to start SSH container: %w", err))
	}
	cleanup.Add("sshd container", func() error { return container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		return fail(fmt.Errorf("failed to get container host: %w", err))
	}
	mapped, err := container.MappedPort(ctx, sshdPort)
	if err != nil {
		return fail(fmt.Errorf("failed to get mapped port: %w", err))
	}

	return &SSHContainer{
		container: container,
		host:      host,
		port:      mapped.Int(),
		keyPath:   keyPath,
		cleanup:   cleanup,
	}, nil
}

func writeKeyPair(dir string) (authorized, keyPath string, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate key: %w", err)
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode public key: %w", err)
	}
	block, err := ssh.MarshalPrivateKey(priv, "hostpulse-test")
	if err != nil {
		return "", "", fmt.Errorf("failed to encode private key: %w", err)
	}

	keyPath = filepath.Join(dir, "id_ed25519")
	if err := os.WriteFile(keyPath, pem.EncodeToMemory(block), 0o600); err != nil {
		return "", "", fmt.Errorf("failed to write private key: %w", err)
	}
	return string(ssh.MarshalAuthorizedKey(sshPub)), keyPath, nil
}

// HostSettings returns a host entry that reaches this container. Host key
// checking is disabled because the server key is generated at startup.
func (c *SSHContainer) HostSettings(id string) conf.HostSettings {
	return conf.HostSettings{
		ID:                    id,
		Name:                  id,
		Kind:                  conf.HostKindSSH,
		Address:               c.host,
		Port:                  c.port,
		User:                  sshdUser,
		PrivateKeyPath:        c.keyPath,
		InsecureIgnoreHostKey: true,
		DiskPath:              "/",
	}
}

// Terminate removes the container and the generated key.
func (c *SSHContainer) Terminate() error {
	return errors.Join(c.cleanup.Cleanup()...)
}
