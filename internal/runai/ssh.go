package runai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/text/encoding/charmap"
)

const defaultSSHPort = "22"

// Runner executes a shell command on the cluster login node and returns its stdout.
type Runner interface {
	Run(ctx context.Context, command string) (string, error)
}

// SSHConfig describes how to reach the login node.
type SSHConfig struct {
	User           string
	Address        string
	KeyPath        string
	KnownHostsPath string
	Insecure       bool
	DialTimeout    time.Duration
}

// SSHRunner implements Runner over a persistent SSH connection. One session
// is opened per command. Safe for concurrent use.
type SSHRunner struct {
	addr      string
	config    *ssh.ClientConfig
	agentConn net.Conn

	mu     sync.Mutex
	client *ssh.Client
}

// NewSSHRunner prepares an SSHRunner. The connection is established lazily on
// the first Run.
func NewSSHRunner(cfg SSHConfig) (*SSHRunner, error) {
	r := &SSHRunner{addr: withDefaultPort(cfg.Address)}

	var auth []ssh.AuthMethod
	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		conn, err := net.Dial("unix", sock)
		if err != nil {
			slog.Warn("ssh agent unavailable", "socket", sock, "error", err)
		} else {
			r.agentConn = conn
			auth = append(auth, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
		}
	}
	if cfg.KeyPath != "" {
		key, err := os.ReadFile(cfg.KeyPath)
		switch {
		case err == nil:
			signer, err := ssh.ParsePrivateKey(key)
			if err != nil {
				r.Close()
				return nil, fmt.Errorf("parse private key %s: %w", cfg.KeyPath, err)
			}
			auth = append(auth, ssh.PublicKeys(signer))
		case errors.Is(err, os.ErrNotExist) && len(auth) > 0:
			// agent is enough
		default:
			r.Close()
			return nil, fmt.Errorf("read private key: %w", err)
		}
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("no ssh auth method: set SSH_AUTH_SOCK or a private key path")
	}

	hostKeys := ssh.InsecureIgnoreHostKey()
	if !cfg.Insecure {
		cb, err := knownhosts.New(cfg.KnownHostsPath)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("load known hosts %s: %w", cfg.KnownHostsPath, err)
		}
		hostKeys = cb
	}

	r.config = &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKeys,
		Timeout:         cfg.DialTimeout,
	}
	return r, nil
}

// Run executes command and returns its stdout decoded from Latin-1. A non-zero
// exit status yields the output together with ErrCommandFailed. A broken
// connection is redialed once.
func (r *SSHRunner) Run(ctx context.Context, command string) (string, error) {
	out, err := r.run(ctx, command)
	if err != nil && errors.Is(err, errConnection) {
		r.reset()
		out, err = r.run(ctx, command)
	}
	return out, err
}

var errConnection = errors.New("ssh connection broken")

type sessionResult struct {
	sess *ssh.Session
	err  error
}

func (r *SSHRunner) run(ctx context.Context, command string) (string, error) {
	client, err := r.connect(ctx)
	if err != nil {
		return "", classifyError(err)
	}

	// Opening a channel waits for the server's confirmation without a
	// deadline, so it is raced against ctx like the command itself.
	opened := make(chan sessionResult, 1)
	go func() {
		sess, err := client.NewSession()
		opened <- sessionResult{sess: sess, err: err}
	}()

	var sess *ssh.Session
	select {
	case <-ctx.Done():
		r.drop(client)
		return "", classifyError(ctx.Err())
	case res := <-opened:
		if res.err != nil {
			return "", fmt.Errorf("%w: %w", errConnection, classifyError(res.err))
		}
		sess = res.sess
	}
	defer sess.Close()

	var stdout bytes.Buffer
	sess.Stdout = &stdout

	done := make(chan error, 1)
	go func() { done <- sess.Run(command) }()

	select {
	case <-ctx.Done():
		sess.Close()
		return "", classifyError(ctx.Err())
	case err := <-done:
		text, decErr := decodeLatin1(stdout.Bytes())
		if decErr != nil {
			return "", fmt.Errorf("decode output: %w", decErr)
		}
		if err == nil {
			return text, nil
		}
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return text, fmt.Errorf("%w: status %d", ErrCommandFailed, exitErr.ExitStatus())
		}
		var missing *ssh.ExitMissingError
		if errors.As(err, &missing) {
			return "", fmt.Errorf("%w: %w", errConnection, classifyError(err))
		}
		return "", classifyError(err)
	}
}

func (r *SSHRunner) connect(ctx context.Context) (*ssh.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client != nil {
		return r.client, nil
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", r.addr)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, r.addr, r.config)
	if err != nil {
		conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})

	r.client = ssh.NewClient(c, chans, reqs)
	slog.Debug("ssh connected", "addr", r.addr, "user", r.config.User)
	return r.client, nil
}

// drop tears down client if it is still the current connection. The next
// Run dials again.
func (r *SSHRunner) drop(client *ssh.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == client {
		r.client = nil
	}
	client.Close()
}

func (r *SSHRunner) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client != nil {
		r.client.Close()
		r.client = nil
	}
}

// Close tears down the SSH connection and the agent socket.
func (r *SSHRunner) Close() error {
	r.reset()
	if r.agentConn != nil {
		return r.agentConn.Close()
	}
	return nil
}

func withDefaultPort(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(addr, defaultSSHPort)
}

func decodeLatin1(b []byte) (string, error) {
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Compile-time check that SSHRunner implements Runner.
var _ Runner = (*SSHRunner)(nil)
