package cli

import (
	"context"
	"fmt"

	"github.com/mkravets/txguard/internal/config"
	"github.com/mkravets/txguard/internal/integrity"
	"github.com/mkravets/txguard/internal/keystore"
	"github.com/mkravets/txguard/internal/policy"
	"github.com/mkravets/txguard/internal/runner"
	"github.com/mkravets/txguard/internal/session"
)

// app wires the gate's collaborators once per invocation. Each is
// constructed explicitly and injected; there is no global lookup.
type app struct {
	cfg      *config.Config
	policies *policy.Store
	kv       *keystore.SQLite
	sessions *session.Manager
	checks   *runner.Runner
}

// newApp loads configuration and constructs the collaborator graph.
// auth may be nil for commands that never prompt.
func newApp(auth session.Authenticator) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	policies, err := policy.NewStore(cfg.PolicyPath)
	if err != nil {
		return nil, err
	}

	kv, err := keystore.OpenSQLite(cfg.KeystorePath)
	if err != nil {
		return nil, err
	}

	detector := integrity.NewDetector(integrity.Env{})
	checks := runner.New(detector, runner.Hooks{}, runner.WithTimeout(cfg.ProbeTimeout))

	sessions := session.NewManager(auth, kv, session.WithTTL(cfg.SessionTTL))

	return &app{
		cfg:      cfg,
		policies: policies,
		kv:       kv,
		sessions: sessions,
		checks:   checks,
	}, nil
}

func (a *app) close() {
	if a.kv != nil {
		a.kv.Close()
	}
}

// approveAuthenticator grants every prompt. Used by simulate when the
// host has no biometric hardware to exercise.
type approveAuthenticator struct{}

func (approveAuthenticator) CanAuthenticate() bool                     { return true }
func (approveAuthenticator) Authenticate(context.Context, string) bool { return true }

// denyAuthenticator refuses every prompt.
type denyAuthenticator struct{}

func (denyAuthenticator) CanAuthenticate() bool                     { return true }
func (denyAuthenticator) Authenticate(context.Context, string) bool { return false }

func authenticatorFor(mode string) (session.Authenticator, error) {
	switch mode {
	case "approve":
		return approveAuthenticator{}, nil
	case "deny":
		return denyAuthenticator{}, nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q (want approve or deny)", mode)
	}
}
