// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 campusid Contributors

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/campuslink/campusid/internal/identity"
	"github.com/campuslink/campusid/pkg/errutil"
)

const shellHelp = `commands:
  register <json>            create an account and sign in
  login <email> <password>   sign in
  logout                     sign out
  whoami                     show the signed-in account
  update <json>              apply a profile patch
  accounts                   list accounts
  help                       show this help
  quit                       leave the shell`

func newShellCmd(opts *globalOptions, deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Run an interactive session",
		Long: `Run an interactive loop that keeps one session manager open. When
metrics.addr is set, /metrics and health probes are served while the
shell runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runShell(cmd, opts, deps)
		},
	}
}

func runShell(cmd *cobra.Command, opts *globalOptions, deps *Deps) (err error) {
	cfg, err := loadConfig(cmd, opts, deps)
	if err != nil {
		return err
	}
	logger, err := setupLogger(cmd, cfg)
	if err != nil {
		return err
	}

	var (
		extra   []identity.Option
		obs     ObservabilityServer
		manager *identity.Manager
	)
	if cfg.Metrics.Addr != "" {
		obs = deps.ObservabilityServerFactory(cfg.Metrics.Addr, func() bool {
			return manager != nil && manager.State() != identity.StateAuthenticating
		}, logger)
		extra = append(extra, identity.WithMetrics(obs.Metrics()))
	}

	a, err := openApp(cmd, opts, deps, cfg, logger, extra...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	manager = a.manager

	if obs != nil {
		errCh, startErr := obs.Start()
		if startErr != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(startErr)
		}
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "metrics on http://%s/metrics\n", obs.Addr())
		// The server logs serve errors itself.
		go func() {
			for range errCh {
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if stopErr := obs.Stop(ctx); stopErr != nil {
				errutil.LogError(a.logger, "observability server stop failed", stopErr)
			}
		}()
	}

	errOut := cmd.ErrOrStderr()
	manager.OnChange(func(state identity.State, s *identity.Session) {
		if s != nil {
			_, _ = fmt.Fprintf(errOut, "[%s as %s]\n", state, s.Email)
			return
		}
		_, _ = fmt.Fprintf(errOut, "[%s]\n", state)
	})
	manager.OnLogout(func() {
		_, _ = fmt.Fprintln(errOut, "[signed out]")
	})

	sh := &shell{app: a, in: cmd.InOrStdin(), out: cmd.OutOrStdout(), errOut: errOut}
	return sh.run(cmd.Context())
}

// shell reads one command per line and runs it against a single app.
type shell struct {
	app    *app
	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

var errQuit = errors.New("quit")

func (sh *shell) run(ctx context.Context) error {
	scanner := bufio.NewScanner(sh.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		sh.prompt()
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		err := sh.exec(ctx, line)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			errutil.LogErrorContext(ctx, sh.app.logger, slog.LevelDebug, "shell command failed", err)
			_, _ = fmt.Fprintln(sh.errOut, "error:", errorMessage(err))
		}
	}
	if err := scanner.Err(); err != nil {
		return oops.Code("INPUT_READ_FAILED").Wrap(err)
	}
	return nil
}

func (sh *shell) prompt() {
	name := "guest"
	if s, ok := sh.app.manager.Current(); ok {
		name = s.Email
	}
	_, _ = fmt.Fprintf(sh.out, "%s> ", name)
}

func (sh *shell) exec(ctx context.Context, line string) error {
	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	m := sh.app.manager

	switch strings.ToLower(verb) {
	case "quit", "exit":
		return errQuit
	case "help":
		_, err := fmt.Fprintln(sh.out, shellHelp)
		return err
	case "register":
		data, err := decodeRegistration([]byte(rest))
		if err != nil {
			return err
		}
		s, err := m.Register(ctx, data)
		if err != nil {
			return err
		}
		return sh.app.out.print(newSessionView(s))
	case "login":
		fields := strings.Fields(rest)
		if len(fields) != 2 {
			return oops.Code("INPUT_INVALID").Errorf("usage: login <email> <password>")
		}
		s, err := m.Login(ctx, fields[0], fields[1])
		if err != nil {
			return err
		}
		return sh.app.out.print(newSessionView(s))
	case "logout":
		if err := m.Logout(ctx); err != nil {
			return err
		}
		return sh.app.out.print(message{Message: "Signed out."})
	case "whoami":
		s, err := sh.app.requireSession()
		if err != nil {
			return err
		}
		return sh.app.out.print(newSessionView(s))
	case "update":
		patch, err := identity.DecodePatch([]byte(rest))
		if err != nil {
			return err
		}
		s, err := m.UpdateProfile(ctx, patch)
		if err != nil {
			return err
		}
		return sh.app.out.print(newSessionView(s))
	case "accounts":
		all, err := sh.app.accounts.All(ctx)
		if err != nil {
			return err
		}
		return sh.app.out.print(newAccountList(all))
	default:
		return oops.Code("INPUT_INVALID").With("command", verb).Errorf("unknown command %q (try help)", verb)
	}
}
