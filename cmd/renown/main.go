// Command renown connects a CLI to a wallet-held identity and manages the
// resulting credential.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/renown"
	"github.com/layer-3/renown/adapters/signer"
	"github.com/layer-3/renown/core"
	"github.com/layer-3/renown/service"
	"github.com/spf13/pflag"
)

const (
	pollInterval = 2 * time.Second
	sessionTTL   = core.DefaultSessionTTL
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := &Command{
		Name:    "renown",
		Summary: "Authorize this machine with an Ethereum wallet identity.",
		Subcommands: []*Command{
			connectCommand(),
			approveCommand(),
			loginCommand(),
			logoutCommand(),
			whoamiCommand(),
			verifyCommand(),
			statusCommand(),
		},
	}

	if err := root.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "renown: %v\n", err)
		os.Exit(1)
	}
}

func flags(name string, register ...func(*pflag.FlagSet)) func() *pflag.FlagSet {
	return func() *pflag.FlagSet {
		fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
		for _, r := range register {
			r(fs)
		}
		return fs
	}
}

func connectCommand() *Command {
	var opts options
	var sessionID string
	return &Command{
		Name:    "connect",
		Summary: "Open a console session and wait for a wallet to approve it",
		Usage:   "renown connect [flags]",
		Flags: flags("connect", opts.register, func(fs *pflag.FlagSet) {
			fs.StringVar(&sessionID, "session", "", "session id, generated when empty")
		}),
		Run: func(ctx context.Context, args []string) error {
			if sessionID == "" {
				sessionID = uuid.NewString()
			}
			client := opts.client()

			if _, err := client.OpenSession(ctx, sessionID); err != nil {
				return err
			}
			fmt.Printf("Session %s opened. Approve it from a wallet with:\n\n  renown approve %s --server %s\n\n", sessionID, sessionID, opts.server)

			state, err := waitForApproval(ctx, client, sessionID)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, renown.ErrSessionTimeout) {
					_ = client.CancelSession(context.Background(), sessionID)
				}
				return err
			}

			token := &renown.CachedToken{
				CredentialID: state.CredentialID,
				DocumentID:   state.UserDocumentID,
				Claims: core.Claims{
					Issuer:    state.DID,
					Address:   state.Address,
					ChainID:   state.ChainID,
					ConnectID: state.ConnectDID,
				},
			}
			if result, err := client.Verify(ctx, state.CredentialID, state.Address); err == nil && result.Payload != nil {
				token.Claims.Audience = result.Payload.Audience
				token.Claims.IssuedAt = result.Payload.IssuedAt
				token.Claims.ExpiresAt = result.Payload.ExpiresAt
			}
			if err := opts.cache().Save(ctx, token); err != nil {
				return err
			}

			fmt.Printf("Connected as %s (credential %s)\n", state.DID, state.CredentialID)
			return nil
		},
	}
}

// waitForApproval polls until the session is ready, the TTL passes or ctx
// is cancelled.
func waitForApproval(ctx context.Context, client renown.Client, sessionID string) (*renown.SessionState, error) {
	deadline := time.NewTimer(sessionTTL)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, renown.ErrSessionTimeout
		case <-ticker.C:
			state, err := client.PollSession(ctx, sessionID)
			if err != nil {
				return nil, err
			}
			if state.Status == core.SessionReady {
				return state, nil
			}
		}
	}
}

func approveCommand() *Command {
	var opts options
	var connect string
	return &Command{
		Name:    "approve",
		Summary: "Issue a credential for a waiting console session",
		Usage:   "renown approve <sessionId> [flags]",
		Flags: flags("approve", opts.register, opts.registerWallet, func(fs *pflag.FlagSet) {
			fs.StringVar(&connect, "connect", "", "DID of the connecting client, defaults to the session id")
		}),
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: renown approve <sessionId>")
			}
			sessionID := args[0]
			if connect == "" {
				connect = sessionID
			}

			issuer, err := opts.issuer()
			if err != nil {
				return err
			}
			wallet, err := opts.wallet()
			if err != nil {
				return err
			}
			client := opts.client()

			token, claims, err := issuer.Issue(ctx, signer.NewAdapter(wallet), opts.chainID, service.IssueOptions{ConnectID: connect})
			if err != nil {
				return err
			}
			reg, err := client.RegisterCredential(ctx, core.JWTCredential(token))
			if err != nil {
				return err
			}

			err = client.CompleteSession(ctx, sessionID, core.SessionCompletion{
				Address:        claims.Address,
				ChainID:        claims.ChainID,
				DID:            claims.Issuer,
				CredentialID:   reg.CredentialID,
				UserDocumentID: reg.DocumentID,
				ConnectDID:     connect,
			})
			if err != nil {
				return err
			}

			fmt.Printf("Approved session %s as %s\n", sessionID, claims.Issuer)
			return nil
		},
	}
}

func loginCommand() *Command {
	var opts options
	var connect, audience string
	return &Command{
		Name:    "login",
		Summary: "Issue and cache a credential for the local wallet",
		Usage:   "renown login [flags]",
		Flags: flags("login", opts.register, opts.registerWallet, func(fs *pflag.FlagSet) {
			fs.StringVar(&connect, "connect", "", "scope the credential to this identity")
			fs.StringVar(&audience, "audience", "", "relying application, defaults to the configured audience")
		}),
		Run: func(ctx context.Context, args []string) error {
			controller, err := opts.controller(true)
			if err != nil {
				return err
			}
			token, err := controller.Login(ctx, service.IssueOptions{ConnectID: connect, Audience: audience})
			if err != nil {
				return err
			}
			fmt.Printf("Logged in as %s until %s\n", token.DID(), token.ExpiresAt().Format(time.RFC3339))
			return nil
		},
	}
}

func logoutCommand() *Command {
	var opts options
	return &Command{
		Name:    "logout",
		Summary: "Revoke and forget the cached credential",
		Usage:   "renown logout [flags]",
		Flags:   flags("logout", opts.register),
		Run: func(ctx context.Context, args []string) error {
			controller, err := opts.controller(false)
			if err != nil {
				return err
			}
			if _, err := controller.Restore(ctx); err != nil {
				logger := opts.logger()
				logger.Warn().Err(err).Msg("could not restore credential, clearing it anyway")
			}
			if err := controller.Logout(ctx); err != nil {
				return err
			}
			fmt.Println("Logged out")
			return nil
		},
	}
}

func whoamiCommand() *Command {
	var opts options
	return &Command{
		Name:    "whoami",
		Summary: "Show the identity of the cached credential",
		Usage:   "renown whoami [flags]",
		Flags:   flags("whoami", opts.register),
		Run: func(ctx context.Context, args []string) error {
			controller, err := opts.controller(false)
			if err != nil {
				return err
			}
			snapshot, err := controller.Restore(ctx)
			if err != nil {
				return err
			}
			if snapshot.State != renown.StateAuthenticated {
				return renown.ErrNotAuthenticated
			}

			token := snapshot.Token
			if token.Token != "" {
				identity, err := opts.client().Me(ctx, token.Token)
				if err != nil {
					return err
				}
				return printJSON(identity)
			}
			return printJSON(renown.Identity{
				Address:   token.Claims.Address,
				ChainID:   token.Claims.ChainID,
				DID:       token.Claims.Issuer,
				ConnectID: token.Claims.ConnectID,
			})
		},
	}
}

func verifyCommand() *Command {
	var opts options
	var address string
	return &Command{
		Name:    "verify",
		Summary: "Verify a credential token or id",
		Usage:   "renown verify <token|credentialId> --address <address> [flags]",
		Flags: flags("verify", opts.register, func(fs *pflag.FlagSet) {
			fs.StringVar(&address, "address", "", "address that holds the credential")
		}),
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 || address == "" {
				return fmt.Errorf("usage: renown verify <token|credentialId> --address <address>")
			}
			result, err := opts.client().Verify(ctx, args[0], address)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
}

func statusCommand() *Command {
	var opts options
	return &Command{
		Name:    "status",
		Summary: "Show the newest credential held by an address or DID",
		Usage:   "renown status <address|did> [flags]",
		Flags:   flags("status", opts.register),
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: renown status <address|did>")
			}
			status, err := opts.client().Status(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(status)
		},
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
