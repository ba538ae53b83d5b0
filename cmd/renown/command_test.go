package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTree(got *[]string, name *string) *Command {
	return &Command{
		Name: "renown",
		Subcommands: []*Command{
			{
				Name:    "approve",
				Summary: "Approve a console session",
				Usage:   "renown approve <sessionId> [flags]",
				Flags: func() *pflag.FlagSet {
					fs := pflag.NewFlagSet("approve", pflag.ContinueOnError)
					fs.StringVar(name, "connect", "", "DID to scope the credential to")
					return fs
				},
				Run: func(_ context.Context, args []string) error {
					*got = args
					return nil
				},
			},
		},
	}
}

func TestCommandDispatch(t *testing.T) {
	var (
		got     []string
		connect string
	)
	root := testTree(&got, &connect)

	require.NoError(t, root.Execute(context.Background(), []string{"approve", "s1", "--connect", "did:key:cli"}))
	assert.Equal(t, []string{"s1"}, got)
	assert.Equal(t, "did:key:cli", connect)
}

func TestCommandErrors(t *testing.T) {
	var (
		got     []string
		connect string
	)
	root := testTree(&got, &connect)

	err := root.Execute(context.Background(), []string{"nope"})
	assert.ErrorContains(t, err, `unknown command "nope"`)

	err = root.Execute(context.Background(), []string{"approve", "--bogus"})
	assert.ErrorContains(t, err, "renown approve --help")

	assert.NoError(t, root.Execute(context.Background(), []string{"approve", "--help"}))
	assert.Nil(t, got)
}

func TestCommandHelp(t *testing.T) {
	var (
		got     []string
		connect string
	)
	root := testTree(&got, &connect)

	var buf bytes.Buffer
	root.PrintHelp(&buf)
	assert.Contains(t, buf.String(), "approve")
	assert.Contains(t, buf.String(), "Approve a console session")

	buf.Reset()
	root.Subcommands[0].PrintHelp(&buf)
	assert.Contains(t, buf.String(), "renown approve <sessionId> [flags]")
	assert.Contains(t, buf.String(), "--connect")
}

func TestLogoutClearsCorruptCache(t *testing.T) {
	dir := t.TempDir()
	cachePath := filepath.Join(dir, "credential.json")
	require.NoError(t, os.WriteFile(cachePath, []byte("{not json"), 0o600))

	err := logoutCommand().Execute(context.Background(), []string{
		"--cache", cachePath,
		"--config", filepath.Join(dir, "missing.toml"),
		"--server", "http://127.0.0.1:1",
	})
	require.NoError(t, err)

	_, err = os.Stat(cachePath)
	assert.True(t, os.IsNotExist(err))
}
