// Package mcp exposes the dice roller as Model Context Protocol tools.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sipeed/picodice/pkg/alias"
	"github.com/sipeed/picodice/pkg/logger"
	"github.com/sipeed/picodice/pkg/metrics"
	"github.com/sipeed/picodice/pkg/roller"
)

const (
	DefaultServerName = "picodice"
	// DefaultOwner is used when a tool call does not name a user.
	DefaultOwner = "mcp"
	// Channel scopes tool users apart from chat senders with the same ID.
	Channel = "mcp"
)

// Options configure the tool server.
type Options struct {
	Name    string
	Version string
	Metrics *metrics.Metrics
}

// NewServer builds an MCP server with the roll, alias and history tools
// registered over r.
func NewServer(r *roller.Roller, opts Options) *sdkmcp.Server {
	if r == nil {
		r = roller.New(nil, nil, nil)
	}
	if opts.Name == "" {
		opts.Name = DefaultServerName
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	server := sdkmcp.NewServer(&sdkmcp.Implementation{Name: opts.Name, Version: opts.Version}, nil)
	t := &tools{roller: r, metrics: opts.Metrics}

	sdkmcp.AddTool(server, rollTool(), t.roll)
	sdkmcp.AddTool(server, aliasSaveTool(), t.aliasSave)
	sdkmcp.AddTool(server, aliasListTool(), t.aliasList)
	sdkmcp.AddTool(server, aliasDeleteTool(), t.aliasDelete)
	sdkmcp.AddTool(server, historyTool(), t.history)
	return server
}

// Run serves tool calls on transport until ctx is done or the client
// disconnects.
func Run(ctx context.Context, server *sdkmcp.Server, transport sdkmcp.Transport) error {
	logger.InfoC("mcp", "Serving dice tools")
	if err := server.Run(ctx, transport); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

// UserError is returned by tool handlers for input problems. Its message is
// the text a chat user would have seen for the same command.
type UserError struct {
	Message string
}

func (e *UserError) Error() string { return e.Message }

func userOf(user string) string {
	user = strings.TrimSpace(user)
	if user == "" {
		return DefaultOwner
	}
	return user
}

// ownerOf is the store key for user, in the same "channel:id" form the chat
// commands use.
func ownerOf(user string) string {
	return Channel + ":" + userOf(user)
}

func displayNameOf(name, owner string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return owner
}

func isAliasNotFound(err error) bool {
	return errors.Is(err, alias.ErrAliasNotFound)
}
