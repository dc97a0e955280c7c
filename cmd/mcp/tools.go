package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	defaultFileMode = 0o644
	probeTimeout    = 2 * time.Second
)

func serverOption() mcp.ToolOption {
	return mcp.WithString("server_id", mcp.Description("Configured server to talk to. Defaults to the default_server entry"))
}

func pathOption(desc string) mcp.ToolOption {
	return mcp.WithString("path", mcp.Required(), mcp.Description(desc))
}

func addTools(s *server.MCPServer, registry *ServerRegistry) {
	s.AddTool(mcp.NewTool("list_servers",
		mcp.WithDescription("List the configured vtfs servers and whether they respond"),
	), registry.handleListServers)

	s.AddTool(mcp.NewTool("mkdir",
		mcp.WithDescription("Create a directory"),
		pathOption("Absolute path of the new directory"),
		mcp.WithString("mode", mcp.Description("Octal permission bits, e.g. 0755")),
		serverOption(),
	), registry.handleMkdir)

	s.AddTool(mcp.NewTool("create_file",
		mcp.WithDescription("Create an empty regular file"),
		pathOption("Absolute path of the new file"),
		mcp.WithString("mode", mcp.Description("Octal permission bits, e.g. 0644")),
		serverOption(),
	), registry.handleCreateFile)

	s.AddTool(mcp.NewTool("write_file",
		mcp.WithDescription("Write text into a file at an offset, creating the file when missing"),
		pathOption("Absolute path of the file"),
		mcp.WithString("content", mcp.Required(), mcp.Description("Text to write")),
		mcp.WithNumber("offset", mcp.Description("Byte offset to write at")),
		serverOption(),
	), registry.handleWriteFile)

	s.AddTool(mcp.NewTool("read_file",
		mcp.WithDescription("Read the content of a file"),
		pathOption("Absolute path of the file"),
		serverOption(),
	), registry.handleReadFile)

	s.AddTool(mcp.NewTool("list_dir",
		mcp.WithDescription("List the entries of a directory"),
		pathOption("Absolute path of the directory"),
		serverOption(),
	), registry.handleListDir)

	s.AddTool(mcp.NewTool("stat",
		mcp.WithDescription("Show the attributes of a path"),
		pathOption("Absolute path to inspect"),
		serverOption(),
	), registry.handleStat)

	s.AddTool(mcp.NewTool("unlink",
		mcp.WithDescription("Remove a file or symbolic link"),
		pathOption("Absolute path to remove"),
		serverOption(),
	), registry.handleUnlink)

	s.AddTool(mcp.NewTool("rmdir",
		mcp.WithDescription("Remove an empty directory"),
		pathOption("Absolute path of the directory"),
		serverOption(),
	), registry.handleRmdir)

	s.AddTool(mcp.NewTool("symlink",
		mcp.WithDescription("Create a symbolic link"),
		mcp.WithString("target", mcp.Required(), mcp.Description("Target stored in the link, never resolved")),
		pathOption("Absolute path of the new link"),
		serverOption(),
	), registry.handleSymlink)

	s.AddTool(mcp.NewTool("journal",
		mcp.WithDescription("Show the create/unlink journal"),
		serverOption(),
	), registry.handleJournal)

	s.AddTool(mcp.NewTool("fsstat",
		mcp.WithDescription("Show filesystem usage"),
		serverOption(),
	), registry.handleFsStat)
}

func parseModeArg(request mcp.CallToolRequest, def uint32) (uint32, error) {
	raw := request.GetString("mode", "")
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(raw, "0o"), 8, 32)
	if err != nil || v > 0o777 {
		return 0, fmt.Errorf("invalid mode %q", raw)
	}
	return uint32(v), nil
}

// handleListServers probes every configured server with fsstat and records
// the outcome in the node registry.
func (r *ServerRegistry) handleListServers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var b strings.Builder
	for _, n := range r.Nodes.GetNodes() {
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		_, err := r.Clients[n.ID].FsStat(probeCtx)
		cancel()
		_ = r.Nodes.MarkHealthy(n.ID, err == nil)

		state := "up"
		if err != nil {
			state = "down"
		}
		marker := ""
		if n.ID == r.DefaultServer {
			marker = " (default)"
		}
		fmt.Fprintf(&b, "%s: %s %s%s\n", n.ID, n.Address, state, marker)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (r *ServerRegistry) handleMkdir(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	mode, err := parseModeArg(request, 0o755)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	client, err := r.client(request.GetString("server_id", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	inode, err := client.Mkdir(ctx, path, mode)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create directory: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Created directory %s (inode %d)", path, inode.InodeID)), nil
}

func (r *ServerRegistry) handleCreateFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	mode, err := parseModeArg(request, defaultFileMode)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	client, err := r.client(request.GetString("server_id", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	inode, err := client.Create(ctx, path, mode)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create file: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Created file %s (inode %d)", path, inode.InodeID)), nil
}

func (r *ServerRegistry) handleWriteFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := request.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	offset := request.GetInt("offset", 0)
	if offset < 0 {
		return mcp.NewToolResultError("offset must not be negative"), nil
	}
	client, err := r.client(request.GetString("server_id", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	n, err := client.WriteFile(ctx, path, int64(offset), []byte(content), defaultFileMode)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to write file: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Wrote %d bytes to %s", n, path)), nil
}

func (r *ServerRegistry) handleReadFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	client, err := r.client(request.GetString("server_id", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	data, err := client.ReadFile(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to read file: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (r *ServerRegistry) handleListDir(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	client, err := r.client(request.GetString("server_id", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	entries, err := client.ReadDir(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list directory: %v", err)), nil
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s\t%s\t%d\n", e.Name, e.Kind, e.InodeID)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (r *ServerRegistry) handleStat(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	client, err := r.client(request.GetString("server_id", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	attrs, err := client.Stat(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to stat: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"inode=%d kind=%s mode=%04o size=%d links=%d uid=%d gid=%d mtime=%s",
		attrs.InodeID, attrs.Kind, attrs.Mode, attrs.Size, attrs.LinkCount,
		attrs.UID, attrs.GID, attrs.ModifyTime.Format("2006-01-02T15:04:05Z07:00"),
	)), nil
}

func (r *ServerRegistry) handleUnlink(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	client, err := r.client(request.GetString("server_id", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := client.Unlink(ctx, path); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to unlink: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Removed %s", path)), nil
}

func (r *ServerRegistry) handleRmdir(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	client, err := r.client(request.GetString("server_id", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := client.Rmdir(ctx, path); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to remove directory: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Removed directory %s", path)), nil
}

func (r *ServerRegistry) handleSymlink(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	target, err := request.RequireString("target")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	client, err := r.client(request.GetString("server_id", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	inode, err := client.Symlink(ctx, target, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create symlink: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Linked %s -> %s (inode %d)", path, target, inode.InodeID)), nil
}

func (r *ServerRegistry) handleJournal(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, err := r.client(request.GetString("server_id", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	entries, err := client.Journal(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to read journal: %v", err)), nil
	}
	if len(entries) == 0 {
		return mcp.NewToolResultText("journal is empty"), nil
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%d\t%s\t%d\t%s\n", e.TransactionID, e.Op, e.InodeID, e.Description)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (r *ServerRegistry) handleFsStat(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, err := r.client(request.GetString("server_id", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	st, err := client.FsStat(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to stat filesystem: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"fsid=%s inodes=%d/%d content=%d/%d journal=%d/%d last_txn=%d",
		st.FsID, st.UsedInodes, st.TotalInodes, st.ContentLength, st.ContentCapacity,
		st.JournalEntries, st.JournalCapacity, st.LastTxnID,
	)), nil
}
