package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	vtfslib "github.com/AnishMulay/vtfs/clients/library"
	grpccomm "github.com/AnishMulay/vtfs/internal/communication/grpc"
	fss "github.com/AnishMulay/vtfs/internal/filesystem_service"
	"github.com/AnishMulay/vtfs/internal/log_service"
	"github.com/AnishMulay/vtfs/internal/log_service/localdisc"
	"github.com/AnishMulay/vtfs/internal/node_registry"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

type ServerEntry struct {
	ID      string `yaml:"id"`
	Address string `yaml:"address"`
}

type MCPConfig struct {
	Servers       []ServerEntry `yaml:"servers"`
	DefaultServer string        `yaml:"default_server"`
	UID           uint32        `yaml:"uid"`
	GID           uint32        `yaml:"gid"`
	LogDir        string        `yaml:"log_dir"`
}

func defaultConfig() *MCPConfig {
	return &MCPConfig{
		Servers:       []ServerEntry{{ID: "server1", Address: "localhost:9000"}},
		DefaultServer: "server1",
		LogDir:        "./run/mcp",
	}
}

func LoadConfig(path string) (*MCPConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg := defaultConfig()

		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal default config: %w", err)
		}
		if err := os.WriteFile(path, out, 0644); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// ServerRegistry keeps one client per configured server, all sharing a
// communicator and the identity from the config.
type ServerRegistry struct {
	Nodes         node_registry.NodeRegistry
	Clients       map[string]*vtfslib.VtfsClient
	DefaultServer string
}

func NewServerRegistry(cfg *MCPConfig, comm *grpccomm.GRPCCommunicator) (*ServerRegistry, error) {
	r := &ServerRegistry{
		Nodes:         node_registry.NewInMemoryNodeRegistry(),
		Clients:       make(map[string]*vtfslib.VtfsClient),
		DefaultServer: cfg.DefaultServer,
	}
	cred := fss.Credential{UID: cfg.UID, GID: cfg.GID}
	for _, s := range cfg.Servers {
		if err := r.Nodes.RegisterNode(node_registry.Node{ID: s.ID, Address: s.Address}); err != nil {
			return nil, fmt.Errorf("server %q: %w", s.ID, err)
		}
		client := vtfslib.NewVtfsClient(s.Address, comm, cred)
		client.From = "mcp-server"
		r.Clients[s.ID] = client
	}
	return r, nil
}

func (r *ServerRegistry) client(serverID string) (*vtfslib.VtfsClient, error) {
	if serverID == "" {
		serverID = r.DefaultServer
	}
	if _, err := r.Nodes.GetNode(serverID); err != nil {
		return nil, fmt.Errorf("server %s not found", serverID)
	}
	return r.Clients[serverID], nil
}

func main() {
	configPath := pflag.StringP("config", "c", "mcp_config.yaml", "Path to the MCP config file")
	pflag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// stdout carries the MCP protocol, so logs go to disk.
	ls, err := localdisc.NewLocalDiscLogService(cfg.LogDir, "mcp-server", log_service.InfoLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log: %v\n", err)
		os.Exit(1)
	}
	defer ls.Close()

	comm := grpccomm.NewGRPCCommunicator("", ls)
	defer comm.Stop()

	s := server.NewMCPServer(
		"vtfs",
		"1.0.0",
		server.WithToolCapabilities(false),
	)
	registry, err := NewServerRegistry(cfg, comm)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid server list: %v\n", err)
		os.Exit(1)
	}
	addTools(s, registry)

	if err := server.ServeStdio(s); err != nil {
		ls.Error(log_service.LogEvent{Message: "MCP server error", Metadata: map[string]any{"error": err.Error()}})
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
	}
}
