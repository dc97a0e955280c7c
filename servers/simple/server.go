package simple

import (
	"errors"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	grpccomm "github.com/AnishMulay/vtfs/internal/communication/grpc"
	"github.com/AnishMulay/vtfs/internal/config"
	"github.com/AnishMulay/vtfs/internal/filesystem_service/inmemory"
	fsserver "github.com/AnishMulay/vtfs/internal/fs_server/simple"
	"github.com/AnishMulay/vtfs/internal/log_service"
	"github.com/AnishMulay/vtfs/internal/log_service/console"
	"github.com/AnishMulay/vtfs/internal/log_service/localdisc"
)

type runnable interface {
	Run() error
}

// Node is one vtfs server: a mounted in-memory filesystem behind a gRPC
// communicator.
type Node struct {
	server *fsserver.SimpleFsServer
	ls     log_service.LogService
	closer io.Closer
}

func (n *Node) Start() error {
	return n.server.Start()
}

func (n *Node) Stop() error {
	err := n.server.Stop()
	if n.closer != nil {
		err = errors.Join(err, n.closer.Close())
	}
	return err
}

func (n *Node) Address() string {
	return n.server.Address()
}

func (n *Node) Run() error {
	if err := n.Start(); err != nil {
		return err
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	sig := <-c
	n.ls.Info(log_service.LogEvent{Message: "Received signal", Metadata: map[string]any{"signal": sig.String()}})

	return n.Stop()
}

// Options converts the filesystem section of cfg into service options.
func Options(cfg *config.Config) (inmemory.Options, error) {
	rootMode, err := cfg.Filesystem.RootModeBits()
	if err != nil {
		return inmemory.Options{}, err
	}

	return inmemory.Options{
		MaxInodes:              cfg.Filesystem.MaxInodes,
		MaxFilenameSize:        cfg.Filesystem.MaxFilenameSize,
		ContentCapacity:        cfg.Filesystem.ContentCapacity,
		DefaultContent:         cfg.Filesystem.DefaultContent,
		JournalCapacity:        cfg.Filesystem.JournalCapacity,
		LegacyJournalNumbering: cfg.Filesystem.LegacyJournalNumbering,
		MaxNegativeEntries:     cfg.Filesystem.MaxNegativeEntries,
		RootMode:               rootMode,
		SuperuserBypass:        cfg.Filesystem.SuperuserBypass,
	}, nil
}

func newLogService(cfg *config.Config, stdout io.Writer) (log_service.LogService, io.Closer, error) {
	if cfg.Log.Sink == config.SinkLocalDisc {
		ls, err := localdisc.NewLocalDiscLogService(filepath.Join(cfg.DataDir, "logs"), cfg.NodeID, cfg.Log.Level)
		if err != nil {
			return nil, nil, err
		}
		return ls, ls, nil
	}
	return console.NewConsoleLogService(stdout, cfg.NodeID, cfg.Log.Level, cfg.Log.NoColor), nil, nil
}

// New wires a node from cfg without starting it.
func New(cfg *config.Config, stdout io.Writer) (*Node, error) {
	opts, err := Options(cfg)
	if err != nil {
		return nil, err
	}

	ls, closer, err := newLogService(cfg, stdout)
	if err != nil {
		return nil, err
	}

	fs := inmemory.NewInMemoryFilesystemService(opts, ls)
	comm := grpccomm.NewGRPCCommunicator(cfg.ListenAddr, ls)
	srv := fsserver.NewSimpleFsServer(comm, fs, ls)

	return &Node{server: srv, ls: ls, closer: closer}, nil
}

func Build(cfg *config.Config) (runnable, error) {
	node, err := New(cfg, os.Stdout)
	if err != nil {
		return nil, err
	}
	return node, nil
}
