package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	vtfslib "github.com/AnishMulay/vtfs/clients/library"
	grpccomm "github.com/AnishMulay/vtfs/internal/communication/grpc"
	fss "github.com/AnishMulay/vtfs/internal/filesystem_service"
	"github.com/spf13/cobra"
)

type globalOptions struct {
	server  string
	uid     uint32
	gid     uint32
	timeout time.Duration
}

// session is a connected client plus the deadline for one command.
type session struct {
	client *vtfslib.VtfsClient
	comm   *grpccomm.GRPCCommunicator
	ctx    context.Context
	cancel context.CancelFunc
}

func (s *session) Close() {
	s.cancel()
	_ = s.comm.Stop()
}

func (o *globalOptions) connect(cmd *cobra.Command) *session {
	comm := grpccomm.NewGRPCCommunicator("", nil)
	client := vtfslib.NewVtfsClient(o.server, comm, fss.Credential{UID: o.uid, GID: o.gid})
	client.From = "vtfsctl"

	ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
	return &session{client: client, comm: comm, ctx: ctx, cancel: cancel}
}

func New() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:               "vtfsctl",
		Short:             "Inspect and modify a running vtfs server",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
	}

	cmd.AddCommand(mkdirCmd(opts))
	cmd.AddCommand(touchCmd(opts))
	cmd.AddCommand(lnCmd(opts))
	cmd.AddCommand(rmCmd(opts))
	cmd.AddCommand(rmdirCmd(opts))
	cmd.AddCommand(catCmd(opts))
	cmd.AddCommand(writeCmd(opts))
	cmd.AddCommand(readlinkCmd(opts))
	cmd.AddCommand(statCmd(opts))
	cmd.AddCommand(lsCmd(opts))
	cmd.AddCommand(accessCmd(opts))
	cmd.AddCommand(journalCmd(opts))
	cmd.AddCommand(fsstatCmd(opts))

	cmd.PersistentFlags().StringVar(&opts.server, "server", "localhost:9000", "address of the vtfs server")
	cmd.PersistentFlags().Uint32Var(&opts.uid, "uid", 0, "user id to act as")
	cmd.PersistentFlags().Uint32Var(&opts.gid, "gid", 0, "group id to act as")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "per-command deadline")
	return cmd
}

func parseMode(s string) (uint32, error) {
	mode, err := strconv.ParseUint(strings.TrimPrefix(s, "0o"), 8, 32)
	if err != nil || mode > 0o777 {
		return 0, fmt.Errorf("invalid mode %q: expected octal such as 0644", s)
	}
	return uint32(mode), nil
}

// parseAccess turns "rwx"-style letters into an access mask.
func parseAccess(s string) (fss.AccessMask, error) {
	var mask fss.AccessMask
	for _, r := range s {
		switch r {
		case 'r':
			mask |= fss.AccessRead
		case 'w':
			mask |= fss.AccessWrite
		case 'x':
			mask |= fss.AccessExecute
		default:
			return 0, fmt.Errorf("invalid access %q: use letters r, w and x", s)
		}
	}
	if mask == 0 {
		return 0, fmt.Errorf("empty access mask")
	}
	return mask, nil
}
