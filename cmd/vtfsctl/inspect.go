package main

import (
	"fmt"
	"io/fs"
	"text/tabwriter"

	fss "github.com/AnishMulay/vtfs/internal/filesystem_service"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func modeString(kind fss.InodeKind, mode uint32) string {
	m := fs.FileMode(mode & fss.PermMask)
	switch kind {
	case fss.KindDirectory:
		m |= fs.ModeDir
	case fss.KindSymlink:
		m |= fs.ModeSymlink
	}
	return m.String()
}

func statCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stat PATH",
		Short: "Show the attributes of an inode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := opts.connect(cmd)
			defer s.Close()

			attrs, err := s.client.Stat(s.ctx, args[0])
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Path:\t%s\n", args[0])
			fmt.Fprintf(w, "Inode:\t%d\n", attrs.InodeID)
			fmt.Fprintf(w, "Kind:\t%s\n", attrs.Kind)
			fmt.Fprintf(w, "Mode:\t%04o (%s)\n", attrs.Mode, modeString(attrs.Kind, attrs.Mode))
			fmt.Fprintf(w, "Size:\t%s (%d bytes)\n", humanize.Bytes(uint64(attrs.Size)), attrs.Size)
			fmt.Fprintf(w, "Links:\t%d\n", attrs.LinkCount)
			fmt.Fprintf(w, "Owner:\tuid=%d gid=%d\n", attrs.UID, attrs.GID)
			fmt.Fprintf(w, "Modified:\t%s\n", humanize.Time(attrs.ModifyTime))
			fmt.Fprintf(w, "Changed:\t%s\n", humanize.Time(attrs.ChangeTime))
			return w.Flush()
		},
	}
}

func accessCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "access PATH rwx",
		Short:   "Check whether the current identity may access PATH",
		Example: `  vtfsctl --uid 200 --gid 100 access /secret rw`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mask, err := parseAccess(args[1])
			if err != nil {
				return err
			}
			s := opts.connect(cmd)
			defer s.Close()

			if err := s.client.Access(s.ctx, args[0], mask); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s granted\n", args[0], mask)
			return nil
		},
	}
}

func journalCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "journal",
		Short: "Print the retained journal entries, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := opts.connect(cmd)
			defer s.Close()

			entries, err := s.client.Journal(s.ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TXN\tOP\tINODE\tWHEN\tDESCRIPTION")
			for _, e := range entries {
				fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n", e.TransactionID, e.Op, e.InodeID, humanize.Time(e.Timestamp), e.Description)
			}
			return w.Flush()
		},
	}
}

func fsstatCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fsstat",
		Short: "Show filesystem-wide usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := opts.connect(cmd)
			defer s.Close()

			st, err := s.client.FsStat(s.ctx)
			if err != nil {
				return err
			}

			limit := "unlimited"
			if st.TotalInodes > 0 {
				limit = humanize.Comma(st.TotalInodes)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Filesystem:\t%s\n", st.FsID)
			fmt.Fprintf(w, "Inodes:\t%s used of %s\n", humanize.Comma(st.UsedInodes), limit)
			fmt.Fprintf(w, "Content:\t%s of %s\n", humanize.Bytes(uint64(st.ContentLength)), humanize.Bytes(uint64(st.ContentCapacity)))
			fmt.Fprintf(w, "Journal:\t%d of %d entries (last txn %d)\n", st.JournalEntries, st.JournalCapacity, st.LastTxnID)
			return w.Flush()
		},
	}
}
