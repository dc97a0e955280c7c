package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func catCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cat PATH",
		Short: "Print the content of a file",
		Long: `Print the content of a file.

All regular files share one content buffer, so every file prints the same
bytes. The first open of any file seeds the buffer with a greeting.
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := opts.connect(cmd)
			defer s.Close()

			data, err := s.client.ReadFile(s.ctx, args[0])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func writeCmd(opts *globalOptions) *cobra.Command {
	var (
		offset int64
		mode   string
	)

	cmd := &cobra.Command{
		Use:     "write PATH DATA",
		Short:   "Write DATA into a file, creating it if needed",
		Example: `  vtfsctl write /notes "hello" --offset 6`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			perm, err := parseMode(mode)
			if err != nil {
				return err
			}
			s := opts.connect(cmd)
			defer s.Close()

			n, err := s.client.WriteFile(s.ctx, args[0], offset, []byte(args[1]), perm)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s", humanize.Bytes(uint64(n)))
			if n < len(args[1]) {
				fmt.Fprintf(cmd.OutOrStdout(), " (truncated from %s)", humanize.Bytes(uint64(len(args[1]))))
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().Int64VarP(&offset, "offset", "o", 0, "byte offset to write at")
	cmd.Flags().StringVarP(&mode, "mode", "m", "0644", "permission bits when the file is created")
	return cmd
}

func readlinkCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "readlink PATH",
		Short: "Print the target of a symbolic link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := opts.connect(cmd)
			defer s.Close()

			target, err := s.client.Readlink(s.ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), target)
			return nil
		},
	}
}
