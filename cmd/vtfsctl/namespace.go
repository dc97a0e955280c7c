package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func mkdirCmd(opts *globalOptions) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:     "mkdir PATH",
		Short:   "Create a directory",
		Example: `  vtfsctl mkdir /projects --mode 0750`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			perm, err := parseMode(mode)
			if err != nil {
				return err
			}
			s := opts.connect(cmd)
			defer s.Close()

			inode, err := s.client.Mkdir(s.ctx, args[0], perm)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: inode %d\n", args[0], inode.InodeID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", "0755", "permission bits in octal")
	return cmd
}

func touchCmd(opts *globalOptions) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "touch PATH",
		Short: "Create an empty regular file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			perm, err := parseMode(mode)
			if err != nil {
				return err
			}
			s := opts.connect(cmd)
			defer s.Close()

			inode, err := s.client.Create(s.ctx, args[0], perm)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: inode %d\n", args[0], inode.InodeID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", "0644", "permission bits in octal")
	return cmd
}

func lnCmd(opts *globalOptions) *cobra.Command {
	var symbolic bool

	cmd := &cobra.Command{
		Use:   "ln TARGET LINK",
		Short: "Create a hard link, or a symbolic link with -s",
		Long: `Create a hard link named LINK for the file at TARGET.

With -s, LINK becomes a symbolic link whose content is TARGET. The target is
stored as given and does not have to exist.
`,
		Example: `  vtfsctl ln /docs/a /docs/b
  vtfsctl ln -s /docs/a /latest`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := opts.connect(cmd)
			defer s.Close()

			if symbolic {
				inode, err := s.client.Symlink(s.ctx, args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s: inode %d\n", args[1], args[0], inode.InodeID)
				return nil
			}
			return s.client.Link(s.ctx, args[0], args[1])
		},
	}
	cmd.Flags().BoolVarP(&symbolic, "symbolic", "s", false, "create a symbolic link")
	return cmd
}

func rmCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rm PATH",
		Short: "Remove a file or symbolic link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := opts.connect(cmd)
			defer s.Close()
			return s.client.Unlink(s.ctx, args[0])
		},
	}
}

func rmdirCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rmdir PATH",
		Short: "Remove an empty directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := opts.connect(cmd)
			defer s.Close()
			return s.client.Rmdir(s.ctx, args[0])
		},
	}
}

func lsCmd(opts *globalOptions) *cobra.Command {
	var long bool

	cmd := &cobra.Command{
		Use:   "ls [PATH]",
		Short: "List a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "/"
			if len(args) == 1 {
				dir = args[0]
			}
			s := opts.connect(cmd)
			defer s.Close()

			entries, err := s.client.ReadDir(s.ctx, dir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range entries {
				if long {
					fmt.Fprintf(out, "%6d  %-9s  %s\n", e.InodeID, e.Kind, e.Name)
					continue
				}
				fmt.Fprintln(out, e.Name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&long, "long", "l", false, "show inode ids and kinds")
	return cmd
}
