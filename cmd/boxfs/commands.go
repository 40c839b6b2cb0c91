package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	boxfs "github.com/Jumpaku/go-boxfs"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

func (a *app) lsCommand() *cobra.Command {
	var long, refresh bool
	cmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List a folder, or describe a file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) > 0 {
				path = args[0]
			}
			entries, err := a.fs.Ls(cmd.Context(), path, refresh)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, e := range entries {
				if !long {
					fmt.Fprintln(w, e.Path)
					continue
				}
				kind, size := "-", humanize.IBytes(uint64(e.Size))
				if e.IsFolder() {
					kind, size = "d", "-"
				}
				fmt.Fprintf(w, "%s %9s %-16s %s\n", kind, size, humanize.Time(e.ModifiedAt), e.Path)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&long, "long", "l", false, "show type, size and modification time")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "ignore listings kept from earlier calls")
	return cmd
}

func (a *app) mkdirCommand() *cobra.Command {
	var parents bool
	cmd := &cobra.Command{
		Use:   "mkdir path...",
		Short: "Create folders",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				if err := a.fs.Mkdir(cmd.Context(), path, parents); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&parents, "parents", "p", false, "create missing parent folders")
	return cmd
}

func (a *app) putCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "put local remote",
		Short: `Upload a local file, or standard input if local is "-"`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				src = f
			}
			w, err := a.fs.Create(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			if _, err := io.Copy(w, src); err != nil {
				return errors.Join(fmt.Errorf("failed to upload %s: %w", args[0], err), w.Abort())
			}
			if err := w.Close(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), w.Item().ID)
			return nil
		},
	}
}

func (a *app) catCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cat path",
		Short: "Write a file to standard output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.fs.Open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			_, err = io.Copy(cmd.OutOrStdout(), f)
			return err
		},
	}
}

func (a *app) cpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cp src dest",
		Short: "Copy a file or folder; dest must not exist",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.fs.CpFile(cmd.Context(), args[0], args[1])
		},
	}
}

func (a *app) rmCommand() *cobra.Command {
	var etag string
	cmd := &cobra.Command{
		Use:   "rm path",
		Short: "Delete a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.fs.RmFile(cmd.Context(), args[0], etag)
		},
	}
	cmd.Flags().StringVar(&etag, "etag", "", "delete only if the file's etag matches")
	return cmd
}

func (a *app) rmdirCommand() *cobra.Command {
	var etag string
	cmd := &cobra.Command{
		Use:   "rmdir path",
		Short: "Delete a folder with everything inside it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.fs.Rmdir(cmd.Context(), args[0], etag)
		},
	}
	cmd.Flags().StringVar(&etag, "etag", "", "delete only if the folder's etag matches")
	return cmd
}

type infoView struct {
	Path     string    `yaml:"path"`
	Name     string    `yaml:"name"`
	Type     string    `yaml:"type"`
	ID       string    `yaml:"id"`
	Size     int64     `yaml:"size"`
	Created  time.Time `yaml:"created"`
	Modified time.Time `yaml:"modified"`
	ETag     string    `yaml:"etag,omitempty"`
	SHA1     string    `yaml:"sha1,omitempty"`
}

func newInfoView(e boxfs.Entry) infoView {
	return infoView{
		Path:     e.Path.String(),
		Name:     e.Name,
		Type:     e.Type.String(),
		ID:       e.ID,
		Size:     e.Size,
		Created:  e.CreatedAt,
		Modified: e.ModifiedAt,
		ETag:     e.ETag,
		SHA1:     e.SHA1,
	}
}

func (a *app) infoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info path",
		Short: "Print the metadata of a file or folder as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.fs.Info(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(newInfoView(e))
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func (a *app) signCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sign path",
		Short: "Print a URL the file can be downloaded from without credentials",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := a.fs.Sign(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}
}

func (a *app) touchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "touch path...",
		Short: "Create empty files where nothing exists",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				if err := a.fs.Touch(cmd.Context(), path); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
