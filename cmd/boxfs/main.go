// Command boxfs reads and writes cloud storage folders by path.
//
// Credentials and defaults are read from a YAML file given with --config, and
// the token in it is replaced with the refreshed one after every command.
//
//	boxfs --config box.yaml mkdir -p reports/2024
//	boxfs --config box.yaml put ./q1.pdf reports/2024/q1.pdf
//	boxfs --config box.yaml ls -l reports/2024
package main

import (
	"context"
	"fmt"
	"os"

	boxfs "github.com/Jumpaku/go-boxfs"
	"github.com/Jumpaku/go-boxfs/remote"
	"github.com/Jumpaku/go-boxfs/remote/boxapi"
	"github.com/Jumpaku/go-boxfs/remote/gdrive"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
)

// connectFunc builds the client for cfg. tokens, if not nil, yields the token
// to save back into the config file.
type connectFunc func(ctx context.Context, cfg Config) (client remote.Client, tokens oauth2.TokenSource, err error)

type app struct {
	configPath string
	file       Config
	flags      Config
	verbose    int
	logJSON    bool

	connect connectFunc
	log     *logrus.Logger
	fs      *boxfs.BoxFS
	tokens  oauth2.TokenSource
}

func newRootCommand(connect connectFunc) *cobra.Command {
	a := &app{connect: connect, log: logrus.New()}
	root := &cobra.Command{
		Use:                "boxfs",
		Short:              "Access cloud storage folders by path",
		SilenceUsage:       true,
		PersistentPreRunE:  a.open,
		PersistentPostRunE: a.close,
	}
	f := root.PersistentFlags()
	f.StringVarP(&a.configPath, "config", "c", "", "YAML config file holding credentials and defaults")
	f.StringVar(&a.flags.Backend, "backend", "box", `remote service, "box" or "drive"`)
	f.StringVar(&a.flags.RootID, "root-id", "", "ID of the folder paths are relative to")
	f.StringVar(&a.flags.RootPath, "root-path", "", "path of the folder paths are relative to")
	f.StringSliceVar(&a.flags.Scopes, "scope", nil, "restrict the token to these scopes")
	f.Int64Var(&a.flags.BlockSize, "block-size", boxfs.DefaultBlockSize, "download block size in bytes, uploads of ten blocks or more are chunked")
	f.CountVarP(&a.verbose, "verbose", "v", "log more, repeat for debug logs")
	f.BoolVar(&a.logJSON, "log-json", false, "log as JSON")

	root.AddCommand(
		a.lsCommand(),
		a.mkdirCommand(),
		a.putCommand(),
		a.catCommand(),
		a.cpCommand(),
		a.rmCommand(),
		a.rmdirCommand(),
		a.infoCommand(),
		a.signCommand(),
		a.touchCommand(),
	)
	return root
}

func (a *app) open(cmd *cobra.Command, args []string) error {
	a.log.SetOutput(cmd.ErrOrStderr())
	switch {
	case a.verbose >= 2:
		a.log.SetLevel(logrus.DebugLevel)
	case a.verbose == 1:
		a.log.SetLevel(logrus.InfoLevel)
	default:
		a.log.SetLevel(logrus.WarnLevel)
	}
	if a.logJSON {
		a.log.SetFormatter(&logrus.JSONFormatter{})
	}

	file, err := loadConfig(a.configPath)
	if err != nil {
		return err
	}
	a.file = file
	cfg := file.override(cmd.Flags(), a.flags)

	client, tokens, err := a.connect(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	a.tokens = tokens

	opts := []boxfs.Option{boxfs.WithLogger(a.log)}
	if cfg.RootID != "" {
		opts = append(opts, boxfs.WithRootID(cfg.RootID))
	}
	if cfg.RootPath != "" {
		opts = append(opts, boxfs.WithRootPath(cfg.RootPath))
	}
	for _, s := range cfg.Scopes {
		opts = append(opts, boxfs.WithScopes(remote.Scope(s)))
	}
	if cfg.BlockSize > 0 {
		opts = append(opts, boxfs.WithBlockSize(cfg.BlockSize))
	}
	a.fs, err = boxfs.New(cmd.Context(), client, opts...)
	if err != nil {
		return fmt.Errorf("failed to open %s session: %w", cfg.Backend, err)
	}
	return nil
}

// close writes the current token back into the config file.
func (a *app) close(cmd *cobra.Command, args []string) error {
	if a.configPath == "" || a.tokens == nil {
		return nil
	}
	token, err := a.tokens.Token()
	if err != nil {
		a.log.WithError(err).Warn("could not obtain the token to save")
		return nil
	}
	a.file.Token = newToken(token)
	return saveConfig(a.configPath, a.file)
}

func connect(ctx context.Context, cfg Config) (remote.Client, oauth2.TokenSource, error) {
	switch cfg.Backend {
	case "", "box":
		if cfg.Token == nil {
			return nil, nil, fmt.Errorf("the box backend needs a token in the config file")
		}
		var config *oauth2.Config
		if cfg.ClientID != "" {
			config = &oauth2.Config{
				ClientID:     cfg.ClientID,
				ClientSecret: cfg.ClientSecret,
				Endpoint:     boxapi.Endpoint,
			}
		}
		client := boxapi.New(ctx, config, cfg.Token.OAuth2())
		return client, client, nil
	case "drive":
		if cfg.Token == nil {
			tokens, err := google.DefaultTokenSource(ctx, drive.DriveScope)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to find default credentials: %w", err)
			}
			client, err := gdrive.New(ctx, tokens)
			return client, nil, err
		}
		config := &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{drive.DriveScope},
		}
		tokens := oauth2.ReuseTokenSource(nil, config.TokenSource(ctx, cfg.Token.OAuth2()))
		client, err := gdrive.New(ctx, tokens)
		return client, tokens, err
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func main() {
	if err := newRootCommand(connect).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
