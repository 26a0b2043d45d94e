// Package cli implements portfolioctl, the operator commands for the chat
// context blob and the CV sidecar.
package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"portfolio-functions/internal/chatcontext"
	"portfolio-functions/internal/config"
	"portfolio-functions/internal/integrations/blobstore"
	"portfolio-functions/internal/logging"
)

// BlobStore is the context store as seen by the CLI: readable by the
// provider chain and writable by upload.
type BlobStore interface {
	chatcontext.BlobStore
	Set(ctx context.Context, key, content string) (string, error)
}

// Deps are the seams the commands are built on.
type Deps struct {
	LoadConfig    func(envFile string) (*config.Config, error)
	OpenBlobStore func(ctx context.Context, cfg *config.Config) (BlobStore, error)
	HTTPClient    *http.Client
}

func DefaultDeps() Deps {
	return Deps{
		LoadConfig:    config.Load,
		OpenBlobStore: openS3Store,
	}
}

type app struct {
	deps     Deps
	envFile  string
	logLevel string
	cfg      *config.Config
}

func NewRootCmd(deps Deps) *cobra.Command {
	a := &app{deps: deps}
	root := &cobra.Command{
		Use:           "portfolioctl",
		Short:         "Operator commands for the portfolio functions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded beneath the environment, ignored if missing")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (default: $LOG_LEVEL or info)")

	root.AddCommand(
		newContextCmd(a),
		newCVCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	if a.deps.LoadConfig == nil {
		return errors.New("cli: config loader is not set")
	}
	cfg, err := a.deps.LoadConfig(a.envFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := cfg.LogLevel
	if a.logLevel != "" {
		level = a.logLevel
	}
	logger := logging.NewConsole(cmd.ErrOrStderr(), level)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(logger.WithContext(ctx))
	return nil
}

func (a *app) openBlobStore(ctx context.Context) (BlobStore, error) {
	if a.deps.OpenBlobStore == nil {
		return nil, errors.New("cli: blob store is not available")
	}
	return a.deps.OpenBlobStore(ctx, a.cfg)
}

func openS3Store(ctx context.Context, cfg *config.Config) (BlobStore, error) {
	if cfg.Context.Bucket == "" {
		return nil, errors.New("cli: CONTEXT_BUCKET is not set")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("cli: load AWS config: %w", err)
	}
	store, err := blobstore.New(s3.NewFromConfig(awsCfg), cfg.Context.Bucket)
	if err != nil {
		return nil, err
	}
	return store, nil
}
