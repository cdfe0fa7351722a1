package app

import (
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/hitoshi/recipes/internal/config"
	"github.com/spf13/cobra"
)

// NewRootCommand はrecipesコマンドのルートを生成する。
// サブコマンドを省略した場合はserveとして動作する。
// ログはwに出力する。
func NewRootCommand(w io.Writer) *cobra.Command {
	serve := newServeCommand(w)

	cmd := &cobra.Command{
		Use:           "recipes",
		Short:         "Recipe Explorer backend",
		Long:          "HTTP API for storing, searching and editing recipes kept in a single JSON file.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          serve.RunE,
	}

	cmd.AddCommand(serve)
	cmd.AddCommand(newHealthcheckCommand())
	cmd.AddCommand(newCheckStoreCommand(w))

	return cmd
}

func newServeCommand(w io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := Init(w)
			if err != nil {
				return err
			}

			// SIGINTまたはSIGTERMでグレースフルシャットダウンする
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg)
		},
	}
}

// newHealthcheckCommand はhealthcheckサブコマンドを生成する。
// 軽量コマンドのため設定の読み込みやログの初期化は行わない。
func newHealthcheckCommand() *cobra.Command {
	var baseURL string

	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe GET /health on the local server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if baseURL == "" {
				port := os.Getenv("SERVER_PORT")
				if port == "" {
					port = config.DefaultServerPort
				}
				baseURL = "http://localhost:" + port
			}
			return runHealthcheck(cmd.Context(), baseURL)
		},
	}

	cmd.Flags().StringVar(&baseURL, "url", "", "server base URL (default http://localhost:$SERVER_PORT)")

	return cmd
}

// newCheckStoreCommand はcheck-storeサブコマンドを生成する。
// 永続化ファイルを読み込み、件数を標準出力に表示する。
func newCheckStoreCommand(w io.Writer) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "check-store",
		Short: "Validate the recipe store file and report its size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				cfg, err := Init(w)
				if err != nil {
					return err
				}
				path = cfg.StorePath
			}
			return runCheckStore(cmd.Context(), cmd.OutOrStdout(), path)
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "store file to check (default $RECIPES_STORE_PATH)")

	return cmd
}
