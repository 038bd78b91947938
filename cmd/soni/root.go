package main

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"

	soni "github.com/jmorenobl/soni-sub003"
	"github.com/jmorenobl/soni-sub003/internal/logging"
	"github.com/jmorenobl/soni-sub003/pkg/adapters/keyword"
	redisadapter "github.com/jmorenobl/soni-sub003/pkg/adapters/redis"
	"github.com/jmorenobl/soni-sub003/pkg/flows"
	"github.com/jmorenobl/soni-sub003/pkg/persistence/middleware"
	"github.com/jmorenobl/soni-sub003/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "soni",
	Short: "Soni is a deterministic dialogue orchestration engine",
	Long:  `Soni runs business conversations as declarative flows: YAML step lists compiled into graphs, executed turn by turn with durable session state.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("flows", "./flows", "Directory containing flow YAML definitions")
	rootCmd.PersistentFlags().String("redis", "", "Redis address for durable sessions (empty = in-memory)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
}

// buildEngine assembles an engine from the persistent flags plus the
// extra options the caller needs.
func buildEngine(cmd *cobra.Command, extra ...soni.Option) (*soni.Engine, *slog.Logger, error) {
	flowsDir, _ := cmd.Flags().GetString("flows")
	redisAddr, _ := cmd.Flags().GetString("redis")
	levelName, _ := cmd.Flags().GetString("log-level")

	var level slog.Level
	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", levelName, err)
	}
	logger := logging.New(level)

	defs, err := flows.LoadDir(flowsDir)
	if err != nil {
		return nil, nil, fmt.Errorf("load flows from %s: %w", flowsDir, err)
	}

	opts := []soni.Option{
		soni.WithLogger(logger),
		soni.WithUnderstanding(keyword.New()),
	}

	if redisAddr != "" {
		client := backend.NewClient(&backend.Options{Addr: redisAddr})
		var store ports.CheckpointStore = redisadapter.NewFromClient(client)
		if mw, err := encryptionFromEnv(); err != nil {
			return nil, nil, err
		} else if mw != nil {
			store = middleware.Chain(store, mw)
		}
		opts = append(opts,
			soni.WithCheckpointStore(store),
			soni.WithLocker(redisadapter.NewLocker(client, "soni:session:")),
		)
	}
	opts = append(opts, extra...)

	engine, err := soni.New(defs, opts...)
	if err != nil {
		return nil, nil, err
	}
	return engine, logger, nil
}

// encryptionFromEnv reads SONI_ENCRYPTION_KEY (base64, 32 bytes) and
// returns an encryption middleware, or nil when the variable is unset.
func encryptionFromEnv() (middleware.Middleware, error) {
	encoded := os.Getenv("SONI_ENCRYPTION_KEY")
	if encoded == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode SONI_ENCRYPTION_KEY: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("SONI_ENCRYPTION_KEY must decode to 32 bytes, got %d", len(key))
	}
	return middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}), nil
}
