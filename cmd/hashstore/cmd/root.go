package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aweris/hashstore"
)

var rootCmd = &cobra.Command{
	Use:   "hashstore",
	Short: "Content-addressable file and directory storage",
	Long: "Store and load files and directory trees by content hash, " +
		"with a local cache and optional remote database sync.",
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ~/.config/hashstore/config.yaml)")
	rootCmd.PersistentFlags().String("cache-dir", "", "local cache directory")
	rootCmd.PersistentFlags().String("algorithm", "", "digest algorithm: sha1 or md5")
	rootCmd.PersistentFlags().Bool("hard-links", false, "ingest files by hard link instead of copying")
	rootCmd.PersistentFlags().Bool("git-annex", false, "record git-annex symlinks by reference")
	rootCmd.PersistentFlags().Bool("remote", false, "use the configured remote database")
	rootCmd.PersistentFlags().Bool("remote-only", false, "bypass the local cache entirely")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log diagnostics to stderr")

	viper.BindPFlag("cache_dir", rootCmd.PersistentFlags().Lookup("cache-dir"))
	viper.BindPFlag("algorithm", rootCmd.PersistentFlags().Lookup("algorithm"))
	viper.BindPFlag("hard_links", rootCmd.PersistentFlags().Lookup("hard-links"))
	viper.BindPFlag("git_annex", rootCmd.PersistentFlags().Lookup("git-annex"))
	viper.BindPFlag("use_remote", rootCmd.PersistentFlags().Lookup("remote"))
	viper.BindPFlag("remote_only", rootCmd.PersistentFlags().Lookup("remote-only"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	if cfg := rootCmd.PersistentFlags().Lookup("config").Value.String(); cfg != "" {
		viper.SetConfigFile(cfg)
	} else {
		viper.AddConfigPath(configDir())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("HASHSTORE")
	viper.AutomaticEnv()
	viper.SetDefault("algorithm", "sha1")
	viper.SetDefault("timeout", "60s")

	viper.ReadInConfig()
}

// openStore assembles a Store from the resolved configuration. All
// diagnostics go to stderr so stdout stays a clean data channel.
func openStore() (*hashstore.Store, error) {
	opts := []hashstore.Option{
		hashstore.WithAlgorithm(hashstore.Algorithm(viper.GetString("algorithm"))),
		hashstore.WithHardLinks(viper.GetBool("hard_links")),
		hashstore.WithGitAnnexMode(viper.GetBool("git_annex")),
		hashstore.WithUseRemote(viper.GetBool("use_remote")),
		hashstore.WithRemoteOnly(viper.GetBool("remote_only")),
		hashstore.WithLogger(newLogger()),
	}
	if dir := viper.GetString("cache_dir"); dir != "" {
		opts = append(opts, hashstore.WithCacheDir(dir))
	}
	if url := viper.GetString("url"); url != "" {
		opts = append(opts,
			hashstore.WithRemote(url, viper.GetString("channel"), viper.GetString("password")))
	}
	if d := viper.GetDuration("timeout"); d > 0 {
		opts = append(opts, hashstore.WithRemoteTimeout(d))
	}
	if n := viper.GetInt("attempts"); n > 0 {
		opts = append(opts, hashstore.WithRemoteAttempts(n))
	}
	if n := viper.GetInt("workers"); n > 0 {
		opts = append(opts, hashstore.WithWorkers(n))
	}
	if viper.GetBool("compress_uploads") {
		opts = append(opts, hashstore.WithCompressUploads(true))
	}
	return hashstore.New(opts...)
}

func newLogger() *zap.Logger {
	if !viper.GetBool("verbose") {
		return zap.NewNop()
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "hashstore")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "hashstore")
	}
	return ".hashstore"
}
