// Package cli wires the claimprobe commands.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ppiankov/claimprobe/internal/investigation"
	"github.com/ppiankov/claimprobe/internal/model"
)

// version is overridden at build time with -ldflags "-X ..."
var version = "0.1.0"

var (
	cfgFile     string
	envFile     string
	definitions string
	verbose     bool
	noCache     bool

	logger = zap.NewNop()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "claimprobe",
	Short: "claimprobe - evidence search over institutions and claims",
	Long: `claimprobe checks claims about institutions against the public web.

For every combination of institution and claim variant it searches the web,
reads the top results and asks a language model whether the page supports
the claim. Each finished combination is appended to a JSON-lines store, so
an interrupted run resumes where it stopped.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(verbose)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "claimprobe v%s\n", version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.claimprobe/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with LLM_* and GOOGLE_* secrets")
	rootCmd.PersistentFlags().StringVar(&definitions, "definitions", "", "YAML file with additional investigations")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "ignore cached search and extraction results")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

func newLogger(debug bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if debug {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	l, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return l, nil
}

// envAliases maps config keys to the plain variable names used in .env files
var envAliases = map[string][]string{
	"llm.provider":     {"LLM_PROVIDER"},
	"llm.model":        {"LLM_MODEL"},
	"llm.api_key":      {"LLM_API_KEY", "OPENAI_API_KEY"},
	"llm.base_url":     {"LLM_BASE_URL"},
	"search.api_key":   {"GOOGLE_API_KEY"},
	"search.engine_id": {"GOOGLE_CSE_ID"},
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Error loading %s: %v\n", envFile, err)
		}
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
		} else {
			viper.AddConfigPath(filepath.Join(home, ".claimprobe"))
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// CLAIMPROBE_LLM_API_KEY and friends
	viper.SetEnvPrefix("CLAIMPROBE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	bindConfigEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// bindConfigEnv registers every config key with viper so that Unmarshal
// sees values that only exist in the environment
func bindConfigEnv() {
	for _, key := range configKeys("", reflect.TypeOf(model.Config{})) {
		envKey := "CLAIMPROBE_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = viper.BindEnv(append([]string{key, envKey}, envAliases[key]...)...)
	}
}

func configKeys(prefix string, t reflect.Type) []string {
	var keys []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := f.Tag.Get("mapstructure")
		if name == "" || name == "-" {
			continue
		}
		if prefix != "" {
			name = prefix + "." + name
		}
		if f.Type.Kind() == reflect.Struct && f.Type.PkgPath() != "time" {
			keys = append(keys, configKeys(name, f.Type)...)
			continue
		}
		keys = append(keys, name)
	}
	return keys
}

// loadConfig merges defaults, config file and environment
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// loadCatalog returns the built-in investigations plus any from --definitions
func loadCatalog() (*investigation.Catalog, error) {
	catalog := investigation.NewCatalog()
	if definitions != "" {
		if err := catalog.LoadFile(definitions); err != nil {
			return nil, err
		}
	}
	return catalog, nil
}
