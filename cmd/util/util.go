package util

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/mvattr/lib/attribute"
	"github.com/ValentinKolb/mvattr/lib/common"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupStoreFlags adds the column default flags to a command
func SetupStoreFlags(cmd *cobra.Command) {
	defaults := common.DefaultStoreConfig()

	key := "format"
	cmd.PersistentFlags().String(key, defaults.Format.String(), WrapString("Persist format for saved columns (raw, enumerated)"))

	key = "compression"
	cmd.PersistentFlags().String(key, defaults.Compression.String(), WrapString("Compression of the data file body (none, lz4, zstd)"))

	key = "default-weight"
	cmd.PersistentFlags().Int32(key, defaults.DefaultWeight, WrapString("Weight assigned to the elements of array columns"))

	key = "max-memory"
	cmd.PersistentFlags().Uint64(key, 0, WrapString("Allocation limit per column in bytes (0 = unlimited)"))

	key = "stats-interval"
	cmd.PersistentFlags().Duration(key, 0, WrapString("Interval of the background statistics refresh (0 = disabled)"))

	key = "concurrency"
	cmd.PersistentFlags().Int(key, defaults.Concurrency, WrapString("Number of columns saved or loaded in parallel"))

	key = "retries"
	cmd.PersistentFlags().Int(key, defaults.RetryAttempts, WrapString("Attempts for saving or loading a column on transient errors"))
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("mvattr")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetStoreConfig reads the store configuration from viper
func GetStoreConfig() (common.StoreConfig, error) {
	conf := common.DefaultStoreConfig()

	format, err := attribute.ParsePersistFormat(viper.GetString("format"))
	if err != nil {
		return conf, err
	}
	compression, err := attribute.ParseCompression(viper.GetString("compression"))
	if err != nil {
		return conf, err
	}

	conf.Format = format
	conf.Compression = compression
	conf.DefaultWeight = viper.GetInt32("default-weight")
	conf.MaxAllocatedBytes = viper.GetUint64("max-memory")
	conf.StatsInterval = viper.GetDuration("stats-interval")
	if n := viper.GetInt("concurrency"); n > 0 {
		conf.Concurrency = n
	}
	conf.RetryAttempts = viper.GetInt("retries")
	if level := viper.GetString("log-level"); level != "" {
		conf.LogLevel = level
	}
	return conf, nil
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	return viper.BindPFlags(cmd.InheritedFlags())
}

// InitLogging installs the logger factory with the configured level
func InitLogging() error {
	if err := common.InitLoggers(viper.GetString("log-level")); err != nil {
		return fmt.Errorf("initializing loggers: %w", err)
	}
	return nil
}
