package common

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/ValentinKolb/mvattr/lib/attribute"
)

// --------------------------------------------------------------------------
// Store configuration struct
// --------------------------------------------------------------------------

// StoreConfig holds the defaults applied to every column of a store
type StoreConfig struct {
	// Storage
	DataDir     string
	Format      attribute.PersistFormat
	Compression attribute.Compression

	// Column defaults
	DefaultWeight     int32
	MaxAllocatedBytes uint64 // per column, 0 means unlimited
	StatsInterval     time.Duration

	// Concurrency bounds the number of columns saved or loaded in parallel
	Concurrency int

	// Retry of transient save/load errors, RetryAttempts <= 1 disables retries
	RetryAttempts  int
	RetryBaseDelay time.Duration

	// Logging configuration
	LogLevel string
}

// DefaultStoreConfig returns the configuration used when nothing is set
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		DataDir:        "./data",
		Format:         attribute.FormatRaw,
		Compression:    attribute.CompressionNone,
		DefaultWeight:  1,
		Concurrency:    runtime.GOMAXPROCS(0),
		RetryAttempts:  3,
		RetryBaseDelay: 100 * time.Millisecond,
		LogLevel:       "info",
	}
}

// ColumnConfig returns the column configuration for the given value and collection type
func (c *StoreConfig) ColumnConfig(basicType attribute.BasicType, collection attribute.CollectionType) attribute.Config {
	cfg := attribute.NewConfig(basicType, collection)
	cfg.Format = c.Format
	cfg.Compression = c.Compression
	cfg.DefaultWeight = c.DefaultWeight
	cfg.MaxAllocatedBytes = c.MaxAllocatedBytes
	cfg.StatsInterval = c.StatsInterval
	return cfg
}

// String returns a formatted string representation of the configuration
func (c *StoreConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Storage")
	addField("Data Directory", c.DataDir)
	addField("Persist Format", c.Format.String())
	addField("Compression", c.Compression.String())
	addField("Concurrency", fmt.Sprintf("%d", c.Concurrency))
	addField("Retry Attempts", fmt.Sprintf("%d", c.RetryAttempts))
	addField("Retry Base Delay", c.RetryBaseDelay.String())

	addSection("Columns")
	addField("Default Weight", fmt.Sprintf("%d", c.DefaultWeight))
	if c.MaxAllocatedBytes == 0 {
		addField("Memory Limit", "unlimited")
	} else {
		addField("Memory Limit", fmt.Sprintf("%d bytes", c.MaxAllocatedBytes))
	}
	if c.StatsInterval == 0 {
		addField("Stats Interval", "disabled")
	} else {
		addField("Stats Interval", c.StatsInterval.String())
	}

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
