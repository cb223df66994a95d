package attribute

import (
	"fmt"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

// DocId is a dense, zero based document identifier.
type DocId = uint32

// Numeric lists the value kinds a multi-value column can hold.
type Numeric interface {
	int8 | int16 | int32 | int64 | float32 | float64
}

// Multivalue is one element of a document's value list.
// Unweighted columns carry the configured default weight.
type Multivalue[T Numeric] struct {
	Value  T
	Weight int32
}

func (m Multivalue[T]) String() string {
	return fmt.Sprintf("%v:%d", m.Value, m.Weight)
}

// BasicType tags the value kind of a column. It is persisted in the file header.
type BasicType uint8

const (
	TypeUnknown BasicType = iota
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
	TypeFloat32
	TypeFloat64
)

func (b BasicType) String() string {
	switch b {
	case TypeInt8:
		return "int8"
	case TypeInt16:
		return "int16"
	case TypeInt32:
		return "int32"
	case TypeInt64:
		return "int64"
	case TypeFloat32:
		return "float32"
	case TypeFloat64:
		return "float64"
	default:
		return "unknown"
	}
}

// Width returns the number of bytes one value of this type occupies on disk.
func (b BasicType) Width() int {
	switch b {
	case TypeInt8:
		return 1
	case TypeInt16:
		return 2
	case TypeInt32, TypeFloat32:
		return 4
	case TypeInt64, TypeFloat64:
		return 8
	default:
		return 0
	}
}

// ParseBasicType is the inverse of BasicType.String.
func ParseBasicType(s string) (BasicType, error) {
	for b := TypeInt8; b <= TypeFloat64; b++ {
		if b.String() == strings.ToLower(s) {
			return b, nil
		}
	}
	return TypeUnknown, fmt.Errorf("unknown basic type %q: %w", s, ErrConfigMismatch)
}

// BasicTypeOf returns the tag for the type parameter.
func BasicTypeOf[T Numeric]() BasicType {
	var zero T
	switch any(zero).(type) {
	case int8:
		return TypeInt8
	case int16:
		return TypeInt16
	case int32:
		return TypeInt32
	case int64:
		return TypeInt64
	case float32:
		return TypeFloat32
	case float64:
		return TypeFloat64
	default:
		return TypeUnknown
	}
}

// CollectionType selects between ordered arrays and weighted sets.
type CollectionType uint8

const (
	// Array keeps order and duplicates. Weights are normalized to the default weight.
	Array CollectionType = iota + 1
	// WeightedSet keeps one element per distinct value. The last supplied weight wins.
	WeightedSet
)

func (c CollectionType) String() string {
	switch c {
	case Array:
		return "array"
	case WeightedSet:
		return "wset"
	default:
		return "unknown"
	}
}

// ParseCollectionType is the inverse of CollectionType.String.
func ParseCollectionType(s string) (CollectionType, error) {
	switch strings.ToLower(s) {
	case "array":
		return Array, nil
	case "wset", "weightedset":
		return WeightedSet, nil
	default:
		return 0, fmt.Errorf("unknown collection type %q: %w", s, ErrConfigMismatch)
	}
}

// PersistFormat selects the on-disk encoding written by Save.
type PersistFormat uint8

const (
	FormatRaw PersistFormat = iota
	FormatEnumerated
)

func (f PersistFormat) String() string {
	if f == FormatEnumerated {
		return "enumerated"
	}
	return "raw"
}

// ParsePersistFormat is the inverse of PersistFormat.String.
func ParsePersistFormat(s string) (PersistFormat, error) {
	switch strings.ToLower(s) {
	case "", "raw":
		return FormatRaw, nil
	case "enumerated", "enum":
		return FormatEnumerated, nil
	default:
		return 0, fmt.Errorf("unknown persist format %q: %w", s, ErrConfigMismatch)
	}
}

// Compression selects the codec applied to the data file body.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionLZ4
	CompressionZstd
)

func (c Compression) String() string {
	switch c {
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return "none"
	}
}

// ParseCompression is the inverse of Compression.String.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression %q: %w", s, ErrConfigMismatch)
	}
}

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// Config is the column level configuration. It is fixed when the column is created.
type Config struct {
	Type              BasicType      `json:"type"`
	Collection        CollectionType `json:"collection"`
	Format            PersistFormat  `json:"format"`
	Compression       Compression    `json:"compression"`
	DefaultWeight     int32          `json:"default_weight"`
	MaxAllocatedBytes uint64         `json:"max_allocated_bytes"` // 0 means unlimited
	StatsInterval     time.Duration  `json:"stats_interval"`      // 0 disables the background refresher
}

// NewConfig returns a configuration for the given value type and collection with defaults for everything else.
func NewConfig(basicType BasicType, collection CollectionType) Config {
	return Config{
		Type:          basicType,
		Collection:    collection,
		Format:        FormatRaw,
		Compression:   CompressionNone,
		DefaultWeight: 1,
	}
}

// Weighted reports whether weights are stored per element.
func (c Config) Weighted() bool {
	return c.Collection == WeightedSet
}

// Validate checks that the configuration describes a column of type T.
func Validate[T Numeric](c Config) error {
	if c.Type != BasicTypeOf[T]() {
		return fmt.Errorf("column type %s does not match value type %s: %w", c.Type, BasicTypeOf[T](), ErrConfigMismatch)
	}
	if c.Collection != Array && c.Collection != WeightedSet {
		return fmt.Errorf("invalid collection type %d: %w", c.Collection, ErrConfigMismatch)
	}
	if c.Format > FormatEnumerated {
		return fmt.Errorf("invalid persist format %d: %w", c.Format, ErrConfigMismatch)
	}
	if c.Compression > CompressionZstd {
		return fmt.Errorf("invalid compression %d: %w", c.Compression, ErrConfigMismatch)
	}
	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("%s/%s format=%s compression=%s default_weight=%d",
		c.Type, c.Collection, c.Format, c.Compression, c.DefaultWeight)
}

// --------------------------------------------------------------------------
// Reporting
// --------------------------------------------------------------------------

// MemoryUsage is the memory report of a column. All sizes are in bytes.
type MemoryUsage struct {
	AllocatedBytes       uint64 `json:"allocated_bytes"`
	UsedBytes            uint64 `json:"used_bytes"`
	DeadBytes            uint64 `json:"dead_bytes"`
	AllocatedBytesOnHold uint64 `json:"allocated_bytes_on_hold"`
}

// Merge adds the figures of other to m.
func (m *MemoryUsage) Merge(other MemoryUsage) {
	m.AllocatedBytes += other.AllocatedBytes
	m.UsedBytes += other.UsedBytes
	m.DeadBytes += other.DeadBytes
	m.AllocatedBytesOnHold += other.AllocatedBytesOnHold
}

// Statistics is a point in time report of a column. Figures are eventually consistent.
type Statistics struct {
	MemoryUsage
	NumDocs              uint32        `json:"num_docs"`
	CommittedDocIdLimit  uint32        `json:"committed_doc_id_limit"`
	TotalValueCount      uint64        `json:"total_value_count"`
	MaxValueCount        uint32        `json:"max_value_count"`
	Generation           uint64        `json:"generation"`
	OldestUsedGeneration uint64        `json:"oldest_used_generation"`
	Commits              uint64        `json:"commits"`
	LastCommitDuration   time.Duration `json:"last_commit_duration"`
	UpdatedAt            time.Time     `json:"updated_at"`
}
