// Package codec implements the persistence format of multi-value columns.
//
// A column is stored as a file pair:
//
//   - <name>.dat: a fixed 45 byte header followed by the body. The header holds the magic
//     number "MVATTR\x00\x00", the format version, the value type, the collection type,
//     the flags {enumerated, weighted}, the body compression, the number of documents,
//     the maximum value count, the total value count, the dictionary entry count and the
//     create serial number. The body is optionally compressed with lz4 or zstd and holds
//     one record per document: a uint32 value count followed by that many entries. An
//     entry is the value itself (raw) or a uint32 dictionary index (enumerated), followed
//     by an int32 weight for weighted sets. All integers are little endian.
//   - <name>.udat: only for the enumerated format. The sorted distinct values of the column
//     at fixed width without header. It is never compressed, so its size is always
//     dictionary count * value width.
//
// Save writes a Snapshot obtained under a single guard, the enumerated format writes both
// files concurrently. Load streams documents into a Sink and verifies the header totals;
// any inconsistency is reported as attribute.ErrCorruption.
//
// DirFileSet and MemFileSet implement attribute.SaveTarget and attribute.LoadSource for
// files in a directory and for in-memory buffers. ReadHeader lets tools inspect a data file
// without loading it.
package codec
