// Package fs provides filesystem abstractions for testability and fault injection.
//
// The package defines two key interfaces:
//
//   - [File]: Represents an open file with read/write/sync capabilities
//   - [FileSystem]: Abstracts filesystem operations (open, remove, rename, etc.)
//
// # Implementations
//
//   - [LocalFS]: Production implementation using standard os package
//   - [FaultyFS]: Test utility for fault injection (failed writes, syncs,
//     closes and renames)
//
// [Lock] takes an exclusive advisory lock on a lock file so that two
// processes do not save into the same table directory at once.
//
// # Usage
//
//	file, err := fs.Default.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
//
// Tests can inject [FaultyFS] to simulate failures:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule(".bin.new", fs.Fault{FailAfterBytes: 16})
//	ffs.FailRenames("0.bin", 2) // first two renames onto 0.bin fail
//
// Operations take no context.Context. Local filesystem calls are short and
// not interruptible at the syscall level.
package fs
