// Package binfmt contains the little-endian binary primitives shared by the
// partition and column encoders, and the checksummed, optionally compressed
// envelope every partition file is wrapped in.
//
// Envelope layout:
//
//	[magic "ARB1"][version u8][compression u8][raw length u32][body length u32][crc32c(raw) u32][body...]
//
// The checksum covers the uncompressed payload, so a decode verifies both the
// decompressor output and the bytes on disk.
package binfmt
