// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/uepak

/*
Package uepak reads and writes Unreal Engine .pak archive containers: a
footer-anchored binary format with an index of file records and raw
(optionally compressed, optionally encrypted) payload regions, across the
eleven on-disk layout versions the engine has shipped.

Opening an archive parses only the footer and index, so it is O(index size)
regardless of payload volume; entry content is fetched, decrypted,
decompressed and hash-verified lazily per read.

# Reading

Open a pak and list or read entries:

	a, err := uepak.Open("game.pak")
	if err != nil {
	    return err
	}
	defer a.Close()
	for _, path := range a.List() {
	    data, _ := a.ReadFile(path)
	    // use data
	}

Encrypted archives need the 32-byte AES key up front:

	a, err := uepak.OpenWithOptions("game.pak", uepak.ReaderOptions{Key: key})

Without a key a fixed all-zero placeholder is substituted; it cannot decrypt
anything real, and the index or entry hash check reports the mismatch as an
integrity error naming the likely cause.

For streaming large entries without materializing them, use OpenFile; for
whole-archive extraction to a directory tree, Extract with include rules.

# Writing

Stage content on a new or opened Archive and serialize it in full:

	a := uepak.New()
	_ = a.SetVersion(uepak.V11)
	a.SetMountPoint("../../../")
	_ = a.AddFile("/Game/a.uasset", data)
	_, err := a.Write(ctx, out)

Every Write rebuilds payloads, index and footer from the current mapping;
re-opening the written stream reproduces the identical mapping. Compression
(Zlib, Gzip, Zstd, LZ4, LZSS) is selected per entry through WriteOptions path
rules and falls back to raw storage when it does not shrink the payload.
Methods the target version cannot express are rejected with
ErrUnsupportedFeature.

# Errors

Failures map to package sentinels usable with errors.Is: ErrFormat,
ErrUnsupportedVersion, ErrUnsupportedCompression, ErrIntegrity, ErrNotFound,
ErrUnsupportedFeature. Decoding an archive that references an unregistered
compression method (Oodle included) fails loudly instead of passing wrong
bytes through.
*/
package uepak
