// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/uepak

package uepak

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/woozymasta/lzss"
	"github.com/woozymasta/pathrules"
)

// Canonical compression method names. Name-table revisions record these in
// footer slots; older revisions use the fixed legacy numbering (Zlib=1,
// Gzip=2, Oodle=3). Store is the identity method and has no wire name.
const (
	MethodStore = "store"
	MethodZlib  = "Zlib"
	MethodGzip  = "Gzip"
	MethodZstd  = "Zstd"
	MethodLZ4   = "LZ4"
	MethodLZSS  = "LZSS"
	MethodOodle = "Oodle"
)

// legacyMethods is the implicit name table of revisions without footer name
// slots: record method identifier i selects legacyMethods[i-1].
var legacyMethods = []string{MethodZlib, MethodGzip, MethodOodle}

// methodNameFor resolves a record method identifier against a name table.
// Identifier zero is the store method and resolves to the empty name.
func methodNameFor(id uint32, names []string) (string, error) {
	if id == methodIDNone {
		return "", nil
	}

	i := int(id) - 1
	if i < len(names) && names[i] != "" {
		return names[i], nil
	}

	return "", fmt.Errorf("%w: method identifier %d has no name table slot", ErrUnsupportedCompression, id)
}

// methodIDFor resolves a method name to its identifier in a name table,
// case-insensitively. The empty name and "store" map to identifier zero.
func methodIDFor(name string, names []string) (uint32, bool) {
	if name == "" || strings.EqualFold(name, MethodStore) {
		return methodIDNone, true
	}

	for i, n := range names {
		if strings.EqualFold(n, name) {
			return uint32(i) + 1, true
		}
	}

	return 0, false
}

// errIncompressible signals that a codec cannot shrink the input; the writer
// stores such payloads raw.
var errIncompressible = errors.New("data is not compressible")

// Codec compresses and decompresses independent payload blocks.
type Codec interface {
	// Name returns the canonical method name recorded in archives.
	Name() string
	// Compress returns the encoded form of src.
	Compress(src []byte) ([]byte, error)
	// Decompress expands src into exactly size bytes.
	Decompress(src []byte, size int) ([]byte, error)
}

// Registry maps method names to codecs, case-insensitively. Decoding an
// archive that references a method absent from the registry fails loudly
// rather than passing wrong bytes through.
type Registry struct {
	codecs map[string]Codec
}

// NewRegistry returns a registry with all built-in codecs: store, Zlib, Gzip,
// Zstd, LZ4 and LZSS. Oodle is a recognized name with no codec.
func NewRegistry() *Registry {
	r := &Registry{codecs: make(map[string]Codec)}

	r.Register(storeCodec{})
	r.Register(&zlibCodec{})
	r.Register(&gzipCodec{})
	r.Register(&zstdCodec{})
	r.Register(lz4Codec{})
	r.Register(lzssCodec{})

	return r
}

// Register adds or replaces a codec under its canonical name.
func (r *Registry) Register(c Codec) {
	if r.codecs == nil {
		r.codecs = make(map[string]Codec)
	}

	r.codecs[strings.ToLower(c.Name())] = c
}

// lookup resolves a method name to its codec.
func (r *Registry) lookup(name string) (Codec, error) {
	if r != nil {
		if c, ok := r.codecs[strings.ToLower(name)]; ok {
			return c, nil
		}
	}

	return nil, fmt.Errorf("%w: %q has no registered codec", ErrUnsupportedCompression, name)
}

// defaultRegistry is shared by archives that do not bring their own.
var defaultRegistry = sync.OnceValue(NewRegistry)

// storeCodec is the identity method.
type storeCodec struct{}

func (storeCodec) Name() string { return MethodStore }

func (storeCodec) Compress(src []byte) ([]byte, error) { return src, nil }

func (storeCodec) Decompress(src []byte, size int) ([]byte, error) {
	if len(src) != size {
		return nil, fmt.Errorf("stored block is %d bytes, want %d", len(src), size)
	}

	return src, nil
}

// zlibCodec implements the deflate family method "Zlib".
type zlibCodec struct {
	writers sync.Pool
}

func (*zlibCodec) Name() string { return MethodZlib }

func (c *zlibCodec) Compress(src []byte) ([]byte, error) {
	var buf bytes.Buffer

	zw, _ := c.writers.Get().(*zlib.Writer)
	if zw == nil {
		zw = zlib.NewWriter(&buf)
	} else {
		zw.Reset(&buf)
	}
	defer c.writers.Put(zw)

	if _, err := zw.Write(src); err != nil {
		return nil, fmt.Errorf("zlib compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zlib flush: %w", err)
	}

	return buf.Bytes(), nil
}

func (c *zlibCodec) Decompress(src []byte, size int) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("zlib block: %w", err)
	}
	defer func() { _ = zr.Close() }()

	return readFullBlock(zr, size)
}

// gzipCodec implements the deflate family method "Gzip".
type gzipCodec struct {
	writers sync.Pool
}

func (*gzipCodec) Name() string { return MethodGzip }

func (c *gzipCodec) Compress(src []byte) ([]byte, error) {
	var buf bytes.Buffer

	gw, _ := c.writers.Get().(*gzip.Writer)
	if gw == nil {
		gw = gzip.NewWriter(&buf)
	} else {
		gw.Reset(&buf)
	}
	defer c.writers.Put(gw)

	if _, err := gw.Write(src); err != nil {
		return nil, fmt.Errorf("gzip compress: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("gzip flush: %w", err)
	}

	return buf.Bytes(), nil
}

func (c *gzipCodec) Decompress(src []byte, size int) ([]byte, error) {
	gr, err := gzip.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("gzip block: %w", err)
	}
	defer func() { _ = gr.Close() }()

	return readFullBlock(gr, size)
}

// zstdMaxDecodedMemory bounds single block decode memory for foreign archives.
const zstdMaxDecodedMemory = 1 << 30

// zstd encoder/decoder are safe for concurrent EncodeAll/DecodeAll use.
var (
	zstdEncoder = sync.OnceValues(func() (*zstd.Encoder, error) {
		return zstd.NewWriter(nil)
	})
	zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
		return zstd.NewReader(nil, zstd.WithDecoderMaxMemory(zstdMaxDecodedMemory))
	})
)

// zstdCodec implements the method "Zstd".
type zstdCodec struct{}

func (*zstdCodec) Name() string { return MethodZstd }

func (*zstdCodec) Compress(src []byte) ([]byte, error) {
	enc, err := zstdEncoder()
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}

	return enc.EncodeAll(src, nil), nil
}

func (*zstdCodec) Decompress(src []byte, size int) ([]byte, error) {
	dec, err := zstdDecoder()
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}

	out, err := dec.DecodeAll(src, make([]byte, 0, size))
	if err != nil {
		return nil, fmt.Errorf("zstd block: %w", err)
	}
	if len(out) != size {
		return nil, fmt.Errorf("zstd block decoded to %d bytes, want %d", len(out), size)
	}

	return out, nil
}

// lz4Codec implements the method "LZ4" in raw block form.
type lz4Codec struct{}

func (lz4Codec) Name() string { return MethodLZ4 }

func (lz4Codec) Compress(src []byte) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(src)))

	n, err := lz4.CompressBlock(src, dst, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	if n == 0 {
		return nil, errIncompressible
	}

	return dst[:n], nil
}

func (lz4Codec) Decompress(src []byte, size int) ([]byte, error) {
	dst := make([]byte, size)

	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return nil, fmt.Errorf("lz4 block: %w", err)
	}
	if n != size {
		return nil, fmt.Errorf("lz4 block decoded to %d bytes, want %d", n, size)
	}

	return dst, nil
}

// lzssCodec implements the extension method "LZSS".
type lzssCodec struct{}

func (lzssCodec) Name() string { return MethodLZSS }

func (lzssCodec) Compress(src []byte) ([]byte, error) {
	out, err := lzss.Compress(src, lzss.DefaultCompressOptions())
	if err != nil {
		return nil, fmt.Errorf("lzss compress: %w", err)
	}

	return out, nil
}

func (lzssCodec) Decompress(src []byte, size int) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(size)

	if _, err := lzss.DecompressToWriter(&buf, bytes.NewReader(src), size, nil); err != nil {
		return nil, fmt.Errorf("lzss block: %w", err)
	}
	if buf.Len() != size {
		return nil, fmt.Errorf("lzss block decoded to %d bytes, want %d", buf.Len(), size)
	}

	return buf.Bytes(), nil
}

// readFullBlock reads exactly size decompressed bytes and verifies the stream
// has no surplus.
func readFullBlock(r io.Reader, size int) ([]byte, error) {
	out := make([]byte, size)

	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("short block: %w", err)
	}

	var probe [1]byte
	if n, _ := r.Read(probe[:]); n != 0 {
		return nil, fmt.Errorf("block decoded past expected %d bytes", size)
	}

	return out, nil
}

// compressMatcher holds compiled allow-list rules for compression.
type compressMatcher struct {
	matcher *pathrules.Matcher
}

// newCompressMatcher compiles compression path rules.
func newCompressMatcher(rules []pathrules.Rule, opts pathrules.MatcherOptions) (*compressMatcher, error) {
	rules = normalizeCompressRules(rules)
	if len(rules) == 0 {
		return nil, nil
	}

	matcher, err := pathrules.NewMatcher(rules, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: compile rules: %w", ErrInvalidCompressPattern, err)
	}

	return &compressMatcher{matcher: matcher}, nil
}

// normalizeCompressRules normalizes rule patterns and drops empty patterns.
func normalizeCompressRules(rules []pathrules.Rule) []pathrules.Rule {
	normalized := make([]pathrules.Rule, 0, len(rules))
	for _, rule := range rules {
		pattern := NormalizePath(rule.Pattern)
		if pattern == "" {
			continue
		}

		normalized = append(normalized, pathrules.Rule{
			Action:  rule.Action,
			Pattern: pattern,
		})
	}

	return normalized
}

// Match reports whether path is included by at least one compress rule.
func (m *compressMatcher) Match(path string) bool {
	if m == nil || m.matcher == nil {
		return false
	}

	candidate := strings.TrimPrefix(NormalizePath(path), "/")
	if candidate == "" {
		return false
	}

	return m.matcher.Included(candidate, false)
}

// shouldCompress reports whether path and size pass the compression policy.
// Without rules every entry of at least MinCompressSize bytes is a candidate.
func shouldCompress(opts *WriteOptions, matcher *compressMatcher, path string, size int) bool {
	if size == 0 || size < opts.MinCompressSize {
		return false
	}

	if matcher == nil {
		return true
	}

	return matcher.Match(path)
}
