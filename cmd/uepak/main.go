// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/uepak

// Command uepak inspects, extracts, verifies and builds Unreal Engine .pak
// archives.
package main

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/woozymasta/pathrules"
	"github.com/woozymasta/uepak"
)

const usage = `Usage: uepak <command> [flags] <args>

Commands:
  info <pak>                     print container metadata
  list <pak>                     list entry paths
  read <pak> <path>              write one entry to stdout
  extract <pak> <path> [out]     extract one entry to a file
  unpack <pak> <dir>             extract the whole archive to a directory
  pack <dir> <pak>               build an archive from a directory tree
  verify <pak>                   check every entry's content hash

Common flags:
  -aes KEY      AES-256 key, hex or base64 (default: unencrypted archives only)
  -v            debug logging

Run "uepak <command> -h" for command flags.`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]

	var err error
	switch cmd {
	case "info":
		err = cmdInfo(args)
	case "list":
		err = cmdList(args)
	case "read":
		err = cmdRead(args)
	case "extract":
		err = cmdExtract(args)
	case "unpack":
		err = cmdUnpack(args)
	case "pack":
		err = cmdPack(args)
	case "verify":
		err = cmdVerify(args)
	case "-h", "--help", "help":
		fmt.Println(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s\n", cmd, usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "uepak %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

// commonFlags carries the flags shared by every subcommand.
type commonFlags struct {
	fs      *flag.FlagSet
	keyText string
	verbose bool
}

func newCommonFlags(name string) *commonFlags {
	c := &commonFlags{fs: flag.NewFlagSet(name, flag.ExitOnError)}
	c.fs.StringVar(&c.keyText, "aes", "", "AES-256 key, hex or base64")
	c.fs.BoolVar(&c.verbose, "v", false, "debug logging")

	return c
}

// readerOptions resolves the key and logger into reader options.
func (c *commonFlags) readerOptions() (uepak.ReaderOptions, error) {
	key, err := parseKey(c.keyText)
	if err != nil {
		return uepak.ReaderOptions{}, err
	}

	return uepak.ReaderOptions{Key: key, Logger: c.logger()}, nil
}

func (c *commonFlags) logger() *slog.Logger {
	level := slog.LevelInfo
	if c.verbose {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// parseKey decodes a 32-byte AES key from hex or base64 text.
func parseKey(text string) ([]byte, error) {
	text = strings.TrimSpace(strings.TrimPrefix(text, "0x"))
	if text == "" {
		return nil, nil
	}

	if key, err := hex.DecodeString(text); err == nil && len(key) == 32 {
		return key, nil
	}

	if key, err := base64.StdEncoding.DecodeString(text); err == nil && len(key) == 32 {
		return key, nil
	}

	return nil, fmt.Errorf("key must be 32 bytes of hex or base64, got %q", text)
}

func cmdInfo(args []string) error {
	c := newCommonFlags("info")
	_ = c.fs.Parse(args)

	if c.fs.NArg() != 1 {
		return fmt.Errorf("usage: uepak info [flags] <pak>")
	}

	opts, err := c.readerOptions()
	if err != nil {
		return err
	}

	info, err := uepak.ReadInfo(c.fs.Arg(0), opts)
	if err != nil {
		return err
	}

	fmt.Printf("version:         %s\n", info.Version)
	fmt.Printf("mount point:     %s\n", info.MountPoint)
	fmt.Printf("entries:         %d\n", info.EntryCount)
	fmt.Printf("index offset:    %d\n", info.IndexOffset)
	fmt.Printf("index size:      %d\n", info.IndexSize)
	fmt.Printf("encrypted index: %v\n", info.EncryptedIndex)

	if info.PathHashSeed != 0 {
		fmt.Printf("path hash seed:  %#x\n", info.PathHashSeed)
	}
	if info.KeyGUID != ([16]byte{}) {
		fmt.Printf("key guid:        %x\n", info.KeyGUID)
	}
	if len(info.MethodNames) > 0 {
		fmt.Printf("methods:         %s\n", strings.Join(info.MethodNames, ", "))
	}

	return nil
}

func cmdList(args []string) error {
	c := newCommonFlags("list")
	long := c.fs.Bool("l", false, "show sizes and methods")
	prefix := c.fs.String("prefix", "", "list only entries under this path prefix")
	_ = c.fs.Parse(args)

	if c.fs.NArg() != 1 {
		return fmt.Errorf("usage: uepak list [flags] <pak>")
	}

	opts, err := c.readerOptions()
	if err != nil {
		return err
	}

	entries, err := uepak.ListEntries(c.fs.Arg(0), opts)
	if err != nil {
		return err
	}

	entries = uepak.FilterEntriesByPrefix(entries, *prefix)

	for _, entry := range entries {
		if !*long {
			fmt.Println(entry.Path)
			continue
		}

		method := entry.Method
		if method == "" {
			method = "store"
		}

		fmt.Printf("%12d  %-8s  %s\n", entry.UncompressedSize, method, entry.Path)
	}

	return nil
}

func cmdRead(args []string) error {
	c := newCommonFlags("read")
	_ = c.fs.Parse(args)

	if c.fs.NArg() != 2 {
		return fmt.Errorf("usage: uepak read [flags] <pak> <path>")
	}

	opts, err := c.readerOptions()
	if err != nil {
		return err
	}

	a, err := uepak.OpenWithOptions(c.fs.Arg(0), opts)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	data, err := a.ReadFile(c.fs.Arg(1))
	if err != nil {
		return err
	}

	_, err = os.Stdout.Write(data)

	return err
}

func cmdExtract(args []string) error {
	c := newCommonFlags("extract")
	_ = c.fs.Parse(args)

	if c.fs.NArg() != 2 && c.fs.NArg() != 3 {
		return fmt.Errorf("usage: uepak extract [flags] <pak> <path> [out]")
	}

	opts, err := c.readerOptions()
	if err != nil {
		return err
	}

	a, err := uepak.OpenWithOptions(c.fs.Arg(0), opts)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	entryPath := c.fs.Arg(1)

	outPath := c.fs.Arg(2)
	if outPath == "" {
		outPath = filepath.Base(strings.ReplaceAll(entryPath, `\`, `/`))
	}

	data, err := a.ReadFile(entryPath)
	if err != nil {
		return err
	}

	if err := os.WriteFile(outPath, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}

	fmt.Printf("extracted %s (%d bytes)\n", outPath, len(data))

	return nil
}

func cmdUnpack(args []string) error {
	c := newCommonFlags("unpack")
	include := c.fs.String("include", "", "comma-separated path patterns to extract")
	workers := c.fs.Int("workers", 0, "extraction workers (0 = GOMAXPROCS)")
	_ = c.fs.Parse(args)

	if c.fs.NArg() != 2 {
		return fmt.Errorf("usage: uepak unpack [flags] <pak> <dir>")
	}

	opts, err := c.readerOptions()
	if err != nil {
		return err
	}

	a, err := uepak.OpenWithOptions(c.fs.Arg(0), opts)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	extractOpts := uepak.ExtractOptions{MaxWorkers: *workers}
	for _, pattern := range strings.Split(*include, ",") {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}

		extractOpts.Include = append(extractOpts.Include, pathrules.Rule{
			Action:  pathrules.ActionInclude,
			Pattern: pattern,
		})
	}

	var done int
	extractOpts.OnEntryDone = func(uepak.EntryInfo, int64, string) { done++ }

	if err := a.Extract(context.Background(), c.fs.Arg(1), extractOpts); err != nil {
		return err
	}

	fmt.Printf("extracted %d entries to %s\n", done, c.fs.Arg(1))

	return nil
}

func cmdPack(args []string) error {
	c := newCommonFlags("pack")
	versionText := c.fs.String("version", "11", "target format version (1..11, 8a, 8b)")
	mount := c.fs.String("mount", "", "mount point (default ../../../)")
	seed := c.fs.Uint64("seed", 0, "path hash seed")
	compression := c.fs.String("compression", "", "compression method (Zlib, Gzip, Zstd, LZ4, LZSS)")
	encryptData := c.fs.Bool("encrypt-data", false, "encrypt entry payloads")
	encryptIndex := c.fs.Bool("encrypt-index", false, "encrypt the index region")
	_ = c.fs.Parse(args)

	if c.fs.NArg() != 2 {
		return fmt.Errorf("usage: uepak pack [flags] <dir> <pak>")
	}

	version, err := uepak.ParseVersion(*versionText)
	if err != nil {
		return err
	}

	key, err := parseKey(c.keyText)
	if err != nil {
		return err
	}

	a := uepak.New()
	if err := a.SetVersion(version); err != nil {
		return err
	}
	if *mount != "" {
		a.SetMountPoint(*mount)
	}
	if *seed != 0 {
		a.SetPathHashSeed(*seed)
	}
	if key != nil {
		if err := a.SetKey(key); err != nil {
			return err
		}
	}

	inputs, err := walkDirInputs(c.fs.Arg(0))
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no files found under %s", c.fs.Arg(0))
	}

	ctx := context.Background()
	if err := a.AddInputs(ctx, inputs); err != nil {
		return err
	}

	res, err := a.WriteFile(ctx, c.fs.Arg(1), uepak.WriteOptions{
		Logger:       c.logger(),
		Compression:  *compression,
		EncryptData:  *encryptData,
		EncryptIndex: *encryptIndex,
	})
	if err != nil {
		return err
	}

	fmt.Printf("packed %d entries (%d data bytes, %d index bytes) in %s\n",
		res.WrittenEntries, res.DataSize, res.IndexSize, res.Duration)

	return nil
}

func cmdVerify(args []string) error {
	c := newCommonFlags("verify")
	workers := c.fs.Int("workers", 0, "verification workers (0 = GOMAXPROCS)")
	_ = c.fs.Parse(args)

	if c.fs.NArg() != 1 {
		return fmt.Errorf("usage: uepak verify [flags] <pak>")
	}

	opts, err := c.readerOptions()
	if err != nil {
		return err
	}

	a, err := uepak.OpenWithOptions(c.fs.Arg(0), opts)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	res, err := a.VerifyAll(context.Background(), *workers)
	if res != nil {
		fmt.Printf("verified %d entries, %d failed\n", res.Verified, len(res.Failed))
	}

	return err
}

// walkDirInputs collects every regular file under root as a pack input with
// its slash-separated path relative to root.
func walkDirInputs(root string) ([]uepak.Input, error) {
	var inputs []uepak.Input

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		inputs = append(inputs, uepak.Input{
			Path:     filepath.ToSlash(rel),
			SizeHint: info.Size(),
			ModTime:  info.ModTime(),
			Open: func() (io.ReadCloser, error) {
				return os.Open(path)
			},
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	sort.Slice(inputs, func(i, j int) bool { return inputs[i].Path < inputs[j].Path })

	return inputs, nil
}
