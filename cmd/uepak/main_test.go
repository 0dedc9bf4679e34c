// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/uepak

package main

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"
)

func TestParseKey(t *testing.T) {
	t.Parallel()

	key := bytes.Repeat([]byte{0x5A, 0xC3}, 16)

	tests := []struct {
		name    string
		text    string
		want    []byte
		wantErr bool
	}{
		{name: "empty selects placeholder", text: "", want: nil},
		{name: "whitespace only", text: "  \t ", want: nil},
		{name: "hex", text: hex.EncodeToString(key), want: key},
		{name: "hex with 0x prefix", text: "0x" + hex.EncodeToString(key), want: key},
		{name: "hex upper case", text: strings.ToUpper(hex.EncodeToString(key)), want: key},
		{name: "hex padded with spaces", text: " " + hex.EncodeToString(key) + " ", want: key},
		{name: "base64", text: base64.StdEncoding.EncodeToString(key), want: key},
		{name: "hex too short", text: hex.EncodeToString(key[:16]), wantErr: true},
		{name: "base64 wrong length", text: base64.StdEncoding.EncodeToString(key[:20]), wantErr: true},
		{name: "not a key at all", text: "open sesame", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseKey(tt.text)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseKey(%q) = %x, want error", tt.text, got)
				}
				return
			}

			if err != nil {
				t.Fatalf("parseKey(%q): %v", tt.text, err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Fatalf("parseKey(%q) = %x, want %x", tt.text, got, tt.want)
			}
		})
	}
}
