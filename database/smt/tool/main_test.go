// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Fantom-foundation/go-smt/database/smt"
)

func runTool(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := newApp()
	out := &bytes.Buffer{}
	app.Writer = out
	app.ErrWriter = out
	err := app.Run(append([]string{"smt-tool"}, args...))
	return out.String(), err
}

func mustRunTool(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runTool(t, args...)
	if err != nil {
		t.Fatalf("failed to run %v: %v\n%s", args, err, out)
	}
	return out
}

func getRoot(t *testing.T, out string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		if root, found := strings.CutPrefix(line, "Root:"); found {
			return strings.TrimSpace(root)
		}
	}
	t.Fatalf("no root in output %q", out)
	return ""
}

func TestTool_InsertedKeysCanBeProvenAndVerified(t *testing.T) {
	for _, backend := range []string{"file", "ldb", "memory"} {
		for _, hashing := range []string{"Keccak256", "Poseidon"} {
			t.Run(backend+"/"+hashing, func(t *testing.T) {
				dir := filepath.Join(t.TempDir(), "tree")
				mustRunTool(t, "init", "--max-depth", "20", "--hashing", hashing, "--backend", backend, "--archive", dir)

				mustRunTool(t, "insert", dir, "7", "1")
				first := getRoot(t, mustRunTool(t, "insert", dir, "0x0a", "0x20"))

				if got := strings.TrimSpace(mustRunTool(t, "get", dir, "10")); got != "0x"+strings.Repeat("0", 62)+"20" {
					t.Errorf("unexpected value of key 10: %s", got)
				}
				if _, err := runTool(t, "get", dir, "5"); err == nil {
					t.Errorf("getting an absent key should fail")
				}

				for _, format := range []string{"rlp", "json"} {
					proof := mustRunTool(t, "prove", "--format", format, dir, "7")
					mustRunTool(t, "verify", "--hashing", hashing, first, proof, "7", "1")
					if _, err := runTool(t, "verify", "--hashing", hashing, first, proof, "7", "2"); err == nil {
						t.Errorf("verifying a wrong value should fail")
					}

					absent := mustRunTool(t, "prove", "--format", format, dir, "5")
					mustRunTool(t, "verify", "--hashing", hashing, first, absent, "5", "0")
				}

				mustRunTool(t, "insert", dir, "5", "3")
				old := mustRunTool(t, "prove", "--version", "2", dir, "5")
				mustRunTool(t, "verify", "--hashing", hashing, first, old, "5", "0")

				out := mustRunTool(t, "check", dir)
				if !strings.Contains(out, "Verification successful!") {
					t.Errorf("unexpected check output: %s", out)
				}
				out = mustRunTool(t, "info", dir)
				if !strings.Contains(out, "Version:           3") || !strings.Contains(out, "Can be opened:     Yes") {
					t.Errorf("unexpected info output: %s", out)
				}
				if !strings.Contains(out, "Node store memory:") || !strings.Contains(out, "version 3,") {
					t.Errorf("info output lacks memory summary: %s", out)
				}
			})
		}
	}
}

func TestTool_InitRejectsInvalidMaxDepth(t *testing.T) {
	for _, depth := range []string{"0", fmt.Sprint(smt.HardMaxDepth + 1)} {
		t.Run(depth, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "tree")
			out, err := runTool(t, "init", "--max-depth", depth, dir)
			if !errors.Is(err, smt.ErrInvalidMaxDepth) {
				t.Errorf("unexpected error for max depth %s: %v", depth, err)
			}
			if strings.Contains(out, "Created tree") {
				t.Errorf("tree creation should not be reported: %s", out)
			}
			if _, found, err := smt.ReadTreeInfo(dir); err != nil || found {
				t.Errorf("no tree should have been created, found %t, err %v", found, err)
			}
		})
	}
}

func TestTool_InvalidInputsAreRejected(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tree")
	mustRunTool(t, "init", "--max-depth", "1", dir)
	mustRunTool(t, "insert", dir, "1", "1")

	tests := map[string][]string{
		"init twice":         {"init", dir},
		"unknown config":     {"init", "--config", "unknown", t.TempDir()},
		"unknown hashing":    {"init", "--hashing", "unknown", t.TempDir()},
		"unknown backend":    {"init", "--backend", "unknown", t.TempDir()},
		"duplicate key":      {"insert", dir, "1", "2"},
		"max depth reached":  {"insert", dir, "3", "2"},
		"invalid key":        {"insert", dir, "abc", "2"},
		"missing arguments":  {"insert", dir, "2"},
		"missing tree":       {"get", t.TempDir(), "1"},
		"unknown format":     {"prove", "--format", "xml", dir, "1"},
		"unknown version":    {"prove", "--version", "5", dir, "1"},
		"invalid root":       {"verify", "0x12", "0xc3c080c0", "1", "0"},
		"invalid proof":      {"verify", "0x" + strings.Repeat("0", 64), "0xc3", "1", "0"},
		"invalid hashing":    {"verify", "--hashing", "xyz", "0x" + strings.Repeat("0", 64), "0xc3c080c0", "1", "0"},
		"absent key as zero": {"verify", "0x" + strings.Repeat("0", 64), "0xc3c080c0", "1", "1"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := runTool(t, args...); err == nil {
				t.Errorf("command %v should fail", args)
			}
		})
	}

	// The empty proof shows the absence of any key in the empty tree.
	mustRunTool(t, "verify", "0x"+strings.Repeat("0", 64), "0xc3c080c0", "1", "0")
}
