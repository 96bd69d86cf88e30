//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/sh"

	"github.com/mesh-intelligence/recordkeeper/internal/schema"
)

// systemStats summarises one built-in schema.
type systemStats struct {
	Kinds  int `json:"kinds"`
	Fields int `json:"fields"`
	Menu   int `json:"menu"`
}

// Stats prints one JSON object: the size of every built-in system and the
// Go lines of each package, split into code and tests.
func Stats() error {
	systems := map[string]systemStats{}
	for _, name := range schema.Names() {
		sch, err := schema.Load(name)
		if err != nil {
			return err
		}
		st := systemStats{Kinds: len(sch.Kinds), Menu: len(sch.Menu) + 1}
		for _, k := range sch.Kinds {
			st.Fields += len(k.Fields)
		}
		systems[name] = st
	}

	packages, err := packageLines()
	if err != nil {
		return err
	}
	out, err := json.Marshal(map[string]any{"systems": systems, "packages": packages})
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// packageLines maps each package import path, relative to the module, to
// its code and test line counts.
func packageLines() (map[string][2]int, error) {
	list, err := sh.Output(binGo, "list", "-f", "{{.ImportPath}}|{{.Dir}}|{{join .GoFiles \",\"}}|{{join .TestGoFiles \",\"}}", "./...")
	if err != nil {
		return nil, err
	}
	mod, err := sh.Output(binGo, "list", "-m")
	if err != nil {
		return nil, err
	}
	out := map[string][2]int{}
	for _, line := range strings.Split(list, "\n") {
		parts := strings.Split(line, "|")
		if len(parts) != 4 {
			continue
		}
		pkg := strings.TrimPrefix(strings.TrimPrefix(parts[0], mod), "/")
		if pkg == "" {
			pkg = "."
		}
		code, err := sumLines(parts[1], parts[2])
		if err != nil {
			return nil, err
		}
		tests, err := sumLines(parts[1], parts[3])
		if err != nil {
			return nil, err
		}
		out[pkg] = [2]int{code, tests}
	}
	return out, nil
}

// sumLines counts the lines of a comma-separated file list in dir.
func sumLines(dir, files string) (int, error) {
	total := 0
	for _, name := range strings.Split(files, ",") {
		if name == "" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return 0, err
		}
		total += bytes.Count(data, []byte("\n"))
	}
	return total, nil
}
