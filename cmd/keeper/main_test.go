// Binary-level tests: build keeper once and drive it through real processes.
package main

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	buildOnce sync.Once
	keeperBin string
	buildErr  error
)

// ensureBinary builds keeper into a temp directory on first use.
func ensureBinary(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping binary build in short mode")
	}
	buildOnce.Do(func() {
		dir, err := os.MkdirTemp("", "keeper-bin-*")
		if err != nil {
			buildErr = err
			return
		}
		bin := filepath.Join(dir, "keeper")
		cmd := exec.Command("go", "build", "-o", bin, ".")
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		buildErr = cmd.Run()
		if buildErr == nil {
			keeperBin = bin
		}
	})
	require.NoError(t, buildErr, "build keeper binary")
	return keeperBin
}

// runKeeper runs the binary with isolated config and data directories.
func runKeeper(t *testing.T, dir, stdin string, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()
	bin := ensureBinary(t)
	full := append([]string{
		"--config-dir", filepath.Join(dir, "config"),
		"--data-dir", filepath.Join(dir, "data"),
	}, args...)
	cmd := exec.Command(bin, full...)
	cmd.Env = cleanEnv()
	cmd.Stdin = strings.NewReader(stdin)
	var outBuf, errBuf strings.Builder
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			t.Fatalf("run keeper: %v", err)
		}
		exitCode = exitErr.ExitCode()
	}
	return outBuf.String(), errBuf.String(), exitCode
}

// cleanEnv drops KEEPER_* variables so the host environment cannot leak in.
func cleanEnv() []string {
	var env []string
	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, "KEEPER_") {
			env = append(env, kv)
		}
	}
	return env
}

func TestHelpListsSystems(t *testing.T) {
	stdout, _, code := runKeeper(t, t.TempDir(), "", "--help")
	require.Equal(t, 0, code)
	for _, want := range []string{"Usage:", "college", "hospital", "hotel", "library", "school", "init"} {
		assert.Contains(t, stdout, want)
	}
}

func TestSchoolSessionPersistsAcrossRuns(t *testing.T) {
	dir := t.TempDir()

	stdout, stderr, code := runKeeper(t, dir, "2\nMs. Reed\nScience\n3\nScience\n1\n8\n", "school")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, `Added teacher: {"name":"Ms. Reed","subject":"Science","teacher_id":1}`)
	assert.Contains(t, stdout, "Created class")

	stdout, stderr, code = runKeeper(t, dir, "1\nSam\n10\n4\n1\nScience\n7\nScience\n8\n", "school")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, `Added student: {"name":"Sam","age":10,"student_id":1}`)
	assert.Contains(t, stdout, `"teacher":{"name":"Ms. Reed","subject":"Science","teacher_id":1}`)
	assert.Contains(t, stdout, `"students":[{"name":"Sam","age":10,"student_id":1}]`)

	assert.FileExists(t, filepath.Join(dir, "data", "school_data.json"))
}

func TestFailedCommandExitsNonZero(t *testing.T) {
	_, stderr, code := runKeeper(t, t.TempDir(), "", "show", "zoo", "animals")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "schema not found")
}
