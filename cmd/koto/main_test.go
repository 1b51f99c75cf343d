package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sambeau/koto/config"
)

func noEnv(string) string { return "" }

// isolate runs the test in an empty directory with HOME pointing at it,
// so no koto.yaml on the machine is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
	t.Setenv("HOME", dir)
	return dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(stdin), &stdout, &stderr, noEnv)
	return code, stdout.String(), stderr.String()
}

func TestRunVersion(t *testing.T) {
	isolate(t)
	code, out, _ := runCLI(t, "", "--version")
	if code != exitOK {
		t.Errorf("exit code = %d", code)
	}
	if !strings.Contains(out, "koto version "+Version) {
		t.Errorf("expected version output, got %q", out)
	}
}

func TestRunHelp(t *testing.T) {
	isolate(t)
	code, out, _ := runCLI(t, "", "--help")
	if code != exitOK {
		t.Errorf("exit code = %d", code)
	}
	for _, want := range []string{"koto emit", "--seed", "--recover", "--watch"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in help, got %q", want, out)
		}
	}
}

func TestRunInvalidFlag(t *testing.T) {
	isolate(t)
	if code, _, _ := runCLI(t, "", "--invalid-flag"); code != exitUsage {
		t.Errorf("exit code = %d, want %d", code, exitUsage)
	}
}

func TestRunEval(t *testing.T) {
	isolate(t)
	tests := []struct {
		name    string
		code    string
		exit    int
		stdout  string
		stderrs []string
	}{
		{"output", "x = 1\nx を増やす\nx", exitOK, "2\n", nil},
		{"text", `"こんにちは"`, exitOK, "こんにちは\n", nil},
		{"parse error", "x = 1.5", exitProgram, "", []string{"Parser error", "<eval>", "^"}},
		{"runtime error", "x = 1\nx\ny を増やす", exitProgram, "1\n", []string{"Runtime error", "line 3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out, errOut := runCLI(t, "", "-e", tt.code)
			if code != tt.exit {
				t.Errorf("exit code = %d, want %d (stderr %q)", code, tt.exit, errOut)
			}
			if out != tt.stdout {
				t.Errorf("stdout = %q, want %q", out, tt.stdout)
			}
			for _, want := range tt.stderrs {
				if !strings.Contains(errOut, want) {
					t.Errorf("stderr missing %q: %q", want, errOut)
				}
			}
		})
	}
}

func TestRunFile(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "sum.koto", "合計 = 0\n3 回くり返す {\n  合計を増やす\n}\n合計\n")

	code, out, errOut := runCLI(t, "", "--stats", path)
	if code != exitOK {
		t.Fatalf("exit code = %d, stderr %q", code, errOut)
	}
	if out != "3\n" {
		t.Errorf("stdout = %q", out)
	}
	if !strings.Contains(errOut, "increments: 3, decrements: 0") {
		t.Errorf("stats = %q", errOut)
	}

	if code, _, _ := runCLI(t, "", filepath.Join(dir, "missing.koto")); code != exitUsage {
		t.Errorf("missing file exit code = %d, want %d", code, exitUsage)
	}
}

func TestRunStdin(t *testing.T) {
	isolate(t)
	code, out, errOut := runCLI(t, "x = [1, 2]\nxの末尾に 3 を追加する\nx\n")
	if code != exitOK {
		t.Fatalf("exit code = %d, stderr %q", code, errOut)
	}
	if out != "[1, 2, 3]\n" {
		t.Errorf("stdout = %q", out)
	}
}

func TestRunTimeout(t *testing.T) {
	isolate(t)
	start := time.Now()
	code, _, errOut := runCLI(t, "", "-t", "0.05", "-e", "?回くり返す {}")
	if code != exitProgram {
		t.Errorf("exit code = %d, want %d", code, exitProgram)
	}
	if errOut == "" {
		t.Error("expected a timeout error")
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("timeout took %v", time.Since(start))
	}
}

func TestRunCheck(t *testing.T) {
	dir := isolate(t)
	good := writeFile(t, dir, "good.koto", "x = 1\ny を増やす\n")
	bad := writeFile(t, dir, "bad.koto", "x = 1\ny = \nz = 3\nw = 1.0\n")

	code, out, errOut := runCLI(t, "", "--check", good)
	if code != exitOK || out != "" {
		t.Errorf("check good: exit %d, stdout %q, stderr %q", code, out, errOut)
	}

	code, _, errOut = runCLI(t, "", "--check", good, bad)
	if code != exitProgram {
		t.Errorf("check bad: exit code = %d", code)
	}
	if n := strings.Count(errOut, "Parser error"); n != 1 {
		t.Errorf("got %d errors without --recover, want 1: %q", n, errOut)
	}

	code, _, errOut = runCLI(t, "", "--check", "--recover", bad)
	if code != exitProgram {
		t.Errorf("check --recover: exit code = %d", code)
	}
	if n := strings.Count(errOut, "Parser error"); n != 2 {
		t.Errorf("got %d errors with --recover, want 2: %q", n, errOut)
	}

	if code, _, _ := runCLI(t, "", "--check"); code != exitUsage {
		t.Errorf("check without files: exit code = %d", code)
	}
}

func TestRunRecover(t *testing.T) {
	isolate(t)
	code, out, errOut := runCLI(t, "", "--recover", "-e", "x = 1\nx\ny = \nw = 1.0")
	if code != exitProgram {
		t.Errorf("exit code = %d", code)
	}
	if out != "" {
		t.Errorf("nothing should run after parse errors, got %q", out)
	}
	if n := strings.Count(errOut, "Parser error"); n != 2 {
		t.Errorf("got %d errors, want 2: %q", n, errOut)
	}
}

func TestRunSeed(t *testing.T) {
	dir := isolate(t)
	seedPath := writeFile(t, dir, "data.yaml", "点数: [80, 90]\n名前: たろう\n")

	code, out, errOut := runCLI(t, "", "--seed", seedPath, "-e", "点数の末尾に 70 を追加する\n点数\n名前")
	if code != exitOK {
		t.Fatalf("exit code = %d, stderr %q", code, errOut)
	}
	if out != "[80, 90, 70]\nたろう\n" {
		t.Errorf("stdout = %q", out)
	}

	if code, _, _ := runCLI(t, "", "--seed", filepath.Join(dir, "data.json"), "-e", "1"); code != exitUsage {
		t.Errorf("bad seed extension: exit code = %d, want %d", code, exitUsage)
	}
}

func TestRunConfig(t *testing.T) {
	dir := isolate(t)

	bad := writeFile(t, dir, "bad.yaml", "run:\n  max_depth: 0\n")
	code, _, errOut := runCLI(t, "", "--config", bad, "-e", "1")
	if code != exitUsage || !strings.Contains(errOut, "max_depth") {
		t.Errorf("bad config: exit %d, stderr %q", code, errOut)
	}

	if code, _, _ := runCLI(t, "", "--config", filepath.Join(dir, "nope.yaml"), "-e", "1"); code != exitUsage {
		t.Errorf("missing config: exit code = %d", code)
	}

	// ./koto.yaml is found without --config
	writeFile(t, dir, "data.csv", "点数\n80\n")
	writeFile(t, dir, "koto.yaml", "seed: data.csv\nrun:\n  stats: true\n")
	code, out, errOut := runCLI(t, "", "-e", "点数")
	if code != exitOK || out != "[80]\n" || !strings.Contains(errOut, "increments: 0") {
		t.Errorf("koto.yaml: exit %d, stdout %q, stderr %q", code, out, errOut)
	}
}

func TestRunWatchRequiresFile(t *testing.T) {
	isolate(t)
	if code, _, _ := runCLI(t, "", "--watch"); code != exitUsage {
		t.Errorf("exit code = %d, want %d", code, exitUsage)
	}
}

func TestEmitCommand(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "count.koto", "x = 0\n3 回くり返す {\n  x を増やす\n}\n")

	tests := []struct {
		name  string
		args  []string
		stdin string
		want  string
	}{
		{"python", []string{"emit", "-d", "py", path}, "", "x = 0\nfor _ in range(3):\n    x += 1\n"},
		{"javascript", []string{"emit", "--dialect", "js", path}, "", "x = 0;\nfor (let i = 0; i < 3; i++) {\n    x += 1;\n}\n"},
		{"stdin", []string{"emit", "-d", "python"}, "x = 1\n", "x = 1\n"},
		{"indent", []string{"emit", "-d", "py", "-indent", "1"}, "x = 1\n", "    x = 1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out, errOut := runCLI(t, tt.stdin, tt.args...)
			if code != exitOK {
				t.Fatalf("exit code = %d, stderr %q", code, errOut)
			}
			if out != tt.want {
				t.Errorf("output = %q, want %q", out, tt.want)
			}
		})
	}
}

func TestEmitCommandErrors(t *testing.T) {
	isolate(t)

	code, _, errOut := runCLI(t, "x = 1\n", "emit", "-d", "ruby")
	if code != exitUsage || !strings.Contains(errOut, "unknown dialect") {
		t.Errorf("bad dialect: exit %d, stderr %q", code, errOut)
	}

	code, out, errOut := runCLI(t, "x = 1.5\n", "emit", "-d", "py")
	if code != exitProgram || out != "" || !strings.Contains(errOut, "Parser error") {
		t.Errorf("parse error: exit %d, stdout %q, stderr %q", code, out, errOut)
	}
}

// syncBuffer lets the watcher's runs write while the test reads.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitFor(t *testing.T, b *syncBuffer, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(b.String(), want) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %q, got %q", want, b.String())
}

func TestWatchFile(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "watch.koto", `"first"`)

	var stdout, stderr syncBuffer
	r, err := newRunner(config.Defaults(), false, &stdout, &stderr)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int, 1)
	go func() { done <- r.watchFile(ctx, path) }()

	waitFor(t, &stdout, "first\n")
	waitFor(t, &stderr, "watching")

	writeFile(t, dir, "watch.koto", `"second"`)
	waitFor(t, &stdout, "second\n")
	waitFor(t, &stderr, "re-running")

	cancel()
	select {
	case code := <-done:
		if code != exitOK {
			t.Errorf("exit code = %d", code)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watchFile did not return after cancel")
	}
}

func TestLockedWriterSerializesWrites(t *testing.T) {
	var buf bytes.Buffer
	w := &lockedWriter{w: &buf}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				w.Write([]byte("ab\n"))
			}
		}()
	}
	wg.Wait()

	if got := strings.Count(buf.String(), "ab\n"); got != 800 {
		t.Errorf("got %d whole lines, want 800", got)
	}
}

func TestWatchReportsChangeBeforeRerun(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "bad.koto", "y を増やす")

	var stdout, stderr syncBuffer
	r, err := newRunner(config.Defaults(), false, &stdout, &stderr)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int, 1)
	go func() { done <- r.watchFile(ctx, path) }()

	waitFor(t, &stderr, "Runtime error")
	writeFile(t, dir, "bad.koto", "z を増やす")
	waitFor(t, &stderr, "re-running")
	deadline := time.Now().Add(5 * time.Second)
	for strings.Count(stderr.String(), "Runtime error") < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done

	out := stderr.String()
	notice := strings.Index(out, "re-running")
	second := strings.LastIndex(out, "Runtime error")
	if notice < 0 || second < notice {
		t.Errorf("change notice should precede the rerun's error: %q", out)
	}
}
