package bench

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

const (
	StrategyNative = "native"
	StrategyShell  = "shell"
)

// Strategy is how a worker performs the underlying file-system primitive.
// Every method reports failure through its error; none may exit the process.
type Strategy interface {
	Name() string
	CopyFile(src, dst string) error
	CopyDir(src, dst string) error
	MoveDir(src, dst string) error
	AppendFile(path string, payload []byte) error
	ReadFile(path string) (int64, error)
	RemoveFile(path string) error
	RemoveDir(path string) error
}

// NewStrategy resolves a strategy tag. An empty tag means native.
func NewStrategy(tag string, fs afero.Fs) (Strategy, error) {
	switch tag {
	case "", StrategyNative:
		return &NativeStrategy{Fs: fs}, nil
	case StrategyShell:
		return &ShellStrategy{Shell: "sh"}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", tag)
	}
}

// NativeStrategy calls file-system primitives directly.
type NativeStrategy struct {
	Fs afero.Fs
}

func (n *NativeStrategy) Name() string { return StrategyNative }

// CopyFile copies content, permission bits and modification time.
func (n *NativeStrategy) CopyFile(src, dst string) error {
	in, err := n.Fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("copy %s: is a directory", src)
	}

	out, err := n.Fs.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	if err := n.Fs.Chmod(dst, info.Mode().Perm()); err != nil {
		return err
	}
	return n.Fs.Chtimes(dst, info.ModTime(), info.ModTime())
}

// CopyDir copies a tree. dst must not exist yet.
func (n *NativeStrategy) CopyDir(src, dst string) error {
	if ok, _ := afero.Exists(n.Fs, dst); ok {
		return fmt.Errorf("copy %s: destination %s already exists", src, dst)
	}
	info, err := n.Fs.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("copy %s: not a directory", src)
	}

	return afero.Walk(n.Fs, src, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if fi.IsDir() {
			if err := n.Fs.MkdirAll(target, fi.Mode().Perm()|0o700); err != nil {
				return err
			}
			return nil
		}
		return n.CopyFile(path, target)
	})
}

func (n *NativeStrategy) MoveDir(src, dst string) error {
	return n.Fs.Rename(src, dst)
}

// AppendFile appends to an existing file; it never creates one.
func (n *NativeStrategy) AppendFile(path string, payload []byte) error {
	f, err := n.Fs.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	if _, err := f.Write(payload); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (n *NativeStrategy) ReadFile(path string) (int64, error) {
	data, err := afero.ReadFile(n.Fs, path)
	return int64(len(data)), err
}

func (n *NativeStrategy) RemoveFile(path string) error {
	return n.Fs.Remove(path)
}

// RemoveDir fails on a missing path, unlike RemoveAll.
func (n *NativeStrategy) RemoveDir(path string) error {
	if _, err := n.Fs.Stat(path); err != nil {
		return err
	}
	return n.Fs.RemoveAll(path)
}

// ShellStrategy runs POSIX commands. It always acts on the real file system.
type ShellStrategy struct {
	Shell string
}

func (s *ShellStrategy) Name() string { return StrategyShell }

func (s *ShellStrategy) CopyFile(src, dst string) error {
	return s.run(nil, "cp", "-p", src, dst)
}

func (s *ShellStrategy) CopyDir(src, dst string) error {
	return s.run(nil, "cp", "-Rp", src, dst)
}

func (s *ShellStrategy) MoveDir(src, dst string) error {
	return s.run(nil, "mv", src, dst)
}

func (s *ShellStrategy) AppendFile(path string, payload []byte) error {
	return s.run(nil, s.shell(), "-c", `[ -f "$2" ] && printf '%s' "$1" >> "$2"`, "append", string(payload), path)
}

func (s *ShellStrategy) ReadFile(path string) (int64, error) {
	var w countingWriter
	err := s.run(&w, "cat", path)
	return w.n, err
}

func (s *ShellStrategy) RemoveFile(path string) error {
	return s.run(nil, "rm", path)
}

func (s *ShellStrategy) RemoveDir(path string) error {
	return s.run(nil, "rm", "-r", path)
}

func (s *ShellStrategy) shell() string {
	if s.Shell == "" {
		return "sh"
	}
	return s.Shell
}

func (s *ShellStrategy) run(stdout io.Writer, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if stdout != nil {
		cmd.Stdout = stdout
	}
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

type countingWriter struct {
	n int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	return len(p), nil
}
