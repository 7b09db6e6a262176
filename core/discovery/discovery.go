package discovery

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"audiomanifest/logger"

	"github.com/cockroachdb/errors"
)

// ErrNotDir is wrapped by Error when the root exists but is not a directory.
var ErrNotDir = errors.New("not a directory")

// Error is a fatal discovery failure (DiscoveryError).
type Error struct {
	Root string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("discover %s: %v", e.Root, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Discover 递归扫描 root，返回文件名以 ".<ext>" 结尾的文件绝对路径。
//
// root 会先解析为绝对路径并展开符号链接；遍历按目录项字典序进行，
// 因此同一文件系统内容下结果顺序固定。指向目录的符号链接会被跟随，
// 返回的路径保留链接名；会形成环的链接跳过并记录警告。以 "." 开头的
// 文件和目录被忽略。pathFilter 非空时只保留包含该子串（字面匹配）的路径。
func Discover(root, ext, pathFilter string) ([]string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, &Error{Root: root, Err: err}
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, &Error{Root: root, Err: err}
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, &Error{Root: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &Error{Root: root, Err: ErrNotDir}
	}

	w := &walker{
		suffix: "." + ext,
		filter: pathFilter,
		paths:  make([]string, 0, 1024),
	}
	if err := w.walk(resolved, resolved); err != nil {
		return nil, &Error{Root: root, Err: errors.Wrap(err, "walk")}
	}
	return w.paths, nil
}

type walker struct {
	suffix string
	filter string
	paths  []string
	// trail 记录当前正在跟随的各层符号链接所在的真实目录，用于判断环
	trail []string
}

// walk 遍历真实目录 real，结果路径以 shown 为前缀（经过符号链接时二者不同）
func (w *walker) walk(real, shown string) error {
	return filepath.WalkDir(real, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == real {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(real, path)
		if err != nil {
			return err
		}
		display := filepath.Join(shown, rel)

		if d.Type()&fs.ModeSymlink != 0 {
			info, err := os.Stat(path)
			if err != nil {
				if strings.HasSuffix(d.Name(), w.suffix) {
					logger.Warn("dangling symlink skipped", logger.String("path", display), logger.ErrorField(err))
				}
				return nil
			}
			if info.IsDir() {
				return w.follow(path, display)
			}
			if !info.Mode().IsRegular() {
				return nil
			}
		} else if !d.Type().IsRegular() {
			return nil
		}

		if !strings.HasSuffix(d.Name(), w.suffix) {
			return nil
		}
		if w.filter != "" && !strings.Contains(display, w.filter) {
			return nil
		}
		w.paths = append(w.paths, display)
		return nil
	})
}

// follow 进入符号链接指向的目录。目标是当前路径上某个目录本身或其祖先时会形成环，跳过。
func (w *walker) follow(link, display string) error {
	target, err := filepath.EvalSymlinks(link)
	if err != nil {
		return err
	}
	parent := filepath.Dir(link)
	for _, dir := range append(w.trail, parent) {
		if within(target, dir) {
			logger.Warn("symlink cycle skipped",
				logger.String("path", display),
				logger.String("target", target))
			return nil
		}
	}

	w.trail = append(w.trail, parent)
	defer func() { w.trail = w.trail[:len(w.trail)-1] }()
	return w.walk(target, display)
}

// within reports whether dir is base or lies below it.
func within(base, dir string) bool {
	rel, err := filepath.Rel(base, dir)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
