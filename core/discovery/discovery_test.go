package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	. "github.com/onsi/gomega"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// resolvedTempDir returns a temp dir with symlinks expanded (macOS /var -> /private/var).
func resolvedTempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("eval symlinks: %v", err)
	}
	return dir
}

func TestDiscoverRecursiveByExtension(t *testing.T) {
	g := NewWithT(t)
	root := resolvedTempDir(t)
	touch(t, filepath.Join(root, "a.flac"))
	touch(t, filepath.Join(root, "sub", "deep", "b.flac"))
	touch(t, filepath.Join(root, "sub", "c.wav"))
	touch(t, filepath.Join(root, "notes.flac.txt"))
	if err := os.MkdirAll(filepath.Join(root, "dir.flac"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := Discover(root, "flac", "")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(got).To(Equal([]string{
		filepath.Join(root, "a.flac"),
		filepath.Join(root, "sub", "deep", "b.flac"),
	}))
	for _, p := range got {
		g.Expect(filepath.IsAbs(p)).To(BeTrue())
	}
}

func TestDiscoverRelativeRootYieldsAbsolutePaths(t *testing.T) {
	g := NewWithT(t)
	root := resolvedTempDir(t)
	touch(t, filepath.Join(root, "data", "x.flac"))

	wd, err := os.Getwd()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(os.Chdir(root)).To(Succeed())
	t.Cleanup(func() { _ = os.Chdir(wd) })

	got, err := Discover("data", "flac", "")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(got).To(Equal([]string{filepath.Join(root, "data", "x.flac")}))
}

func TestDiscoverPathFilterIsLiteral(t *testing.T) {
	g := NewWithT(t)
	root := resolvedTempDir(t)
	touch(t, filepath.Join(root, "clipA", "1.flac"))
	touch(t, filepath.Join(root, "clipB", "2.flac"))
	touch(t, filepath.Join(root, "other", "clipA_3.flac"))
	touch(t, filepath.Join(root, "clip.", "4.flac"))

	got, err := Discover(root, "flac", "clipA")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(got).To(ConsistOf(
		filepath.Join(root, "clipA", "1.flac"),
		filepath.Join(root, "other", "clipA_3.flac"),
	))

	// "." is not a regex wildcard
	got, err = Discover(root, "flac", "clip.")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(got).To(Equal([]string{filepath.Join(root, "clip.", "4.flac")}))
}

func TestDiscoverIsDeterministic(t *testing.T) {
	g := NewWithT(t)
	root := resolvedTempDir(t)
	for _, n := range []string{"z.flac", "m/a.flac", "b.flac", "m/c.flac"} {
		touch(t, filepath.Join(root, n))
	}
	first, err := Discover(root, "flac", "")
	g.Expect(err).NotTo(HaveOccurred())
	second, err := Discover(root, "flac", "")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(second).To(Equal(first))
	g.Expect(first).To(HaveLen(4))
}

func TestDiscoverEmptyRoot(t *testing.T) {
	g := NewWithT(t)
	got, err := Discover(t.TempDir(), "flac", "")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(got).To(BeEmpty())
}

func TestDiscoverMissingRoot(t *testing.T) {
	g := NewWithT(t)
	_, err := Discover(filepath.Join(t.TempDir(), "missing"), "flac", "")
	g.Expect(err).To(HaveOccurred())

	var de *Error
	g.Expect(errors.As(err, &de)).To(BeTrue())
}

func TestDiscoverRootIsFile(t *testing.T) {
	g := NewWithT(t)
	f := filepath.Join(t.TempDir(), "a.flac")
	touch(t, f)

	_, err := Discover(f, "flac", "")
	g.Expect(errors.Is(err, ErrNotDir)).To(BeTrue())
}

func symlink(t *testing.T, target, link string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(link), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
}

func TestDiscoverFollowsSymlinkedDirectories(t *testing.T) {
	g := NewWithT(t)
	root := resolvedTempDir(t)
	data := resolvedTempDir(t)
	touch(t, filepath.Join(root, "a.flac"))
	touch(t, filepath.Join(data, "spk1", "b.flac"))
	touch(t, filepath.Join(data, "c.flac"))
	symlink(t, data, filepath.Join(root, "speakers"))

	got, err := Discover(root, "flac", "")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(got).To(Equal([]string{
		filepath.Join(root, "a.flac"),
		filepath.Join(root, "speakers", "c.flac"),
		filepath.Join(root, "speakers", "spk1", "b.flac"),
	}))

	// 过滤作用于链接路径
	got, err = Discover(root, "flac", "speakers")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(got).To(HaveLen(2))
}

func TestDiscoverFollowsSymlinkedFiles(t *testing.T) {
	g := NewWithT(t)
	root := resolvedTempDir(t)
	other := resolvedTempDir(t)
	touch(t, filepath.Join(other, "real.flac"))
	symlink(t, filepath.Join(other, "real.flac"), filepath.Join(root, "link.flac"))
	symlink(t, filepath.Join(other, "gone.flac"), filepath.Join(root, "dangling.flac"))

	got, err := Discover(root, "flac", "")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(got).To(Equal([]string{filepath.Join(root, "link.flac")}))
}

func TestDiscoverStopsAtSymlinkCycles(t *testing.T) {
	g := NewWithT(t)
	root := resolvedTempDir(t)
	outside := resolvedTempDir(t)
	touch(t, filepath.Join(root, "a", "x.flac"))
	touch(t, filepath.Join(outside, "y.flac"))
	symlink(t, root, filepath.Join(root, "a", "up"))
	symlink(t, root, filepath.Join(root, "self"))
	symlink(t, outside, filepath.Join(root, "out"))
	symlink(t, root, filepath.Join(outside, "back"))

	got, err := Discover(root, "flac", "")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(got).To(Equal([]string{
		filepath.Join(root, "a", "x.flac"),
		filepath.Join(root, "out", "y.flac"),
	}))
}

func TestDiscoverSkipsHiddenEntries(t *testing.T) {
	g := NewWithT(t)
	root := filepath.Join(resolvedTempDir(t), ".dataset")
	touch(t, filepath.Join(root, "a.flac"))
	touch(t, filepath.Join(root, "._a.flac"))
	touch(t, filepath.Join(root, ".Trash", "b.flac"))
	touch(t, filepath.Join(root, "sub", ".hidden", "c.flac"))
	touch(t, filepath.Join(root, "sub", "d.flac"))

	got, err := Discover(root, "flac", "")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(got).To(Equal([]string{
		filepath.Join(root, "a.flac"),
		filepath.Join(root, "sub", "d.flac"),
	}))
}
