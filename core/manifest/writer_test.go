package manifest

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"audiomanifest/model"

	"github.com/cockroachdb/errors"
	. "github.com/onsi/gomega"
)

func sampleSplit() model.Split {
	return model.Split{
		Validation: []model.FileRecord{
			{Path: "/data/v1.flac", FrameCount: 100},
		},
		Training: []model.FileRecord{
			{Path: "/data/t2.flac", FrameCount: 20},
			{Path: "/data/t1.flac", FrameCount: 0},
		},
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(b)
}

func TestWriteRowsFormat(t *testing.T) {
	g := NewWithT(t)
	var buf bytes.Buffer
	err := WriteRows(&buf, []model.FileRecord{
		{Path: "/a b/ü.flac", FrameCount: 12345},
		{Path: "/c.flac", FrameCount: 0},
	})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(buf.String()).To(Equal("/a b/ü.flac\t12345\n/c.flac\t0\n"))
}

func TestWriteBothFilesInSplitOrder(t *testing.T) {
	g := NewWithT(t)
	dest := filepath.Join(t.TempDir(), "nested", "out")

	paths, err := Write(sampleSplit(), dest, true)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(paths.Valid).To(Equal(filepath.Join(dest, ValidFile)))
	g.Expect(paths.Train).To(Equal(filepath.Join(dest, TrainFile)))

	g.Expect(readFile(t, paths.Valid)).To(Equal("/data/v1.flac\t100\n"))
	g.Expect(readFile(t, paths.Train)).To(Equal("/data/t2.flac\t20\n/data/t1.flac\t0\n"))

	entries, err := os.ReadDir(dest)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(entries).To(HaveLen(2), "no temp files left behind")
}

func TestWriteWithoutValidation(t *testing.T) {
	g := NewWithT(t)
	dest := t.TempDir()
	s := model.Split{Training: sampleSplit().Training}

	paths, err := Write(s, dest, false)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(paths.Valid).To(BeEmpty())

	_, err = os.Stat(filepath.Join(dest, ValidFile))
	g.Expect(os.IsNotExist(err)).To(BeTrue())
	g.Expect(readFile(t, paths.Train)).To(Equal("/data/t2.flac\t20\n/data/t1.flac\t0\n"))
}

func TestWriteEmptySplitCreatesEmptyFiles(t *testing.T) {
	g := NewWithT(t)
	dest := t.TempDir()

	paths, err := Write(model.Split{}, dest, true)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(readFile(t, paths.Valid)).To(BeEmpty())
	g.Expect(readFile(t, paths.Train)).To(BeEmpty())
}

func TestWriteOverwritesPreviousManifest(t *testing.T) {
	g := NewWithT(t)
	dest := t.TempDir()
	g.Expect(os.WriteFile(filepath.Join(dest, TrainFile), []byte("stale\n"), 0o644)).To(Succeed())

	paths, err := Write(sampleSplit(), dest, false)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(readFile(t, paths.Train)).NotTo(ContainSubstring("stale"))

	info, err := os.Stat(paths.Train)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o644)))
}

func TestWriteDestinationIsFile(t *testing.T) {
	g := NewWithT(t)
	dest := filepath.Join(t.TempDir(), "file")
	g.Expect(os.WriteFile(dest, []byte("x"), 0o644)).To(Succeed())

	_, err := Write(sampleSplit(), dest, true)
	var we *WriteError
	g.Expect(errors.As(err, &we)).To(BeTrue())
	g.Expect(we.Path).To(Equal(dest))
}

func TestWriteTargetIsDirectory(t *testing.T) {
	g := NewWithT(t)
	dest := t.TempDir()
	g.Expect(os.MkdirAll(filepath.Join(dest, TrainFile, "x"), 0o755)).To(Succeed())

	_, err := Write(sampleSplit(), dest, false)
	var we *WriteError
	g.Expect(errors.As(err, &we)).To(BeTrue())
	g.Expect(we.Path).To(Equal(filepath.Join(dest, TrainFile)))
}
