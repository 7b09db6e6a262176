package manifest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"audiomanifest/model"

	"github.com/cockroachdb/errors"
)

const (
	TrainFile = "train.tsv"
	ValidFile = "valid.tsv"
)

// WriteError is a fatal failure to create or write a manifest file.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write manifest %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Paths lists the files produced by Write. Valid is empty when no validation file was written.
type Paths struct {
	Train string
	Valid string
}

// Write 把划分结果写成 TSV 清单。
//
// destDir 不存在时会连同父目录一起创建。train.tsv 总会写出（训练集为空时是空文件）；
// valid.tsv 只在 writeValid 为 true 时写出，否则根本不创建。
// 每个文件先写入同目录临时文件再 rename 到位。
func Write(split model.Split, destDir string, writeValid bool) (Paths, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return Paths{}, &WriteError{Path: destDir, Err: err}
	}

	var out Paths
	if writeValid {
		p := filepath.Join(destDir, ValidFile)
		if err := writeFileAtomic(p, split.Validation); err != nil {
			return Paths{}, &WriteError{Path: p, Err: err}
		}
		out.Valid = p
	}

	p := filepath.Join(destDir, TrainFile)
	if err := writeFileAtomic(p, split.Training); err != nil {
		return out, &WriteError{Path: p, Err: err}
	}
	out.Train = p
	return out, nil
}

// WriteRows writes one "<path>\t<frames>\n" line per record.
func WriteRows(w io.Writer, records []model.FileRecord) error {
	bw := bufio.NewWriter(w)
	buf := make([]byte, 0, 256)
	for _, r := range records {
		buf = buf[:0]
		buf = append(buf, r.Path...)
		buf = append(buf, '\t')
		buf = strconv.AppendInt(buf, r.FrameCount, 10)
		buf = append(buf, '\n')
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeFileAtomic(dst string, records []model.FileRecord) error {
	dir, name := filepath.Split(dst)
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if err := WriteRows(tmp, records); err != nil {
		return errors.Wrap(err, "write rows")
	}
	if err := tmp.Sync(); err != nil {
		return errors.Wrap(err, "sync")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close")
	}
	// CreateTemp 使用 0600，清单需要对其他用户可读
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return errors.Wrap(err, "chmod")
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return errors.Wrap(err, "rename")
	}
	return nil
}
