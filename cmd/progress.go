package cmd

import (
	"io"
	"os"
	"time"

	"audiomanifest/core/measure"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

var _ measure.Observer = (*progressObserver)(nil)

// progressObserver 把测量进度渲染为终端进度条。
// 所有回调都来自测量器的收集协程，不需要加锁。
type progressObserver struct {
	w    io.Writer
	p    *mpb.Progress
	bar  *mpb.Bar
	last time.Time
}

func newProgressObserver(w io.Writer) *progressObserver {
	return &progressObserver{w: w}
}

func (o *progressObserver) OnStart(total int) {
	o.p = mpb.New(mpb.WithOutput(o.w), mpb.WithWidth(64))
	o.bar = o.p.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name("Probing: "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.EwmaETA(decor.ET_STYLE_GO, 60),
		),
	)
	o.last = time.Now()
}

func (o *progressObserver) OnProbeDone(done, total int, path string, err error) {
	if o.bar == nil {
		return
	}
	now := time.Now()
	o.bar.EwmaIncrement(now.Sub(o.last))
	o.last = now
}

func (o *progressObserver) OnFinish(res measure.Result) {
	if o.p == nil {
		return
	}
	// total 为 0 或被取消时进度条不会自动完成，这里强制结束，否则 Wait 会一直阻塞
	o.bar.SetTotal(-1, true)
	o.p.Wait()
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// 进度条只在交互终端启用，走 stderr，不影响 stdout 上的结果输出
func pickProgressWriter() (io.Writer, bool) {
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	return nil, false
}
