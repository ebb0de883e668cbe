package editor

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/moxuanyu/resumepilot/internal/model/resume"
)

// SaveFunc 把变化的字段提交给后端。
type SaveFunc func(ctx context.Context, draft resume.Draft) error

// Autosaver 防抖自动保存：最后一次编辑后的静默期满才发出一次保存；
// 手动保存绕过防抖立即执行。两条路径都只在成功时清除未保存标记。
type Autosaver struct {
	mu    sync.Mutex
	save  SaveFunc
	delay time.Duration
	timer *time.Timer

	base     resume.Resume
	title    string
	markdown string
	dirty    bool
	seq      int
}

// NewAutosaver 以已加载的简历为基线构造。delay 为静默期（生产默认 5s）。
func NewAutosaver(base resume.Resume, delay time.Duration, save SaveFunc) *Autosaver {
	return &Autosaver{
		save:     save,
		delay:    delay,
		base:     base,
		title:    base.Title,
		markdown: base.RawMarkdown,
	}
}

// Edit 记录最新的标题与正文并重新计时。
func (a *Autosaver) Edit(title, markdown string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if title == a.title && markdown == a.markdown {
		return
	}

	a.title = title
	a.markdown = markdown
	a.dirty = title != a.base.Title || markdown != a.base.RawMarkdown
	a.seq++

	if !a.dirty {
		if a.timer != nil {
			a.timer.Stop()
		}
		return
	}

	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.delay, a.autoFlush)
}

// autoFlush 静默期到点后的自动保存。失败只记日志，
// 下一次编辑的防抖窗口会再次尝试。
func (a *Autosaver) autoFlush() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := a.Flush(ctx); err != nil {
		log.Printf("[editor] autosave failed: %v", err)
	}
}

// Flush 立即保存（手动保存路径）。仅发送与基线不同的字段；
// 保存期间又有新编辑时不清除未保存标记。
func (a *Autosaver) Flush(ctx context.Context) error {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
	}
	if !a.dirty {
		a.mu.Unlock()
		return nil
	}

	draft := resume.Draft{}
	if a.title != a.base.Title {
		draft.Title = a.title
	}
	if a.markdown != a.base.RawMarkdown {
		draft.RawMarkdown = a.markdown
	}
	title, markdown, seq := a.title, a.markdown, a.seq
	a.mu.Unlock()

	if err := a.save(ctx, draft); err != nil {
		return err
	}

	a.mu.Lock()
	a.base.Title = title
	a.base.RawMarkdown = markdown
	if a.seq == seq {
		a.dirty = false
	}
	a.mu.Unlock()
	return nil
}

// Dirty 是否存在未保存的更改，离开前据此提醒用户。
func (a *Autosaver) Dirty() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dirty
}

// Stop 取消挂起的自动保存计时器。
func (a *Autosaver) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
	}
}
