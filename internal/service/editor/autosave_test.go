package editor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/moxuanyu/resumepilot/internal/model/resume"
)

// saveSpy 记录保存调用。
type saveSpy struct {
	mu     sync.Mutex
	drafts []resume.Draft
	err    error
}

func (s *saveSpy) save(_ context.Context, draft resume.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.drafts = append(s.drafts, draft)
	return nil
}

func (s *saveSpy) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.drafts)
}

func (s *saveSpy) last() resume.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drafts[len(s.drafts)-1]
}

func baseResume() resume.Resume {
	return resume.Resume{ID: "r1", Title: "原标题", RawMarkdown: "# 原内容"}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestRapidEditsCollapseIntoOneSave(t *testing.T) {
	spy := &saveSpy{}
	saver := NewAutosaver(baseResume(), 50*time.Millisecond, spy.save)
	defer saver.Stop()

	saver.Edit("原标题", "# 第一版")
	saver.Edit("原标题", "# 第二版")
	saver.Edit("原标题", "# 第三版")

	waitFor(t, func() bool { return spy.count() == 1 })
	if got := spy.last().RawMarkdown; got != "# 第三版" {
		t.Fatalf("expected only the latest content, got %q", got)
	}
	if saver.Dirty() {
		t.Fatal("dirty flag should clear after successful autosave")
	}
}

func TestFlushSendsOnlyChangedFields(t *testing.T) {
	spy := &saveSpy{}
	saver := NewAutosaver(baseResume(), time.Hour, spy.save)
	defer saver.Stop()

	saver.Edit("原标题", "# 新内容")
	if err := saver.Flush(context.Background()); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	draft := spy.last()
	if draft.Title != "" {
		t.Fatalf("unchanged title must not be sent, got %q", draft.Title)
	}
	if draft.RawMarkdown != "# 新内容" {
		t.Fatalf("unexpected markdown: %q", draft.RawMarkdown)
	}
}

func TestFlushWithoutChangesIsNoop(t *testing.T) {
	spy := &saveSpy{}
	saver := NewAutosaver(baseResume(), time.Hour, spy.save)
	defer saver.Stop()

	if err := saver.Flush(context.Background()); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if spy.count() != 0 {
		t.Fatalf("expected no save call, got %d", spy.count())
	}
}

func TestRevertToBaselineCancelsSave(t *testing.T) {
	spy := &saveSpy{}
	saver := NewAutosaver(baseResume(), 50*time.Millisecond, spy.save)
	defer saver.Stop()

	saver.Edit("原标题", "# 改了")
	saver.Edit("原标题", "# 原内容")

	time.Sleep(150 * time.Millisecond)
	if spy.count() != 0 {
		t.Fatalf("reverted edit must not save, got %d calls", spy.count())
	}
	if saver.Dirty() {
		t.Fatal("reverted edit must clear the dirty flag")
	}
}

func TestFailedSaveKeepsDirty(t *testing.T) {
	spy := &saveSpy{err: errors.New("network down")}
	saver := NewAutosaver(baseResume(), time.Hour, spy.save)
	defer saver.Stop()

	saver.Edit("原标题", "# 新内容")
	if err := saver.Flush(context.Background()); err == nil {
		t.Fatal("expected save error")
	}
	if !saver.Dirty() {
		t.Fatal("failed save must keep the dirty flag")
	}
}

func TestBaselineAdvancesAfterSave(t *testing.T) {
	spy := &saveSpy{}
	saver := NewAutosaver(baseResume(), time.Hour, spy.save)
	defer saver.Stop()

	saver.Edit("新标题", "# 新内容")
	if err := saver.Flush(context.Background()); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	// 基线已前移，重复 Flush 不再发请求。
	if err := saver.Flush(context.Background()); err != nil {
		t.Fatalf("second flush failed: %v", err)
	}
	if spy.count() != 1 {
		t.Fatalf("expected 1 save, got %d", spy.count())
	}
}
