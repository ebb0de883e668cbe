package mockserver

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/moxuanyu/resumepilot/internal/model/resume"
)

func createResume(t *testing.T, server *httptest.Server, token string, draft resume.Draft) resume.Resume {
	t.Helper()

	resp := postJSON(t, server, "/api/resumes", token, draft)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create failed with %d", resp.StatusCode)
	}

	var result struct {
		Resume resume.Resume `json:"resume"`
	}
	decode(t, resp, &result)
	return result.Resume
}

func TestResumeLifecycle(t *testing.T) {
	server, _ := newTestServer(t)
	token := registerUser(t, server, "zhangsan")

	record := createResume(t, server, token, resume.Draft{Title: "后端工程师简历", RawMarkdown: "# 张三"})
	if record.ID == "" || record.Title != "后端工程师简历" {
		t.Fatalf("unexpected resume: %+v", record)
	}

	update := doJSON(t, server, http.MethodPut, "/api/resumes/"+record.ID, token, resume.Draft{RawMarkdown: "# 张三 v2"})
	var updated struct {
		Resume resume.Resume `json:"resume"`
	}
	decode(t, update, &updated)
	update.Body.Close()
	if updated.Resume.RawMarkdown != "# 张三 v2" {
		t.Fatalf("markdown not updated: %+v", updated.Resume)
	}
	if updated.Resume.Title != "后端工程师简历" {
		t.Fatalf("empty title must not overwrite: %+v", updated.Resume)
	}

	list := doJSON(t, server, http.MethodGet, "/api/resumes", token, nil)
	var listed struct {
		Resumes []resume.Resume `json:"resumes"`
	}
	decode(t, list, &listed)
	list.Body.Close()
	if len(listed.Resumes) != 1 {
		t.Fatalf("expected 1 resume, got %d", len(listed.Resumes))
	}

	del := doJSON(t, server, http.MethodDelete, "/api/resumes/"+record.ID, token, nil)
	del.Body.Close()
	if del.StatusCode != http.StatusOK {
		t.Fatalf("delete failed with %d", del.StatusCode)
	}

	gone := doJSON(t, server, http.MethodGet, "/api/resumes/"+record.ID, token, nil)
	defer gone.Body.Close()
	if gone.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", gone.StatusCode)
	}
}

func TestResumeDefaultTitle(t *testing.T) {
	server, _ := newTestServer(t)
	token := registerUser(t, server, "zhangsan")

	record := createResume(t, server, token, resume.Draft{RawMarkdown: "# 无标题"})
	if record.Title != "未命名简历" {
		t.Fatalf("expected default title, got %q", record.Title)
	}
}

func TestResumeOwnershipIsolation(t *testing.T) {
	server, _ := newTestServer(t)
	tokenA := registerUser(t, server, "zhangsan")
	tokenB := registerUser(t, server, "lisi")

	record := createResume(t, server, tokenA, resume.Draft{Title: "张三的简历"})

	resp := doJSON(t, server, http.MethodGet, "/api/resumes/"+record.ID, tokenB, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("cross-user access must 404, got %d", resp.StatusCode)
	}

	del := doJSON(t, server, http.MethodDelete, "/api/resumes/"+record.ID, tokenB, nil)
	defer del.Body.Close()
	if del.StatusCode != http.StatusNotFound {
		t.Fatalf("cross-user delete must 404, got %d", del.StatusCode)
	}
}

func TestResumeExportPDF(t *testing.T) {
	server, _ := newTestServer(t)
	token := registerUser(t, server, "zhangsan")
	record := createResume(t, server, token, resume.Draft{Title: "导出测试", RawMarkdown: "# 内容"})

	resp := doJSON(t, server, http.MethodGet, "/api/resumes/"+record.ID+"/pdf", token, nil)
	defer resp.Body.Close()

	if got := resp.Header.Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("unexpected content type: %s", got)
	}
	data, _ := io.ReadAll(resp.Body)
	if !strings.HasPrefix(string(data), "%PDF") {
		t.Fatalf("payload is not a PDF: %q", data[:20])
	}
}

func TestResumePreviewHTML(t *testing.T) {
	server, _ := newTestServer(t)
	token := registerUser(t, server, "zhangsan")
	record := createResume(t, server, token, resume.Draft{Title: "预览测试", RawMarkdown: "# 内容"})

	resp := doJSON(t, server, http.MethodGet, "/api/resumes/"+record.ID+"/preview", token, nil)
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(data), "预览测试") || !strings.Contains(string(data), "# 内容") {
		t.Fatalf("preview missing content: %s", data)
	}
}
