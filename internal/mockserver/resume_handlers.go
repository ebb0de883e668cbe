package mockserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/moxuanyu/resumepilot/internal/model/resume"
	"github.com/moxuanyu/resumepilot/pkg/httpx"
)

// ResumeHandler 简历 CRUD 与导出路由。
type ResumeHandler struct {
	store *Store
}

// NewResumeHandler 创建简历处理器。
func NewResumeHandler(store *Store) *ResumeHandler {
	return &ResumeHandler{store: store}
}

// RegisterRoutes 注册 /resumes 路由，全部要求认证。
func (h *ResumeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/resumes", h.handleList)
	r.Post("/resumes", h.handleCreate)
	r.Get("/resumes/{id}", h.handleGet)
	r.Put("/resumes/{id}", h.handleUpdate)
	r.Delete("/resumes/{id}", h.handleDelete)
	r.Get("/resumes/{id}/pdf", h.handleExportPDF)
	r.Get("/resumes/{id}/html", h.handleHTML)
	r.Get("/resumes/{id}/preview", h.handleHTML)
}

func (h *ResumeHandler) handleList(w http.ResponseWriter, r *http.Request) {
	resumes := h.store.ListResumes(currentUser(r).ID)
	sort.Slice(resumes, func(i, j int) bool {
		return resumes[i].UpdatedAt.After(resumes[j].UpdatedAt)
	})
	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"resumes": resumes,
	})
}

func (h *ResumeHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var draft resume.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	record := h.store.CreateResume(currentUser(r).ID, draft)
	httpx.RespondJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"resume":  record,
	})
}

func (h *ResumeHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	record, err := h.store.GetResume(currentUser(r).ID, chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, http.StatusNotFound, "简历不存在")
		return
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"resume":  record,
	})
}

func (h *ResumeHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var draft resume.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	record, err := h.store.UpdateResume(currentUser(r).ID, chi.URLParam(r, "id"), draft)
	if err != nil {
		httpx.RespondError(w, http.StatusNotFound, "简历不存在")
		return
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"resume":  record,
	})
}

func (h *ResumeHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteResume(currentUser(r).ID, chi.URLParam(r, "id")); err != nil {
		httpx.RespondError(w, http.StatusNotFound, "简历不存在")
		return
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// handleExportPDF 开发替身不做真实排版，返回一个带标记的占位 PDF。
func (h *ResumeHandler) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	record, err := h.store.GetResume(currentUser(r).ID, chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, http.StatusNotFound, "简历不存在")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", record.Title+".pdf"))
	fmt.Fprintf(w, "%%PDF-1.4\n%% mock export of resume %s\n%s\n%%%%EOF\n", record.ID, record.RawMarkdown)
}

func (h *ResumeHandler) handleHTML(w http.ResponseWriter, r *http.Request) {
	record, err := h.store.GetResume(currentUser(r).ID, chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, http.StatusNotFound, "简历不存在")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<!DOCTYPE html><html><head><title>%s</title></head><body><pre>%s</pre></body></html>",
		record.Title, record.RawMarkdown)
}
