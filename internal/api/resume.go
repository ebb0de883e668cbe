package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/moxuanyu/resumepilot/internal/model/resume"
)

// ListResumes 获取当前用户的全部简历。
func (c *Client) ListResumes(ctx context.Context) ([]resume.Resume, error) {
	var result struct {
		Success bool            `json:"success"`
		Resumes []resume.Resume `json:"resumes"`
	}
	if err := c.JSON(ctx, http.MethodGet, "/api/resumes", nil, &result); err != nil {
		return nil, err
	}
	return result.Resumes, nil
}

// GetResume 获取指定简历。
func (c *Client) GetResume(ctx context.Context, id string) (resume.Resume, error) {
	var result struct {
		Success bool          `json:"success"`
		Resume  resume.Resume `json:"resume"`
	}
	if err := c.JSON(ctx, http.MethodGet, "/api/resumes/"+url.PathEscape(id), nil, &result); err != nil {
		return resume.Resume{}, err
	}
	return result.Resume, nil
}

// CreateResume 创建一份新简历。
func (c *Client) CreateResume(ctx context.Context, draft resume.Draft) (resume.Resume, error) {
	var result struct {
		Success bool          `json:"success"`
		Resume  resume.Resume `json:"resume"`
	}
	if err := c.JSON(ctx, http.MethodPost, "/api/resumes", draft, &result); err != nil {
		return resume.Resume{}, err
	}
	return result.Resume, nil
}

// UpdateResume 更新标题或正文，只发送发生变化的字段。
func (c *Client) UpdateResume(ctx context.Context, id string, draft resume.Draft) (resume.Resume, error) {
	var result struct {
		Success bool          `json:"success"`
		Resume  resume.Resume `json:"resume"`
	}
	if err := c.JSON(ctx, http.MethodPut, "/api/resumes/"+url.PathEscape(id), draft, &result); err != nil {
		return resume.Resume{}, err
	}
	return result.Resume, nil
}

// DeleteResume 删除指定简历。
func (c *Client) DeleteResume(ctx context.Context, id string) error {
	return c.JSON(ctx, http.MethodDelete, "/api/resumes/"+url.PathEscape(id), nil, nil)
}

// DeleteResumes 并发删除多份简历，整体等待。任何一个失败即整体视为失败，
// 不做部分成功的逐项对账，调用方重新加载列表即可。
func (c *Client) DeleteResumes(ctx context.Context, ids []string) error {
	var wg sync.WaitGroup
	errs := make([]error, len(ids))

	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			errs[i] = c.DeleteResume(ctx, id)
		}(i, id)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// ExportPDF 导出 PDF 二进制内容。smartOnepage 开启智能一页排版。
func (c *Client) ExportPDF(ctx context.Context, id string, smartOnepage bool) ([]byte, error) {
	path := fmt.Sprintf("/api/resumes/%s/pdf?smart_onepage=%t", url.PathEscape(id), smartOnepage)
	return c.Blob(ctx, http.MethodGet, path)
}

// GetHTML 获取服务端渲染的 HTML 内容。
func (c *Client) GetHTML(ctx context.Context, id string, smartOnepage bool) (string, error) {
	path := fmt.Sprintf("/api/resumes/%s/html?smart_onepage=%t", url.PathEscape(id), smartOnepage)
	data, err := c.Blob(ctx, http.MethodGet, path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// PreviewHTML 获取预览页内容。
func (c *Client) PreviewHTML(ctx context.Context, id string) (string, error) {
	data, err := c.Blob(ctx, http.MethodGet, "/api/resumes/"+url.PathEscape(id)+"/preview")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
