package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/moxuanyu/resumepilot/internal/model/resume"
	"github.com/moxuanyu/resumepilot/internal/service/editor"
)

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "管理简历",
}

var resumeListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出全部简历",
	Args:  cobra.NoArgs,
	RunE:  runResumeList,
}

var resumeNewCmd = &cobra.Command{
	Use:   "new",
	Short: "创建新简历",
	Args:  cobra.NoArgs,
	RunE:  runResumeNew,
}

var resumeShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "输出简历 Markdown 内容",
	Args:  cobra.ExactArgs(1),
	RunE:  runResumeShow,
}

var resumeEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "用本地编辑器编辑简历，编辑期间自动保存",
	Args:  cobra.ExactArgs(1),
	RunE:  runResumeEdit,
}

var resumeDeleteCmd = &cobra.Command{
	Use:   "delete <id> [id...]",
	Short: "删除一份或多份简历",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runResumeDelete,
}

var resumeExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "导出简历为 PDF",
	Args:  cobra.ExactArgs(1),
	RunE:  runResumeExport,
}

var (
	newTitle     string
	newFile      string
	editTitle    string
	exportOut    string
	smartOnepage bool
)

func init() {
	resumeNewCmd.Flags().StringVar(&newTitle, "title", "", "简历标题")
	resumeNewCmd.Flags().StringVar(&newFile, "file", "", "从 Markdown 文件读取内容")
	resumeEditCmd.Flags().StringVar(&editTitle, "title", "", "重命名简历")
	resumeExportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "输出文件 (默认 <标题>.pdf)")
	resumeExportCmd.Flags().BoolVar(&smartOnepage, "smart-onepage", false, "启用智能一页排版")

	resumeCmd.AddCommand(resumeListCmd, resumeNewCmd, resumeShowCmd, resumeEditCmd, resumeDeleteCmd, resumeExportCmd)
	rootCmd.AddCommand(resumeCmd)
}

func runResumeList(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	if err := a.requireLogin(); err != nil {
		return err
	}

	resumes, err := a.api.ListResumes(cmd.Context())
	if err != nil {
		return err
	}
	if len(resumes) == 0 {
		fmt.Println("还没有简历，使用 resumepilot chat 生成一份，或 resume new 手动创建。")
		return nil
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("共 %d 份简历", len(resumes))))
	for _, item := range resumes {
		fmt.Printf("%s  %s  %s\n",
			idStyle.Render(item.ID),
			titleStyle.Render(item.Title),
			dateStyle.Render(item.UpdatedAt.Local().Format("2006-01-02 15:04")),
		)
	}
	return nil
}

func runResumeNew(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	if err := a.requireLogin(); err != nil {
		return err
	}

	draft := resume.Draft{Title: newTitle}
	if newFile != "" {
		content, err := os.ReadFile(newFile)
		if err != nil {
			return fmt.Errorf("读取 %s 失败: %w", newFile, err)
		}
		draft.RawMarkdown = string(content)
	}

	record, err := a.api.CreateResume(cmd.Context(), draft)
	if err != nil {
		return err
	}
	fmt.Println(successStyle.Render("已创建: ") + record.ID)
	return nil
}

func runResumeShow(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	if err := a.requireLogin(); err != nil {
		return err
	}

	record, err := a.api.GetResume(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Println(titleStyle.Render(record.Title))
	fmt.Println()
	fmt.Println(record.RawMarkdown)
	return nil
}

// runResumeEdit 把简历内容写入临时文件交给 $EDITOR，编辑器运行期间
// 轮询文件变化并防抖自动保存，退出后再做一次最终保存。
func runResumeEdit(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	if err := a.requireLogin(); err != nil {
		return err
	}

	record, err := a.api.GetResume(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	title := record.Title
	if editTitle != "" {
		title = editTitle
	}

	tmpPath := filepath.Join(os.TempDir(), fmt.Sprintf("resumepilot-%s.md", record.ID))
	if err := os.WriteFile(tmpPath, []byte(record.RawMarkdown), 0o600); err != nil {
		return err
	}
	defer os.Remove(tmpPath)

	saver := editor.NewAutosaver(record, a.autosaveDelay(), func(ctx context.Context, draft resume.Draft) error {
		_, err := a.api.UpdateResume(ctx, record.ID, draft)
		return err
	})
	defer saver.Stop()

	done := make(chan struct{})
	go watchEdits(tmpPath, title, saver, done)

	if err := runEditor(cmd, tmpPath); err != nil {
		close(done)
		return err
	}
	close(done)

	content, err := os.ReadFile(tmpPath)
	if err != nil {
		return err
	}
	saver.Edit(title, string(content))
	if err := saver.Flush(cmd.Context()); err != nil {
		return fmt.Errorf("保存失败，本地副本保留在 %s: %w", tmpPath, err)
	}
	if saver.Dirty() {
		fmt.Println(noticeStyle.Render("警告: 仍有未保存的修改"))
	}

	fmt.Println(successStyle.Render("已保存: ") + title)
	return nil
}

// watchEdits 每 500ms 检查一次临时文件，变化即交给自动保存器。
func watchEdits(path, title string, saver *editor.Autosaver, done <-chan struct{}) {
	var lastMod time.Time
	if info, err := os.Stat(path); err == nil {
		lastMod = info.ModTime()
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil || !info.ModTime().After(lastMod) {
				continue
			}
			lastMod = info.ModTime()
			content, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			saver.Edit(title, string(content))
		}
	}
}

func runEditor(cmd *cobra.Command, path string) error {
	editorBin := os.Getenv("EDITOR")
	if editorBin == "" {
		editorBin = "vi"
	}

	proc := exec.CommandContext(cmd.Context(), editorBin, path)
	proc.Stdin = os.Stdin
	proc.Stdout = os.Stdout
	proc.Stderr = os.Stderr
	if err := proc.Run(); err != nil {
		return fmt.Errorf("编辑器退出异常: %w", err)
	}
	return nil
}

func runResumeDelete(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	if err := a.requireLogin(); err != nil {
		return err
	}

	if err := a.api.DeleteResumes(cmd.Context(), args); err != nil {
		return err
	}
	fmt.Println(successStyle.Render(fmt.Sprintf("已删除 %d 份简历", len(args))))
	return nil
}

func runResumeExport(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	if err := a.requireLogin(); err != nil {
		return err
	}

	record, err := a.api.GetResume(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	data, err := a.api.ExportPDF(cmd.Context(), args[0], smartOnepage)
	if err != nil {
		return err
	}

	out := exportOut
	if out == "" {
		out = record.Title + ".pdf"
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return err
	}
	fmt.Println(successStyle.Render("已导出: ") + out)
	return nil
}
