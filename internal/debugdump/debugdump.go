// Package debugdump writes best-effort debugging artifacts (screenshots, page
// html, captured responses, http dumps) under a per-source directory.
package debugdump

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"milesfare-backend/internal/browser"
	"milesfare-backend/internal/components/telemetry"
)

const report_dump_write = "dump.write"

// Dir is disabled when its root is empty, every write is then a no-op.
type Dir struct {
	root string
	tel  telemetry.API
}

func New(root string, tel telemetry.API) Dir {
	return Dir{root: root, tel: telemetry.NewScopedAPI("debugdump", tel)}
}

func (d Dir) Enabled() bool {
	return d.root != ""
}

func (d Dir) write(source, name string, contents []byte) {
	if !d.Enabled() {
		return
	}
	dir := filepath.Join(d.root, source)
	err := os.MkdirAll(dir, 0777)
	if err != nil {
		d.tel.ReportWarning(report_dump_write, source, name, err)
		return
	}
	path := filepath.Join(dir, name)
	err = os.WriteFile(path, contents, 0600)
	if err != nil {
		d.tel.ReportWarning(report_dump_write, source, name, err)
		return
	}
	d.tel.ReportDebug("wrote debug artifact", path)
}

// Page saves a full screenshot and the html of page as <checkpoint>.png and
// <checkpoint>.html.
func (d Dir) Page(ctx context.Context, source, checkpoint string, page browser.Page) {
	if !d.Enabled() || page == nil {
		return
	}
	png, err := page.Screenshot(ctx)
	if err != nil {
		d.tel.ReportWarning(report_dump_write, source, checkpoint, "screenshot", err)
	} else {
		d.write(source, checkpoint+".png", png)
	}
	html, err := page.HTML(ctx)
	if err != nil {
		d.tel.ReportWarning(report_dump_write, source, checkpoint, "html", err)
		return
	}
	d.write(source, checkpoint+".html", []byte(html))
}

func (d Dir) JSON(source, checkpoint string, value any) {
	if !d.Enabled() {
		return
	}
	buf, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		d.tel.ReportWarning(report_dump_write, source, checkpoint, err)
		return
	}
	d.write(source, checkpoint+".json", buf)
}

// Messages returns a telemetry.MessageOutput that stores http dumps under
// <source>/http, or nil when the dir is disabled.
func (d Dir) Messages(source string) telemetry.MessageOutput {
	if !d.Enabled() {
		return nil
	}
	return messages{dir: d, source: filepath.Join(source, "http")}
}

type messages struct {
	dir    Dir
	source string
}

func (m messages) Write(id string, contents string) {
	m.dir.write(m.source, id, []byte(contents))
}
