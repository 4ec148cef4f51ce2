package httpserver

import (
	"bytes"
	"embed"
	"html/template"
	"io"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/net/html"

	"readconfirm/internal/errs"
	"readconfirm/internal/usecase/confirmation"
)

const mediaTypeCSS = "text/css"

//go:embed templates/*.gohtml assets/*.css
var files embed.FS

type views struct {
	css      template.CSS
	markdown goldmark.Markdown

	item          *template.Template
	adminItem     *template.Template
	adminSettings *template.Template
}

type layoutData struct {
	Title string
	CSS   template.CSS
}

type itemData struct {
	layoutData
	Page      confirmation.ItemPage
	Body      template.HTML
	ActionURL string
}

type adminItemData struct {
	layoutData
	View  confirmation.ItemAdminView
	Saved bool
}

type adminSettingsData struct {
	layoutData
	View  confirmation.SettingsAdminView
	Saved bool
}

func newViews() (*views, error) {
	rawCSS, err := files.ReadFile("assets/widget.css")
	if err != nil {
		return nil, errs.Wrap(err, "read widget css")
	}
	m := minify.New()
	m.AddFunc(mediaTypeCSS, css.Minify)
	minified, err := m.Bytes(mediaTypeCSS, rawCSS)
	if err != nil {
		return nil, errs.Wrap(err, "minify widget css")
	}

	v := &views{
		css: template.CSS(minified),
		// Raw HTML in item bodies is escaped; goldmark's unsafe mode stays off.
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
	for name, target := range map[string]**template.Template{
		"item.gohtml":           &v.item,
		"admin_item.gohtml":     &v.adminItem,
		"admin_settings.gohtml": &v.adminSettings,
	} {
		tmpl, err := template.New("layout.gohtml").
			Funcs(template.FuncMap{"text": html.UnescapeString}).
			ParseFS(files, "templates/layout.gohtml", "templates/"+name)
		if err != nil {
			return nil, errs.Wrapf(err, "parse template %s", name)
		}
		*target = tmpl
	}
	return v, nil
}

func (v *views) layout(title string) layoutData {
	return layoutData{Title: title, CSS: v.css}
}

func (v *views) renderMarkdown(source string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := v.markdown.Convert([]byte(source), &buf); err != nil {
		return "", errs.Wrap(err, "render markdown")
	}
	return template.HTML(buf.String()), nil
}

func render(w io.Writer, tmpl *template.Template, data any) error {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return errs.Wrap(err, "execute template")
	}
	_, err := buf.WriteTo(w)
	return err
}
