// Package web renders the login and directory listing pages and carries the
// embedded static assets.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/fyshare/fyshare/storage"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Assets returns the embedded static assets, rooted so that "style.css" and
// "favicon.ico" resolve directly.
func Assets() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(fmt.Sprintf("web: embedded static assets: %v", err))
	}
	return sub
}

// LoginData is the input of the login page.
type LoginData struct {
	// Action is the form target; the login redirects back to it.
	Action    string
	Message   string
	Durations []time.Duration
}

// DurationOption is one entry of the session length selector.
type DurationOption struct {
	Seconds int
	Label   string
}

// ListingData is the input of a directory listing.
type ListingData struct {
	// Path is the slash separated directory path relative to the shared
	// root; "." is the root itself.
	Path    string
	Entries []storage.Entry
}

// Crumb is one link of the breadcrumb trail.
type Crumb struct {
	Name string
	Href string
}

// Row is one rendered listing entry.
type Row struct {
	Name     string
	Href     string
	Icon     string
	Size     string
	Modified string
	IsDir    bool
}

// modifiedLayout formats listing modification times in server local time.
const modifiedLayout = "2006-01-02 15:04"

// Renderer executes the embedded HTML templates. It is safe for concurrent use.
type Renderer struct {
	login   *template.Template
	listing *template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	login, err := template.ParseFS(templateFS, "templates/login.html")
	if err != nil {
		return nil, fmt.Errorf("parsing login template: %w", err)
	}
	listing, err := template.ParseFS(templateFS, "templates/listing.html")
	if err != nil {
		return nil, fmt.Errorf("parsing listing template: %w", err)
	}
	return &Renderer{login: login, listing: listing}, nil
}

// Login renders the login page. The output is complete before anything is
// written to the client, so a failure can still become a 500.
func (r *Renderer) Login(data LoginData) ([]byte, error) {
	opts := make([]DurationOption, 0, len(data.Durations))
	for _, d := range data.Durations {
		opts = append(opts, DurationOption{Seconds: int(d / time.Second), Label: DurationLabel(d)})
	}
	action := data.Action
	if action == "" {
		action = "/"
	}
	return execute(r.login, map[string]any{
		"Action":    action,
		"Message":   data.Message,
		"Durations": opts,
	})
}

// Listing renders a directory listing.
func (r *Renderer) Listing(data ListingData) ([]byte, error) {
	rows := make([]Row, 0, len(data.Entries))
	for _, e := range data.Entries {
		row := Row{
			Name:     e.Name,
			Icon:     Icon(e),
			Size:     "-",
			Modified: "-",
			IsDir:    e.IsDir(),
			Href:     "./" + url.PathEscape(e.Name),
		}
		if !e.ModTime.IsZero() {
			row.Modified = e.ModTime.Local().Format(modifiedLayout)
		}
		if e.IsDir() {
			row.Href += "/"
		} else {
			row.Size = humanize.IBytes(uint64(max(e.Size, 0)))
		}
		rows = append(rows, row)
	}
	dir := cleanDisplayPath(data.Path)
	title := "/"
	if dir != "" {
		title = "/" + dir
	}
	return execute(r.listing, map[string]any{
		"Title":       title,
		"Breadcrumbs": Breadcrumbs(data.Path),
		"HasParent":   dir != "",
		"Rows":        rows,
	})
}

func execute(t *template.Template, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", t.Name(), err)
	}
	return buf.Bytes(), nil
}

func cleanDisplayPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p)
	return strings.TrimPrefix(p, "/")
}

// Breadcrumbs returns the trail from the shared root to dir. The first
// crumb always links to "/".
func Breadcrumbs(dir string) []Crumb {
	crumbs := []Crumb{{Name: "🏠 Home", Href: "/"}}
	clean := cleanDisplayPath(dir)
	if clean == "" {
		return crumbs
	}
	href := ""
	for _, part := range strings.Split(clean, "/") {
		href += "/" + url.PathEscape(part)
		crumbs = append(crumbs, Crumb{Name: part, Href: href + "/"})
	}
	return crumbs
}

// DurationLabel formats a session length for the login selector.
func DurationLabel(d time.Duration) string {
	if d >= time.Hour && d%time.Hour == 0 {
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	m := int(d / time.Minute)
	if m == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", m)
}

var fileIcons = map[string]string{
	".pdf": "📕",
	".doc": "📄", ".docx": "📄",
	".xls": "📊", ".xlsx": "📊",
	".ppt": "📑", ".pptx": "📑",
	".txt": "📝", ".csv": "📋",
	".jpg": "🖼️", ".jpeg": "🖼️", ".png": "🖼️",
	".gif": "🖼️", ".bmp": "🖼️", ".svg": "🖼️",
	".mp3": "🎵", ".wav": "🎵", ".ogg": "🎵",
	".mp4": "🎬", ".avi": "🎬", ".mkv": "🎬",
	".zip": "📦", ".rar": "📦", ".7z": "📦",
	".apk": "📱",
	".exe": "⚙️",
	".go":  "🐹", ".py": "🐍",
	".html": "🌐", ".js": "📜", ".json": "📜",
}

const (
	dirIcon         = "📁"
	defaultFileIcon = "📄"
)

// Icon picks a display icon from the entry kind and file extension.
func Icon(e storage.Entry) string {
	if e.IsDir() {
		return dirIcon
	}
	if icon, ok := fileIcons[strings.ToLower(filepath.Ext(e.Name))]; ok {
		return icon
	}
	return defaultFileIcon
}
