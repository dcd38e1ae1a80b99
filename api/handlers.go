package api

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fyshare/fyshare/internal/audit"
	"github.com/fyshare/fyshare/web"
)

// streamBufferSize is the copy buffer used for file downloads.
const streamBufferSize = 32 << 10

// Browse handles GET on the shared tree: the login page for anonymous
// clients, a listing for directories and a download for files.
func (a *API) Browse(w http.ResponseWriter, r *http.Request) {
	now := a.now()
	addr := a.clientAddr(r)
	if _, ok := a.authenticate(r, addr, now); !ok {
		a.renderLogin(w, cleanTarget(r.URL.Path), "")
		return
	}

	abs, err := a.root.Resolve(r.URL.Path)
	if err != nil {
		a.rejectPath(w, r, addr, err)
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		a.rejectPath(w, r, addr, err)
		return
	}

	if info.IsDir() {
		if !strings.HasSuffix(r.URL.Path, "/") {
			http.Redirect(w, r, cleanTarget(r.URL.Path)+"/", http.StatusMovedPermanently)
			return
		}
		a.serveListing(w, r, addr, abs)
		return
	}

	f, err := os.Open(abs)
	if err != nil {
		a.rejectPath(w, r, addr, err)
		return
	}
	defer f.Close()
	streamFile(w, f, info.Name(), info.Size())
}

func (a *API) serveListing(w http.ResponseWriter, r *http.Request, addr, dir string) {
	entries, err := a.root.List(dir)
	if err != nil {
		a.rejectPath(w, r, addr, err)
		return
	}
	body, err := a.renderer.Listing(web.ListingData{
		Path:    a.root.Rel(dir),
		Entries: entries,
	})
	if err != nil {
		writeInternalError(w, a.logger, "rendering directory listing", err)
		return
	}
	writeHTML(w, http.StatusOK, body)
}

// rejectPath answers 404 for missing paths and 403 for every other
// rejection.
func (a *API) rejectPath(w http.ResponseWriter, r *http.Request, addr string, err error) {
	if errors.Is(err, fs.ErrNotExist) {
		writeHTML(w, http.StatusNotFound, []byte(notFoundHTML))
		return
	}
	a.audit.Warn(r.Context(), audit.PathRejected, addr,
		slog.String("path", r.URL.Path), slog.String("reason", err.Error()))
	writeHTML(w, http.StatusForbidden, []byte(deniedHTML))
}

// Asset handles /static/* and /favicon.ico. Assets are public and
// cacheable.
func (a *API) Asset(w http.ResponseWriter, r *http.Request) {
	name := "favicon.ico"
	if r.URL.Path != "/favicon.ico" {
		name = strings.TrimPrefix(r.URL.Path, "/static/")
	}

	f, info, err := a.openAsset(name)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			a.logger.Debug("asset rejected", "name", name, "error", err)
		}
		writeHTML(w, http.StatusNotFound, []byte(notFoundHTML))
		return
	}
	defer f.Close()

	setCacheable(w, a.policy.AssetCacheDuration)
	streamFile(w, f, info.Name(), info.Size())
}

// openAsset opens a regular file from the configured asset directory, or
// from the embedded assets when none is configured.
func (a *API) openAsset(name string) (fs.File, fs.FileInfo, error) {
	var (
		f   fs.File
		err error
	)
	if a.assetRoot != nil {
		var abs string
		abs, err = a.assetRoot.Resolve("/" + name)
		if err != nil {
			return nil, nil, err
		}
		f, err = os.Open(abs)
	} else {
		if !fs.ValidPath(name) {
			return nil, nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
		}
		f, err = a.assets.Open(name)
	}
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return f, info, nil
}

// streamFile writes headers and copies src to the client. Copy errors mean
// the client went away and are ignored.
func streamFile(w http.ResponseWriter, src io.Reader, name string, size int64) {
	w.Header().Set("Content-Type", contentType(name))
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.WriteHeader(http.StatusOK)
	buf := make([]byte, streamBufferSize)
	_, _ = io.CopyBuffer(w, src, buf)
}

func contentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".ico" {
		return "image/x-icon"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
