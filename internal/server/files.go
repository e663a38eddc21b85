package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"
)

// fileEntry extends a directory listing entry with download URLs. The direct
// URL embeds an HMAC credential so it works without the bearer token, e.g.
// from a browser link.
type fileEntry struct {
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	Modified    time.Time `json:"modified"`
	DownloadURL string    `json:"download_url"`
	DirectURL   string    `json:"direct_url,omitempty"`
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	cs, err := s.loadOwnedCase(r)
	if err != nil {
		s.respondForError(w, err)
		return
	}
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = "uploads"
	}
	files, err := s.layout.ListFiles(cs.ID, kind)
	if err != nil {
		s.respondForError(w, err)
		return
	}

	entries := make([]fileEntry, 0, len(files))
	for _, f := range files {
		entry := fileEntry{
			Name:     f.Name,
			Path:     f.RelPath,
			Size:     f.Size,
			Modified: f.Modified,
			DownloadURL: "/api/v1/cases/" + cs.ID + "/files/download?path=" +
				url.QueryEscape(f.RelPath),
		}
		if s.config.Download.Secret != "" {
			entry.DirectURL = s.signedURL(cs.ID, f.RelPath)
		}
		entries = append(entries, entry)
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"kind": kind, "files": entries})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	cs, err := s.loadOwnedCase(r)
	if err != nil {
		s.respondForError(w, err)
		return
	}
	relPath := r.URL.Query().Get("path")
	if relPath == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	full, err := s.layout.ResolveWithinCase(cs.ID, relPath)
	if err != nil {
		s.respondForError(w, err)
		return
	}
	if _, err := os.Stat(full); err != nil {
		s.respondError(w, http.StatusNotFound, "file not found")
		return
	}
	http.ServeFile(w, r, full)
}

// handleDirectDownload serves a file referenced by a signed link. The
// signature binds case, path, and expiry; an expired or tampered link fails.
func (s *Server) handleDirectDownload(w http.ResponseWriter, r *http.Request) {
	if s.config.Download.Secret == "" {
		s.respondError(w, http.StatusNotImplemented, "direct downloads are not configured")
		return
	}
	q := r.URL.Query()
	caseID := q.Get("case")
	relPath := q.Get("path")
	expStr := q.Get("exp")
	sig := q.Get("sig")
	if caseID == "" || relPath == "" || expStr == "" || sig == "" {
		s.respondError(w, http.StatusBadRequest, "case, path, exp and sig are required")
		return
	}
	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil || time.Now().Unix() > exp {
		s.respondError(w, http.StatusForbidden, "link has expired")
		return
	}
	if !hmac.Equal([]byte(sig), []byte(s.sign(caseID, relPath, exp))) {
		s.respondError(w, http.StatusForbidden, "invalid signature")
		return
	}
	full, err := s.layout.ResolveWithinCase(caseID, relPath)
	if err != nil {
		s.respondForError(w, err)
		return
	}
	if _, err := os.Stat(full); err != nil {
		s.respondError(w, http.StatusNotFound, "file not found")
		return
	}
	http.ServeFile(w, r, full)
}

// sign computes the HMAC-SHA256 credential over case, path, and expiry.
func (s *Server) sign(caseID, relPath string, exp int64) string {
	mac := hmac.New(sha256.New, []byte(s.config.Download.Secret))
	mac.Write([]byte(caseID + "|" + relPath + "|" + strconv.FormatInt(exp, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// signedURL builds a time-limited direct-download link for a case file.
func (s *Server) signedURL(caseID, relPath string) string {
	exp := time.Now().Add(time.Duration(s.config.Download.LinkTTLSeconds) * time.Second).Unix()
	v := url.Values{}
	v.Set("case", caseID)
	v.Set("path", relPath)
	v.Set("exp", strconv.FormatInt(exp, 10))
	v.Set("sig", s.sign(caseID, relPath, exp))
	return "/files/direct?" + v.Encode()
}
