// Package registrytest provides an in-memory GitHub-compatible release store
// served over httptest for package and integration tests.
package registrytest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/oshokin/archpack/internal/domain/artifact"
)

// Server is a fake release store.
type Server struct {
	*httptest.Server

	// Owner and Repo name the only repository served.
	Owner, Repo string
	// Token is required on write requests and reported with push permission.
	Token string

	mu       sync.Mutex
	canPush  bool
	nextID   int64
	releases []*artifact.Release
	blobs    map[int64][]byte
	// failUploads lists asset names whose upload returns 500.
	failUploads map[string]bool
	requests    map[string]int
}

// New starts a server and stops it when the test ends.
func New(t testing.TB, owner, repo, token string) *Server {
	t.Helper()

	s := &Server{
		Owner:       owner,
		Repo:        repo,
		Token:       token,
		canPush:     true,
		blobs:       make(map[int64][]byte),
		failUploads: make(map[string]bool),
		requests:    make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/{owner}/{repo}", s.handleRepo)
	mux.HandleFunc("GET /repos/{owner}/{repo}/releases", s.handleList)
	mux.HandleFunc("POST /repos/{owner}/{repo}/releases", s.handleCreate)
	mux.HandleFunc("GET /repos/{owner}/{repo}/releases/latest", s.handleLatest)
	mux.HandleFunc("GET /repos/{owner}/{repo}/releases/tags/{tag}", s.handleTag)
	mux.HandleFunc("DELETE /repos/{owner}/{repo}/releases/assets/{id}", s.handleDelete)
	mux.HandleFunc("POST /uploads/{id}", s.handleUpload)
	mux.HandleFunc("GET /download/{id}", s.handleDownload)

	s.Server = httptest.NewServer(s.count(mux))
	t.Cleanup(s.Close)

	return s
}

// Repository returns "owner/repo".
func (s *Server) Repository() string {
	return s.Owner + "/" + s.Repo
}

// SetPushAllowed controls the push permission reported for the token.
func (s *Server) SetPushAllowed(allowed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.canPush = allowed
}

// FailUpload makes uploads of the named asset fail with 500.
func (s *Server) FailUpload(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failUploads[name] = true
}

// AddRelease publishes a release with the given assets.
func (s *Server) AddRelease(tag string, assets map[string][]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	release := s.createLocked(tag)

	names := make([]string, 0, len(assets))
	for name := range assets {
		names = append(names, name)
	}

	slices.Sort(names)

	for _, name := range names {
		s.attachLocked(release, name, assets[name])
	}
}

// SetAsset replaces the content of an existing asset, keeping its metadata.
func (s *Server) SetAsset(tag, name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	release := s.findLocked(tag)
	if release == nil {
		return
	}

	for _, asset := range release.Assets {
		if asset.Name == name {
			s.blobs[asset.ID] = data
		}
	}
}

// Asset returns the stored content of a release asset.
func (s *Server) Asset(tag, name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	release := s.findLocked(tag)
	if release == nil {
		return nil, false
	}

	for _, asset := range release.Assets {
		if asset.Name == name {
			return s.blobs[asset.ID], true
		}
	}

	return nil, false
}

// AssetNames returns the asset names of a release in upload order.
func (s *Server) AssetNames(tag string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	release := s.findLocked(tag)
	if release == nil {
		return nil
	}

	names := make([]string, 0, len(release.Assets))
	for _, asset := range release.Assets {
		names = append(names, asset.Name)
	}

	return names
}

// Requests returns how many requests matched "METHOD /path".
func (s *Server) Requests(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.requests[method+" "+path]
}

// TotalRequests returns the number of requests served.
func (s *Server) TotalRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, n := range s.requests {
		total += n
	}

	return total
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests[r.Method+" "+r.URL.Path]++
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) authorized(r *http.Request) bool {
	return s.Token != "" && r.Header.Get("Authorization") == "Bearer "+s.Token
}

func (s *Server) handleRepo(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "Bad credentials")

		return
	}

	s.mu.Lock()
	push := s.canPush
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"full_name":   s.Repository(),
		"permissions": map[string]bool{"pull": true, "push": push},
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("per_page"))
	if err != nil || limit <= 0 {
		limit = 30
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]artifact.Release, 0, len(s.releases))
	for i := len(s.releases) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, *s.releases[i])
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "Bad credentials")

		return
	}

	var request struct {
		Tag string `json:"tag_name"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil || request.Tag == "" {
		writeError(w, http.StatusUnprocessableEntity, "Validation Failed")

		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findLocked(request.Tag) != nil {
		writeError(w, http.StatusUnprocessableEntity, "Validation Failed: tag_name already_exists")

		return
	}

	writeJSON(w, http.StatusCreated, s.createLocked(request.Tag))
}

func (s *Server) handleLatest(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.releases) == 0 {
		writeError(w, http.StatusNotFound, "Not Found")

		return
	}

	writeJSON(w, http.StatusOK, s.releases[len(s.releases)-1])
}

func (s *Server) handleTag(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	release := s.findLocked(r.PathValue("tag"))
	if release == nil {
		writeError(w, http.StatusNotFound, "Not Found")

		return
	}

	writeJSON(w, http.StatusOK, release)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "Bad credentials")

		return
	}

	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, release := range s.releases {
		for i, asset := range release.Assets {
			if asset.ID == id {
				release.Assets = slices.Delete(release.Assets, i, i+1)
				delete(s.blobs, id)
				w.WriteHeader(http.StatusNoContent)

				return
			}
		}
	}

	writeError(w, http.StatusNotFound, "Not Found")
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "Bad credentials")

		return
	}

	releaseID, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	name := r.URL.Query().Get("name")

	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())

		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failUploads[name] {
		writeError(w, http.StatusInternalServerError, "upload failed")

		return
	}

	for _, release := range s.releases {
		if release.ID != releaseID {
			continue
		}

		if _, exists := release.Asset(name); exists {
			writeError(w, http.StatusUnprocessableEntity, "Validation Failed: already_exists")

			return
		}

		writeJSON(w, http.StatusCreated, s.attachLocked(release, name, data))

		return
	}

	writeError(w, http.StatusNotFound, "Not Found")
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)

	s.mu.Lock()
	data, ok := s.blobs[id]
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "Not Found")

		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func (s *Server) createLocked(tag string) *artifact.Release {
	s.nextID++

	release := &artifact.Release{
		ID:          s.nextID,
		Tag:         tag,
		Name:        tag,
		PublishedAt: time.Now().UTC(),
		UploadURL:   fmt.Sprintf("%s/uploads/%d{?name,label}", s.URL, s.nextID),
		Assets:      []artifact.Asset{},
	}
	s.releases = append(s.releases, release)

	return release
}

func (s *Server) attachLocked(release *artifact.Release, name string, data []byte) artifact.Asset {
	s.nextID++

	asset := artifact.Asset{
		ID:          s.nextID,
		Name:        name,
		Size:        int64(len(data)),
		DownloadURL: fmt.Sprintf("%s/download/%d", s.URL, s.nextID),
		UpdatedAt:   time.Now().UTC(),
	}
	release.Assets = append(release.Assets, asset)
	s.blobs[asset.ID] = append([]byte(nil), data...)

	return asset
}

func (s *Server) findLocked(tag string) *artifact.Release {
	for _, release := range s.releases {
		if release.Tag == tag {
			return release
		}
	}

	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
