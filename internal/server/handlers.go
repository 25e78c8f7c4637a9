package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/reeldeck/reeldeck/pkg/catalog"
	"github.com/reeldeck/reeldeck/pkg/identity"
	"github.com/reeldeck/reeldeck/pkg/userdata"
)

// errorResponse is the JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// activeStore resolves the active store, or reports 503 while the session
// is still deciding between guest and authenticated.
func (s *Server) activeStore(w http.ResponseWriter) *userdata.Store {
	store := s.coord.ActiveStore()
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "session initializing")
	}
	return store
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// sessionResponse describes the current session to clients.
type sessionResponse struct {
	Mode       string              `json:"mode"`
	Loading    bool                `json:"loading"`
	IdentityID string              `json:"identityId,omitempty"`
	SyncStatus userdata.SyncStatus `json:"syncStatus,omitempty"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionResponse{
		Mode:       s.coord.Mode().String(),
		Loading:    s.sel.Loading(),
		IdentityID: s.coord.ActiveIdentityID(),
		SyncStatus: s.sel.SyncStatus(),
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	ident, err := s.provider.SignIn(r.Context(), identity.Credentials{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		s.logger.Warn("sign-in failed", "email", req.Email, "error", err)
		writeError(w, http.StatusUnauthorized, identity.Classify(err))
		return
	}

	s.coord.SignedIn(ident)
	writeJSON(w, http.StatusOK, ident)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.provider.SignOut(r.Context()); err != nil {
		// Local sign-out proceeds even if the provider call fails.
		s.logger.Warn("provider sign-out failed", "error", err)
	}
	s.coord.SignedOut()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	rec := s.sel.Snapshot()
	if rec == nil {
		writeError(w, http.StatusServiceUnavailable, "session initializing")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleClearData(w http.ResponseWriter, r *http.Request) {
	store := s.activeStore(w)
	if store == nil {
		return
	}
	store.ClearAllData(r.Context())
	writeJSON(w, http.StatusOK, store.Snapshot())
}

// respondSnapshot returns the store's state after a mutation.
func respondSnapshot(w http.ResponseWriter, store *userdata.Store) {
	writeJSON(w, http.StatusOK, store.Snapshot())
}

func (s *Server) handleAddWatchlist(w http.ResponseWriter, r *http.Request) {
	store := s.activeStore(w)
	if store == nil {
		return
	}
	var ref userdata.ContentRef
	if !decodeBody(w, r, &ref) {
		return
	}
	if ref.ID == "" {
		writeError(w, http.StatusBadRequest, "content id is required")
		return
	}
	store.AddToWatchlist(r.Context(), ref)
	respondSnapshot(w, store)
}

func (s *Server) handleRemoveWatchlist(w http.ResponseWriter, r *http.Request) {
	store := s.activeStore(w)
	if store == nil {
		return
	}
	store.RemoveFromWatchlist(r.Context(), chi.URLParam(r, "contentID"))
	respondSnapshot(w, store)
}

func (s *Server) handleAddLiked(w http.ResponseWriter, r *http.Request) {
	store := s.activeStore(w)
	if store == nil {
		return
	}
	var ref userdata.ContentRef
	if !decodeBody(w, r, &ref) {
		return
	}
	if ref.ID == "" {
		writeError(w, http.StatusBadRequest, "content id is required")
		return
	}
	store.AddLiked(r.Context(), ref)
	respondSnapshot(w, store)
}

func (s *Server) handleRemoveLiked(w http.ResponseWriter, r *http.Request) {
	store := s.activeStore(w)
	if store == nil {
		return
	}
	store.RemoveLiked(r.Context(), chi.URLParam(r, "contentID"))
	respondSnapshot(w, store)
}

func (s *Server) handleAddHidden(w http.ResponseWriter, r *http.Request) {
	store := s.activeStore(w)
	if store == nil {
		return
	}
	var ref userdata.ContentRef
	if !decodeBody(w, r, &ref) {
		return
	}
	if ref.ID == "" {
		writeError(w, http.StatusBadRequest, "content id is required")
		return
	}
	store.AddHidden(r.Context(), ref)
	respondSnapshot(w, store)
}

func (s *Server) handleRemoveHidden(w http.ResponseWriter, r *http.Request) {
	store := s.activeStore(w)
	if store == nil {
		return
	}
	store.RemoveHidden(r.Context(), chi.URLParam(r, "contentID"))
	respondSnapshot(w, store)
}

type createListRequest struct {
	Name  string `json:"name"`
	Emoji string `json:"emoji"`
	Color string `json:"color"`
}

func (s *Server) handleCreateList(w http.ResponseWriter, r *http.Request) {
	store := s.activeStore(w)
	if store == nil {
		return
	}
	var req createListRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "list name is required")
		return
	}
	id := store.CreateList(r.Context(), req.Name, req.Emoji, req.Color)
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleUpdateList(w http.ResponseWriter, r *http.Request) {
	store := s.activeStore(w)
	if store == nil {
		return
	}
	var patch userdata.ListPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	store.UpdateList(r.Context(), chi.URLParam(r, "listID"), patch)
	respondSnapshot(w, store)
}

func (s *Server) handleDeleteList(w http.ResponseWriter, r *http.Request) {
	store := s.activeStore(w)
	if store == nil {
		return
	}
	store.DeleteList(r.Context(), chi.URLParam(r, "listID"))
	respondSnapshot(w, store)
}

func (s *Server) handleAddToList(w http.ResponseWriter, r *http.Request) {
	store := s.activeStore(w)
	if store == nil {
		return
	}
	var ref userdata.ContentRef
	if !decodeBody(w, r, &ref) {
		return
	}
	if ref.ID == "" {
		writeError(w, http.StatusBadRequest, "content id is required")
		return
	}
	store.AddToList(r.Context(), chi.URLParam(r, "listID"), ref)
	respondSnapshot(w, store)
}

func (s *Server) handleRemoveFromList(w http.ResponseWriter, r *http.Request) {
	store := s.activeStore(w)
	if store == nil {
		return
	}
	store.RemoveFromList(r.Context(),
		chi.URLParam(r, "listID"),
		chi.URLParam(r, "contentID"))
	respondSnapshot(w, store)
}

func (s *Server) handlePreferences(w http.ResponseWriter, r *http.Request) {
	store := s.activeStore(w)
	if store == nil {
		return
	}
	var patch userdata.PreferencesPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	store.UpdatePreferences(r.Context(), patch)
	respondSnapshot(w, store)
}

// mediaTypeParam parses the {type} route parameter.
func mediaTypeParam(r *http.Request) (catalog.MediaType, bool) {
	switch chi.URLParam(r, "type") {
	case "movie":
		return catalog.MediaMovie, true
	case "tv":
		return catalog.MediaSeries, true
	default:
		return "", false
	}
}

func (s *Server) handleCatalogSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}
	mediaType := catalog.MediaMovie
	if r.URL.Query().Get("type") == "tv" {
		mediaType = catalog.MediaSeries
	}

	titles, err := s.catalog.Search(r.Context(), query, mediaType)
	if err != nil {
		s.logger.Warn("catalog search failed", "query", query, "error", err)
		writeError(w, http.StatusBadGateway, "catalog unavailable")
		return
	}
	writeJSON(w, http.StatusOK, titles)
}

func (s *Server) handleCatalogTrending(w http.ResponseWriter, r *http.Request) {
	mediaType, ok := mediaTypeParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "type must be movie or tv")
		return
	}

	titles, err := s.catalog.Trending(r.Context(), mediaType)
	if err != nil {
		s.logger.Warn("catalog trending failed", "error", err)
		writeError(w, http.StatusBadGateway, "catalog unavailable")
		return
	}
	writeJSON(w, http.StatusOK, titles)
}

func (s *Server) handleCatalogDetails(w http.ResponseWriter, r *http.Request) {
	mediaType, ok := mediaTypeParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "type must be movie or tv")
		return
	}

	title, err := s.catalog.Details(r.Context(), mediaType, chi.URLParam(r, "id"))
	if err != nil {
		var statusErr catalog.StatusError
		if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
			writeError(w, http.StatusNotFound, "title not found")
			return
		}
		s.logger.Warn("catalog details failed", "error", err)
		writeError(w, http.StatusBadGateway, "catalog unavailable")
		return
	}
	writeJSON(w, http.StatusOK, title)
}
