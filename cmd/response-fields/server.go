package main

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	responsefields "github.com/always-cache/response-fields"
	"github.com/always-cache/response-fields/pkg/metrics"
	"github.com/always-cache/response-fields/settings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// server is the demo content host.
type server struct {
	content     *content
	loader      *settings.Loader
	fields      *responsefields.ResponseFields
	metrics     *metrics.Recorder
	adminTokens map[string]bool
	log         zerolog.Logger
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(hlog.NewHandler(s.log))
	r.Use(hlog.RequestIDHandler("req_id", "Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request")
	}))

	r.Group(func(r chi.Router) {
		r.Use(s.fields.Middleware)
		r.Get("/", s.home)
		r.Get("/posts/{id}", s.single)
		r.Get("/type/{type}", s.archive)
		r.Get("/search", s.search)
		r.Get("/feed", s.feed)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireAdmin)
		r.Get("/settings", s.getSettings)
		r.Put("/settings", s.putSettings)
	})

	r.Handle("/metrics", s.metrics.Handler())
	return r
}

func (s *server) home(w http.ResponseWriter, r *http.Request) {
	page := pageNumber(r)
	posts := s.content.ofType("post", page)
	responsefields.Describe(r.Context(), responsefields.Request{
		Kind:          responsefields.KindHome,
		Resource:      first(posts),
		Query:         responsefields.QueryVars{"paged": page},
		Authenticated: s.authenticated(r),
	})
	writeList(w, "Latest posts", posts)
}

func (s *server) single(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	post, ok := s.content.get(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	locked := post.Password != "" && !passwordSupplied(r, post.Password)
	responsefields.Describe(r.Context(), responsefields.Request{
		Kind:             responsefields.KindSingular,
		Resource:         post.resource(),
		Query:            responsefields.QueryVars{"p": post.ID},
		Authenticated:    s.authenticated(r),
		PasswordRequired: locked,
	})
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if locked {
		fmt.Fprintf(w, "%s\n\nThis content is password protected.\n", post.Title)
		return
	}
	fmt.Fprintf(w, "%s\n\n%s\n\n%d comments\n", post.Title, post.Body, post.approvedComments())
}

func (s *server) archive(w http.ResponseWriter, r *http.Request) {
	postType := chi.URLParam(r, "type")
	page := pageNumber(r)
	posts := s.content.ofType(postType, page)
	responsefields.Describe(r.Context(), responsefields.Request{
		Kind:          responsefields.KindArchive,
		Resource:      first(posts),
		Query:         responsefields.QueryVars{"post_type": postType, "paged": page},
		Authenticated: s.authenticated(r),
	})
	writeList(w, "Archive: "+postType, posts)
}

func (s *server) search(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("s")
	page := pageNumber(r)
	posts := s.content.search(term, page)
	responsefields.Describe(r.Context(), responsefields.Request{
		Kind:          responsefields.KindSearch,
		Resource:      first(posts),
		Query:         responsefields.QueryVars{"s": term, "paged": page},
		Authenticated: s.authenticated(r),
	})
	writeList(w, "Search: "+term, posts)
}

func (s *server) feed(w http.ResponseWriter, r *http.Request) {
	posts := s.content.ofType("post", 1)
	responsefields.Describe(r.Context(), responsefields.Request{
		Kind:          responsefields.KindFeed,
		Authenticated: s.authenticated(r),
	})
	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	fmt.Fprint(w, "<rss version=\"2.0\"><channel>")
	for _, p := range posts {
		fmt.Fprintf(w, "<item><guid>%s</guid><title>%s</title></item>", xmlEscape(p.GUID), xmlEscape(p.Title))
	}
	fmt.Fprint(w, "</channel></rss>")
}

func (s *server) getSettings(w http.ResponseWriter, r *http.Request) {
	current, err := s.loader.Load(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("Could not load settings")
		http.Error(w, "could not load settings", http.StatusInternalServerError)
		return
	}
	writeJSON(w, current.Map())
}

// putSettings applies a submitted settings form. The body is either a JSON
// object or an urlencoded form with the same keys.
func (s *server) putSettings(w http.ResponseWriter, r *http.Request) {
	submitted, err := decodeSubmission(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	updated, err := s.loader.Update(r.Context(), submitted)
	if err != nil {
		s.log.Error().Err(err).Msg("Could not update settings")
		http.Error(w, "could not update settings", http.StatusInternalServerError)
		return
	}
	writeJSON(w, updated.Map())
}

func (s *server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.admin(r) {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) admin(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && s.adminTokens[strings.TrimSpace(token)]
}

// authenticated reports whether the request comes from a logged-in session.
func (s *server) authenticated(r *http.Request) bool {
	if s.admin(r) {
		return true
	}
	c, err := r.Cookie("logged_in")
	return err == nil && c.Value != ""
}

func passwordSupplied(r *http.Request, password string) bool {
	if r.URL.Query().Get("password") == password {
		return true
	}
	c, err := r.Cookie("post_password")
	return err == nil && c.Value == password
}

func decodeSubmission(r *http.Request) (map[string]any, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		submitted := make(map[string]any, len(r.PostForm))
		for k := range r.PostForm {
			submitted[k] = r.PostForm.Get(k)
		}
		return submitted, nil
	}
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var submitted map[string]any
	if err := dec.Decode(&submitted); err != nil {
		return nil, fmt.Errorf("invalid settings body: %w", err)
	}
	return submitted, nil
}

func pageNumber(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func writeList(w http.ResponseWriter, title string, posts []*Post) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "%s\n\n", title)
	for _, p := range posts {
		fmt.Fprintf(w, "- %s (/posts/%d)\n", p.Title, p.ID)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

var xmlReplacer = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&apos;")

func xmlEscape(s string) string {
	return xmlReplacer.Replace(s)
}
