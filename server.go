package main

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/postboard/internal/cache"
	"github.com/debemdeboas/postboard/internal/config"
	"github.com/debemdeboas/postboard/internal/metrics"
	"github.com/debemdeboas/postboard/internal/model"
	"github.com/debemdeboas/postboard/internal/ratelimit"
	"github.com/debemdeboas/postboard/internal/render"
	"github.com/debemdeboas/postboard/internal/repository"
	"github.com/debemdeboas/postboard/internal/routes"
	"github.com/debemdeboas/postboard/internal/sse"
	"github.com/debemdeboas/postboard/internal/theme"
	"github.com/debemdeboas/postboard/internal/util"
)

const likeLimiterTTL = 10 * time.Minute

type app struct {
	repo    repository.PostRepository
	clients *sse.SSEClients
	likes   *ratelimit.Limiter
	metrics *metrics.Metrics // nil when disabled

	pages  map[string]*template.Template
	static fs.FS

	log zerolog.Logger
}

func newApp(repo repository.PostRepository, m *metrics.Metrics, log zerolog.Logger) (*app, error) {
	pages := make(map[string]*template.Template)
	for _, name := range []string{
		config.TemplateIndex,
		config.TemplatePost,
		config.TemplateAdd,
		config.TemplateUpdate,
		config.TemplateNotFound,
		config.TemplateError,
	} {
		tmpl, err := template.ParseFS(content,
			config.TemplatesLocalDir+"/"+config.TemplateLayout,
			config.TemplatesLocalDir+"/"+name,
		)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = tmpl
	}

	static, err := fs.Sub(content, config.StaticLocalDir)
	if err != nil {
		return nil, err
	}
	if err := hashStatic(static); err != nil {
		return nil, err
	}

	likes := config.AppConfig.Features.Likes
	a := &app{
		repo:    repo,
		clients: sse.NewSSEClients(),
		likes:   ratelimit.New(likes.RatePerSecond, likes.Burst, likeLimiterTTL),
		metrics: m,
		pages:   pages,
		static:  static,
		log:     log,
	}

	repo.SetChangeNotifier(a.handleReloadPost)
	return a, nil
}

// hashStatic records a short content hash for every static file, served as its ETag.
func hashStatic(static fs.FS) error {
	err := fs.WalkDir(static, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := fs.ReadFile(static, path)
		if err != nil {
			return err
		}
		cache.SetStaticHash(config.StaticUrlPath+path, util.ShortHash(data))
		return nil
	})
	if err != nil {
		return fmt.Errorf("hashing static files: %w", err)
	}
	return nil
}

func (a *app) routes() http.Handler {
	mux := http.NewServeMux()

	a.handle(mux, routes.RobotsPath, a.serveRobots)
	a.handle(mux, routes.HealthPath, a.serveHealth)
	mux.Handle(routes.StaticPath, http.StripPrefix(config.StaticUrlPath, http.FileServer(http.FS(a.static))))

	a.handle(mux, routes.ThemeToggle, a.serveThemeToggle)
	a.handle(mux, routes.SyntaxThemeSet, a.serveSyntaxThemeSet)
	a.handle(mux, routes.SyntaxThemeGet, a.serveSyntaxThemeGet)
	if config.AppConfig.Features.LiveReload.Enabled {
		a.handle(mux, routes.SSEPath, a.serveEvents)
	}

	a.handle(mux, routes.IndexPath, a.serveIndex)
	a.handle(mux, routes.PostPath, a.servePost)
	a.handle(mux, routes.AddPath, a.serveAdd)
	a.handle(mux, routes.UpdatePath, a.serveUpdate)
	a.handle(mux, routes.DeletePath, a.serveDelete)
	a.handle(mux, routes.LikePath, a.serveLike)
	a.handle(mux, routes.RootPath, a.serveNotFound)

	if a.metrics != nil {
		mux.Handle(config.AppConfig.Features.Metrics.Path, a.metrics.Handler())
	}

	return a.requestLogger(cacheIt(secureHeaders(mux.ServeHTTP)))
}

func (a *app) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	if a.metrics == nil {
		mux.Handle(pattern, h)
		return
	}
	mux.Handle(pattern, a.metrics.Instrument(pattern, h))
}

// renderPage writes the named page template. Rendering goes through a buffer so a
// template failure still produces a clean error page.
func (a *app) renderPage(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := a.pages[name].ExecuteTemplate(&buf, config.TemplateLayout, data); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("template", name).Msg("Error executing template")
		http.Error(w, config.ErrInternalServerError, http.StatusInternalServerError)
		return
	}

	w.Header().Set(config.HCType, config.CTypeHTML)
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func (a *app) serveNotFound(w http.ResponseWriter, r *http.Request) {
	a.renderPage(w, r, http.StatusNotFound, config.TemplateNotFound, model.NewPageData(r))
}

func (a *app) serveServerError(w http.ResponseWriter, r *http.Request, message string) {
	data := struct {
		*model.PageData
		Message string
	}{
		PageData: model.NewPageData(r),
		Message:  message,
	}
	a.renderPage(w, r, http.StatusInternalServerError, config.TemplateError, data)
}

// serveFailure maps a failed repository result onto a response.
func serveFailure[T any](a *app, w http.ResponseWriter, r *http.Request, res repository.Result[T]) {
	if errors.Is(res.Err(), repository.ErrPostNotFound) {
		a.serveNotFound(w, r)
		return
	}
	zerolog.Ctx(r.Context()).Error().Err(res.Err()).Msg(res.Message)
	a.serveServerError(w, r, res.Message)
}

func (a *app) serveRobots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(config.HCType, config.CTypeText)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("User-agent: *\nDisallow:"))
}

func (a *app) serveHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(config.HCType, config.CTypeText)
	if res := a.repo.FetchAll(r.Context()); !res.Success {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(res.Message))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (a *app) serveIndex(w http.ResponseWriter, r *http.Request) {
	res := a.repo.FetchAll(r.Context())
	if !res.Success {
		serveFailure(a, w, r, res)
		return
	}

	posts := res.Payload
	model.SortByTitleDesc(posts)

	pageData := model.NewPageData(r)
	data := struct {
		*model.PageData
		Posts []model.RenderedPost
	}{
		PageData: pageData,
		Posts:    render.RenderPosts(posts, pageData.SyntaxTheme),
	}

	a.renderPage(w, r, http.StatusOK, config.TemplateIndex, data)
}

func (a *app) servePost(w http.ResponseWriter, r *http.Request) {
	id, ok := model.ParsePostID(r.PathValue("id"))
	if !ok {
		a.serveNotFound(w, r)
		return
	}

	post, ok := a.repo.FetchByID(r.Context(), id)
	if !ok {
		a.serveNotFound(w, r)
		return
	}

	pageData := model.NewPageData(r)
	data := struct {
		*model.PageData
		Post model.RenderedPost
	}{
		PageData: pageData,
		Post:     render.RenderPost(post, pageData.SyntaxTheme),
	}

	a.renderPage(w, r, http.StatusOK, config.TemplatePost, data)
}

func (a *app) serveAdd(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		a.renderPage(w, r, http.StatusOK, config.TemplateAdd, model.NewPageData(r))
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		res := a.repo.Add(r.Context(),
			r.PostFormValue(config.FormAuthor),
			r.PostFormValue(config.FormTitle),
			r.PostFormValue(config.FormContent),
		)
		if !res.Success {
			serveFailure(a, w, r, res)
			return
		}

		http.Redirect(w, r, routes.RootPath, http.StatusSeeOther)
	default:
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
	}
}

func (a *app) serveUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := model.ParsePostID(r.PathValue("id"))
	if !ok {
		a.serveNotFound(w, r)
		return
	}

	post, ok := a.repo.FetchByID(r.Context(), id)
	if !ok {
		a.serveNotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		data := struct {
			*model.PageData
			Post model.Post
		}{
			PageData: model.NewPageData(r),
			Post:     post,
		}
		a.renderPage(w, r, http.StatusOK, config.TemplateUpdate, data)
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		// The form does not carry likes; the current count is kept.
		res := a.repo.Update(r.Context(), id,
			r.PostFormValue(config.FormAuthor),
			r.PostFormValue(config.FormTitle),
			r.PostFormValue(config.FormContent),
			post.Like,
		)
		if !res.Success {
			serveFailure(a, w, r, res)
			return
		}

		http.Redirect(w, r, routes.RootPath, http.StatusSeeOther)
	default:
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
	}
}

func (a *app) serveDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	id, ok := model.ParsePostID(r.PathValue("id"))
	if !ok {
		a.serveNotFound(w, r)
		return
	}

	if res := a.repo.Delete(r.Context(), id); !res.Success {
		serveFailure(a, w, r, res)
		return
	}

	http.Redirect(w, r, routes.RootPath, http.StatusSeeOther)
}

func (a *app) serveLike(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	id, ok := model.ParsePostID(r.PathValue("id"))
	if !ok {
		a.serveNotFound(w, r)
		return
	}

	if !a.likes.Allow(ratelimit.ClientIP(r)) {
		http.Error(w, config.ErrTooManyLikes, http.StatusTooManyRequests)
		return
	}

	if res := a.repo.Like(r.Context(), id); !res.Success {
		serveFailure(a, w, r, res)
		return
	}

	http.Redirect(w, r, routes.RootPath, http.StatusSeeOther)
}

func (a *app) serveThemeToggle(w http.ResponseWriter, r *http.Request) {
	newTheme := theme.Opposite(theme.GetThemeFromRequest(r))

	http.SetCookie(w, &http.Cookie{
		Name:     config.CookieTheme,
		Value:    newTheme,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})

	syntaxTheme := theme.GetDefaultSyntaxTheme(newTheme)
	if cookie, err := r.Cookie(config.CookieSyntaxTheme); err == nil && theme.IsSyntaxTheme(cookie.Value) {
		syntaxTheme = cookie.Value
	}

	w.Header().Set("Hx-Trigger", fmt.Sprintf(`{"themeChanged":{"value":%q,"syntaxTheme":%q}}`, newTheme, syntaxTheme))
	w.Header().Set(config.HCType, config.CTypeHTML)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(theme.GetThemeIcon(newTheme)))
}

func (a *app) serveSyntaxThemeSet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	syntaxTheme := r.FormValue("syntax-theme-select")
	if !theme.IsSyntaxTheme(syntaxTheme) {
		http.Error(w, "unknown syntax theme", http.StatusBadRequest)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     config.CookieSyntaxTheme,
		Value:    syntaxTheme,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	a.writeSyntaxCSS(w, syntaxTheme)
}

func (a *app) serveSyntaxThemeGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	syntaxTheme := r.PathValue("theme")
	if !theme.IsSyntaxTheme(syntaxTheme) {
		a.serveNotFound(w, r)
		return
	}

	a.writeSyntaxCSS(w, syntaxTheme)
}

func (a *app) writeSyntaxCSS(w http.ResponseWriter, syntaxTheme string) {
	themeStyle := []byte(theme.GenerateSyntaxCSS(syntaxTheme))
	w.Header().Set(config.HCType, config.CTypeCSS)
	w.Header().Set(config.HETag, util.ShortHash(themeStyle))
	w.WriteHeader(http.StatusOK)
	w.Write(themeStyle)
}

// serveEvents streams a "reload" event carrying the changed post id after every
// mutation. Clients pass ?post=<id> to follow a single post; without it they follow
// every post.
func (a *app) serveEvents(w http.ResponseWriter, r *http.Request) {
	postID := sse.AllPosts
	if raw := r.URL.Query().Get("post"); raw != "" {
		id, ok := model.ParsePostID(raw)
		if !ok {
			http.Error(w, "invalid post parameter", http.StatusBadRequest)
			return
		}
		postID = id
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set(config.HCType, "text/event-stream")
	w.Header().Set(config.HCacheControl, "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Del("X-Content-Type-Options")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "event: connected\ndata: SSE connection established\n\n")
	flusher.Flush()

	client := sse.NewClient(postID)
	a.clients.Add(client)

	log := zerolog.Ctx(r.Context())
	log.Debug().Int("post_id", int(postID)).Msg("SSE client connected")
	defer func() {
		a.clients.Delete(client)
		log.Debug().Int("post_id", int(postID)).Msg("SSE client disconnected")
	}()

	done := r.Context().Done()
	for {
		select {
		case msg, ok := <-client.Msg:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: reload\ndata: %s\n\n", msg)
			flusher.Flush()
		case <-done:
			return
		}
	}
}

func (a *app) handleReloadPost(postID model.PostID) {
	a.clients.Broadcast(postID, postID.String())
}
