package web

import (
	"html/template"
	"net/http"

	"webgate/internal/person/models"
	"webgate/internal/session"
	request "webgate/pkg/platform/middleware/request"
	"webgate/pkg/requestcontext"
)

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="{{.Locale}}">
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
{{range .Flashes}}<p class="flash flash-{{.Kind}}">{{.Message}}</p>
{{end}}<h1>{{.Title}}</h1>
{{if eq .View "login"}}<form method="post" action="/login">
<input type="email" name="email" value="{{.Email}}">
<input type="password" name="password">
<button type="submit">Log in</button>
</form>
{{else if eq .View "edit"}}<form method="post" action="/people/{{.Subject.ID}}/edit">
<input type="text" name="name" value="{{.Subject.Name}}">
<input type="email" name="email" value="{{.Subject.Email}}">
<input type="text" name="language" value="{{.Subject.Language}}">
<button type="submit">Save</button>
</form>
{{else if eq .View "admin"}}<p class="people-count">{{.PeopleCount}}</p>
{{end}}{{if .Person}}<p class="whoami">{{.Person.Email}}</p>
<a href="/logout">Log out</a>
{{else}}<a href="/login">Log in</a>
{{end}}</body>
</html>
`))

type pageData struct {
	View        string
	Title       string
	Locale      string
	Flashes     []session.Flash
	Person      *models.Person
	Subject     *models.Person
	Email       string
	PeopleCount int
}

// render writes an HTML page, consuming the session's pending flashes.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	ctx := r.Context()
	data.Locale = requestcontext.Locale(ctx)
	if data.Locale == "" {
		data.Locale = h.tr.Default()
	}
	if sess := session.FromContext(ctx); sess != nil {
		data.Flashes = sess.Flashes()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTemplate.Execute(w, data); err != nil {
		h.logger.ErrorContext(ctx, "failed to render page",
			"error", err,
			"view", data.View,
			"request_id", request.GetRequestID(ctx),
		)
	}
}

func (h *Handler) t(r *http.Request, key string, args ...any) string {
	return h.tr.T(requestcontext.Locale(r.Context()), key, args...)
}
