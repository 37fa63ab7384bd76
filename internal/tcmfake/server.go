// Package tcmfake serves a stand-in for the test case manager. It reproduces
// the CSRF form-token and cookie rotation of the login and creation forms, and
// renders labelled pages close enough to the real ones for the page objects
// to drive them in a browser.
package tcmfake

import (
	"encoding/json"
	"html/template"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/testme/tcm-e2e/internal/models"
)

// ajaxSpacing staggers the demo AJAX requests so they do not all land at once
const ajaxSpacing = 150 * time.Millisecond

var pageTemplates = template.Must(template.New("pages").Parse(`
{{define "head"}}<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Title}}</title>
<style>
.menuBtn { display: none; }
@media (max-width: 600px) {
	.menuBtn { display: inline; }
	nav a { display: none; }
	nav.open a { display: inline; }
	.optional { display: none; }
}
</style></head><body>
{{if .Nav}}<button class="menuBtn" type="button" onclick="document.querySelector('nav').classList.toggle('open')">Menu</button>
<nav><a href="/tests/">Test Cases</a> <a href="/test/new">Create new test</a> <a href="/demo/">Demo pages</a></nav>
{{end}}{{end}}

{{define "form"}}{{template "head" .}}
{{if .Error}}<p class="errornote">{{.Error}}</p>{{end}}
<form method="post" action="{{.Action}}">
{{if .Token}}<input type="hidden" name="csrfmiddlewaretoken" value="{{.Token}}">{{end}}
{{range .Fields}}<p><label for="id_{{.Name}}">{{.Label}}</label>
{{if eq .Type "textarea"}}<textarea id="id_{{.Name}}" name="{{.Name}}"></textarea>{{else}}<input type="{{.Type}}" id="id_{{.Name}}" name="{{.Name}}">{{end}}</p>
{{end}}<button type="submit">{{.Submit}}</button>
</form>
</body></html>{{end}}

{{define "home"}}{{template "head" .}}
<h1>Test cases</h1>
<div class="position"></div>
<script>
if (navigator.geolocation) {
	navigator.geolocation.getCurrentPosition(function (p) {
		setTimeout(function () {
			document.querySelector(".position").textContent = p.coords.latitude + ", " + p.coords.longitude;
		}, {{.PositionDelay}});
	});
}
</script>
</body></html>{{end}}

{{define "tests"}}{{template "head" .}}
<table>
<thead><tr><th>Name</th><th class="optional">Description/Steps</th><th class="optional">Author</th><th class="optional">Last executor</th><th></th></tr></thead>
<tbody{{if .ListDelay}} hidden{{end}}>
{{range .Cases}}<tr><td>{{.Name}}</td><td class="optional">{{.Description}}</td><td class="optional">{{$.Author}}</td><td class="optional"></td>
<td><button type="button" data-id="{{.ID}}" onclick="deleteCase(this)">Delete</button></td></tr>
{{end}}</tbody>
</table>
<script>
function csrfCookie() {
	const match = document.cookie.match(/(?:^|; )csrftoken=([^;]*)/);
	return match ? match[1] : "";
}
function deleteCase(button) {
	fetch("/tests/" + button.dataset.id + "/delete", {
		method: "POST",
		headers: {"X-CSRFToken": csrfCookie()},
		credentials: "same-origin"
	}).then(function () {
		setTimeout(function () { button.closest("tr").remove(); }, {{.DeleteDelay}});
	});
}
const listDelay = {{.ListDelay}};
if (listDelay > 0) {
	setTimeout(function () { document.querySelector("tbody").hidden = false; }, listDelay);
}
</script>
</body></html>{{end}}

{{define "demo"}}{{template "head" .}}
<h1>Demo pages</h1>
<p><label for="delay">Delay</label> <input type="number" id="delay" value="0">
<button type="button" onclick="openLater()">Open page</button></p>
<p><label for="requests">Requests</label> <input type="number" id="requests" value="1">
<button type="button" onclick="sendRequests()">Send requests</button></p>
<p><button type="button" onclick="window.open('/demo/popup')">New page</button></p>
<script>
function openLater() {
	const seconds = Number(document.getElementById("delay").value);
	setTimeout(function () { location.href = "/demo/wait"; }, seconds * 1000);
}
function sendRequests() {
	const n = Number(document.getElementById("requests").value);
	for (let i = 1; i <= n; i++) {
		setTimeout(function () { fetch("/demo/ajax?n=" + i); }, i * {{.AjaxSpacing}});
	}
}
</script>
</body></html>{{end}}

{{define "heading"}}{{template "head" .}}
<h1>{{.Title}}</h1>
</body></html>{{end}}
`))

type field struct {
	Name  string
	Label string
	Type  string
}

var (
	loginFields   = []field{{"username", "Username:", "text"}, {"password", "Password:", "password"}}
	newTestFields = []field{{"name", "Name:", "text"}, {"description", "Test description", "textarea"}}
)

// view is the data of every page template
type view struct {
	Title string
	Nav   bool

	Action string
	Token  string
	Error  string
	Submit string
	Fields []field

	Cases  []models.TestCase
	Author string

	ListDelay     int64
	DeleteDelay   int64
	PositionDelay int64
	AjaxSpacing   int64
}

// Server is an httptest server speaking the application's form protocol
type Server struct {
	*httptest.Server

	// OmitToken renders forms without the hidden anti-forgery field
	OmitToken bool
	// OnCreate is called for every accepted test case
	OnCreate func(tc models.TestCase) error
	// ListDelay keeps the test case rows hidden for a while after the list loads
	ListDelay time.Duration
	// DeleteDelay is how long a deleted row stays in the list
	DeleteDelay time.Duration
	// PositionDelay is how long the home page takes to show the position
	PositionDelay time.Duration

	mu         sync.Mutex
	users      map[string]string
	formTokens map[string]bool
	sessions   map[string]string
	csrfCookie string
	cases      []models.TestCase
	nextID     int64
	logins     int
	ajax       int
}

// New starts a fake application that accepts the given username and password
func New(username, password string) *Server {
	s := &Server{
		users:      map[string]string{username: password},
		formTokens: map[string]bool{},
		sessions:   map[string]string{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/login/", s.handleLogin)
	mux.HandleFunc("/test/new", s.handleNewTest)
	mux.HandleFunc("POST /tests/{id}/delete", s.requireSession(s.handleDelete))
	mux.HandleFunc("/tests/", s.requireSession(s.handleList))
	mux.HandleFunc("/demo/", s.requireSession(func(w http.ResponseWriter, r *http.Request) {
		s.render(w, http.StatusOK, "demo", view{Title: "Demo pages", Nav: true, AjaxSpacing: ajaxSpacing.Milliseconds()})
	}))
	mux.HandleFunc("/demo/wait", s.requireSession(func(w http.ResponseWriter, r *http.Request) {
		s.render(w, http.StatusOK, "heading", view{Title: "Wait page", Nav: true})
	}))
	mux.HandleFunc("/demo/popup", s.requireSession(func(w http.ResponseWriter, r *http.Request) {
		s.render(w, http.StatusOK, "heading", view{Title: "New page"})
	}))
	mux.HandleFunc("/demo/ajax", s.requireSession(s.handleAjax))
	mux.HandleFunc("/", s.requireSession(func(w http.ResponseWriter, r *http.Request) {
		s.render(w, http.StatusOK, "home", view{Title: "Test cases", Nav: true, PositionDelay: s.PositionDelay.Milliseconds()})
	}))

	s.Server = httptest.NewServer(mux)
	return s
}

// Add stores a test case as if it had been created through the form
func (s *Server) Add(name, description string) models.TestCase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(models.TestCase{Name: name, Description: description})
}

func (s *Server) addLocked(tc models.TestCase) models.TestCase {
	s.nextID++
	tc.ID = s.nextID
	s.cases = append(s.cases, tc)
	return tc
}

// Cases returns the stored test cases
func (s *Server) Cases() []models.TestCase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.TestCase(nil), s.cases...)
}

// Logins returns the number of successful logins
func (s *Server) Logins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logins
}

// AjaxRequests returns the number of demo AJAX requests served
func (s *Server) AjaxRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ajax
}

// CSRFCookie returns the current value of the rotated csrftoken cookie
func (s *Server) CSRFCookie() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.csrfCookie
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.ensureCSRFCookie(w, r)
		s.renderForm(w, http.StatusOK, "/login/", "Login", "", loginFields)
	case http.MethodPost:
		if !s.checkFormToken(r) {
			http.Error(w, "CSRF verification failed", http.StatusForbidden)
			return
		}

		username := r.PostFormValue("username")
		s.mu.Lock()
		want, ok := s.users[username]
		s.mu.Unlock()
		if !ok || want != r.PostFormValue("password") {
			s.renderForm(w, http.StatusOK, "/login/", "Login", "Please enter a correct username and password.", loginFields)
			return
		}

		// Rotate the CSRF cookie and open a session
		sessionID := uuid.NewString()
		s.mu.Lock()
		s.csrfCookie = uuid.NewString()
		s.sessions[sessionID] = username
		s.logins++
		csrf := s.csrfCookie
		s.mu.Unlock()

		http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: csrf, Path: "/"})
		http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: sessionID, Path: "/", HttpOnly: true})
		http.Redirect(w, r, "/", http.StatusFound)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleNewTest(w http.ResponseWriter, r *http.Request) {
	if !s.hasSession(r) {
		if r.Method != http.MethodGet {
			http.Error(w, "Authentication required", http.StatusForbidden)
			return
		}
		http.Redirect(w, r, "/login/?next=/test/new", http.StatusFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.renderForm(w, http.StatusOK, "/test/new", "Create", "", newTestFields)
	case http.MethodPost:
		// A browser form post carries only the form token; scripted clients
		// also send the cookie value as a header, which must then match.
		header := r.Header.Get("X-CSRFToken")
		if !s.checkFormToken(r) || (header != "" && !s.checkHeaderToken(r)) {
			http.Error(w, "CSRF verification failed", http.StatusForbidden)
			return
		}

		tc, err := models.NewTestCase(r.PostFormValue("name"), r.PostFormValue("description"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		s.mu.Lock()
		tc = s.addLocked(tc)
		onCreate := s.OnCreate
		s.mu.Unlock()

		if onCreate != nil {
			if err := onCreate(tc); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
		}
		http.Redirect(w, r, "/tests/", http.StatusFound)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	ck, _ := r.Cookie("sessionid")
	s.mu.Lock()
	v := view{
		Title:       "Test cases",
		Nav:         true,
		Cases:       append([]models.TestCase(nil), s.cases...),
		Author:      s.sessions[ck.Value],
		ListDelay:   s.ListDelay.Milliseconds(),
		DeleteDelay: s.DeleteDelay.Milliseconds(),
	}
	s.mu.Unlock()
	s.render(w, http.StatusOK, "tests", v)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !s.checkHeaderToken(r) {
		http.Error(w, "CSRF verification failed", http.StatusForbidden)
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, tc := range s.cases {
		if tc.ID == id {
			s.cases = append(s.cases[:i], s.cases[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	http.NotFound(w, r)
}

func (s *Server) handleAjax(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.ajax++
	n := s.ajax
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"served": n})
}

func (s *Server) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.hasSession(r) {
			http.Redirect(w, r, "/login/?next="+r.URL.Path, http.StatusFound)
			return
		}
		next(w, r)
	}
}

func (s *Server) hasSession(r *http.Request) bool {
	ck, err := r.Cookie("sessionid")
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[ck.Value]
	return ok
}

func (s *Server) ensureCSRFCookie(w http.ResponseWriter, r *http.Request) {
	if _, err := r.Cookie("csrftoken"); err == nil {
		return
	}
	s.mu.Lock()
	if s.csrfCookie == "" {
		s.csrfCookie = uuid.NewString()
	}
	csrf := s.csrfCookie
	s.mu.Unlock()
	http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: csrf, Path: "/"})
}

// checkFormToken consumes a form token issued by renderForm
func (s *Server) checkFormToken(r *http.Request) bool {
	token := strings.TrimSpace(r.PostFormValue("csrfmiddlewaretoken"))
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.formTokens[token] {
		return false
	}
	delete(s.formTokens, token)
	return true
}

// checkHeaderToken accepts a request whose X-CSRFToken header repeats its
// csrftoken cookie
func (s *Server) checkHeaderToken(r *http.Request) bool {
	header := r.Header.Get("X-CSRFToken")
	if header == "" {
		return false
	}
	ck, err := r.Cookie("csrftoken")
	return err == nil && ck.Value == header
}

func (s *Server) renderForm(w http.ResponseWriter, status int, action, submit, errMsg string, fields []field) {
	v := view{Title: submit, Action: action, Submit: submit, Error: errMsg, Fields: fields}
	if !s.OmitToken {
		v.Token = uuid.NewString()
		s.mu.Lock()
		s.formTokens[v.Token] = true
		s.mu.Unlock()
	}
	s.render(w, status, "form", v)
}

func (s *Server) render(w http.ResponseWriter, status int, name string, v view) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	pageTemplates.ExecuteTemplate(w, name, v)
}
