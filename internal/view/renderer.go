package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Clark-Hu/cinepuma/internal/catalog"
	"github.com/Clark-Hu/cinepuma/internal/domain"
	"github.com/Clark-Hu/cinepuma/internal/rating"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Page names.
const (
	PageHome     = "home"
	PageTopRated = "top_rated"
	PageDetail   = "detail"
	PageLogin    = "login"
	PageWelcome  = "welcome"
	PageHelp     = "help"
	PageError    = "error"
)

// Fragment names usable with Fragment.
const (
	FragmentListing = "listing"
	FragmentStars   = "stars"
	FragmentReviews = "reviews"
	FragmentNotice  = "notice"
)

var pages = []string{PageHome, PageTopRated, PageDetail, PageLogin, PageWelcome, PageHelp, PageError}

// Page is the data every full page receives.
type Page struct {
	Title   string
	User    string
	Notices []domain.Notice
	Body    any
}

// Listing is the home page card row.
type Listing struct {
	Query   string
	Heading string
	Cards   []Card
	Message string
}

// NewListing converts a catalog search result.
func NewListing(l catalog.Listing) Listing {
	return Listing{Query: l.Query, Heading: l.Heading, Cards: Cards(l.Movies), Message: l.Message}
}

// TopRated is the body of the top-rated page.
type TopRated struct {
	Query string
	Cards []Card
	Error string
}

// Stars is a rendered star row with its value.
type Stars struct {
	Value float64
	Stars []StarView
}

// NewStars renders v with the widget truth table.
func NewStars(v float64) Stars {
	return Stars{Value: v, Stars: StarViews(rating.Stars(v))}
}

// Detail is the body of the details page. Text refills the review box after
// a rejected submission.
type Detail struct {
	MovieID      string
	Card         Card
	LiveURL      string
	SubmitURL    string
	Min          float64
	Max          float64
	Step         float64
	Rating       float64
	Text         string
	Stars        Stars
	StoreMissing bool
	Reviews      ReviewsSection
}

// Login is the body of the login page.
type Login struct {
	Email           string
	PasswordEnabled bool
}

// Welcome is the body of the protected welcome page.
type Welcome struct {
	Name string
}

// ErrorBody is the body of the error page.
type ErrorBody struct {
	Heading string
	Message string
}

// Renderer holds the parsed templates.
type Renderer struct {
	pages     map[string]*template.Template
	fragments *template.Template
	logger    *zap.Logger
}

func funcs() template.FuncMap {
	return template.FuncMap{
		"placeholder": func() string { return PlaceholderPoster },
	}
}

// NewRenderer parses the embedded templates.
func NewRenderer(logger *zap.Logger) (*Renderer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Renderer{pages: make(map[string]*template.Template, len(pages)), logger: logger}
	for _, name := range pages {
		t, err := template.New("layout").Funcs(funcs()).ParseFS(templateFS,
			"templates/layout.html", "templates/fragments.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse page %s: %w", name, err)
		}
		r.pages[name] = t
	}
	fragments, err := template.New("fragments").Funcs(funcs()).ParseFS(templateFS, "templates/fragments.html")
	if err != nil {
		return nil, fmt.Errorf("parse fragments: %w", err)
	}
	r.fragments = fragments
	return r, nil
}

// Render writes a full page. The page is rendered to a buffer first so a
// template error never leaves a half-written response.
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, page Page) {
	t, ok := r.pages[name]
	if !ok {
		r.logger.Error("view: unknown page", zap.String("page", name))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", page); err != nil {
		r.logger.Error("view: render page", zap.String("page", name), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// Fragment renders a named fragment to a string.
func (r *Renderer) Fragment(name string, data any) (string, error) {
	var sb strings.Builder
	if err := r.fragments.ExecuteTemplate(&sb, name, data); err != nil {
		return "", fmt.Errorf("render fragment %s: %w", name, err)
	}
	return sb.String(), nil
}

// Static returns the embedded static assets rooted at their directory.
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
