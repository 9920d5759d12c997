// Package web serves the server-rendered verification front.
package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"heritage-atlas/internal/client"
	"heritage-atlas/internal/domain"
	custommiddleware "heritage-atlas/internal/middleware"
	"heritage-atlas/internal/verify"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

// ProductFetcher loads a product for the detail page. Failures may carry
// an HTTP status through verify.StatusCoder.
type ProductFetcher interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

// Options configures the web front.
type Options struct {
	PublicBaseURL       string
	PlaceholderImageURL string
	TrustedProxies      []string
}

type verifyData struct {
	Title               string
	View                verify.View
	QRCode              template.URL
	VerifyLink          string
	PlaceholderImageURL string
}

func (d verifyData) ShowError() bool    { return d.View.Panel == verify.PanelError }
func (d verifyData) ShowVerified() bool { return d.View.Panel == verify.PanelVerified }
func (d verifyData) ShowNotFound() bool { return d.View.Panel == verify.PanelNotFound }

type productData struct {
	Title               string
	Product             *domain.Product
	PlaceholderImageURL string
}

type errorData struct {
	Title   string
	Message string
}

// Handler renders the verify and product pages.
type Handler struct {
	products  ProductFetcher
	sessions  *SessionStore
	opts      Options
	templates map[string]*template.Template
	logger    *zap.Logger
}

// NewHandler parses the embedded templates.
func NewHandler(products ProductFetcher, sessions *SessionStore, opts Options, logger *zap.Logger) (*Handler, error) {
	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	return &Handler{
		products:  products,
		sessions:  sessions,
		opts:      opts,
		templates: templates,
		logger:    logger,
	}, nil
}

func parseTemplates() (map[string]*template.Template, error) {
	funcs := template.FuncMap{
		"deref": func(f *float64) float64 {
			if f == nil {
				return 0
			}
			return *f
		},
	}

	templates := make(map[string]*template.Template)
	for _, name := range []string{"verify.html", "product.html", "error.html"} {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		templates[name] = t
	}
	return templates, nil
}

// Routes returns the router of the web front.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(custommiddleware.TrustedRealIP(custommiddleware.ParseTrustedProxies(h.opts.TrustedProxies, h.logger)))
	r.Use(middleware.Recoverer)
	r.Use(custommiddleware.LoggingMiddleware(h.logger))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/verify", http.StatusFound)
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		custommiddleware.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/verify", h.ShowVerify)
	r.Post("/verify", h.SubmitVerify)
	r.Get("/products/{id}", h.ShowProduct)

	return r
}

// ShowVerify handles GET /verify. A full page load starts the visitor over;
// the session only carries state between submissions.
func (h *Handler) ShowVerify(w http.ResponseWriter, r *http.Request) {
	page := h.sessions.Page(w, r)
	page.Reset()
	page.Navigate(r.URL.Query())

	h.renderVerify(w, r, page.View(), false)
}

// SubmitVerify handles POST /verify. htmx requests get only the result
// fragment back.
func (h *Handler) SubmitVerify(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderError(w, http.StatusBadRequest, "Invalid form submission.")
		return
	}

	page := h.sessions.Page(w, r)
	page.SetBarcode(r.PostFormValue("barcode"))
	page.Submit(visitorContext(r))

	h.renderVerify(w, r, page.View(), r.Header.Get("HX-Request") != "")
}

func (h *Handler) renderVerify(w http.ResponseWriter, r *http.Request, view verify.View, fragment bool) {
	data := verifyData{
		Title:               "Verify Product",
		View:                view,
		PlaceholderImageURL: h.opts.PlaceholderImageURL,
	}

	if view.Panel == verify.PanelVerified && view.Product != nil {
		code := view.Product.Barcode
		if code == "" {
			code = strings.TrimSpace(view.Barcode)
		}
		data.VerifyLink = VerifyLink(h.opts.PublicBaseURL, code)

		qr, err := QRDataURI(data.VerifyLink)
		if err != nil {
			// The panel still renders without the code.
			h.logger.Warn("Failed to build QR code", zap.String("code", code), zap.Error(err))
		}
		data.QRCode = qr
	}

	name := "layout"
	if fragment {
		name = "result"
	}
	h.render(w, http.StatusOK, "verify.html", name, data)
}

// ShowProduct handles GET /products/{id}
func (h *Handler) ShowProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	product, err := h.products.GetProduct(visitorContext(r), id)
	if err != nil {
		var sc verify.StatusCoder
		if errors.As(err, &sc) && (sc.HTTPStatus() == http.StatusNotFound || sc.HTTPStatus() == http.StatusBadRequest) {
			h.renderError(w, http.StatusNotFound, "Product not found.")
			return
		}

		h.logger.Error("Failed to load product", zap.String("product_id", id), zap.Error(err))
		h.renderError(w, http.StatusBadGateway, "Could not load this product. Please try again.")
		return
	}

	h.render(w, http.StatusOK, "product.html", "layout", productData{
		Title:               product.Name,
		Product:             product,
		PlaceholderImageURL: h.opts.PlaceholderImageURL,
	})
}

// visitorContext tags outgoing API calls with the visitor address, which the
// API rate limits on.
func visitorContext(r *http.Request) context.Context {
	return client.WithForwardedFor(r.Context(), custommiddleware.ClientIP(r))
}

func (h *Handler) renderError(w http.ResponseWriter, status int, message string) {
	h.render(w, status, "error.html", "layout", errorData{Title: "Error", Message: message})
}

// render executes into a buffer so a template failure can still become a 500.
func (h *Handler) render(w http.ResponseWriter, status int, page, name string, data interface{}) {
	var buf bytes.Buffer
	if err := h.templates[page].ExecuteTemplate(&buf, name, data); err != nil {
		h.logger.Error("Template execute error", zap.String("template", page), zap.Error(err))
		http.Error(w, "Render Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
