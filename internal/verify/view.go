package verify

import (
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Panel is the result area shown under the form.
type Panel int

const (
	PanelNone Panel = iota
	PanelError
	PanelVerified
	PanelNotFound
)

// View is everything a renderer needs to draw the page.
type View struct {
	Barcode        string
	Loading        bool
	SubmitDisabled bool
	SubmitLabel    string
	Panel          Panel
	Message        string
	Product        *ProductView
}

// ProductView is the verified product as displayed.
type ProductView struct {
	ID          string
	Name        string
	Region      string
	GITag       string
	ArtisanName string
	Barcode     string
	ImageURL    string
	Link        string
}

// HasImage reports whether an image element should be rendered instead of
// the placeholder.
func (p ProductView) HasImage() bool {
	return p.ImageURL != ""
}

// View returns what the page currently renders.
func (p *Page) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()

	return viewOf(p.stateLocked())
}

func viewOf(s State) View {
	v := View{
		Barcode:        s.Barcode,
		Loading:        s.Loading,
		SubmitDisabled: s.Loading || strings.TrimSpace(s.Barcode) == "",
		SubmitLabel:    "Verify",
	}
	if s.Loading {
		v.SubmitLabel = "Verifying..."
	}

	switch {
	case s.Error != "":
		v.Panel = PanelError
		v.Message = s.Error
	case s.Result != nil && s.Result.Product != nil:
		pr := s.Result.Product
		v.Panel = PanelVerified
		v.Product = &ProductView{
			ID:          pr.ID.String(),
			Name:        pr.Name,
			Region:      pr.Region,
			GITag:       pr.GITag,
			ArtisanName: pr.ArtisanName,
			Barcode:     pr.Barcode,
			ImageURL:    pr.ImageURL,
			Link:        ProductPath(pr.ID),
		}
	case s.Result != nil:
		v.Panel = PanelNotFound
		v.Message = MessageNoMatch
	}

	return v
}

// ProductPath is the detail page of a product.
func ProductPath(id uuid.UUID) string {
	return "/products/" + url.PathEscape(id.String())
}
