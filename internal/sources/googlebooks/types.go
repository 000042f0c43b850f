package googlebooks

import "encoding/json"

// volumesResponse matches GET /volumes. Items stay raw so each can be decoded
// both typed and untyped.
type volumesResponse struct {
	TotalItems int               `json:"totalItems"`
	Items      []json.RawMessage `json:"items"`
}

// volume matches a single volume resource.
type volume struct {
	ID         string     `json:"id"`
	VolumeInfo volumeInfo `json:"volumeInfo"`
}

// rawVolume keeps the parts of a volume passed through as raw metadata.
type rawVolume struct {
	ETag       string         `json:"etag"`
	SelfLink   string         `json:"selfLink"`
	VolumeInfo map[string]any `json:"volumeInfo"`
	SaleInfo   map[string]any `json:"saleInfo"`
	AccessInfo map[string]any `json:"accessInfo"`
	SearchInfo map[string]any `json:"searchInfo"`
}

type volumeInfo struct {
	Title               string       `json:"title"`
	Authors             []string     `json:"authors"`
	Publisher           string       `json:"publisher"`
	PublishedDate       string       `json:"publishedDate"`
	Description         string       `json:"description"`
	IndustryIdentifiers []identifier `json:"industryIdentifiers"`
	PageCount           int          `json:"pageCount"`
	Categories          []string     `json:"categories"`
	AverageRating       *float64     `json:"averageRating"`
	RatingsCount        *int         `json:"ratingsCount"`
	MaturityRating      string       `json:"maturityRating"`
	ImageLinks          imageLinks   `json:"imageLinks"`
	Language            string       `json:"language"`
	PreviewLink         string       `json:"previewLink"`
	InfoLink            string       `json:"infoLink"`
}

type identifier struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

type imageLinks struct {
	SmallThumbnail string `json:"smallThumbnail"`
	Thumbnail      string `json:"thumbnail"`
	Small          string `json:"small"`
	Medium         string `json:"medium"`
	Large          string `json:"large"`
	ExtraLarge     string `json:"extraLarge"`
}

// largest returns the biggest image the volume offers.
func (l imageLinks) largest() string {
	for _, candidate := range []string{l.ExtraLarge, l.Large, l.Medium, l.Small, l.Thumbnail, l.SmallThumbnail} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}
