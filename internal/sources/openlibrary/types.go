package openlibrary

import "encoding/json"

// searchResponse matches GET /search.json.
type searchResponse struct {
	NumFound int               `json:"numFound"`
	Docs     []json.RawMessage `json:"docs"`
}

type searchDoc struct {
	Key                 string   `json:"key"`
	Title               string   `json:"title"`
	AuthorName          []string `json:"author_name"`
	ISBN                []string `json:"isbn"`
	Publisher           []string `json:"publisher"`
	FirstPublishYear    int      `json:"first_publish_year"`
	NumberOfPagesMedian int      `json:"number_of_pages_median"`
	Subject             []string `json:"subject"`
	Language            []string `json:"language"`
	CoverID             int      `json:"cover_i"`
	RatingsAverage      *float64 `json:"ratings_average"`
	RatingsCount        *int     `json:"ratings_count"`
}

// work matches GET /works/<key>.json.
type work struct {
	Title       string       `json:"title"`
	Description any          `json:"description"`
	Subjects    []string     `json:"subjects"`
	Covers      []int        `json:"covers"`
	Authors     []workAuthor `json:"authors"`
}

type workAuthor struct {
	Author struct {
		Key string `json:"key"`
	} `json:"author"`
}

type author struct {
	Name string `json:"name"`
}

// extractDescription handles the two forms a description can take:
// a plain string or a {"type": ..., "value": ...} object.
func extractDescription(desc any) string {
	switch v := desc.(type) {
	case string:
		return v
	case map[string]any:
		if val, ok := v["value"].(string); ok {
			return val
		}
	}
	return ""
}

func firstN(values []string, n int) []string {
	if len(values) > n {
		values = values[:n]
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}
