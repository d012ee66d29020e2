package pipeline

import (
	"encoding/json"
	"fmt"
	"regexp"

	"google.golang.org/genai"
)

// SlidePlaceholderTitle is the title of the single slide substituted when
// the slides response cannot be parsed. The slide list surfaced to
// consumers is never empty and never partial.
const SlidePlaceholderTitle = "Error"

var jsonRegionRe = regexp.MustCompile(`(?s)(\{.*\}|\[.*\])`)

// ParseSlides decodes a model response into a slide list. The response is
// expected to be a JSON array of {title, bullets} records, possibly
// wrapped in fences or surrounded by prose; a bracketed JSON region is
// salvaged from prose before giving up.
func ParseSlides(text string) ([]Slide, error) {
	cleaned := CleanText(text)

	var slides []Slide
	if err := json.Unmarshal([]byte(cleaned), &slides); err == nil && len(slides) > 0 {
		return slides, nil
	}

	if region := jsonRegionRe.FindString(cleaned); region != "" {
		if err := json.Unmarshal([]byte(region), &slides); err == nil && len(slides) > 0 {
			return slides, nil
		}
	}

	return nil, fmt.Errorf("no slide list found in response")
}

// PlaceholderSlides is the wholesale substitute for an unparseable slides
// response.
func PlaceholderSlides() []Slide {
	return []Slide{{Title: SlidePlaceholderTitle, Bullets: []string{"Generation failed"}}}
}

// slideSchema constrains the slides stage to a JSON array of slide records.
func slideSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"title":   {Type: genai.TypeString},
				"bullets": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			},
			Required: []string{"title", "bullets"},
		},
	}
}
