package synthesis

import "github.com/m-mizutani/gollem"

// Schema describes the chapter set the editor call must return
func Schema() *gollem.Parameter {
	return &gollem.Parameter{
		Title:       "ChapterDraft",
		Description: "Autobiography chapters composed from personal story episodes",
		Type:        gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"chapters": {
				Type:        gollem.TypeArray,
				Description: "Chapters in reading order",
				Required:    true,
				Items: &gollem.Parameter{
					Type: gollem.TypeObject,
					Properties: map[string]*gollem.Parameter{
						"title": {
							Type:        gollem.TypeString,
							Description: "Chapter title",
							Required:    true,
						},
						"content": {
							Type:        gollem.TypeString,
							Description: "Narrative body of the chapter. Line breaks separate paragraphs.",
							Required:    true,
						},
						"order": {
							Type:        gollem.TypeInteger,
							Description: "Position of the chapter starting at 1",
							Required:    true,
						},
					},
				},
			},
		},
	}
}
