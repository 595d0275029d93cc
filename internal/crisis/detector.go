// Package crisis flags messages that should surface emergency resources.
package crisis

import (
	"regexp"
	"strings"
)

type Category string

const (
	CategorySuicide Category = "suicide"
	CategoryAssault Category = "assault"
)

// Alert is raised once per category whose keywords appear in the text.
type Alert struct {
	Category Category `json:"category"`
	Keywords []string `json:"keywords"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Link     string   `json:"link,omitempty"`
}

type rule struct {
	category Category
	keywords []string
	title    string
	message  string
	link     string
}

var rules = []rule{
	{
		category: CategorySuicide,
		keywords: []string{"suicide", "kill myself", "end my life", "want to die"},
		title:    "Crisis Support Available",
		message:  "If you're having thoughts of suicide, please know that help is available.",
	},
	{
		category: CategoryAssault,
		keywords: []string{
			"assault",
			"attacked",
			"molested",
			"raped",
			"harassed",
			"stalked",
			"threatened",
			"domestic violence",
			"abuse",
			"violent partner",
			"unsafe",
		},
		title:   "Women's Crisis Support Available",
		message: "If you're experiencing assault, abuse, or feel unsafe, immediate help is available. You're not alone, and it's not your fault.",
		link:    "https://www.thehotline.org/",
	},
}

// Detect lower-cases text and reports every category with at least one keyword match.
func Detect(text string) []Alert {
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return nil
	}

	var alerts []Alert
	for _, r := range rules {
		var hits []string
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				hits = append(hits, kw)
			}
		}
		if len(hits) == 0 {
			continue
		}
		alerts = append(alerts, Alert{
			Category: r.category,
			Keywords: hits,
			Title:    r.title,
			Message:  r.message,
			Link:     r.link,
		})
	}
	return alerts
}

// ParseCategory accepts a known category name; empty input maps to suicide.
func ParseCategory(raw string) (Category, bool) {
	switch Category(strings.ToLower(strings.TrimSpace(raw))) {
	case "", CategorySuicide:
		return CategorySuicide, true
	case CategoryAssault:
		return CategoryAssault, true
	}
	return "", false
}

// Suggestions are self-help activities hinted at by an assistant reply.
type Suggestions struct {
	BreathingExercise bool `json:"breathing_exercise"`
	Meditation        bool `json:"meditation"`
}

var (
	breathingPattern  = regexp.MustCompile(`(?i)breath(ing|s)?`)
	meditationPattern = regexp.MustCompile(`(?i)meditat(e|ion|ing)`)
)

func SuggestFor(reply string) Suggestions {
	return Suggestions{
		BreathingExercise: breathingPattern.MatchString(reply),
		Meditation:        meditationPattern.MatchString(reply),
	}
}
