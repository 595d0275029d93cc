package crisis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		categories []Category
	}{
		{name: "empty", text: "   "},
		{name: "ordinary", text: "I had a long day at work"},
		{name: "suicide keyword", text: "Sometimes I WANT TO DIE", categories: []Category{CategorySuicide}},
		{name: "assault keyword", text: "my violent partner threatened me", categories: []Category{CategoryAssault}},
		{name: "both", text: "I was attacked and now I think about suicide", categories: []Category{CategorySuicide, CategoryAssault}},
		{name: "substring match", text: "the abuser left", categories: []Category{CategoryAssault}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alerts := Detect(tt.text)
			require.Len(t, alerts, len(tt.categories))
			for i, c := range tt.categories {
				assert.Equal(t, c, alerts[i].Category)
				assert.NotEmpty(t, alerts[i].Keywords)
				assert.NotEmpty(t, alerts[i].Title)
			}
		})
	}
}

func TestDetectCollectsAllKeywords(t *testing.T) {
	alerts := Detect("I feel unsafe, I was harassed and stalked")
	require.Len(t, alerts, 1)
	assert.Equal(t, []string{"harassed", "stalked", "unsafe"}, alerts[0].Keywords)
	assert.Equal(t, "https://www.thehotline.org/", alerts[0].Link)
}

func TestParseCategory(t *testing.T) {
	c, ok := ParseCategory("")
	assert.True(t, ok)
	assert.Equal(t, CategorySuicide, c)

	c, ok = ParseCategory(" Assault ")
	assert.True(t, ok)
	assert.Equal(t, CategoryAssault, c)

	_, ok = ParseCategory("fire")
	assert.False(t, ok)
}

func TestSuggestFor(t *testing.T) {
	assert.Equal(t, Suggestions{BreathingExercise: true}, SuggestFor("Let's try a 4-7-8 Breathing pattern"))
	assert.Equal(t, Suggestions{Meditation: true}, SuggestFor("A short meditation may help"))
	assert.Equal(t, Suggestions{BreathingExercise: true, Meditation: true}, SuggestFor("take a breath, then meditate"))
	assert.Equal(t, Suggestions{}, SuggestFor("How was your day?"))
}
