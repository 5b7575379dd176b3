package faq

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Item is a single question with its answer. Answers are HTML.
type Item struct {
	Question string `yaml:"question"`
	Answer   string `yaml:"answer"`
}

// File is the on-disk layout of a FAQ file
type File struct {
	Items []Item `yaml:"items"`
}

// Default returns the built-in FAQ
func Default() []Item {
	return []Item{
		{
			Question: "How do I add an organization?",
			Answer: "📝 Tap «Add to site», choose a type and fill in the details.\n\n" +
				"There are two ways:\n" +
				"1️⃣ On your own: register on the site\n" +
				"2️⃣ Through the bot: send the data to the administrator",
		},
		{
			Question: "How much does a listing cost?",
			Answer: "💰 Listing organizations, services and ads is <b>FREE</b>!\n\n" +
				"Only advertising (banners, featured positions) is paid.",
		},
		{
			Question: "How do I remove my data?",
			Answer: "🗑 Write to «Feedback» or «Update data».\n\n" +
				"Say what should be removed and why.",
		},
		{
			Question: "How long until it is published?",
			Answer: "⏱ Usually 1-2 working days.\n\n" +
				"The data appears on the site after the administrator reviews it.",
		},
		{
			Question: "Can I edit my data?",
			Answer: "✅ Yes! Use «🔐 My organization».\n\n" +
				"Confirm ownership and you will get editing access.",
		},
		{
			Question: "How do I contact the administrator?",
			Answer:   "👤 Write in «💬 Feedback».",
		},
	}
}

// Load reads FAQ items from a YAML file. An empty path returns the defaults.
func Load(path string) ([]Item, error) {
	if path == "" {
		return Default(), nil
	}

	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read FAQ file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(body, &f); err != nil {
		return nil, fmt.Errorf("could not parse FAQ file: %w", err)
	}
	if len(f.Items) == 0 {
		return nil, fmt.Errorf("FAQ file %s has no items", path)
	}
	for i, item := range f.Items {
		if item.Question == "" || item.Answer == "" {
			return nil, fmt.Errorf("FAQ item %d is missing a question or an answer", i+1)
		}
	}
	return f.Items, nil
}
