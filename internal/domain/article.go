package domain

import (
	"strings"
	"time"
)

// Article is the unit of classification: a scientific record with title and abstract.
type Article struct {
	ID          string
	Title       string
	Abstract    string
	URL         string
	Source      string
	PublishedAt time.Time
}

// NewArticle trims the inputs and rejects records with an empty title or abstract.
func NewArticle(title, abstract string) (Article, error) {
	article := Article{
		Title:    strings.TrimSpace(title),
		Abstract: strings.TrimSpace(abstract),
	}
	if err := article.Validate(); err != nil {
		return Article{}, err
	}
	return article, nil
}

// Validate reports ErrValidation when a mandatory field is blank.
func (a Article) Validate() error {
	switch {
	case strings.TrimSpace(a.Title) == "" && strings.TrimSpace(a.Abstract) == "":
		return NewValidationError("title and abstract are required")
	case strings.TrimSpace(a.Title) == "":
		return NewValidationError("title is required")
	case strings.TrimSpace(a.Abstract) == "":
		return NewValidationError("abstract is required")
	}
	return nil
}

// Text joins title and abstract the way backends expect it, with whitespace runs collapsed.
func (a Article) Text() string {
	return collapseSpaces(a.Title) + "\n" + collapseSpaces(a.Abstract)
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
