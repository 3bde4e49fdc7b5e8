// Package model defines core data structures and types for the blog application.
package model

import (
	"html/template"
	"slices"
	"strconv"
	"strings"
)

type PostID int

func (id PostID) String() string {
	return strconv.Itoa(int(id))
}

// ParsePostID converts a path segment into a PostID. Only positive integers are valid ids.
func ParsePostID(s string) (PostID, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return PostID(n), true
}

// Post is a single blog entry as stored in the posts document.
// Documents written before likes existed have no "like" key; it decodes as 0.
type Post struct {
	ID      PostID `json:"id"`
	Author  string `json:"author"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Like    int    `json:"like"`
}

// RenderedPost is a Post ready for display.
type RenderedPost struct {
	Post

	HTML template.HTML

	// Used for cache busting and as the rendered markdown cache key.
	ContentHash string
}

// SortByTitleDesc sorts posts by title in reverse alphabetical order.
// Posts with equal titles keep their stored order.
func SortByTitleDesc(posts []Post) {
	slices.SortStableFunc(posts, func(a, b Post) int {
		return strings.Compare(b.Title, a.Title)
	})
}
