package models

import "time"

// BlogAuthorDefault is used when a post is submitted without an author.
const BlogAuthorDefault = "Admin"

// BlogPost is a published article. Posts are immutable once created.
type BlogPost struct {
	ID        string    `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	ShortInfo string    `db:"short_info" json:"shortInfo"`
	Author    string    `db:"author" json:"author"`
	Content   string    `db:"content" json:"content"`
	ImageRef  *string   `db:"image_ref" json:"imageRef,omitempty"`
	ImageURL  string    `db:"-" json:"imageUrl,omitempty"`
	Date      time.Time `db:"date" json:"date"`
}
