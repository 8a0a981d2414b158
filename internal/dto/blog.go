package dto

// PublishBlogPostRequest holds the text fields of the publish form.
type PublishBlogPostRequest struct {
	Title     string `form:"title" json:"title"`
	ShortInfo string `form:"shortInfo" json:"shortInfo"`
	Author    string `form:"author" json:"author"`
	Content   string `form:"content" json:"content"`
}
