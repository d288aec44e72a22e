package model

// VideoResult 与头条相关的视频
type VideoResult struct {
	VideoID     string `json:"videoId"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Thumbnail   string `json:"thumbnail"`
	PublishedAt string `json:"publishedAt"`
}
