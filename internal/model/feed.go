package model

// FeedResult 单个订阅源的抓取结果
type FeedResult struct {
	URL      string `json:"url"`
	Title    string `json:"title,omitempty"`
	Parsed   int    `json:"parsed"`
	Inserted int    `json:"inserted"`
	Error    string `json:"error,omitempty"`
}

// IngestReport 一次抓取的汇总
type IngestReport struct {
	OK            bool         `json:"ok"`
	TotalParsed   int          `json:"totalParsed"`
	TotalInserted int          `json:"totalInserted"`
	PerFeed       []FeedResult `json:"perFeed"`
}
