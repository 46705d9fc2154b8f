package auditor

// Audit is the complete report for one webpage.
type Audit struct {
	URL             string       `json:"url"`
	Title           TitleAudit   `json:"title"`
	Meta            MetaAudit    `json:"meta"`
	Headings        HeadingAudit `json:"headings"`
	Content         ContentAudit `json:"content"`
	Performance     Performance  `json:"performance"`
	Links           LinkAudit    `json:"links"`
	Scores          Scores       `json:"scores"`
	Issues          []string     `json:"issues"`
	Recommendations []string     `json:"recommendations"`
}

// Scores groups the section scores into the report-level summary.
type Scores struct {
	Technical float64 `json:"technical"`
	Content   float64 `json:"content"`
	Authority float64 `json:"authority"`
	Overall   float64 `json:"overall"`
}

type TitleAudit struct {
	Title    string `json:"title"`
	Length   int    `json:"length"`
	HasTitle bool   `json:"hasTitle"`
	Score    int    `json:"score"`
}

type MetaAudit struct {
	Description    string `json:"description"`
	DescriptionLen int    `json:"descriptionLength"`
	HasDescription bool   `json:"hasDescription"`
	Keywords       string `json:"keywords"`
	HasKeywords    bool   `json:"hasKeywords"`
	Robots         string `json:"robots"`
	Viewport       string `json:"viewport"`
	Score          int    `json:"score"`
}

type HeadingAudit struct {
	H1Count int      `json:"h1Count"`
	H2Count int      `json:"h2Count"`
	H3Count int      `json:"h3Count"`
	H1Text  []string `json:"h1Text"`
	Score   int      `json:"score"`
}

type ContentAudit struct {
	WordCount     int  `json:"wordCount"`
	HasImages     bool `json:"hasImages"`
	ImagesWithAlt int  `json:"imagesWithAlt"`
	TotalImages   int  `json:"totalImages"`
	Score         int  `json:"score"`
}

type Performance struct {
	PageSize         int    `json:"pageSize"`
	LoadTime         int    `json:"loadTime"`
	MobileOptimized  bool   `json:"mobileOptimized"`
	Score            int    `json:"score"`
	PageSizeSeverity string `json:"pageSizeSeverity"`
	LoadTimeSeverity string `json:"loadTimeSeverity"`
}

type LinkAudit struct {
	InternalLinks int `json:"internalLinks"`
	ExternalLinks int `json:"externalLinks"`
	BrokenLinks   int `json:"brokenLinks"`
	Score         int `json:"score"`
}
