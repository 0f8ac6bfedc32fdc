package analysis

// TopicItem is one topic as returned by the model.
type TopicItem struct {
	Name       string   `json:"name" jsonschema:"description=Short name of the topic"`
	StartTime  float64  `json:"start_time" jsonschema:"description=Start of the topic in seconds"`
	EndTime    float64  `json:"end_time" jsonschema:"description=End of the topic in seconds"`
	Importance *float64 `json:"importance,omitempty" jsonschema:"minimum=0,maximum=1"`
}

type TopicsResponse struct {
	Topics []TopicItem `json:"topics"`
}

type HierarchyResponse struct {
	Hierarchy map[string][]string `json:"hierarchy" jsonschema:"description=Parent topic name mapped to its child topic names"`
}

type SentimentResponse struct {
	SentimentScore *float64 `json:"sentiment_score" jsonschema:"minimum=-1,maximum=1"`
	Confidence     *float64 `json:"confidence,omitempty" jsonschema:"minimum=0,maximum=1"`
}
