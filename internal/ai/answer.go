package ai

// Answer is the outcome of asking a model to assess a document. It is either
// a StructuredAnswer or a RawAnswer; callers must handle both.
type Answer interface {
	answer()
}

// StructuredAnswer is a model response that followed the requested schema.
type StructuredAnswer struct {
	Matched     []string `json:"matched" mapstructure:"matched"`
	Missing     []string `json:"missing" mapstructure:"missing"`
	Score       float64  `json:"score" mapstructure:"score"`
	Explanation string   `json:"explanation" mapstructure:"explanation"`
}

// RawAnswer keeps model output that could not be parsed. It carries no score.
type RawAnswer struct {
	Text string `json:"text"`
}

func (StructuredAnswer) answer() {}
func (RawAnswer) answer()        {}
