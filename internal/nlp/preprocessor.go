package nlp

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// NormalizedQuery is the preprocessed form of one question.
type NormalizedQuery struct {
	Raw        string   `json:"raw"`
	Normalized string   `json:"normalized"`
	Tokens     []string `json:"tokens"`
	Keywords   []string `json:"keywords"`
	Entities   Entities `json:"entities"`
}

// Entities holds gazetteer and pattern matches found in the raw text.
type Entities struct {
	Numbers []string `json:"numbers"`
	Dates   []string `json:"dates"`
	Regions []string `json:"regions"`
	Metrics []string `json:"metrics"`
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	// keeps letters, digits, underscore, whitespace and ? . , ! - + = < >
	punctuationRe = regexp.MustCompile(`[^\p{L}\p{N}_\s?.,!\-+=<>]`)
	tokenRe       = regexp.MustCompile(`[\p{L}\p{N}_]+`)
	numberRe      = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)
	dateRe        = regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`)
)

var stopWords = toSet(
	"the", "a", "an", "and", "or", "but", "if", "while", "at", "by", "for",
	"with", "about", "against", "between", "into", "through", "during",
	"before", "after", "above", "below", "to", "from", "up", "down", "in",
	"out", "on", "off", "over", "under", "again", "further", "then",
	"once", "here", "there", "when", "where", "why", "how", "all", "any",
	"both", "each", "few", "more", "most", "other", "some", "such", "no",
	"nor", "not", "only", "own", "same", "so", "than", "too", "very", "s",
	"t", "can", "will", "just", "don", "don't", "should", "should've", "now",
	"d", "ll", "m", "o", "re", "ve", "y", "ain", "aren", "aren't", "couldn",
	"couldn't", "didn", "didn't", "doesn", "doesn't", "hadn", "hadn't",
	"hasn", "hasn't", "haven", "haven't", "isn", "isn't", "ma", "mightn",
	"mightn't", "mustn", "mustn't", "needn", "needn't", "shan", "shan't",
	"shouldn", "shouldn't", "wasn", "wasn't", "weren", "weren't", "won",
	"won't", "wouldn", "wouldn't",
)

var businessTerms = toSet(
	"sales", "revenue", "profit", "cost", "expense", "budget", "forecast",
	"kpi", "metric", "dashboard", "report", "analysis", "trend", "growth",
	"performance", "target", "goal", "average", "total", "sum", "count",
	"maximum", "minimum", "percentage", "ratio", "comparison", "ranking",
)

var (
	regionGazetteer = []string{"ile-de-france", "provence", "nouvelle-aquitaine", "occitanie", "auvergne"}
	metricGazetteer = []string{"sales", "revenue", "profit", "cost", "budget"}
)

const maxFallbackKeywords = 5

// Preprocessor normalizes questions before classification. It holds no
// mutable state and is safe for concurrent use.
type Preprocessor struct{}

func NewPreprocessor() *Preprocessor {
	return &Preprocessor{}
}

// Process runs normalization, keyword and entity extraction on text.
func (p *Preprocessor) Process(text string) NormalizedQuery {
	tokens := p.tokens(text)
	return NormalizedQuery{
		Raw:        text,
		Normalized: strings.Join(tokens, " "),
		Tokens:     tokens,
		Keywords:   keywordsFrom(tokens),
		Entities:   p.ExtractEntities(text),
	}
}

// Normalize lower-cases text, strips punctuation and drops stop words.
func (p *Preprocessor) Normalize(text string) string {
	normalized := strings.Join(p.tokens(text), " ")
	log.Debug().Str("query", text).Str("normalized", normalized).Msg("preprocessed query")
	return normalized
}

func (p *Preprocessor) tokens(text string) []string {
	s := strings.ToLower(text)
	s = strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
	s = punctuationRe.ReplaceAllString(s, "")

	tokens := make([]string, 0)
	for _, tok := range tokenRe.FindAllString(s, -1) {
		if _, stop := stopWords[tok]; !stop {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// ExtractKeywords returns business terms and numbers in order of
// appearance, or the first few tokens when there are none.
func (p *Preprocessor) ExtractKeywords(text string) []string {
	return keywordsFrom(p.tokens(text))
}

func keywordsFrom(tokens []string) []string {
	keywords := make([]string, 0)
	for _, tok := range tokens {
		if _, ok := businessTerms[tok]; ok || isNumber(tok) {
			keywords = append(keywords, tok)
		}
	}
	if len(keywords) == 0 {
		n := min(len(tokens), maxFallbackKeywords)
		keywords = append(keywords, tokens[:n]...)
	}
	return keywords
}

// ExtractEntities finds numbers, dates and gazetteer terms in text.
func (p *Preprocessor) ExtractEntities(text string) Entities {
	lower := strings.ToLower(text)
	return Entities{
		Numbers: nonNil(numberRe.FindAllString(text, -1)),
		Dates:   nonNil(dateRe.FindAllString(text, -1)),
		Regions: containedIn(lower, regionGazetteer),
		Metrics: containedIn(lower, metricGazetteer),
	}
}

func containedIn(text string, terms []string) []string {
	found := make([]string, 0)
	for _, t := range terms {
		if strings.Contains(text, t) {
			found = append(found, t)
		}
	}
	return found
}

func isNumber(tok string) bool {
	_, err := strconv.ParseFloat(tok, 64)
	return err == nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
