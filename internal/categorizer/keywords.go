package categorizer

import (
	"strings"
	"unicode"
)

const (
	KeywordConfidence  = 0.7
	FallbackConfidence = 0.5
	FallbackCategory   = "Other"
)

type keywordRule struct {
	category string
	words    []string
}

// Rules are checked in order; the first category with a matching word wins.
var keywordRules = []keywordRule{
	{"Food & Dining", []string{"restaurant", "cafe", "coffee", "starbucks", "mcdonald", "burger", "pizza", "lunch", "dinner", "breakfast", "zomato", "swiggy", "uber eats", "takeaway", "meal", "food"}},
	{"Groceries", []string{"grocer", "supermarket", "bigbasket", "market", "vegetables", "milk"}},
	{"Transportation", []string{"uber", "ola", "taxi", "cab", "fuel", "petrol", "diesel", "gas station", "metro", "bus", "train", "parking", "toll"}},
	{"Shopping", []string{"amazon", "flipkart", "myntra", "mall", "clothes", "shoes", "shopping", "store"}},
	{"Entertainment", []string{"netflix", "spotify", "prime video", "hotstar", "movie", "cinema", "concert", "game", "ticket"}},
	{"Technology", []string{"iphone", "laptop", "phone", "computer", "software", "electronics", "apple", "headphones"}},
	{"Bills & Utilities", []string{"electricity", "water bill", "internet", "broadband", "wifi", "mobile recharge", "recharge", "utility", "bill", "bills"}},
	{"Healthcare", []string{"pharmacy", "medicine", "doctor", "hospital", "clinic", "dental", "health", "gym"}},
	{"Education", []string{"course", "tuition", "school", "college", "book", "udemy", "exam"}},
	{"Travel", []string{"flight", "hotel", "airbnb", "booking", "trip", "airline", "vacation"}},
	{"Personal Care", []string{"salon", "haircut", "spa", "cosmetics", "barber"}},
	{"Housing", []string{"rent", "maintenance", "plumber", "furniture", "mortgage"}},
	{"Income", []string{"salary", "payroll", "refund", "cashback", "dividend", "interest"}},
}

// matches treats phrases as substrings and single words as whole tokens, or
// token prefixes for words of five letters or more ("grocer" in
// "groceries", but "bus" not in "business").
func matches(text string, tokens []string, word string) bool {
	if strings.Contains(word, " ") {
		return strings.Contains(text, word)
	}
	for _, tok := range tokens {
		if tok == word || (len(word) >= 5 && strings.HasPrefix(tok, word)) {
			return true
		}
	}
	return false
}

// KeywordCategorize maps a description onto a category using the fixed
// keyword table. It never fails: unmatched text is "Other".
func KeywordCategorize(description string) Result {
	text := strings.ToLower(description)
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, rule := range keywordRules {
		for _, w := range rule.words {
			if matches(text, tokens, w) {
				return Result{
					Description: description,
					Category:    rule.category,
					Confidence:  KeywordConfidence,
					Source:      SourceKeyword,
				}
			}
		}
	}
	return Result{
		Description: description,
		Category:    FallbackCategory,
		Confidence:  FallbackConfidence,
		Source:      SourceKeyword,
	}
}
