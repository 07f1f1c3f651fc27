package usecase

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/suppchat/backend/internal/platform/textfold"
)

// Compiled regex patterns for question normalization
var (
	// Anything that is not a letter, digit, apostrophe or whitespace
	questionPunctuationPattern = regexp.MustCompile(`[^\p{L}\p{N}'\s]+`)

	multiSpacePattern = regexp.MustCompile(`\s+`)
)

// questionStopWords are greetings, articles, pronouns and filler verbs in
// French and English. Stored without diacritics.
var questionStopWords = map[string]bool{
	// French greetings and politeness
	"bonjour": true, "bonsoir": true, "salut": true, "coucou": true, "merci": true,
	"svp": true, "stp": true, "plait": true, "madame": true, "monsieur": true,
	// French articles, prepositions, conjunctions
	"le": true, "la": true, "les": true, "un": true, "une": true, "des": true,
	"du": true, "de": true, "au": true, "aux": true, "et": true, "ou": true,
	"mais": true, "donc": true, "car": true, "ni": true, "or": true, "en": true,
	"dans": true, "sur": true, "sous": true, "pour": true, "par": true, "avec": true,
	"sans": true, "entre": true, "vers": true, "chez": true, "que": true, "qu": true,
	"qui": true, "quoi": true, "quel": true, "quelle": true, "quels": true, "quelles": true,
	"ce": true, "cet": true, "cette": true, "ces": true, "ca": true, "cela": true, "ceci": true,
	"ne": true, "pas": true, "tres": true, "aussi": true, "alors": true, "si": true,
	// French pronouns and possessives
	"je": true, "tu": true, "il": true, "elle": true, "on": true, "nous": true,
	"vous": true, "ils": true, "elles": true, "me": true, "te": true, "se": true,
	"moi": true, "toi": true, "lui": true, "leur": true, "leurs": true, "mon": true,
	"ma": true, "mes": true, "ton": true, "ta": true, "tes": true, "son": true,
	"sa": true, "ses": true, "notre": true, "votre": true, "nos": true, "vos": true,
	// French common verbs
	"est": true, "sont": true, "suis": true, "es": true, "etre": true, "ai": true,
	"as": true, "avez": true, "ont": true, "avoir": true, "peux": true, "peut": true,
	"pouvez": true, "puis": true, "voudrais": true, "veux": true, "voulez": true,
	"faut": true, "fait": true, "faire": true, "dois": true, "doit": true,
	"devrais": true, "savoir": true, "aimerais": true, "conseillez": true,
	// English greetings and politeness
	"hi": true, "hello": true, "hey": true, "thanks": true, "thank": true, "please": true,
	// English articles, prepositions, conjunctions
	"the": true, "an": true, "and": true, "but": true, "of": true, "to": true,
	"in": true, "at": true, "for": true, "with": true, "by": true, "from": true,
	"about": true, "between": true, "than": true, "so": true, "very": true, "also": true,
	// English pronouns and determiners
	"you": true, "he": true, "she": true, "it": true, "we": true, "they": true,
	"my": true, "your": true, "his": true, "her": true, "its": true, "our": true,
	"their": true, "this": true, "that": true, "these": true, "those": true,
	"what": true, "which": true, "who": true, "there": true, "any": true, "some": true,
	// English common verbs
	"is": true, "are": true, "am": true, "was": true, "were": true, "be": true,
	"been": true, "do": true, "does": true, "did": true, "can": true, "could": true,
	"would": true, "should": true, "will": true, "have": true, "has": true,
	"want": true, "need": true, "know": true,
}

// NormalizeQuestion canonicalizes a free-text question into an
// order-independent key. It is pure and idempotent.
func NormalizeQuestion(text string) string {
	if text == "" {
		return ""
	}

	folded := textfold.Fold(text)
	folded = questionPunctuationPattern.ReplaceAllString(folded, " ")
	folded = multiSpacePattern.ReplaceAllString(folded, " ")

	var kept []string
	for _, token := range strings.Fields(folded) {
		// Elided articles ("l'huile", "qu'est") split into separate tokens
		for _, part := range strings.Split(token, "'") {
			if utf8.RuneCountInString(part) <= 1 {
				continue
			}
			if questionStopWords[part] {
				continue
			}
			kept = append(kept, part)
		}
	}

	sort.Strings(kept)
	return strings.Join(kept, " ")
}
