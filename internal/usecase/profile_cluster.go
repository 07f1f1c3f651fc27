package usecase

import (
	"sort"
	"strings"

	"github.com/suppchat/backend/internal/domain"
	"github.com/suppchat/backend/internal/platform/textfold"
)

// Cluster sentinels
const (
	bandUnknown = "unknown"
	goalNone    = "none"
	dietNone    = "nodiet"
	noCondition = "none"
)

// conditionVocabulary maps a condition tag to the folded words that reveal it
var conditionVocabulary = map[string][]string{
	"diabetes":     {"diabete", "diabetes", "diabetique", "diabetic", "glycemie"},
	"hypertension": {"hypertension", "tension", "blood pressure"},
	"heart":        {"coeur", "cardiaque", "cardio", "heart"},
	"thyroid":      {"thyroide", "thyroid", "hashimoto"},
	"cholesterol":  {"cholesterol"},
	"arthritis":    {"arthrite", "arthrose", "arthritis", "rhumatisme"},
	"kidney":       {"rein", "reins", "renal", "renale", "kidney"},
	"liver":        {"foie", "hepatique", "liver"},
	"pregnancy":    {"enceinte", "grossesse", "pregnant", "pregnancy", "allaitement"},
	"allergy":      {"allergie", "allergique", "allergy", "allergic"},
	"anemia":       {"anemie", "anemia", "carence en fer"},
	"osteoporosis": {"osteoporose", "osteoporosis"},
}

// dietVocabulary is checked in order; the first match wins
var dietVocabulary = []struct {
	tag   string
	words []string
}{
	{"vegan", []string{"vegan", "vegane", "vegetalien", "vegetalienne"}},
	{"vegetarian", []string{"vegetarien", "vegetarienne", "vegetarian", "veggie"}},
	{"halal", []string{"halal"}},
	{"kosher", []string{"kosher", "casher", "cacher"}},
}

// DeriveCluster buckets a profile into a coarse, hashable cluster
func DeriveCluster(profile domain.UserProfile) domain.ProfileCluster {
	return domain.ProfileCluster{
		AgeBand:     ageBand(profile.Age),
		WeightBand:  weightBand(profile.WeightKg),
		PrimaryGoal: primaryGoal(profile.Goals),
		Conditions:  conditionTags(profile.MedicalConditions),
		Diet:        dietTag(profile.Diet),
	}
}

// ClusterHash returns a deterministic key for the cluster, independent of
// the order conditions were listed in.
func ClusterHash(cluster domain.ProfileCluster) string {
	conditions := append([]string(nil), cluster.Conditions...)
	sort.Strings(conditions)
	joined := strings.Join(conditions, ",")
	if joined == "" {
		joined = noCondition
	}

	diet := cluster.Diet
	if diet == "" {
		diet = dietNone
	}

	return "age=" + orUnknown(cluster.AgeBand) +
		"|weight=" + orUnknown(cluster.WeightBand) +
		"|goal=" + orDefault(cluster.PrimaryGoal, goalNone) +
		"|cond=" + joined +
		"|diet=" + diet
}

func ageBand(age int) string {
	switch {
	case age <= 0:
		return bandUnknown
	case age < 18:
		return "<18"
	case age < 30:
		return "18-29"
	case age < 45:
		return "30-44"
	case age < 60:
		return "45-59"
	default:
		return "60+"
	}
}

func weightBand(kg int) string {
	switch {
	case kg <= 0:
		return bandUnknown
	case kg < 60:
		return "<60"
	case kg < 80:
		return "60-79"
	case kg < 100:
		return "80-99"
	default:
		return "100+"
	}
}

// primaryGoal is the first non-empty goal, normalized
func primaryGoal(goals []string) string {
	for _, goal := range goals {
		if g := textfold.Words(goal); g != "" {
			return strings.ReplaceAll(g, " ", "_")
		}
	}
	return goalNone
}

// conditionTags matches free-text conditions against the vocabulary and
// returns the sorted, deduplicated tags
func conditionTags(conditions []string) []string {
	seen := make(map[string]bool)
	for _, condition := range conditions {
		text := " " + textfold.Words(condition) + " "
		for tag, words := range conditionVocabulary {
			if seen[tag] {
				continue
			}
			for _, word := range words {
				if strings.Contains(text, " "+word+" ") {
					seen[tag] = true
					break
				}
			}
		}
	}

	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

func dietTag(diet string) string {
	text := " " + textfold.Words(diet) + " "
	for _, entry := range dietVocabulary {
		for _, word := range entry.words {
			if strings.Contains(text, " "+word+" ") {
				return entry.tag
			}
		}
	}
	return dietNone
}

func orUnknown(s string) string {
	return orDefault(s, bandUnknown)
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
