package usecase

import (
	"reflect"
	"testing"

	"github.com/suppchat/backend/internal/domain"
)

func TestDeriveCluster(t *testing.T) {
	testCases := []struct {
		name    string
		profile domain.UserProfile
		want    domain.ProfileCluster
	}{
		{
			name: "full profile",
			profile: domain.UserProfile{
				Age:               34,
				WeightKg:          72,
				Goals:             []string{"Perte de poids", "énergie"},
				MedicalConditions: []string{"Hypertension artérielle", "diabète de type 2"},
				Diet:              "Végétarien",
			},
			want: domain.ProfileCluster{
				AgeBand:     "30-44",
				WeightBand:  "60-79",
				PrimaryGoal: "perte_de_poids",
				Conditions:  []string{"diabetes", "hypertension"},
				Diet:        "vegetarian",
			},
		},
		{
			name:    "empty profile",
			profile: domain.UserProfile{},
			want: domain.ProfileCluster{
				AgeBand:     "unknown",
				WeightBand:  "unknown",
				PrimaryGoal: "none",
				Conditions:  []string{},
				Diet:        "nodiet",
			},
		},
		{
			name: "unknown condition and diet ignored",
			profile: domain.UserProfile{
				Age:               70,
				WeightKg:          105,
				Goals:             []string{"", "sleep"},
				MedicalConditions: []string{"migraine"},
				Diet:              "paleo",
			},
			want: domain.ProfileCluster{
				AgeBand:     "60+",
				WeightBand:  "100+",
				PrimaryGoal: "sleep",
				Conditions:  []string{},
				Diet:        "nodiet",
			},
		},
		{
			name: "duplicate conditions collapse",
			profile: domain.UserProfile{
				Age:               17,
				WeightKg:          55,
				MedicalConditions: []string{"problème de cœur", "heart disease"},
				Diet:              "vegan",
			},
			want: domain.ProfileCluster{
				AgeBand:     "<18",
				WeightBand:  "<60",
				PrimaryGoal: "none",
				Conditions:  []string{"heart"},
				Diet:        "vegan",
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := DeriveCluster(tc.profile)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("DeriveCluster() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestClusterHash(t *testing.T) {
	t.Run("stable under condition permutation", func(t *testing.T) {
		a := domain.UserProfile{Age: 50, WeightKg: 90, Goals: []string{"joints"}, MedicalConditions: []string{"arthrose", "cholestérol", "thyroïde"}}
		b := domain.UserProfile{Age: 52, WeightKg: 85, Goals: []string{"Joints"}, MedicalConditions: []string{"thyroid", "arthritis", "cholesterol"}}

		hashA := ClusterHash(DeriveCluster(a))
		hashB := ClusterHash(DeriveCluster(b))
		if hashA != hashB {
			t.Errorf("hashes differ: %q vs %q", hashA, hashB)
		}
	})

	t.Run("sorts unsorted conditions itself", func(t *testing.T) {
		cluster := domain.ProfileCluster{AgeBand: "18-29", WeightBand: "60-79", PrimaryGoal: "muscle", Conditions: []string{"thyroid", "anemia"}, Diet: "halal"}
		want := "age=18-29|weight=60-79|goal=muscle|cond=anemia,thyroid|diet=halal"
		if got := ClusterHash(cluster); got != want {
			t.Errorf("ClusterHash() = %q, want %q", got, want)
		}
		if cluster.Conditions[0] != "thyroid" {
			t.Error("ClusterHash must not reorder the caller's slice")
		}
	})

	t.Run("sentinels for missing values", func(t *testing.T) {
		want := "age=unknown|weight=unknown|goal=none|cond=none|diet=nodiet"
		if got := ClusterHash(domain.ProfileCluster{}); got != want {
			t.Errorf("ClusterHash() = %q, want %q", got, want)
		}
	})

	t.Run("different diets hash differently", func(t *testing.T) {
		vegan := ClusterHash(DeriveCluster(domain.UserProfile{Age: 30, Diet: "vegan"}))
		kosher := ClusterHash(DeriveCluster(domain.UserProfile{Age: 30, Diet: "casher"}))
		if vegan == kosher {
			t.Errorf("expected different hashes, both %q", vegan)
		}
	})
}
