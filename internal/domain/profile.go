package domain

// UserProfile is what the chat widget knows about the customer.
// Zero values mean the attribute was not provided.
type UserProfile struct {
	Age               int      `json:"age,omitempty"`
	WeightKg          int      `json:"weightKg,omitempty"`
	Goals             []string `json:"goals,omitempty"`
	MedicalConditions []string `json:"medicalConditions,omitempty"`
	Diet              string   `json:"diet,omitempty"`
}

// ProfileCluster is a coarse bucket of similar profiles.
// It exists only to produce a cluster hash.
type ProfileCluster struct {
	AgeBand     string   `json:"ageBand"`
	WeightBand  string   `json:"weightBand"`
	PrimaryGoal string   `json:"primaryGoal"`
	Conditions  []string `json:"conditions"`
	Diet        string   `json:"diet"`
}
