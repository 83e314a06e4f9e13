// Package achievements tracks per-user unlocks over the leaderboard: score
// and rank thresholds plus a closed set of special conditions.
package achievements

// Tier orders achievement prestige. Higher is rarer.
type Tier int

const (
	Bronze Tier = iota + 1
	Silver
	Gold
	Platinum
	Diamond
)

var tierNames = map[Tier]string{
	Bronze:   "bronze",
	Silver:   "silver",
	Gold:     "gold",
	Platinum: "platinum",
	Diamond:  "diamond",
}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return "bronze"
}

// ParseTier maps a stored tier name back to its Tier. Unknown names rank
// lowest.
func ParseTier(s string) Tier {
	for t, name := range tierNames {
		if name == s {
			return t
		}
	}
	return 0
}

// XP returns the experience bonus granted when an achievement of this tier
// unlocks.
func (t Tier) XP() int {
	switch t {
	case Bronze:
		return 2
	case Silver:
		return 5
	case Gold:
		return 10
	case Platinum:
		return 20
	case Diamond:
		return 50
	default:
		return 0
	}
}

// Special condition tags. The set is closed: evaluation switches over these
// and nothing else.
const (
	SpecialFirstOffense    = "first_offense"
	SpecialAltExposed      = "alt_exposed"
	SpecialMemeRepeater    = "meme_repeater"
	SpecialMemeCollector   = "meme_collector"
	SpecialStreak          = "streak"
	SpecialDramaticExit    = "dramatic_exit"
	SpecialSerialFarewell  = "serial_farewell"
	SpecialLurkerLeaver    = "lurker_leaver"
	SpecialHostileTone     = "hostile_tone"
	SpecialMultiCommunity  = "multi_community"
	SpecialHistoryScrubber = "history_scrubber"
	SpecialTrollingRisk    = "trolling_risk"
	SpecialDeception       = "deception"
)

// Definition is one static achievement. Exactly one of ScoreThreshold,
// RankThreshold or Special drives it.
type Definition struct {
	ID             string
	Name           string
	Tier           Tier
	ScoreThreshold float64
	RankThreshold  int
	Special        string
}

// Definitions is the static table, in definition order. Ties between
// same-tier unlocks break on position here.
var Definitions = []Definition{
	// Score thresholds.
	{ID: "local_menace", Name: "Local Menace", Tier: Bronze, ScoreThreshold: 5},
	{ID: "serial_brigader", Name: "Serial Brigader", Tier: Silver, ScoreThreshold: 10},
	{ID: "dedicated_hater", Name: "Dedicated Hater", Tier: Gold, ScoreThreshold: 25},
	{ID: "obsession", Name: "Obsession", Tier: Platinum, ScoreThreshold: 50},
	{ID: "arch_nemesis", Name: "Arch-Nemesis", Tier: Diamond, ScoreThreshold: 100},

	// Rank thresholds.
	{ID: "chart_debut", Name: "Chart Debut", Tier: Bronze, RankThreshold: 10},
	{ID: "podium_finish", Name: "Podium Finish", Tier: Gold, RankThreshold: 3},
	{ID: "public_enemy", Name: "Public Enemy No. 1", Tier: Platinum, RankThreshold: 1},

	// Special conditions.
	{ID: "first_timer", Name: "First Timer", Tier: Bronze, Special: SpecialFirstOffense},
	{ID: "unmasked", Name: "Unmasked", Tier: Gold, Special: SpecialAltExposed},
	{ID: "broken_record", Name: "Broken Record", Tier: Silver, Special: SpecialMemeRepeater},
	{ID: "meme_connoisseur", Name: "Meme Connoisseur", Tier: Silver, Special: SpecialMemeCollector},
	{ID: "daily_grind", Name: "Daily Grind", Tier: Silver, Special: SpecialStreak},
	{ID: "dramatic_exit", Name: "Dramatic Exit", Tier: Bronze, Special: SpecialDramaticExit},
	{ID: "revolving_door", Name: "Revolving Door", Tier: Silver, Special: SpecialSerialFarewell},
	{ID: "silent_departure", Name: "Silent Departure", Tier: Bronze, Special: SpecialLurkerLeaver},
	{ID: "sharp_tongue", Name: "Sharp Tongue", Tier: Bronze, Special: SpecialHostileTone},
	{ID: "road_warrior", Name: "Road Warrior", Tier: Silver, Special: SpecialMultiCommunity},
	{ID: "history_scrubber", Name: "History Scrubber", Tier: Gold, Special: SpecialHistoryScrubber},
	{ID: "agent_of_chaos", Name: "Agent of Chaos", Tier: Gold, Special: SpecialTrollingRisk},
	{ID: "master_of_disguise", Name: "Master of Disguise", Tier: Platinum, Special: SpecialDeception},
}

// DefinitionByID looks up a definition, reporting whether it exists.
func DefinitionByID(id string) (Definition, bool) {
	for _, d := range Definitions {
		if d.ID == id {
			return d, true
		}
	}
	return Definition{}, false
}
