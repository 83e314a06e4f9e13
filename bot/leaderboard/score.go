package leaderboard

import "sort"

// CommunityScore ranks communities: hateful links weigh triple.
func CommunityScore(e *CommunityEntry) float64 {
	return float64(e.AdversarialCount) + 3*float64(e.HatefulCount)
}

// UserScore ranks users across every signal the pipeline gathers.
func UserScore(e *UserEntry) float64 {
	return float64(e.AdversarialCount) +
		3*float64(e.HatefulCount) +
		2*float64(e.ModLogSpamCount) +
		2*float64(e.FlaggedContentCount) +
		0.5*float64(e.TributeRequestCount)
}

type ranked struct {
	name  string
	score float64
}

// recomputeTops rebuilds both top-10 projections. Alts never rank.
func (b *Board) recomputeTops() {
	communities := make([]ranked, 0, len(b.Communities))
	for name, e := range b.Communities {
		if e.IsAltOf != "" {
			continue
		}
		communities = append(communities, ranked{name, CommunityScore(e)})
	}

	users := make([]ranked, 0, len(b.Users))
	for name, e := range b.Users {
		if e.IsAltOf != "" {
			continue
		}
		users = append(users, ranked{name, UserScore(e)})
	}

	b.TopCommunities = projectNames(communities, topSize)
	b.TopUsers = projectNames(users, topSize)
}

func projectNames(entries []ranked, limit int) []string {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		return entries[i].name < entries[j].name
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	names := make([]string, len(entries))
	for i, r := range entries {
		names[i] = r.name
	}
	return names
}

// RecomputeTops rebuilds the top lists after an out-of-band score change
// (enrichment writes flagged-content counts directly).
func (b *Board) RecomputeTops() {
	b.recomputeTops()
}

// UserRank returns the 1-based position of a user in the top list, or 0 when
// the user is not ranked.
func (b *Board) UserRank(name string) int {
	name = normalize(name)
	for i, n := range b.TopUsers {
		if n == name {
			return i + 1
		}
	}
	return 0
}
