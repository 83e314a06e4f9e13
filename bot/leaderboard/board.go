package leaderboard

import (
	"errors"
	"fmt"
	"time"

	"github.com/r-seattle-wa/hub-bot-9000/bot/store"
)

// ErrConflictingAlt covers every rejected alt registration: self-link,
// already-registered alt, and alt-of-alt chains.
var ErrConflictingAlt = errors.New("leaderboard: conflicting alt registration")

// ResolveUser follows the alt map one hop to the main identity. Alt maps are
// kept acyclic and single-level, so one hop is always enough.
func (b *Board) ResolveUser(name string) string {
	name = normalize(name)
	if main, ok := b.UserAltMap[name]; ok {
		return main
	}
	return name
}

// ResolveCommunity is ResolveUser for the community register.
func (b *Board) ResolveCommunity(name string) string {
	name = normalize(name)
	if main, ok := b.CommunityAltMap[name]; ok {
		return main
	}
	return name
}

func (b *Board) community(display string) *CommunityEntry {
	name := b.ResolveCommunity(display)
	e, ok := b.Communities[name]
	if !ok {
		e = &CommunityEntry{Name: name, DisplayName: display}
		b.Communities[name] = e
	}
	return e
}

func (b *Board) user(display string) (*UserEntry, bool) {
	name := b.ResolveUser(display)
	e, ok := b.Users[name]
	if !ok {
		e = &UserEntry{Name: name, DisplayName: display}
		b.Users[name] = e
	}
	return e, !ok
}

// RecordHater registers one hostile link against a community and the posting
// user. Tones below Adversarial are a no-op. Returns the user's main entry
// and whether it was just created.
func (b *Board) RecordHater(sourceCommunity string, userName string, tone store.Classification, title string, now time.Time) (*UserEntry, bool) {
	if tone < store.Adversarial {
		return nil, false
	}

	community := b.community(sourceCommunity)
	bumpCounters(&community.HostileLinks, &community.AdversarialCount, &community.HatefulCount,
		&community.WorstTitle, tone, title)
	community.LastSeen = now

	var userEntry *UserEntry
	created := false
	if userName != "" {
		userEntry, created = b.user(userName)
		bumpCounters(&userEntry.HostileLinks, &userEntry.AdversarialCount, &userEntry.HatefulCount,
			&userEntry.WorstTitle, tone, title)
		userEntry.LastSeen = now
		addUnique(&userEntry.HomeCommunities, normalize(sourceCommunity))
	}

	b.TotalHostileLinks++
	b.UpdatedAt = now
	b.recomputeTops()
	return userEntry, created
}

func bumpCounters(hostile, adversarial, hateful *int, worstTitle *string, tone store.Classification, title string) {
	*hostile++
	if tone == store.Hateful {
		*hateful++
		*worstTitle = truncate(title, titleLimit)
	} else {
		*adversarial++
	}
}

// RecordTribute counts one tribute request against a user.
func (b *Board) RecordTribute(userName string, sourceCommunity string, now time.Time) *UserEntry {
	entry, _ := b.user(userName)
	entry.TributeRequestCount++
	entry.LastSeen = now
	if sourceCommunity != "" {
		addUnique(&entry.HomeCommunities, normalize(sourceCommunity))
	}
	b.UpdatedAt = now
	b.recomputeTops()
	return entry
}

// RecordFeaturedQuote keeps the single highest-scoring quote per user.
func (b *Board) RecordFeaturedQuote(userName string, quote string, score int, link string) {
	entry, _ := b.user(userName)
	if entry.FeaturedQuote != "" && score <= entry.FeaturedQuoteScore {
		return
	}
	entry.FeaturedQuote = quote
	entry.FeaturedQuoteScore = score
	entry.FeaturedQuoteLink = link
}

// RegisterUserAlt links alt to main in the user register.
//
// Rejections: self-link; the alt already being registered as someone's alt;
// the intended main itself being an alt (no two-hop chains). An alt that is
// already a main of others is allowed: its own alts are re-pointed to the
// new main so the map stays single-level.
func (b *Board) RegisterUserAlt(alt string, main string, now time.Time) error {
	altName, mainName := normalize(alt), normalize(main)
	if altName == mainName {
		return fmt.Errorf("%w: %s cannot be an alt of itself", ErrConflictingAlt, alt)
	}
	if existing, ok := b.UserAltMap[altName]; ok {
		return fmt.Errorf("%w: %s is already an alt of %s", ErrConflictingAlt, alt, existing)
	}
	if _, ok := b.UserAltMap[mainName]; ok {
		return fmt.Errorf("%w: %s is itself an alt", ErrConflictingAlt, main)
	}

	mainEntry, _ := b.user(main)

	// Merging a cluster: the alt may already be a main with alts of its own.
	if altEntry, ok := b.Users[altName]; ok {
		for _, sub := range altEntry.KnownAlts {
			b.UserAltMap[sub] = mainName
			addUnique(&mainEntry.KnownAlts, sub)
			if subEntry, ok := b.Users[sub]; ok {
				subEntry.IsAltOf = mainName
			}
		}
		altEntry.KnownAlts = nil
		altEntry.IsAltOf = mainName
		// Fold the alt's history into the main; the alt entry stays for
		// the record but no longer ranks.
		mainEntry.HostileLinks += altEntry.HostileLinks
		mainEntry.AdversarialCount += altEntry.AdversarialCount
		mainEntry.HatefulCount += altEntry.HatefulCount
		mainEntry.TributeRequestCount += altEntry.TributeRequestCount
		if altEntry.LastSeen.After(mainEntry.LastSeen) {
			mainEntry.LastSeen = altEntry.LastSeen
		}
		for _, home := range altEntry.HomeCommunities {
			addUnique(&mainEntry.HomeCommunities, home)
		}
	}

	b.UserAltMap[altName] = mainName
	addUnique(&mainEntry.KnownAlts, altName)
	b.UpdatedAt = now
	b.recomputeTops()
	return nil
}

// RegisterCommunityAlt links alt to main in the community register, with the
// same rejection rules as RegisterUserAlt.
func (b *Board) RegisterCommunityAlt(alt string, main string, now time.Time) error {
	altName, mainName := normalize(alt), normalize(main)
	if altName == mainName {
		return fmt.Errorf("%w: %s cannot be an alt of itself", ErrConflictingAlt, alt)
	}
	if existing, ok := b.CommunityAltMap[altName]; ok {
		return fmt.Errorf("%w: %s is already an alt of %s", ErrConflictingAlt, alt, existing)
	}
	if _, ok := b.CommunityAltMap[mainName]; ok {
		return fmt.Errorf("%w: %s is itself an alt", ErrConflictingAlt, main)
	}

	mainEntry := b.community(main)

	if altEntry, ok := b.Communities[altName]; ok {
		for _, sub := range altEntry.KnownAlts {
			b.CommunityAltMap[sub] = mainName
			addUnique(&mainEntry.KnownAlts, sub)
			if subEntry, ok := b.Communities[sub]; ok {
				subEntry.IsAltOf = mainName
			}
		}
		altEntry.KnownAlts = nil
		altEntry.IsAltOf = mainName
		mainEntry.HostileLinks += altEntry.HostileLinks
		mainEntry.AdversarialCount += altEntry.AdversarialCount
		mainEntry.HatefulCount += altEntry.HatefulCount
		if altEntry.LastSeen.After(mainEntry.LastSeen) {
			mainEntry.LastSeen = altEntry.LastSeen
		}
	}

	b.CommunityAltMap[altName] = mainName
	addUnique(&mainEntry.KnownAlts, altName)
	b.UpdatedAt = now
	b.recomputeTops()
	return nil
}

func addUnique(list *[]string, value string) {
	for _, v := range *list {
		if v == value {
			return
		}
	}
	*list = append(*list, value)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
