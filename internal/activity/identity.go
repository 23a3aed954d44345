package activity

import "strconv"

const unknownLoginPrefix = "unknown-"

// Resolver maps numeric actor ids to identities.
type Resolver struct {
	byID map[int64]Identity
}

// NewResolver builds a lookup table from a contributor listing. Later entries win on duplicate ids.
func NewResolver(listing []ContributorListing) *Resolver {
	byID := make(map[int64]Identity, len(listing))
	for _, entry := range listing {
		byID[entry.ID] = Identity{
			Login:     entry.Login,
			AvatarURL: entry.AvatarURL,
		}
	}
	return &Resolver{byID: byID}
}

// Resolve returns the identity for id, or a placeholder "unknown-<id>" identity
// with an empty avatar when the id is not listed.
func (r *Resolver) Resolve(id int64) Identity {
	if r != nil {
		if identity, ok := r.byID[id]; ok && identity.Login != "" {
			return identity
		}
	}
	return Identity{Login: unknownLoginPrefix + strconv.FormatInt(id, 10)}
}
