package services

// CanMutate is the single ownership predicate for every mutating operation
// on games and locations: only the creator may mutate or remove their
// resource. Admin takedowns go through the audited /admin routes instead of
// this predicate.
func CanMutate(actorID, ownerID string) bool {
	return actorID != "" && actorID == ownerID
}
