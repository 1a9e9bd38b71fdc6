package models

// AudienceCandidate is one directory entry eligible for campaign targeting,
// before it is persisted as a recipient
type AudienceCandidate struct {
	Type  RecipientSourceType
	ID    string
	Name  string
	Email *string
	Phone *string
}

// DirectoryFilter narrows lead and contact lookups
type DirectoryFilter struct {
	Owner  *string
	Status *string
	Tags   []string
}
