package xapi

// Attachment is binary or external content attached to a statement.
// An empty FileURL and a nil Content mean "absent".
type Attachment struct {
	UsageType   IRI
	ContentType string
	Length      int64
	SHA2        string
	Display     LanguageMap
	Description LanguageMap
	FileURL     IRI
	Content     []byte
}
