package domain

import "time"

// DocumentReference is a single retrieved document. Order and content are
// decided by the retriever.
type DocumentReference struct {
	DocumentID         string
	Title              string
	SourceURI          string
	Excerpt            string
	DocumentAttributes map[string]any
}

// SourceAttribution is the public citation returned alongside an answer.
type SourceAttribution struct {
	Title  string `json:"title"`
	Source string `json:"source"`
}

// ConversationTurn is one completed question/answer exchange of a session.
// RetrievedDocuments is not persisted.
type ConversationTurn struct {
	SessionID          string
	UserInput          string
	StandaloneQuestion string
	RetrievedDocuments []DocumentReference
	Answer             string
	SourceDocuments    []SourceAttribution
	CreatedAt          time.Time
}

// ConversationHistory is the ordered (oldest first) list of prior turns of a
// session.
type ConversationHistory []ConversationTurn
