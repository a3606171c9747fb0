// Package contracts is the entry point of the contract intelligence
// pipeline. It runs uploads through parsing, segmentation, extraction, and
// indexing, commits the result atomically, and serves listings, details,
// questions, and portfolio reports over the committed corpus.
package contracts

import (
	"github.com/google/uuid"

	"github.com/JaimeStill/covenant/internal/corpus"
)

// IngestCommand carries an uploaded document.
type IngestCommand struct {
	Data        []byte
	Filename    string
	ContentType string
}

// AskCommand is a natural-language question over the corpus. ContractIDs
// limits retrieval to the named contracts; TopK caps the evidence returned.
type AskCommand struct {
	Query       string      `json:"query"`
	ContractIDs []uuid.UUID `json:"contract_ids,omitempty"`
	TopK        int         `json:"top_k,omitempty"`
}

// QueryResult is a grounded answer with the evidence it cites. Citation
// [n] in Answer refers to Chunks[n-1].
type QueryResult struct {
	Answer string            `json:"answer"`
	Chunks []corpus.Evidence `json:"chunks"`
}

// Document is a stored raw upload.
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
}
