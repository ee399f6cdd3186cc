package core

//go:generate go run ../cmd/musgen

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for stored tags.
// It is generated using content-based hashing so the same tag name
// always maps to the same ID.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Record is a single catalog item to be labelled.
// Records are owned by the catalog store and never modified by the tagger.
type Record struct {
	ID   string
	Name string
}

// LabelSet is the ordered list of labels derived for one record.
// Labels carry no marker character and are never empty.
type LabelSet []string

// Invocation captures one call to the generation model.
// The per-batch history of invocations is what the judge scores.
type Invocation struct {
	Query       string    `json:"query"`
	RawResponse string    `json:"response"`
	Labels      LabelSet  `json:"parsed_response"`
	Timestamp   time.Time `json:"-"`
}

// Template is the instruction template fed to the generation model.
// Text contains exactly one {food_name} slot.
type Template struct {
	Text      string
	Version   int
	Score     float64 // Judge score that produced this version, 0 for the seed
	UpdatedAt time.Time
}

// Verdict is the structured judgement returned by the judge model.
type Verdict struct {
	RevisedTemplate string
	Score           float64
	Strengths       []string
	Weaknesses      []string
	Directions      []string
}

// Outcome is the result of a single optimisation epoch.
type Outcome struct {
	RevisedTemplate string
	Score           float64
	Accepted        bool
}

// Failure describes a record whose generation call failed on every attempt.
type Failure struct {
	RecordID string
	Name     string
	Attempts int
	Err      error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.Err == nil {
		return "record " + f.RecordID + " (" + f.Name + ") failed"
	}
	return "record " + f.RecordID + " (" + f.Name + ") failed: " + f.Err.Error()
}

// Unwrap returns the last attempt's error.
func (f *Failure) Unwrap() error {
	return f.Err
}

// Tag is a persisted label.
type Tag struct {
	Id         ID
	Name       string
	InsertedAt time.Time
}

// Checkpoint records how far a run got through the catalog.
// Offset is the length of the fully processed catalog prefix and can be
// passed back as the skip count on restart.
type Checkpoint struct {
	RunID     string
	Offset    int
	Processed int
	UpdatedAt time.Time
}
