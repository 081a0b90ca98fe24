package entity

import (
	"time"

	"github.com/google/uuid"
)

// Document is an uploaded study file referenced by RAG-mode queries.
type Document struct {
	Id        uuid.UUID
	UserId    uuid.UUID
	Name      string
	MimeType  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PassageEmbedding is one embedded chunk of a document.
type PassageEmbedding struct {
	Id         uuid.UUID
	DocumentId uuid.UUID
	Document   string // chunk text
	ChunkIndex int
	CreatedAt  time.Time
}
