package core

import (
	"testing"
)

func TestHashContent(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantSame bool
	}{
		{
			name:     "same content produces same hash",
			content:  "KI ist ein Teilgebiet der Informatik.",
			wantSame: true,
		},
		{
			name:     "empty string",
			content:  "",
			wantSame: true,
		},
		{
			name:     "long content",
			content:  "This is a much longer piece of content that should still hash consistently",
			wantSame: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h1 := HashContent(tt.content)
			h2 := HashContent(tt.content)

			if tt.wantSame && h1 != h2 {
				t.Errorf("HashContent() produced different hashes for same content: %s vs %s", h1, h2)
			}
			if len(h1) != 32 {
				t.Errorf("HashContent() length = %d, want 32", len(h1))
			}
		})
	}
}

func TestHashContent_Different(t *testing.T) {
	if HashContent("content1") == HashContent("content2") {
		t.Errorf("HashContent() produced same hash for different content")
	}
}

func TestChunkEmbedding_ValidFor(t *testing.T) {
	h1 := HashContent("a")
	h2 := HashContent("b")

	tests := []struct {
		name      string
		stored    string
		current   string
		wantValid bool
	}{
		{"matching hash", h1, h1, true},
		{"changed content", h1, h2, false},
		{"no stored hash", "", h1, false},
		{"no chunk hash", h1, "", false},
		{"no hash anywhere", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emb := ChunkEmbedding{ContentHash: tt.stored}
			chunk := Chunk{ContentHash: tt.current}
			if got := emb.ValidFor(&chunk); got != tt.wantValid {
				t.Errorf("ValidFor() = %v, want %v", got, tt.wantValid)
			}
		})
	}
}

func TestEmbeddingModel_Prefix(t *testing.T) {
	m := EmbeddingModel{QueryPrefix: "query: ", DocumentPrefix: "passage: "}

	if got := m.Prefix(RoleQuery); got != "query: " {
		t.Errorf("Prefix(query) = %q", got)
	}
	if got := m.Prefix(RoleDocument); got != "passage: " {
		t.Errorf("Prefix(document) = %q", got)
	}
}

func TestScope_Includes(t *testing.T) {
	tests := []struct {
		scope   Scope
		chunks  bool
		phrases bool
	}{
		{ScopeAll, true, true},
		{ScopeChunks, true, false},
		{ScopePhrases, false, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.scope), func(t *testing.T) {
			if tt.scope.IncludesChunks() != tt.chunks {
				t.Errorf("IncludesChunks() = %v", !tt.chunks)
			}
			if tt.scope.IncludesPhrases() != tt.phrases {
				t.Errorf("IncludesPhrases() = %v", !tt.phrases)
			}
		})
	}
}
