package shared

import "testing"

func TestChunkStrings(t *testing.T) {
	uris := make([]string, 0, 250)
	for i := 0; i < 250; i++ {
		uris = append(uris, "spotify:track:x")
	}

	tc := []struct {
		name      string
		items     []string
		size      int
		wantLens  []int
		wantChunk int
	}{
		{name: "empty input", items: nil, size: 100, wantChunk: 0},
		{name: "single partial chunk", items: uris[:42], size: 100, wantChunk: 1, wantLens: []int{42}},
		{name: "exact multiple", items: uris[:200], size: 100, wantChunk: 2, wantLens: []int{100, 100}},
		{name: "trailing remainder", items: uris, size: 100, wantChunk: 3, wantLens: []int{100, 100, 50}},
		{name: "non-positive size", items: uris[:10], size: 0, wantChunk: 0},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := ChunkStrings(tt.items, tt.size)
			if len(got) != tt.wantChunk {
				t.Fatalf("expected %d chunks, got %d", tt.wantChunk, len(got))
			}
			for i, chunk := range got {
				if len(chunk) != tt.wantLens[i] {
					t.Errorf("chunk %d: expected len %d, got %d", i, tt.wantLens[i], len(chunk))
				}
			}
		})
	}
}

func TestGenerateID(t *testing.T) {
	a := GenerateID()
	b := GenerateID()

	if a == "" || b == "" {
		t.Fatal("expected non-empty IDs")
	}
	if a == b {
		t.Error("expected distinct IDs")
	}
}
