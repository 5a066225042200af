package github

import "testing"

func TestMatchAssets(t *testing.T) {
	assets := []Asset{
		{ID: 1, Name: "app.ipa"},
		{ID: 2, Name: "app-debug.ipa"},
		{ID: 3, Name: "checksums.txt"},
	}

	t.Run("default glob matches in upstream order", func(t *testing.T) {
		matched := MatchAssets(assets, "")
		if len(matched) != 2 {
			t.Fatalf("expected 2 matches, got %d", len(matched))
		}
		if matched[0].Name != "app.ipa" {
			t.Fatalf("expected first match app.ipa, got %s", matched[0].Name)
		}
	})

	t.Run("no match", func(t *testing.T) {
		if matched := MatchAssets(assets, "*.apk"); len(matched) != 0 {
			t.Fatalf("expected no matches, got %v", matched)
		}
	})

	t.Run("exact name", func(t *testing.T) {
		matched := MatchAssets(assets, "app-debug.ipa")
		if len(matched) != 1 || matched[0].ID != 2 {
			t.Fatalf("unexpected matches: %v", matched)
		}
	})

	t.Run("malformed pattern", func(t *testing.T) {
		if matched := MatchAssets(assets, "[unclosed"); matched != nil {
			t.Fatalf("expected nil for malformed pattern, got %v", matched)
		}
	})
}
