package cache

import (
	"testing"

	"github.com/use-agent/rednote/models"
)

func TestKey_Distinct(t *testing.T) {
	url := "https://www.xiaohongshu.com/explore/abc"

	if Key(url, false) == Key(url, true) {
		t.Error("content and metadata-only variants should cache under different keys")
	}
	if Key(url, false) != Key(url, false) {
		t.Error("key generation should be deterministic")
	}
	if Key(url, false) == Key("https://www.xiaohongshu.com/explore/xyz", false) {
		t.Error("different URLs should produce different keys")
	}
}

func TestGetSet(t *testing.T) {
	c := New(10)
	key := Key("https://www.xiaohongshu.com/explore/abc", false)
	resp := &models.ScrapeResponse{
		Status: models.StatusSuccess,
		Data:   &models.Note{Title: "cached"},
	}

	if _, hit := c.Get(key, 60000); hit {
		t.Error("empty cache should miss")
	}

	c.Set(key, resp)

	got, hit := c.Get(key, 60000)
	if !hit {
		t.Fatal("expected cache hit")
	}
	if got.Data.Title != "cached" {
		t.Errorf("Title = %q", got.Data.Title)
	}
}

func TestGet_MaxAgeZeroDisablesLookup(t *testing.T) {
	c := New(10)
	key := Key("https://www.xiaohongshu.com/explore/abc", false)
	c.Set(key, &models.ScrapeResponse{Status: models.StatusSuccess})

	if _, hit := c.Get(key, 0); hit {
		t.Error("maxAge 0 should bypass the cache")
	}
	if _, hit := c.Get(key, -1); hit {
		t.Error("negative maxAge should bypass the cache")
	}
}

func TestSet_EvictsAtCapacity(t *testing.T) {
	c := New(2)
	for _, id := range []string{"a", "b", "c"} {
		c.Set(Key("https://www.xiaohongshu.com/explore/"+id, false),
			&models.ScrapeResponse{Status: models.StatusSuccess})
	}

	hits := 0
	for _, id := range []string{"a", "b", "c"} {
		if _, hit := c.Get(Key("https://www.xiaohongshu.com/explore/"+id, false), 60000); hit {
			hits++
		}
	}
	if hits != 2 {
		t.Errorf("got %d live entries, want capacity of 2", hits)
	}
}
