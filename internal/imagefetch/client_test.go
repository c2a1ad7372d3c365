package imagefetch

import "testing"

func TestValidFilename(t *testing.T) {
	valid := []string{"cover.png", "story-12_final.webp", "a.b.c.jpg"}
	for _, name := range valid {
		if !ValidFilename(name) {
			t.Errorf("ValidFilename(%q) = false, want true", name)
		}
	}
	invalid := []string{
		"",
		"../etc/passwd",
		"..%2Fetc",
		"dir/cover.png",
		"cover..png",
		"cover png.jpg",
		"cover?x=1",
	}
	for _, name := range invalid {
		if ValidFilename(name) {
			t.Errorf("ValidFilename(%q) = true, want false", name)
		}
	}
}
