package help

import (
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	page, err := Default()
	if err != nil {
		t.Fatalf("Default() error: %v", err)
	}
	if page.Title == "" || len(page.Entries) == 0 {
		t.Fatalf("page = %+v", page)
	}
	first := string(page.Entries[0].Answer)
	if !strings.Contains(first, "<strong>descubrir películas</strong>") {
		t.Fatalf("markdown not rendered: %s", first)
	}
	last := string(page.Entries[len(page.Entries)-1].Answer)
	if !strings.Contains(last, `rel="nofollow`) {
		t.Fatalf("link not rewritten: %s", last)
	}
}

func TestLoadSanitises(t *testing.T) {
	src := `title: T
entries:
  - question: q
    answer: "hola <script>alert(1)</script> [x](javascript:alert(1)) <b onclick=\"x()\">b</b>"
`
	page, err := Load(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	html := string(page.Entries[0].Answer)
	for _, bad := range []string{"<script", "javascript:", "onclick"} {
		if strings.Contains(html, bad) {
			t.Fatalf("answer kept %q: %s", bad, html)
		}
	}
}

func TestLoadRejectsEmptyQuestion(t *testing.T) {
	if _, err := Load(strings.NewReader("title: T\nentries:\n  - answer: a\n")); err == nil {
		t.Fatalf("expected error for entry without question")
	}
}
