package linkextract

import (
	"reflect"
	"testing"
)

func TestExtractWiki(t *testing.T) {
	body := "See [[qp-ab12]] and [[qp-cd34|a label]] for more."
	got := Extract(body)
	want := []string{"qp-ab12", "qp-cd34"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Extract() = %v, want %v", got, want)
	}
}

func TestExtractMarkdown(t *testing.T) {
	body := "See [note](qp-ab12.md) and [other](../notes/qp-cd34.md)."
	got := Extract(body)
	want := []string{"qp-ab12", "qp-cd34"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Extract() = %v, want %v", got, want)
	}
}

func TestExtractIgnoresExternalURLs(t *testing.T) {
	body := "See [site](https://example.com/page.md) for details."
	got := Extract(body)
	if len(got) != 0 {
		t.Errorf("Extract() = %v, want empty", got)
	}
}

func TestExtractDeduplicates(t *testing.T) {
	body := "[[qp-ab12]] mentioned twice [[qp-ab12]]"
	got := Extract(body)
	if len(got) != 1 {
		t.Errorf("Extract() = %v, want one entry", got)
	}
}

func TestInlineLinksTypeRelated(t *testing.T) {
	links := InlineLinks("[[qp-ab12]]")
	if len(links) != 1 || links[0].Type != "related" || links[0].ID != "qp-ab12" {
		t.Errorf("InlineLinks() = %+v", links)
	}
}
