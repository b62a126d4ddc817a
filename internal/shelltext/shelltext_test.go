package shelltext

import (
	"reflect"
	"testing"
)

func TestSplitHonorsQuoting(t *testing.T) {
	got, err := Split(`build foo "role one" --flag=bar`)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	want := []string{"build", "foo", "role one", "--flag=bar"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestQuoteRoundTrip(t *testing.T) {
	args := []string{"foo", "has space", "plain"}
	line := QuoteList(args)
	back, err := UnquoteList(line)
	if err != nil {
		t.Fatalf("UnquoteList: %v", err)
	}
	if !reflect.DeepEqual(back, args) {
		t.Fatalf("round trip: got %v want %v", back, args)
	}
}

func TestSplitRejectsUnbalancedQuotes(t *testing.T) {
	if _, err := Split(`build "unterminated`); err == nil {
		t.Fatalf("expected error for unterminated quote")
	}
}
