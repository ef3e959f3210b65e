package util

import (
	"strings"
	"testing"
)

func TestApplyKakaoSeeMorePadding(t *testing.T) {
	out := ApplyKakaoSeeMorePadding("body", " Puzzle ")
	if !strings.HasPrefix(out, "Puzzle"+KakaoZeroWidthSpace) || !strings.HasSuffix(out, "\nbody") {
		t.Fatalf("out = %q", out[:12])
	}
	if n := strings.Count(out, KakaoZeroWidthSpace); n != KakaoSeeMorePadding {
		t.Fatalf("padding = %d", n)
	}
	if got := ApplyKakaoSeeMorePadding("\nbody", ""); strings.Contains(got, "\n\nbody") {
		t.Fatalf("double newline")
	}
	if got := ApplyKakaoSeeMorePadding("  ", "x"); got != "  " {
		t.Fatalf("blank text padded")
	}
}
