package util

import "strings"

const (
	KakaoSeeMorePadding = 500
	KakaoZeroWidthSpace = "\u200b"
)

// ApplyKakaoSeeMorePadding pushes text behind KakaoTalk's "see more" fold by inserting
// zero-width spaces after a short visible header.
func ApplyKakaoSeeMorePadding(text, header string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	header = strings.TrimSpace(header)

	var b strings.Builder
	b.Grow(len(header) + KakaoSeeMorePadding*len(KakaoZeroWidthSpace) + len(text) + 1)
	b.WriteString(header)
	b.WriteString(strings.Repeat(KakaoZeroWidthSpace, KakaoSeeMorePadding))
	if !strings.HasPrefix(text, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString(text)
	return b.String()
}
