package puzzlepresenter

import (
	"strings"

	"go.uber.org/zap"

	"github.com/park285/Cheese-Puzzle-bot/internal/msgcat"
	"github.com/park285/Cheese-Puzzle-bot/internal/session"
)

// Formatter renders replies from the message catalog. A template that fails to render
// falls back to the fixed English text.
type Formatter struct {
	catalog   *msgcat.Catalog
	serverURL string
	prefix    string
	fallback  session.PlainFormatter
	logger    *zap.Logger
}

// NewFormatter builds a catalog-backed formatter. prefix is the chat command prefix
// shown in hints ("!퍼즐 " on Kakao, empty on Slack).
func NewFormatter(catalog *msgcat.Catalog, serverURL, prefix string, logger *zap.Logger) *Formatter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Formatter{
		catalog:   catalog,
		serverURL: strings.TrimRight(serverURL, "/"),
		prefix:    prefix,
		fallback:  session.PlainFormatter{ServerURL: serverURL},
		logger:    logger,
	}
}

func (f *Formatter) Format(kind session.ReplyKind, v session.View) string {
	if f.catalog == nil {
		return f.fallback.Format(kind, v)
	}
	data := f.data(v)
	if kind == session.ReplyPuzzle || kind == session.ReplyBusy {
		desc, err := f.catalog.Render("puzzle.describe", data)
		if err != nil {
			return f.fail(kind, v, "puzzle.describe", err)
		}
		data["Description"] = desc
	}

	key := templateKey(kind)
	out, err := f.catalog.Render(key, data)
	if err != nil {
		return f.fail(kind, v, key, err)
	}
	return out
}

func (f *Formatter) fail(kind session.ReplyKind, v session.View, key string, err error) string {
	f.logger.Warn("message_render_failed", zap.String("key", key), zap.Error(err))
	return f.fallback.Format(kind, v)
}

func (f *Formatter) data(v session.View) map[string]any {
	return map[string]any{
		"Prefix":     f.prefix,
		"Rating":     v.Rating,
		"Turn":       v.Turn,
		"FEN":        v.FEN,
		"BoardURL":   session.BoardURL(f.serverURL, v.FEN),
		"LegalMoves": strings.Join(v.LegalMoves, ", "),
		"Played":     v.Played,
		"Opponent":   v.Opponent,
		"Expected":   v.Expected,
		"Input":      v.Input,
	}
}

func templateKey(kind session.ReplyKind) string {
	switch kind {
	case session.ReplyPuzzle:
		return "puzzle.start"
	case session.ReplyBusy:
		return "puzzle.busy"
	case session.ReplyResigned:
		return "puzzle.resigned"
	case session.ReplyNotFound:
		return "puzzle.not_found"
	case session.ReplyIllegal:
		return "puzzle.illegal"
	case session.ReplyWrong:
		return "puzzle.wrong"
	case session.ReplySolved:
		return "puzzle.solved"
	case session.ReplyContinue:
		return "puzzle.continue"
	case session.ReplyInternal:
		return "puzzle.internal_error"
	case session.ReplyStoreFailure:
		return "puzzle.store_failure"
	default:
		return "puzzle.upstream_failure"
	}
}
