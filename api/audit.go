package api

import (
	"log/slog"

	"github.com/fyshare/fyshare/internal/util"
)

// tokenAttr identifies a session in logs without revealing the token.
func tokenAttr(token string) slog.Attr {
	return slog.String("token_id", util.Fingerprint(token))
}

func ownerAttr(addr string) slog.Attr {
	return slog.String("owner_addr", addr)
}
