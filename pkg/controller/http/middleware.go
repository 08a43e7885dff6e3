package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/utils/errutil"
)

// AuthorHeader carries the authenticated author. It is set by the auth proxy in
// front of the server.
const AuthorHeader = "X-Author-ID"

type ctxAuthorKey struct{}

// authorMiddleware rejects requests without an author and stores it in the context
func authorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		author := strings.TrimSpace(r.Header.Get(AuthorHeader))
		if author == "" {
			errutil.HandleHTTP(r.Context(), w, goerr.New("author is required", goerr.V("header", AuthorHeader)), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ctxAuthorKey{}, model.AuthorID(author))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func authorFrom(ctx context.Context) model.AuthorID {
	if author, ok := ctx.Value(ctxAuthorKey{}).(model.AuthorID); ok {
		return author
	}
	return ""
}
