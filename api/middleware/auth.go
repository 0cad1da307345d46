package middleware

import (
	"context"
	"net/http"

	"github.com/boostlocal/boost-api/api/responses"
	"github.com/boostlocal/boost-api/internal/users"
	pkgAuth "github.com/boostlocal/boost-api/pkg/auth"
	pkgerrors "github.com/boostlocal/boost-api/pkg/errors"
	"github.com/boostlocal/boost-api/pkg/logger"
)

// BindingResolver maps a verified identity to its stored role binding.
type BindingResolver interface {
	Resolve(ctx context.Context, identity users.Identity) (users.Binding, error)
}

// Auth validates the identity token and seeds the request context with the
// caller's stored binding. Role claims inside the token are ignored.
func Auth(verifier pkgAuth.Verifier, resolver BindingResolver, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := pkgAuth.BearerToken(r.Header.Get("Authorization"))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			if verifier == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "token verifier unavailable"))
				return
			}
			claims, err := verifier.Verify(r.Context(), token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			identity := users.Identity{UID: claims.UID(), Email: claims.Email}
			ctx := WithIdentity(r.Context(), identity.UID, identity.Email)

			if resolver == nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "binding resolver unavailable"))
				return
			}
			binding, err := resolver.Resolve(ctx, identity)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if binding.Email == "" {
				binding.Email = identity.Email
			}
			actor := binding.Actor()
			ctx = WithActor(ctx, actor)

			if logg != nil {
				fields := map[string]any{
					"user_id":    actor.UID,
					"actor_role": actor.RoleString(),
				}
				if actor.MerchantID != nil {
					fields["merchant_id"] = actor.MerchantID.String()
				}
				ctx = logg.WithFields(ctx, fields)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
