package controllers

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/boostlocal/boost-api/api/middleware"
	"github.com/boostlocal/boost-api/api/responses"
	"github.com/boostlocal/boost-api/api/validators"
	"github.com/boostlocal/boost-api/internal/ledger"
	pkgerrors "github.com/boostlocal/boost-api/pkg/errors"
	"github.com/boostlocal/boost-api/pkg/logger"
)

// LedgerSummary returns what a merchant owes, optionally for [from, to).
func LedgerSummary(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		merchantID, err := validators.QueryUUID(r, "merchant_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		from, err := validators.QueryTime(r, "from")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := validators.QueryTime(r, "to")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.Summary(r.Context(), middleware.ActorFromContext(r.Context()), merchantID, ledger.Range{From: from, To: to})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, summary)
	}
}

// LedgerExport streams the merchant's ledger as a CSV attachment. A merchant
// admin may omit merchant_id.
func LedgerExport(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		actor := middleware.ActorFromContext(r.Context())
		merchantID, err := validators.QueryUUID(r, "merchant_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if merchantID == nil {
			merchantID = actor.MerchantID
		}
		if merchantID == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "merchant_id is required"))
			return
		}

		var buf bytes.Buffer
		if err := svc.Export(r.Context(), actor, *merchantID, &buf); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		disposition := fmt.Sprintf("attachment; filename=%q", "ledger_"+merchantID.String()+".csv")
		responses.WriteBinary(w, "text/csv; charset=utf-8", disposition, buf.Bytes())
	}
}
