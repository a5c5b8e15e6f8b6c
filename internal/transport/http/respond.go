package httptransport

import (
	"errors"
	"net/http"

	dErrors "vettinghub/pkg/domainerrors"
	"vettinghub/pkg/platform/httputil"
)

// respondError renders the domain error. Access denials are presented as 404
// to non-superusers so the existence of out-of-tenant records is never
// confirmed; operators see the real denial.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	code := dErrors.CodeOf(err)
	if code == dErrors.CodeAccessDenied && !principalFrom(r.Context()).Superuser {
		httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorBody{
			Error: string(dErrors.CodeNotFound), Message: "not found",
		})
		return
	}

	body := httputil.ErrorBody{Error: string(code)}
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) && code != dErrors.CodeInternal {
		body.Message = domainErr.Message
	}
	httputil.WriteJSON(w, httputil.StatusFor(code), body)
}
