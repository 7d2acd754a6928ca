package datasources

import (
	"net/http"
	"net/url"
	"strconv"

	uierrors "github.com/dalemusser/civichub/internal/app/features/errors"
	"github.com/dalemusser/civichub/internal/app/system/providers"
	"github.com/go-chi/chi/v5"
)

// ServeBillSearch handles GET /api/bills/search. An optional ?congress=
// narrows the listing to one Congress; ?type= further to one bill type.
func (h *Handler) ServeBillSearch(w http.ResponseWriter, r *http.Request) {
	in := r.URL.Query()
	path := "bill"
	if c := in.Get("congress"); c != "" {
		n, err := strconv.Atoi(c)
		if err != nil || n <= 0 {
			uierrors.Validation(w, "congress must be a positive number", []string{"congress"})
			return
		}
		path += "/" + strconv.Itoa(n)
		if t := in.Get("type"); t != "" {
			path += "/" + url.PathEscape(t)
		}
	}
	h.fetch(w, r, ChannelBills, h.Congress, path,
		providers.Pick(in, "query", "offset", "limit", "sort", "fromDateTime", "toDateTime"))
}

// ServeLegiScan handles GET /api/legiscan?op=. Only read operations in
// providers.LegiScanOps are forwarded.
func (h *Handler) ServeLegiScan(w http.ResponseWriter, r *http.Request) {
	in := r.URL.Query()
	if !providers.LegiScanOps[in.Get("op")] {
		uierrors.Validation(w, "unsupported LegiScan operation", []string{"op"})
		return
	}
	h.fetch(w, r, ChannelLegiScan, h.LegiScan, "",
		providers.Pick(in, "op", "id", "state", "query", "year", "page"))
}

// ServeBallotOfficials handles GET /api/ballot-officials/{id}.
func (h *Handler) ServeBallotOfficials(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		uierrors.Validation(w, "official id is required", []string{"id"})
		return
	}
	h.fetch(w, r, ChannelOfficials, h.BallotReady, "officials/"+url.PathEscape(id), nil)
}
