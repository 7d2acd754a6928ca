package providers

import "net/url"

// Congress builds the Congress.gov v3 source.
func Congress(baseURL, apiKey string) Source {
	if baseURL == "" {
		baseURL = "https://api.congress.gov/v3"
	}
	return Source{
		Name:      "congress",
		BaseURL:   baseURL,
		APIKey:    apiKey,
		KeyName:   "api_key",
		Placement: KeyInQuery,
		Fixed:     url.Values{"format": {"json"}},
	}
}

// LegiScan builds the LegiScan pull API source.
func LegiScan(baseURL, apiKey string) Source {
	if baseURL == "" {
		baseURL = "https://api.legiscan.com"
	}
	return Source{
		Name:      "legiscan",
		BaseURL:   baseURL,
		APIKey:    apiKey,
		KeyName:   "key",
		Placement: KeyInQuery,
	}
}

// BallotReady builds the BallotReady source.
func BallotReady(baseURL, apiKey string) Source {
	if baseURL == "" {
		baseURL = "https://api.civicengine.com"
	}
	return Source{
		Name:      "ballotready",
		BaseURL:   baseURL,
		APIKey:    apiKey,
		KeyName:   "x-api-key",
		Placement: KeyInHeader,
	}
}

// LegiScanOps are the operations the legiscan endpoint forwards.
var LegiScanOps = map[string]bool{
	"getSearch":      true,
	"getBill":        true,
	"getBillText":    true,
	"getSessionList": true,
	"getMasterList":  true,
	"getRollCall":    true,
	"getPerson":      true,
}

// Pick copies the named parameters from in, skipping empty values.
func Pick(in url.Values, names ...string) url.Values {
	out := url.Values{}
	for _, n := range names {
		if v := in.Get(n); v != "" {
			out.Set(n, v)
		}
	}
	return out
}
