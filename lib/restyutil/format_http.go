package restyutil

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/go-resty/resty/v2"
)

// headers are sorted so dumps of the same exchange diff cleanly
func formatHeaders(headers http.Header) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out strings.Builder
	for _, k := range keys {
		for _, v := range headers[k] {
			fmt.Fprintf(&out, "%s: %s\n", k, v)
		}
	}
	return strings.TrimSuffix(out.String(), "\n")
}

func formatRequestBody(req *http.Request) string {
	if req.GetBody == nil {
		return "(no body)"
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Sprintf("failed to get request body: %s", err.Error())
	}
	readBody, err := io.ReadAll(body)
	if err != nil {
		return fmt.Sprintf("failed to read request body: %s", err.Error())
	}
	return string(readBody)
}

// formatHttpMessage renders one request/response exchange. The landed
// URL is the post-redirect one, which is what matters when a page
// bounces to a login or challenge surface.
func formatHttpMessage(res *resty.Response) string {
	landedUrl := res.Request.URL
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		landedUrl = res.RawResponse.Request.URL.String()
	}

	var out strings.Builder
	fmt.Fprintf(&out, "---- REQUEST ----\n\n%s %s\n\n%s\n\n%s\n",
		res.Request.Method, res.Request.URL,
		formatHeaders(res.Request.RawRequest.Header),
		formatRequestBody(res.Request.RawRequest))
	fmt.Fprintf(&out, "\n---- RESPONSE ----\n\n%d %s\n\n%s\n\n%s",
		res.StatusCode(), landedUrl,
		formatHeaders(res.Header()),
		res.String())
	return out.String()
}
