package mcpserver

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"path"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/texflow/internal/storage"
)

const (
	maxImportSize = 10 << 20 // 10 MB
	maxRedirects  = 5
)

// extByMediaType picks a file extension when the caller gives no path.
var extByMediaType = map[string]string{
	"text/x-tex":          ".tex",
	"application/x-tex":   ".tex",
	"application/x-latex": ".tex",
	"text/x-bibtex":       ".bib",
	"text/plain":          ".txt",
}

// payload is an imported body together with its declared media type.
type payload struct {
	body      []byte
	mediaType string
}

func (p payload) ext() string {
	if ext, ok := extByMediaType[p.mediaType]; ok {
		return ext
	}
	return ".tex"
}

// acceptMediaType allows text types and the labels servers commonly put on
// TeX files. The body is checked separately.
func acceptMediaType(mt string) bool {
	switch {
	case mt == "", strings.HasPrefix(mt, "text/"):
		return true
	case mt == "application/x-tex", mt == "application/x-latex", mt == "application/octet-stream":
		return true
	}
	return false
}

// fetcher downloads remote sources. checkHost runs before the first request
// and again for every redirect target.
type fetcher struct {
	client    *http.Client
	checkHost func(ctx context.Context, host string) error
}

func newFetcher() fetcher {
	// The dialer re-checks the address actually connected to, so a name that
	// resolves differently after guardHost ran is still refused.
	dialer := &net.Dialer{Timeout: 10 * time.Second, Control: guardDial}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext

	f := fetcher{checkHost: guardHost}
	f.client = &http.Client{
		Transport: transport,
		Timeout:   30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return f.checkHost(req.Context(), req.URL.Hostname())
		},
	}
	return f
}

func (s *Server) importFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pid, res := s.project(ctx, req)
	if res != nil {
		return res, nil
	}
	src, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var p payload
	if rest, ok := strings.CutPrefix(src, "data:"); ok {
		p, err = parseDataURI(rest)
	} else {
		p, err = s.fetch.download(ctx, src)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(p.body) > maxImportSize {
		return mcp.NewToolResultError(fmt.Sprintf("import exceeds %d bytes", maxImportSize)), nil
	}

	explicit, _ := req.RequireString("path")
	target := importPath(explicit, src, p)
	if !storage.IsSource(target) {
		return mcp.NewToolResultError(fmt.Sprintf("%s: extension not allowed (allowed: %s)",
			target, strings.Join(storage.SourceExtensions, ", "))), nil
	}
	if err := checkText(p.body); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	r, err := s.svc.CreateFileAt(ctx, pid, target, string(p.body))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(fileEntry{Path: target, ID: r.ID, Kind: r.Kind, Checksum: r.Checksum}), nil
}

// parseDataURI decodes the part of a data: URI after the scheme. Only the
// base64 form is accepted.
func parseDataURI(rest string) (payload, error) {
	header, data, ok := strings.Cut(rest, ",")
	if !ok {
		return payload{}, errors.New("data URI has no comma")
	}
	header, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		return payload{}, errors.New("data URI must be base64 encoded")
	}

	var mt string
	if header != "" {
		parsed, _, err := mime.ParseMediaType(header)
		if err != nil {
			return payload{}, fmt.Errorf("data URI media type: %w", err)
		}
		mt = parsed
	}
	if !acceptMediaType(mt) {
		return payload{}, fmt.Errorf("data URI media type %s is not text", mt)
	}

	body, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		if body, err = base64.RawStdEncoding.DecodeString(data); err != nil {
			return payload{}, fmt.Errorf("data URI payload: %w", err)
		}
	}
	return payload{body: body, mediaType: mt}, nil
}

func (f fetcher) download(ctx context.Context, raw string) (payload, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return payload{}, fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return payload{}, fmt.Errorf("scheme %q not allowed, use http or https", u.Scheme)
	}
	if err := f.checkHost(ctx, u.Hostname()); err != nil {
		return payload{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return payload{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return payload{}, fmt.Errorf("fetch %s: %w", u.Host, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return payload{}, fmt.Errorf("fetch %s: %s", u.Host, resp.Status)
	}

	var mt string
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		mt, _, _ = mime.ParseMediaType(ct)
	}
	if !acceptMediaType(mt) {
		return payload{}, fmt.Errorf("content type %s is not text", mt)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImportSize+1))
	if err != nil {
		return payload{}, fmt.Errorf("read %s: %w", u.Host, err)
	}
	return payload{body: body, mediaType: mt}, nil
}

// blockedAddr reports loopback, unspecified, link-local and private
// addresses, which an import must never reach.
func blockedAddr(a netip.Addr) bool {
	a = a.Unmap()
	return a.IsLoopback() || a.IsUnspecified() || a.IsLinkLocalUnicast() ||
		a.IsLinkLocalMulticast() || a.IsPrivate()
}

// guardHost refuses cloud metadata names and any host that resolves to a
// blocked address. Resolution failures are left to the HTTP client.
func guardHost(ctx context.Context, host string) error {
	if strings.EqualFold(host, "metadata.google.internal") {
		return fmt.Errorf("host %s is not allowed", host)
	}

	var addrs []netip.Addr
	if a, err := netip.ParseAddr(host); err == nil {
		addrs = []netip.Addr{a}
	} else {
		addrs, _ = net.DefaultResolver.LookupNetIP(ctx, "ip", host)
	}
	for _, a := range addrs {
		if blockedAddr(a) {
			return fmt.Errorf("host %s resolves to a disallowed address %s", host, a.Unmap())
		}
	}
	return nil
}

// guardDial runs before every outgoing connection with the resolved address.
func guardDial(_, address string, _ syscall.RawConn) error {
	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("dial %s: %w", address, err)
	}
	if blockedAddr(ap.Addr()) {
		return fmt.Errorf("dial %s: address not allowed", ap.Addr().Unmap())
	}
	return nil
}

// importPath returns the project path for an import. An explicit path keeps
// its directories with the final element sanitized; otherwise the name comes
// from the URL, or a uuid with an extension matching the media type.
func importPath(explicit, src string, p payload) string {
	if explicit != "" {
		dir, name := path.Split(strings.ReplaceAll(explicit, `\`, "/"))
		return path.Join(dir, sanitizeFilename(name))
	}
	if !strings.HasPrefix(src, "data:") {
		if u, err := url.Parse(src); err == nil {
			if base := path.Base(u.Path); strings.Contains(base, ".") && base != "." && base != ".." {
				return sanitizeFilename(base)
			}
		}
	}
	return uuid.NewString() + p.ext()
}

// sanitizeFilename maps every rune outside [A-Za-z0-9._-] to '_'. A name
// made only of dots becomes a fresh uuid.
func sanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '_', r == '-':
			return r
		}
		return '_'
	}, name)
	if strings.Trim(name, ".") == "" {
		return uuid.NewString() + ".tex"
	}
	return name
}

func checkText(body []byte) error {
	if !utf8.Valid(body) {
		return errors.New("content is not valid UTF-8")
	}
	if detected := http.DetectContentType(body); !strings.HasPrefix(detected, "text/") {
		return fmt.Errorf("content does not look like a text source (detected %s)", detected)
	}
	return nil
}
