package pipeline

import "strings"

// KnownHeader identifies one of the request headers that a WorkerRequest reports through
// KnownHeader rather than UnknownHeader. The numbering is fixed.
type KnownHeader int

// The known request headers.
const (
	HeaderCacheControl KnownHeader = iota
	HeaderConnection
	HeaderDate
	HeaderKeepAlive
	HeaderPragma
	HeaderTrailer
	HeaderTransferEncoding
	HeaderUpgrade
	HeaderVia
	HeaderWarning
	HeaderAllow
	HeaderContentLength
	HeaderContentType
	HeaderContentEncoding
	HeaderContentLanguage
	HeaderContentLocation
	HeaderContentMd5
	HeaderContentRange
	HeaderExpires
	HeaderLastModified
	HeaderAccept
	HeaderAcceptCharset
	HeaderAcceptEncoding
	HeaderAcceptLanguage
	HeaderAuthorization
	HeaderCookie
	HeaderExpect
	HeaderFrom
	HeaderHost
	HeaderIfMatch
	HeaderIfModifiedSince
	HeaderIfNoneMatch
	HeaderIfRange
	HeaderIfUnmodifiedSince
	HeaderMaxForwards
	HeaderProxyAuthorization
	HeaderReferer
	HeaderRange
	HeaderTe
	HeaderUserAgent

	knownHeaderCount
)

//nolint:gochecknoglobals
var knownHeaderNames = [knownHeaderCount]string{
	"Cache-Control",
	"Connection",
	"Date",
	"Keep-Alive",
	"Pragma",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
	"Via",
	"Warning",
	"Allow",
	"Content-Length",
	"Content-Type",
	"Content-Encoding",
	"Content-Language",
	"Content-Location",
	"Content-MD5",
	"Content-Range",
	"Expires",
	"Last-Modified",
	"Accept",
	"Accept-Charset",
	"Accept-Encoding",
	"Accept-Language",
	"Authorization",
	"Cookie",
	"Expect",
	"From",
	"Host",
	"If-Match",
	"If-Modified-Since",
	"If-None-Match",
	"If-Range",
	"If-Unmodified-Since",
	"Max-Forwards",
	"Proxy-Authorization",
	"Referer",
	"Range",
	"TE",
	"User-Agent",
}

// KnownHeaders returns every known header in index order.
func KnownHeaders() []KnownHeader {
	ret := make([]KnownHeader, 0, knownHeaderCount)
	for h := KnownHeader(0); h < knownHeaderCount; h++ {
		ret = append(ret, h)
	}
	return ret
}

// String returns the canonical header name.
func (h KnownHeader) String() string {
	if h < 0 || h >= knownHeaderCount {
		return ""
	}
	return knownHeaderNames[h]
}

// KnownHeaderIndex returns the known header with the given name, compared
// case-insensitively, or -1 if the header is not a known one.
func KnownHeaderIndex(name string) KnownHeader {
	for i, n := range knownHeaderNames {
		if strings.EqualFold(n, name) {
			return KnownHeader(i)
		}
	}
	return -1
}
