package floodgate

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// KeyExtractor is a function that extracts a rate limit key from an HTTP
// request. The key identifies the client (origin address, API key, ...).
//
// Note: keying by origin address conflates distinct clients behind shared
// egress and trusts whatever the transport reports. Deployments that have an
// authenticated identity available should prefer a header extractor for it.
type KeyExtractor func(*http.Request) (string, error)

// ExtractAddr returns a KeyExtractor that uses the request's origin address,
// prefixed with "addr_".
func ExtractAddr() KeyExtractor {
	return func(r *http.Request) (string, error) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			// RemoteAddr might not carry a port in some edge cases
			host = r.RemoteAddr
		}
		if host == "" {
			return "", fmt.Errorf("%w: empty origin address", ErrKeyExtractionFailed)
		}
		return "addr_" + host, nil
	}
}

// ExtractAddrWithProxy returns a KeyExtractor that considers proxy headers.
// It checks X-Forwarded-For and X-Real-IP before falling back to RemoteAddr.
// Only use this behind a trusted reverse proxy: both headers are
// client-supplied and trivially spoofable otherwise.
func ExtractAddrWithProxy() KeyExtractor {
	fallback := ExtractAddr()
	return func(r *http.Request) (string, error) {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			// The first entry is the original client
			parts := strings.Split(xff, ",")
			if addr := strings.TrimSpace(parts[0]); addr != "" {
				return "addr_" + addr, nil
			}
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return "addr_" + xri, nil
		}
		return fallback(r)
	}
}

// ExtractHeader returns a KeyExtractor that uses a specific HTTP header.
// Example: ExtractHeader("X-API-Key") keys clients by their API key.
func ExtractHeader(headerName string) KeyExtractor {
	return func(r *http.Request) (string, error) {
		value := r.Header.Get(headerName)
		if value == "" {
			return "", fmt.Errorf("%w: header %s not found or empty", ErrKeyExtractionFailed, headerName)
		}
		return fmt.Sprintf("header:%s:%s", headerName, value), nil
	}
}

// ExtractStatic returns a KeyExtractor that always returns the same key,
// giving all clients one shared budget.
func ExtractStatic(key string) KeyExtractor {
	return func(r *http.Request) (string, error) {
		if key == "" {
			return "", fmt.Errorf("%w: static key is empty", ErrKeyExtractionFailed)
		}
		return key, nil
	}
}

// ParseKeyExtractorConfig creates a KeyExtractor from a configuration string.
// Supported formats:
// - "addr" -> ExtractAddr()
// - "addr-proxy" -> ExtractAddrWithProxy()
// - "header:X-API-Key" -> ExtractHeader("X-API-Key")
// - "static:global" -> ExtractStatic("global")
func ParseKeyExtractorConfig(config string) (KeyExtractor, error) {
	parts := strings.SplitN(config, ":", 2)

	switch parts[0] {
	case "addr":
		return ExtractAddr(), nil

	case "addr-proxy":
		return ExtractAddrWithProxy(), nil

	case "header":
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w: header extractor requires format 'header:HeaderName'", ErrInvalidConfig)
		}
		return ExtractHeader(parts[1]), nil

	case "static":
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w: static extractor requires format 'static:key'", ErrInvalidConfig)
		}
		return ExtractStatic(parts[1]), nil

	default:
		return nil, fmt.Errorf("%w: unknown key extractor type: %s", ErrInvalidConfig, parts[0])
	}
}
