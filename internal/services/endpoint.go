package services

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"auction-monitor/internal/domain"
)

const updatesPath = "auction-updates"

type EndpointConfig struct {
	// PageURL is the origin the client is served from, e.g. http://localhost:8080/auction-web/.
	PageURL string
	// BasePath overrides the context path taken from PageURL. "/" means none.
	BasePath string
}

// BuildEndpoint returns scheme://host[:port]/[basePath/]auction-updates/{id}.
func BuildEndpoint(cfg EndpointConfig, id domain.SubscriptionID) (string, error) {
	if id == "" {
		return "", errors.New("subscription id is empty")
	}

	page, err := url.Parse(cfg.PageURL)
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}

	var scheme string
	switch strings.ToLower(page.Scheme) {
	case "https", "wss":
		scheme = "wss"
	case "http", "ws":
		scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported page url scheme %q", page.Scheme)
	}

	if page.Host == "" {
		return "", fmt.Errorf("page url %q has no host", cfg.PageURL)
	}

	segments := make([]string, 0, 3)
	if base := resolveBasePath(page.Path, cfg.BasePath); base != "" {
		segments = append(segments, base)
	}
	segments = append(segments, updatesPath, url.PathEscape(string(id)))

	return scheme + "://" + page.Host + "/" + strings.Join(segments, "/"), nil
}

// resolveBasePath picks the context path. Without an override the first segment of the
// page path is used, but only when it is a directory ("/app/" or "/app/page.html").
func resolveBasePath(pagePath, override string) string {
	if override != "" {
		return strings.Trim(override, "/")
	}

	trimmed := strings.TrimPrefix(pagePath, "/")
	i := strings.Index(trimmed, "/")
	if i <= 0 {
		return ""
	}
	return trimmed[:i]
}
