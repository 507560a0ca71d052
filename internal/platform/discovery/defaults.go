// Package discovery centralizes internal service-discovery conventions.
package discovery

import (
	"strconv"
	"strings"
)

const (
	// ServiceRules is the rules HTTP service identity.
	ServiceRules = "rules"
	// ServiceCharacter is the character HTTP service identity.
	ServiceCharacter = "character"
	// ServiceWorld is the world HTTP service identity.
	ServiceWorld = "world"
	// ServiceStory is the story HTTP service identity.
	ServiceStory = "story"
)

var httpPorts = map[string]int{
	ServiceRules:     8000,
	ServiceCharacter: 8001,
	ServiceWorld:     8002,
	ServiceStory:     8003,
}

// DefaultHTTPPort returns the conventional port of a service, or 0.
func DefaultHTTPPort(service string) int {
	return httpPorts[strings.TrimSpace(service)]
}

// DefaultHTTPAddr returns the canonical local HTTP address for a service.
func DefaultHTTPAddr(service string) string {
	port := DefaultHTTPPort(service)
	if port <= 0 {
		return ""
	}
	return "localhost:" + strconv.Itoa(port)
}

// OrDefaultHTTPBaseURL returns value when set, otherwise http://localhost:<port>.
func OrDefaultHTTPBaseURL(value, service string) string {
	value = strings.TrimSpace(value)
	if value != "" {
		return value
	}
	addr := DefaultHTTPAddr(service)
	if addr == "" {
		return ""
	}
	return "http://" + addr
}
