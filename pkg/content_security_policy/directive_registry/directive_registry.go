// Package directive_registry holds the fixed, ordered set of directives that
// have their own configuration value. Directives outside the set belong in
// the free-text block of other directives.
package directive_registry

import (
	"slices"
	"strings"
	"unicode"
)

type DirectiveName string

const (
	DefaultSrc     DirectiveName = "default-src"
	ScriptSrc      DirectiveName = "script-src"
	StyleSrc       DirectiveName = "style-src"
	ImgSrc         DirectiveName = "img-src"
	ConnectSrc     DirectiveName = "connect-src"
	FontSrc        DirectiveName = "font-src"
	ObjectSrc      DirectiveName = "object-src"
	MediaSrc       DirectiveName = "media-src"
	FrameSrc       DirectiveName = "frame-src"
	ChildSrc       DirectiveName = "child-src"
	WorkerSrc      DirectiveName = "worker-src"
	ManifestSrc    DirectiveName = "manifest-src"
	FormAction     DirectiveName = "form-action"
	FrameAncestors DirectiveName = "frame-ancestors"
	BaseUri        DirectiveName = "base-uri"
)

// OtherStorageKey is the storage key of the free-text block of other directives.
const OtherStorageKey = "directivesOther"

var directives = [...]DirectiveName{
	DefaultSrc,
	ScriptSrc,
	StyleSrc,
	ImgSrc,
	ConnectSrc,
	FontSrc,
	ObjectSrc,
	MediaSrc,
	FrameSrc,
	ChildSrc,
	WorkerSrc,
	ManifestSrc,
	FormAction,
	FrameAncestors,
	BaseUri,
}

var storageKeyToDirective = func() map[string]DirectiveName {
	m := make(map[string]DirectiveName, len(directives))
	for _, name := range directives {
		m[StorageKey(name)] = name
	}
	return m
}()

var examples = map[DirectiveName]string{
	DefaultSrc: "'none'",
	ScriptSrc:  "'self' cdnjs.cloudflare.com *.google.com www.google-analytics.com www.googletagmanager.com",
	StyleSrc:   "'self' 'unsafe-inline' cdnjs.cloudflare.com",
	ImgSrc:     "'self' data:",
	ConnectSrc: "'self' www.google-analytics.com",
	FontSrc:    "'self' fonts.gstatic.com",
	MediaSrc:   "'self' data:",
	FrameSrc:   "www.google.com www.youtube.com www.youtube-nocookie.com player.vimeo.com",
}

// List returns the registered directives in header order.
func List() []DirectiveName {
	return slices.Clone(directives[:])
}

func IsRegistered(name DirectiveName) bool {
	return slices.Contains(directives[:], name)
}

// StorageKey maps a directive name to its configuration key, in lower camel
// case: "default-src" becomes "defaultSrc".
func StorageKey(name DirectiveName) string {
	var builder strings.Builder

	upperNext := false
	for _, r := range string(name) {
		if r == '-' {
			upperNext = true
			continue
		}
		if upperNext {
			r = unicode.ToUpper(r)
			upperNext = false
		}
		builder.WriteRune(r)
	}

	return builder.String()
}

// Lookup returns the registered directive with the storage key.
func Lookup(storageKey string) (DirectiveName, bool) {
	name, ok := storageKeyToDirective[storageKey]
	return name, ok
}

// Example returns a suggested value for the directive, used when writing a
// starter configuration.
func Example(name DirectiveName) string {
	if example, ok := examples[name]; ok {
		return example
	}
	return "'self'"
}
