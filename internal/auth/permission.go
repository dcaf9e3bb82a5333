package auth

import (
	"github.com/gobwas/glob"
)

// HTTPMethod is a verb a permission may grant. Besides the concrete
// verbs there are three synthetic groups: SAFE (read-only methods),
// UNSAFE (mutating methods) and ALL.
type HTTPMethod string

const (
	MethodGet     HTTPMethod = "GET"
	MethodHead    HTTPMethod = "HEAD"
	MethodOptions HTTPMethod = "OPTIONS"
	MethodPost    HTTPMethod = "POST"
	MethodPut     HTTPMethod = "PUT"
	MethodPatch   HTTPMethod = "PATCH"
	MethodDelete  HTTPMethod = "DELETE"

	MethodSafe   HTTPMethod = "SAFE"
	MethodUnsafe HTTPMethod = "UNSAFE"
	MethodAll    HTTPMethod = "ALL"
)

var knownMethods = map[HTTPMethod]bool{
	MethodGet: true, MethodHead: true, MethodOptions: true,
	MethodPost: true, MethodPut: true, MethodPatch: true, MethodDelete: true,
	MethodSafe: true, MethodUnsafe: true, MethodAll: true,
}

// IsSafe reports whether the method is read-only.
func (m HTTPMethod) IsSafe() bool {
	switch m {
	case MethodGet, MethodHead, MethodOptions:
		return true
	}
	return false
}

// methodSetAllows is the single place where the SAFE/UNSAFE/ALL group
// semantics live; both Permission and the path-rule table use it.
func methodSetAllows(set []HTTPMethod, m HTTPMethod) bool {
	for _, allowed := range set {
		switch {
		case allowed == m:
			return true
		case allowed == MethodAll:
			return true
		case allowed == MethodSafe && m.IsSafe():
			return true
		case allowed == MethodUnsafe && !m.IsSafe():
			return true
		}
	}
	return false
}

// ContentTypeAny in a content-type allowlist permits any type.
const ContentTypeAny = "*"

// Permission is the payload of a capability token: the exact authority
// its bearer holds. The builder methods are non-destructive; each
// returns a narrowed copy, so issuance code can only ever add
// restrictions to a base permission, never widen one it was handed.
type Permission struct {
	Methods      []HTTPMethod `json:"methods"`
	Resource     string       `json:"resource"`
	MaxSize      *int64       `json:"max_size"`
	ContentTypes []string     `json:"content_types"`
}

// NewMinimumPermission returns a permission with zero authority. Every
// predicate on it fails until something is explicitly permitted.
func NewMinimumPermission() Permission {
	return Permission{}
}

// NewRootPermission returns full authority. Only trusted internal
// callers (public-route bypass) ever hold this.
func NewRootPermission() Permission {
	return Permission{
		Methods:      []HTTPMethod{MethodAll},
		Resource:     "*",
		ContentTypes: []string{ContentTypeAny},
	}
}

func (p Permission) clone() Permission {
	out := p
	out.Methods = append([]HTTPMethod(nil), p.Methods...)
	out.ContentTypes = append([]string(nil), p.ContentTypes...)
	if p.MaxSize != nil {
		size := *p.MaxSize
		out.MaxSize = &size
	}
	return out
}

// PermitMethods returns a copy that additionally allows the given methods.
func (p Permission) PermitMethods(methods ...HTTPMethod) Permission {
	out := p.clone()
	out.Methods = append(out.Methods, methods...)
	return out
}

// PermitResourcePattern returns a copy bound to the given glob pattern.
func (p Permission) PermitResourcePattern(pattern string) Permission {
	out := p.clone()
	out.Resource = pattern
	return out
}

// RestrictMaxSize returns a copy with the given body-size ceiling.
// A nil ceiling means unbounded.
func (p Permission) RestrictMaxSize(maxSize *int64) Permission {
	out := p.clone()
	if maxSize == nil {
		out.MaxSize = nil
		return out
	}
	size := *maxSize
	out.MaxSize = &size
	return out
}

// PermitContentTypes returns a copy that additionally allows the given
// MIME types. ContentTypeAny permits everything.
func (p Permission) PermitContentTypes(contentTypes ...string) Permission {
	out := p.clone()
	out.ContentTypes = append(out.ContentTypes, contentTypes...)
	return out
}

// CanPerformMethod reports whether the permission grants the method,
// directly or through a synthetic group.
func (p Permission) CanPerformMethod(m HTTPMethod) bool {
	return methodSetAllows(p.Methods, m)
}

// CanAccess reports whether the resource pattern matches the given
// path. An empty or uncompilable pattern denies: tokens arrive from
// the network and a bad pattern must fail closed, not open.
func (p Permission) CanAccess(path string) bool {
	if p.Resource == "" {
		return false
	}
	matcher, err := glob.Compile(p.Resource)
	if err != nil {
		return false
	}
	return matcher.Match(path)
}

// CheckSize reports whether a body of n bytes is within the ceiling.
func (p Permission) CheckSize(n int64) bool {
	if n < 0 {
		return false
	}
	if p.MaxSize == nil {
		return true
	}
	return n <= *p.MaxSize
}

// CheckContentType reports whether the MIME type is allowed. An empty
// allowlist denies everything.
func (p Permission) CheckContentType(contentType string) bool {
	for _, allowed := range p.ContentTypes {
		if allowed == ContentTypeAny || allowed == contentType {
			return true
		}
	}
	return false
}

// RestrictsSize reports whether the permission carries a size ceiling,
// in which case requests must prove compliance via Content-Length.
func (p Permission) RestrictsSize() bool {
	return p.MaxSize != nil
}

// RestrictsContentType reports whether the allowlist constrains the
// MIME type at all.
func (p Permission) RestrictsContentType() bool {
	if len(p.ContentTypes) == 0 {
		return true
	}
	for _, allowed := range p.ContentTypes {
		if allowed == ContentTypeAny {
			return false
		}
	}
	return true
}
