package remote

import "fmt"

// Scope is a permission an access token can be restricted to.
type Scope string

const (
	ScopeRootReadonly  Scope = "root_readonly"
	ScopeRootReadwrite Scope = "root_readwrite"
	ScopeItemPreview   Scope = "item_preview"
	ScopeItemDownload  Scope = "item_download"
	ScopeItemUpload    Scope = "item_upload"
	ScopeItemDelete    Scope = "item_delete"
	ScopeItemRename    Scope = "item_rename"
	ScopeItemShare     Scope = "item_share"
	ScopeBaseExplorer  Scope = "base_explorer"
)

var knownScopes = []Scope{
	ScopeRootReadonly,
	ScopeRootReadwrite,
	ScopeItemPreview,
	ScopeItemDownload,
	ScopeItemUpload,
	ScopeItemDelete,
	ScopeItemRename,
	ScopeItemShare,
	ScopeBaseExplorer,
}

// ParseScope validates s against the known scopes.
func ParseScope(s string) (Scope, error) {
	for _, scope := range knownScopes {
		if string(scope) == s {
			return scope, nil
		}
	}
	return "", fmt.Errorf("unknown scope %q", s)
}

// CanWrite reports whether scopes permit creating files and folders.
func CanWrite(scopes []Scope) bool {
	return hasAny(scopes, ScopeRootReadwrite, ScopeItemUpload)
}

// CanDelete reports whether scopes permit deleting items.
func CanDelete(scopes []Scope) bool {
	return hasAny(scopes, ScopeRootReadwrite, ScopeItemDelete)
}

// CanDownload reports whether scopes permit reading file contents.
func CanDownload(scopes []Scope) bool {
	return hasAny(scopes, ScopeRootReadonly, ScopeRootReadwrite, ScopeItemDownload)
}

func hasAny(scopes []Scope, want ...Scope) bool {
	for _, s := range scopes {
		for _, w := range want {
			if s == w {
				return true
			}
		}
	}
	return false
}
