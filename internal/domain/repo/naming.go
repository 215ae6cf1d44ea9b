package repo

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kohakuhub/server/internal/model"
	apperr "github.com/kohakuhub/server/internal/shared/errors"
)

// maxNameLen bounds repository and namespace name components.
const maxNameLen = 96

var nameChars = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// reservedNamespaces are route words that can never be namespaces.
var reservedNamespaces = map[string]struct{}{
	"models":   {},
	"datasets": {},
	"spaces":   {},
	"api":      {},
	"admin":    {},
}

// LakeFSName derives the versioned-store repository name from the catalog
// identity. The numeric id suffix keeps names unique across delete and
// rename, so a freed (type, namespace, name) can be reused immediately.
func LakeFSName(prefix string, repoType model.RepoType, fullID string, id int64) string {
	name := fmt.Sprintf("%s-%s-%s-%d", prefix, repoType, strings.ReplaceAll(fullID, "/", "-"), id)
	return strings.ToLower(name)
}

// ValidateRepoName checks a repository name against the hub naming rules.
func ValidateRepoName(name string) error {
	return validateComponent("repository name", name)
}

// ValidateNamespace checks a namespace like a repository name and rejects
// reserved route words.
func ValidateNamespace(namespace string) error {
	if err := validateComponent("namespace", namespace); err != nil {
		return err
	}
	if _, ok := reservedNamespaces[strings.ToLower(namespace)]; ok {
		return apperr.InvalidRepoID(fmt.Sprintf("namespace %q is reserved", namespace))
	}
	return nil
}

// ParseFullID splits "namespace/name" and validates both halves.
func ParseFullID(fullID string) (string, string, error) {
	namespace, name, ok := strings.Cut(fullID, "/")
	if !ok || strings.Contains(name, "/") {
		return "", "", apperr.InvalidRepoID(fmt.Sprintf("repository id %q must have the form namespace/name", fullID))
	}
	if err := ValidateNamespace(namespace); err != nil {
		return "", "", err
	}
	if err := ValidateRepoName(name); err != nil {
		return "", "", err
	}
	return namespace, name, nil
}

func validateComponent(kind, s string) error {
	if s == "" {
		return apperr.InvalidRepoID(kind + " is empty")
	}
	if len(s) > maxNameLen {
		return apperr.InvalidRepoID(fmt.Sprintf("%s exceeds %d characters", kind, maxNameLen))
	}
	if !nameChars.MatchString(s) {
		return apperr.InvalidRepoID(fmt.Sprintf("%s may only contain letters, digits, '.', '_' and '-'", kind))
	}
	if strings.HasPrefix(s, ".") || strings.HasSuffix(s, ".") ||
		strings.HasPrefix(s, "-") || strings.HasSuffix(s, "-") {
		return apperr.InvalidRepoID(fmt.Sprintf("%s may not start or end with '.' or '-'", kind))
	}
	if strings.Contains(s, "..") {
		return apperr.InvalidRepoID(fmt.Sprintf("%s may not contain '..'", kind))
	}
	return nil
}
