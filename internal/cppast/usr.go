package cppast

import (
	"strconv"
	"strings"
)

// Synthesized identifiers follow clang's USR layout closely enough that
// scope prefixes nest and a method's owning class is found by cutting at
// the last "@F@". Parameter types are not encoded, so overloads share a USR.

const usrRoot = "c:"

func namespaceUSR(scope, name string) string {
	return scope + "@N@" + name
}

func classUSR(scope, name string) string {
	return scope + "@S@" + name
}

func classTemplateUSR(scope, name string, params int) string {
	return scope + "@ST>" + templateParams(params) + "@" + name
}

func functionUSR(scope, name string) string {
	return scope + "@F@" + name + "#"
}

func functionTemplateUSR(scope, name string, params int) string {
	return scope + "@FT@>" + templateParams(params) + name + "#"
}

func fieldUSR(class, name string) string {
	return class + "@FI@" + name
}

func templateParams(n int) string {
	return strconv.Itoa(n) + strings.Repeat("#T", n)
}
