package rediskey

import (
	"fmt"
	"strings"
)

// Sequence counters (global convention across services)
const (
	SequencePrefix      = "seq"
	BatchSequencePrefix = "seq:batch"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildSequenceKey returns "seq:{kind}:{scope}:{day}" with kind lowercased.
func BuildSequenceKey(kind, scope, day string) string {
	return NamespaceKey(NamespaceKey(SequencePrefix, strings.ToLower(kind)), NamespaceKey(scope, day))
}

// BuildBatchSequenceKey returns "seq:batch:{productID}:{day}"
func BuildBatchSequenceKey(productID, day string) string {
	return NamespaceKey(BatchSequencePrefix, NamespaceKey(productID, day))
}
