package kvindex

import (
	"strings"

	"github.com/kailas-cloud/vecmatch/internal/domain/entity"
)

// Keyspace builds every key the index touches from one prefix:
//
//	<prefix>:<class>:<id>    entity hash
//	<prefix>:<class>:idx     FT index over the entity hashes
//	<prefix>:meta:<class>    recorded index spec
type Keyspace struct {
	prefix string
}

// NewKeyspace creates a keyspace. An empty prefix defaults to "vecmatch".
func NewKeyspace(prefix string) Keyspace {
	prefix = strings.TrimSuffix(prefix, ":")
	if prefix == "" {
		prefix = "vecmatch"
	}
	return Keyspace{prefix: prefix}
}

func (k Keyspace) entityPrefix(class entity.Class) string {
	return k.prefix + ":" + class.String() + ":"
}

func (k Keyspace) entityKey(class entity.Class, id string) string {
	return k.entityPrefix(class) + id
}

func (k Keyspace) indexName(class entity.Class) string {
	return k.prefix + ":" + class.String() + ":idx"
}

func (k Keyspace) metaKey(class entity.Class) string {
	return k.prefix + ":meta:" + class.String()
}
