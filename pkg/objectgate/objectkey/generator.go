// Package objectkey provides key generation strategies for uploads that
// arrive without a key.
package objectkey

import (
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/tendant/objectgate/pkg/objectgate"
)

// Strategy names accepted by New
const (
	StrategyFlat    = "flat"
	StrategySharded = "sharded"
)

// New returns the generator for a strategy name
func New(strategy string) (objectgate.KeyGenerator, error) {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case "", StrategyFlat:
		return NewFlatGenerator(), nil
	case StrategySharded:
		return NewShardedGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown key strategy %q", strategy)
	}
}

// FlatGenerator produces a bare UUID, with an extension when the content type has one
type FlatGenerator struct{}

func NewFlatGenerator() *FlatGenerator {
	return &FlatGenerator{}
}

func (g *FlatGenerator) GenerateKey(bucket string, options *objectgate.Options) string {
	return uuid.NewString() + extension(options)
}

// ShardedGenerator provides Git-style sharded keys
// Structure: objects/ab/cd1234ef5678...{.ext}
type ShardedGenerator struct {
	// ShardLength controls how many characters to use for sharding (default: 2)
	ShardLength int
}

func NewShardedGenerator() *ShardedGenerator {
	return &ShardedGenerator{
		ShardLength: 2,
	}
}

func (g *ShardedGenerator) GenerateKey(bucket string, options *objectgate.Options) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")

	shard := g.ShardLength
	if shard <= 0 || shard >= len(id) {
		shard = 2
	}
	return fmt.Sprintf("objects/%s/%s%s", id[:shard], id[shard:], extension(options))
}

// PrefixedGenerator prefixes keys of an underlying generator with a fixed path
type PrefixedGenerator struct {
	Prefix string
	Base   objectgate.KeyGenerator
}

func (g *PrefixedGenerator) GenerateKey(bucket string, options *objectgate.Options) string {
	prefix := sanitizePathComponent(strings.Trim(g.Prefix, "/"))
	return path.Join(prefix, g.Base.GenerateKey(bucket, options))
}

// FuncGenerator allows users to provide their own key generation function
type FuncGenerator func(bucket string, options *objectgate.Options) string

func (f FuncGenerator) GenerateKey(bucket string, options *objectgate.Options) string {
	return f(bucket, options)
}

func extension(options *objectgate.Options) string {
	if options == nil || options.ContentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(options.ContentType)
	if err != nil {
		return ""
	}
	exts, err := mime.ExtensionsByType(mediaType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	return exts[0]
}

func sanitizePathComponent(component string) string {
	replacer := strings.NewReplacer(
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
		"..", "_",
	)
	return replacer.Replace(component)
}
