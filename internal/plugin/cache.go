package plugin

import (
	"hash/crc32"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/crlotwhite/libetude-sub011/internal/errors"
	"github.com/crlotwhite/libetude-sub011/internal/metrics"
)

// cacheDocument is the on-disk shape of one subject's cached resolution,
// written as a single YAML document per file.
type cacheDocument struct {
	Subject string           `yaml:"subject"`
	Results []ResolvedResult `yaml:"results"`
	CRC32   uint32           `yaml:"crc32"`
}

// Cache persists dependency resolution results per subject (C10), keyed by
// plugin name, as one YAML file per subject guarded by a CRC32 trailer.
type Cache struct {
	dir string
	rmx *metrics.ResolverMetrics
}

// NewCache constructs a Cache rooted at dir, creating it if absent.
func NewCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.New(err).
			Component("plugin-cache").
			Category(errors.CategoryFileIO).
			Context("dir", dir).
			Build()
	}
	return &Cache{dir: dir}, nil
}

// SetMetrics attaches the resolver collector Load reports cache outcomes
// ("hit", "miss", "corrupted") to. A nil collector is a silent no-op.
func (c *Cache) SetMetrics(rmx *metrics.ResolverMetrics) { c.rmx = rmx }

func (c *Cache) pathFor(key string) string {
	return filepath.Join(c.dir, key+".yaml")
}

// checksum computes the CRC32 of the subject and its results, independent of
// the CRC32 field itself.
func checksum(subject string, results []ResolvedResult) (uint32, error) {
	raw, err := yaml.Marshal(struct {
		Subject string           `yaml:"subject"`
		Results []ResolvedResult `yaml:"results"`
	}{Subject: subject, Results: results})
	if err != nil {
		return 0, err
	}
	return crc32.ChecksumIEEE(raw), nil
}

// Store writes results for key atomically (temp file + rename), per
// SPEC_FULL.md §4.10.
func (c *Cache) Store(key string, results []ResolvedResult) error {
	sum, err := checksum(key, results)
	if err != nil {
		return errors.New(err).Component("plugin-cache").Category(errors.CategoryFileIO).Build()
	}

	doc := cacheDocument{Subject: key, Results: results, CRC32: sum}
	raw, err := yaml.Marshal(doc)
	if err != nil {
		return errors.New(err).Component("plugin-cache").Category(errors.CategoryFileIO).Build()
	}

	final := c.pathFor(key)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return errors.New(err).Component("plugin-cache").Category(errors.CategoryFileIO).Context("path", tmp).Build()
	}
	if err := os.Rename(tmp, final); err != nil {
		return errors.New(err).Component("plugin-cache").Category(errors.CategoryFileIO).Context("path", final).Build()
	}
	return nil
}

// Load reads back the cached results for key, verifying the CRC32 trailer,
// and reports the lookup outcome ("hit", "miss", "corrupted") to the
// attached resolver metrics collector.
func (c *Cache) Load(key string) ([]ResolvedResult, error) {
	raw, err := os.ReadFile(c.pathFor(key))
	if err != nil {
		if os.IsNotExist(err) {
			c.rmx.RecordCacheLookup("miss")
			return nil, errors.New(err).
				Component("plugin-cache").
				Category(errors.CategoryNotFound).
				Context("key", key).
				Build()
		}
		c.rmx.RecordCacheLookup("miss")
		return nil, errors.New(err).Component("plugin-cache").Category(errors.CategoryFileIO).Build()
	}

	var doc cacheDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		c.rmx.RecordCacheLookup("corrupted")
		return nil, errors.New(err).
			Component("plugin-cache").
			Category(errors.CategoryCorruptedCache).
			Context("key", key).
			Build()
	}

	want, err := checksum(doc.Subject, doc.Results)
	if err != nil || want != doc.CRC32 {
		c.rmx.RecordCacheLookup("corrupted")
		return nil, errors.Newf("resolution cache checksum mismatch for %q", key).
			Component("plugin-cache").
			Category(errors.CategoryCorruptedCache).
			Context("key", key).
			Build()
	}
	c.rmx.RecordCacheLookup("hit")
	return doc.Results, nil
}

// Invalidate removes the cached entry for key, if present.
func (c *Cache) Invalidate(key string) error {
	err := os.Remove(c.pathFor(key))
	if err != nil && !os.IsNotExist(err) {
		return errors.New(err).Component("plugin-cache").Category(errors.CategoryFileIO).Build()
	}
	return nil
}
