// Package i18n resolves localized, parameterized messages for the
// connector's error envelopes.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"
)

//go:embed languages/*.json
var builtin embed.FS

// Catalog holds one message table per language. Tables are parsed on first
// use and immutable afterwards.
type Catalog struct {
	fsys     fs.FS
	tags     []language.Tag
	fallback language.Tag
	matcher  language.Matcher

	group  singleflight.Group
	mu     sync.RWMutex
	tables map[language.Tag]map[string]string
}

// New returns a catalog over the built-in languages.
func New(fallback string) (*Catalog, error) {
	return NewFromFS(builtin, "languages", fallback)
}

// NewFromFS returns a catalog reading <dir>/<lang>.json files from fsys.
func NewFromFS(fsys fs.FS, dir, fallback string) (*Catalog, error) {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open language directory %s: %w", dir, err)
	}
	files, err := fs.Glob(sub, "*.json")
	if err != nil {
		return nil, err
	}

	c := &Catalog{fsys: sub, tables: make(map[language.Tag]map[string]string)}
	fallbackTag, err := language.Parse(fallback)
	if err != nil {
		return nil, fmt.Errorf("invalid fallback language %q: %w", fallback, err)
	}

	// the fallback goes first so the matcher prefers it on a tie
	found := false
	for _, f := range files {
		tag, err := language.Parse(strings.TrimSuffix(f, ".json"))
		if err != nil {
			continue
		}
		if tag == fallbackTag {
			found = true
			c.tags = append([]language.Tag{tag}, c.tags...)
			continue
		}
		c.tags = append(c.tags, tag)
	}
	if !found {
		return nil, fmt.Errorf("no messages for fallback language %s", fallbackTag)
	}
	c.fallback = fallbackTag
	c.matcher = language.NewMatcher(c.tags)
	return c, nil
}

// Languages returns the languages the catalog has messages for.
func (c *Catalog) Languages() []language.Tag {
	out := make([]language.Tag, len(c.tags))
	copy(out, c.tags)
	return out
}

// Fallback returns the language used when negotiation finds no match.
func (c *Catalog) Fallback() language.Tag {
	return c.fallback
}

// Negotiate picks the catalog language for a request. An explicit langCode
// wins over the Accept-Language header.
func (c *Catalog) Negotiate(langCode, acceptLanguage string) language.Tag {
	var prefs []language.Tag
	if langCode != "" {
		if tag, err := language.Parse(langCode); err == nil {
			prefs = append(prefs, tag)
		}
	}
	if acceptLanguage != "" {
		if tags, _, err := language.ParseAcceptLanguage(acceptLanguage); err == nil {
			prefs = append(prefs, tags...)
		}
	}
	if len(prefs) == 0 {
		return c.fallback
	}
	_, idx, conf := c.matcher.Match(prefs...)
	if conf == language.No {
		return c.fallback
	}
	return c.tags[idx]
}

// Message returns the message for key in the given language, with {0}, {1},
// ... replaced by params. Missing keys fall back to the fallback language and
// finally to the key itself.
func (c *Catalog) Message(tag language.Tag, key string, params ...string) string {
	msg, ok := c.lookup(tag, key)
	if !ok && tag != c.fallback {
		msg, ok = c.lookup(c.fallback, key)
	}
	if !ok {
		msg = key
	}
	if len(params) == 0 {
		return msg
	}
	pairs := make([]string, 0, 2*len(params))
	for i, p := range params {
		pairs = append(pairs, "{"+strconv.Itoa(i)+"}", p)
	}
	return strings.NewReplacer(pairs...).Replace(msg)
}

func (c *Catalog) lookup(tag language.Tag, key string) (string, bool) {
	table, err := c.table(tag)
	if err != nil {
		return "", false
	}
	msg, ok := table[key]
	return msg, ok
}

func (c *Catalog) table(tag language.Tag) (map[string]string, error) {
	c.mu.RLock()
	table, ok := c.tables[tag]
	c.mu.RUnlock()
	if ok {
		return table, nil
	}

	v, err, _ := c.group.Do(tag.String(), func() (any, error) {
		c.mu.RLock()
		table, ok := c.tables[tag]
		c.mu.RUnlock()
		if ok {
			return table, nil
		}
		table, err := c.load(tag)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.tables[tag] = table
		c.mu.Unlock()
		return table, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]string), nil
}

func (c *Catalog) load(tag language.Tag) (map[string]string, error) {
	data, err := fs.ReadFile(c.fsys, path.Clean(tag.String()+".json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read messages for %s: %w", tag, err)
	}
	table := make(map[string]string)
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse messages for %s: %w", tag, err)
	}
	return table, nil
}
