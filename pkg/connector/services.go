package connector

import (
	"path"
	"strings"

	"golang.org/x/text/language"

	"github.com/denysvitali/fm-connector/pkg/config"
)

// PathTranslator maps a logical path to the path handed to the backend.
type PathTranslator interface {
	BackendPath(logical string, rc *RequestContext) string
}

// CapabilityPolicy decides which operations the widget offers for an entry.
type CapabilityPolicy interface {
	Capabilities(vp VirtualPath, protected bool, rc *RequestContext) []string
}

// IconResolver returns the icon URL for entries shown without a preview.
type IconResolver interface {
	Icon(vp VirtualPath, rc *RequestContext) string
}

// MessageResolver localizes catalogued messages.
type MessageResolver interface {
	Negotiate(langCode, acceptLanguage string) language.Tag
	Message(tag language.Tag, key string, params ...string) string
}

// ConfigProvider returns the file manager configuration for a request.
// Implementations must not return a configuration that is modified later.
type ConfigProvider interface {
	Filemanager(rc *RequestContext) *config.FilemanagerConfig
}

// PrefixTranslator places every logical path below Prefix. An empty prefix
// passes logical paths through unchanged.
type PrefixTranslator struct {
	Prefix string
}

// BackendPath implements PathTranslator.
func (t PrefixTranslator) BackendPath(logical string, _ *RequestContext) string {
	if t.Prefix == "" {
		return logical
	}
	joined := path.Join("/", t.Prefix, logical)
	if strings.HasSuffix(logical, Separator) && !strings.HasSuffix(joined, Separator) {
		joined += Separator
	}
	return joined
}

// StaticConfig serves the same configuration to every request.
type StaticConfig struct {
	Config *config.FilemanagerConfig
}

// Filemanager implements ConfigProvider.
func (s StaticConfig) Filemanager(*RequestContext) *config.FilemanagerConfig {
	return s.Config
}

// ConfiguredCapabilities grants the configured capabilities. Directories
// cannot be downloaded and the root can be neither renamed nor deleted.
// Protected entries can only be selected or downloaded.
type ConfiguredCapabilities struct {
	Configs ConfigProvider
}

// Capabilities implements CapabilityPolicy.
func (c ConfiguredCapabilities) Capabilities(vp VirtualPath, protected bool, rc *RequestContext) []string {
	configured := c.Configs.Filemanager(rc).Capabilities
	caps := make([]string, 0, len(configured))
	for _, capability := range configured {
		if vp.IsDirectory && capability == "download" {
			continue
		}
		if vp.IsRoot() && (capability == "delete" || capability == "rename") {
			continue
		}
		if protected && capability != "select" && capability != "download" {
			continue
		}
		caps = append(caps, capability)
	}
	return caps
}

// ExtensionIcons resolves icons by file extension within the configured
// icon directory.
type ExtensionIcons struct {
	Configs ConfigProvider
}

// Icon implements IconResolver.
func (e ExtensionIcons) Icon(vp VirtualPath, rc *RequestContext) string {
	icons := e.Configs.Filemanager(rc).Icons
	if vp.IsDirectory {
		return icons.Path + icons.Directory
	}
	for _, ext := range icons.Extensions {
		if vp.Extension != "" && strings.EqualFold(ext, vp.Extension) {
			return icons.Path + vp.Extension + ".png"
		}
	}
	return icons.Path + icons.Default
}
