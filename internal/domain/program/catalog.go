package program

import "strings"

// Catalog maps a program slug to everything the downstream systems need to
// know about it: the coaching-platform program ID, the CRM tag, and the
// pipeline stage a converted subscriber lands in. Built from configuration at
// startup; the maps are read-only afterwards.
type Catalog struct {
	defaultSlug string
	platformIDs map[string]string // slug -> coaching platform program ID
	crmTags     map[string]string // slug -> CRM tag name
	tierStages  map[string]string // keyword in slug -> pipeline stage on conversion
	memberStage string            // conversion stage when no tier keyword matches
}

// Config holds the raw catalog configuration
type Config struct {
	DefaultSlug string
	PlatformIDs map[string]string
	CRMTags     map[string]string
	TierStages  map[string]string
	MemberStage string
}

// NewCatalog builds a catalog from configuration
func NewCatalog(cfg Config) *Catalog {
	c := &Catalog{
		defaultSlug: cfg.DefaultSlug,
		platformIDs: cfg.PlatformIDs,
		crmTags:     cfg.CRMTags,
		tierStages:  cfg.TierStages,
		memberStage: cfg.MemberStage,
	}
	if c.platformIDs == nil {
		c.platformIDs = map[string]string{}
	}
	if c.crmTags == nil {
		c.crmTags = map[string]string{}
	}
	if c.tierStages == nil {
		c.tierStages = map[string]string{}
	}
	if c.memberStage == "" {
		c.memberStage = "Member"
	}
	return c
}

// DefaultSlug returns the configured fallback program slug
func (c *Catalog) DefaultSlug() string {
	return c.defaultSlug
}

// PlatformID returns the coaching-platform program ID for a slug, or "" when
// the slug is unknown.
func (c *Catalog) PlatformID(slug string) string {
	return c.platformIDs[slug]
}

// CRMTag returns the CRM tag for a slug, or "" when none is configured
func (c *Catalog) CRMTag(slug string) string {
	return c.crmTags[slug]
}

// ConversionStage maps a program slug to the pipeline stage a converted
// subscriber moves to. Tier keywords are matched as substrings of the slug;
// when none match, the member stage applies.
func (c *Catalog) ConversionStage(slug string) string {
	lowered := strings.ToLower(slug)
	for keyword, stage := range c.tierStages {
		if keyword != "" && strings.Contains(lowered, strings.ToLower(keyword)) {
			return stage
		}
	}
	return c.memberStage
}
