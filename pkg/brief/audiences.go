package brief

import (
	"strings"

	"github.com/briefdesk/briefedit/pkg/catalog"
)

// BatchResult reports how a batch of staged audiences was merged.
type BatchResult struct {
	Added          []string `json:"added"`
	AlreadyPresent []string `json:"alreadyPresent"`
}

// SetCohortAudiences replaces the audience group of a cohort. The
// audiences start checked.
func (b *Brief) SetCohortAudiences(cohort string, auds []Audience) {
	group := CohortAudiences{Cohort: cohort, Audiences: make([]Audience, 0, len(auds))}
	for _, a := range auds {
		a.Checked = true
		if a.Similarity == 0 {
			a.Similarity = 1
		}
		group.Audiences = append(group.Audiences, a)
	}
	for i := range b.CohortAudiences {
		if strings.EqualFold(b.CohortAudiences[i].Cohort, cohort) {
			b.CohortAudiences[i] = group
			return
		}
	}
	b.CohortAudiences = append(b.CohortAudiences, group)
}

// AttributeCohortAudiences moves unattributed cohort audiences into the
// group of the selected cohort whose catalog codes contain them.
func (b *Brief) AttributeCohortAudiences(cat *catalog.Catalog) {
	var rest []Audience
	var unattributed []Audience
	keep := b.CohortAudiences[:0]
	for _, g := range b.CohortAudiences {
		if g.Cohort == "" {
			unattributed = append(unattributed, g.Audiences...)
			continue
		}
		keep = append(keep, g)
	}
	b.CohortAudiences = keep

	for _, a := range unattributed {
		owner := ""
		for _, c := range b.Cohorts {
			if containsCode(cat.CohortCodes(c.Name), a.ABVR) {
				owner = c.Name
				break
			}
		}
		if owner == "" {
			rest = append(rest, a)
			continue
		}
		b.appendToCohortGroup(owner, a)
	}
	if len(rest) > 0 {
		b.CohortAudiences = append(b.CohortAudiences, CohortAudiences{Audiences: rest})
	}
}

func (b *Brief) appendToCohortGroup(cohort string, a Audience) {
	for i := range b.CohortAudiences {
		if strings.EqualFold(b.CohortAudiences[i].Cohort, cohort) {
			b.CohortAudiences[i].Audiences = append(b.CohortAudiences[i].Audiences, a)
			return
		}
	}
	b.CohortAudiences = append(b.CohortAudiences, CohortAudiences{Cohort: cohort, Audiences: []Audience{a}})
}

// CohortAudienceCodes lists every code shown in the cohort section.
func (b *Brief) CohortAudienceCodes() map[string]struct{} {
	codes := map[string]struct{}{}
	for _, g := range b.CohortAudiences {
		for _, a := range g.Audiences {
			codes[a.ABVR] = struct{}{}
		}
	}
	return codes
}

// MergeAudiences commits a batch of staged audiences. Codes not yet in the
// brief are appended to the additional pool checked; known codes are checked
// wherever they appear.
func (b *Brief) MergeAudiences(incoming []Audience) BatchResult {
	var res BatchResult
	seen := map[string]struct{}{}
	for _, a := range incoming {
		a.ABVR = strings.TrimSpace(a.ABVR)
		if a.ABVR == "" {
			continue
		}
		if _, dup := seen[a.ABVR]; dup {
			continue
		}
		seen[a.ABVR] = struct{}{}

		if b.hasAudience(a.ABVR) {
			b.setAudienceChecked(a.ABVR, true)
			res.AlreadyPresent = append(res.AlreadyPresent, a.ABVR)
			continue
		}
		a.Checked = true
		b.LeftABVRs = append(b.LeftABVRs, a)
		res.Added = append(res.Added, a.ABVR)
	}
	return res
}

// ReplaceFromKeywords swaps in the backend's keyword driven suggestions.
func (b *Brief) ReplaceFromKeywords(ka KeywordAudiences) {
	b.Keywords = b.Keywords[:0]
	for _, kw := range ka.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" && b.keywordIndex(kw) < 0 {
			b.Keywords = append(b.Keywords, Keyword{Keyword: kw, Checked: true})
		}
	}
	b.ABVRs = setChecked(ka.ABVRs, true)
	b.LeftABVRs = setChecked(ka.LeftABVRs, false)
}

func setChecked(list []Audience, checked bool) []Audience {
	out := make([]Audience, len(list))
	for i, a := range list {
		a.Checked = checked
		out[i] = a
	}
	return out
}

// CheckedABVRCodes lists checked codes once each: cohort groups first, then
// the recommended pool, then the additional pool.
func (b *Brief) CheckedABVRCodes() []string {
	var codes []string
	seen := map[string]struct{}{}
	b.eachAudience(func(a *Audience) {
		if !a.Checked {
			return
		}
		if _, ok := seen[a.ABVR]; ok {
			return
		}
		seen[a.ABVR] = struct{}{}
		codes = append(codes, a.ABVR)
	})
	return codes
}

// SelectedAudiences returns the details of every checked audience, once each.
func (b *Brief) SelectedAudiences() []Audience {
	var out []Audience
	seen := map[string]struct{}{}
	b.eachAudience(func(a *Audience) {
		if !a.Checked {
			return
		}
		if _, ok := seen[a.ABVR]; ok {
			return
		}
		seen[a.ABVR] = struct{}{}
		out = append(out, *a)
	})
	return out
}

// AudienceCodes lists every code in the brief, checked or not.
func (b *Brief) AudienceCodes() []string {
	var codes []string
	seen := map[string]struct{}{}
	b.eachAudience(func(a *Audience) {
		if _, ok := seen[a.ABVR]; !ok {
			seen[a.ABVR] = struct{}{}
			codes = append(codes, a.ABVR)
		}
	})
	return codes
}

func containsCode(codes []string, code string) bool {
	for _, c := range codes {
		if strings.TrimSpace(c) == code {
			return true
		}
	}
	return false
}
