package brief

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/briefdesk/briefedit/pkg/catalog"
	"github.com/tidwall/gjson"
)

var ErrMalformed = errors.New("malformed brief")

// Parse hydrates a Brief from the email processing response. Recommended
// audiences start checked, additional ones unchecked.
func Parse(raw []byte) (*Brief, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrMalformed
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil, ErrMalformed
	}

	b := &Brief{}

	for _, v := range root.Get("cohort").Array() {
		name := v.String()
		if v.IsObject() {
			name = v.Get("name").String()
		}
		if name = strings.TrimSpace(name); name != "" && b.cohortIndex(name) < 0 {
			b.Cohorts = append(b.Cohorts, Cohort{Name: name, Checked: true})
		}
	}

	for _, v := range root.Get("locations").Array() {
		b.Locations = append(b.Locations, Location{
			IncludedLocations: parseLocationRefs(v.Get("includedLocations")),
			ExcludedLocations: parseLocationRefs(v.Get("excludedLocations")),
			NameAsID:          v.Get("nameAsId").String(),
			Checked:           true,
		})
	}

	for _, v := range root.Get("preset").Array() {
		if key := strings.TrimSpace(v.String()); key != "" && b.presetIndex(key) < 0 {
			b.Presets = append(b.Presets, Preset{Key: key, Checked: true})
		}
	}

	for _, v := range root.Get("keywords").Array() {
		if kw := strings.TrimSpace(v.String()); kw != "" && b.keywordIndex(kw) < 0 {
			b.Keywords = append(b.Keywords, Keyword{Keyword: kw, Checked: true})
		}
	}

	b.ABVRs = ParseAudiences(root.Get("abvrs"), true)
	b.LeftABVRs = ParseAudiences(root.Get("left_abvrs"), false)

	if auds := root.Get("cohort_auds"); auds.IsObject() {
		auds.ForEach(func(key, value gjson.Result) bool {
			b.CohortAudiences = append(b.CohortAudiences, CohortAudiences{
				Cohort:    key.String(),
				Audiences: ParseAudiences(value, true),
			})
			return true
		})
	} else if list := root.Get("cohort_abvrs"); list.IsArray() {
		if a := ParseAudiences(list, true); len(a) > 0 {
			b.CohortAudiences = append(b.CohortAudiences, CohortAudiences{Audiences: a})
		}
	}

	b.CreativeSize = root.Get("creative_size").String()
	b.DeviceCategory = firstWord(root.Get("device_category").String())
	b.TargetGender = root.Get("target_gender").String()
	b.TargetAge = parseTargetAge(root.Get("target_age"))
	b.Duration = parseDuration(root.Get("duration"))

	for _, v := range root.Get("locations_not_found").Array() {
		name := v.String()
		if v.IsObject() {
			name = v.Get("name").String()
		}
		if name = strings.TrimSpace(name); name != "" {
			b.LocationsNotFound = append(b.LocationsNotFound, name)
		}
	}

	if ppts := root.Get("cohort_ppts"); ppts.Exists() {
		b.CohortPPTs = json.RawMessage(ppts.Raw)
	}

	return b, nil
}

// ParseAudiences reads a list of audience objects. Bare strings are taken as codes.
// Both the editor's "name" and the audience service's "audience_name" are accepted.
func ParseAudiences(list gjson.Result, checked bool) []Audience {
	var out []Audience
	seen := map[string]struct{}{}
	for _, v := range list.Array() {
		a := Audience{Checked: checked}
		if v.IsObject() {
			a.ABVR = strings.TrimSpace(v.Get("abvr").String())
			a.Name = v.Get("name").String()
			if a.Name == "" {
				a.Name = v.Get("audience_name").String()
			}
			a.Description = v.Get("description").String()
			a.Similarity = v.Get("similarity").Float()
		} else {
			a.ABVR = strings.TrimSpace(v.String())
		}
		if a.ABVR == "" {
			continue
		}
		if _, dup := seen[a.ABVR]; dup {
			continue
		}
		seen[a.ABVR] = struct{}{}
		out = append(out, a)
	}
	return out
}

func parseLocationRefs(list gjson.Result) []catalog.LocationRef {
	var out []catalog.LocationRef
	for _, v := range list.Array() {
		if v.IsObject() {
			name := v.Get("name").String()
			if cc := v.Get("countryCode"); cc.Exists() {
				name = catalog.FormatLocationName(name, cc.String(), v.Get("type").String())
			}
			id := v.Get("id").Int()
			if id == 0 {
				id = v.Get("locationId").Int()
			}
			out = append(out, catalog.LocationRef{Name: name, ID: id})
			continue
		}
		out = append(out, catalog.LocationRef{Name: v.String()})
	}
	return out
}

// firstWord keeps the first word of values like "All Devices".
func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// parseDuration accepts 30, "30" and "30 Days".
func parseDuration(v gjson.Result) int {
	if v.Type == gjson.Number {
		return int(v.Int())
	}
	n, err := strconv.Atoi(firstWord(v.String()))
	if err != nil {
		return 0
	}
	return n
}

// parseTargetAge accepts a range string or a list of ranges, which is
// collapsed into the span covering all of them. Missing means "All".
func parseTargetAge(v gjson.Result) string {
	if v.IsArray() {
		var parts []string
		for _, item := range v.Array() {
			parts = append(parts, item.String())
		}
		if len(parts) == 0 {
			return AgeAll
		}
		if span, err := SpanAges(parts); err == nil {
			return span
		}
		return strings.Join(parts, ",")
	}
	s := strings.TrimSpace(v.String())
	if s == "" {
		return AgeAll
	}
	if norm, err := ParseAge(s); err == nil {
		return norm
	}
	return s
}
