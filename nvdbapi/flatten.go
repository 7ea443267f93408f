package nvdbapi

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Property ids from this value and up are relations to other road objects
const relationPropertyID = 100000

var routeSystemParts = []string{"strekning", "kryssystem", "sideanlegg"}

// FlattenSegment converts one segmented road network object into a row
func FlattenSegment(obj map[string]interface{}) map[string]interface{} {
	row := map[string]interface{}{}
	copyKeys(row, obj, "veglenkesekvensid", "startposisjon", "sluttposisjon", "lengde", "typeVeg", "detaljnivå", "kommune", "fylke", "type", "kortform")
	if kortform, ok := row["kortform"]; ok {
		row["stedfesting"] = kortform
		delete(row, "kortform")
	}
	flattenRouteSystem(row, nested(obj, "vegsystemreferanse"))
	row["geometri"] = wktOf(obj)
	return row
}

// FlattenRoadObject converts road object into rows: one per current road object segment.
// Properties are keyed by name; relations and own geometry properties are left out.
// Nil is returned for objects without geometry
func FlattenRoadObject(obj map[string]interface{}) []map[string]interface{} {
	if _, ok := obj["geometri"]; !ok {
		return nil
	}
	props := map[string]interface{}{}
	if metadata := nested(obj, "metadata"); metadata != nil {
		if objType := nested(metadata, "type"); objType != nil {
			props["objekttype"] = objType["id"]
		}
		props["versjon"] = metadata["versjon"]
	}
	props["nvdbId"] = obj["id"]
	for _, raw := range list(obj, "egenskaper") {
		prop, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		name, _ := prop["navn"].(string)
		if name == "" || strings.Contains(strings.ToLower(name), "geometri") {
			continue
		}
		if id, ok := intOf(prop["id"]); ok && id >= relationPropertyID {
			continue
		}
		props[name] = prop["verdi"]
	}

	rows := []map[string]interface{}{}
	for _, raw := range list(obj, "vegsegmenter") {
		seg, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		if _, closed := seg["sluttdato"]; closed {
			continue
		}
		row := make(map[string]interface{}, len(props)+12)
		for k, v := range props {
			row[k] = v
		}
		copyKeys(row, seg, "veglenkesekvensid", "startposisjon", "sluttposisjon", "relativPosisjon", "lengde", "detaljnivå", "typeVeg", "kommune", "fylke")
		flattenRouteSystem(row, nested(seg, "vegsystemreferanse"))
		row["geometri"] = wktOf(seg)
		rows = append(rows, row)
	}
	return rows
}

// flattenRouteSystem extracts short form, direction and traffic group of route system reference
func flattenRouteSystem(row map[string]interface{}, ref map[string]interface{}) {
	if ref == nil {
		return
	}
	if kortform, ok := ref["kortform"]; ok {
		row["vref"] = kortform
	}
	if system := nested(ref, "vegsystem"); system != nil {
		copyKeys(row, system, "vegkategori", "fase", "nummer")
	}
	for _, part := range routeSystemParts {
		sub := nested(ref, part)
		if sub == nil {
			continue
		}
		if v, ok := sub["retning"]; ok {
			row["segmentretning"] = v
		}
		if v, ok := sub["trafikantgruppe"]; ok {
			row["trafikantgruppe"] = v
		}
		break
	}
}

func copyKeys(dst, src map[string]interface{}, keys ...string) {
	for _, k := range keys {
		if v, ok := src[k]; ok {
			dst[k] = v
		}
	}
}

func nested(obj map[string]interface{}, key string) map[string]interface{} {
	v, _ := obj[key].(map[string]interface{})
	return v
}

func list(obj map[string]interface{}, key string) []interface{} {
	v, _ := obj[key].([]interface{})
	return v
}

func wktOf(obj map[string]interface{}) string {
	g := nested(obj, "geometri")
	if g == nil {
		return ""
	}
	s, _ := g["wkt"].(string)
	return s
}

func intOf(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	case float64:
		return int64(t), true
	case int:
		return int64(t), true
	case int64:
		return t, true
	}
	return 0, false
}

// FilterString renders filter map for logs
func FilterString(filter map[string]string) string {
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, filter[k]))
	}
	return strings.Join(parts, "&")
}
