package placement

import (
	"encoding/json"
	"errors"
	"strings"
)

var (
	errNotObject    = errors.New("self-description is not a JSON object")
	errMissingID    = errors.New("self-description has no @id")
	errMissingType  = errors.New("self-description has no @type")
	errContractOnly = errors.New("self-description describes a contract, not an offering")
)

// ValidateListing checks that a fetched self-description is a placeable
// JSON-LD offering. Documents carrying a @graph are accepted when any graph
// member qualifies; a bare contract document is rejected.
func ValidateListing(payload json.RawMessage) error {
	var doc map[string]interface{}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return errNotObject
	}

	if graph, ok := doc["@graph"].([]interface{}); ok {
		for _, member := range graph {
			obj, ok := member.(map[string]interface{})
			if !ok {
				continue
			}
			if err := validateObject(obj); err == nil {
				return nil
			}
		}
		return errMissingType
	}
	return validateObject(doc)
}

func validateObject(doc map[string]interface{}) error {
	if id, ok := doc["@id"].(string); !ok || id == "" {
		return errMissingID
	}
	typ, ok := doc["@type"]
	if !ok {
		return errMissingType
	}
	for _, t := range typeStrings(typ) {
		if strings.Contains(t, "OfferingContract") {
			continue
		}
		if strings.Contains(t, "Offering") {
			return nil
		}
	}
	if hasContractType(typ) {
		return errContractOnly
	}
	return errMissingType
}

func typeStrings(typ interface{}) []string {
	switch v := typ.(type) {
	case string:
		return []string{v}
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func hasContractType(typ interface{}) bool {
	for _, t := range typeStrings(typ) {
		if strings.Contains(t, "OfferingContract") {
			return true
		}
	}
	return false
}
