package proofing

// ValueFilter normalises one attribute value before the truthiness check.
// It must not modify its argument.
type ValueFilter func(v any) any

// Identity is the default filter.
func Identity(v any) any { return v }

// VerifiedNINs collapses a list of NIN claim objects into the list of
// numbers that are verified. No context registers it.
var VerifiedNINs = VerifiedNINsByKey("verified")

// VerifiedNINsByKey builds the NIN filter with an explicit verification
// key. Only items whose key holds the boolean true are kept; other truthy
// values do not count. Items without a string "nin" are skipped.
func VerifiedNINsByKey(verifiedKey string) ValueFilter {
	return func(v any) any {
		if v == nil {
			return v
		}
		items, ok := v.([]any)
		if !ok {
			return v
		}
		out := make([]any, 0, len(items))
		for _, item := range items {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if verified, ok := m[verifiedKey].(bool); !ok || !verified {
				continue
			}
			if nin, ok := m["nin"].(string); ok {
				out = append(out, nin)
			}
		}
		return out
	}
}
