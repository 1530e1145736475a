package dmarc

import (
	"strconv"
)

// parseEnum matches raw exactly against the allowed values
func parseEnum[T ~string](field, raw string, allowed []T) (T, error) {
	for _, v := range allowed {
		if string(v) == raw {
			return v, nil
		}
	}
	names := make([]string, len(allowed))
	for i, v := range allowed {
		names[i] = string(v)
	}
	var zero T
	return zero, &InvalidEnumError{Field: field, Raw: raw, Allowed: names}
}

func parsePolicyType(field, raw string) (PolicyType, error) {
	return parseEnum(field, raw, policyTypes)
}

func parseAlignmentMode(field, raw string) (AlignmentMode, error) {
	return parseEnum(field, raw, alignmentModes)
}

func parseAuthResult(field, raw string) (AuthResultType, error) {
	return parseEnum(field, raw, authResultTypes)
}

// parseSPFScope allows an empty scope, it is optional in reports
func parseSPFScope(field, raw string) (SPFScope, error) {
	if raw == "" {
		return "", nil
	}
	return parseEnum(field, raw, spfScopes)
}

func parseInt(field, raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &MalformedValueError{Field: field, Raw: raw}
	}
	return n, nil
}

func parseInt64(field, raw string) (int64, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &MalformedValueError{Field: field, Raw: raw}
	}
	return n, nil
}
