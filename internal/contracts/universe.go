package contracts

import "strings"

// UnknownSector is the sentinel for records without a usable sector.
// Sector rollups exclude it.
const UnknownSector = "unknown"

// SymbolMeta is one constituent of the universe, resolved fresh every refresh
type SymbolMeta struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Sector   string `json:"sector"`
	Industry string `json:"industry"`
}

// NormalizeSymbol converts a listing ticker into the form price sources expect.
// Class-share separators become dashes: "BRK.B" -> "BRK-B".
func NormalizeSymbol(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	return strings.ReplaceAll(s, ".", "-")
}

// NormalizeSector maps blank and "N/A" classifications to UnknownSector
func NormalizeSector(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "N/A") || strings.EqualFold(s, UnknownSector) {
		return UnknownSector
	}
	return s
}

// IsUnknownSector reports whether sector is the sentinel (or an equivalent blank)
func IsUnknownSector(sector string) bool {
	return NormalizeSector(sector) == UnknownSector
}
