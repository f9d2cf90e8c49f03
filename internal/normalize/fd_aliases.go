package normalize

import (
	"strings"
	"sync"
)

// fdAliases maps a canonical federation label to the variants seen in real
// import files. Keys and aliases are matched after accent stripping and
// punctuation folding, so one entry covers most spellings.
var fdAliases = map[string][]string{
	"FD Métallurgie":           {"FTM", "metallurgie", "metaux", "fd des travailleurs de la metallurgie"},
	"FD Commerce et Services":  {"commerce", "commerce services", "fd commerce distribution services"},
	"FD Santé Action Sociale":  {"sante", "sante action sociale", "action sociale"},
	"FD Services Publics":      {"services publics", "fdsp"},
	"FD Construction":          {"construction", "construction bois ameublement", "fni bati"},
	"FD Cheminots":             {"cheminots", "sncf"},
	"FD Transports":            {"transports", "transport"},
	"FD Agroalimentaire":       {"fnaf", "agroalimentaire", "agro alimentaire et forestiere"},
	"FD Chimie":                {"fnic", "chimie", "industries chimiques"},
	"FD Mines Énergie":         {"fnme", "mines energie", "energie"},
	"FD Finances":              {"finances", "banques assurances", "fspba"},
	"FD Éducation Recherche":   {"ferc", "education recherche culture"},
	"FD Sociétés d'études":     {"societes d etudes", "bureaux d etudes"},
	"FD Ports et Docks":        {"ports et docks", "dockers"},
	"FD Livre Communication":   {"filpac", "livre papier communication"},
	"FD Verre Céramique":       {"verre ceramique"},
	"FD Textile Habillement":   {"textile", "thc", "textile habillement cuir"},
	"FD Organismes Sociaux":    {"organismes sociaux"},
	"FD Spectacle":             {"spectacle", "fnsac"},
	"FD Équipement Environnement": {"equipement environnement"},
}

var (
	fdOnce  sync.Once
	fdMu    sync.RWMutex
	fdIndex map[string]string
)

func aliasKey(s string) string {
	return strings.ToUpper(CollapseSpaces(strings.Map(func(r rune) rune {
		if ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9') {
			return r
		}
		return ' '
	}, StripAccents(s))))
}

func buildFDIndex() map[string]string {
	idx := make(map[string]string, len(fdAliases)*3)
	for canonical, aliases := range fdAliases {
		if k := aliasKey(canonical); k != "" {
			idx[k] = canonical
		}
		for _, alias := range aliases {
			if k := aliasKey(alias); k != "" {
				idx[k] = canonical
			}
		}
	}
	return idx
}

// FDLabel maps a raw federation label to its canonical form. Unknown labels
// come back trimmed but otherwise untouched; empty input yields "".
// The alias index is built once and cached for the life of the process.
func FDLabel(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ""
	}
	key := aliasKey(value)
	if key == "" {
		return value
	}
	fdOnce.Do(func() {
		fdMu.Lock()
		fdIndex = buildFDIndex()
		fdMu.Unlock()
	})
	fdMu.RLock()
	canonical, ok := fdIndex[key]
	fdMu.RUnlock()
	if !ok {
		return value
	}
	return canonical
}

// ReloadFDAliases rebuilds the alias index. The alias table is immutable in
// this build, so this exists for deployments that patch fdAliases at startup.
func ReloadFDAliases() {
	fdMu.Lock()
	fdIndex = buildFDIndex()
	fdMu.Unlock()
	fdOnce.Do(func() {})
}
