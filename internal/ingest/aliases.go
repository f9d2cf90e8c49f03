package ingest

import (
	"time"

	"cse-data/internal/domain"
	"cse-data/internal/normalize"
)

// Alias tables for the well-known invitation fields. Keys are payload keys
// (folded header names), listed in lookup priority order. The same tables
// drive extraction at import time and the Backfill pass, which is what makes
// the backfill idempotent.
var invitationAliases = map[string][]string{
	"denomination":         {"raison_sociale", "raison", "denomination", "entreprise", "nom_entreprise"},
	"adresse":              {"adresse", "adresse_complete", "adresse_postale"},
	"code_postal":          {"code_postal", "cp"},
	"commune":              {"commune", "ville"},
	"activite_principale":  {"activite_principale", "code_naf", "naf", "code_ape", "ape"},
	"effectifs_label":      {"tranche_effectifs", "tranche_d_effectifs", "effectifs", "effectif_salarie"},
	"ul":                   {"ul", "union_locale"},
	"fd":                   {"fd", "federation", "fede"},
	"idcc":                 {"idcc", "convention_collective", "ccn"},
	"effectif_connu":       {"effectif_connu", "effectif", "nb_salaries", "nombre_de_salaries"},
	"date_reception":       {"date_reception", "date_de_reception", "recu_le"},
	"date_election_prevue": {"date_election_prevue", "date_election", "date_elections", "date_scrutin", "date_du_scrutin"},
}

// lookupAlias returns the first payload value whose key appears in the alias
// list for the field.
func lookupAlias(payload map[string]string, field string) string {
	for _, key := range invitationAliases[field] {
		if v, ok := payload[key]; ok && v != "" {
			return v
		}
	}
	return ""
}

// ExtractKnownFields fills the dedicated invitation columns from the raw
// payload, touching only fields that are still empty. Reports whether
// anything changed.
func ExtractKnownFields(inv *domain.Invitation) bool {
	if len(inv.Raw) == 0 {
		return false
	}
	changed := false

	setString := func(target **string, field string, transform func(string) string) {
		if *target != nil {
			return
		}
		v := lookupAlias(inv.Raw, field)
		if v == "" {
			return
		}
		if transform != nil {
			v = transform(v)
		}
		if v == "" {
			return
		}
		*target = &v
		changed = true
	}
	setInt := func(target **int, field string) {
		if *target != nil {
			return
		}
		v := normalize.NumericInt(lookupAlias(inv.Raw, field))
		if v == nil {
			return
		}
		*target = v
		changed = true
	}
	setDate := func(target **time.Time, field string) {
		if *target != nil {
			return
		}
		v := normalize.Date(lookupAlias(inv.Raw, field))
		if v == nil {
			return
		}
		*target = v
		changed = true
	}

	setString(&inv.Denomination, "denomination", nil)
	setString(&inv.Adresse, "adresse", nil)
	setString(&inv.CodePostal, "code_postal", nil)
	setString(&inv.Commune, "commune", nil)
	setString(&inv.ActivitePrincipale, "activite_principale", nil)
	setString(&inv.EffectifsLabel, "effectifs_label", nil)
	setString(&inv.UL, "ul", nil)
	setString(&inv.FD, "fd", normalize.FDLabel)
	setString(&inv.IDCC, "idcc", nil)
	setInt(&inv.EffectifConnu, "effectif_connu")
	setDate(&inv.DateReception, "date_reception")
	setDate(&inv.DateElectionPrevue, "date_election_prevue")

	return changed
}
