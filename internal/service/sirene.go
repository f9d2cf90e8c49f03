package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"cse-data/internal/config"
	"cse-data/internal/domain"
)

// Etablissement is the subset of the INSEE directory record we keep.
type Etablissement struct {
	Siret              string
	Denomination       string
	Adresse            string
	CodePostal         string
	Commune            string
	ActivitePrincipale string
	TrancheEffectifs   string
	EffectifsLabel     string
}

// EtablissementLookup is implemented by SireneClient; tests substitute a
// local fake.
type EtablissementLookup interface {
	Lookup(ctx context.Context, siret string) (*Etablissement, error)
}

// effectifsLabels translates the INSEE workforce bracket codes.
var effectifsLabels = map[string]string{
	"NN": "non renseigné",
	"00": "0 salarié",
	"01": "1 ou 2 salariés",
	"02": "3 à 5 salariés",
	"03": "6 à 9 salariés",
	"11": "10 à 19 salariés",
	"12": "20 à 49 salariés",
	"21": "50 à 99 salariés",
	"22": "100 à 199 salariés",
	"31": "200 à 249 salariés",
	"32": "250 à 499 salariés",
	"41": "500 à 999 salariés",
	"42": "1000 à 1999 salariés",
	"51": "2000 à 4999 salariés",
	"52": "5000 à 9999 salariés",
	"53": "10000 salariés et plus",
}

// EffectifsLabel resolves a bracket code, falling back to the raw code.
func EffectifsLabel(code string) string {
	if label, ok := effectifsLabels[code]; ok {
		return label
	}
	return code
}

type sireneResponse struct {
	Etablissement struct {
		Siret       string `json:"siret"`
		UniteLegale struct {
			Denomination string `json:"denominationUniteLegale"`
			Nom          string `json:"nomUniteLegale"`
			Prenom       string `json:"prenom1UniteLegale"`
		} `json:"uniteLegale"`
		Adresse struct {
			NumeroVoie     string `json:"numeroVoieEtablissement"`
			TypeVoie       string `json:"typeVoieEtablissement"`
			LibelleVoie    string `json:"libelleVoieEtablissement"`
			CodePostal     string `json:"codePostalEtablissement"`
			LibelleCommune string `json:"libelleCommuneEtablissement"`
		} `json:"adresseEtablissement"`
		Periodes []struct {
			ActivitePrincipale string `json:"activitePrincipaleEtablissement"`
		} `json:"periodesEtablissement"`
		TrancheEffectifs string `json:"trancheEffectifsEtablissement"`
	} `json:"etablissement"`
}

// SireneClient fetches establishment records from the INSEE Sirene API.
type SireneClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

func NewSireneClient(cfg *config.SireneConfig, logger *zap.Logger) *SireneClient {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}
	return &SireneClient{httpClient: client, logger: logger}
}

// Lookup fetches one establishment by identifier. A 404 is an error; the
// caller decides whether a missing record is fatal.
func (c *SireneClient) Lookup(ctx context.Context, siret string) (*Etablissement, error) {
	var body sireneResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&body).
		SetPathParam("siret", siret).
		Get("/siret/{siret}")
	if err != nil {
		return nil, fmt.Errorf("sirene lookup siret=%s: %w", siret, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("sirene lookup siret=%s: status %d", siret, resp.StatusCode())
	}

	e := body.Etablissement
	out := &Etablissement{
		Siret:            e.Siret,
		Denomination:     e.UniteLegale.Denomination,
		CodePostal:       e.Adresse.CodePostal,
		Commune:          e.Adresse.LibelleCommune,
		TrancheEffectifs: e.TrancheEffectifs,
		EffectifsLabel:   EffectifsLabel(e.TrancheEffectifs),
	}
	// Natural persons have no legal denomination, only a name.
	if out.Denomination == "" {
		out.Denomination = strings.TrimSpace(e.UniteLegale.Prenom + " " + e.UniteLegale.Nom)
	}
	out.Adresse = joinAddress(e.Adresse.NumeroVoie, e.Adresse.TypeVoie, e.Adresse.LibelleVoie)
	if len(e.Periodes) > 0 {
		out.ActivitePrincipale = e.Periodes[0].ActivitePrincipale
	}

	c.logger.Debug("sirene record fetched",
		zap.String("siret", siret),
		zap.String("denomination", out.Denomination),
	)
	return out, nil
}

func joinAddress(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

// EnrichInvitation copies directory fields onto an invitation, filling only
// what is still empty so manual entry and spreadsheet extraction win over
// the directory. Reports whether anything changed.
func EnrichInvitation(inv *domain.Invitation, e *Etablissement) bool {
	changed := false
	set := func(target **string, v string) {
		if *target != nil || v == "" {
			return
		}
		*target = &v
		changed = true
	}
	set(&inv.Denomination, e.Denomination)
	set(&inv.Adresse, e.Adresse)
	set(&inv.CodePostal, e.CodePostal)
	set(&inv.Commune, e.Commune)
	set(&inv.ActivitePrincipale, e.ActivitePrincipale)
	set(&inv.EffectifsLabel, e.EffectifsLabel)
	return changed
}
